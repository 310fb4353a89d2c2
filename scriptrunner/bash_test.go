package scriptrunner

import (
	"errors"
	"io"
	"os/exec"
	"strings"
	"testing"

	"github.com/bitrise-io/go-utils/v2/command"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_GivenScript_WhenRun_ThenOutputIsCaptured(t *testing.T) {
	// Given
	runner := createRunner(t)
	workDir := t.TempDir()

	// When
	out, err := runner.Run(Params{
		Script:  "echo \"$GREETING from $(pwd)\"\necho oops >&2",
		Envs:    []string{"GREETING=hello"},
		WorkDir: workDir,
	})

	// Then
	require.NoError(t, err)
	assert.Equal(t, 0, out.ExitCode)
	assert.Contains(t, string(out.RawOut), "hello from ")
	assert.Contains(t, string(out.RawOut), "oops")
}

func Test_GivenFailingCommand_WhenRun_ThenScriptStopsWithItsExitCode(t *testing.T) {
	// Given
	runner := createRunner(t)

	// When
	out, err := runner.Run(Params{Script: "echo before\n(exit 3)\necho after"})

	// Then
	require.Error(t, err)
	assert.Equal(t, 3, out.ExitCode)
	assert.Contains(t, string(out.RawOut), "before")
	assert.NotContains(t, string(out.RawOut), "after")
	assert.False(t, errors.Is(err, ErrTimeLimitExceeded))
}

func Test_GivenFailingPipe_WhenRun_ThenPipefailFailsTheScript(t *testing.T) {
	// Given
	runner := createRunner(t)

	// When
	out, err := runner.Run(Params{Script: "false | cat\necho unreachable"})

	// Then
	require.Error(t, err)
	assert.Equal(t, 1, out.ExitCode)
	assert.NotContains(t, string(out.RawOut), "unreachable")
}

func Test_GivenTimeLimit_WhenScriptRunsLonger_ThenTimeLimitExceeded(t *testing.T) {
	if _, err := exec.LookPath(timeoutTool); err != nil {
		t.Skipf("%s is not available", timeoutTool)
	}

	// Given
	runner := createRunner(t)

	// When
	out, err := runner.Run(Params{Script: "sleep 10", TimeLimit: 1})

	// Then
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeLimitExceeded))
	assert.Equal(t, timeoutExitCode, out.ExitCode)
}

func Test_GivenTimeLimit_WhenScriptExitsWithTimeoutCodeEarly_ThenItIsAPlainFailure(t *testing.T) {
	if _, err := exec.LookPath(timeoutTool); err != nil {
		t.Skipf("%s is not available", timeoutTool)
	}

	// Given
	runner := createRunner(t)

	// When
	out, err := runner.Run(Params{Script: "exit 124", TimeLimit: 60})

	// Then
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrTimeLimitExceeded))
	assert.Equal(t, timeoutExitCode, out.ExitCode)
}

func TestCommandLine(t *testing.T) {
	runner := createRunner(t)

	name, args := runner.commandLine(Params{Script: "echo hi"})
	assert.Equal(t, "bash", name)
	assert.Equal(t, []string{"-e", "-o", "pipefail", "-c", "echo hi"}, args)
	assert.Equal(t, "bash -e -o pipefail -c <script>", printableCommand(name, args))

	name, args = runner.commandLine(Params{Script: "echo hi", TimeLimit: 600})
	assert.Equal(t, "timeout", name)
	assert.Equal(t, "timeout --signal=TERM --kill-after=30s 600s bash -e -o pipefail -c <script>", printableCommand(name, args))
}

func Test_GivenBash_WhenCheckingInstall_ThenVersionIsParsed(t *testing.T) {
	// Given
	runner := createRunner(t)

	// When
	ver, err := runner.CheckInstall()

	// Then
	require.NoError(t, err)
	assert.True(t, strings.Count(ver.String(), ".") >= 1)
	assert.GreaterOrEqual(t, ver.Segments()[0], 3)
}

func createRunner(t *testing.T) *BashRunner {
	if _, err := exec.LookPath(shell); err != nil {
		t.Skipf("%s is not available", shell)
	}

	runner := NewBashRunner(log.NewLogger(), command.NewFactory(env.NewRepository()))
	runner.stdout = io.Discard
	return runner
}
