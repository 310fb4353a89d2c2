package scriptrunner

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"time"

	"github.com/bitrise-io/go-utils/errorutil"
	"github.com/bitrise-io/go-utils/v2/command"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/hashicorp/go-version"
	"github.com/kballard/go-shellquote"
)

var bashVersionPattern = regexp.MustCompile(`version (\d+\.\d+(?:\.\d+)?)`)

// BashRunner runs scripts with bash in errexit and pipefail mode.
type BashRunner struct {
	logger         log.Logger
	commandFactory command.Factory
	stdout         io.Writer
}

// NewBashRunner ...
func NewBashRunner(logger log.Logger, commandFactory command.Factory) *BashRunner {
	return &BashRunner{
		logger:         logger,
		commandFactory: commandFactory,
		stdout:         os.Stdout,
	}
}

func (r *BashRunner) Run(params Params) (Output, error) {
	var outBuffer bytes.Buffer
	outWriter := io.MultiWriter(&outBuffer, r.stdout)

	name, args := r.commandLine(params)
	cmd := r.commandFactory.Create(name, args, &command.Opts{
		Stdout: outWriter,
		Stderr: outWriter,
		Env:    params.Envs,
		Dir:    params.WorkDir,
	})

	r.logger.TPrintf("$ %s", printableCommand(name, args))
	r.logger.Debugf("Script:\n%s", params.Script)
	r.logger.Println()

	startTime := time.Now()
	exitCode, err := cmd.RunAndReturnExitCode()
	elapsed := time.Since(startTime)
	if err != nil {
		var exerr *exec.ExitError
		if errors.As(err, &exerr) {
			exitCode = exerr.ExitCode()
		} else if exitCode == 0 {
			exitCode = -1
		}

		// a script exiting 124 on its own returns before the limit
		if params.TimeLimit > 0 && exitCode == timeoutExitCode && elapsed >= time.Duration(params.TimeLimit)*time.Second {
			err = fmt.Errorf("script did not finish in %ds: %w", params.TimeLimit, ErrTimeLimitExceeded)
		}
	}

	return Output{
		RawOut:   outBuffer.Bytes(),
		ExitCode: exitCode,
	}, err
}

func (r *BashRunner) commandLine(params Params) (string, []string) {
	shellArgs := []string{"-e", "-o", "pipefail", "-c", params.Script}
	if params.TimeLimit <= 0 {
		return shell, shellArgs
	}

	args := []string{"--signal=TERM", "--kill-after=30s", strconv.Itoa(params.TimeLimit) + "s", shell}
	return timeoutTool, append(args, shellArgs...)
}

// printableCommand leaves the script body (the last argument) out, it is logged in debug mode.
func printableCommand(name string, args []string) string {
	printable := append([]string{name}, args[:len(args)-1]...)
	return shellquote.Join(printable...) + " <script>"
}

func (r *BashRunner) CheckInstall() (*version.Version, error) {
	r.logger.Println()
	r.logger.Infof("Checking shell (%s) version", shell)

	versionCmd := r.commandFactory.Create(shell, []string{"--version"}, nil)

	out, err := versionCmd.RunAndReturnTrimmedOutput()
	if err != nil {
		if errorutil.IsExitStatusError(err) {
			return nil, fmt.Errorf("%s version command failed: %w", shell, err)
		}

		return nil, fmt.Errorf("failed to run %s command: %w", shell, err)
	}

	match := bashVersionPattern.FindStringSubmatch(out)
	if match == nil {
		return nil, fmt.Errorf("failed to find version in %s output: %s", shell, out)
	}

	return version.NewVersion(match[1])
}
