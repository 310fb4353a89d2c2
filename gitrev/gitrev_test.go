package gitrev

import (
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/bitrise-io/go-utils/v2/command"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/fileutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_GivenRepository_WhenReadingHead_ThenReturnsStableCommit(t *testing.T) {
	// Given
	repoDir := initRepository(t)
	reader := NewReader(command.NewFactory(env.NewRepository()))

	// When
	first, err := reader.Head(repoDir)
	require.NoError(t, err)
	second, err := reader.Head(repoDir)
	require.NoError(t, err)

	// Then
	assert.Len(t, first, 40)
	assert.Equal(t, first, second)
}

func Test_GivenPlainDirectory_WhenReadingHead_ThenFails(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git is not available")
	}

	// Given
	reader := NewReader(command.NewFactory(env.NewRepository()))

	// When
	_, err := reader.Head(t.TempDir())

	// Then
	assert.Error(t, err)
}

func initRepository(t *testing.T) string {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git is not available")
	}

	repoDir := t.TempDir()
	require.NoError(t, fileutil.NewFileManager().Write(filepath.Join(repoDir, "README.md"), "test", 0644))

	factory := command.NewFactory(env.NewRepository())
	for _, args := range [][]string{
		{"init", "-q"},
		{"add", "README.md"},
		{"-c", "user.name=CI", "-c", "user.email=ci@example.com", "commit", "-q", "-m", "initial"},
	} {
		out, err := factory.Create("git", args, &command.Opts{Dir: repoDir}).RunAndReturnTrimmedCombinedOutput()
		require.NoError(t, err, out)
	}

	return repoDir
}
