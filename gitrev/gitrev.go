package gitrev

import (
	"fmt"
	"regexp"

	"github.com/bitrise-io/go-utils/v2/command"
)

var commitPattern = regexp.MustCompile(`^[0-9a-f]{40}([0-9a-f]{24})?$`)

// Reader ...
type Reader interface {
	Head(repoDir string) (string, error)
}

type reader struct {
	commandFactory command.Factory
}

// NewReader ...
func NewReader(commandFactory command.Factory) Reader {
	return &reader{commandFactory: commandFactory}
}

// Head returns the commit checked out in repoDir.
func (r reader) Head(repoDir string) (string, error) {
	cmd := r.commandFactory.Create("git", []string{"rev-parse", "HEAD"}, &command.Opts{Dir: repoDir})

	out, err := cmd.RunAndReturnTrimmedCombinedOutput()
	if err != nil {
		return "", fmt.Errorf("failed to read HEAD of %s: %w, output: %s", repoDir, err, out)
	}
	if !commitPattern.MatchString(out) {
		return "", fmt.Errorf("unexpected git rev-parse output in %s: %s", repoDir, out)
	}

	return out, nil
}
