package scriptrunner

import (
	"errors"

	"github.com/hashicorp/go-version"
)

const (
	shell = "bash"
	// timeoutTool is coreutils timeout, it exits with timeoutExitCode when the limit is hit.
	timeoutTool     = "timeout"
	timeoutExitCode = 124
)

// ErrTimeLimitExceeded is returned when a script runs longer than its time limit.
var ErrTimeLimitExceeded = errors.New("time limit exceeded")

// Output ...
type Output struct {
	RawOut   []byte
	ExitCode int
}

// Params ...
type Params struct {
	// Script is passed to the shell verbatim.
	Script string
	// Envs are KEY=VALUE pairs added on top of the step's environment.
	Envs    []string
	WorkDir string
	// TimeLimit in seconds, 0 means no limit.
	TimeLimit int
}

// DependencyInstaller ...
type DependencyInstaller interface {
	CheckInstall() (*version.Version, error)
}

// Runner ...
type Runner interface {
	Run(params Params) (Output, error)
}
