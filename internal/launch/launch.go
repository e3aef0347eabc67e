// Package launch builds the downstream process environment from a launch
// profile and transfers control to the downstream command. The default mode
// replaces the launcher's process image (the PID is preserved and the call
// never returns on success); spawn mode runs a child with inherited stdio
// and reports its exit code.
package launch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/homebrewnlp/launchpad/internal/ctxlog"
	"github.com/homebrewnlp/launchpad/internal/profile"
)

// ExecError is the only failure kind at this layer: the downstream command
// could not be located or the transfer of control failed.
type ExecError struct {
	Path string
	Err  error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("failed to execute %s: %v", e.Path, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Launcher resolves and starts the downstream command. The function fields
// default to the real OS implementations and exist so tests can intercept
// the final, non-returning exec call.
type Launcher struct {
	// Spawn forces spawn-and-wait even on platforms with execve.
	Spawn bool

	Environ  func() []string
	LookPath func(file string) (string, error)
	Exec     func(argv0 string, argv []string, envv []string) error
}

// New returns a Launcher wired to the host OS.
func New() *Launcher {
	return &Launcher{
		Environ:  os.Environ,
		LookPath: exec.LookPath,
		Exec:     osExec,
	}
}

// Launch starts the profile's command with the given extra arguments
// appended, in order, after the profile's own arguments. In exec mode the
// call does not return on success. In spawn mode it blocks until the child
// exits and returns the child's exit code.
func (l *Launcher) Launch(ctx context.Context, p *profile.Profile, extraArgs []string) (int, error) {
	logger := ctxlog.FromContext(ctx)

	path, err := l.LookPath(p.Command)
	if err != nil {
		return -1, &ExecError{Path: p.Command, Err: err}
	}

	argv := Argv(p, extraArgs)
	envv := BuildEnv(l.Environ(), p)
	logger.Debug("Launching downstream process.",
		"path", path, "argv", argv, "profile", p.Name, "spawn", l.Spawn || !execSupported)

	if !l.Spawn && execSupported {
		// Replaces the process image; only returns on failure.
		err := l.Exec(path, argv, envv)
		return -1, &ExecError{Path: path, Err: err}
	}

	cmd := exec.CommandContext(ctx, path, argv[1:]...)
	cmd.Env = envv
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, &ExecError{Path: path, Err: err}
	}
	return 0, nil
}

// Argv assembles the downstream argument vector: the command itself, the
// profile's arguments, then the forwarded arguments, unmodified.
func Argv(p *profile.Profile, extraArgs []string) []string {
	argv := make([]string, 0, 1+len(p.Args)+len(extraArgs))
	argv = append(argv, p.Command)
	argv = append(argv, p.Args...)
	argv = append(argv, extraArgs...)
	return argv
}

// BuildEnv applies the profile's variables on top of the base environment.
// A base entry whose name collides with a profile variable is overwritten
// in place; remaining profile variables are appended in sorted order so the
// result is deterministic.
func BuildEnv(base []string, p *profile.Profile) []string {
	pending := make(map[string]bool, len(p.Env))
	for name := range p.Env {
		pending[name] = true
	}

	env := make([]string, 0, len(base)+len(p.Env))
	for _, kv := range base {
		name, _, ok := strings.Cut(kv, "=")
		if ok {
			if value, managed := p.Env[name]; managed {
				// First occurrence is replaced, duplicates are dropped.
				if pending[name] {
					env = append(env, name+"="+value)
					pending[name] = false
				}
				continue
			}
		}
		env = append(env, kv)
	}
	for _, name := range p.EnvNames() {
		if pending[name] {
			env = append(env, name+"="+p.Env[name])
		}
	}
	return env
}
