//go:build !unix

package launch

import "errors"

const execSupported = false

// osExec is unreachable on platforms without execve; Launch always falls
// back to spawn-and-wait here.
func osExec(argv0 string, argv []string, envv []string) error {
	return errors.New("process replacement is not supported on this platform")
}
