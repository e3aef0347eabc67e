//go:build unix

package launch

import "syscall"

const execSupported = true

// osExec replaces the current process image. It only returns on failure.
func osExec(argv0 string, argv []string, envv []string) error {
	return syscall.Exec(argv0, argv, envv)
}
