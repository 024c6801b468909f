package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// StartDaemon spawns the gate daemon from the current executable.
// The daemon is detached from the parent process (runs independently).
func StartDaemon(dataDir string) error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	return StartDaemonWithPath(executable, dataDir)
}

// StartDaemonWithPath spawns the gate daemon from binaryPath.
func StartDaemonWithPath(binaryPath, dataDir string) error {
	cmd := daemonCommand(binaryPath, dataDir)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to spawn daemon: %w", err)
	}
	// The child is reaped by init once we exit.
	return cmd.Process.Release()
}

// daemonCommand builds the hidden self-exec: journalgate daemon --data-dir DIR
func daemonCommand(binaryPath, dataDir string) *exec.Cmd {
	args := []string{"daemon"}
	if dataDir != "" {
		args = append(args, "--data-dir", dataDir)
	}
	cmd := exec.Command(binaryPath, args...)

	// Detach from parent process
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Create new session (detach from terminal)
	}

	// No stdin/stdout/stderr - fully detached
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	return cmd
}
