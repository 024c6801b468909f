// Package infra implements host adapters: process table, encrypted entry store,
// settings file, signal spool, registry and desktop notifications.
package infra

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
)

// ExecMode represents the execution mode of the application.
type ExecMode string

const (
	// ExecModeUser keeps all state under the invoking user's home.
	ExecModeUser ExecMode = "user"
	// ExecModeSystem keeps state under /var/lib (running as root).
	ExecModeSystem ExecMode = "system"
)

// AppName is the binary and data directory name.
const AppName = "journalgate"

// ExecModeConfig holds paths based on execution mode.
type ExecModeConfig struct {
	Mode       ExecMode
	BinaryPath string // Where an installed binary is expected
	DataDir    string // Where the entry store, key, config and spool live
	IsRoot     bool   // Whether running as root
}

// DetectExecMode determines the execution mode based on effective UID.
func DetectExecMode() *ExecModeConfig {
	if os.Geteuid() == 0 {
		return &ExecModeConfig{
			Mode:       ExecModeSystem,
			BinaryPath: "/usr/local/bin/" + AppName,
			DataDir:    "/var/lib/" + AppName,
			IsRoot:     true,
		}
	}

	home := GetRealUserHome()
	return &ExecModeConfig{
		Mode:       ExecModeUser,
		BinaryPath: filepath.Join(home, ".local", "bin", AppName),
		DataDir:    filepath.Join(home, "."+AppName),
		IsRoot:     false,
	}
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (root)"
	case ExecModeUser:
		return "user (non-root)"
	default:
		return "unknown"
	}
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
// Under sudo, os.UserHomeDir() returns root's home, so we use SUDO_USER to find the real user.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}

// Paths lays out every file the daemon and the CLI share inside a data directory.
type Paths struct {
	DataDir   string
	ConfigDir string // config.yaml lives here
	SpoolDir  string // one file per delivered device signal
	LockState string // "locked" or "unlocked", written by `notify lock|unlock`
	Registry  string // daemon PID and status snapshot
	LogFile   string
}

// NewPaths derives the layout for dataDir.
func NewPaths(dataDir string) Paths {
	return Paths{
		DataDir:   dataDir,
		ConfigDir: dataDir,
		SpoolDir:  filepath.Join(dataDir, "spool"),
		LockState: filepath.Join(dataDir, "lockstate"),
		Registry:  filepath.Join(dataDir, ".daemon.json"),
		LogFile:   filepath.Join(dataDir, AppName+".log"),
	}
}

// Ensure creates the data and spool directories.
func (p Paths) Ensure() error {
	for _, dir := range []string{p.DataDir, p.SpoolDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
