package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/eliteGoblin/focusd/journalgate/internal/domain"
)

const registryVersion = 1

// FileRegistry implements domain.DaemonRegistry using a hidden JSON file in
// the data directory. The daemon writes; CLI commands read.
type FileRegistry struct {
	path           string
	processManager domain.ProcessManager
}

// NewFileRegistry creates a registry at the standard location for paths.
func NewFileRegistry(paths Paths, pm domain.ProcessManager) domain.DaemonRegistry {
	return NewFileRegistryWithPath(paths.Registry, pm)
}

// NewFileRegistryWithPath creates a registry at a specific path (for testing).
func NewFileRegistryWithPath(path string, pm domain.ProcessManager) domain.DaemonRegistry {
	return &FileRegistry{path: path, processManager: pm}
}

// Path returns the registry file path.
func (r *FileRegistry) Path() string {
	return r.path
}

// Register replaces any previous entry with the current daemon.
func (r *FileRegistry) Register(daemon domain.Daemon) error {
	return r.withLock(func() error {
		started := daemon.StartedAt
		if started.IsZero() {
			started = time.Now()
		}
		return r.write(&domain.RegistryEntry{
			Version:       registryVersion,
			PID:           daemon.PID,
			StartedAt:     started.Unix(),
			LastHeartbeat: time.Now().Unix(),
			AppVersion:    daemon.AppVersion,
		})
	})
}

// Heartbeat refreshes the liveness timestamp and the status snapshot.
func (r *FileRegistry) Heartbeat(status domain.StatusSnapshot) error {
	return r.withLock(func() error {
		entry, err := r.read()
		if err != nil {
			return err
		}
		if entry == nil {
			return domain.ErrNotRegistered
		}
		entry.LastHeartbeat = time.Now().Unix()
		entry.Status = status
		return r.write(entry)
	})
}

// IsAlive checks if the registered daemon is running via PID.
func (r *FileRegistry) IsAlive() (bool, error) {
	entry, err := r.read()
	if err != nil {
		return false, err
	}
	if entry == nil || entry.PID == 0 {
		return false, nil
	}
	return r.processManager.IsRunning(entry.PID), nil
}

// Get returns the registry entry, or ErrNotRegistered.
func (r *FileRegistry) Get() (*domain.RegistryEntry, error) {
	entry, err := r.read()
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, domain.ErrNotRegistered
	}
	return entry, nil
}

// Clear removes the registry file. A missing file is not an error.
func (r *FileRegistry) Clear() error {
	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// withLock serializes writers across processes with an flock on a sidecar file.
func (r *FileRegistry) withLock(fn func() error) error {
	lockFile, err := os.OpenFile(r.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN) }()

	return fn()
}

func (r *FileRegistry) read() (*domain.RegistryEntry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entry domain.RegistryEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to parse registry: %w", err)
	}
	return &entry, nil
}

// write stores the entry atomically. Caller holds the lock.
func (r *FileRegistry) write(entry *domain.RegistryEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return atomicWrite(r.path, data)
}

var _ domain.DaemonRegistry = (*FileRegistry)(nil)
