// Package lockfile provides a simple advisory lock for a target directory so
// two runs never write artifacts into the same destination concurrently.
package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fernwoodlabs/fw-backup/pkg/plog"
	"github.com/fernwoodlabs/fw-backup/pkg/util"
)

// LockFileName is the name of the lock file created inside the locked
// directory. The leading ".~" keeps it sorted away from artifacts.
const LockFileName = ".~fw-backup.lock"

// staleTimeout is how old a lock file may be before it is considered
// abandoned. A var so tests can shrink it.
var staleTimeout = 15 * time.Minute

// LockContent identifies the holder of a lock.
type LockContent struct {
	PID        int       `json:"pid"`
	Hostname   string    `json:"hostname"`
	AcquiredAt time.Time `json:"acquired_at"`
	AppID      string    `json:"app_id"`
}

// ErrLockActive is returned when another live process holds the lock.
type ErrLockActive struct {
	Path   string
	Holder LockContent
}

func (e *ErrLockActive) Error() string {
	return fmt.Sprintf("directory is locked by pid %d on %s since %s (%s)",
		e.Holder.PID, e.Holder.Hostname, e.Holder.AcquiredAt.Format(time.RFC3339), e.Path)
}

// Lock represents a held directory lock.
type Lock struct {
	path string
}

// Acquire takes the lock for dirPath, creating the directory if needed. A
// stale or corrupt lock file is taken over; an active lock yields
// *ErrLockActive.
func Acquire(dirPath string, appID string) (*Lock, error) {
	if err := os.MkdirAll(dirPath, util.UserWritableDirPerms); err != nil {
		return nil, fmt.Errorf("failed to create lock directory %s: %w", dirPath, err)
	}
	lockPath := filepath.Join(dirPath, LockFileName)

	for attempt := 0; attempt < 2; attempt++ {
		file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, util.UserWritableFilePerms)
		if err == nil {
			if writeErr := writeLockContent(file, appID); writeErr != nil {
				file.Close()
				os.Remove(lockPath)
				return nil, writeErr
			}
			if err := file.Close(); err != nil {
				os.Remove(lockPath)
				return nil, fmt.Errorf("failed to close lock file: %w", err)
			}
			return &Lock{path: lockPath}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create lock file %s: %w", lockPath, err)
		}

		holder, readErr := readLockContent(lockPath)
		if readErr != nil {
			// Corrupt or vanished lock file, take it over.
			plog.Warn("Removing unreadable lock file", "path", lockPath, "error", readErr)
			os.Remove(lockPath)
			continue
		}
		if time.Since(holder.AcquiredAt) > staleTimeout {
			plog.Warn("Removing stale lock file", "path", lockPath, "holder_pid", holder.PID, "acquired_at", holder.AcquiredAt)
			os.Remove(lockPath)
			continue
		}
		return nil, &ErrLockActive{Path: lockPath, Holder: holder}
	}
	return nil, fmt.Errorf("could not acquire lock %s after takeover attempt", lockPath)
}

// Release removes the lock file. Safe to call once per acquired lock.
func (l *Lock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	path := l.path
	l.path = ""
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file %s: %w", path, err)
	}
	return nil
}

func writeLockContent(file *os.File, appID string) error {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	content := LockContent{
		PID:        os.Getpid(),
		Hostname:   hostname,
		AcquiredAt: time.Now().UTC(),
		AppID:      appID,
	}
	jsonData, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to marshal lock content: %w", err)
	}
	if _, err := file.Write(jsonData); err != nil {
		return fmt.Errorf("failed to write lock content: %w", err)
	}
	return nil
}

func readLockContent(path string) (LockContent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LockContent{}, err
	}
	var content LockContent
	if err := json.Unmarshal(data, &content); err != nil {
		return LockContent{}, err
	}
	if content.AcquiredAt.IsZero() {
		return LockContent{}, errors.New("lock file has no acquisition time")
	}
	return content, nil
}
