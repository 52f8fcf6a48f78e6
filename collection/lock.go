package collection

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ErrLocked is returned by Lock when dir is already held by another owner.
var ErrLocked = errors.New("collection: directory is locked")

const lockFile = ".lock"

type lockInfo struct {
	Owner     string    `json:"owner"`
	PID       int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Lock places an advisory lockfile at {dir}/.lock, recording a random owner
// id and the current process id, per §5. A lock already present is treated
// as held; detecting and clearing a stale lock from a dead process is left
// to the operator (detection of staleness is advisory, per §5).
func (c *Collection) Lock() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}

	path := filepath.Join(c.dir, lockFile)
	if _, err := os.Stat(path); err == nil {
		return ErrLocked
	}

	info := lockInfo{
		Owner:      uuid.New().String(),
		PID:        os.Getpid(),
		AcquiredAt: time.Now().UTC(),
	}
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return ErrLocked
		}
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	c.lockOwner = info.Owner
	return nil
}

// Unlock removes the lockfile this Collection placed. It is a no-op if the
// Collection never acquired the lock.
func (c *Collection) Unlock() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lockOwner == "" {
		return nil
	}
	path := filepath.Join(c.dir, lockFile)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	c.lockOwner = ""
	return nil
}
