package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const (
	lockFileSuffix = ".run.lock"
	lockRetryDelay = 500 * time.Millisecond
)

// RunLock serializes batch runs across aivis processes sharing one database.
// The holder writes a short note into the lock file so a second run can say
// who it is waiting for.
type RunLock struct {
	lock *flock.Flock
	path string
}

// NewRunLock creates the run lock for the given database path.
func NewRunLock(dbPath string) (*RunLock, error) {
	absPath, err := GetAbsDBPath(dbPath)
	if err != nil {
		return nil, fmt.Errorf("could not get absolute db path: %w", err)
	}
	lockPath := absPath + lockFileSuffix
	return &RunLock{
		lock: flock.New(lockPath),
		path: lockPath,
	}, nil
}

// RunOwner describes the current process for the lock note.
func RunOwner(what string) string {
	return fmt.Sprintf("%s (pid %d, since %s)", what, os.Getpid(), time.Now().Format(time.DateTime))
}

// Lock acquires the run lock, waiting until it is free or ctx is done.
func (l *RunLock) Lock(ctx context.Context, owner string) error {
	holder, ok, err := l.TryLock(owner)
	if err != nil || ok {
		return err
	}

	if holder == "" {
		holder = "another aivis run"
	}
	fmt.Fprintf(os.Stderr, "The database is busy with %s, waiting for it to finish...\n", holder)
	ok, err = l.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire lock on %s after waiting: %w", l.path, err)
	}
	if !ok {
		return fmt.Errorf("failed to acquire lock on %s", l.path)
	}
	return l.writeNote(owner)
}

// TryLock takes the run lock without waiting. When another process holds it,
// ok is false and holder is that process's note.
func (l *RunLock) TryLock(owner string) (holder string, ok bool, err error) {
	ok, err = l.lock.TryLock()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}
	if !ok {
		return l.Holder(), false, nil
	}
	return "", true, l.writeNote(owner)
}

// Holder returns the note left by the current holder, if any.
func (l *RunLock) Holder() string {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

func (l *RunLock) writeNote(owner string) error {
	if err := os.WriteFile(l.path, []byte(owner+"\n"), 0o644); err != nil {
		l.lock.Unlock()
		return fmt.Errorf("failed to write lock note %s: %w", l.path, err)
	}
	return nil
}

// Unlock clears the note and releases the run lock.
func (l *RunLock) Unlock() error {
	_ = os.Truncate(l.path, 0)
	if err := l.lock.Unlock(); err != nil {
		// The lock file is gone, so we no longer hold it.
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to release lock on %s: %w", l.path, err)
	}
	return nil
}

// GetAbsDBPath resolves the database path. Empty means ~/.config/aivis/aivis.sqlite.
func GetAbsDBPath(dbPath string) (string, error) {
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "aivis", "aivis.sqlite"), nil
	}
	return filepath.Abs(dbPath)
}
