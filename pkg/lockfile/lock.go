// Package lockfile implements the project's advisory lock: at most one
// mutating command (refresh, submit, clean) may hold it at a time. scan is
// exempt, since it only ever appends staging files.
package lockfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// HeldError is returned by Acquire when another process already holds the
// lock.
type HeldError struct {
	HolderPID int
	LockPath  string
}

func (e *HeldError) Error() string {
	if e.HolderPID > 0 {
		return fmt.Sprintf("project is locked by pid %d (%s)", e.HolderPID, e.LockPath)
	}
	return fmt.Sprintf("project is locked (%s)", e.LockPath)
}

// Lock is a PID-tagged advisory lock backed by flock(2) on a file under
// the project's .row directory.
type Lock struct {
	path string
	file *os.File
	held bool
}

// New returns a Lock for the given path. The lock is not acquired yet.
func New(path string) *Lock {
	return &Lock{path: path}
}

// Acquire takes a non-blocking exclusive lock. If another process holds
// it, returns a *HeldError naming the holder's PID (read from the lock
// file's contents, best-effort).
func (l *Lock) Acquire() error {
	if l.held {
		return nil
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open lock file %s: %w", l.path, err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		holderPID := readHolderPID(f)
		_ = f.Close()
		if err == syscall.EWOULDBLOCK {
			return &HeldError{HolderPID: holderPID, LockPath: l.path}
		}
		return fmt.Errorf("acquire lock %s: %w", l.path, err)
	}

	l.file = f
	l.held = true

	if err := l.writePID(); err != nil {
		return fmt.Errorf("acquire lock %s: write pid: %w", l.path, err)
	}
	return nil
}

// Release drops the lock. Safe to call multiple times or without a prior
// Acquire.
func (l *Lock) Release() error {
	if !l.held || l.file == nil {
		return nil
	}
	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	_ = l.file.Close()
	l.file = nil
	l.held = false
	if err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	return nil
}

// IsHeld reports whether this Lock currently holds the flock.
func (l *Lock) IsHeld() bool {
	return l.held
}

// HolderPID returns the PID recorded in the lock file, or 0 if unknown.
// May be stale if the holder crashed without calling Release (the kernel
// still releases the flock on process exit; the PID left in the file is
// only a debugging aid).
func (l *Lock) HolderPID() int {
	f, err := os.Open(l.path)
	if err != nil {
		return 0
	}
	defer f.Close()
	return readHolderPID(f)
}

func (l *Lock) writePID() error {
	if _, err := l.file.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		return err
	}
	return l.file.Truncate(int64(len(strconv.Itoa(os.Getpid())) + 1))
}

func readHolderPID(f *os.File) int {
	data := make([]byte, 32)
	n, err := f.ReadAt(data, 0)
	if err != nil && n == 0 {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data[:n])))
	if err != nil {
		return 0
	}
	return pid
}
