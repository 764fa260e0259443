package lock

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
)

// PIDFile is a lock marker created exclusively on disk that holds the owning
// process id. A marker whose owner is no longer alive is reclaimed.
type PIDFile struct {
	path  string
	pid   int
	alive func(pid int) bool

	mu   sync.Mutex
	held bool
}

func NewPIDFile(path string) *PIDFile {
	return &PIDFile{
		path:  path,
		pid:   os.Getpid(),
		alive: processAlive,
	}
}

func (l *PIDFile) TryAcquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("error creating lock directory: %w", err)
	}

	// Two rounds: the second follows removal of a stale marker.
	for i := 0; i < 2; i++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		ok, err := l.create()
		if err != nil {
			return false, err
		}
		if ok {
			l.held = true
			slog.Info("scheduler lock acquired", "path", l.path, "pid", l.pid)
			return true, nil
		}

		owner, err := l.owner()
		if err != nil {
			return false, err
		}
		if owner == l.pid {
			l.held = true
			return true, nil
		}
		if owner > 0 && l.alive(owner) {
			slog.Info("scheduler lock held by another process", "path", l.path, "owner", owner)
			return false, nil
		}

		slog.Warn("removing stale scheduler lock", "path", l.path, "owner", owner)
		if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("error removing stale lock: %w", err)
		}
	}
	return false, nil
}

func (l *PIDFile) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.held {
		return nil
	}
	l.held = false

	owner, err := l.owner()
	if err != nil {
		return err
	}
	if owner != l.pid {
		slog.Warn("scheduler lock taken over, leaving it in place", "path", l.path, "owner", owner)
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error removing lock: %w", err)
	}
	slog.Info("scheduler lock released", "path", l.path)
	return nil
}

func (l *PIDFile) create() (bool, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error creating lock: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(strconv.Itoa(l.pid)); err != nil {
		os.Remove(l.path)
		return false, fmt.Errorf("error writing lock: %w", err)
	}
	return true, nil
}

// owner returns the pid recorded in the marker, or 0 when the marker is
// missing or unreadable.
func (l *PIDFile) owner() (int, error) {
	b, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("error reading lock: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || pid <= 0 {
		return 0, nil
	}
	return pid, nil
}

func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
