// Package lock keeps two agent processes on one host from running at once.
package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

// Holder describes the process that owns the lock file.
type Holder struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
}

// HeldError is returned when a live process already holds the lock.
type HeldError struct {
	Holder  Holder
	Elapsed time.Duration
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("another run is in progress (pid %d, running for %s)", e.Holder.PID, e.Elapsed.Round(time.Second))
}

// Lock is an acquired lock file. Release is safe to call more than once.
type Lock struct {
	path   string
	holder Holder
	once   sync.Once
	err    error
}

// staleGrace is how long an unreadable lock file, or a takeover guard, is
// assumed to belong to a process that is still working on it.
const staleGrace = 5 * time.Second

// Acquire creates the lock file at path. A lock left behind by a dead
// process, or one that has been unreadable for longer than staleGrace, is
// taken over.
func Acquire(path string) (*Lock, error) {
	return acquire(path, os.Getpid(), time.Now, processAlive)
}

func acquire(path string, pid int, now func() time.Time, alive func(int) bool) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, model.NewError(model.StageLock, model.KindFilesystem, "creating lock directory", err)
	}
	holder := Holder{PID: pid, StartedAt: now().UTC().Round(0)}
	data, err := json.Marshal(holder)
	if err != nil {
		return nil, model.NewError(model.StageLock, model.KindFilesystem, "encoding lock", err)
	}

	// Two attempts: the second follows a stale-lock removal.
	for attempt := 0; attempt < 2; attempt++ {
		err := publish(path, data)
		if err == nil {
			return &Lock{path: path, holder: holder}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fsError("creating lock", err)
		}
		if err := takeOver(path, pid, now, alive); err != nil {
			return nil, err
		}
	}
	return nil, model.NewError(model.StageLock, model.KindLockHeld, "lock contended while taking over a stale lock", nil)
}

// publish writes data to a temp file next to path and hard-links it into
// place, so the lock file never exists half-written. The link fails with
// fs.ErrExist when path is already taken.
func publish(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Chmod(0o644)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return os.Link(tmp.Name(), path)
}

// takeOver removes the lock at path if it is stale. Removal happens under an
// O_EXCL guard file with the staleness re-checked inside it, so two processes
// racing for one stale lock cannot delete each other's fresh lock.
func takeOver(path string, pid int, now func() time.Time, alive func(int) bool) error {
	if err := checkStale(path, pid, now, alive); err != nil {
		return err
	}

	guardPath := path + ".takeover"
	guard, err := os.OpenFile(guardPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if !errors.Is(err, fs.ErrExist) {
			return fsError("creating takeover guard", err)
		}
		if info, serr := os.Stat(guardPath); serr == nil && time.Since(info.ModTime()) >= staleGrace {
			// Left by a process that died mid-takeover.
			_ = os.Remove(guardPath)
		}
		return model.NewError(model.StageLock, model.KindLockHeld, "another process is taking over the stale lock", nil)
	}
	defer func() {
		guard.Close()
		os.Remove(guardPath)
	}()

	if err := checkStale(path, pid, now, alive); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fsError("removing stale lock", err)
	}
	return nil
}

// checkStale returns nil when the lock at path may be removed, and a
// lock-held error while a live process owns it or may still be writing it.
func checkStale(path string, pid int, now func() time.Time, alive func(int) bool) error {
	current, err := ReadHolder(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err == nil:
		if current.PID > 0 && current.PID != pid && alive(current.PID) {
			held := &HeldError{Holder: current, Elapsed: now().Sub(current.StartedAt)}
			return model.NewError(model.StageLock, model.KindLockHeld, held.Error(), held)
		}
		return nil
	}
	info, serr := os.Stat(path)
	if serr == nil && time.Since(info.ModTime()) < staleGrace {
		return model.NewError(model.StageLock, model.KindLockHeld, "lock file is still being written by another process", err)
	}
	return nil
}

func fsError(msg string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return model.NewError(model.StageLock, model.KindPermission, msg, err)
	}
	return model.NewError(model.StageLock, model.KindFilesystem, msg, err)
}

// Release removes the lock file if it still belongs to this lock.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	l.once.Do(func() {
		current, err := ReadHolder(l.path)
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		if err == nil && !current.same(l.holder) {
			// Taken over by another process; leave it alone.
			return
		}
		if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			l.err = model.NewError(model.StageLock, model.KindFilesystem, "removing lock", err)
		}
	})
	return l.err
}

func (h Holder) same(o Holder) bool {
	return h.PID == o.PID && h.StartedAt.Equal(o.StartedAt)
}

// Path returns the lock file location.
func (l *Lock) Path() string { return l.path }

// ReadHolder parses the lock file at path.
func ReadHolder(path string) (Holder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Holder{}, err
	}
	var h Holder
	if err := json.Unmarshal(data, &h); err != nil {
		return Holder{}, fmt.Errorf("parse lock file: %w", err)
	}
	return h, nil
}

// Status reports the live holder of the lock at path, if any.
func Status(path string) (Holder, bool) {
	h, err := ReadHolder(path)
	if err != nil || h.PID <= 0 || !processAlive(h.PID) {
		return Holder{}, false
	}
	return h, true
}

func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
