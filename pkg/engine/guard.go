package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"
)

// Guard lets at most one run proceed. A second TryAcquire fails at once;
// nothing queues.
type Guard struct {
	active atomic.Bool
	lock   *flock.Flock
}

func NewGuard() *Guard {
	return &Guard{}
}

// NewFileGuard additionally holds an exclusive flock on path while a run is
// active, so separate processes sharing a config directory exclude each
// other too.
func NewFileGuard(path string) *Guard {
	return &Guard{lock: flock.New(path)}
}

// TryAcquire returns ErrBusy only when another run holds the guard. Failing
// to take the lock file for any other reason is a plain error.
func (g *Guard) TryAcquire() error {
	if !g.active.CompareAndSwap(false, true) {
		return ErrBusy
	}
	if g.lock == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(g.lock.Path()), 0700); err != nil {
		g.active.Store(false)
		return fmt.Errorf("acquire run lock %s: %w", g.lock.Path(), err)
	}
	ok, err := g.lock.TryLock()
	if err != nil {
		g.active.Store(false)
		return fmt.Errorf("acquire run lock %s: %w", g.lock.Path(), err)
	}
	if !ok {
		g.active.Store(false)
		return fmt.Errorf("%w: held by another process (%s)", ErrBusy, g.lock.Path())
	}
	return nil
}

func (g *Guard) Release() {
	if g.lock != nil {
		_ = g.lock.Unlock()
	}
	g.active.Store(false)
}

// Running reports whether a run currently holds the guard.
func (g *Guard) Running() bool {
	return g.active.Load()
}
