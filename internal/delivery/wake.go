package delivery

import (
	"sync"

	"github.com/google/uuid"
)

// WakeLock models the exclusive wake resource: while any hold is open
// the process must not be suspended or shut down. Holds are scoped to a
// single trigger, acquired when the fire is accepted and released on
// every exit path of the presentation.
type WakeLock struct {
	mu    sync.Mutex
	holds map[string]string // token -> tag
}

func NewWakeLock() *WakeLock {
	return &WakeLock{holds: make(map[string]string)}
}

// Acquire opens a hold and returns its release func. Release is
// idempotent; calling it twice (user action racing the auto-dismiss)
// must not free someone else's hold.
func (w *WakeLock) Acquire(tag string) (release func()) {
	token := uuid.NewString()

	w.mu.Lock()
	w.holds[token] = tag
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.holds, token)
			w.mu.Unlock()
		})
	}
}

// HoldCount returns the number of open holds.
func (w *WakeLock) HoldCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.holds)
}

// Idle reports whether no holds are open. Shutdown waits for this
// before tearing the process down.
func (w *WakeLock) Idle() bool {
	return w.HoldCount() == 0
}
