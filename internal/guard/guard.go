// Package guard keeps the scheduler's arming state alive across
// involuntary terminations. It supervises a single run function and
// distinguishes two inputs with two distinct transitions: an unexpected
// termination restarts the run exactly once per termination, an
// explicit Stop never does.
package guard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

var ErrAlreadyRunning = errors.New("guard already running")

// RunFunc is the supervised body: re-arm from the store, then block
// until the context is cancelled. A non-nil error (or panic) counts as
// an unexpected termination.
type RunFunc func(ctx context.Context) error

type Guard struct {
	run     RunFunc
	backoff time.Duration

	state    atomic.Int32
	restarts atomic.Int64
	cancel   context.CancelFunc
	done     chan struct{}
}

func New(run RunFunc, backoff time.Duration) *Guard {
	return &Guard{run: run, backoff: backoff}
}

func (g *Guard) State() State {
	return State(g.state.Load())
}

// Restarts returns how many times the run was restarted after an
// unexpected termination.
func (g *Guard) Restarts() int64 {
	return g.restarts.Load()
}

// Start launches the supervision loop. It fails if the guard is not
// stopped.
func (g *Guard) Start(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.done = make(chan struct{})

	go g.loop(runCtx)
	return nil
}

// Stop requests an intentional shutdown and waits for the loop to
// exit. Restart-on-stop must never happen; the Stopping state is
// checked on every loop edge.
func (g *Guard) Stop() {
	swapped := g.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) ||
		g.state.CompareAndSwap(int32(StateStarting), int32(StateStopping))
	if !swapped {
		return
	}
	g.cancel()
	<-g.done
}

func (g *Guard) loop(ctx context.Context) {
	defer close(g.done)
	defer g.state.Store(int32(StateStopped))

	g.state.CompareAndSwap(int32(StateStarting), int32(StateRunning))

	for {
		err := g.safeRun(ctx)

		if g.State() == StateStopping || ctx.Err() != nil {
			log.Println("Guard stopped")
			return
		}

		// Unexpected termination: one restart attempt per termination.
		g.restarts.Add(1)
		log.Printf("Guarded run terminated unexpectedly (err=%v), restarting in %s", err, g.backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(g.backoff):
		}
		if g.State() == StateStopping {
			return
		}
	}
}

func (g *Guard) safeRun(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("guarded run panicked: %v", r)
		}
	}()
	return g.run(ctx)
}
