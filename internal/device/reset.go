// Package device performs the node's hard restart.
package device

import (
	"context"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/airquality.report/internal/timeutil"
)

// ExitCodeReset is the process exit status after a requested reset. The
// service supervisor restarts the node on it.
const ExitCodeReset = 3

// DefaultResetDelay gives the HTTP response time to flush before the
// process ends.
const DefaultResetDelay = 2 * time.Second

// Resetter restarts the node at most once per process lifetime.
type Resetter struct {
	delay time.Duration
	clock timeutil.Clock
	exit  func(code int)

	requested atomic.Bool
	mu        sync.Mutex
	hooks     []func()
	done      chan struct{}
}

// NewResetter returns a Resetter that exits the process delay after a
// reset is requested.
func NewResetter(delay time.Duration, clock timeutil.Clock) *Resetter {
	return &Resetter{
		delay: delay,
		clock: clock,
		exit:  os.Exit,
		done:  make(chan struct{}),
	}
}

// BeforeExit registers fn to run just before the process exits, for
// closing the database and flushing the log file.
func (r *Resetter) BeforeExit(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// RequestReset schedules the restart and returns immediately. It reports
// whether this call scheduled it; later calls are no-ops. The wait cannot
// be cancelled.
func (r *Resetter) RequestReset() bool {
	if !r.requested.CompareAndSwap(false, true) {
		return false
	}
	log.Printf("Board reset requested, restarting in %s", r.delay)
	go r.reset()
	return true
}

// Requested reports whether a reset is underway.
func (r *Resetter) Requested() bool { return r.requested.Load() }

// Done is closed once the hooks have run, right before exit is called.
func (r *Resetter) Done() <-chan struct{} { return r.done }

func (r *Resetter) reset() {
	r.clock.SleepContext(context.Background(), r.delay)

	r.mu.Lock()
	hooks := append([]func(){}, r.hooks...)
	r.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
	close(r.done)
	r.exit(ExitCodeReset)
}
