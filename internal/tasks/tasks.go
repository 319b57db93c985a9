// Package tasks runs the node's long-lived routines: acquisition, the HTTP
// listener and the background workers. Every task receives the shared
// context; cancelling it (on SIGINT/SIGTERM, or when any task fails) is
// the only way tasks are interrupted.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/airquality.report/internal/timeutil"
)

// Task is a routine that runs until ctx is done. Returning nil or
// ctx.Err() is a clean exit; any other error stops every task.
type Task func(ctx context.Context) error

// Runtime is a named group of tasks sharing one context.
type Runtime struct {
	g   *errgroup.Group
	ctx context.Context

	mu      sync.Mutex
	running map[string]time.Time
}

// New returns a runtime whose tasks stop when parent is cancelled.
func New(parent context.Context) *Runtime {
	g, ctx := errgroup.WithContext(parent)
	return &Runtime{g: g, ctx: ctx, running: make(map[string]time.Time)}
}

// Context returns the context handed to tasks.
func (r *Runtime) Context() context.Context { return r.ctx }

// Go starts t under name.
func (r *Runtime) Go(name string, t Task) {
	r.mu.Lock()
	r.running[name] = time.Now()
	r.mu.Unlock()

	r.g.Go(func() error {
		defer func() {
			r.mu.Lock()
			delete(r.running, name)
			r.mu.Unlock()
		}()

		err := t(r.ctx)
		log.Printf("%s routine terminated", name)
		if err == nil || errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("%s: %w", name, err)
	})
}

// Running lists the tasks that have not returned yet.
func (r *Runtime) Running() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.running))
	for name := range r.running {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Wait blocks until every task has returned and reports the first failure.
func (r *Runtime) Wait() error {
	return r.g.Wait()
}

// Every returns a task that calls fn once per interval until ctx is done.
// Errors from fn are logged and do not stop the task.
func Every(clock timeutil.Clock, interval time.Duration, name string, fn func(ctx context.Context) error) Task {
	return func(ctx context.Context) error {
		ticker := clock.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C():
				if err := fn(ctx); err != nil {
					log.Printf("%s: %v", name, err)
				}
			}
		}
	}
}
