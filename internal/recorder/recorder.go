// Package recorder copies published snapshots into history and the
// upload queue.
package recorder

import (
	"context"
	"log"

	"github.com/banshee-data/airquality.report/internal/store"
)

// Sink persists one snapshot.
type Sink interface {
	Record(store.Snapshot) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(store.Snapshot) error

func (f SinkFunc) Record(s store.Snapshot) error { return f(s) }

// Subscriber hands out snapshot subscriptions.
type Subscriber interface {
	Subscribe() (string, <-chan store.Snapshot)
	Unsubscribe(id string)
}

// Run writes each snapshot from sub to every sink until ctx is done or
// the store closes. A failing sink is logged and does not stop the
// others.
func Run(ctx context.Context, sub Subscriber, sinks ...Sink) error {
	id, ch := sub.Subscribe()
	defer sub.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-ch:
			if !ok {
				return nil
			}
			for _, sink := range sinks {
				if err := sink.Record(snap); err != nil {
					log.Printf("recorder: sample %d: %v", snap.Seq, err)
				}
			}
		}
	}
}
