package uplink

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/airquality.report/internal/fsutil"
	"github.com/banshee-data/airquality.report/internal/pms"
	"github.com/banshee-data/airquality.report/internal/queue"
	"github.com/banshee-data/airquality.report/internal/store"
	"github.com/banshee-data/airquality.report/internal/timeutil"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type fakePublisher struct {
	topics   []string
	payloads [][]byte
	failAt   int // 1-based publish that fails; 0 never
	calls    int
	closed   bool
}

func (p *fakePublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.calls++
	if p.calls == p.failAt {
		return errors.New("broker unavailable")
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *fakePublisher) Close() { p.closed = true }

func fill(t *testing.T, n int) *queue.Spool {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	s, err := queue.New(fsutil.NewMemoryFileSystem(), "/queue", 100, clock)
	require.NoError(t, err)
	for i := range n {
		_, err := s.Enqueue(store.Snapshot{Sample: pms.Sample{PM10: uint16(i)}, Seq: uint64(i + 1)})
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}
	return s
}

func TestForwarder_DrainsOldestFirst(t *testing.T) {
	spool := fill(t, 3)
	pub := &fakePublisher{}
	f := NewForwarder(pub, RawSpool{spool}, "airquality/samples")

	sent, err := f.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	assert.Equal(t, []string{"airquality/samples", "airquality/samples", "airquality/samples"}, pub.topics)
	assert.Contains(t, string(pub.payloads[0]), `"seq":1`)
	assert.Contains(t, string(pub.payloads[2]), `"seq":3`)

	left, err := spool.List()
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestForwarder_KeepsFilesAfterFailure(t *testing.T) {
	spool := fill(t, 4)
	pub := &fakePublisher{failAt: 2}
	f := NewForwarder(pub, RawSpool{spool}, "t")

	sent, err := f.Drain(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, sent)

	left, err := spool.List()
	require.NoError(t, err)
	require.Len(t, left, 3)

	snap, err := spool.Read(left[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.Seq, "failed sample is retried first")

	sent, err = f.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
}

func TestForwarder_StopsOnCancel(t *testing.T) {
	spool := fill(t, 2)
	pub := &fakePublisher{}
	f := NewForwarder(pub, RawSpool{spool}, "t")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sent, err := f.Drain(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sent)
	assert.Zero(t, pub.calls)
}

func TestForwarder_EmptyQueue(t *testing.T) {
	f := NewForwarder(&fakePublisher{}, RawSpool{fill(t, 0)}, "t")
	sent, err := f.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
}
