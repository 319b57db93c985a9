package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/airquality.report/internal/pms"
	"github.com/banshee-data/airquality.report/internal/timeutil"
)

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func sampleWith(v uint16) pms.Sample {
	return pms.Sample{
		PM1_0: v, PM2_5: v, PM10: v,
		Particles0_3um: v, Particles0_5um: v, Particles1_0um: v,
		Particles2_5um: v, Particles5_0um: v, Particles10um: v,
	}
}

func TestStore_CurrentBeforePublish(t *testing.T) {
	st := New(timeutil.NewMockClock(t0))

	assert.Equal(t, pms.Sample{}, st.Current())
	_, ok := st.Snapshot()
	assert.False(t, ok)
	_, ok = st.Age()
	assert.False(t, ok)
}

func TestStore_PublishThenCurrent(t *testing.T) {
	clock := timeutil.NewMockClock(t0)
	st := New(clock)

	first := st.Publish(sampleWith(1))
	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, t0, first.PublishedAt)

	clock.Advance(5 * time.Minute)
	second := st.Publish(sampleWith(2))
	assert.Equal(t, uint64(2), second.Seq)

	assert.Equal(t, sampleWith(2), st.Current())
	snap, ok := st.Snapshot()
	require.True(t, ok)
	assert.Equal(t, second, snap)

	clock.Advance(30 * time.Second)
	age, ok := st.Age()
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, age)
}

func TestStore_CurrentDoesNotAlias(t *testing.T) {
	st := New(timeutil.NewMockClock(t0))
	st.Publish(sampleWith(7))

	got := st.Current()
	got.PM2_5 = 999
	assert.Equal(t, uint16(7), st.Current().PM2_5)
}

func TestStore_PublishBetweenReads(t *testing.T) {
	st := New(timeutil.NewMockClock(t0))
	st.Publish(sampleWith(1))

	before := st.Current()
	st.Publish(sampleWith(2))
	after := st.Current()

	assert.Equal(t, sampleWith(1), before)
	assert.Equal(t, sampleWith(2), after)
}

func TestStore_ConcurrentReadersNeverSeeTornSample(t *testing.T) {
	st := New(timeutil.RealClock{})
	const publishes = 5000

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				s := st.Current()
				// every field carries the same value in a published sample
				if s != sampleWith(s.PM1_0) {
					t.Errorf("torn sample observed: %v", s)
					return
				}
			}
		}()
	}

	for i := 1; i <= publishes; i++ {
		st.Publish(sampleWith(uint16(i)))
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, sampleWith(publishes), st.Current())
}

func TestStore_Subscribe(t *testing.T) {
	st := New(timeutil.NewMockClock(t0))
	id, ch := st.Subscribe()

	st.Publish(sampleWith(3))
	select {
	case snap := <-ch:
		assert.Equal(t, sampleWith(3), snap.Sample)
		assert.Equal(t, uint64(1), snap.Seq)
	default:
		t.Fatal("subscriber did not receive publish")
	}

	st.Unsubscribe(id)
	_, open := <-ch
	assert.False(t, open, "channel closed after Unsubscribe")

	// unknown ids are ignored
	st.Unsubscribe(id)
}

func TestStore_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	st := New(timeutil.NewMockClock(t0))
	_, ch := st.Subscribe()

	for i := range subscriberBuffer * 3 {
		st.Publish(sampleWith(uint16(i)))
	}
	assert.Len(t, ch, subscriberBuffer)
	assert.Equal(t, sampleWith(subscriberBuffer*3-1), st.Current())
}

func TestStore_Close(t *testing.T) {
	st := New(timeutil.NewMockClock(t0))
	_, ch := st.Subscribe()

	st.Close()
	_, open := <-ch
	assert.False(t, open)

	_, late := st.Subscribe()
	_, open = <-late
	assert.False(t, open, "subscribe after close returns a closed channel")

	st.Publish(sampleWith(4))
	assert.Equal(t, sampleWith(4), st.Current(), "publish still updates the slot after close")
	st.Close()
}
