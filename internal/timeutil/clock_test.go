package timeutil

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRealClock_Since(t *testing.T) {
	clock := RealClock{}
	d := clock.Since(time.Now().Add(-time.Second))
	if d < time.Second {
		t.Errorf("Since() = %v, want >= 1s", d)
	}
}

func TestRealClock_SleepContext(t *testing.T) {
	clock := RealClock{}
	start := time.Now()
	if err := clock.SleepContext(context.Background(), 10*time.Millisecond); err != nil {
		t.Fatalf("SleepContext: %v", err)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Error("SleepContext returned early")
	}
}

func TestRealClock_SleepContextCancelled(t *testing.T) {
	clock := RealClock{}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := clock.SleepContext(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("SleepContext error = %v, want context.Canceled", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("SleepContext ignored cancellation")
	}
}

func TestRealClock_NewTicker(t *testing.T) {
	ticker := RealClock{}.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Error("ticker did not fire")
	}
}

func TestMockClock_SleepRecordsAndAdvances(t *testing.T) {
	start := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	clock := NewMockClock(start)
	ctx := context.Background()

	_ = clock.SleepContext(ctx, time.Second)
	_ = clock.SleepContext(ctx, 300*time.Second)

	sleeps := clock.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != time.Second || sleeps[1] != 300*time.Second {
		t.Errorf("Sleeps() = %v, want [1s 5m0s]", sleeps)
	}
	if got := clock.Since(start); got != 301*time.Second {
		t.Errorf("Since(start) = %v, want 5m1s", got)
	}
}

func TestMockClock_SleepCancelled(t *testing.T) {
	clock := NewMockClock(time.Time{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := clock.SleepContext(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("SleepContext error = %v, want context.Canceled", err)
	}
	if n := len(clock.Sleeps()); n != 0 {
		t.Errorf("recorded %d sleeps on a cancelled context", n)
	}
}

func TestMockClock_OnSleep(t *testing.T) {
	clock := NewMockClock(time.Time{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock.OnSleep = func(n int) {
		if n == 2 {
			cancel()
		}
	}

	if err := clock.SleepContext(ctx, time.Second); err != nil {
		t.Fatalf("first sleep: %v", err)
	}
	if err := clock.SleepContext(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("second sleep error = %v, want context.Canceled", err)
	}
}

func TestMockClock_Set(t *testing.T) {
	clock := NewMockClock(time.Time{})
	newTime := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	clock.Set(newTime)
	if !clock.Now().Equal(newTime) {
		t.Errorf("Now() = %v, want %v", clock.Now(), newTime)
	}
}

func TestMockTicker_FiresOnAdvance(t *testing.T) {
	clock := NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ticker := clock.NewTicker(time.Minute)

	clock.Advance(30 * time.Second)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired early")
	default:
	}

	clock.Advance(30 * time.Second)
	select {
	case <-ticker.C():
	default:
		t.Fatal("ticker did not fire")
	}

	ticker.Stop()
	clock.Advance(time.Hour)
	select {
	case <-ticker.C():
		t.Error("stopped ticker fired")
	default:
	}
}

func TestMockTicker_Trigger(t *testing.T) {
	clock := NewMockClock(time.Time{})
	ticker := clock.NewTicker(time.Hour).(*MockTicker)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	ticker.Trigger(now)
	if got := <-ticker.C(); !got.Equal(now) {
		t.Errorf("tick = %v, want %v", got, now)
	}
}
