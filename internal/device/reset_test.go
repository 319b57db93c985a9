package device

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/banshee-data/airquality.report/internal/timeutil"
)

func TestResetter_ExitsAfterDelay(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	r := NewResetter(DefaultResetDelay, clock)

	exitCode := make(chan int, 1)
	r.exit = func(code int) { exitCode <- code }

	var hookRan atomic.Bool
	r.BeforeExit(func() { hookRan.Store(true) })

	if r.Requested() {
		t.Fatal("Requested() = true before any request")
	}
	if !r.RequestReset() {
		t.Fatal("first RequestReset() = false, want true")
	}
	if r.RequestReset() {
		t.Error("second RequestReset() = true, want false")
	}
	if !r.Requested() {
		t.Error("Requested() = false after a request")
	}

	select {
	case code := <-exitCode:
		if code != ExitCodeReset {
			t.Errorf("exit code = %d, want %d", code, ExitCodeReset)
		}
	case <-time.After(time.Second):
		t.Fatal("exit was not called")
	}

	<-r.Done()
	if !hookRan.Load() {
		t.Error("BeforeExit hook did not run")
	}
	sleeps := clock.Sleeps()
	if len(sleeps) != 1 || sleeps[0] != DefaultResetDelay {
		t.Errorf("sleeps = %v, want [%s]", sleeps, DefaultResetDelay)
	}

	select {
	case code := <-exitCode:
		t.Errorf("exit called twice (code %d)", code)
	default:
	}
}
