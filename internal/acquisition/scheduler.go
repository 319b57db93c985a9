// Package acquisition runs the sensor duty cycle: power the UART up, let
// the sensor's fan and laser settle, take one authoritative reading,
// power down and sleep.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/airquality.report/internal/monitoring"
	"github.com/banshee-data/airquality.report/internal/pms"
	"github.com/banshee-data/airquality.report/internal/serialbus"
	"github.com/banshee-data/airquality.report/internal/store"
	"github.com/banshee-data/airquality.report/internal/timeutil"
)

// ErrBusFault wraps every serial bus failure. Bus faults are logged and
// counted; they never stop the duty cycle.
var ErrBusFault = errors.New("bus fault")

// outcomeBusFault is the status and metrics label for an attempt that
// ended in a bus error rather than a decoder outcome.
const outcomeBusFault = "bus_fault"

// Config holds the duty-cycle timings.
type Config struct {
	Mode serialbus.SerialPortMode

	WarmUpReads    int
	WarmUpInterval time.Duration
	RetryDelay     time.Duration
	DutyCycle      time.Duration

	// MaxReadsPerAttempt bounds the bus reads in one read-and-decode
	// attempt.
	MaxReadsPerAttempt int
}

// DefaultConfig returns the PMS5003 timings: 30 warm-up reads a second
// apart and one reading every five minutes.
func DefaultConfig() Config {
	return Config{
		Mode:               serialbus.DefaultSerialPortMode(),
		WarmUpReads:        30,
		WarmUpInterval:     time.Second,
		RetryDelay:         time.Second,
		DutyCycle:          300 * time.Second,
		MaxReadsPerAttempt: 8,
	}
}

// Publisher receives each authoritative sample.
type Publisher interface {
	Publish(pms.Sample) store.Snapshot
}

// Status is a point-in-time view of the scheduler for status pages.
type Status struct {
	State            State     `json:"state"`
	WarmUpRead       int       `json:"warm_up_read,omitempty"`
	Cycles           uint64    `json:"cycles"`
	LastOutcome      string    `json:"last_outcome,omitempty"`
	LastCycleAt      time.Time `json:"last_cycle_at"`
	LastPublishAt    time.Time `json:"last_publish_at"`
	Published        uint64    `json:"published"`
	BusFaults        uint64    `json:"bus_faults"`
	DiscardedRetries uint64    `json:"discarded_retries"`
}

// Scheduler owns the serial bus and the resync buffer for its whole
// lifetime. Run must not be called concurrently with itself or RunCycle.
type Scheduler struct {
	cfg     Config
	bus     serialbus.Bus
	clock   timeutil.Clock
	pub     Publisher
	metrics *Metrics

	buf pms.Buffer

	mu     sync.Mutex
	status Status
}

// New builds a scheduler. metrics may be nil.
func New(cfg Config, bus serialbus.Bus, clock timeutil.Clock, pub Publisher, metrics *Metrics) *Scheduler {
	if cfg.MaxReadsPerAttempt <= 0 {
		cfg.MaxReadsPerAttempt = 1
	}
	return &Scheduler{
		cfg:     cfg,
		bus:     bus,
		clock:   clock,
		pub:     pub,
		metrics: metrics,
	}
}

// Status returns a copy of the current status.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Run repeats the duty cycle until ctx is cancelled and returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.setState(Idle)
	for {
		if err := s.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			monitoring.Logf("acquisition: %v", err)
		}

		s.setState(Sleeping)
		if err := s.clock.SleepContext(ctx, s.cfg.DutyCycle); err != nil {
			return err
		}
	}
}

// RunCycle performs one BusInit → WarmUp → SteadyRead → BusTeardown pass.
// It returns a wrapped ErrBusFault if the bus failed, or ctx.Err() if the
// cycle was interrupted.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	s.mu.Lock()
	s.status.Cycles++
	s.status.LastCycleAt = s.clock.Now()
	s.mu.Unlock()
	s.metrics.cycle()

	s.setState(BusInit)
	s.buf.Reset()
	monitoring.Logf("acquisition: initialising serial bus")
	if err := s.bus.Init(s.cfg.Mode); err != nil {
		return s.busFault(fmt.Errorf("init: %w", err))
	}
	defer func() {
		s.setState(BusTeardown)
		monitoring.Logf("acquisition: turning off serial bus")
		if err := s.bus.Deinit(); err != nil {
			monitoring.Logf("acquisition: deinit: %v", err)
		}
	}()

	if err := s.warmUp(ctx); err != nil {
		return err
	}
	return s.steadyRead(ctx)
}

func (s *Scheduler) warmUp(ctx context.Context) error {
	s.setState(WarmUp)
	for i := 1; i <= s.cfg.WarmUpReads; i++ {
		s.mu.Lock()
		s.status.WarmUpRead = i
		s.mu.Unlock()

		a := s.readAndDecode(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		if a.err != nil {
			monitoring.Logf("acquisition: warm-up read %d of %d: %v", i, s.cfg.WarmUpReads, a.err)
		}
		if err := s.clock.SleepContext(ctx, s.cfg.WarmUpInterval); err != nil {
			return err
		}
	}
	monitoring.Logf("acquisition: finished warming up")
	return nil
}

func (s *Scheduler) steadyRead(ctx context.Context) error {
	s.setState(SteadyRead)

	a := s.readAndDecode(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}
	s.recordOutcome(a)

	switch {
	case a.err != nil:
		return s.busFault(a.err)

	case a.outcome == pms.OK:
		snap := s.pub.Publish(a.sample)
		s.mu.Lock()
		s.status.LastPublishAt = snap.PublishedAt
		s.status.Published++
		s.mu.Unlock()
		s.metrics.published(snap)
		monitoring.Logf("acquisition: published sample #%d: %v", snap.Seq, a.sample)
		return nil

	case a.outcome == pms.NeedMoreData && a.empty:
		// One more attempt after a pause. Its result is deliberately not
		// published; the previous sample stays current.
		if err := s.clock.SleepContext(ctx, s.cfg.RetryDelay); err != nil {
			return err
		}
		retry := s.readAndDecode(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		s.recordOutcome(retry)
		s.mu.Lock()
		s.status.DiscardedRetries++
		s.mu.Unlock()
		s.metrics.discardedRetry()
		if retry.err != nil {
			return s.busFault(retry.err)
		}
		monitoring.Logf("acquisition: no data on steady read; retry ended %s, result not published", retry.outcome)
		return nil

	default:
		monitoring.Logf("acquisition: steady read ended %s after %d reads; keeping previous sample", a.outcome, a.reads)
		return nil
	}
}

// attempt is the result of one read-and-decode attempt.
type attempt struct {
	sample  pms.Sample
	outcome pms.Outcome
	reads   int
	// empty is set when the last bus read returned nothing
	empty bool
	err   error
}

// readAndDecode reads from the bus and feeds the decoder until it yields a
// sample, the bus goes quiet, a bus error occurs or MaxReadsPerAttempt
// reads have been made. Resync and checksum failures back off for
// RetryDelay before the next read.
func (s *Scheduler) readAndDecode(ctx context.Context) attempt {
	a := attempt{outcome: pms.NeedMoreData}
	for a.reads < s.cfg.MaxReadsPerAttempt {
		chunk, err := s.bus.Read(pms.FrameSize)
		a.reads++
		if err != nil {
			a.err = err
			return a
		}

		a.empty = len(chunk) == 0
		a.sample, a.outcome = s.buf.Feed(chunk)
		s.metrics.outcome(a.outcome.String())

		switch a.outcome {
		case pms.OK:
			return a
		case pms.NeedMoreData:
			if a.empty {
				return a
			}
		case pms.Resync, pms.ChecksumMismatch:
			if err := s.clock.SleepContext(ctx, s.cfg.RetryDelay); err != nil {
				return a
			}
		}
	}
	return a
}

func (s *Scheduler) recordOutcome(a attempt) {
	label := a.outcome.String()
	if a.err != nil {
		label = outcomeBusFault
	}
	s.mu.Lock()
	s.status.LastOutcome = label
	s.mu.Unlock()
}

func (s *Scheduler) busFault(err error) error {
	s.mu.Lock()
	s.status.BusFaults++
	s.status.LastOutcome = outcomeBusFault
	s.mu.Unlock()
	s.metrics.busFault()
	return fmt.Errorf("%w: %w", ErrBusFault, err)
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.State = st
	if st != WarmUp {
		s.status.WarmUpRead = 0
	}
}
