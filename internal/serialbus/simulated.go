package serialbus

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/banshee-data/airquality.report/internal/pms"
)

// SimulatedSensor stands in for a PMS5003 in dev mode. It emits one valid
// frame per FrameInterval carrying a slowly drifting reading, sometimes
// preceded by line noise and sometimes with a corrupted checksum, so the
// decoder's resync paths get exercised without hardware.
type SimulatedSensor struct {
	FrameInterval time.Duration
	// NoiseRate and CorruptRate are probabilities in [0, 1].
	NoiseRate   float64
	CorruptRate float64

	mu          sync.Mutex
	rng         *rand.Rand
	pending     []byte
	nextFrame   time.Time
	readTimeout time.Duration
	closed      bool
	base        float64
}

// NewSimulatedSensor returns a sensor with PMS5003-like timing.
func NewSimulatedSensor(seed uint64) *SimulatedSensor {
	return &SimulatedSensor{
		FrameInterval: time.Second,
		NoiseRate:     0.1,
		CorruptRate:   0.02,
		rng:           rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		base:          12,
	}
}

func (s *SimulatedSensor) Read(p []byte) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, errPortClosed
	}
	if len(s.pending) == 0 {
		wait := time.Until(s.nextFrame)
		if wait > 0 {
			if s.readTimeout > 0 && wait > s.readTimeout {
				wait = s.readTimeout
			}
			s.mu.Unlock()
			time.Sleep(wait)
			s.mu.Lock()
		}
		if !time.Now().Before(s.nextFrame) {
			s.pending = s.generate()
			s.nextFrame = time.Now().Add(s.FrameInterval)
		}
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	s.mu.Unlock()
	return n, nil
}

// generate builds the bytes for the next frame. Callers hold s.mu.
func (s *SimulatedSensor) generate() []byte {
	s.base += s.rng.NormFloat64()
	s.base = min(max(s.base, 1), 400)

	pm25 := s.base
	sample := pms.Sample{
		PM1_0:          uint16(pm25 * 0.7),
		PM2_5:          uint16(pm25),
		PM10:           uint16(pm25 * 1.3),
		Particles0_3um: uint16(pm25 * 180),
		Particles0_5um: uint16(pm25 * 52),
		Particles1_0um: uint16(pm25 * 9),
		Particles2_5um: uint16(pm25 * 0.8),
		Particles5_0um: uint16(pm25 * 0.2),
		Particles10um:  uint16(pm25 * 0.05),
	}

	var out []byte
	if s.rng.Float64() < s.NoiseRate {
		noise := make([]byte, 1+s.rng.IntN(6))
		for i := range noise {
			noise[i] = byte(s.rng.IntN(256))
		}
		out = append(out, noise...)
	}
	frame := pms.EncodeFrame(sample)
	if s.rng.Float64() < s.CorruptRate {
		frame[pms.FrameSize-1] ^= 0x5A
	}
	return append(out, frame...)
}

func (s *SimulatedSensor) Write(p []byte) (int, error) { return len(p), nil }

func (s *SimulatedSensor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.pending = nil
	return nil
}

func (s *SimulatedSensor) SetReadTimeout(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readTimeout = timeout
	return nil
}

// SimulatedPortFactory hands out a single SimulatedSensor, reopening it on
// every Open as a power cycle would.
type SimulatedPortFactory struct {
	Sensor *SimulatedSensor
}

func (f SimulatedPortFactory) Open(_ string, mode SerialPortMode) (SerialPorter, error) {
	f.Sensor.mu.Lock()
	f.Sensor.closed = false
	f.Sensor.pending = nil
	f.Sensor.nextFrame = time.Now().Add(f.Sensor.FrameInterval)
	f.Sensor.mu.Unlock()

	if err := f.Sensor.SetReadTimeout(mode.ReadTimeout); err != nil {
		return nil, err
	}
	return f.Sensor, nil
}
