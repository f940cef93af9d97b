package adc

import (
	"context"
	"math"
	"sync"
	"time"
)

// Simulated is a deterministic, dependency-free Driver used when no real
// ADS1262 is attached (the default build; internal/adc/adchw is opt-in via a
// build tag). It generates a sine wave around mid-scale so FFT and
// averaging paths have something non-trivial to chew on.
type Simulated struct {
	mu sync.Mutex

	sps       float64
	filter    byte
	gain      byte
	pgaBypass bool
	mux       byte
	vRef10nV  uint32
	internal  bool
	calOffset int32
	calScale  int32

	samples chan Sample
	stop    chan struct{}
	running bool

	phase float64
}

// NewSimulated constructs a Simulated driver with ADS1262 power-on
// defaults (spec §6: gain=0, filter=0, 20 SPS, internal reference).
func NewSimulated() *Simulated {
	return &Simulated{
		sps:      20,
		vRef10nV: 250_000_000,
		internal: true,
		calScale: 1 << 23, // unity scale, per spec §4.6's scale convention
		samples:  make(chan Sample, 8),
	}
}

func (s *Simulated) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter, s.gain, s.pgaBypass = 0, 0, false
	s.sps = 20
	s.calOffset, s.calScale = 0, 1<<23
	s.internal = true
	s.vRef10nV = 250_000_000
	return nil
}

func (s *Simulated) SetSamplerate(sps float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sps = sps
	return nil
}

func (s *Simulated) SetFilter(f byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = f
	return nil
}

func (s *Simulated) SetGain(g byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gain = g
	s.pgaBypass = false
	return nil
}

func (s *Simulated) BypassPGA() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pgaBypass = true
	return nil
}

func (s *Simulated) SetInputMux(mux byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mux = mux
	return nil
}

func (s *Simulated) SetReference(pos, neg byte, vRef10nV uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vRef10nV = vRef10nV
	return nil
}

func (s *Simulated) EnableInternalReference() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.internal = true
	return nil
}

func (s *Simulated) DisableInternalReference() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.internal = false
	return nil
}

func (s *Simulated) SetCalibrationOffset(offset int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calOffset = offset
	return nil
}

func (s *Simulated) SetCalibrationScale(scale int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calScale = scale
	return nil
}

func (s *Simulated) SendOffsetCalibrationCommand() error { return nil }
func (s *Simulated) SendScaleCalibrationCommand() error  { return nil }

func (s *Simulated) ReadCalibrationOffset() (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calOffset, nil
}

func (s *Simulated) ReadCalibrationScale() (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calScale, nil
}

func (s *Simulated) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stop = make(chan struct{})
	sps := s.sps
	s.mu.Unlock()

	go s.run(ctx, sps, s.stop)
	return nil
}

func (s *Simulated) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	close(s.stop)
	s.running = false
	return nil
}

func (s *Simulated) run(ctx context.Context, sps float64, stop chan struct{}) {
	if sps <= 0 {
		sps = 20
	}
	period := time.Duration(float64(time.Second) / sps)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			select {
			case s.samples <- s.next():
			default:
				// DATA queue-equivalent backpressure: drop, the real
				// ADS1262 never blocks DRDY on its own FIFO either.
			}
		}
	}
}

func (s *Simulated) next() Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase += 2 * math.Pi * 1000 / 44100
	v := math.Sin(s.phase)
	raw := int32(v * float64(1<<22))
	raw += s.calOffset
	return Sample{Raw: raw, Status: 0}
}

func (s *Simulated) Samples() <-chan Sample { return s.samples }

func (s *Simulated) ReadSample(ctx context.Context) (Sample, error) {
	select {
	case <-ctx.Done():
		return Sample{}, ctx.Err()
	default:
	}
	return s.next(), nil
}
