// Package acquisition implements the acquisition dispatcher of spec
// §4.5 — the DRDY-interrupt equivalent. The original firmware runs this
// as a non-suspending ISR; here it is a goroutine fed by the ADC
// driver's sample channel, preserving the same non-blocking contract:
// the dispatch loop must never take a blocking lock and may only enqueue
// into bounded, non-blocking structures (valuebuffer.Buffer and
// streaming.Engine.Send, both allocation-free on the hot path).
package acquisition

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/finnstutzenstein/adcpd/internal/adc"
	"github.com/finnstutzenstein/adcpd/internal/adcp"
	"github.com/finnstutzenstein/adcpd/internal/fftmath"
	"github.com/finnstutzenstein/adcpd/internal/measurement"
	"github.com/finnstutzenstein/adcpd/internal/streaming"
	"github.com/finnstutzenstein/adcpd/internal/valuebuffer"
	"github.com/finnstutzenstein/adcpd/internal/watchdog"
)

// Errors returned by the ADCP-facing control operations, named to match
// the adcp.ResponseCode they map onto in the command handlers.
var (
	ErrNoMeasurements       = errors.New("acquisition: no measurements defined")
	ErrNoEnabledMeasurement = errors.New("acquisition: no enabled measurement")
	ErrMeasurementActive    = errors.New("acquisition: measurement already active")
	ErrNoSuchMeasurement    = errors.New("acquisition: no such measurement")
	ErrCalibrationTimeout   = errors.New("acquisition: calibration/one-shot timed out")
	ErrFFTNoMemory          = errors.New("acquisition: fft arena exhausted")
)

// minTimeout is the floor spec §4.8 sets for the one-shot wait: at least
// 3 seconds regardless of averaging count.
const minTimeout = 3 * time.Second

// calibrationTimeout is the fixed wait for offset/scale calibration.
const calibrationTimeout = 10 * time.Second

// Dispatcher owns the acquisition state machine, the value-buffer
// packer, and the FFT feed, translating DRDY-equivalent sample events
// from an adc.Driver into DATA/FFT streaming traffic.
type Dispatcher struct {
	driver   adc.Driver
	registry *measurement.Registry
	vb       *valuebuffer.Buffer
	fft      *fftmath.Engine
	wd       *watchdog.Watchdog
	stream   *streaming.Engine

	// OnStateChange is invoked (if non-nil) after every state
	// transition, so the state controller can rebuild and broadcast
	// CompleteState (spec §4.6). It must not block.
	OnStateChange func()
	// OnADCReset is invoked when the ADC reports an internal reset
	// (spec §4.5 step 3), before acquisition is stopped.
	OnADCReset func()

	// OnFlush, if set, receives every value-buffer payload alongside its
	// delivery to the data stream — wired by the daemon to an optional
	// archival writer (spec §12 supplement).
	OnFlush func(payload []byte)

	mu         sync.Mutex
	state      State
	currentIdx int
	enabled    []*measurement.Channel
	samplerate float64

	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Dispatcher wired to its collaborators. fft may be nil
// if no channel ever attaches an FFT instance (tests, minimal configs).
func New(driver adc.Driver, registry *measurement.Registry, stream *streaming.Engine, fft *fftmath.Engine) *Dispatcher {
	d := &Dispatcher{
		driver:   driver,
		registry: registry,
		stream:   stream,
		fft:      fft,
	}
	d.vb = valuebuffer.New(func(payload []byte) {
		if d.OnFlush != nil {
			d.OnFlush(payload)
		}
		if err := d.stream.Send(streaming.StreamData, payload, nil); err != nil {
			d.handleStreamingFailure()
		}
	})
	d.wd = watchdog.New(d.onWatchdogExpire)
	return d
}

// Active implements measurement.ActiveGate: config mutations are
// rejected whenever the dispatcher is not IDLE.
func (d *Dispatcher) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state != StateIdle
}

// State returns the current acquisition state.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Dispatcher) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
	if d.OnStateChange != nil {
		d.OnStateChange()
	}
}

// Start begins continuous acquisition over the enabled channel set, per
// spec §4.5/§4.6. samplerate drives both the ADC conversion rate and the
// watchdog deadline (spec §7).
func (d *Dispatcher) Start(ctx context.Context, samplerate float64) error {
	d.mu.Lock()
	if d.state != StateIdle {
		d.mu.Unlock()
		return ErrMeasurementActive
	}
	enabled := d.registry.EnabledInOrder()
	if d.registry.Count() == 0 {
		d.mu.Unlock()
		return ErrNoMeasurements
	}
	if len(enabled) == 0 {
		d.mu.Unlock()
		return ErrNoEnabledMeasurement
	}
	d.enabled = enabled
	d.currentIdx = 0
	d.samplerate = samplerate
	d.state = StateRunning
	d.mu.Unlock()

	if d.fft != nil {
		d.fft.SetActive(true)
	}

	if err := d.driver.SetSamplerate(samplerate); err != nil {
		d.mu.Lock()
		d.state = StateIdle
		d.mu.Unlock()
		return err
	}
	if err := d.driver.SetInputMux(enabled[0].Mux()); err != nil {
		d.mu.Lock()
		d.state = StateIdle
		d.mu.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})

	if err := d.driver.Start(runCtx); err != nil {
		cancel()
		d.mu.Lock()
		d.state = StateIdle
		d.mu.Unlock()
		return err
	}

	d.wd.Start(samplerate)
	go d.runLoop(runCtx)

	if d.OnStateChange != nil {
		d.OnStateChange()
	}
	return nil
}

// Stop halts acquisition, flushing any partially filled value buffer per
// spec §4.5's drop-last-sample rule (DESIGN.md open-question (b)).
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	wasRunning := d.state == StateRunning
	d.state = StateIdle
	cancel := d.cancel
	done := d.done
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	_ = d.driver.Stop()
	d.wd.Stop()
	if d.fft != nil {
		d.fft.SetActive(false)
	}
	if done != nil {
		<-done
	}

	if wasRunning {
		d.vb.DropLastAndFlush()
	}

	if d.OnStateChange != nil {
		d.OnStateChange()
	}
}

// runLoop is the continuous-mode ISR-equivalent: one iteration per
// sample delivered by the driver.
func (d *Dispatcher) runLoop(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-d.driver.Samples():
			if !ok {
				return
			}
			d.onSample(s)
		}
	}
}

// onSample implements spec §4.5 steps 1-7 for the RUNNING state.
func (d *Dispatcher) onSample(s adc.Sample) {
	now := CurrentTick()

	if s.Status&adc.StatusReset != 0 {
		if d.OnADCReset != nil {
			d.OnADCReset()
		}
		d.Stop()
		return
	}

	d.wd.Reset()

	d.mu.Lock()
	if d.state != StateRunning || len(d.enabled) == 0 {
		d.mu.Unlock()
		return
	}
	ch := d.enabled[d.currentIdx]
	d.mu.Unlock()

	value, emit := ch.AccumulateAverage(s.Raw)
	if emit {
		idAndStatus := valuebuffer.EncodeIDAndStatus(ch.ID, s.Status)
		d.vb.Append(idAndStatus, value, uint64(now))

		if ch.FFT != nil && ch.FFT.Enabled && d.fft != nil {
			if frame, ready := ch.FFT.NewValue(value, now); ready {
				d.fft.Submit(ch.ID, ch.FFT, frame)
			}
		}
	}

	d.advanceCursor()
}

// advanceCursor implements spec §4.5 step 7: move to the next enabled
// channel, reprogramming the input mux only if it actually changes.
func (d *Dispatcher) advanceCursor() {
	d.mu.Lock()
	n := len(d.enabled)
	if n == 0 {
		d.mu.Unlock()
		return
	}
	next := (d.currentIdx + 1) % n
	changed := next != d.currentIdx
	d.currentIdx = next
	nextCh := d.enabled[next]
	d.mu.Unlock()

	if changed {
		_ = d.driver.SetInputMux(nextCh.Mux())
	}
}

// onWatchdogExpire implements spec §7 family 3: a watchdog timeout
// produces the same effect as an ADC-reported reset, latching ADC_RESET
// for every other command until ADC.RESET runs.
func (d *Dispatcher) onWatchdogExpire() {
	if d.OnADCReset != nil {
		d.OnADCReset()
	}
	d.Stop()
}

func (d *Dispatcher) handleStreamingFailure() {
	// spec §4.7: descriptor pool exhaustion on the value-buffer flush
	// stops acquisition; the streaming engine has already triggered its
	// own flush via onFlushNeeded.
	go d.Stop()
}

// Oneshot implements spec §4.8's single-sample synchronous path.
func (d *Dispatcher) Oneshot(ctx context.Context, id int) (int32, error) {
	ch, err := d.registry.Get(id)
	if err != nil {
		return 0, ErrNoSuchMeasurement
	}

	d.mu.Lock()
	if d.state != StateIdle {
		d.mu.Unlock()
		return 0, ErrMeasurementActive
	}
	d.state = StateOneshot
	d.currentIdx = 0
	d.enabled = []*measurement.Channel{ch}
	d.mu.Unlock()
	if d.OnStateChange != nil {
		d.OnStateChange()
	}
	defer func() {
		d.mu.Lock()
		d.state = StateIdle
		d.mu.Unlock()
		if d.OnStateChange != nil {
			d.OnStateChange()
		}
	}()

	if err := d.driver.SetInputMux(ch.Mux()); err != nil {
		return 0, err
	}

	timeout := time.Duration(ch.Averaging) * time.Second
	if timeout < minTimeout {
		timeout = minTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resultCh := make(chan int32, 1)
	if err := d.driver.Start(runCtx); err != nil {
		return 0, err
	}
	defer d.driver.Stop()

	go func() {
		for {
			select {
			case <-runCtx.Done():
				return
			case s, ok := <-d.driver.Samples():
				if !ok {
					return
				}
				if s.Status&adc.StatusReset != 0 {
					return
				}
				if v, emit := ch.AccumulateAverage(s.Raw); emit {
					select {
					case resultCh <- v:
					default:
					}
					return
				}
			}
		}
	}()

	select {
	case v := <-resultCh:
		return v, nil
	case <-runCtx.Done():
		return 0, ErrCalibrationTimeout
	}
}

// CalibrationType selects which ADS1262 self-calibration command to run.
type CalibrationType int

const (
	CalibrationOffset CalibrationType = iota
	CalibrationScale
)

// Calibrate implements spec §4.8's offset/scale calibration path.
func (d *Dispatcher) Calibrate(ctx context.Context, pos, neg byte, kind CalibrationType) (int32, error) {
	d.mu.Lock()
	if d.state != StateIdle {
		d.mu.Unlock()
		return 0, ErrMeasurementActive
	}
	d.state = StateCalibrating
	d.mu.Unlock()
	if d.OnStateChange != nil {
		d.OnStateChange()
	}
	defer func() {
		d.mu.Lock()
		d.state = StateIdle
		d.mu.Unlock()
		if d.OnStateChange != nil {
			d.OnStateChange()
		}
	}()

	if err := d.driver.SetInputMux((pos << 4) | (neg & 0x0F)); err != nil {
		return 0, err
	}

	runCtx, cancel := context.WithTimeout(ctx, calibrationTimeout)
	defer cancel()

	if err := d.driver.Start(runCtx); err != nil {
		return 0, err
	}
	defer d.driver.Stop()

	var cmdErr error
	if kind == CalibrationOffset {
		cmdErr = d.driver.SendOffsetCalibrationCommand()
	} else {
		cmdErr = d.driver.SendScaleCalibrationCommand()
	}
	if cmdErr != nil {
		return 0, cmdErr
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-runCtx.Done():
				return
			case s, ok := <-d.driver.Samples():
				if !ok || s.Status&adc.StatusReset != 0 {
					return
				}
				// One conversion result signals completion of the
				// self-calibration command cycle (spec §4.8 step 4).
				return
			}
		}
	}()

	select {
	case <-done:
	case <-runCtx.Done():
		return 0, ErrCalibrationTimeout
	}

	if kind == CalibrationOffset {
		return d.driver.ReadCalibrationOffset()
	}
	return d.driver.ReadCalibrationScale()
}

// ResponseFor maps a Dispatcher control error onto the ADCP response
// code the command handlers return to the client.
func ResponseFor(err error) adcp.ResponseCode {
	switch {
	case err == nil:
		return adcp.ResponseOK
	case errors.Is(err, ErrNoMeasurements):
		return adcp.ResponseNoMeasurements
	case errors.Is(err, ErrNoEnabledMeasurement):
		return adcp.ResponseNoEnabledMeasurement
	case errors.Is(err, ErrMeasurementActive):
		return adcp.ResponseMeasurementActive
	case errors.Is(err, ErrNoSuchMeasurement):
		return adcp.ResponseNoSuchMeasurement
	case errors.Is(err, ErrCalibrationTimeout):
		return adcp.ResponseCalibrationTimeout
	case errors.Is(err, ErrFFTNoMemory):
		return adcp.ResponseFFTNoMemory
	default:
		return adcp.ResponseWrongArgument
	}
}
