// Package measurement implements the measurement-channel registry: the
// lifecycle of channel definitions (create/delete/configure) and their
// attached FFT instances, per spec §3/§4.6.
package measurement

import (
	"errors"

	"github.com/finnstutzenstein/adcpd/internal/fftmath"
)

// MaxMeasurements bounds the number of simultaneously defined channels
// (spec §3: id in [0, MAX_MEASUREMENTS=10)).
const MaxMeasurements = 10

var (
	// ErrActive is returned by every mutating operation while
	// acquisition is running — channel config may only change at IDLE.
	ErrActive = errors.New("measurement: acquisition active")
	// ErrNotFound is returned when id does not name a live channel.
	ErrNotFound = errors.New("measurement: no such measurement")
	// ErrFull is returned by Create when the registry has no free slot.
	ErrFull = errors.New("measurement: too many measurements")
	// ErrInvalidAveraging is returned when averaging_step would not be
	// less than averaging_count.
	ErrInvalidAveraging = errors.New("measurement: invalid averaging parameters")
)

// ActiveGate reports whether acquisition currently holds the ADC (RUNNING,
// ONESHOT, or CALIBRATING) — mutations are rejected while true. Satisfied
// by *acquisition.Dispatcher; kept as an interface here to avoid an
// import cycle between acquisition and measurement.
type ActiveGate interface {
	Active() bool
}

// Channel is one measurement's live state.
type Channel struct {
	ID        int
	Pos, Neg  byte // ADC input pin codes
	Enabled   bool
	Averaging uint16 // N
	avgSum    int64
	avgStep   uint16

	FFT *fftmath.Instance // nil until an FFT is attached
}

// Mux returns the packed ADC input-mux byte for this channel.
func (c *Channel) Mux() byte {
	return (c.Pos << 4) | (c.Neg & 0x0F)
}

// AccumulateAverage folds one raw sample into the running average. It
// returns (value, true) once averaging_step reaches Averaging, having
// reset the accumulator; otherwise (0, false). Averaging==0 means no
// averaging: every sample is emitted immediately.
func (c *Channel) AccumulateAverage(raw int32) (int32, bool) {
	if c.Averaging == 0 {
		return raw, true
	}
	c.avgSum += int64(raw)
	c.avgStep++
	if c.avgStep < c.Averaging {
		return 0, false
	}
	// (sum+0.5)/N as a float, truncated toward zero by the int32
	// conversion like the original C cast, per spec §9's resolved open
	// question (a) and DESIGN.md. This is not round-half-up of the mean:
	// sum=6, N=4 yields 1.
	avg := int32((float64(c.avgSum) + 0.5) / float64(c.Averaging))
	c.avgSum = 0
	c.avgStep = 0
	return avg, true
}

// Registry holds the live set of Channels and enforces the
// idle-only-mutation rule.
type Registry struct {
	gate     ActiveGate
	channels [MaxMeasurements]*Channel
}

// NewRegistry returns an empty registry. SetGate must be called before
// any mutating call if acquisition-active rejection is desired; a nil
// gate permits all mutations (useful in isolated tests).
func NewRegistry() *Registry {
	return &Registry{}
}

// SetGate wires the acquisition-active check.
func (r *Registry) SetGate(g ActiveGate) { r.gate = g }

func (r *Registry) checkIdle() error {
	if r.gate != nil && r.gate.Active() {
		return ErrActive
	}
	return nil
}

// Create allocates a channel, returning its slot index as the id.
func (r *Registry) Create(pos, neg byte, enabled bool, averaging uint16) (int, error) {
	if err := r.checkIdle(); err != nil {
		return 0, err
	}
	for i := range r.channels {
		if r.channels[i] == nil {
			r.channels[i] = &Channel{
				ID:        i,
				Pos:       pos,
				Neg:       neg,
				Enabled:   enabled,
				Averaging: averaging,
			}
			return i, nil
		}
	}
	return 0, ErrFull
}

// CreateAt recreates a channel at a specific id, used only by state
// reload (spec §4.6) where the persisted descriptor's id must survive the
// round trip rather than being reassigned to the first free slot.
func (r *Registry) CreateAt(id int, pos, neg byte, enabled bool, averaging uint16) error {
	if err := r.checkIdle(); err != nil {
		return err
	}
	if id < 0 || id >= MaxMeasurements {
		return ErrNotFound
	}
	if r.channels[id] != nil {
		return ErrFull
	}
	r.channels[id] = &Channel{
		ID:        id,
		Pos:       pos,
		Neg:       neg,
		Enabled:   enabled,
		Averaging: averaging,
	}
	return nil
}

// Delete removes a channel.
func (r *Registry) Delete(id int) error {
	if err := r.checkIdle(); err != nil {
		return err
	}
	ch, err := r.get(id)
	if err != nil {
		return err
	}
	_ = ch
	r.channels[id] = nil
	return nil
}

// Get returns the channel for id, or ErrNotFound.
func (r *Registry) Get(id int) (*Channel, error) { return r.get(id) }

func (r *Registry) get(id int) (*Channel, error) {
	if id < 0 || id >= MaxMeasurements || r.channels[id] == nil {
		return nil, ErrNotFound
	}
	return r.channels[id], nil
}

// SetInputs reprograms a channel's pos/neg pins.
func (r *Registry) SetInputs(id int, pos, neg byte) error {
	if err := r.checkIdle(); err != nil {
		return err
	}
	ch, err := r.get(id)
	if err != nil {
		return err
	}
	ch.Pos, ch.Neg = pos, neg
	return nil
}

// SetEnabled toggles a channel's participation in the mux rotation.
func (r *Registry) SetEnabled(id int, enabled bool) error {
	if err := r.checkIdle(); err != nil {
		return err
	}
	ch, err := r.get(id)
	if err != nil {
		return err
	}
	ch.Enabled = enabled
	return nil
}

// SetAveraging reprograms a channel's averaging count, resetting any
// in-progress accumulation.
func (r *Registry) SetAveraging(id int, averaging uint16) error {
	if err := r.checkIdle(); err != nil {
		return err
	}
	ch, err := r.get(id)
	if err != nil {
		return err
	}
	ch.Averaging = averaging
	ch.avgSum = 0
	ch.avgStep = 0
	return nil
}

// AttachFFT records the FFT instance for a channel (created disabled, per
// spec §4.6 — FFT.SET_ENABLED turns it on separately).
func (r *Registry) AttachFFT(id int, inst *fftmath.Instance) error {
	ch, err := r.get(id)
	if err != nil {
		return err
	}
	ch.FFT = inst
	return nil
}

// EnabledInOrder returns the enabled channels in ascending id order — the
// round-robin set the acquisition dispatcher rotates across (spec §4.5).
func (r *Registry) EnabledInOrder() []*Channel {
	var out []*Channel
	for _, ch := range r.channels {
		if ch != nil && ch.Enabled {
			out = append(out, ch)
		}
	}
	return out
}

// EnabledOrDisabledInIDOrder returns every defined channel (enabled or
// not) in ascending id order, for state-snapshot purposes.
func (r *Registry) EnabledOrDisabledInIDOrder() []*Channel {
	var out []*Channel
	for _, ch := range r.channels {
		if ch != nil {
			out = append(out, ch)
		}
	}
	return out
}

// Count returns the number of defined (not necessarily enabled) channels.
func (r *Registry) Count() int {
	n := 0
	for _, ch := range r.channels {
		if ch != nil {
			n++
		}
	}
	return n
}
