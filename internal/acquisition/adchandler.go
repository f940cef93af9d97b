package acquisition

import (
	"sync"

	"github.com/finnstutzenstein/adcpd/internal/adc"
	"github.com/finnstutzenstein/adcpd/internal/adcp"
	"github.com/finnstutzenstein/adcpd/internal/adcstate"
)

// samplerateByCode maps the wire-level ADC.SET_SAMPLERATE byte to a
// requested sample rate, the inverse of adchw's samplerateCode table
// (spec §6 leaves the byte's meaning to the driver; this mirrors the
// ADS1262 MODE2 rate field so the simulated driver and the real one
// agree on what each code means).
var samplerateByCode = [...]float64{
	2.5, 5, 10, 16.6, 20, 50, 60, 100, 400, 1200, 2400, 4800, 7200, 14400, 19200, 38400,
}

// ADCHandlers adapts an adc.Driver onto adcp.ADCHandler and tracks the
// ADC-reset latch (spec §7 family 3 / §8 scenario 6): once set, it stays
// set until Reset() runs, and is consulted by adcp.Dispatcher via
// SetResetLatch so every other command is rejected with ADC_RESET in the
// meantime.
type ADCHandlers struct {
	Driver adc.Driver

	// OnReset, if set, runs after the driver has been reset and the
	// latch cleared, so the daemon can reprogram the driver from the
	// current persisted ADCState.
	OnReset func()

	mu           sync.Mutex
	latched      bool
	samplerateSr byte
	sps          float64
	filter       byte
	gain         byte
	internal     bool
	refVoltage   uint32
	refPins      byte
}

// Latch marks an ADC-reset condition, called from
// acquisition.Dispatcher.OnADCReset.
func (h *ADCHandlers) Latch() {
	h.mu.Lock()
	h.latched = true
	h.mu.Unlock()
}

// Latched reports whether a reset is currently outstanding; wired to
// adcp.Dispatcher.SetResetLatch.
func (h *ADCHandlers) Latched() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latched
}

func (h *ADCHandlers) Reset() adcp.ResponseCode {
	if err := h.Driver.Reset(); err != nil {
		return adcp.ResponseWrongArgument
	}
	h.mu.Lock()
	h.latched = false
	h.mu.Unlock()
	if h.OnReset != nil {
		h.OnReset()
	}
	return adcp.ResponseOK
}

func (h *ADCHandlers) SetSamplerate(sr byte) adcp.ResponseCode {
	if int(sr) >= len(samplerateByCode) {
		return adcp.ResponseWrongArgument
	}
	sps := samplerateByCode[sr]
	if err := h.Driver.SetSamplerate(sps); err != nil {
		return adcp.ResponseWrongArgument
	}
	h.mu.Lock()
	h.samplerateSr, h.sps = sr, sps
	h.mu.Unlock()
	return adcp.ResponseOK
}

func (h *ADCHandlers) SetFilter(f byte) adcp.ResponseCode {
	if err := h.Driver.SetFilter(f); err != nil {
		return adcp.ResponseWrongArgument
	}
	h.mu.Lock()
	h.filter = f
	h.mu.Unlock()
	return adcp.ResponseOK
}

func (h *ADCHandlers) SetGain(g byte) adcp.ResponseCode {
	if err := h.Driver.SetGain(g); err != nil {
		return adcp.ResponseWrongArgument
	}
	h.mu.Lock()
	h.gain = g
	h.mu.Unlock()
	return adcp.ResponseOK
}

func (h *ADCHandlers) BypassPGA() adcp.ResponseCode {
	if err := h.Driver.BypassPGA(); err != nil {
		return adcp.ResponseWrongArgument
	}
	h.mu.Lock()
	h.gain = 0xFF
	h.mu.Unlock()
	return adcp.ResponseOK
}

func (h *ADCHandlers) SetReferenceInternal() adcp.ResponseCode {
	if err := h.Driver.EnableInternalReference(); err != nil {
		return adcp.ResponseWrongArgument
	}
	h.mu.Lock()
	h.internal = true
	h.refVoltage = adcstate.CanonicalInternalRefVoltage10nV
	h.mu.Unlock()
	return adcp.ResponseOK
}

func (h *ADCHandlers) SetReferenceExternal(refPins byte, vRef10nV uint32) adcp.ResponseCode {
	pos := refPins >> 4
	neg := refPins & 0x0F
	if err := h.Driver.SetReference(pos, neg, vRef10nV); err != nil {
		return adcp.ResponseWrongReferencePins
	}
	if err := h.Driver.DisableInternalReference(); err != nil {
		return adcp.ResponseWrongArgument
	}
	h.mu.Lock()
	h.internal = false
	h.refVoltage = vRef10nV
	h.refPins = refPins
	h.mu.Unlock()
	return adcp.ResponseOK
}

// Samplerate returns the last-programmed sample rate in SPS, defaulting
// to the ADS1262 power-on rate of 20 SPS (spec §6), for
// MeasurementHandlers.Samplerate.
func (h *ADCHandlers) Samplerate() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sps == 0 {
		return 20
	}
	return h.sps
}

// Snapshot reports the ADC register half of CompleteState as last
// programmed through this handler; the daemon fills in Started and
// SlowConnection from the acquisition dispatcher and streaming engine,
// and adcstate.FromRegistry sets MeasurementCount. The calibration fields
// are left zero.
func (h *ADCHandlers) Snapshot() adcstate.ADCState {
	h.mu.Lock()
	defer h.mu.Unlock()
	refVoltage := h.refVoltage
	if refVoltage == 0 {
		refVoltage = adcstate.CanonicalInternalRefVoltage10nV
	}
	return adcstate.ADCState{
		InternalReference: h.internal || h.refVoltage == 0,
		ADCReset:          h.latched,
		SamplerateFilter:  h.filter,
		Gain:              h.gain,
		ReferenceVoltage:  refVoltage,
		ReferencePins:     h.refPins,
	}
}

// Apply reprograms the driver from a previously persisted or default
// ADCState, used on boot and after ADC.RESET (spec §4.6, §8 scenario 6).
func (h *ADCHandlers) Apply(a adcstate.ADCState) {
	_ = h.Driver.SetFilter(a.SamplerateFilter)
	if a.Gain == 0xFF {
		_ = h.Driver.BypassPGA()
	} else {
		_ = h.Driver.SetGain(a.Gain)
	}
	if a.InternalReference {
		_ = h.Driver.EnableInternalReference()
	} else {
		_ = h.Driver.SetReference(a.ReferencePins>>4, a.ReferencePins&0x0F, a.ReferenceVoltage)
		_ = h.Driver.DisableInternalReference()
	}

	h.mu.Lock()
	h.filter = a.SamplerateFilter
	h.gain = a.Gain
	h.internal = a.InternalReference
	h.refVoltage = a.ReferenceVoltage
	h.refPins = a.ReferencePins
	h.mu.Unlock()
}

// GetStatus reports the latched ADC-reset bit (spec §6's status byte;
// the upper alarm bits are per-sample only and have no standing value to
// report here).
func (h *ADCHandlers) GetStatus() (byte, adcp.ResponseCode) {
	var status byte
	if h.Latched() {
		status |= adc.StatusReset
	}
	return status, adcp.ResponseOK
}
