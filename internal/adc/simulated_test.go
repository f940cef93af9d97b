package adc_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/finnstutzenstein/adcpd/internal/adc"
)

func TestSimulatedStartProducesSamples(t *testing.T) {
	d := adc.NewSimulated()
	require.NoError(t, d.SetSamplerate(1000))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, d.Start(ctx))
	defer d.Stop()

	select {
	case <-d.Samples():
	case <-time.After(time.Second):
		t.Fatal("no sample received")
	}
}

func TestSimulatedReadSampleSynchronous(t *testing.T) {
	d := adc.NewSimulated()
	s, err := d.ReadSample(context.Background())
	require.NoError(t, err)
	_ = s
}

func TestSimulatedResetRestoresDefaults(t *testing.T) {
	d := adc.NewSimulated()
	require.NoError(t, d.SetGain(5))
	require.NoError(t, d.SetCalibrationOffset(100))
	require.NoError(t, d.Reset())
	off, err := d.ReadCalibrationOffset()
	require.NoError(t, err)
	require.Zero(t, off)
	scale, err := d.ReadCalibrationScale()
	require.NoError(t, err)
	require.Equal(t, int32(1<<23), scale)
	// Reset should not error and should be callable again idempotently.
	require.NoError(t, d.Reset())
}

func TestToNanovolts(t *testing.T) {
	got := adc.ToNanovolts(1<<30, 250_000_000)
	require.InDelta(t, 125_000_000, got, 1)
}
