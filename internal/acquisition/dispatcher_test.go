package acquisition_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/finnstutzenstein/adcpd/internal/acquisition"
	"github.com/finnstutzenstein/adcpd/internal/adc"
	"github.com/finnstutzenstein/adcpd/internal/adcp"
	"github.com/finnstutzenstein/adcpd/internal/measurement"
	"github.com/finnstutzenstein/adcpd/internal/streaming"
)

type noConns struct{}

func (noConns) Active() []streaming.Connection { return nil }

func newDispatcher(t *testing.T) (*acquisition.Dispatcher, *measurement.Registry) {
	t.Helper()
	reg := measurement.NewRegistry()
	eng := streaming.NewEngine(noConns{}, nil)
	d := acquisition.New(adc.NewSimulated(), reg, eng, nil)
	reg.SetGate(d)
	return d, reg
}

func TestStartRejectsWhenNoMeasurements(t *testing.T) {
	d, _ := newDispatcher(t)
	err := d.Start(context.Background(), 100)
	require.ErrorIs(t, err, acquisition.ErrNoMeasurements)
}

func TestStartRejectsWhenNoneEnabled(t *testing.T) {
	d, reg := newDispatcher(t)
	_, err := reg.Create(0, 1, false, 0)
	require.NoError(t, err)

	err = d.Start(context.Background(), 100)
	require.ErrorIs(t, err, acquisition.ErrNoEnabledMeasurement)
}

func TestStartThenStopRoundTrips(t *testing.T) {
	d, reg := newDispatcher(t)
	_, err := reg.Create(0, 1, true, 0)
	require.NoError(t, err)

	require.NoError(t, d.Start(context.Background(), 1000))
	require.Equal(t, acquisition.StateRunning, d.State())

	time.Sleep(20 * time.Millisecond)
	d.Stop()
	require.Equal(t, acquisition.StateIdle, d.State())
}

func TestRegistryRejectsMutationWhileActive(t *testing.T) {
	d, reg := newDispatcher(t)
	id, err := reg.Create(0, 1, true, 0)
	require.NoError(t, err)

	require.NoError(t, d.Start(context.Background(), 1000))
	defer d.Stop()

	err = reg.SetEnabled(id, false)
	require.ErrorIs(t, err, measurement.ErrActive)
}

func TestOneshotReturnsNoSuchMeasurement(t *testing.T) {
	d, _ := newDispatcher(t)
	_, err := d.Oneshot(context.Background(), 3)
	require.ErrorIs(t, err, acquisition.ErrNoSuchMeasurement)
}

func TestOneshotCompletesAndReturnsToIdle(t *testing.T) {
	d, reg := newDispatcher(t)
	id, err := reg.Create(0, 1, true, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
	defer cancel()
	_, err = d.Oneshot(ctx, id)
	require.NoError(t, err)
	require.Equal(t, acquisition.StateIdle, d.State())
}

func TestOneshotRejectedWhileRunning(t *testing.T) {
	d, reg := newDispatcher(t)
	id, err := reg.Create(0, 1, true, 0)
	require.NoError(t, err)

	require.NoError(t, d.Start(context.Background(), 1000))
	defer d.Stop()

	_, err = d.Oneshot(context.Background(), id)
	require.ErrorIs(t, err, acquisition.ErrMeasurementActive)
}

func TestResponseForMapsKnownErrors(t *testing.T) {
	require.Equal(t, adcp.ResponseOK, acquisition.ResponseFor(nil))
	require.Equal(t, adcp.ResponseMeasurementActive, acquisition.ResponseFor(acquisition.ErrMeasurementActive))
	require.Equal(t, adcp.ResponseNoSuchMeasurement, acquisition.ResponseFor(acquisition.ErrNoSuchMeasurement))
}
