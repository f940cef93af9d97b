package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/finnstutzenstein/adcpd/internal/adcp"
)

func TestBuildCommandCreate(t *testing.T) {
	buf, err := buildCommand([]string{"create", "1", "2", "1", "16"})
	require.NoError(t, err)
	require.Equal(t, []byte{
		byte(adcp.PrefixMeasurement), adcp.MeasurementCreate,
		1, 2, 1, 16, 0,
	}, buf)
}

func TestBuildCommandOneshot(t *testing.T) {
	buf, err := buildCommand([]string{"oneshot", "3"})
	require.NoError(t, err)
	require.Equal(t, []byte{byte(adcp.PrefixMeasurement), adcp.MeasurementOneshot, 3}, buf)
}

func TestBuildCommandRaw(t *testing.T) {
	buf, err := buildCommand([]string{"raw", "0x40", "0x00"})
	require.NoError(t, err)
	require.Equal(t, []byte{byte(adcp.PrefixADC), adcp.ADCReset}, buf)
}

func TestBuildCommandRejectsWrongArity(t *testing.T) {
	_, err := buildCommand([]string{"create", "1"})
	require.Error(t, err)

	_, err = buildCommand([]string{"bogus"})
	require.Error(t, err)
}
