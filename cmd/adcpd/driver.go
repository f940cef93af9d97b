//go:build !adchw

package main

import "github.com/finnstutzenstein/adcpd/internal/adc"

// newDriver returns the default, dependency-free driver. Build with
// -tags adchw on target hardware to bind to a real ADS1262 instead.
func newDriver(_ string) (adc.Driver, error) {
	return adc.NewSimulated(), nil
}
