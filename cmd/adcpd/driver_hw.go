//go:build adchw

package main

import (
	"github.com/finnstutzenstein/adcpd/internal/adc"
	"github.com/finnstutzenstein/adcpd/internal/adc/adchw"
)

// newDriver binds to a real ADS1262 over SPI/GPIO. spiPort selects the
// SPI device node; gpioChip and drdyLine are fixed to the board wiring
// this package was built for.
func newDriver(spiPort string) (adc.Driver, error) {
	return adchw.Open(adchw.Config{
		SPIPort:  spiPort,
		GPIOChip: "gpiochip0",
		DRDYLine: 17,
	})
}
