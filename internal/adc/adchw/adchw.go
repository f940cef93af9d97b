//go:build adchw

// Package adchw implements adc.Driver against a real ADS1262 over SPI,
// with DRDY edge events delivered through a Linux GPIO character device.
// It is built only with the adchw tag; the default build uses
// adc.Simulated instead.
package adchw

import (
	"context"
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"

	"github.com/finnstutzenstein/adcpd/internal/adc"
)

// Register addresses and command opcodes per the ADS1262 datasheet.
// Only the subset the driver needs is named here.
const (
	cmdRESET = 0x06
	cmdSTART = 0x08
	cmdSTOP  = 0x0A
	cmdRDATA = 0x12
	cmdSYOCAL = 0x16
	cmdSYGCAL = 0x17
	cmdWREG   = 0x40

	regPOWER = 0x01
	regMODE0 = 0x02
	regMODE2 = 0x04
	regINPMUX = 0x05
	regOFCAL0 = 0x07
	regFSCAL0 = 0x0A
	regREFMUX = 0x0D
)

// Driver drives an ADS1262 over SPI mode 1 (CPOL=0, CPHA=1), with DRDY
// wired to a GPIO line read through go-gpiocdev's edge-event API.
type Driver struct {
	mu   sync.Mutex
	conn spi.Conn
	port spi.PortCloser
	line *gpiocdev.Line

	chip    string
	drdyPin int

	calOffset int32
	calScale  int32

	samples chan adc.Sample
	cancel  context.CancelFunc
}

// Config names the host resources the driver binds to.
type Config struct {
	SPIPort string // e.g. "/dev/spidev0.0"; "" selects the first port
	GPIOChip string // e.g. "gpiochip0"
	DRDYLine int
}

// Open initializes periph's host drivers, opens the SPI port and the
// DRDY GPIO line, and resets the ADC.
func Open(cfg Config) (*Driver, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("adchw: periph host init: %w", err)
	}
	p, err := spireg.Open(cfg.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("adchw: open spi port: %w", err)
	}
	c, err := p.Connect(physic.MegaHertz*2, spi.Mode1, 8)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("adchw: connect spi: %w", err)
	}

	d := &Driver{
		conn:    c,
		port:    p,
		chip:    cfg.GPIOChip,
		drdyPin: cfg.DRDYLine,
		samples: make(chan adc.Sample, 8),
	}

	line, err := gpiocdev.RequestLine(cfg.GPIOChip, cfg.DRDYLine,
		gpiocdev.AsInput, gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(d.onDRDY))
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("adchw: request drdy line: %w", err)
	}
	d.line = line

	if err := d.Reset(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// Close releases the GPIO line and SPI port.
func (d *Driver) Close() error {
	if d.line != nil {
		_ = d.line.Close()
	}
	if d.port != nil {
		return d.port.Close()
	}
	return nil
}

func (d *Driver) writeCommand(cmd byte) error {
	return d.conn.Tx([]byte{cmd}, make([]byte, 1))
}

func (d *Driver) writeRegister(addr, value byte) error {
	w := []byte{cmdWREG | addr, 0x00, value}
	return d.conn.Tx(w, make([]byte, len(w)))
}

func (d *Driver) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeCommand(cmdRESET)
}

func (d *Driver) SetSamplerate(sps float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeRegister(regMODE2, samplerateCode(sps))
}

// samplerateCode maps a requested rate to the ADS1262's MODE2 rate field,
// choosing the closest enumerated rate at or above the request.
func samplerateCode(sps float64) byte {
	rates := []struct {
		sps  float64
		code byte
	}{
		{2.5, 0x00}, {5, 0x01}, {10, 0x02}, {16.6, 0x03}, {20, 0x04},
		{50, 0x05}, {60, 0x06}, {100, 0x07}, {400, 0x08}, {1200, 0x09},
		{2400, 0x0A}, {4800, 0x0B}, {7200, 0x0C}, {14400, 0x0D},
		{19200, 0x0E}, {38400, 0x0F},
	}
	code := rates[0].code
	for _, r := range rates {
		if sps <= r.sps {
			return r.code
		}
		code = r.code
	}
	return code
}

func (d *Driver) SetFilter(f byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeRegister(regMODE0, f)
}

func (d *Driver) SetGain(g byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeRegister(regPOWER, g)
}

func (d *Driver) BypassPGA() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeRegister(regPOWER, 0)
}

func (d *Driver) SetInputMux(mux byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeRegister(regINPMUX, mux)
}

func (d *Driver) SetReference(pos, neg byte, vRef10nV uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeRegister(regREFMUX, (pos<<3)|neg)
}

func (d *Driver) EnableInternalReference() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeRegister(regPOWER, 1)
}

func (d *Driver) DisableInternalReference() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeRegister(regPOWER, 0)
}

func (d *Driver) SetCalibrationOffset(offset int32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calOffset = offset
	return d.writeRegister(regOFCAL0, byte(offset))
}

func (d *Driver) SetCalibrationScale(scale int32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calScale = scale
	return d.writeRegister(regFSCAL0, byte(scale))
}

func (d *Driver) SendOffsetCalibrationCommand() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeCommand(cmdSYOCAL)
}

func (d *Driver) SendScaleCalibrationCommand() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeCommand(cmdSYGCAL)
}

func (d *Driver) ReadCalibrationOffset() (int32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calOffset, nil
}

func (d *Driver) ReadCalibrationScale() (int32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calScale, nil
}

func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	return d.writeCommand(cmdSTART)
}

func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	return d.writeCommand(cmdSTOP)
}

func (d *Driver) Samples() <-chan adc.Sample { return d.samples }

// onDRDY is go-gpiocdev's edge-event callback: it runs on the falling
// edge of DRDY and performs the RDATA transfer, pushing the result onto
// the sample channel without blocking (per spec §5's ISR-non-suspending
// rule — a full channel simply drops the sample).
func (d *Driver) onDRDY(evt gpiocdev.LineEvent) {
	s, err := d.readSample()
	if err != nil {
		return
	}
	select {
	case d.samples <- s:
	default:
	}
}

func (d *Driver) readSample() (adc.Sample, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	tx := make([]byte, 5)
	tx[0] = cmdRDATA
	rx := make([]byte, 5)
	if err := d.conn.Tx(tx, rx); err != nil {
		return adc.Sample{}, err
	}
	status := rx[1]
	raw := int32(rx[2])<<16 | int32(rx[3])<<8 | int32(rx[4])
	if raw&0x800000 != 0 {
		raw |= ^0xFFFFFF // sign-extend 24 bits
	}
	return adc.Sample{Raw: raw, Status: status}, nil
}

func (d *Driver) ReadSample(ctx context.Context) (adc.Sample, error) {
	return d.readSample()
}

var _ adc.Driver = (*Driver)(nil)
