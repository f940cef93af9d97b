// Command adcpd is the acquisition daemon: it owns the ADC driver, the
// measurement registry, the streaming engine, and the ADCP front end,
// replacing the original firmware's FreeRTOS task set with goroutines.
package main

import (
	"context"
	"fmt"
	"math/bits"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/finnstutzenstein/adcpd/internal/acquisition"
	"github.com/finnstutzenstein/adcpd/internal/adcp"
	"github.com/finnstutzenstein/adcpd/internal/adcstate"
	"github.com/finnstutzenstein/adcpd/internal/fftmath"
	"github.com/finnstutzenstein/adcpd/internal/measurement"
	"github.com/finnstutzenstein/adcpd/internal/metrics"
	"github.com/finnstutzenstein/adcpd/internal/netserver"
	"github.com/finnstutzenstein/adcpd/internal/record"
	"github.com/finnstutzenstein/adcpd/internal/sdconfig"
	"github.com/finnstutzenstein/adcpd/internal/streaming"
)

func main() {
	addr := pflag.StringP("listen", "l", ":7900", "ADCP TCP/WebSocket listen address.")
	metricsAddr := pflag.String("metrics-listen", ":9100", "Prometheus /metrics listen address.")
	statePath := pflag.StringP("state", "s", "adcpd.state", "Persisted CompleteState file path.")
	netConfigPath := pflag.String("netconfig", "", "Appliance network config file (spec sd_config.c format); empty uses defaults.")
	spiPort := pflag.String("spi-port", "", "SPI device node for the real ADC driver (adchw builds only).")
	fftWorkers := pflag.IntP("fft-workers", "w", 2, "FFT transform worker pool size.")
	recordPath := pflag.String("record", "", "Archive flushed samples to this Parquet file; empty disables recording.")
	verbose := pflag.BoolP("verbose", "v", false, "Enable debug logging.")
	help := pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if *help {
		pflag.Usage()
		return
	}

	logger := log.Default()
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	netCfg := sdconfig.Defaults()
	if *netConfigPath != "" {
		netCfg = sdconfig.Load(*netConfigPath)
	}
	logger.Info("appliance network identity", "ip", netCfg.IP, "dhcp", netCfg.UseDHCP)

	driver, err := newDriver(*spiPort)
	if err != nil {
		logger.Fatal("driver init failed", "err", err)
	}

	registry := measurement.NewRegistry()

	srv := netserver.New(nil, logger)

	reg := prometheus.DefaultRegisterer
	collector := metrics.New(reg)

	stream := streaming.NewEngine(srv, collector)
	fftSink := acquisition.NewFFTSink(stream)
	fftEngine := fftmath.NewEngine(fftSink, *fftWorkers, 64)

	dispatcher := acquisition.New(driver, registry, stream, fftEngine)
	registry.SetGate(dispatcher)

	store := adcstate.NewStore(*statePath, logger)

	var recorder *record.Writer
	if *recordPath != "" {
		f, err := os.Create(*recordPath)
		if err != nil {
			logger.Fatal("record file create failed", "err", err)
		}
		recorder = record.NewWriter(f, record.Config{Channels: measurement.MaxMeasurements})
		defer recorder.Close()
		logger.Info("archiving flushed samples", "path", *recordPath)
	}

	adcHandler := &acquisition.ADCHandlers{Driver: driver}
	calHandler := &acquisition.CalibrationHandlers{Driver: driver, Dispatcher: dispatcher}
	measHandler := &acquisition.MeasurementHandlers{
		Dispatcher: dispatcher,
		Registry:   registry,
		Samplerate: adcHandler.Samplerate,
	}
	fftHandler := &acquisition.FFTHandlers{Dispatcher: dispatcher, Registry: registry}
	debugHandler := &acquisition.DebugHandlers{Conns: srv}

	adcpDispatcher := adcp.New(adcp.Handlers{
		Connection:  srv,
		Debug:       debugHandler,
		Measurement: measHandler,
		ADC:         adcHandler,
		FFT:         fftHandler,
		Calibration: calHandler,
	})
	adcpDispatcher.SetResetLatch(adcHandler.Latched)
	srv.SetDispatcher(adcpDispatcher)

	dispatcher.OnADCReset = func() {
		adcHandler.Latch()
		collector.IncWatchdogExpired()
	}
	adcHandler.OnReset = func() {
		adcHandler.Apply(adcHandler.Snapshot())
	}
	if recorder != nil {
		dispatcher.OnFlush = func(payload []byte) {
			if err := recorder.Archive(payload); err != nil {
				logger.Warn("record archive failed", "err", err)
			}
		}
	}

	persistState := func() {
		cs := adcstate.FromRegistry(snapshotADCState(adcHandler, dispatcher, stream), registry)
		store.Save(cs)
		if payload, err := cs.MarshalBinary(); err == nil {
			_ = stream.Send(streaming.StreamStatus, payload, nil)
		}
	}
	stream.SetFlushCallback(func() {
		dispatcher.Stop()
		persistState()
	})

	reloadState(logger, store, adcHandler, registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	senderStop := make(chan struct{})
	for _, s := range []streaming.Stream{streaming.StreamDebug, streaming.StreamStatus, streaming.StreamData, streaming.StreamFFT} {
		go stream.RunSender(s, senderStop)
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			logger.Error("metrics server exited", "err", err)
		}
	}()

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				persistState()
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		dispatcher.Stop()
		persistState()
		close(senderStop)
		cancel()
	}()

	logger.Info("adcpd listening", "addr", *addr)
	if err := srv.Serve(ctx, *addr); err != nil {
		logger.Error("netserver exited", "err", err)
	}
}

// snapshotADCState fills in the fields ADCHandlers.Snapshot leaves to the
// daemon: acquisition activity and backpressure state. The calibration
// offset and scale fields are not filled and stay zero.
func snapshotADCState(h *acquisition.ADCHandlers, d *acquisition.Dispatcher, stream *streaming.Engine) adcstate.ADCState {
	a := h.Snapshot()
	a.Started = d.Active()
	a.SlowConnection = !stream.HTTPPermitted()
	return a
}

// reloadState applies the persisted ADC register state and recreates
// each persisted channel at its original id, reattaching FFT instances
// (spec §4.6's boot reload).
func reloadState(logger *log.Logger, store *adcstate.Store, adcHandler *acquisition.ADCHandlers, registry *measurement.Registry) {
	cs, ok := store.Load()
	adcHandler.Apply(cs.ADC)
	if !ok {
		logger.Info("starting with default state")
		return
	}
	for _, m := range cs.Measurements {
		pos, neg := m.Mux>>4, m.Mux&0x0F
		if err := registry.CreateAt(int(m.ID), pos, neg, m.Enabled, m.Averaging); err != nil {
			logger.Warn("state reload: channel create failed", "id", m.ID, "err", err)
			continue
		}
		if !m.FFTEnabled && m.FFTLength == 0 {
			continue
		}
		fftBits := bits.Len16(m.FFTLength) - 1
		if fftBits < fftmath.MinBits {
			fftBits = fftmath.MinBits
		}
		inst, err := fftmath.NewInstance(int(m.ID), fftBits, fftmath.Window(m.FFTWindowIndex))
		if err != nil {
			logger.Warn("state reload: fft reattach failed", "id", m.ID, "err", err)
			continue
		}
		inst.Enabled = m.FFTEnabled
		_ = registry.AttachFFT(int(m.ID), inst)
	}
	logger.Info("state reloaded", "measurements", len(cs.Measurements))
}
