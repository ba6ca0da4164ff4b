// canprobed monitors a CANopen network through a USB-serial CAN
// adapter: it decodes the adapter's wire protocol, keeps the latest
// message per COB-ID, exposes prometheus metrics, and optionally writes
// a CBOR capture of the session.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/danmuck/canprobe/internal/capture"
	"github.com/danmuck/canprobe/internal/config"
	"github.com/danmuck/canprobe/internal/observability"
	"github.com/danmuck/canprobe/internal/pipeline"
	"github.com/danmuck/canprobe/internal/sdo"
	"github.com/danmuck/canprobe/internal/serialcan"
	"github.com/danmuck/canprobe/internal/store"
	"github.com/danmuck/canprobe/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "canprobed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to TOML configuration")
	port := flag.String("port", "", "serial port override")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *port != "" {
		cfg.SerialPort = *port
	}

	logger := observability.InitLogger("canprobed")
	observability.RegisterMetrics()

	codec, err := serialcan.ForDialect(cfg.ProtocolDialect)
	if err != nil {
		return err
	}

	tr, err := transport.DialSerial(transport.SerialConfig{
		Port:     cfg.SerialPort,
		BaudRate: cfg.BaudRate,
	})
	if err != nil {
		return err
	}

	st := store.New()
	pipe := pipeline.New(pipeline.Config{
		ReadTimeout:   cfg.ReadTimeout.Duration,
		BatchSize:     cfg.BatchSize,
		QueueCapacity: cfg.QueueCapacity,
		StatsInterval: cfg.StatsInterval.Duration,
	}, tr, codec, st, logger)

	manager := sdo.NewManager(sdo.Config{
		DefaultTimeout: cfg.SDOTimeout.Duration,
	}, pipe, logger)

	pipe.Start()
	manager.Start()

	// SDO responses arrive through the same decode path as everything
	// else; feed them to the manager off a bounded subscription.
	sdoCh, cancelSDO := pipe.Subscribe(256)
	go func() {
		for rec := range sdoCh {
			manager.HandleRecord(rec)
		}
	}()

	var captureDone func()
	if cfg.CapturePath != "" {
		captureDone, err = startCapture(cfg.CapturePath, pipe, logger)
		if err != nil {
			pipe.Stop()
			tr.Close()
			return err
		}
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, logger)
	}

	logger.Info().
		Str("port", cfg.SerialPort).
		Int("baud", cfg.BaudRate).
		Str("dialect", cfg.ProtocolDialect).
		Msg("canprobed running")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("shutting down")
	manager.Stop()
	pipe.Stop()
	cancelSDO()
	if captureDone != nil {
		captureDone()
	}
	return tr.Close()
}

// startCapture subscribes a CBOR capture writer to the pipeline and
// returns a function that detaches it and flushes the file.
func startCapture(path string, pipe *pipeline.Pipeline, logger zerolog.Logger) (func(), error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	w := capture.NewWriter(f)
	ch, cancel := pipe.Subscribe(1024)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for rec := range ch {
			if err := w.Append(rec); err != nil {
				logger.Warn().Err(err).Msg("capture write failed")
				return
			}
		}
	}()

	return func() {
		cancel()
		<-done
		if err := f.Close(); err != nil {
			logger.Warn().Err(err).Msg("capture close failed")
			return
		}
		logger.Info().Str("path", path).Int("records", w.Count()).Msg("capture written")
	}, nil
}

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info().Str("addr", addr).Msg("metrics listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("metrics server stopped")
	}
}
