// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Thermoquad/dipwatch/pkg/framer"
	"github.com/Thermoquad/dipwatch/pkg/hal"
	"github.com/Thermoquad/dipwatch/pkg/session"
	"github.com/Thermoquad/dipwatch/pkg/web"
)

var (
	serveListen         string
	serveWSPath         string
	serveHAL            string
	serveBoard          string
	serveSimMask        uint8
	serveReportInterval time.Duration
	serveWriteTimeout   time.Duration
	serveFrameCapacity  int
	serveMetrics        bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the device server",
	Long: `Serve the DIP switch bank and LEDs to one WebSocket client.

The server samples the switches while a client is connected and sends a
status report such as

  {"dipSwitches":{"dip1":"On","dip2":"Off",...,"dip8":"On"}}

Each {"ledcb<N>":<bool>} object the client sends drives LED N (0-7).

Only one client is served at a time. Upgrade requests for any other path,
or while a client is connected, are answered with 404.

Hardware backends (--hal):
  sim     simulated switches and LEDs (default)
  periph  GPIO through periph.io
  cdev    Linux GPIO character device
  adc     ADS1115 converters on I2C, LEDs on GPIO
  serial  switch register from a bridge MCU on --port, LEDs on GPIO

Pin tables and the ADC channel map come from --board, a YAML profile.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", ":8080", "HTTP listen address")
	serveCmd.Flags().StringVar(&serveWSPath, "ws-path", session.DefaultPath, "WebSocket upgrade path (case-insensitive)")
	serveCmd.Flags().StringVar(&serveHAL, "hal", hal.BackendSim, "Hardware backend ("+strings.Join(hal.Backends, ", ")+")")
	serveCmd.Flags().StringVar(&serveBoard, "board", "", "Board profile YAML file")
	serveCmd.Flags().Uint8Var(&serveSimMask, "sim-mask", 0, "Initial switch register for --hal sim (set bit = Off)")
	serveCmd.Flags().DurationVar(&serveReportInterval, "report-interval", 100*time.Millisecond, "Minimum time between status reports (0 = as fast as possible)")
	serveCmd.Flags().DurationVar(&serveWriteTimeout, "write-timeout", 0, "Deadline for one status write (0 = none)")
	serveCmd.Flags().IntVar(&serveFrameCapacity, "frame-capacity", framer.DefaultCapacity, "Largest inbound message in bytes")
	serveCmd.Flags().BoolVar(&serveMetrics, "metrics", false, "Expose Prometheus metrics at /metrics")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	profile := hal.DefaultProfile()
	if serveBoard != "" {
		var err error
		profile, err = hal.LoadProfile(serveBoard)
		if err != nil {
			return err
		}
	}

	board, err := hal.Open(hal.Options{
		Backend:    serveHAL,
		Profile:    profile,
		SerialPort: portName,
		BaudRate:   baudRate,
		SimMask:    serveSimMask,
	})
	if err != nil {
		return fmt.Errorf("failed to open %s backend: %w", serveHAL, err)
	}
	defer board.Close()

	var registry *prometheus.Registry
	var metricsHandler http.Handler
	if serveMetrics {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	mgr := session.NewManager(session.Config{
		Path:            serveWSPath,
		FrameCapacity:   serveFrameCapacity,
		ReportInterval:  serveReportInterval,
		WriteTimeout:    serveWriteTimeout,
		Logger:          logger,
		MetricsRegistry: registry,
	}, board.Sampler, board.Actuator)

	srv := &http.Server{
		Addr: serveListen,
		Handler: web.NewHandler(web.Options{
			Session:  mgr,
			Sampler:  board.Sampler,
			Actuator: board.Actuator,
			Metrics:  metricsHandler,
			Logger:   logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mgr.RunReader(ctx) })
	g.Go(func() error { return mgr.RunReporter(ctx) })
	g.Go(func() error {
		logger.Info("listening", "addr", serveListen, "ws_path", mgr.Path(), "hal", serveHAL, "board", profile.Name)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		logger.Info("shut down")
		return nil
	}
	return err
}
