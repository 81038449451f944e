// Command avatard runs the body-tracking retargeting daemon: it ingests
// landmark frames over UDP or a pipe, drives the skeleton solver on a fixed
// tick, and serves the control API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumen-motion/avatar.track/internal/api"
	"github.com/lumen-motion/avatar.track/internal/config"
	"github.com/lumen-motion/avatar.track/internal/engine"
	"github.com/lumen-motion/avatar.track/internal/monitoring"
	"github.com/lumen-motion/avatar.track/internal/network"
	"github.com/lumen-motion/avatar.track/internal/replay"
	"github.com/lumen-motion/avatar.track/internal/rig"
	"github.com/lumen-motion/avatar.track/internal/storage"
	"github.com/lumen-motion/avatar.track/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to YAML config file (overrides AVATAR_CONFIG)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func applyLogLevel(level string) {
	w := monitoring.LogWriters{Ops: os.Stderr}
	switch level {
	case "diag":
		w.Diag = os.Stderr
	case "trace":
		w.Diag = os.Stderr
		w.Trace = os.Stderr
	}
	monitoring.SetLogWriters(w)
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *configPath != "" {
		os.Setenv("AVATAR_CONFIG", *configPath)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	applyLogLevel(cfg.LogLevel)
	monitoring.Opsf("avatard %s starting", version.String())

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		log.Fatalf("migrating database: %v", err)
	}
	calibrations := storage.NewCalibrationStore(db)
	sessions := storage.NewSessionStore(db)

	skeleton := rig.NewHumanoidSkeleton()
	avatar := rig.NewAvatar(skeleton, cfg.AvatarConfig(), nil)

	registry := prometheus.NewRegistry()
	avatar.SetMetrics(rig.NewMetrics(registry))

	// Resume the persisted calibration, if the avatar has one.
	switch snap, err := calibrations.Load(cfg.Avatar); {
	case err == nil:
		if err := avatar.LoadCalibration(snap); err != nil {
			monitoring.Opsf("stored calibration unusable: %v", err)
		}
	case errors.Is(err, storage.ErrNotFound):
		monitoring.Opsf("no stored calibration for %q", cfg.Avatar)
	default:
		log.Fatalf("loading calibration: %v", err)
	}

	var recorder *replay.Recorder
	if cfg.RecordSessions {
		recorder = replay.NewRecorder(sessions, cfg.Avatar)
	}

	loop := engine.New(engine.Config{
		Avatar:   avatar,
		Interval: cfg.TickInterval(),
		Recorder: recorder,
	})

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			monitoring.Opsf("tick loop: %v", err)
		}
	}()

	if cfg.UDPAddr != "" {
		listener := network.NewUDPListener(network.UDPListenerConfig{
			Address: cfg.UDPAddr,
			RcvBuf:  cfg.UDPRcvBuf,
			Sink:    avatar,
			Stats:   avatar.Stats(),
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := listener.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				monitoring.Opsf("UDP listener: %v", err)
			}
		}()
	}

	if cfg.PipePath != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runPipe(ctx, cfg.PipePath, avatar)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		runHTTP(ctx, cfg, loop, calibrations, sessions, registry)
	}()

	wg.Wait()
	monitoring.Opsf("avatard stopped")
}

func runPipe(ctx context.Context, path string, sink network.FrameSink) {
	var in *os.File
	if path == "-" {
		in = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			monitoring.Opsf("opening pipe %s: %v", path, err)
			return
		}
		in = f
		defer f.Close()
		// Unblock the scanner when shutting down.
		go func() {
			<-ctx.Done()
			f.Close()
		}()
	}

	reader := network.NewPipeReader(sink)
	if err := reader.Run(ctx, in); err != nil && !errors.Is(err, context.Canceled) {
		monitoring.Opsf("pipe reader: %v", err)
	}
}

func runHTTP(ctx context.Context, cfg *config.Config, loop *engine.Loop,
	calibrations *storage.CalibrationStore, sessions *storage.SessionStore,
	registry *prometheus.Registry) {

	apiServer := api.NewServer(api.ServerConfig{
		Engine:       loop,
		Calibrations: calibrations,
		Sessions:     sessions,
		Avatar:       cfg.Avatar,
		Metrics:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	})

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.LoggingMiddleware(apiServer.ServeMux()),
	}

	go func() {
		monitoring.Opsf("control API listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Opsf("HTTP shutdown: %v", err)
	}
}
