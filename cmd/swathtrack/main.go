package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"swathtrack/internal/api"
	"swathtrack/pkg/config"
	"swathtrack/pkg/db"
	"swathtrack/pkg/field"
	"swathtrack/pkg/filter"
	"swathtrack/pkg/gps"
	"swathtrack/pkg/logging"
	"swathtrack/pkg/metrics"
	"swathtrack/pkg/model"
	"swathtrack/pkg/probe"
	"swathtrack/pkg/store"
	"swathtrack/pkg/tracker"
	"swathtrack/pkg/version"
)

var (
	configPath = flag.String("config", "configs/swathtrack.yaml", "Path to config file")
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
)

func main() {
	flag.Parse()

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config file generated: %s\n", *configPath)
		return
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Best effort; env vars are optional overrides.
	_ = godotenv.Load()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("SwathTrack started", "version", version.Version)

	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbConn.Close()
	st := store.NewSQLiteStore(dbConn)

	detector, err := loadDetector(appCfg)
	if err != nil {
		return err
	}

	if err := runProbes(ctx, appCfg, dbConn, detector); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	tr := tracker.New(trackerConfig(appCfg), st, detector)

	collector, err := metrics.NewCollector(nil)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	tr.Subscribe(collector)

	streamH := api.NewStreamHandler()
	tr.Subscribe(streamH)
	defer streamH.Close()

	tr.Subscribe(&eventLogger{})

	src, err := gps.NewSource(&appCfg.GPS)
	if err != nil {
		return fmt.Errorf("failed to initialize gps source: %w", err)
	}
	defer src.Close()

	// Single consumer: fixes are processed to completion, one at a time.
	go func() {
		for fix := range src.Fixes() {
			tr.OnFix(fix)
		}
		slog.Info("GPS source drained")
	}()

	server := api.NewServer(
		appCfg.Server.Address,
		api.NewTelemetryHandler(tr),
		api.NewSessionHandler(tr, st),
		api.NewCrossingHandler(tr),
		api.NewFieldsHandler(detector),
		streamH,
		collector.Handler(),
		cancel,
	)

	go func() {
		slog.Info("HTTP server listening", "addr", appCfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("Signal received, shutting down", "signal", sig)
	case <-ctx.Done():
	}

	// Close out any active session so the recorded pass is not lost.
	if tr.State() == tracker.StateTracking {
		saveCtx, saveCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if _, err := tr.Stop(saveCtx); err != nil {
			slog.Error("Failed to save session during shutdown", "error", err)
		}
		saveCancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", "error", err)
	}

	slog.Info("Shutdown complete")
	return nil
}

func trackerConfig(cfg *config.Config) tracker.Config {
	return tracker.Config{
		Filter: filter.Config{
			MaxAccuracyM:             float64(cfg.Tracker.MaxAccuracy),
			MaxSpeedMPS:              cfg.Tracker.MaxSpeedMPS,
			MaxConsecutiveRejections: cfg.Tracker.MaxConsecutiveRejections,
		},
		MinRecordInterval:  cfg.Tracker.MinRecordInterval.Std(),
		MinRecordDistanceM: float64(cfg.Tracker.MinRecordDistance),
		DefaultWidthFeet:   cfg.Tracker.DefaultWidthFeet,
		HeadingWindow:      tracker.DefaultConfig().HeadingWindow,
	}
}

// loadDetector loads field boundaries when configured; tracking works
// without them, just without crossing detection.
func loadDetector(cfg *config.Config) (*field.Detector, error) {
	if cfg.Fields.Path == "" {
		return nil, nil
	}
	if _, err := os.Stat(cfg.Fields.Path); os.IsNotExist(err) {
		slog.Warn("Fields file missing, crossing detection disabled", "path", cfg.Fields.Path)
		return nil, nil
	}

	fields, err := field.LoadFields(cfg.Fields.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load fields: %w", err)
	}
	slog.Info("Field boundaries loaded", "count", len(fields), "path", cfg.Fields.Path)
	return field.NewDetector(fields, cfg.Fields.H3Resolution), nil
}

func runProbes(ctx context.Context, cfg *config.Config, dbConn *db.DB, detector *field.Detector) error {
	probes := []probe.Probe{
		{
			Name:     "database",
			Critical: true,
			Check: func(ctx context.Context) error {
				return dbConn.PingContext(ctx)
			},
		},
	}

	if cfg.Fields.Path != "" {
		probes = append(probes, probe.Probe{
			Name:     "field-boundaries",
			Critical: false,
			Check: func(ctx context.Context) error {
				if detector == nil {
					return errors.New("no field boundaries loaded")
				}
				return nil
			},
		})
	}

	if cfg.GPS.Provider == "replay" {
		probes = append(probes, probe.Probe{
			Name:     "replay-file",
			Critical: true,
			Check: func(ctx context.Context) error {
				_, err := os.Stat(cfg.GPS.Replay.Path)
				return err
			},
		})
	}

	return probe.AnalyzeResults(probe.Run(ctx, probes))
}

// eventLogger records session lifecycle events to the event log file.
type eventLogger struct{}

func (e *eventLogger) OnFixEvaluated(filter.Result)   {}
func (e *eventLogger) OnPathUpdated(tracker.Snapshot) {}

func (e *eventLogger) OnCrossingDetected(p field.PendingCrossing) {
	logging.LogEvent("crossing", fmt.Sprintf("detected crossing into %s (%s)", p.Field.Name, p.Field.ID))
}

func (e *eventLogger) OnSessionClosed(sess *model.Session) {
	logging.LogEvent("session", fmt.Sprintf("closed %s: %d points, %.0f m, %.2f acres",
		sess.ID, len(sess.Path), sess.TotalDistanceM, sess.AcresCovered))
}
