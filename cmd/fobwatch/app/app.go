package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rf-lab/fobwatch/internal/detect"
	"github.com/rf-lab/fobwatch/internal/sdr/rtl"
	"github.com/rf-lab/fobwatch/internal/storage"
)

const storageDir = "data"

// Run wires the pipeline from configuration and drives it until the context
// is cancelled or a fatal acquisition error occurs.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	source, err := rtl.New(config.Capture, rtl.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("creating sample source: %w", err)
	}

	scale := detect.Scale(config.Power.Scale)
	estimator, err := detect.NewEstimator(scale, time.Duration(config.Power.SubWindow))
	if err != nil {
		return fmt.Errorf("creating power estimator: %w", err)
	}

	policy, err := createPolicy(config, scale)
	if err != nil {
		return fmt.Errorf("creating threshold policy: %w", err)
	}

	detector, err := detect.NewDetector(policy, time.Duration(config.Detection.HoldOff))
	if err != nil {
		return fmt.Errorf("creating burst detector: %w", err)
	}

	reporterOptions := []func(*detect.Reporter){detect.WithReporterLogger(logger)}
	controllerOptions := []func(*Controller){WithControllerLogger(logger)}

	if config.Storage.Enabled {
		store, err := createStorage(&config.Storage)
		if err != nil {
			return fmt.Errorf("creating storage: %w", err)
		}
		defer store.Close()

		sessionID, err := store.CreateSession(ctx, rtl.Device,
			strconv.Itoa(config.Capture.DeviceIndex), config.Capture)
		if err != nil {
			return fmt.Errorf("creating session: %w", err)
		}
		logger.Info("session created", slog.String("sessionID", sessionID))

		reporterOptions = append(reporterOptions, detect.WithSink(&detectionSink{store, sessionID}))
		if config.Storage.PowerTrace {
			controllerOptions = append(controllerOptions,
				WithPowerTrace(store, sessionID, config.Storage.MaxBatchSize))
		}
	}

	reporter, err := detect.NewReporter(
		time.Duration(config.Detection.MinDuration),
		time.Duration(config.Detection.Debounce),
		reporterOptions...,
	)
	if err != nil {
		return fmt.Errorf("creating reporter: %w", err)
	}

	logBanner(config, logger)

	controller := NewController(source, estimator, detector, reporter, controllerOptions...)
	if err = controller.Run(ctx); err != nil {
		return err
	}

	logger.Info("monitor stopped",
		slog.Uint64("blocks", controller.Blocks()),
		slog.Uint64("bursts", controller.Bursts()),
		slog.Uint64("detections", reporter.Accepted()))
	return nil
}

func createPolicy(config *Config, scale detect.Scale) (detect.Policy, error) {
	t := &config.Detection.Threshold
	if t.Mode == ThresholdFixed {
		return detect.FixedThreshold(t.Value), nil
	}

	subWindow := time.Duration(config.Power.SubWindow)
	if subWindow <= 0 {
		subWindow = config.Capture.BlockDuration()
	}
	windowSize := int(time.Duration(t.Window) / subWindow)
	minSamples := int(time.Duration(t.Calibration) / subWindow)
	if windowSize < 1 {
		windowSize = 1
	}
	if minSamples < 1 {
		minSamples = 1
	}

	if scale == detect.ScaleDB {
		return detect.AdaptiveDB(windowSize, minSamples, t.MarginDB)
	}
	return detect.AdaptiveLinear(windowSize, minSamples, t.Factor)
}

func createStorage(config *StorageConfig) (*storage.Store, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current working directory: %w", err)
	}

	dbPath := filepath.Join(wd, storageDir)
	if config.DataDirectory != "" {
		dbPath = filepath.Join(wd, config.DataDirectory)
	}

	stat, err := os.Stat(dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage directory '%s' is not accessible: %w", dbPath, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid storage directory '%s'", dbPath)
	}

	dbPath = filepath.Join(dbPath, fmt.Sprintf("fobwatch_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return storage.New(dbPath), nil
}

func logBanner(config *Config, logger *slog.Logger) {
	freq, freqSuffix := humanize.ComputeSI(float64(config.Capture.Frequency))
	rate, rateSuffix := humanize.ComputeSI(float64(config.Capture.SampleRate))

	logger.Info("monitoring",
		slog.String("frequency", fmt.Sprintf("%0.3f %sHz", freq, freqSuffix)),
		slog.String("sampleRate", fmt.Sprintf("%0.3f %sS/s", rate, rateSuffix)),
		slog.String("gain", config.Capture.Gain.String()),
		slog.Duration("block", config.Capture.BlockDuration()),
		slog.Duration("subWindow", time.Duration(config.Power.SubWindow)),
		slog.String("thresholdMode", config.Detection.Threshold.Mode),
		slog.Duration("holdOff", time.Duration(config.Detection.HoldOff)),
		slog.Duration("minDuration", time.Duration(config.Detection.MinDuration)),
		slog.Duration("debounce", time.Duration(config.Detection.Debounce)))
}

// detectionSink adapts the storage layer to the reporter's sink interface.
type detectionSink struct {
	store     *storage.Store
	sessionID string
}

func (s *detectionSink) StoreDetection(ctx context.Context, e detect.DetectionEvent) error {
	return s.store.InsertDetection(ctx, s.sessionID, storage.Detection{
		SessionID: s.sessionID,
		Start:     e.Start,
		End:       e.End,
		Duration:  e.Duration,
		Peak:      e.Peak,
	})
}
