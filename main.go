package main

import (
	"context"
	"image"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edaniels/golog"
	"github.com/spf13/cobra"

	"skywatch/internal/config"
	"skywatch/internal/models"
	"skywatch/internal/ui"
	"skywatch/processing/capture"
	"skywatch/processing/detector"
	"skywatch/processing/pipeline"
)

func main() {
	var (
		configPath string
		modelPath  string
		headless   bool
	)

	cmd := &cobra.Command{
		Use:          "skywatch",
		Short:        "Live object detection over cameras, video files and remote streams",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, modelPath, headless)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "config file path")
	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "override model weights path")
	cmd.Flags().BoolVar(&headless, "headless", false, "run the pipeline without a window")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath, modelPath string, headless bool) error {
	logger := golog.NewDevelopmentLogger("skywatch")

	cfg := config.LoadConfigFile(configPath)
	if modelPath != "" {
		cfg.Model.Path = modelPath
	}

	var (
		engine detector.Engine
		err    error
	)
	switch cfg.Detector.Mode {
	case config.DetectorRemote:
		engine, err = detector.NewRemoteEngine(cfg.Detector.RemoteHost, cfg.GetConfidence(), logger)
	default:
		engine, err = detector.NewONNXEngine(detector.ONNXConfig{
			ModelPath:           cfg.Model.Path,
			LabelsPath:          cfg.Model.Labels,
			LibraryPath:         cfg.Model.Library,
			InputSize:           cfg.Model.InputSize,
			ConfidenceThreshold: cfg.GetConfidence(),
			IOUThreshold:        cfg.Model.IOU,
			Logger:              logger,
		})
	}
	if err != nil {
		return err
	}
	defer engine.Close()

	resolver := capture.NewResolver(&capture.YTDLP{}, cfg.GetWidth(), cfg.GetHeight(), cfg.GetFPS(), logger)
	style := detector.DefaultStyle()

	var app *ui.DetectApp
	ctl := pipeline.New(pipeline.Config{
		Opener: pipeline.OpenerFunc(func(ctx context.Context, desc capture.Descriptor) (pipeline.Stream, error) {
			return resolver.Open(ctx, desc)
		}),
		Detector: engine,
		Annotate: func(frame *image.RGBA, dets []models.Detection) *image.RGBA {
			return detector.Annotate(frame, dets, style)
		},
		OnError: func(err error) {
			if app != nil {
				app.ReportError(err)
			} else {
				logger.Errorw("pipeline error", "error", err)
			}
		},
		Logger: logger,
	})

	if headless {
		return runHeadless(ctl, cfg, logger)
	}

	app = ui.CreateApp(ctl, cfg, logger)
	app.Run()
	return nil
}

// runHeadless drives the pipeline without a window: useful for smoke
// tests and for running detection on machines without a display.
func runHeadless(ctl *pipeline.Controller, cfg *config.Config, logger golog.Logger) error {
	if err := ctl.Start(cfg.Descriptor()); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-sigCh:
			logger.Infow("shutting down")
			ctl.Stop()
		case <-ticker.C:
			// Keep the output slot drained so drop accounting reflects
			// real display pressure, not an absent consumer.
			ctl.Frames().TryRecv()
			switch ctl.State() {
			case pipeline.StateIdle:
				ctl.Wait()
				stats := ctl.Stats()
				logger.Infow("pipeline finished", "frames", stats.Frames, "dropped", stats.Dropped)
				return nil
			case pipeline.StateFailed:
				ctl.Wait()
				return ctl.Err()
			}
		}
	}
}
