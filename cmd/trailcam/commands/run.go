package commands

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	fcolor "github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"trailcam/catalog"
	"trailcam/config"
	"trailcam/detection"
	"trailcam/metrics"
	"trailcam/observability"
	"trailcam/output"
	"trailcam/overlay"
	"trailcam/pipeline"
	"trailcam/report"
	"trailcam/runner"
	"trailcam/stream"
	"trailcam/tracking"
)

// RunCommand holds the flags of the run command.
type RunCommand struct {
	configPath string
}

// flagKeys binds run flags to configuration keys. Flags override the config
// file and the environment only when set.
var flagKeys = map[string]string{
	"video":         "input.video",
	"model":         "model.path",
	"model-size":    "model.size",
	"model-dir":     "model.dir",
	"device":        "model.device",
	"confidence":    "detection.confidence",
	"tracker":       "detection.tracker",
	"max-history":   "tracking.max_history",
	"output-dir":    "output.results_dir",
	"filename":      "output.filename",
	"ffmpeg":        "output.ffmpeg_fallback",
	"progress-step": "progress.step_percent",
	"log-level":     "logging.level",
	"log-format":    "logging.format",
	"metrics":       "metrics.listen",
}

// NewRunCommand creates and configures the run command.
func NewRunCommand() *cobra.Command {
	rc := &RunCommand{}

	cobraCmd := &cobra.Command{
		Use:   "run [video]",
		Short: "Detect, track and annotate one video",
		Args:  cobra.MaximumNArgs(1),
		RunE:  rc.run,
	}

	flags := cobraCmd.Flags()
	flags.StringVarP(&rc.configPath, "config", "c", "", "Config file (default: ./trailcam.yaml or ~/.config/trailcam/trailcam.yaml)")
	flags.String("video", config.DefaultVideo, "Input video path")
	flags.StringP("model", "m", config.DefaultModelPath, "ONNX model path")
	flags.String("model-size", "", "Catalog model size (n, s, m, l, x); overrides --model")
	flags.String("model-dir", config.DefaultModelDir, "Directory holding catalog models")
	flags.String("device", config.DefaultDevice, "Inference device (auto, cpu, cuda)")
	flags.Float64("confidence", config.DefaultConfidence, "Detection confidence threshold")
	flags.String("tracker", config.DefaultTracker, "Tracker profile (bundled name or YAML path)")
	flags.Int("max-history", config.DefaultMaxHistory, "Trajectory points kept per object")
	flags.StringP("output-dir", "o", config.DefaultResultsDir, "Results directory")
	flags.String("filename", config.DefaultFilename, "Output video file name")
	flags.Bool("ffmpeg", false, "Fall back to an ffmpeg subprocess when no OpenCV codec opens")
	flags.Int("progress-step", config.DefaultStepPercent, "Log progress every N percent")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "text", "Log format (text, json)")
	flags.String("metrics", "", "Serve Prometheus metrics on this address, e.g. :9090")

	return cobraCmd
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	return nil
}

func (rc *RunCommand) run(cmd *cobra.Command, args []string) error {
	v, err := config.NewViper(rc.configPath)
	if err != nil {
		return err
	}
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	if len(args) == 1 {
		v.Set("input.video", args[0])
	}

	cfg, err := config.Decode(v)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(os.Stderr, cfg.Logging)

	modelPath, err := resolveModel(cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if err := output.CheckFiles(modelPath, cfg.Input.Video); err != nil {
		return err
	}
	if !output.SupportedVideo(cfg.Input.Video) {
		logger.Warn("video extension is not in the supported list, decoding may fail",
			"video", cfg.Input.Video,
			"supported", output.SupportedVideoExtensions)
	}

	created, err := output.ValidateBase(cfg.Output.ResultsDir)
	if err != nil {
		return err
	}
	if created {
		logger.Info("created results directory", "path", cfg.Output.ResultsDir)
	}
	layout, err := output.Prepare(cfg.Output.ResultsDir, cfg.Output.Filename, time.Now())
	if err != nil {
		return err
	}

	profile, err := detection.LoadTrackerProfile(cfg.Detection.Tracker)
	if err != nil {
		return err
	}

	recorder := metrics.NewRecorder()
	if cfg.Metrics.Listen != "" {
		srv, serveErr := metrics.Serve(cfg.Metrics.Listen, recorder, logger.With("component", "metrics"))
		if serveErr != nil {
			return serveErr
		}
		defer srv.Close()
	}

	opts := []runner.Option{runner.WithRecorder(recorder)}
	if path := cfg.LedgerPath(); path != "" {
		ledger, ledgerErr := report.OpenLedger(path)
		if ledgerErr != nil {
			logger.Warn("run history disabled", "path", path, "error", ledgerErr)
		} else {
			defer ledger.Close()
			opts = append(opts, runner.WithLedger(ledger))
		}
	}

	ffmpegBinary := ""
	if cfg.Output.FFmpegFallback {
		ffmpegBinary = cfg.Output.FFmpegBinary
	}
	adapter := stream.NewAdapter(stream.NewCodecPolicy(cfg.Output.Codecs, ffmpegBinary, logger), logger)

	netCfg := detection.NetConfig{
		ModelPath:    modelPath,
		NamesPath:    cfg.Model.Names,
		InputSize:    cfg.Model.InputSize,
		NMSThreshold: cfg.Detection.NMSThreshold,
	}
	load := func(d detection.Device) (detection.Detector, error) {
		det, loadErr := detection.Load(netCfg, d, logger)
		if loadErr != nil {
			return nil, loadErr
		}
		return det, nil
	}

	job := runner.Job{
		InputPath:  cfg.Input.Video,
		OutputPath: layout.VideoPath,
		Settings: pipeline.Settings{
			Confidence: cfg.Detection.Confidence,
			Profile:    profile,
		},
		ProgressStep: cfg.Progress.StepPercent,
	}

	ctrl := runner.New(
		detection.NewProbe(cfg.Model.Device, logger),
		load,
		adapter,
		tracking.NewStore(cfg.Tracking.MaxHistory, tracking.WithIdleEviction(cfg.Tracking.IdleEvictionFrames)),
		overlay.NewRenderer(styleFrom(cfg.Overlay)),
		job,
		logger,
		opts...,
	)

	rep, runErr := ctrl.Run(cmd.Context())
	if rep != nil && rep.FramesProcessed > 0 {
		printSummary(cmd.OutOrStdout(), rep)
	}
	return runErr
}

// resolveModel returns the model file to load. A catalog size wins over the
// configured path.
func resolveModel(cfg *config.Config, w io.Writer) (string, error) {
	if cfg.Model.Size == "" {
		return cfg.Model.Path, nil
	}

	m, err := catalog.Lookup(cfg.Model.Size)
	if err != nil {
		return "", err
	}
	path := catalog.Path(cfg.Model.Dir, m)

	fcolor.New(fcolor.FgCyan).Fprintf(w, "Model: %s (%s)\n", m.Name, m.File)
	if m.HasSpecs {
		fmt.Fprintf(w, "  Size: %.1f MB, CPU: %.1f ms, GPU: %.1f ms, mAP50-95: %.1f\n", m.SizeMB, m.CPUMs, m.GPUMs, m.MAP50to95)
		fmt.Fprintf(w, "  %s\n", m.Description)
	}
	return path, nil
}

func styleFrom(c config.OverlayConfig) overlay.Style {
	return overlay.Style{
		TrailColor: color.RGBA{
			R: uint8(c.TrailColor[0]),
			G: uint8(c.TrailColor[1]),
			B: uint8(c.TrailColor[2]),
			A: 255,
		},
		TrailThickness: c.TrailThickness,
		Box: detection.BoxStyle{
			Thickness: c.BoxThickness,
			FontScale: c.FontScale,
		},
	}
}

func printSummary(w io.Writer, rep *report.Report) {
	status := fcolor.New(fcolor.FgGreen)
	switch rep.Status {
	case report.StatusInterrupted:
		status = fcolor.New(fcolor.FgYellow)
	case report.StatusFailed:
		status = fcolor.New(fcolor.FgRed)
	}

	status.Fprintf(w, "Processing %s\n", rep.Status)
	fmt.Fprintf(w, "  Frames:    %s/%s (%d errors)\n",
		humanize.Comma(int64(rep.FramesProcessed)), humanize.Comma(int64(rep.TotalFrames)), rep.FrameErrors)
	fmt.Fprintf(w, "  Time:      %.2f s at %.2f FPS\n", rep.Duration.Seconds(), rep.AverageFPS())
	fmt.Fprintf(w, "  Device:    %s\n", rep.Device)
	fmt.Fprintf(w, "  Output:    %s\n", rep.OutputPath)
	if info, err := os.Stat(rep.OutputPath); err == nil {
		fmt.Fprintf(w, "  Size:      %s\n", humanize.Bytes(uint64(info.Size())))
	}
}
