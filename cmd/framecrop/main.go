package main

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/menta2k/framecrop"
	"github.com/menta2k/framecrop/internal/config"
	"github.com/menta2k/framecrop/pkg/capture"
	"github.com/menta2k/framecrop/pkg/llamacpp"
	"github.com/menta2k/framecrop/pkg/ollama"
	"github.com/menta2k/framecrop/pkg/source/ffmpeg"
	"github.com/menta2k/framecrop/pkg/source/screen"
	"github.com/menta2k/framecrop/pkg/source/still"
	"github.com/menta2k/framecrop/pkg/store"
	"github.com/menta2k/framecrop/pkg/suggest"
	"github.com/menta2k/framecrop/pkg/types"
)

// app is the state shared by every command, built before any command runs.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	settings  *store.FileSettingsStore
	artifacts *store.DirArtifactStore
}

var (
	configPath string
	verbose    bool
	jsonLog    bool

	cli = &app{}

	rootCmd = &cobra.Command{
		Use:   "framecrop",
		Short: "Capture, crop and store frames from a shared screen",
		Long: `framecrop captures single frames from a live video source, crops them by
persisted edge insets and stores the result.

Examples:
  # Capture the desktop cropped by the saved insets
  framecrop capture

  # Capture one frame 12s into a video file, with explicit insets
  framecrop capture --source ffmpeg --input talk.mp4 --position 12 --insets 80,0,80,0

  # Crop a folder of screenshots in parallel
  framecrop crop --insets 320,25,227,1257 --out ./cropped shots/

  # Let the border scanner propose insets and save them
  framecrop suggest --save`,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return cli.init() },
	}
)

func (a *app) init() error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if jsonLog {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, opts))
	} else {
		a.logger = slog.New(slog.NewTextHandler(os.Stderr, opts))
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	a.cfg = cfg
	a.settings = store.NewFileSettingsStore(cfg.Storage.SettingsPath, cfg.Crop)
	a.artifacts = store.NewDirArtifactStore(cfg.Storage.ArtifactDir)
	return nil
}

func (a *app) engine(suggester suggest.Suggester) *framecrop.Engine {
	return framecrop.NewWithConfig(framecrop.Config{
		Capture: a.cfg.CaptureSettings(),
		Codec:   a.cfg.CodecSettings(),
		Session: a.cfg.SessionSettings(),
		Preview: a.cfg.PreviewSettings(),
	}, framecrop.Options{
		Settings:  a.settings,
		Artifacts: a.artifacts,
		Suggester: suggester,
		Logger:    a.logger,
	})
}

// suggester builds the configured suggestion backend. backend overrides the
// config when set.
func (a *app) suggester(ctx context.Context, backend string) (suggest.Suggester, error) {
	if backend == "" {
		backend = a.cfg.Suggest.Backend
	}
	switch backend {
	case config.BackendBorder:
		return suggest.NewBorderSuggesterWithConfig(a.cfg.BorderSettings()), nil
	case config.BackendSaliency:
		return suggest.NewSaliencySuggester(), nil
	case config.BackendOllama:
		c, err := ollama.NewClient(a.cfg.Suggest.URL)
		if err != nil {
			return nil, err
		}
		if err := c.Ping(ctx); err != nil {
			return nil, fmt.Errorf("ollama at %s is not reachable: %w", a.cfg.Suggest.URL, err)
		}
		return suggest.NewVisionSuggester(c, a.cfg.VisionSettings()), nil
	case config.BackendLlamaCpp:
		c, err := llamacpp.NewClient(a.cfg.Suggest.URL)
		if err != nil {
			return nil, err
		}
		if err := c.Ping(ctx); err != nil {
			return nil, err
		}
		return suggest.NewVisionSuggester(c, a.cfg.VisionSettings()), nil
	default:
		return nil, fmt.Errorf("unknown suggestion backend %q", backend)
	}
}

// sourceFlags select the track a command reads from.
type sourceFlags struct {
	source   string
	input    string
	format   string
	region   string
	position float64
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.source, "source", "s", "screen", "frame source: screen, ffmpeg or file")
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "ffmpeg input (file, URL or device), or image path or URL for the file source")
	cmd.Flags().StringVar(&f.format, "input-format", "", "force the ffmpeg input format (x11grab, v4l2, ...)")
	cmd.Flags().StringVar(&f.region, "region", "", "screen region as x,y,width,height")
	cmd.Flags().Float64Var(&f.position, "position", 0, "ffmpeg seek position in seconds")
}

// open returns the selected track. The caller must call stop when done.
func (f *sourceFlags) open(ctx context.Context, logger *slog.Logger) (track capture.Track, stop func(), err error) {
	switch f.source {
	case "screen":
		var region image.Rectangle
		if f.region != "" {
			if region, err = parseRegion(f.region); err != nil {
				return nil, nil, err
			}
		}
		t := screen.NewRegion(region)
		return t, t.Stop, nil
	case "ffmpeg":
		if f.input == "" {
			return nil, nil, fmt.Errorf("--input is required for the ffmpeg source")
		}
		t, err := ffmpeg.Open(ctx, f.input, ffmpeg.Options{
			Format:   f.format,
			Position: f.position,
			Logger:   logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return t, t.Stop, nil
	case "file":
		if f.input == "" {
			return nil, nil, fmt.Errorf("--input is required for the file source")
		}
		t, err := still.Load(ctx, f.input)
		if err != nil {
			return nil, nil, err
		}
		return t, t.Stop, nil
	default:
		return nil, nil, fmt.Errorf("unknown source %q (screen, ffmpeg or file)", f.source)
	}
}

// parseInsets parses "top,right,bottom,left".
func parseInsets(s string) (types.CropInsets, error) {
	v, err := parseInts(s, 4)
	if err != nil {
		return types.CropInsets{}, fmt.Errorf("insets must be top,right,bottom,left: %w", err)
	}
	return types.CropInsets{Top: v[0], Right: v[1], Bottom: v[2], Left: v[3]}, nil
}

// parseRegion parses "x,y,width,height".
func parseRegion(s string) (image.Rectangle, error) {
	v, err := parseInts(s, 4)
	if err != nil || v[2] <= 0 || v[3] <= 0 {
		return image.Rectangle{}, fmt.Errorf("region must be x,y,width,height with a positive size")
	}
	return image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3]), nil
}

// parseSize parses "WIDTHxHEIGHT".
func parseSize(s string) (types.Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return types.Size{}, fmt.Errorf("size must be WIDTHxHEIGHT, got %q", s)
	}
	width, err1 := strconv.ParseFloat(strings.TrimSpace(w), 64)
	height, err2 := strconv.ParseFloat(strings.TrimSpace(h), 64)
	if err1 != nil || err2 != nil || width <= 0 || height <= 0 {
		return types.Size{}, fmt.Errorf("size must be WIDTHxHEIGHT, got %q", s)
	}
	return types.Size{Width: width, Height: height}, nil
}

func parseInts(s string, n int) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma-separated values, got %d", n, len(parts))
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.GetConfigPath(), "config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "log as JSON")

	rootCmd.AddCommand(
		newCaptureCmd(),
		newCropCmd(),
		newSettingsCmd(),
		newMapCmd(),
		newSuggestCmd(),
		newPreviewCmd(),
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	start := time.Now()
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if cli.logger != nil {
		cli.logger.Debug("Finished", "elapsed", time.Since(start))
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
