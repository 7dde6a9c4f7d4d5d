package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/menta2k/framecrop/internal/utils"
	"github.com/menta2k/framecrop/pkg/capture"
	"github.com/menta2k/framecrop/pkg/codec"
	"github.com/menta2k/framecrop/pkg/editor"
	"github.com/menta2k/framecrop/pkg/preview"
	"github.com/menta2k/framecrop/pkg/suggest"
	"github.com/menta2k/framecrop/pkg/types"
)

// Config holds the application configuration
type Config struct {
	Capture CaptureConfig    `json:"capture"`
	Output  OutputConfig     `json:"output"`
	Editor  EditorConfig     `json:"editor"`
	Preview PreviewConfig    `json:"preview"`
	Storage StorageConfig    `json:"storage"`
	Crop    types.CropInsets `json:"crop"`
	Suggest SuggestConfig    `json:"suggest"`
}

// CaptureConfig holds configuration for frame capture
type CaptureConfig struct {
	MetadataTimeoutMs int `json:"metadata_timeout_ms"`
	SettleDelayMs     int `json:"settle_delay_ms"`
	DefaultWidth      int `json:"default_width"`
	DefaultHeight     int `json:"default_height"`
}

// OutputConfig holds configuration for artifact encoding
type OutputConfig struct {
	Format   string `json:"format"`
	Quality  int    `json:"quality"`
	Lossless bool   `json:"lossless"`
}

// EditorConfig holds configuration for the interactive crop editor
type EditorConfig struct {
	MinBoxSize float64          `json:"min_box_size"`
	Aspect     types.AspectMode `json:"aspect"`
}

// PreviewConfig holds configuration for the live preview
type PreviewConfig struct {
	IntervalMs      int `json:"interval_ms"`
	StatsIntervalMs int `json:"stats_interval_ms"`
}

// StorageConfig holds the settings file and artifact directory locations
type StorageConfig struct {
	SettingsPath string `json:"settings_path"`
	ArtifactDir  string `json:"artifact_dir"`
}

// SuggestConfig holds configuration for crop suggestions
type SuggestConfig struct {
	Backend         string `json:"backend"`
	URL             string `json:"url"`
	Model           string `json:"model"`
	SendSize        int    `json:"send_size"`
	SendQuality     int    `json:"send_quality"`
	BorderTolerance int    `json:"border_tolerance"`
}

// Suggestion backends
const (
	BackendBorder   = "border"
	BackendSaliency = "saliency"
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
)

// Default returns a configuration with default values
func Default() *Config {
	dir := configDir()
	return &Config{
		Capture: CaptureConfig{
			MetadataTimeoutMs: 2000,
			SettleDelayMs:     100,
			DefaultWidth:      1280,
			DefaultHeight:     720,
		},
		Output: OutputConfig{
			Format:   codec.FormatWebP,
			Quality:  80,
			Lossless: false,
		},
		Editor: EditorConfig{
			MinBoxSize: 1,
			Aspect:     types.AspectFree,
		},
		Preview: PreviewConfig{
			IntervalMs:      16,
			StatsIntervalMs: 5000,
		},
		Storage: StorageConfig{
			SettingsPath: filepath.Join(dir, "settings.json"),
			ArtifactDir:  filepath.Join(dir, "screenshots"),
		},
		Crop: types.CropInsets{Top: 320, Right: 25, Bottom: 227, Left: 1257},
		Suggest: SuggestConfig{
			Backend:         BackendBorder,
			URL:             "http://localhost:11434",
			Model:           "qwen2.5vl:7b",
			SendSize:        1024,
			SendQuality:     85,
			BorderTolerance: 12,
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Fields missing from the
// file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(utils.ExpandHome(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load reads filename when it exists and falls back to defaults otherwise.
func Load(filename string) (*Config, error) {
	if !utils.FileExists(utils.ExpandHome(filename)) {
		return Default(), nil
	}
	return LoadFromFile(filename)
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	filename = utils.ExpandHome(filename)
	if err := utils.EnsureDir(filepath.Dir(filename)); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := utils.WriteFileAtomic(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Capture.MetadataTimeoutMs < 1 {
		return fmt.Errorf("capture.metadata_timeout_ms must be positive")
	}

	if c.Capture.SettleDelayMs < 0 {
		return fmt.Errorf("capture.settle_delay_ms cannot be negative")
	}

	if c.Capture.DefaultWidth < 1 || c.Capture.DefaultHeight < 1 {
		return fmt.Errorf("capture.default_width and capture.default_height must be positive")
	}

	switch strings.ToLower(c.Output.Format) {
	case "webp", "jpg", "jpeg", "png":
	default:
		return fmt.Errorf("output.format %q is not supported (webp, jpg or png)", c.Output.Format)
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	if c.Editor.MinBoxSize < 0 {
		return fmt.Errorf("editor.min_box_size cannot be negative")
	}

	if !c.Editor.Aspect.Valid() {
		return fmt.Errorf("editor.aspect must be %q or %q", types.AspectFree, types.AspectSquare)
	}

	if c.Preview.IntervalMs < 1 {
		return fmt.Errorf("preview.interval_ms must be positive")
	}

	if c.Storage.SettingsPath == "" || c.Storage.ArtifactDir == "" {
		return fmt.Errorf("storage.settings_path and storage.artifact_dir are required")
	}

	if c.Crop.Top < 0 || c.Crop.Right < 0 || c.Crop.Bottom < 0 || c.Crop.Left < 0 {
		return fmt.Errorf("crop insets cannot be negative")
	}

	switch c.Suggest.Backend {
	case BackendBorder, BackendSaliency:
	case BackendOllama, BackendLlamaCpp:
		if c.Suggest.URL == "" || c.Suggest.Model == "" {
			return fmt.Errorf("suggest.url and suggest.model are required for the %s backend", c.Suggest.Backend)
		}
	default:
		return fmt.Errorf("suggest.backend must be one of %s, %s, %s, %s",
			BackendBorder, BackendSaliency, BackendOllama, BackendLlamaCpp)
	}

	if c.Suggest.SendQuality < 1 || c.Suggest.SendQuality > 100 {
		return fmt.Errorf("suggest.send_quality must be between 1 and 100")
	}

	if c.Suggest.BorderTolerance < 0 || c.Suggest.BorderTolerance > 255 {
		return fmt.Errorf("suggest.border_tolerance must be between 0 and 255")
	}

	return nil
}

// CaptureSettings converts the capture section for the capture pipeline.
func (c *Config) CaptureSettings() capture.Config {
	return capture.Config{
		MetadataTimeout: ms(c.Capture.MetadataTimeoutMs),
		SettleDelay:     ms(c.Capture.SettleDelayMs),
		DefaultWidth:    c.Capture.DefaultWidth,
		DefaultHeight:   c.Capture.DefaultHeight,
	}
}

// CodecSettings converts the output section for the encoder.
func (c *Config) CodecSettings() codec.Config {
	return codec.Config{
		Format:   codec.NormalizeFormat(c.Output.Format),
		Quality:  c.Output.Quality,
		Lossless: c.Output.Lossless,
	}
}

// SessionSettings converts the editor section for editor sessions.
func (c *Config) SessionSettings() editor.SessionConfig {
	s := editor.DefaultSessionConfig()
	s.Controller = editor.ControllerConfig{MinSize: c.Editor.MinBoxSize, Aspect: c.Editor.Aspect}
	s.MetadataTimeout = ms(c.Capture.MetadataTimeoutMs)
	return s
}

// PreviewSettings converts the preview section for the renderer.
func (c *Config) PreviewSettings() preview.Config {
	return preview.Config{
		Interval:      ms(c.Preview.IntervalMs),
		StatsInterval: ms(c.Preview.StatsIntervalMs),
	}
}

// BorderSettings converts the suggest section for the border suggester.
func (c *Config) BorderSettings() suggest.BorderConfig {
	b := suggest.DefaultBorderConfig()
	b.Tolerance = uint8(c.Suggest.BorderTolerance)
	return b
}

// VisionSettings converts the suggest section for the vision suggester.
func (c *Config) VisionSettings() suggest.VisionConfig {
	v := suggest.DefaultVisionConfig()
	v.Model = c.Suggest.Model
	v.SendSize = c.Suggest.SendSize
	v.SendQuality = c.Suggest.SendQuality
	return v
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "framecrop")
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	dir := configDir()
	if dir == "." {
		return "./config.json"
	}
	return filepath.Join(dir, "config.json")
}
