package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/menta2k/framecrop/pkg/codec"
	"github.com/menta2k/framecrop/pkg/types"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should validate: %v", err)
	}
	want := types.CropInsets{Top: 320, Right: 25, Bottom: 227, Left: 1257}
	if cfg.Crop != want {
		t.Errorf("Expected default insets %+v, got %+v", want, cfg.Crop)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero timeout", func(c *Config) { c.Capture.MetadataTimeoutMs = 0 }},
		{"negative settle", func(c *Config) { c.Capture.SettleDelayMs = -1 }},
		{"zero width", func(c *Config) { c.Capture.DefaultWidth = 0 }},
		{"bad format", func(c *Config) { c.Output.Format = "bmp" }},
		{"quality high", func(c *Config) { c.Output.Quality = 101 }},
		{"negative min size", func(c *Config) { c.Editor.MinBoxSize = -1 }},
		{"bad aspect", func(c *Config) { c.Editor.Aspect = "wide" }},
		{"zero interval", func(c *Config) { c.Preview.IntervalMs = 0 }},
		{"no artifact dir", func(c *Config) { c.Storage.ArtifactDir = "" }},
		{"negative inset", func(c *Config) { c.Crop.Left = -5 }},
		{"bad backend", func(c *Config) { c.Suggest.Backend = "magic" }},
		{"ollama without model", func(c *Config) { c.Suggest.Backend = BackendOllama; c.Suggest.Model = "" }},
		{"tolerance range", func(c *Config) { c.Suggest.BorderTolerance = 300 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := Default()
	cfg.Output.Format = "jpg"
	cfg.Crop = types.CropInsets{Top: 1, Right: 2, Bottom: 3, Left: 4}
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.Crop != cfg.Crop || loaded.Output.Format != "jpg" {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"output":{"quality":60}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Output.Quality != 60 {
		t.Errorf("Expected quality 60, got %d", cfg.Output.Quality)
	}
	if cfg.Output.Format != codec.FormatWebP || cfg.Capture.MetadataTimeoutMs != 2000 {
		t.Errorf("Expected defaults for missing fields, got %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.json")
	if _, err := LoadFromFile(path); err == nil {
		t.Error("Expected error for missing file")
	}
	cfg, err := Load(path)
	if err != nil || cfg == nil {
		t.Fatalf("Load should fall back to defaults, got %v", err)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte("{"), 0o644)
	if _, err := LoadFromFile(path); err == nil {
		t.Error("Expected parse error")
	}
}

func TestConverters(t *testing.T) {
	cfg := Default()
	cfg.Editor.Aspect = types.AspectSquare
	cfg.Output.Format = "jpg"
	cfg.Suggest.BorderTolerance = 30

	if c := cfg.CaptureSettings(); c.MetadataTimeout != 2*time.Second || c.SettleDelay != 100*time.Millisecond {
		t.Errorf("unexpected capture settings %+v", c)
	}
	if c := cfg.CodecSettings(); c.Format != codec.FormatJPEG || c.Quality != 80 {
		t.Errorf("unexpected codec settings %+v", c)
	}
	if s := cfg.SessionSettings(); s.Controller.Aspect != types.AspectSquare || s.MetadataTimeout != 2*time.Second {
		t.Errorf("unexpected session settings %+v", s)
	}
	if p := cfg.PreviewSettings(); p.Interval != 16*time.Millisecond {
		t.Errorf("unexpected preview settings %+v", p)
	}
	if b := cfg.BorderSettings(); b.Tolerance != 30 {
		t.Errorf("Expected tolerance 30, got %d", b.Tolerance)
	}
	if v := cfg.VisionSettings(); v.Model != "qwen2.5vl:7b" || v.SendSize != 1024 {
		t.Errorf("unexpected vision settings %+v", v)
	}
}

func TestGetConfigPath(t *testing.T) {
	if filepath.Base(GetConfigPath()) != "config.json" {
		t.Errorf("unexpected config path %s", GetConfigPath())
	}
}
