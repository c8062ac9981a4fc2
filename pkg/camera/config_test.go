package camera

import (
	"errors"
	"testing"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if errs := cfg.Validate(); len(errs) > 0 {
		t.Fatalf("default config should be valid, got %v", errs)
	}
	if cfg.WindowName != "Camera Feed" {
		t.Errorf("WindowName = %q, want Camera Feed", cfg.WindowName)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"vga", func(c *Config) { c.Width, c.Height = 640, 480 }, false},
		{"negative device", func(c *Config) { c.DeviceID = -1 }, true},
		{"negative device with file", func(c *Config) { c.DeviceID = -1; c.VideoFile = "in.mp4" }, false},
		{"width only", func(c *Config) { c.Width = 640 }, true},
		{"too wide", func(c *Config) { c.Width, c.Height = MaxWidth+1, 480 }, true},
		{"framerate", func(c *Config) { c.Framerate = MaxFramerate + 1 }, true},
		{"no window name", func(c *Config) { c.WindowName = "" }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			errs := cfg.Validate()
			if tc.wantErr && len(errs) == 0 {
				t.Error("expected validation errors")
			}
			if !tc.wantErr && len(errs) > 0 {
				t.Errorf("unexpected validation errors: %v", errs)
			}
		})
	}
}

func TestConfig_Source(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.Source(); got != "device 0" {
		t.Errorf("Source() = %q", got)
	}
	cfg.VideoFile = "board.mp4"
	if !cfg.IsFile() || cfg.Source() != "board.mp4" {
		t.Errorf("Source() = %q, IsFile = %v", cfg.Source(), cfg.IsFile())
	}
}

func TestPresets(t *testing.T) {
	for _, name := range PresetNames() {
		p := GetPreset(name)
		if p == nil {
			t.Fatalf("preset %q missing", name)
		}
		if errs := p.Validate(); len(errs) > 0 {
			t.Errorf("preset %q invalid: %v", name, errs)
		}
	}
	if GetPreset("8k") != nil {
		t.Error("unknown preset should return nil")
	}
	if vga := GetPreset(PresetVGA); vga.Width != 640 || vga.Height != 480 {
		t.Errorf("vga preset = %dx%d", vga.Width, vga.Height)
	}
}

func TestOpen_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowName = ""
	if _, err := Open(cfg); err == nil {
		t.Error("expected error for invalid config")
	}
}

func TestOpen_MissingFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VideoFile = "/nonexistent/board.mp4"

	_, err := Open(cfg)
	if err == nil {
		t.Fatal("expected error for missing video file")
	}
	if !errors.Is(err, ErrOpen) {
		t.Errorf("expected ErrOpen, got %v", err)
	}
}
