package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"skytag/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLogs := filepath.Join(tempHome, ".local", "share", "skytag", "logs")
	if cfg.Paths.LogDir != wantLogs {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogs)
	}
	if cfg.JournalPath() != filepath.Join(tempHome, ".local", "share", "skytag", "journal.db") {
		t.Fatalf("unexpected journal path: %q", cfg.JournalPath())
	}
	if cfg.Camera.FocalLength != 4.5 || cfg.Camera.FocalLength35mm != 24.0 {
		t.Fatalf("unexpected camera defaults: %+v", cfg.Camera)
	}
	if cfg.Extraction.ImageExtension != "jpg" {
		t.Fatalf("unexpected image extension: %q", cfg.Extraction.ImageExtension)
	}
	if cfg.Telemetry.GPSOrder != config.GPSOrderLatLon {
		t.Fatalf("unexpected gps order: %q", cfg.Telemetry.GPSOrder)
	}
	if !cfg.GeoTrack.Enabled || cfg.GeoTrack.CRS != config.CRSWGS84 {
		t.Fatalf("unexpected geotrack defaults: %+v", cfg.GeoTrack)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.LogDir, cfg.Paths.StateDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "skytag.toml")

	type payload struct {
		Camera struct {
			FocalLength float64 `toml:"focal_length"`
		} `toml:"camera"`
		Extraction struct {
			ImageExtension string `toml:"image_extension"`
		} `toml:"extraction"`
		Telemetry struct {
			GPSOrder string `toml:"gps_order"`
		} `toml:"telemetry"`
		GeoTrack struct {
			CRS string `toml:"crs"`
		} `toml:"geotrack"`
	}
	custom := payload{}
	custom.Camera.FocalLength = 8.8
	custom.Extraction.ImageExtension = ".JPEG"
	custom.Telemetry.GPSOrder = "lon-lat"
	custom.GeoTrack.CRS = "epsg:3857"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Camera.FocalLength != 8.8 {
		t.Fatalf("expected focal length from file, got %v", cfg.Camera.FocalLength)
	}
	if cfg.Camera.FocalLength35mm != 24.0 {
		t.Fatalf("expected default 35mm focal length to survive, got %v", cfg.Camera.FocalLength35mm)
	}
	if cfg.Extraction.ImageExtension != "jpeg" {
		t.Fatalf("expected normalized extension, got %q", cfg.Extraction.ImageExtension)
	}
	if cfg.Telemetry.GPSOrder != config.GPSOrderLonLat {
		t.Fatalf("expected normalized gps order, got %q", cfg.Telemetry.GPSOrder)
	}
	if cfg.GeoTrack.CRS != config.CRSWebMercator {
		t.Fatalf("expected normalized crs, got %q", cfg.GeoTrack.CRS)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "skytag.toml")
	if err := os.WriteFile(configPath, []byte("[camera]\nfocal = 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestEnvVarOverridesToolBinaries(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "skytag.toml")
	if err := os.WriteFile(configPath, []byte("[tools]\nexiftool = \"/opt/exiftool\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SKYTAG_EXIFTOOL", "/usr/local/bin/exiftool")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Tools.Exiftool != "/usr/local/bin/exiftool" {
		t.Errorf("expected exiftool from env, got %q", cfg.Tools.Exiftool)
	}
	if cfg.Tools.FFmpeg != "ffmpeg" {
		t.Errorf("expected default ffmpeg, got %q", cfg.Tools.FFmpeg)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "focal_length_35mm") {
		t.Fatalf("sample config missing camera section: %s", contents)
	}

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
	if cfg.Camera.FocalLength != config.Default().Camera.FocalLength {
		t.Fatalf("sample focal length drifted from defaults: %v", cfg.Camera.FocalLength)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero focal length", func(c *config.Config) { c.Camera.FocalLength = 0 }},
		{"negative 35mm focal length", func(c *config.Config) { c.Camera.FocalLength35mm = -1 }},
		{"unsupported extension", func(c *config.Config) { c.Extraction.ImageExtension = "gif" }},
		{"quality out of range", func(c *config.Config) { c.Extraction.Quality = 40 }},
		{"negative subtitle stream", func(c *config.Config) { c.Extraction.SubtitleStream = -1 }},
		{"unknown gps order", func(c *config.Config) { c.Telemetry.GPSOrder = "xy" }},
		{"unknown crs", func(c *config.Config) { c.GeoTrack.CRS = "EPSG:27700" }},
		{"unknown log format", func(c *config.Config) { c.Logging.Format = "xml" }},
		{"unknown log level", func(c *config.Config) { c.Logging.Level = "trace" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
