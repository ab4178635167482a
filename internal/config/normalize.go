package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeExtraction()
	c.normalizeTelemetry()
	c.normalizeGeoTrack()
	c.normalizeTools()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeExtraction() {
	ext := strings.ToLower(strings.TrimSpace(c.Extraction.ImageExtension))
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = defaultImageExtension
	}
	c.Extraction.ImageExtension = ext
	if c.Extraction.Quality == 0 {
		c.Extraction.Quality = defaultQuality
	}
}

func (c *Config) normalizeTelemetry() {
	order := strings.ToLower(strings.TrimSpace(c.Telemetry.GPSOrder))
	order = strings.ReplaceAll(order, "-", "_")
	if order == "" {
		order = defaultGPSOrder
	}
	c.Telemetry.GPSOrder = order
}

func (c *Config) normalizeGeoTrack() {
	ext := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.GeoTrack.Extension)), ".")
	if ext == "" {
		ext = defaultGeoTrackExt
	}
	c.GeoTrack.Extension = ext
	crs := strings.ToUpper(strings.TrimSpace(c.GeoTrack.CRS))
	if crs == "" {
		crs = defaultGeoTrackCRS
	}
	c.GeoTrack.CRS = crs
}

func (c *Config) normalizeTools() {
	c.Tools.FFmpeg = toolOverride(c.Tools.FFmpeg, "SKYTAG_FFMPEG", defaultFFmpeg)
	c.Tools.FFprobe = toolOverride(c.Tools.FFprobe, "SKYTAG_FFPROBE", defaultFFprobe)
	c.Tools.Exiftool = toolOverride(c.Tools.Exiftool, "SKYTAG_EXIFTOOL", defaultExiftool)
}

func toolOverride(value, envKey, fallback string) string {
	if env, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(env) != "" {
		return strings.TrimSpace(env)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
