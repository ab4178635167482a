package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCamera(); err != nil {
		return err
	}
	if err := c.validateExtraction(); err != nil {
		return err
	}
	if err := c.validateTelemetry(); err != nil {
		return err
	}
	if err := c.validateGeoTrack(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCamera() error {
	if c.Camera.FocalLength <= 0 {
		return errors.New("camera.focal_length must be positive")
	}
	if c.Camera.FocalLength35mm <= 0 {
		return errors.New("camera.focal_length_35mm must be positive")
	}
	return nil
}

func (c *Config) validateExtraction() error {
	switch c.Extraction.ImageExtension {
	case "jpg", "jpeg", "tif", "tiff", "png":
	default:
		return fmt.Errorf("extraction.image_extension: unsupported value %q", c.Extraction.ImageExtension)
	}
	if c.Extraction.Quality < 1 || c.Extraction.Quality > 31 {
		return errors.New("extraction.quality must be between 1 and 31")
	}
	if c.Extraction.SubtitleStream < 0 {
		return errors.New("extraction.subtitle_stream must be >= 0")
	}
	return nil
}

func (c *Config) validateTelemetry() error {
	switch c.Telemetry.GPSOrder {
	case GPSOrderLatLon, GPSOrderLonLat:
		return nil
	default:
		return fmt.Errorf("telemetry.gps_order: unsupported value %q (use %q or %q)", c.Telemetry.GPSOrder, GPSOrderLatLon, GPSOrderLonLat)
	}
}

func (c *Config) validateGeoTrack() error {
	switch c.GeoTrack.CRS {
	case CRSWGS84, CRSWebMercator:
		return nil
	default:
		return fmt.Errorf("geotrack.crs: unsupported value %q", c.GeoTrack.CRS)
	}
}

func (c *Config) validateLogging() error {
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
