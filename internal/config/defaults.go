package config

const (
	defaultConfigPath      = "~/.config/skytag/config.toml"
	defaultLogDir          = "~/.local/share/skytag/logs"
	defaultStateDir        = "~/.local/share/skytag"
	defaultFocalLength     = 4.5
	defaultFocalLength35mm = 24.0
	defaultImageExtension  = "jpg"
	defaultQuality         = 1
	defaultGPSOrder        = GPSOrderLatLon
	defaultGeoTrackExt     = "geojson"
	defaultGeoTrackCRS     = CRSWGS84
	defaultFFmpeg          = "ffmpeg"
	defaultFFprobe         = "ffprobe"
	defaultExiftool        = "exiftool"
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultRetentionDays   = 30
)

// GPS tuple layouts accepted by telemetry.gps_order.
const (
	GPSOrderLatLon = "lat_lon"
	GPSOrderLonLat = "lon_lat"
)

// Coordinate reference systems accepted by geotrack.crs.
const (
	CRSWGS84       = "EPSG:4326"
	CRSWebMercator = "EPSG:3857"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
		},
		Camera: Camera{
			FocalLength:     defaultFocalLength,
			FocalLength35mm: defaultFocalLength35mm,
		},
		Extraction: Extraction{
			ImageExtension: defaultImageExtension,
			Quality:        defaultQuality,
		},
		Telemetry: Telemetry{
			GPSOrder: defaultGPSOrder,
		},
		GeoTrack: GeoTrack{
			Enabled:   true,
			Extension: defaultGeoTrackExt,
			CRS:       defaultGeoTrackCRS,
		},
		Tools: Tools{
			FFmpeg:   defaultFFmpeg,
			FFprobe:  defaultFFprobe,
			Exiftool: defaultExiftool,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultRetentionDays,
		},
	}
}
