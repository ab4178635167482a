package deps

import "skytag/internal/config"

// ToolRequirements lists the binaries the extract pipeline shells out to.
func ToolRequirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Tools.FFmpeg,
			Description: "Extracts frames and the telemetry track",
			VersionArgs: []string{"-version"},
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Tools.FFprobe,
			Description: "Inspects video streams and creation time",
			VersionArgs: []string{"-version"},
		},
		{
			Name:        "ExifTool",
			Command:     cfg.Tools.Exiftool,
			Description: "Writes EXIF/GPS tags into frames",
			VersionArgs: []string{"-ver"},
		},
	}
}
