package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"skytag/internal/geotrack"
	"skytag/internal/telemetry"
)

type trackpointView struct {
	Index     int      `json:"index"`
	OffsetMS  int64    `json:"offset_ms"`
	Latitude  float64  `json:"lat"`
	Longitude float64  `json:"lon"`
	GPSAlt    *float64 `json:"gps_alt_m,omitempty"`
	Altitude  float64  `json:"alt_m"`
	Speed     float64  `json:"speed_kmh"`
	Timecode  string   `json:"timecode"`
	ShiftS    int64    `json:"shift_s"`
	Shutter   string   `json:"shutter,omitempty"`
	ISO       string   `json:"iso,omitempty"`
	Aperture  string   `json:"aperture,omitempty"`
	EV        string   `json:"ev,omitempty"`
	DZoom     string   `json:"dzoom,omitempty"`
}

func newTrackpointView(p telemetry.Trackpoint) trackpointView {
	view := trackpointView{
		Index:     p.Index,
		OffsetMS:  p.Offset.Milliseconds(),
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Altitude:  p.BarometricAltitude,
		Speed:     p.HorizontalSpeed,
		Timecode:  p.Timecode,
		ShiftS:    int64(p.Shift.Seconds()),
		Shutter:   p.ShutterSpeed,
		ISO:       p.ISO,
		Aperture:  p.Aperture,
		EV:        p.ExposureCompensation,
		DZoom:     p.DigitalZoom,
	}
	if p.HasGPSAltitude {
		alt := p.GPSAltitude
		view.GPSAlt = &alt
	}
	return view
}

func newTelemetryCommand(ctx *commandContext) *cobra.Command {
	var (
		gpsOrder   string
		geojsonOut string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "telemetry <file.srt>",
		Short: "Parse a telemetry caption file and print its trackpoints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			orderValue := cfg.Telemetry.GPSOrder
			if strings.TrimSpace(gpsOrder) != "" {
				orderValue = gpsOrder
			}
			order, err := telemetry.ParseGPSOrder(orderValue)
			if err != nil {
				return err
			}

			points, err := telemetry.ParseFile(args[0], telemetry.WithGPSOrder(order))
			if err != nil {
				return err
			}

			if out := strings.TrimSpace(geojsonOut); out != "" {
				if err := geotrack.WriteFile(out, points, geotrack.Options{CRS: cfg.GeoTrack.CRS, Indent: true}); err != nil {
					return err
				}
			}

			if jsonOutput {
				views := make([]trackpointView, 0, len(points))
				for _, p := range points {
					views = append(views, newTrackpointView(p))
				}
				return writeJSON(cmd, views)
			}

			rows := make([][]string, 0, len(points))
			for _, p := range points {
				rows = append(rows, []string{
					strconv.Itoa(p.Index),
					p.Offset.String(),
					formatFloat(p.Latitude, 6),
					formatFloat(p.Longitude, 6),
					formatFloat(p.BarometricAltitude, 1),
					formatFloat(p.HorizontalSpeed, 1),
					dash(p.Timecode),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]column{
				numCol("#"), numCol("Offset"), numCol("Latitude"), numCol("Longitude"),
				numCol("Alt (m)"), numCol("Speed (km/h)"), textCol("Timecode"),
			}, rows))
			fmt.Fprintf(out, "%d trackpoints (gps order %s)\n", len(points), order)
			return nil
		},
	}

	cmd.Flags().StringVar(&gpsOrder, "gps-order", "", "GPS tuple layout: lat_lon or lon_lat (default from config)")
	cmd.Flags().StringVar(&geojsonOut, "geojson", "", "Also write the track as GeoJSON to this path")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print trackpoints as JSON")
	return cmd
}
