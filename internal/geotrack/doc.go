// Package geotrack renders parsed telemetry as a GeoJSON FeatureCollection.
//
// The collection holds one LineString for the whole flight plus one Point per
// trackpoint carrying the camera readings as properties. Output can stay in
// WGS84 or be projected to Web Mercator. ExportAsync writes the file in the
// background; failures are logged and never stop the tagging run.
package geotrack
