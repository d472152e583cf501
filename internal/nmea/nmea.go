// Package nmea emits the drone position as NMEA 0183 sentences, so ground
// station software can follow the simulated flight like a GPS receiver.
package nmea

import (
	"fmt"
	"math"
	"time"

	"github.com/OCAP2/dronesim/pkg/core"
)

const knotsPerMeterPerSecond = 1.943844

// Fix is one position report.
type Fix struct {
	Time     time.Time
	Position core.GeoPosition
	// SpeedMS is ground speed in metres per second.
	SpeedMS float64
	// Course is degrees clockwise from true north.
	Course float64
	Valid  bool
}

// Checksum returns the XOR of every byte between '$' and '*'.
func Checksum(sentence string) string {
	var sum byte
	for i := 1; i < len(sentence); i++ {
		sum ^= sentence[i]
	}
	return fmt.Sprintf("%02X", sum)
}

// Format terminates a sentence with its checksum and CRLF.
func Format(sentence string) string {
	return fmt.Sprintf("%s*%s\r\n", sentence, Checksum(sentence))
}

// Course converts an arena heading (counterclockwise from east) to a
// compass course.
func Course(heading float64) float64 {
	c := math.Mod(90-heading, 360)
	if c < 0 {
		c += 360
	}
	return c
}

func latitude(lat float64) (int, float64, string) {
	hem := "N"
	if lat < 0 {
		hem = "S"
	}
	deg := int(math.Abs(lat))
	return deg, (math.Abs(lat) - float64(deg)) * 60, hem
}

func longitude(lon float64) (int, float64, string) {
	hem := "E"
	if lon < 0 {
		hem = "W"
	}
	deg := int(math.Abs(lon))
	return deg, (math.Abs(lon) - float64(deg)) * 60, hem
}

// GGA builds a GPGGA fix data sentence.
func GGA(f Fix) string {
	ts := f.Time.UTC().Format("150405")
	if !f.Valid {
		return Format(fmt.Sprintf("$GPGGA,%s,,,,,0,00,,,,,,,", ts))
	}

	latDeg, latMin, latHem := latitude(f.Position.Latitude)
	lonDeg, lonMin, lonHem := longitude(f.Position.Longitude)
	return Format(fmt.Sprintf("$GPGGA,%s,%02d%07.4f,%s,%03d%07.4f,%s,1,08,1.0,%.1f,M,0.0,M,,",
		ts,
		latDeg, latMin, latHem,
		lonDeg, lonMin, lonHem,
		f.Position.Altitude))
}

// RMC builds a GPRMC recommended minimum sentence.
func RMC(f Fix) string {
	ts := f.Time.UTC().Format("150405")
	date := f.Time.UTC().Format("020106")
	if !f.Valid {
		return Format(fmt.Sprintf("$GPRMC,%s,V,,,,,,,%s,,,N", ts, date))
	}

	latDeg, latMin, latHem := latitude(f.Position.Latitude)
	lonDeg, lonMin, lonHem := longitude(f.Position.Longitude)
	return Format(fmt.Sprintf("$GPRMC,%s,A,%02d%07.4f,%s,%03d%07.4f,%s,%.1f,%.1f,%s,,,A",
		ts,
		latDeg, latMin, latHem,
		lonDeg, lonMin, lonHem,
		f.SpeedMS*knotsPerMeterPerSecond, f.Course, date))
}
