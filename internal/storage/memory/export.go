// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/OCAP2/dronesim/pkg/core"
)

// FlightExport is the root JSON structure of a recording
type FlightExport struct {
	ExtensionVersion string        `json:"extensionVersion"`
	ExtensionBuild   string        `json:"extensionBuild,omitempty"`
	UUID             string        `json:"uuid"`
	MissionName      string        `json:"missionName"`
	MissionAuthor    string        `json:"missionAuthor"`
	Tag              string        `json:"tag"`
	StartTime        string        `json:"startTime"`
	EndTick          uint64        `json:"endTick"`
	Script           string        `json:"script"`
	Home             []float64     `json:"home"`
	Origin           []float64     `json:"origin"` // [lon, lat]
	MetersPerPixel   float64       `json:"metersPerPixel"`
	Arena            core.Arena    `json:"arena"`
	DistanceMeters   float64       `json:"distanceMeters"`
	Track            string        `json:"track,omitempty"` // WKT LINESTRING in EPSG:4326
	Positions        [][]any       `json:"positions"`
	Events           [][]any       `json:"events"`
	Commands         []CommandJSON `json:"commands"`
}

// CommandJSON is one command lifecycle entry
type CommandJSON struct {
	Tick    uint64 `json:"tick"`
	Kind    string `json:"kind"`
	Command string `json:"command"`
	Phase   string `json:"phase"`
	Outcome string `json:"outcome,omitempty"`
}

// exportJSON writes the mission data to a (optionally gzipped) JSON file
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	// Build filename
	missionName := strings.ReplaceAll(b.mission.MissionName, " ", "_")
	missionName = strings.ReplaceAll(missionName, ":", "_")
	missionName = strings.ReplaceAll(missionName, string(filepath.Separator), "_")
	timestamp := b.mission.StartTime.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("%s_%s.json.gz", missionName, timestamp)
	} else {
		filename = fmt.Sprintf("%s_%s.json", missionName, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write file
	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	b.lastExportMetadata = b.buildMetadata(export)
	return nil
}

func (b *Backend) buildExport() FlightExport {
	m := b.mission
	export := FlightExport{
		ExtensionVersion: m.ExtensionVersion,
		ExtensionBuild:   m.ExtensionBuild,
		UUID:             m.UUID,
		MissionName:      m.MissionName,
		MissionAuthor:    m.Author,
		Tag:              m.Tag,
		StartTime:        m.StartTime.UTC().Format(time.RFC3339),
		Script:           m.Script,
		Home:             []float64{m.HomeX, m.HomeY},
		Origin:           []float64{m.OriginLongitude, m.OriginLatitude},
		MetersPerPixel:   m.MetersPerPixel,
		Arena:            m.Arena,
		Positions:        make([][]any, 0, len(b.states)),
		Events:           make([][]any, 0, len(b.statusEvents)),
		Commands:         make([]CommandJSON, 0, len(b.commandEvents)),
	}
	if export.Arena.Obstacles == nil {
		export.Arena.Obstacles = []core.Obstacle{}
	}

	path := make([]core.Position2D, 0, len(b.states))
	for _, s := range b.states {
		export.Positions = append(export.Positions, []any{
			s.Tick,                                // [0] tick
			[]float64{s.Position.X, s.Position.Y}, // [1] arena position
			s.Heading,                             // [2] heading
			s.Altitude,                            // [3] altitude
			s.Battery,                             // [4] battery
			boolToInt(s.Flying),                   // [5] flying
			s.Command,                             // [6] active command
		})
		if s.Tick > export.EndTick {
			export.EndTick = s.Tick
		}
		if n := len(path); n == 0 || path[n-1] != s.Position {
			path = append(path, s.Position)
		}
	}

	for _, e := range b.statusEvents {
		export.Events = append(export.Events, []any{e.Tick, e.Kind, e.Detail})
	}
	for _, e := range b.commandEvents {
		export.Commands = append(export.Commands, CommandJSON{
			Tick:    e.Tick,
			Kind:    e.Kind,
			Command: e.Command,
			Phase:   e.Phase,
			Outcome: e.Outcome,
		})
	}

	if b.proj != nil {
		export.DistanceMeters = b.proj.TrackLength(path)
		if wkt, err := b.proj.TrackWKT(path); err == nil {
			export.Track = wkt
		}
	}

	return export
}

func (b *Backend) buildMetadata(export FlightExport) core.UploadMetadata {
	meta := core.UploadMetadata{
		MissionName:    b.mission.MissionName,
		Author:         b.mission.Author,
		Tag:            b.mission.Tag,
		DistanceMeters: export.DistanceMeters,
	}
	if n := len(b.states); n > 0 {
		meta.MissionDuration = b.states[n-1].Time.Sub(b.mission.StartTime).Seconds()
	}
	for _, c := range b.commandEvents {
		if c.Phase == "completed" {
			meta.CommandCount++
		}
	}
	return meta
}

func writeJSON(path string, data FlightExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data FlightExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
