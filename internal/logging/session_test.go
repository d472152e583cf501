package logging

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionFile(t *testing.T) {
	sessionStart := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name   string
		dir    string
		suffix string
		want   string
	}{
		{"log", "dronelogs", "log", filepath.Join("dronelogs", "dronesim.20260212_213836.log")},
		{"dotted dir", "./dronelogs", "metrics.json", filepath.Join("dronelogs", "dronesim.20260212_213836.metrics.json")},
		{"absolute", filepath.Join("/var", "log", "dronesim"), "influx.lp.gz", filepath.Join("/var", "log", "dronesim", "dronesim.20260212_213836.influx.lp.gz")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SessionFile(tt.dir, "dronesim", tt.suffix, sessionStart))
		})
	}
}
