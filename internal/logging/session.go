package logging

import (
	"fmt"
	"path/filepath"
	"time"
)

// SessionFile names a per-run file in dir, for example
// dronesim.20260212_213836.log or dronesim.20260212_213836.metrics.json.
func SessionFile(dir, appName, suffix string, sessionStart time.Time) string {
	return filepath.Join(
		dir,
		fmt.Sprintf("%s.%s.%s", appName, sessionStart.Format("20060102_150405"), suffix),
	)
}
