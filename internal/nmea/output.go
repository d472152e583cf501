package nmea

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"go.bug.st/serial"

	"github.com/OCAP2/dronesim/internal/geo"
	"github.com/OCAP2/dronesim/internal/sim"
)

// OpenSerial opens port at baud, 8N1.
func OpenSerial(port string, baud int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", port, err)
	}
	return p, nil
}

// Output periodically writes GGA and RMC sentences for the current
// simulation state.
type Output struct {
	w        io.Writer
	proj     *geo.Projector
	source   func() sim.Snapshot
	interval time.Duration
	log      *slog.Logger

	last    sim.Snapshot
	hasLast bool
}

// NewOutput creates an output reading snapshots from source.
func NewOutput(w io.Writer, proj *geo.Projector, source func() sim.Snapshot, interval time.Duration, log *slog.Logger) *Output {
	if interval <= 0 {
		interval = time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Output{w: w, proj: proj, source: source, interval: interval, log: log}
}

// Fix derives a position report from s, using the previous call for
// ground speed.
func (o *Output) Fix(s sim.Snapshot) Fix {
	f := Fix{
		Time:     s.Time,
		Position: o.proj.Position(s.X, s.Y, s.Altitude),
		Course:   Course(s.Heading),
		Valid:    true,
	}
	if o.hasLast {
		if dt := s.Time.Sub(o.last.Time).Seconds(); dt > 0 {
			px := math.Hypot(s.X-o.last.X, s.Y-o.last.Y)
			f.SpeedMS = px * o.proj.MetersPerPixel() / dt
		}
	}
	o.last = s
	o.hasLast = true
	return f
}

// WriteFix writes one GGA and RMC pair.
func (o *Output) WriteFix(f Fix) error {
	if _, err := io.WriteString(o.w, GGA(f)+RMC(f)); err != nil {
		return fmt.Errorf("writing NMEA sentences: %w", err)
	}
	return nil
}

// Run writes a fix every interval until ctx is cancelled.
func (o *Output) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := o.WriteFix(o.Fix(o.source())); err != nil {
				o.log.Warn("NMEA output failed", "error", err)
			}
		}
	}
}
