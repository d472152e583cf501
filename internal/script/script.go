// Package script parses line-oriented mission scripts into command steppers.
package script

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/OCAP2/dronesim/internal/command"
)

// DefaultScript is the demonstration mission loaded when nothing else is given.
const DefaultScript = `TAKEOFF
SETSPEED 140
MOVE 160
TURN 90
MOVE 90
TURN -45
MOVE 140
WAIT 0.4
HOME
LAND
`

// ErrEmpty is returned for a script with no non-blank text.
var ErrEmpty = errors.New("no script to run")

// ParseError reports the first line that could not be parsed.
// Line is 1-based and counts only non-blank, non-comment lines.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("Script error on line %d: %s", e.Line, e.Text)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var (
	errUnknownCommand  = errors.New("unknown command")
	errMissingArgument = errors.New("missing argument")
	errNotANumber      = errors.New("not a number")
)

// Line is one significant script line.
type Line struct {
	Number int
	Text   string
}

// Lines strips blank lines and '#' comments, returning what is left in order.
func Lines(text string) []Line {
	var out []Line
	for _, raw := range strings.Split(text, "\n") {
		ln := strings.TrimSpace(raw)
		if ln == "" || strings.HasPrefix(ln, "#") {
			continue
		}
		out = append(out, Line{Number: len(out) + 1, Text: ln})
	}
	return out
}

// Parse converts a script into steppers. The whole parse fails on the first
// bad line; no partial result is returned.
func Parse(text string) ([]command.Stepper, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmpty
	}

	lines := Lines(text)
	steppers := make([]command.Stepper, 0, len(lines))
	for _, ln := range lines {
		s, err := parseLine(ln.Text)
		if err != nil {
			return nil, &ParseError{Line: ln.Number, Text: ln.Text, Err: err}
		}
		steppers = append(steppers, s)
	}
	return steppers, nil
}

func parseLine(line string) (command.Stepper, error) {
	parts := strings.Fields(line)
	args := parts[1:]

	switch command.Kind(strings.ToUpper(parts[0])) {
	case command.KindTakeoff:
		return command.NewTakeoff(), nil
	case command.KindLand:
		return command.NewLand(), nil
	case command.KindHome:
		return command.NewHome(), nil
	case command.KindWait:
		sec, err := floatArg(args, 0)
		if err != nil {
			return nil, err
		}
		return command.NewWait(sec), nil
	case command.KindTurn:
		deg, err := floatArg(args, 0)
		if err != nil {
			return nil, err
		}
		return command.NewTurn(deg), nil
	case command.KindMove:
		dist, err := floatArg(args, 0)
		if err != nil {
			return nil, err
		}
		return command.NewMove(dist), nil
	case command.KindGoto:
		x, err := floatArg(args, 0)
		if err != nil {
			return nil, err
		}
		y, err := floatArg(args, 1)
		if err != nil {
			return nil, err
		}
		return command.NewGoto(x, y), nil
	case command.KindSetSpeed:
		sp, err := floatArg(args, 0)
		if err != nil {
			return nil, err
		}
		return command.NewSetSpeed(sp), nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownCommand, parts[0])
	}
}

func floatArg(args []string, i int) (float64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("%w %d", errMissingArgument, i+1)
	}
	v, err := strconv.ParseFloat(args[i], 64)
	if err != nil {
		return 0, fmt.Errorf("argument %d: %w", i+1, err)
	}
	if math.IsNaN(v) {
		return 0, fmt.Errorf("argument %d: %w", i+1, errNotANumber)
	}
	return v, nil
}
