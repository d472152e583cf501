package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
)

// ZerologOptions configures the zerolog logger used by the data managers.
type ZerologOptions struct {
	Console io.Writer // coloured console output, nil to disable
	File    io.Writer // plain console format, nil to disable
	Level   string
	// GraylogAddress enables GELF output over UDP when non-empty.
	GraylogAddress string
	// Fields are attached to every entry.
	Fields map[string]any
}

// Zerolog bundles the full logger and a sampled variant for hot paths.
type Zerolog struct {
	Logger  zerolog.Logger
	Sampled zerolog.Logger
	Graylog *gelf.Writer
}

// ParseZerologLevel converts a string log level to a zerolog level.
func ParseZerologLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewZerolog builds a multi-writer zerolog logger.
func NewZerolog(opts ZerologOptions) (*Zerolog, error) {
	var writers []io.Writer
	if opts.Console != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        opts.Console,
			TimeFormat: time.RFC3339,
		})
	}
	if opts.File != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        opts.File,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		})
	}

	out := &Zerolog{}
	if opts.GraylogAddress != "" {
		gw, err := gelf.NewWriter(opts.GraylogAddress)
		if err != nil {
			return nil, fmt.Errorf("connecting to graylog at %s: %w", opts.GraylogAddress, err)
		}
		out.Graylog = gw
		writers = append(writers, gw)
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	ctx := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseZerologLevel(opts.Level)).
		With().Timestamp()
	if len(opts.Fields) > 0 {
		ctx = ctx.Fields(opts.Fields)
	}
	out.Logger = ctx.Logger()

	out.Sampled = out.Logger.With().
		Bool("sampled", true).Logger().Sample(&zerolog.BurstSampler{
		// allow max 5 entries per 10 seconds
		// once reached, sample 1 in 100
		Burst:       5,
		Period:      10 * time.Second,
		NextSampler: &zerolog.BasicSampler{N: 100},
	})

	return out, nil
}

// Close releases the Graylog connection, if any.
func (z *Zerolog) Close() error {
	if z.Graylog == nil {
		return nil
	}
	return z.Graylog.Close()
}
