// Package dispatcher routes control commands from every front end (HTTP,
// websocket, console, start-up) to a single set of handlers.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/dronesim/internal/dispatcher"

var (
	// ErrUnknownCommand is returned by Dispatch when no handler is registered.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrThrottled is returned when a throttled command repeats too quickly
	// from the same source.
	ErrThrottled = errors.New("command throttled")
)

// Event represents an incoming control command, e.g. ":TOGGLE:" from the
// HTTP API or the console.
type Event struct {
	Command   string
	Args      []string
	Timestamp time.Time
	Source    string
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*options)

type options struct {
	logged   bool
	throttle time.Duration
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(o *options) {
		o.logged = true
	}
}

// Throttled drops repeats of the command from the same source that arrive
// within d of the last accepted one. A held key on the console auto-repeats;
// this keeps a toggle from flapping.
func Throttled(d time.Duration) Option {
	return func(o *options) {
		o.throttle = d
	}
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	hmu      sync.RWMutex
	handlers map[string]HandlerFunc
	logger   Logger
	now      func() time.Time

	handled   metric.Int64Counter
	failed    metric.Int64Counter
	throttled metric.Int64Counter
	duration  metric.Float64Histogram
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
		now:      time.Now,
	}

	m := otel.Meter(instrumentationName)

	var err error
	d.handled, err = m.Int64Counter(
		"dispatcher.commands.handled",
		metric.WithDescription("Control commands handled"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating handled counter: %w", err)
	}

	d.failed, err = m.Int64Counter(
		"dispatcher.commands.failed",
		metric.WithDescription("Control commands whose handler returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	d.throttled, err = m.Int64Counter(
		"dispatcher.commands.throttled",
		metric.WithDescription("Control commands rejected as repeats"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating throttled counter: %w", err)
	}

	d.duration, err = m.Float64Histogram(
		"dispatcher.command.duration",
		metric.WithDescription("Time spent in the command handler"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given command with optional configuration.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	handler := d.withMetrics(command, h)

	if o.logged {
		handler = d.withLogging(command, handler)
	}

	if o.throttle > 0 {
		handler = d.withThrottle(command, o.throttle, handler)
	}

	d.hmu.Lock()
	d.handlers[command] = handler
	d.hmu.Unlock()
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	d.hmu.RLock()
	h, ok := d.handlers[e.Command]
	d.hmu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = d.now()
	}
	return h(e)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	d.hmu.RLock()
	defer d.hmu.RUnlock()
	_, ok := d.handlers[command]
	return ok
}

// Commands returns the registered command names in sorted order.
func (d *Dispatcher) Commands() []string {
	d.hmu.RLock()
	defer d.hmu.RUnlock()
	out := make([]string, 0, len(d.handlers))
	for cmd := range d.handlers {
		out = append(out, cmd)
	}
	sort.Strings(out)
	return out
}

func (d *Dispatcher) withMetrics(command string, h HandlerFunc) HandlerFunc {
	cmdAttr := attribute.String("command", command)
	return func(e Event) (any, error) {
		start := time.Now()
		result, err := h(e)

		attrs := metric.WithAttributes(cmdAttr, attribute.String("source", e.Source))
		ctx := context.Background()
		d.handled.Add(ctx, 1, attrs)
		d.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)
		if err != nil {
			d.failed.Add(ctx, 1, attrs)
		}
		return result, err
	}
}

func (d *Dispatcher) withThrottle(command string, window time.Duration, h HandlerFunc) HandlerFunc {
	var mu sync.Mutex
	last := make(map[string]time.Time)
	cmdAttr := attribute.String("command", command)

	return func(e Event) (any, error) {
		mu.Lock()
		prev, seen := last[e.Source]
		if seen && e.Timestamp.Sub(prev) < window {
			mu.Unlock()
			d.throttled.Add(context.Background(), 1, metric.WithAttributes(cmdAttr, attribute.String("source", e.Source)))
			return nil, fmt.Errorf("%w: %s", ErrThrottled, command)
		}
		last[e.Source] = e.Timestamp
		mu.Unlock()
		return h(e)
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling command", "command", command, "args", len(e.Args), "source", e.Source)

		result, err := h(e)

		if err != nil {
			d.logger.Error("command failed", "command", command, "source", e.Source, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("command complete", "command", command, "duration", time.Since(start))
		}

		return result, err
	}
}
