package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	return d, logger
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	called := false
	d.Register(":TEST:", func(e Event) (any, error) {
		called = true
		return "result", nil
	})

	result, err := d.Dispatch(Event{Command: ":TEST:", Args: []string{"arg1"}})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
	if result != "result" {
		t.Errorf("expected 'result', got %v", result)
	}
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(Event{Command: ":UNKNOWN:"})

	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestDispatcher_StampsTimestamp(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got Event
	d.Register(":STAMP:", func(e Event) (any, error) {
		got = e
		return nil, nil
	})

	d.Dispatch(Event{Command: ":STAMP:", Source: "http"})

	if got.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
	if got.Source != "http" {
		t.Errorf("expected source 'http', got %q", got.Source)
	}
}

func TestDispatcher_Commands(t *testing.T) {
	d, _ := newTestDispatcher(t)

	noop := func(e Event) (any, error) { return nil, nil }
	d.Register(":TOGGLE:", noop)
	d.Register(":RESET:", noop)
	d.Register(":LAND:", noop)

	got := d.Commands()
	want := []string{":LAND:", ":RESET:", ":TOGGLE:"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":LOGGED:", func(e Event) (any, error) {
		return "ok", nil
	}, Logged())

	d.Dispatch(Event{Command: ":LOGGED:", Args: []string{"a", "b"}})

	// Give time for logging
	time.Sleep(10 * time.Millisecond)

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected at least 2 log messages, got %d", len(logger.messages))
	}
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":ERROR:", func(e Event) (any, error) {
		return nil, fmt.Errorf("test error")
	}, Logged())

	d.Dispatch(Event{Command: ":ERROR:"})

	logger.mu.Lock()
	defer logger.mu.Unlock()

	hasError := false
	for _, msg := range logger.messages {
		if len(msg) >= 5 && msg[:5] == "ERROR" {
			hasError = true
			break
		}
	}

	if !hasError {
		t.Error("expected error log message")
	}
}

func TestDispatcher_HasHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register(":EXISTS:", func(e Event) (any, error) { return nil, nil })

	if !d.HasHandler(":EXISTS:") {
		t.Error("expected handler to exist")
	}

	if d.HasHandler(":NOT_EXISTS:") {
		t.Error("expected handler to not exist")
	}
}

func TestDispatcher_Throttled(t *testing.T) {
	d, _ := newTestDispatcher(t)

	calls := 0
	d.Register(":TOGGLE:", func(e Event) (any, error) {
		calls++
		return nil, nil
	}, Throttled(200*time.Millisecond))

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	dispatch := func(offset time.Duration, source string) error {
		_, err := d.Dispatch(Event{Command: ":TOGGLE:", Source: source, Timestamp: base.Add(offset)})
		return err
	}

	if err := dispatch(0, "console"); err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if err := dispatch(50*time.Millisecond, "console"); !errors.Is(err, ErrThrottled) {
		t.Errorf("expected ErrThrottled for a repeat, got %v", err)
	}
	if err := dispatch(60*time.Millisecond, "http"); err != nil {
		t.Errorf("other sources are not throttled: %v", err)
	}
	if err := dispatch(250*time.Millisecond, "console"); err != nil {
		t.Errorf("toggle after the window: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDispatcher_ThrottledRejectionNotLogged(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":LAND:", func(e Event) (any, error) { return nil, nil }, Logged(), Throttled(time.Second))

	now := time.Now()
	d.Dispatch(Event{Command: ":LAND:", Timestamp: now})
	d.Dispatch(Event{Command: ":LAND:", Timestamp: now})

	logger.mu.Lock()
	defer logger.mu.Unlock()
	for _, msg := range logger.messages {
		if len(msg) >= 5 && msg[:5] == "ERROR" {
			t.Errorf("throttled repeat should not reach the handler log: %s", msg)
		}
	}
}

func TestDispatcher_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		_ = provider.Shutdown(context.Background())
	})

	d, _ := newTestDispatcher(t)
	d.Register(":OK:", func(e Event) (any, error) { return nil, nil })
	d.Register(":FAIL:", func(e Event) (any, error) { return nil, errors.New("boom") })

	d.Dispatch(Event{Command: ":OK:", Source: "http"})
	d.Dispatch(Event{Command: ":OK:", Source: "http"})
	d.Dispatch(Event{Command: ":FAIL:", Source: "console"})

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					totals[m.Name] += dp.Value
				}
			}
		}
	}
	if totals["dispatcher.commands.handled"] != 3 {
		t.Errorf("expected 3 handled, got %d", totals["dispatcher.commands.handled"])
	}
	if totals["dispatcher.commands.failed"] != 1 {
		t.Errorf("expected 1 failed, got %d", totals["dispatcher.commands.failed"])
	}
}
