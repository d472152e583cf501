package logging

import (
	"context"
	"errors"
	"log/slog"
)

// Fanout sends every record to all of its handlers. A failing sink does
// not starve the others; their errors are joined.
type Fanout struct {
	handlers []slog.Handler
}

// NewFanout returns a handler over the non-nil handlers given.
func NewFanout(handlers ...slog.Handler) *Fanout {
	f := &Fanout{handlers: make([]slog.Handler, 0, len(handlers))}
	for _, h := range handlers {
		if h != nil {
			f.handlers = append(f.handlers, h)
		}
	}
	return f
}

func (f *Fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *Fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f *Fanout) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f *Fanout) each(fn func(slog.Handler) slog.Handler) *Fanout {
	out := &Fanout{handlers: make([]slog.Handler, len(f.handlers))}
	for i, h := range f.handlers {
		out.handlers[i] = fn(h)
	}
	return out
}

// ContextProvider returns the attributes describing what the process is
// doing right now, such as the active mission.
type ContextProvider func() []slog.Attr

// StampHandler appends the provider's attributes to every record it handles.
// Attributes with an empty string value are skipped, so nothing is stamped
// before the first mission starts.
type StampHandler struct {
	inner    slog.Handler
	provider ContextProvider
}

// NewStampHandler wraps inner.
func NewStampHandler(inner slog.Handler, provider ContextProvider) *StampHandler {
	return &StampHandler{inner: inner, provider: provider}
}

func (h *StampHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *StampHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider != nil {
		for _, a := range h.provider() {
			if a.Value.Kind() == slog.KindString && a.Value.String() == "" {
				continue
			}
			r.AddAttrs(a)
		}
	}
	return h.inner.Handle(ctx, r)
}

func (h *StampHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &StampHandler{inner: h.inner.WithAttrs(attrs), provider: h.provider}
}

func (h *StampHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &StampHandler{inner: h.inner.WithGroup(name), provider: h.provider}
}
