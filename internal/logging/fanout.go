package logging

import (
	"context"
	"log/slog"
)

// fanout duplicates records to several handlers, each filtered by its own
// level.
type fanout []slog.Handler

func newFanout(handlers ...slog.Handler) slog.Handler {
	kept := make(fanout, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			kept = append(kept, h)
		}
	}
	switch len(kept) {
	case 0:
		return NoopHandler{}
	case 1:
		return kept[0]
	}
	return kept
}

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, record slog.Record) error {
	var first error
	for i, h := range f {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		rec := record
		if i < len(f)-1 {
			rec = record.Clone()
		}
		if err := h.Handle(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(fanout, len(f))
	for i, h := range f {
		next[i] = h.WithAttrs(attrs)
	}
	return next
}

func (f fanout) WithGroup(name string) slog.Handler {
	next := make(fanout, len(f))
	for i, h := range f {
		next[i] = h.WithGroup(name)
	}
	return next
}

// TeeLogger returns a logger that writes to base and to every extra handler.
func TeeLogger(base *slog.Logger, extra ...slog.Handler) *slog.Logger {
	if base == nil {
		return slog.New(newFanout(extra...))
	}
	return slog.New(newFanout(append([]slog.Handler{base.Handler()}, extra...)...))
}
