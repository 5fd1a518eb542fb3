package logging

import (
	"context"
	"errors"
	"log/slog"
	"slices"
)

// ContextProvider reports attributes describing what the program is doing
// right now, such as the current episode and step.
type ContextProvider func() []slog.Attr

// fanout sends each record to every child enabled for its level.
type fanout []slog.Handler

func newFanout(handlers ...slog.Handler) fanout {
	return slices.DeleteFunc(slices.Clone(handlers), func(h slog.Handler) bool { return h == nil })
}

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(f, func(h slog.Handler) bool { return h.Enabled(ctx, level) })
}

// Handle delivers to all children even when some fail and joins their errors.
func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

// progressHandler stamps every record with the provider's attributes as of
// the moment the record is handled.
type progressHandler struct {
	next     slog.Handler
	provider ContextProvider
}

func (h progressHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h progressHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs := h.provider(); len(attrs) > 0 {
		r = r.Clone()
		r.AddAttrs(attrs...)
	}
	return h.next.Handle(ctx, r)
}

func (h progressHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return progressHandler{next: h.next.WithAttrs(attrs), provider: h.provider}
}

func (h progressHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return progressHandler{next: h.next.WithGroup(name), provider: h.provider}
}
