package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingHandler accepts every level and fails every record.
type failingHandler struct {
	slog.Handler
	err error
}

func (h failingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h failingHandler) Handle(context.Context, slog.Record) error { return h.err }

func textHandler(buf *bytes.Buffer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(buf, &slog.HandlerOptions{Level: level})
}

func TestFanout(t *testing.T) {
	var info, debug bytes.Buffer
	f := newFanout(nil, textHandler(&info, slog.LevelInfo), nil, textHandler(&debug, slog.LevelDebug))
	require.Len(t, f, 2)

	logger := slog.New(f)
	logger.Debug("fine detail")
	logger.Info("both", "agent", 2)

	assert.NotContains(t, info.String(), "fine detail")
	assert.Contains(t, debug.String(), "fine detail")
	assert.Contains(t, info.String(), "agent=2")
	assert.Contains(t, debug.String(), "agent=2")
}

func TestFanout_Enabled(t *testing.T) {
	ctx := context.Background()
	assert.False(t, newFanout().Enabled(ctx, slog.LevelError))

	f := newFanout(textHandler(&bytes.Buffer{}, slog.LevelWarn))
	assert.False(t, f.Enabled(ctx, slog.LevelInfo))
	assert.True(t, f.Enabled(ctx, slog.LevelWarn))
}

func TestFanout_JoinsErrors(t *testing.T) {
	var buf bytes.Buffer
	errA, errB := errors.New("a"), errors.New("b")
	f := newFanout(failingHandler{err: errA}, textHandler(&buf, slog.LevelInfo), failingHandler{err: errB})

	r := slog.NewRecord(time.Time{}, slog.LevelInfo, "delivered anyway", 0)
	err := f.Handle(context.Background(), r)

	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Contains(t, buf.String(), "delivered anyway")
}

func TestFanout_AttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	f := newFanout(textHandler(&buf, slog.LevelInfo))

	assert.IsType(t, fanout{}, f.WithGroup(""))

	logger := slog.New(f.WithAttrs([]slog.Attr{slog.String("component", "env")}).WithGroup("pose"))
	logger.Info("moved", "x", 0.5)

	assert.Contains(t, buf.String(), "component=env")
	assert.Contains(t, buf.String(), "pose.x=0.5")
}

func TestProgressHandler(t *testing.T) {
	var buf bytes.Buffer
	episode := ""
	h := progressHandler{
		next: textHandler(&buf, slog.LevelInfo),
		provider: func() []slog.Attr {
			if episode == "" {
				return nil
			}
			return []slog.Attr{slog.String("episode", episode)}
		},
	}
	logger := slog.New(h)

	logger.Info("before reset")
	assert.NotContains(t, buf.String(), "episode=")

	episode = "ep-9"
	logger.With("component", "driver").WithGroup("g").Info("after reset")
	assert.Contains(t, buf.String(), "component=driver")
	assert.Contains(t, buf.String(), "g.episode=ep-9")

	assert.IsType(t, progressHandler{}, h.WithGroup(""))
	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
}
