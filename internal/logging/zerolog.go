package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// NewZerolog builds the zerolog logger used by storage and metrics managers,
// writing to w at the given level name.
func NewZerolog(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// KV exposes a zerolog.Logger through the key/value logger interface the
// recorder pipeline expects.
type KV struct {
	zl zerolog.Logger
}

// ForComponent tags every entry with component=name.
func ForComponent(zl zerolog.Logger, name string) KV {
	return KV{zl: zl.With().Str("component", name).Logger()}
}

func (l KV) Debug(msg string, keysAndValues ...any) { emit(l.zl.Debug(), msg, keysAndValues) }
func (l KV) Info(msg string, keysAndValues ...any)  { emit(l.zl.Info(), msg, keysAndValues) }
func (l KV) Error(msg string, keysAndValues ...any) { emit(l.zl.Error(), msg, keysAndValues) }

// emit is a no-op on a disabled (nil) event. A trailing key without a value
// is dropped.
func emit(ev *zerolog.Event, msg string, kv []any) {
	if ev == nil {
		return
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		if err, isErr := kv[i+1].(error); isErr {
			ev = ev.AnErr(key, err)
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	ev.Msg(msg)
}
