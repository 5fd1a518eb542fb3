// Package recorder fans episode data out to storage and metrics sinks on a
// single background worker, so the environment loop never waits on I/O.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wlsgn1217/MARBLER/pkg/core"
)

// ErrClosed is returned when recording after Close
var ErrClosed = errors.New("recorder closed")

// ErrQueueFull is returned by a non-blocking recorder when its buffer is full
var ErrQueueFull = errors.New("recorder queue full")

// Sink receives episode data. storage.Backend satisfies it.
type Sink interface {
	StartEpisode(e *core.Episode) error
	RecordStep(s *core.StepRecord) error
	EndEpisode(s *core.EpisodeSummary) error
}

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Kind identifies a job
type Kind uint8

const (
	KindStart Kind = iota
	KindStep
	KindEnd
)

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindStep:
		return "step"
	case KindEnd:
		return "end"
	default:
		return "unknown"
	}
}

type job struct {
	kind     Kind
	episode  *core.Episode
	step     *core.StepRecord
	summary  *core.EpisodeSummary
	enqueued time.Time
}

// Option configures a Recorder.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered sets the queue size. Zero writes synchronously on the caller.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered recorder block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging per job.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Recorder forwards jobs to every sink in registration order.
type Recorder struct {
	sinks  []namedSink
	logger Logger
	cfg    config

	buffer chan job
	done   chan struct{}

	// OTEL metrics
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	failed    metric.Int64Counter

	mu     sync.RWMutex
	closed bool
}

type namedSink struct {
	name string
	sink Sink
}

// New creates a Recorder. Uses the global OTel meter for metrics
// (no-op if not configured).
func New(logger Logger, opts ...Option) (*Recorder, error) {
	r := &Recorder{logger: logger}
	for _, opt := range opts {
		opt(&r.cfg)
	}

	m := meter()
	var err error

	r.queueSize, err = m.Int64ObservableGauge(
		"recorder.queue.size",
		metric.WithDescription("Current number of jobs in queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			if r.buffer != nil {
				o.ObserveInt64(r.queueSize, int64(len(r.buffer)))
			}
			return nil
		},
		r.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	r.processed, err = m.Int64Counter(
		"recorder.jobs.processed",
		metric.WithDescription("Total jobs processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	r.dropped, err = m.Int64Counter(
		"recorder.jobs.dropped",
		metric.WithDescription("Total jobs dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	r.failed, err = m.Int64Counter(
		"recorder.sink.errors",
		metric.WithDescription("Total sink write failures"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	if r.cfg.bufferSize > 0 {
		r.buffer = make(chan job, r.cfg.bufferSize)
		r.done = make(chan struct{})
		go r.run()
	}

	return r, nil
}

// Register adds a sink. It must be called before the first job is recorded.
func (r *Recorder) Register(name string, s Sink) {
	r.sinks = append(r.sinks, namedSink{name: name, sink: s})
}

// StartEpisode queues the start of an episode.
func (r *Recorder) StartEpisode(e *core.Episode) error {
	return r.enqueue(job{kind: KindStart, episode: e})
}

// RecordStep queues a step.
func (r *Recorder) RecordStep(s *core.StepRecord) error {
	return r.enqueue(job{kind: KindStep, step: s})
}

// EndEpisode queues the end of an episode.
func (r *Recorder) EndEpisode(s *core.EpisodeSummary) error {
	return r.enqueue(job{kind: KindEnd, summary: s})
}

// Close stops accepting jobs and waits for the queue to drain.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	if r.buffer != nil {
		close(r.buffer)
	}
	r.mu.Unlock()

	if r.done != nil {
		<-r.done
	}
}

func (r *Recorder) enqueue(j job) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ErrClosed
	}
	j.enqueued = time.Now()

	if r.buffer == nil {
		return r.handle(j)
	}

	kindAttr := metric.WithAttributes(attribute.String("kind", j.kind.String()))
	if r.cfg.blocking {
		r.buffer <- j
		return nil
	}
	select {
	case r.buffer <- j:
		return nil
	default:
		r.dropped.Add(context.Background(), 1, kindAttr)
		return fmt.Errorf("%w: %s", ErrQueueFull, j.kind)
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for j := range r.buffer {
		_ = r.handle(j)
	}
}

// handle sends a job to every sink. A failing sink does not stop the others;
// the first error is returned.
func (r *Recorder) handle(j job) error {
	ctx := context.Background()
	kindAttr := attribute.String("kind", j.kind.String())

	if r.cfg.logged {
		r.logger.Debug("handling job", "kind", j.kind.String(), "queued", time.Since(j.enqueued))
	}

	var first error
	for _, ns := range r.sinks {
		var err error
		switch j.kind {
		case KindStart:
			err = ns.sink.StartEpisode(j.episode)
		case KindStep:
			err = ns.sink.RecordStep(j.step)
		case KindEnd:
			err = ns.sink.EndEpisode(j.summary)
		}
		if err != nil {
			r.failed.Add(ctx, 1, metric.WithAttributes(kindAttr, attribute.String("sink", ns.name)))
			r.logger.Error("sink failed", "sink", ns.name, "kind", j.kind.String(), "error", err)
			if first == nil {
				first = err
			}
		}
	}

	r.processed.Add(ctx, 1, metric.WithAttributes(kindAttr))
	return first
}
