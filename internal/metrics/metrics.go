// Package metrics exposes episode statistics as Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wlsgn1217/MARBLER/pkg/core"
)

const namespace = "marbler"

// Collectors holds the warehouse metrics on a private registry.
type Collectors struct {
	registry *prometheus.Registry

	episodes      prometheus.Counter
	steps         prometheus.Counter
	reward        *prometheus.CounterVec
	loads         prometheus.Counter
	unloads       prometheus.Counter
	distance      prometheus.Counter
	terminations  *prometheus.CounterVec
	episodeLength prometheus.Histogram
	episodeReward prometheus.Histogram
	activeAgents  prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		episodes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "episodes_total",
			Help:      "Total number of episodes started",
		}),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Total number of environment steps",
		}),
		reward: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reward_total",
			Help:      "Sum of rewards by sign",
		}, []string{"sign"}),
		loads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Total number of pickups",
		}),
		unloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unloads_total",
			Help:      "Total number of deliveries",
		}),
		distance: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "distance_travelled_total",
			Help:      "Total distance travelled by all agents",
		}),
		terminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "episode_terminations_total",
			Help:      "Episodes ended, by reason",
		}, []string{"reason"}),
		episodeLength: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "episode_length_steps",
			Help:      "Number of steps per episode",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		episodeReward: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "episode_reward",
			Help:      "Total reward per episode",
			Buckets:   prometheus.LinearBuckets(-20, 5, 12),
		}),
		activeAgents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_agents",
			Help:      "Number of agents in the current episode",
		}),
	}

	c.registry.MustRegister(
		c.episodes,
		c.steps,
		c.reward,
		c.loads,
		c.unloads,
		c.distance,
		c.terminations,
		c.episodeLength,
		c.episodeReward,
		c.activeAgents,
	)
	return c
}

// Registry returns the registry the collectors live on.
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// StartEpisode implements recorder.Sink.
func (c *Collectors) StartEpisode(e *core.Episode) error {
	c.episodes.Inc()
	c.activeAgents.Set(float64(e.NumAgents))
	return nil
}

// RecordStep implements recorder.Sink.
func (c *Collectors) RecordStep(s *core.StepRecord) error {
	c.steps.Inc()
	for _, a := range s.Agents {
		switch {
		case a.Reward > 0:
			c.reward.WithLabelValues("positive").Add(a.Reward)
		case a.Reward < 0:
			c.reward.WithLabelValues("negative").Add(-a.Reward)
		}
		c.distance.Add(a.Distance)
	}
	return nil
}

// EndEpisode implements recorder.Sink.
func (c *Collectors) EndEpisode(s *core.EpisodeSummary) error {
	c.loads.Add(float64(s.Loads))
	c.unloads.Add(float64(s.Unloads))
	c.episodeLength.Observe(float64(s.Steps))
	c.episodeReward.Observe(s.TotalReward)

	reason := "max_steps"
	if s.Message != "" {
		reason = "executor"
	}
	c.terminations.WithLabelValues(reason).Inc()
	c.activeAgents.Set(0)
	return nil
}
