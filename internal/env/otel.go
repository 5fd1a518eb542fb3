package env

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/wlsgn1217/MARBLER/internal/env"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type instruments struct {
	steps         metric.Int64Counter
	rewards       metric.Float64UpDownCounter
	goals         metric.Int64Counter
	spawnFallback metric.Int64Counter
	terminations  metric.Int64Counter
}

// newInstruments uses the global OTel meter (no-op if not configured).
func newInstruments() (*instruments, error) {
	m := meter()
	inst := &instruments{}

	var err error
	inst.steps, err = m.Int64Counter(
		"env.steps",
		metric.WithDescription("Total environment steps"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating steps counter: %w", err)
	}

	inst.rewards, err = m.Float64UpDownCounter(
		"env.rewards",
		metric.WithDescription("Sum of rewards handed out, penalties included"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rewards counter: %w", err)
	}

	inst.goals, err = m.Int64Counter(
		"env.goals",
		metric.WithDescription("Commanded goals by obstacle-check outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating goals counter: %w", err)
	}

	inst.spawnFallback, err = m.Int64Counter(
		"env.spawn.fallbacks",
		metric.WithDescription("Agents placed at a fallback corner"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating spawn fallback counter: %w", err)
	}

	inst.terminations, err = m.Int64Counter(
		"env.terminations",
		metric.WithDescription("Episodes ended by an executor message"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating terminations counter: %w", err)
	}

	return inst, nil
}
