package recorder

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/wlsgn1217/MARBLER/internal/recorder"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
