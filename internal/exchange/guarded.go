package exchange

import (
	"context"
	"time"

	"github.com/GriffinCanCode/vadrec/internal/audio"
	apperrors "github.com/GriffinCanCode/vadrec/internal/errors"
	"github.com/GriffinCanCode/vadrec/internal/metrics"
	"github.com/GriffinCanCode/vadrec/internal/resilience"
)

// Guarded wraps an Exchanger with a circuit breaker. There are no retries:
// each recording is submitted at most once.
type Guarded struct {
	next    Exchanger
	breaker *resilience.Breaker
	metrics *metrics.Metrics
}

// NewGuarded wraps next. m may be nil.
func NewGuarded(next Exchanger, b *resilience.Breaker, m *metrics.Metrics) *Guarded {
	return &Guarded{next: next, breaker: b, metrics: m}
}

// Breaker exposes the underlying breaker.
func (g *Guarded) Breaker() *resilience.Breaker { return g.breaker }

// Transcribe fails fast with CodeExchangeUnavailable while the breaker is open.
func (g *Guarded) Transcribe(ctx context.Context, art audio.Artifact) (Result, error) {
	start := time.Now()
	res, err := resilience.ExecuteWithResult(g.breaker, func() (Result, error) {
		return g.next.Transcribe(ctx, art)
	})
	elapsed := time.Since(start).Seconds()

	switch {
	case err == nil:
		g.metrics.RecordExchange("success", elapsed)
		return res, nil
	case resilience.Rejected(err):
		g.metrics.RecordExchange("rejected", elapsed)
		return Result{}, apperrors.Wrap(err, apperrors.CodeExchangeUnavailable, UnavailableMessage)
	default:
		g.metrics.RecordExchange("failure", elapsed)
		return Result{}, err
	}
}
