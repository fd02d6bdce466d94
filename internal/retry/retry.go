// Package retry wraps the Probe Engine with bounded exponential backoff,
// gated by the transport-error classifier so only recoverable failures
// are retried.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/healthwatch/healthwatch/internal/classify"
	"github.com/healthwatch/healthwatch/internal/model"
)

const (
	baseBackoff = 250 * time.Millisecond
	maxBackoff  = 5 * time.Second
	jitterFrac  = 0.2
)

// Prober is the subset of *probe.Engine the controller depends on,
// narrowed to a one-method interface for testability.
type Prober interface {
	Run(ctx context.Context, svc model.ServiceDefinition, global model.GlobalSettings, skipGuard bool) (model.HealthCheckResult, classify.ErrorType)
}

// Controller reruns a Prober on retryable verdicts up to a configured
// number of additional attempts.
type Controller struct {
	prober Prober
}

// New wraps prober with retry semantics.
func New(prober Prober) *Controller {
	return &Controller{prober: prober}
}

// Run executes svc's probe, retrying up to maxRetries additional times
// when the classifier marks the failure as retryable. Only the final
// attempt's result is returned; intermediate attempts are reported to
// onAttempt for metrics purposes and are never persisted individually.
func (c *Controller) Run(ctx context.Context, svc model.ServiceDefinition, global model.GlobalSettings, maxRetries int, skipGuard bool, onAttempt func(attempt int, result model.HealthCheckResult)) model.HealthCheckResult {
	var result model.HealthCheckResult
	var errType classify.ErrorType

	for attempt := 0; ; attempt++ {
		result, errType = c.prober.Run(ctx, svc, global, skipGuard)
		if onAttempt != nil {
			onAttempt(attempt, result)
		}

		if errType == "" || !errType.Retryable() || attempt >= maxRetries {
			return result
		}

		if ctx.Err() != nil {
			return result
		}

		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			return result
		}
	}
}

// backoff returns the delay before retry attempt n+1: base doubled n
// times, capped, with ±20% jitter.
func backoff(attempt int) time.Duration {
	d := baseBackoff << attempt
	if d > maxBackoff || d <= 0 {
		d = maxBackoff
	}

	jitter := time.Duration(float64(d) * jitterFrac * (2*rand.Float64() - 1))
	d += jitter
	if d < 0 {
		d = 0
	}
	return d
}
