package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthwatch/healthwatch/internal/classify"
	"github.com/healthwatch/healthwatch/internal/model"
)

type scriptedProber struct {
	results []model.HealthCheckResult
	errs    []classify.ErrorType
	calls   int
}

func (p *scriptedProber) Run(ctx context.Context, svc model.ServiceDefinition, global model.GlobalSettings, skipGuard bool) (model.HealthCheckResult, classify.ErrorType) {
	i := p.calls
	if i >= len(p.results) {
		i = len(p.results) - 1
	}
	p.calls++
	return p.results[i], p.errs[i]
}

func TestControllerRetriesOnRetryableVerdict(t *testing.T) {
	prober := &scriptedProber{
		results: []model.HealthCheckResult{
			{Status: model.StatusFail, FailureReason: "Connection timeout"},
			{Status: model.StatusFail, FailureReason: "Connection timeout"},
			{Status: model.StatusPass},
		},
		errs: []classify.ErrorType{classify.Timeout, classify.Timeout, ""},
	}

	c := New(prober)
	var attempts []int
	result := c.Run(t.Context(), model.ServiceDefinition{}, model.GlobalSettings{}, 5, false, func(attempt int, r model.HealthCheckResult) {
		attempts = append(attempts, attempt)
	})

	assert.Equal(t, model.StatusPass, result.Status)
	assert.Equal(t, 3, prober.calls)
	assert.Equal(t, []int{0, 1, 2}, attempts)
}

func TestControllerStopsOnNonRetryableVerdict(t *testing.T) {
	prober := &scriptedProber{
		results: []model.HealthCheckResult{
			{Status: model.StatusFail, FailureReason: "SSL/TLS certificate error"},
		},
		errs: []classify.ErrorType{classify.SSLTLS},
	}

	c := New(prober)
	result := c.Run(t.Context(), model.ServiceDefinition{}, model.GlobalSettings{}, 5, false, nil)

	assert.Equal(t, model.StatusFail, result.Status)
	assert.Equal(t, 1, prober.calls)
}

func TestControllerRespectsMaxRetries(t *testing.T) {
	prober := &scriptedProber{
		results: []model.HealthCheckResult{
			{Status: model.StatusFail, FailureReason: "Connection timeout"},
		},
		errs: []classify.ErrorType{classify.Timeout},
	}

	c := New(prober)
	result := c.Run(t.Context(), model.ServiceDefinition{}, model.GlobalSettings{}, 2, false, nil)

	assert.Equal(t, model.StatusFail, result.Status)
	assert.Equal(t, 3, prober.calls) // initial attempt + 2 retries
}

func TestControllerStopsOnContextCancellation(t *testing.T) {
	prober := &scriptedProber{
		results: []model.HealthCheckResult{
			{Status: model.StatusFail, FailureReason: "Connection timeout"},
		},
		errs: []classify.ErrorType{classify.Timeout},
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	c := New(prober)
	result := c.Run(ctx, model.ServiceDefinition{}, model.GlobalSettings{}, 5, false, nil)

	assert.Equal(t, model.StatusFail, result.Status)
	assert.Equal(t, 1, prober.calls)
}

func TestBackoffBounds(t *testing.T) {
	for attempt := 0; attempt < 10; attempt++ {
		d := backoff(attempt)
		require.GreaterOrEqual(t, d, time.Duration(0))
		require.LessOrEqual(t, d, maxBackoff+time.Duration(float64(maxBackoff)*jitterFrac))
	}
}
