// Package probe executes a single HTTP health check attempt: request
// shaping, a bounded deadline, bounded body read, and status/text/header
// validation against a service's expectations.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/healthwatch/healthwatch/internal/classify"
	"github.com/healthwatch/healthwatch/internal/model"
	"github.com/healthwatch/healthwatch/internal/urlguard"
	"github.com/healthwatch/healthwatch/pkg/telemetry"
)

// maxBodyBytes bounds how much of a response body is read: a correctness
// contract for text-match semantics and a DoS guard against oversized
// responses.
const maxBodyBytes = 100 * 1024

// Engine executes probes over a single shared HTTP transport. The
// client's Timeout is intentionally left at zero: redirects are never
// auto-followed, so a per-request context deadline is used instead of
// Client.Timeout (which would also bound any redirect chain the client
// itself never takes).
type Engine struct {
	client *http.Client
}

// New constructs an Engine with a transport shared across all probes.
func New() *Engine {
	return &Engine{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Run executes exactly one HTTP attempt against svc and returns the
// resulting HealthCheckResult plus the transport-level classification of
// the failure, if any. A zero ErrorType means either the probe passed or
// failed validation rather than transport — neither is retryable, so the
// Retry Controller only acts when errType is non-empty.
// skipGuard requests that the SSRF guard be bypassed; it is only honored
// in binaries built with the "testhooks" tag.
func (e *Engine) Run(ctx context.Context, svc model.ServiceDefinition, global model.GlobalSettings, skipGuard bool) (result model.HealthCheckResult, errType classify.ErrorType) {
	correlationID := uuid.NewString()
	timeout := svc.EffectiveTimeout(global.Timeout)
	warning := svc.EffectiveWarningThreshold(global.WarningThreshold)

	// The attempt index lives in the Retry Controller, one layer up; this
	// span only ever covers a single attempt, so it is always reported as 0
	// here; the orchestrator's parent span records the real attempt number
	// via a "probe.retry" event on each retry.
	ctx, span := telemetry.StartSpan(ctx, "probe.attempt",
		telemetry.WithAttributes(telemetry.ProbeAttributes(svc.Name, correlationID, 0)...))
	defer func() {
		span.SetAttributes(telemetry.ResultAttributes(string(result.Status), result.HTTPStatusCode)...)
		if errType != "" {
			span.SetAttributes(telemetry.ErrorAttributes(string(errType))...)
		}
		if result.FailureReason != "" {
			telemetry.RecordError(ctx, errors.New(result.FailureReason))
		}
		span.End()
	}()

	result = model.HealthCheckResult{
		ServiceName:    svc.Name,
		Timestamp:      time.Now().UTC(),
		Method:         svc.Method,
		HTTPStatusCode: 0,
		ExpectedStatus: svc.Expected.Status,
		CorrelationID:  correlationID,
	}

	u, err := url.Parse(svc.Resource)
	if err != nil {
		result.Status = model.StatusFail
		result.FailureReason = fmt.Sprintf("Invalid URL: %v", err)
		return result, ""
	}

	if ok, reason := urlguard.Check(u, skipGuard); !ok {
		result.Status = model.StatusFail
		result.FailureReason = reason
		return result, ""
	}

	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := buildRequest(reqCtx, svc)
	if err != nil {
		result.Status = model.StatusFail
		result.FailureReason = fmt.Sprintf("Invalid request: %v", err)
		return result, ""
	}

	resp, err := e.client.Do(req)
	latency := time.Since(start)
	result.LatencyMs = latency.Milliseconds()

	if err != nil {
		errType := classify.Classify(err)
		result.Status = model.StatusFail
		result.FailureReason = errType.Reason()
		return result, errType
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

	result.HTTPStatusCode = resp.StatusCode

	failureReason, textOK, headerOK := validate(svc, resp, bodyBytes)
	if svc.Expected.Text != "" {
		result.TextValidationResult = &textOK
	}
	if len(svc.Expected.Headers) > 0 {
		result.HeaderValidationResult = headerOK
	}

	switch {
	case latency > timeout:
		result.Status = model.StatusFail
		result.FailureReason = classify.Timeout.Reason()
		return result, classify.Timeout
	case failureReason != "":
		result.Status = model.StatusFail
		result.FailureReason = failureReason
	case latency > warning:
		result.Status = model.StatusDegraded
	default:
		result.Status = model.StatusPass
	}

	return result, ""
}

func buildRequest(ctx context.Context, svc model.ServiceDefinition) (*http.Request, error) {
	var bodyReader io.Reader
	var hasPayload bool

	if svc.Method == model.MethodPOST && svc.Payload != nil {
		b, err := json.Marshal(svc.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		hasPayload = true
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, string(svc.Method), svc.Resource, bodyReader)
	if err != nil {
		return nil, err
	}

	for _, h := range svc.Headers {
		req.Header.Set(h.Name, h.Value)
	}
	if hasPayload {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// validate applies the status/text/header validation clauses configured
// on svc.Expected, returning the first applicable failure reason (empty
// on success) plus the individual text/header verdicts for the result
// record.
func validate(svc model.ServiceDefinition, resp *http.Response, body []byte) (reason string, textOK bool, headerResults map[string]bool) {
	if resp.StatusCode != svc.Expected.Status {
		reason = fmt.Sprintf("Expected status %d, got %d", svc.Expected.Status, resp.StatusCode)
	}

	if svc.Expected.Text != "" {
		textOK = bytes.Contains(body, []byte(svc.Expected.Text))
		if !textOK && reason == "" {
			reason = fmt.Sprintf("Expected text '%s' not found", svc.Expected.Text)
		}
	}

	if len(svc.Expected.Headers) > 0 {
		headerResults = make(map[string]bool, len(svc.Expected.Headers))
		for name, want := range svc.Expected.Headers {
			// http.Header.Get canonicalizes the name, so the lookup is
			// already case-insensitive on the header name; the value
			// comparison is exact and case-sensitive per spec.
			got := resp.Header.Get(name)
			ok := got == want
			headerResults[name] = ok
			if !ok && reason == "" {
				reason = fmt.Sprintf("Expected header '%s' value '%s' not found", name, want)
			}
		}
	}

	return reason, textOK, headerResults
}
