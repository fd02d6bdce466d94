package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Standard attribute keys.
const (
	AttrServiceName   = "healthcheck.service_name"
	AttrStatus        = "healthcheck.status"
	AttrHTTPStatus    = "healthcheck.http_status_code"
	AttrCorrelationID = "healthcheck.correlation_id"
	AttrAttempt       = "healthcheck.attempt"
	AttrErrorType     = "healthcheck.error_type"

	AttrTickServices = "orchestrator.services_checked"
	AttrTickFailing  = "orchestrator.services_failing"
)

// ProbeAttributes returns the attributes attached to one probe attempt span.
func ProbeAttributes(serviceName, correlationID string, attempt int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrServiceName, serviceName),
		attribute.String(AttrCorrelationID, correlationID),
		attribute.Int(AttrAttempt, attempt),
	}
}

// ResultAttributes returns the attributes describing a completed probe result.
func ResultAttributes(status string, httpStatus int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrStatus, status),
		attribute.Int(AttrHTTPStatus, httpStatus),
	}
}

// ErrorAttributes returns the attributes describing a classified transport failure.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, errorType),
	}
}

// TickAttributes returns the attributes describing one orchestrator cycle.
func TickAttributes(servicesChecked, servicesFailing int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrTickServices, servicesChecked),
		attribute.Int(AttrTickFailing, servicesFailing),
	}
}
