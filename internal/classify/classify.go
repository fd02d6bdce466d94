// Package classify maps a transport failure from a probe attempt onto a
// closed error taxonomy, following the ErrorCode/severity pattern in this
// codebase's application-error package: a typed string enum plus a small
// table-driven classifier rather than ad-hoc string matching at call
// sites.
package classify

import (
	"context"
	"errors"
	"net"
	"strings"
)

// ErrorType is the closed taxonomy a transport failure is classified into.
type ErrorType string

const (
	Timeout           ErrorType = "TIMEOUT"
	DNSFailure        ErrorType = "DNS_FAILURE"
	ConnectionRefused ErrorType = "CONNECTION_REFUSED"
	SSLTLS            ErrorType = "SSL_TLS"
	Network           ErrorType = "NETWORK"
	Unknown           ErrorType = "UNKNOWN"
)

// Retryable reports whether a verdict of this type should be retried by
// the Retry Controller. TIMEOUT, DNS_FAILURE, CONNECTION_REFUSED, and
// NETWORK are retryable; SSL_TLS and UNKNOWN are not.
func (t ErrorType) Retryable() bool {
	switch t {
	case Timeout, DNSFailure, ConnectionRefused, Network:
		return true
	default:
		return false
	}
}

// Reason returns the short, user-facing string used in
// HealthCheckResult.FailureReason for a classification of this type.
func (t ErrorType) Reason() string {
	switch t {
	case Timeout:
		return "Connection timeout"
	case DNSFailure:
		return "DNS failure"
	case ConnectionRefused:
		return "Connection refused"
	case SSLTLS:
		return "SSL/TLS certificate error"
	case Network:
		return "Network error"
	default:
		return "Unknown error"
	}
}

// Classify maps an error surfaced by the HTTP transport (or ctx
// cancellation) onto an ErrorType. Pattern matching is case-insensitive
// and consults a nested net.Error/*net.OpError/*net.DNSError before
// falling back to substring matching on the error's message, mirroring
// how transports typically nest a short, stable cause under a long,
// unstable wrapper message.
func Classify(err error) ErrorType {
	if err == nil {
		return Unknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return DNSFailure
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return Timeout
		}
		switch {
		case opErr.Op == "dial" && isRefused(opErr.Err):
			return ConnectionRefused
		case opErr.Op == "dial":
			return Network
		case opErr.Op == "read" || opErr.Op == "write":
			return Network
		}
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return Timeout
	case strings.Contains(msg, "no such host"), strings.Contains(msg, "lookup"), strings.Contains(msg, "dns"):
		return DNSFailure
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "econnrefused"):
		return ConnectionRefused
	case strings.Contains(msg, "x509"), strings.Contains(msg, "certificate"), strings.Contains(msg, "tls"):
		return SSLTLS
	case strings.Contains(msg, "connection reset"), strings.Contains(msg, "econnreset"),
		strings.Contains(msg, "network is unreachable"), strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "connection aborted"), strings.Contains(msg, "no route to host"):
		return Network
	default:
		return Unknown
	}
}

// reasonToType inverts ErrorType.Reason for the transport-classified types,
// letting the orchestrator recover a typed label for per-attempt metrics
// from a HealthCheckResult, which only carries the rendered reason string.
var reasonToType = map[string]ErrorType{
	Timeout.Reason():           Timeout,
	DNSFailure.Reason():        DNSFailure,
	ConnectionRefused.Reason(): ConnectionRefused,
	SSLTLS.Reason():            SSLTLS,
	Network.Reason():           Network,
}

// FromReason recovers the ErrorType whose Reason() produced reason, or
// Unknown if reason does not match a transport-classified type (e.g. a
// validation failure reason rather than a transport one).
func FromReason(reason string) ErrorType {
	if t, ok := reasonToType[reason]; ok {
		return t
	}
	return Unknown
}

func isRefused(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "refused")
}
