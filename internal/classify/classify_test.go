package classify

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"deadline exceeded", context.DeadlineExceeded, Timeout},
		{"dns error", &net.DNSError{Err: "no such host", Name: "example.invalid"}, DNSFailure},
		{"connection refused message", errors.New("dial tcp: connection refused"), ConnectionRefused},
		{"tls message", errors.New("x509: certificate signed by unknown authority"), SSLTLS},
		{"reset message", errors.New("read: connection reset by peer"), Network},
		{"unreachable message", errors.New("connect: network is unreachable"), Network},
		{"unknown message", errors.New("something bizarre happened"), Unknown},
		{"nil error", nil, Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestErrorTypeRetryable(t *testing.T) {
	retryable := []ErrorType{Timeout, DNSFailure, ConnectionRefused, Network}
	for _, et := range retryable {
		assert.True(t, et.Retryable(), "%s should be retryable", et)
	}

	notRetryable := []ErrorType{SSLTLS, Unknown}
	for _, et := range notRetryable {
		assert.False(t, et.Retryable(), "%s should not be retryable", et)
	}
}

func TestErrorTypeReason(t *testing.T) {
	assert.Equal(t, "Connection timeout", Timeout.Reason())
	assert.Equal(t, "DNS failure", DNSFailure.Reason())
	assert.Equal(t, "Connection refused", ConnectionRefused.Reason())
	assert.Equal(t, "SSL/TLS certificate error", SSLTLS.Reason())
	assert.NotEmpty(t, Unknown.Reason())
}
