package urlguard

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		wantOK bool
	}{
		{"plain https host", "https://example.com/health", true},
		{"plain http host", "http://example.com/health", true},
		{"ftp scheme rejected", "ftp://example.com/health", false},
		{"localhost rejected", "http://localhost:8080/health", false},
		{"0.0.0.0 rejected", "http://0.0.0.0/health", false},
		{"loopback ip rejected", "http://127.0.0.1/health", false},
		{"rfc1918 10/8 rejected", "http://10.1.2.3/health", false},
		{"rfc1918 172.16/12 rejected", "http://172.16.5.5/health", false},
		{"rfc1918 192.168/16 rejected", "http://192.168.1.1/health", false},
		{"link-local rejected", "http://169.254.1.1/health", false},
		{"ipv6 unique-local rejected", "http://[fc00::1]/health", false},
		{"ipv6 link-local rejected", "http://[fe80::1]/health", false},
		{"gcp metadata host rejected", "http://metadata.google.internal/compute", false},
		{"bare metadata host rejected", "http://metadata/compute", false},
		{"aliyun metadata ip rejected", "http://100.100.100.200/meta", false},
		{"k8s service host rejected", "http://kubernetes.default.svc/healthz", false},
		{"internal suffix rejected", "http://svc.internal/health", false},
		{"local suffix rejected", "http://printer.local/health", false},
		{"no host rejected", "http:///health", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := Check(mustURL(t, tt.url), false)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestCheckNilURL(t *testing.T) {
	ok, reason := Check(nil, false)
	assert.False(t, ok)
	assert.NotEmpty(t, reason)
}

func TestCheckRequestSkipIgnoredInProductionBuild(t *testing.T) {
	// This package is compiled without the "testhooks" tag in this test
	// binary, so skipValidationAllowed always returns false: requesting a
	// skip must not unlock a blocked host.
	ok, reason := Check(mustURL(t, "http://169.254.169.254/latest/meta-data"), true)
	assert.False(t, ok)
	assert.NotEmpty(t, reason)
}

func TestCheckIdempotent(t *testing.T) {
	u := mustURL(t, "http://192.168.1.1/health")
	ok1, reason1 := Check(u, false)
	ok2, reason2 := Check(u, false)
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, reason1, reason2)

	u2 := mustURL(t, "https://example.com/health")
	ok3, reason3 := Check(u2, false)
	ok4, reason4 := Check(u2, false)
	assert.Equal(t, ok3, ok4)
	assert.Equal(t, reason3, reason4)
}

func TestParsePort(t *testing.T) {
	assert.Equal(t, 443, ParsePort(mustURL(t, "https://example.com/health")))
	assert.Equal(t, 80, ParsePort(mustURL(t, "http://example.com/health")))
	assert.Equal(t, 8080, ParsePort(mustURL(t, "http://example.com:8080/health")))
}
