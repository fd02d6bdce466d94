//go:build testhooks

package urlguard

import "os"

// skipValidationEnv is the environment variable that, when set to
// skipValidationValue and only when this binary was built with the
// "testhooks" tag, allows the caller to bypass the SSRF guard entirely.
// Production builds never include this file, so the bypass cannot exist
// outside test binaries — the Go-native equivalent of spec.md's "MUST NOT
// be available to production builds".
const (
	skipValidationEnv   = "NODE_ENV"
	skipValidationValue = "test"
)

func skipValidationAllowed() bool {
	return os.Getenv(skipValidationEnv) == skipValidationValue
}
