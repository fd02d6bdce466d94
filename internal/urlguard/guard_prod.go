//go:build !testhooks

package urlguard

// skipValidationAllowed always returns false: production builds (the
// default, unless built with -tags testhooks) can never unlock the SSRF
// bypass no matter what a configuration file or environment variable asks
// for.
func skipValidationAllowed() bool {
	return false
}
