// Package urlguard validates a candidate probe URL against an SSRF
// allow/deny policy before any network I/O is attempted.
package urlguard

import (
	"net"
	"net/url"
	"strconv"
	"strings"
)

// metadataHosts are well-known cloud metadata endpoints blocked by exact,
// case-insensitive hostname match.
var metadataHosts = map[string]bool{
	"metadata.google.internal": true,
	"metadata":                 true,
	"100.100.100.200":          true,
	"kubernetes.default.svc":   true,
	"consul":                   true,
}

var privateBlocks []*net.IPNet

func mustParseCIDR(s string) *net.IPNet {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return n
}

func init() {
	for _, cidr := range []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"169.254.0.0/16",
		"127.0.0.0/8",
		"0.0.0.0/8",
		"fc00::/7",
		"fe80::/10",
	} {
		privateBlocks = append(privateBlocks, mustParseCIDR(cidr))
	}
}

// Check validates u against the SSRF policy described in spec.md §4.2. It
// returns ok=true when the URL may be probed, or ok=false with a
// human-readable reason otherwise.
//
// requestSkip asks the guard to bypass validation entirely; the request is
// only honored when skipValidationAllowed reports true, which is only
// possible in a binary built with the "testhooks" tag (see
// guard_testhook.go and guard_prod.go). A production build ignores
// requestSkip no matter what a config file or environment variable asks
// for.
func Check(u *url.URL, requestSkip bool) (ok bool, reason string) {
	if requestSkip && skipValidationAllowed() {
		return true, ""
	}
	if u == nil {
		return false, "URL is nil"
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false, "Only HTTP/HTTPS protocols allowed"
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false, "URL has no host"
	}

	if host == "localhost" || host == "0.0.0.0" {
		return false, "Localhost addresses are not allowed"
	}
	if strings.HasPrefix(host, "127.") || strings.HasPrefix(host, "0.") {
		return false, "Localhost addresses are not allowed"
	}

	if metadataHosts[host] {
		return false, "Cloud metadata endpoints are not allowed"
	}

	if strings.HasSuffix(host, ".internal") || strings.HasSuffix(host, ".local") {
		return false, "Internal/local domain suffixes are not allowed"
	}

	if ip := net.ParseIP(host); ip != nil {
		if reason, blocked := blockedIPReason(ip); blocked {
			return false, reason
		}
	}

	return true, ""
}

func blockedIPReason(ip net.IP) (string, bool) {
	for _, block := range privateBlocks {
		if block.Contains(ip) {
			return cidrReason(block), true
		}
	}
	return "", false
}

func cidrReason(block *net.IPNet) string {
	switch block.String() {
	case "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16":
		return "Private network address (RFC 1918) is not allowed"
	case "169.254.0.0/16":
		return "Link-local address is not allowed"
	case "127.0.0.0/8", "0.0.0.0/8":
		return "Localhost addresses are not allowed"
	case "fc00::/7":
		return "IPv6 unique-local address is not allowed"
	case "fe80::/10":
		return "IPv6 link-local address is not allowed"
	default:
		return "Address blocked by network policy"
	}
}

// ParsePort returns the effective port for u (applying the scheme's
// default when none is explicit), used only for logging/diagnostics.
func ParsePort(u *url.URL) int {
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			return n
		}
	}
	if strings.EqualFold(u.Scheme, "https") {
		return 443
	}
	return 80
}
