package tenant

import (
	"net"
	"regexp"
	"strings"
)

const maxLabelLength = 63

var labelPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// NormalizeHost lowercases host and strips surrounding whitespace, any port
// and a trailing root dot. IPv6 literals lose their brackets.
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	} else if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = host[1 : len(host)-1]
	}
	return strings.TrimSuffix(host, ".")
}

// SubdomainLabel returns the leading DNS label of a dotted host, e.g. "acme"
// for "acme.clinics.example.com". IP addresses and malformed labels yield
// false.
func SubdomainLabel(host string) (string, bool) {
	idx := strings.IndexByte(host, '.')
	if idx <= 0 {
		return "", false
	}
	if net.ParseIP(host) != nil {
		return "", false
	}
	label := host[:idx]
	if len(label) > maxLabelLength || !labelPattern.MatchString(label) {
		return "", false
	}
	return label, true
}

// ValidateDomain checks that d is a plausible lowercase FQDN.
func ValidateDomain(d string) error {
	if d == "" || len(d) > 253 || !strings.Contains(d, ".") || d != NormalizeHost(d) {
		return ErrInvalidDomain
	}
	for label := range strings.SplitSeq(d, ".") {
		if len(label) > maxLabelLength || !labelPattern.MatchString(label) {
			return ErrInvalidDomain
		}
	}
	return nil
}
