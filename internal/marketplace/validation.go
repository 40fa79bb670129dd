package marketplace

import (
	"net/url"
	"regexp"
	"strings"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ValidUUID reports whether s looks like a UUID, matching validate_uuid.
func ValidUUID(s string) bool {
	return uuidPattern.MatchString(s)
}

// ValidBaseURL reproduces validate_https_url exactly: HTTPS is required
// except for localhost, 127.0.0.1, 0.0.0.0, single-label intranet
// hostnames, or a .local suffix, where plain HTTP is also accepted
// (SPEC_FULL.md §9).
func ValidBaseURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}

	if parsed.Scheme == "http" {
		hostname := parsed.Hostname()
		if hostname == "localhost" || hostname == "127.0.0.1" || hostname == "0.0.0.0" ||
			(hostname != "" && !strings.Contains(hostname, ".")) ||
			strings.HasSuffix(hostname, ".local") {
			return parsed.Host != ""
		}
		return false
	}

	return parsed.Scheme == "https" && parsed.Host != ""
}
