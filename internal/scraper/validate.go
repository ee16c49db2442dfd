package scraper

import (
	"fmt"
	"net/url"
	"strings"
)

// metadataHosts are cloud metadata endpoints that are never crawled,
// even when explicitly allowlisted.
var metadataHosts = map[string]struct{}{
	"169.254.169.254":          {},
	"metadata.google.internal": {},
	"metadata.gce.internal":    {},
	"metadata.internal":        {},
}

// URLValidator restricts crawling to an operator-provided domain
// allowlist. Everything outside the allowlist is rejected, which also
// covers the usual SSRF targets: private ranges, loopback and metadata
// services are reachable only if the operator lists them, and metadata
// endpoints are refused even then.
type URLValidator struct {
	allowedDomains []string
}

// NewURLValidator creates a validator for the given domain allowlist.
// A domain entry matches itself and all of its subdomains.
func NewURLValidator(allowedDomains []string) (*URLValidator, error) {
	if len(allowedDomains) == 0 {
		return nil, fmt.Errorf("at least one allowed domain is required")
	}

	domains := make([]string, len(allowedDomains))
	for i, d := range allowedDomains {
		domains[i] = strings.ToLower(strings.TrimSpace(d))
	}
	return &URLValidator{allowedDomains: domains}, nil
}

// Validate checks that a URL is http(s) and targets an allowed domain.
func (v *URLValidator) Validate(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s (allowed: http, https)", u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("empty hostname")
	}

	if _, blocked := metadataHosts[host]; blocked {
		return fmt.Errorf("metadata endpoint blocked: %s", host)
	}

	if !v.hostAllowed(host) {
		return fmt.Errorf("host %s not in allowed domains", host)
	}
	return nil
}

func (v *URLValidator) hostAllowed(host string) bool {
	for _, d := range v.allowedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
