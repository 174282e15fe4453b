package validate

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrMissingInput is returned when the submitted URL is empty.
	ErrMissingInput = errors.New("url is required")
	// ErrInvalidURL is returned when the input does not parse as an absolute
	// http(s) URL with a host.
	ErrInvalidURL = errors.New("invalid url")
)

// DisallowedDomainError reports a well-formed URL whose host falls outside
// the configured allow-list.
type DisallowedDomainError struct {
	Host    string
	Allowed string
	// Name is the human-readable label of the allowed site, e.g. "Coursera".
	Name string
}

func (e *DisallowedDomainError) Error() string {
	return fmt.Sprintf("host %q is not within %s", e.Host, e.Allowed)
}

// Message is the user-facing text naming the expected site.
func (e *DisallowedDomainError) Message() string {
	name := e.Name
	if name == "" {
		name = e.Allowed
	}
	return fmt.Sprintf("Please provide a valid %s URL", name)
}

// Policy decides whether a submitted URL may be fetched. The zero value
// accepts any absolute http(s) URL.
type Policy struct {
	// AllowedDomain is matched as a substring of the lower-cased host.
	// Empty disables the allow-list.
	AllowedDomain string
	// DisplayName labels AllowedDomain in user-facing messages.
	DisplayName string
}

// Validate parses raw and applies the domain policy. It performs no I/O.
func (p Policy) Validate(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMissingInput
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !u.IsAbs() || u.Host == "" || u.Hostname() == "" {
		return nil, fmt.Errorf("%w: %q is not an absolute URL", ErrInvalidURL, raw)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if !p.HostAllowed(u.Hostname()) {
		return nil, &DisallowedDomainError{Host: u.Hostname(), Allowed: p.AllowedDomain, Name: p.DisplayName}
	}
	return u, nil
}

// HostAllowed reports whether host passes the allow-list. The check is a
// case-insensitive substring match, so "www.coursera.org" passes for
// "coursera.org".
func (p Policy) HostAllowed(host string) bool {
	allowed := strings.ToLower(strings.TrimSpace(p.AllowedDomain))
	if allowed == "" {
		return true
	}
	return strings.Contains(strings.ToLower(host), allowed)
}
