package gateway

import (
	"context"
	"errors"

	"github.com/hyperifyio/coursescope/internal/fetch"
	"github.com/hyperifyio/coursescope/internal/validate"
)

// Kind classifies a gateway failure for the caller.
type Kind int

const (
	KindNone Kind = iota
	KindMissingInput
	KindInvalidURL
	KindDisallowedDomain
	KindUpstreamUnreachable
	KindUpstreamHTTP
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindMissingInput:
		return "missing_input"
	case KindInvalidURL:
		return "invalid_url"
	case KindDisallowedDomain:
		return "disallowed_domain"
	case KindUpstreamUnreachable:
		return "upstream_unreachable"
	case KindUpstreamHTTP:
		return "upstream_http_error"
	case KindTimeout:
		return "timeout"
	}
	return "unknown"
}

// IsInputError reports whether k is detected before any network call.
func (k Kind) IsInputError() bool {
	return k == KindMissingInput || k == KindInvalidURL || k == KindDisallowedDomain
}

// KindOf maps err onto the taxonomy. Anything unrecognised is treated as an
// unreachable upstream.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var dd *validate.DisallowedDomainError
	var se *fetch.StatusError
	switch {
	case errors.Is(err, validate.ErrMissingInput):
		return KindMissingInput
	case errors.Is(err, validate.ErrInvalidURL):
		return KindInvalidURL
	case errors.As(err, &dd):
		return KindDisallowedDomain
	case errors.As(err, &se):
		return KindUpstreamHTTP
	case errors.Is(err, fetch.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}
	return KindUpstreamUnreachable
}
