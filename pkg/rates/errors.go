package rates

import (
	"context"
	"errors"
	"fmt"
	"net"
)

const (
	ErrorInvalidRate = "invalid_rate"
	ErrorBadResponse = "bad_response"
	ErrorUpstream    = "upstream_error"
	ErrorNetwork     = "network_error"
	ErrorTimeout     = "timeout"
	ErrorUnsupported = "unsupported_pair"
)

// Error is a categorized rate lookup failure.
type Error struct {
	Category string
	Detail   string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Detail == "" {
		return e.Category
	}

	return fmt.Sprintf("%s: %s", e.Category, e.Detail)
}

// NewError creates a categorized rate error.
func NewError(category string, detail string) error {
	return &Error{Category: category, Detail: detail}
}

// CategoryFromError returns the stable category for an error when available.
func CategoryFromError(err error) string {
	if err == nil {
		return ""
	}

	var categorized *Error
	if errors.As(err, &categorized) {
		return categorized.Category
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorTimeout
		}
		return ErrorNetwork
	}

	return ErrorUpstream
}
