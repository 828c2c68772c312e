package providers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrEmptyResponse is returned when a provider answers without any text
var ErrEmptyResponse = errors.New("provider returned empty response")

// ProviderError normalizes SDK errors into a status code the router can act on
type ProviderError struct {
	Provider   string
	Model      string
	StatusCode int
	Err        error
}

// NewProviderError wraps err with provider context
func NewProviderError(provider, model string, statusCode int, err error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Model:      model,
		StatusCode: statusCode,
		Err:        err,
	}
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s/%s: status %d: %v", e.Provider, e.Model, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s/%s: %v", e.Provider, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

var rateLimitMarkers = []string{
	"rate limit",
	"rate_limit",
	"resource_exhausted",
	"resource exhausted",
	"quota",
	"too many requests",
}

// IsRateLimit reports whether err is a rate-limit class failure for the credential used
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}

	var perr *ProviderError
	if errors.As(err, &perr) && perr.StatusCode == http.StatusTooManyRequests {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
