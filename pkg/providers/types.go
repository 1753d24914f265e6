package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// fetchTimeout bounds a single upstream balance call. One hanging provider
// must not stall a whole check cycle.
const fetchTimeout = 10 * time.Second

// CheckResult is the outcome of one balance query.
type CheckResult struct {
	Success   bool      `json:"success"`
	Value     float64   `json:"value"`
	Currency  string    `json:"currency,omitempty"`
	Err       string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Ok builds a successful result stamped with the current time.
func Ok(value float64, currency string) CheckResult {
	return CheckResult{
		Success:   true,
		Value:     value,
		Currency:  currency,
		CheckedAt: time.Now().UTC(),
	}
}

// Fail builds a failed result. Err is set iff Success is false.
func Fail(format string, args ...any) CheckResult {
	return CheckResult{
		Success:   false,
		Err:       fmt.Sprintf(format, args...),
		CheckedAt: time.Now().UTC(),
	}
}

// Provider is the uniform contract around one external balance source.
//
// Fetch reports ordinary upstream failure (timeout, non-2xx, malformed
// payload) as a CheckResult with Success=false, never as a panic.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Name returns the provider identifier (e.g. "openrouter", "volc").
	Name() string

	// Fetch queries the current balance or credits.
	Fetch(ctx context.Context) CheckResult
}

// Factory constructs a provider from a resolved credential.
type Factory func(credential string) (Provider, error)

func newClient() *http.Client {
	return &http.Client{Timeout: fetchTimeout}
}
