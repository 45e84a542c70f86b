// Package reconerr defines the tagged error values the engine returns
// instead of unwinding through the orchestrator. Every provider unit
// resolves to either a record or one of these kinds; the orchestrator
// never treats a provider error as fatal to the scan.
package reconerr

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind identifies which of the eight error classes an error belongs to.
type Kind string

const (
	KindCredentialsMissing Kind = "credentials_missing"
	KindInvalidTarget      Kind = "invalid_target"
	KindUnknownProvider    Kind = "unknown_provider"
	KindTransient          Kind = "transient"
	KindPermanent          Kind = "permanent"
	KindProviderTimeout    Kind = "provider_timeout"
	KindCancelled          Kind = "cancelled"
	KindInternal           Kind = "internal"
)

// Error is the common shape of every engine-surfaced failure.
type Error struct {
	Kind     Kind
	Provider string
	Target   string
	Cause    error
	Attempts int
	After    time.Duration
	Message  string
	// RetryAfter carries a provider's parsed Retry-After hint (e.g. from
	// an HTTP 429 response) through to the retry policy, which honors
	// the greater of this and its own computed backoff delay (§4.D).
	// Zero means no hint was present.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindCredentialsMissing:
		return fmt.Sprintf("provider %q: missing credentials", e.Provider)
	case KindInvalidTarget:
		return fmt.Sprintf("invalid target %q: %s", e.Target, e.Message)
	case KindUnknownProvider:
		return fmt.Sprintf("unknown provider %q", e.Provider)
	case KindTransient:
		return fmt.Sprintf("provider %q target %q: transient failure after %d attempts: %v", e.Provider, e.Target, e.Attempts, e.Cause)
	case KindPermanent:
		return fmt.Sprintf("provider %q target %q: permanent failure: %v", e.Provider, e.Target, e.Cause)
	case KindProviderTimeout:
		return fmt.Sprintf("provider %q target %q: timed out after %s", e.Provider, e.Target, e.After)
	case KindCancelled:
		return fmt.Sprintf("cancelled: %s", e.Message)
	default:
		return fmt.Sprintf("internal error: %v", e.Cause)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

func CredentialsMissing(provider string) *Error {
	return &Error{Kind: KindCredentialsMissing, Provider: provider}
}

func InvalidTarget(target, message string) *Error {
	return &Error{Kind: KindInvalidTarget, Target: target, Message: message}
}

func UnknownProvider(provider string) *Error {
	return &Error{Kind: KindUnknownProvider, Provider: provider}
}

func Transient(provider, target string, cause error, attempts int) *Error {
	return &Error{Kind: KindTransient, Provider: provider, Target: target, Cause: cause, Attempts: attempts}
}

// TransientWithRetryAfter is Transient plus a Retry-After hint parsed
// from the provider's own response (typically an HTTP 429).
func TransientWithRetryAfter(provider, target string, cause error, attempts int, retryAfter time.Duration) *Error {
	return &Error{Kind: KindTransient, Provider: provider, Target: target, Cause: cause, Attempts: attempts, RetryAfter: retryAfter}
}

func Permanent(provider, target string, cause error) *Error {
	return &Error{Kind: KindPermanent, Provider: provider, Target: target, Cause: cause}
}

func ProviderTimeout(provider, target string, after time.Duration) *Error {
	return &Error{Kind: KindProviderTimeout, Provider: provider, Target: target, After: after}
}

func Cancelled(reason string) *Error {
	return &Error{Kind: KindCancelled, Message: reason}
}

func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Cause: cause}
}

// ParseRetryAfter parses an HTTP Retry-After header's delay-seconds
// form into a duration. An empty, negative, or HTTP-date-formatted
// header (§4.D only illustrates the delta-seconds form) yields zero,
// meaning "no hint" to the retry policy.
func ParseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// IsRetryable reports whether an error's kind is one the retry policy
// should keep attempting; used by tests and callers inspecting a
// terminal per-provider status.
func IsRetryable(err error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Kind == KindTransient || e.Kind == KindProviderTimeout
}
