// Package forge defines the shared error taxonomy for both forge clients.
//
// Every HTTP failure surfaced by the GitLab or GitHub client is
// classified into a Category with a user-facing message and a concrete
// remediation suggestion. Retry decisions throughout the pipeline key
// off the category, never off raw status codes.
package forge

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"
)

// Category classifies a forge failure.
type Category string

// Failure categories. Auth, permission, not-found and validation
// failures are never retried; the rest are transient.
const (
	CategoryAuth       Category = "auth"
	CategoryPermission Category = "permission"
	CategoryNotFound   Category = "not_found"
	CategoryRateLimit  Category = "rate_limit"
	CategoryNetwork    Category = "network"
	CategoryTimeout    Category = "timeout"
	CategoryServer     Category = "server"
	CategoryValidation Category = "validation"
	CategoryUnknown    Category = "unknown"
)

// Error is a classified forge failure.
type Error struct {
	// Category is the taxonomy bucket driving retry decisions.
	Category Category `json:"category"`

	// Code is the HTTP status code, zero for sub-HTTP failures.
	Code int `json:"code,omitempty"`

	// Message is the user-facing description.
	Message string `json:"message"`

	// Technical carries the underlying detail for logs.
	Technical string `json:"technical,omitempty"`

	// Suggestion names the remediation.
	Suggestion string `json:"suggestion,omitempty"`

	// RetryAfter is how long the server asked us to wait, for rate limits.
	RetryAfter time.Duration `json:"retry_after,omitempty"`

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Category, e.Code, e.Message)
	}

	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.cause
}

// Retryable reports whether the failure category is transient.
func (e *Error) Retryable() bool {
	switch e.Category {
	case CategoryRateLimit, CategoryNetwork, CategoryTimeout, CategoryServer:
		return true
	default:
		return false
	}
}

// tokenPattern matches forge tokens embedded in URLs or messages.
// Covers GitLab personal/project tokens, GitHub classic and fine-grained
// tokens, and basic-auth userinfo segments.
var tokenPattern = regexp.MustCompile(
	`(glpat-[A-Za-z0-9_\-]+|gh[pousr]_[A-Za-z0-9_]+|github_pat_[A-Za-z0-9_]+|://[^/@\s]+@)`)

// Scrub replaces any token-shaped substring with a redaction marker.
// Applied to every message, suggestion and logged command output.
func Scrub(s string) string {
	return tokenPattern.ReplaceAllStringFunc(s, func(m string) string {
		if m[len(m)-1] == '@' {
			return "://***@"
		}

		return "***"
	})
}

// ScrubToken removes a specific literal token from a string in addition
// to pattern-based scrubbing. Used where the token value is known.
func ScrubToken(s, token string) string {
	if token != "" {
		s = replaceAll(s, token, "***")
	}

	return Scrub(s)
}

func replaceAll(s, old, repl string) string {
	if old == "" {
		return s
	}

	out := make([]byte, 0, len(s))

	for i := 0; i < len(s); {
		if i+len(old) <= len(s) && s[i:i+len(old)] == old {
			out = append(out, repl...)
			i += len(old)

			continue
		}

		out = append(out, s[i])
		i++
	}

	return string(out)
}

// Classify builds an Error from an HTTP status code and response detail.
// The forgeName ("GitLab" or "GitHub") is woven into suggestions.
func Classify(forgeName string, code int, detail string, retryAfter time.Duration) *Error {
	detail = Scrub(detail)

	switch {
	case code == http.StatusUnauthorized:
		return &Error{
			Category:   CategoryAuth,
			Code:       code,
			Message:    forgeName + " rejected the access token",
			Technical:  detail,
			Suggestion: "Generate a new token with the 'api' scope and update the configuration",
		}
	case code == http.StatusForbidden:
		return &Error{
			Category:   CategoryPermission,
			Code:       code,
			Message:    "insufficient permissions for this " + forgeName + " resource",
			Technical:  detail,
			Suggestion: "Verify you have admin access to the target organization or project",
		}
	case code == http.StatusNotFound:
		return &Error{
			Category:   CategoryNotFound,
			Code:       code,
			Message:    forgeName + " resource not found",
			Technical:  detail,
			Suggestion: "Check the project path and that the token can see the resource",
		}
	case code == http.StatusTooManyRequests:
		suggestion := "Wait before retrying"
		if retryAfter > 0 {
			suggestion = fmt.Sprintf("Wait %s before retrying", retryAfter)
		}

		return &Error{
			Category:   CategoryRateLimit,
			Code:       code,
			Message:    forgeName + " rate limit exceeded",
			Technical:  detail,
			Suggestion: suggestion,
			RetryAfter: retryAfter,
		}
	case code == http.StatusUnprocessableEntity || code == http.StatusBadRequest || code == http.StatusConflict:
		return &Error{
			Category:   CategoryValidation,
			Code:       code,
			Message:    forgeName + " rejected the request payload",
			Technical:  detail,
			Suggestion: "Inspect the technical detail; the entity may already exist or violate a constraint",
		}
	case code >= 500:
		return &Error{
			Category:   CategoryServer,
			Code:       code,
			Message:    forgeName + " server error",
			Technical:  detail,
			Suggestion: "Retry later; the forge is having trouble",
		}
	case code >= 400:
		return &Error{
			Category:   CategoryUnknown,
			Code:       code,
			Message:    fmt.Sprintf("unexpected %s response %d", forgeName, code),
			Technical:  detail,
			Suggestion: "Inspect the technical detail",
		}
	default:
		return &Error{
			Category:  CategoryUnknown,
			Code:      code,
			Message:   fmt.Sprintf("unexpected %s response %d", forgeName, code),
			Technical: detail,
		}
	}
}

// ClassifyTransport wraps a sub-HTTP failure (dial, TLS, DNS, timeout).
func ClassifyTransport(forgeName string, err error) *Error {
	if err == nil {
		return nil
	}

	category := CategoryNetwork
	suggestion := "Check network connectivity to " + forgeName

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		category = CategoryTimeout
		suggestion = "The request timed out; retry or raise the request timeout"
	}

	return &Error{
		Category:   category,
		Message:    forgeName + " request failed below the HTTP layer",
		Technical:  Scrub(err.Error()),
		Suggestion: suggestion,
		cause:      err,
	}
}

// ParseRetryAfter reads a Retry-After header value in seconds.
func ParseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	secs, err := strconv.Atoi(value)
	if err != nil || secs < 0 {
		return 0
	}

	return time.Duration(secs) * time.Second
}

// AsError extracts a *Error from an error chain, classifying unknown
// errors into the taxonomy so callers always get a category.
func AsError(forgeName string, err error) *Error {
	if err == nil {
		return nil
	}

	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}

	return &Error{
		Category:  CategoryUnknown,
		Message:   forgeName + " operation failed",
		Technical: Scrub(err.Error()),
		cause:     err,
	}
}
