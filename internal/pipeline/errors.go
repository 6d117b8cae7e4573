package pipeline

import (
	"context"
	"errors"
	"strings"
)

// ErrorClass buckets upstream failures for logs and spans.
type ErrorClass string

const (
	ClassRateLimit       ErrorClass = "rate_limit"
	ClassTimeout         ErrorClass = "timeout"
	ClassCanceled        ErrorClass = "canceled"
	ClassAuth            ErrorClass = "auth"
	ClassOverloaded      ErrorClass = "overloaded"
	ClassBilling         ErrorClass = "billing"
	ClassContextOverflow ErrorClass = "context_overflow"
	ClassUnknown         ErrorClass = "unknown"
)

// Stage names the part of a run that failed.
type Stage string

const (
	StageGenerate   Stage = "generate"
	StageSynthesize Stage = "synthesize"
	StageEmit       Stage = "emit"
)

// StageError is returned by Run when a stream ended in the Failed state.
// Its message is the raw upstream message carried by the terminal record.
type StageError struct {
	Stage Stage
	Class ErrorClass
	Err   error
}

func (e *StageError) Error() string { return e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

// Classify inspects err for well-known provider failure patterns.
// The raw message is never rewritten; only the class is derived.
func Classify(err error) ErrorClass {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return ClassCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}

	lower := strings.ToLower(err.Error())
	switch {
	case isContextOverflow(lower):
		return ClassContextOverflow
	case containsAny(lower, "rate limit", "rate_limit", "too many requests", "429", "quota exceeded", "resource_exhausted"):
		return ClassRateLimit
	case strings.Contains(lower, "overloaded"):
		return ClassOverloaded
	case containsAny(lower, "billing", "insufficient credits", "credit balance", "payment required", "402"):
		return ClassBilling
	case containsAny(lower, "invalid api key", "invalid_api_key", "unauthorized", "forbidden", "authentication", "401", "403", "access denied"):
		return ClassAuth
	case containsAny(lower, "timeout", "timed out", "deadline exceeded"):
		return ClassTimeout
	}
	return ClassUnknown
}

func isContextOverflow(lower string) bool {
	return containsAny(lower,
		"request_too_large",
		"context length exceeded",
		"maximum context length",
		"prompt is too long",
		"exceeds model context window",
	) || (strings.Contains(lower, "context") &&
		containsAny(lower, "overflow", "too large", "too long", "exceeded"))
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
