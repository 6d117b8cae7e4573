package protocol

// Error codes used in HTTP error bodies: {"error":{"code":...,"message":...}}.
const (
	ErrInvalidRequest   = "INVALID_REQUEST"
	ErrMethodNotAllowed = "METHOD_NOT_ALLOWED"
	ErrUnauthorized     = "UNAUTHORIZED"
	ErrNotFound         = "NOT_FOUND"
	ErrRateLimited      = "RATE_LIMITED"
	ErrUnavailable      = "UNAVAILABLE"
	ErrNotImplemented   = "NOT_IMPLEMENTED"
	ErrInternal         = "INTERNAL"
)

// ErrorShape describes an API error.
type ErrorShape struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ErrorBody is the JSON body of a non-streamed error response.
type ErrorBody struct {
	Error ErrorShape `json:"error"`
}

// ValidationError reports a request that violates an entry invariant.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Invalid creates a ValidationError.
func Invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
