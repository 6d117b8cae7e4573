package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/nextlevelbuilder/storycast/pkg/protocol"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write json response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, protocol.ErrorBody{Error: protocol.ErrorShape{Code: code, Message: message}})
}

// writeRequestError maps a request error to 400. A *protocol.ValidationError
// keeps its field in the body.
func writeRequestError(w http.ResponseWriter, err error) {
	shape := protocol.ErrorShape{Code: protocol.ErrInvalidRequest, Message: err.Error()}
	var ve *protocol.ValidationError
	if errors.As(err, &ve) {
		shape.Message = ve.Message
		shape.Field = ve.Field
	}
	writeJSON(w, http.StatusBadRequest, protocol.ErrorBody{Error: shape})
}

func writeMethodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	writeError(w, http.StatusMethodNotAllowed, protocol.ErrMethodNotAllowed, "method not allowed")
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	secs := int(math.Ceil(retryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeError(w, http.StatusTooManyRequests, protocol.ErrRateLimited, "rate limit exceeded")
}
