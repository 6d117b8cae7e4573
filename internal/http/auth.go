package http

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nextlevelbuilder/storycast/internal/store"
	"github.com/nextlevelbuilder/storycast/pkg/protocol"
)

// UserIDHeader carries the authenticated child account identity.
const UserIDHeader = "X-Storycast-User-Id"

// extractBearerToken extracts a bearer token from the Authorization header.
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}

// tokenMatch performs a constant-time comparison of a provided token against the expected token.
// Returns true if expected is empty (no auth configured) or if tokens match.
func tokenMatch(provided, expected string) bool {
	if expected == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}

// extractUserID extracts the account identity from the request header.
// Returns "" when the header is missing or longer than store.MaxUserIDLength.
func extractUserID(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(UserIDHeader))
	if id == "" {
		return ""
	}
	if err := store.ValidateUserID(id); err != nil {
		slog.Warn("security.user_id_too_long", "length", len(id), "max", store.MaxUserIDLength)
		return ""
	}
	return id
}

// authenticate checks the gateway token and the identity header. On failure
// it writes the 401 response and returns "".
func authenticate(w http.ResponseWriter, r *http.Request, token string) string {
	if !tokenMatch(extractBearerToken(r), token) {
		writeError(w, http.StatusUnauthorized, protocol.ErrUnauthorized, "invalid authentication")
		return ""
	}
	userID := extractUserID(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, protocol.ErrUnauthorized, UserIDHeader+" header is required")
		return ""
	}
	return userID
}
