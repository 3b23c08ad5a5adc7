package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type contextKey string

const (
	SessionIDKey contextKey = "session_id"

	// SessionTokenHeader carries a freshly issued token back to the client
	SessionTokenHeader = "X-Session-Token"
)

// SessionTokens issues and resolves session tokens
type SessionTokens interface {
	Issue() (token string, sessionID string, err error)
	Resolve(token string) (sessionID string, err error)
}

// SessionMiddleware attaches the caller's cart session to the request.
// Requests without a token start a new session whose token is returned in
// the X-Session-Token header; an invalid token is rejected.
func SessionMiddleware(tokens SessionTokens, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")

			var sessionID string
			if authHeader == "" {
				token, id, err := tokens.Issue()
				if err != nil {
					logger.Error("Failed to issue session token", zap.Error(err))
					RespondWithError(w, http.StatusInternalServerError, "could not start session")
					return
				}
				sessionID = id
				w.Header().Set(SessionTokenHeader, token)
				logger.Debug("Session started", zap.String("session_id", sessionID))
			} else {
				parts := strings.Split(authHeader, " ")
				if len(parts) != 2 || parts[0] != "Bearer" {
					logger.Debug("Invalid authorization header format")
					RespondWithError(w, http.StatusUnauthorized, "invalid authorization header format")
					return
				}

				id, err := tokens.Resolve(parts[1])
				if err != nil {
					logger.Debug("Session token rejected", zap.Error(err))
					RespondWithError(w, http.StatusUnauthorized, "invalid session token")
					return
				}
				sessionID = id
			}

			ctx := context.WithValue(r.Context(), SessionIDKey, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSessionID extracts the session ID from request context
func GetSessionID(ctx context.Context) (string, bool) {
	sessionID, ok := ctx.Value(SessionIDKey).(string)
	return sessionID, ok && sessionID != ""
}
