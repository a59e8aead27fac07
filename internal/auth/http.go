// ABOUTME: HTTP helpers for API key authentication
// ABOUTME: Extracts the key from X-API-Key or Bearer headers and guards handlers

package auth

import (
	"net/http"
	"strings"
)

// HeaderAPIKey is the header clients put their API key in
const HeaderAPIKey = "X-API-Key"

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// CredentialFromRequest returns the API key presented on r, or "".
// X-API-Key wins over an Authorization bearer token.
func CredentialFromRequest(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(HeaderAPIKey)); key != "" {
		return key
	}
	token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
	if errMsg != "" {
		return ""
	}
	return strings.TrimSpace(token)
}

// WriteUnauthorized writes the fixed 401 response.
func WriteUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Unauthorized"}`))
}

// Middleware rejects requests whose credential the gate does not accept and
// adds an AuthContext to the request context otherwise.
func Middleware(gate *Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := CredentialFromRequest(r)
			if !gate.Verify(credential) {
				gate.logger.Warn("rejected unauthenticated request",
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path,
				)
				WriteUnauthorized(w)
				return
			}

			authCtx := &AuthContext{KeyID: Fingerprint(credential), RemoteAddr: r.RemoteAddr}
			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), authCtx)))
		})
	}
}
