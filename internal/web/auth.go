package web

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// authorizeRequest accepts the configured token as a bearer header or, for
// EventSource and WebSocket clients that cannot set headers, a token query
// parameter.
func (s *Server) authorizeRequest(r *http.Request) bool {
	if s.cfg.Token == "" {
		return true
	}
	if headerToken := bearerToken(r.Header.Get("Authorization")); headerToken != "" {
		return secureEqual(headerToken, s.cfg.Token)
	}
	queryToken := strings.TrimSpace(r.URL.Query().Get("token"))
	return queryToken != "" && secureEqual(queryToken, s.cfg.Token)
}

// allowRequest writes the error envelope and returns false when the method
// is not GET or the request is not authorized.
func (s *Server) allowRequest(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return false
	}
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return false
	}
	return true
}

func bearerToken(authHeader string) string {
	const bearerPrefix = "Bearer "
	authHeader = strings.TrimSpace(authHeader)
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
