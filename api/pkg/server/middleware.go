package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// bearerMiddleware rejects requests without a valid bearer token. It is a
// pass-through when authentication is disabled.
func (s *AtriumAPIServer) bearerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		if !s.authenticator.Enabled() {
			next.ServeHTTP(res, req)
			return
		}

		token := extractBearerToken(req)
		if err := s.authenticator.ValidateBearerToken(token); err != nil {
			log.Warn().Str("path", req.URL.Path).Err(err).Msg("unauthorized request rejected")
			res.Header().Set("Content-Type", "application/json")
			res.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(res).Encode(map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(res, req)
	})
}

func extractBearerToken(req *http.Request) string {
	header := req.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
