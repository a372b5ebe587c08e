package server

import (
	"context"
	"net/http"
	"strings"

	"chat-relay/auth"
)

type contextKey string

const claimsKey contextKey = "claims"

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			s.respondMessage(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := s.tokens.ValidateToken(token)
		if err != nil {
			s.respondMessage(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) (*auth.CustomClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.CustomClaims)
	return claims, ok
}
