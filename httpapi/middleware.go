package httpapi

import (
	"net/http"
	"strings"

	"qaflow/identity"
)

// requireActor authenticates the bearer token issued upstream and stamps the
// resulting actor onto the request context. Every mutation attributes itself
// to this actor rather than trusting request bodies.
func (s *Server) requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(raw, "Bearer ")
		if !ok || token == "" {
			writeJSON(w, http.StatusUnauthorized, errResp{"missing bearer token"})
			return
		}

		actor, err := s.verifier.Verify(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errResp{"invalid token"})
			return
		}

		next.ServeHTTP(w, r.WithContext(identity.WithActor(r.Context(), actor)))
	})
}

// actor returns the authenticated caller. The middleware guarantees presence
// on every route in the protected group.
func actor(r *http.Request) identity.Actor {
	a, _ := identity.FromContext(r.Context())
	return a
}
