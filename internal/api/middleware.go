package api

import (
	"context"
	"net/http"

	"github.com/go-chi/jwtauth"
	"github.com/mapa-edu/mapa-server/pkg/mapa"
)

type contextKey string

const userContextKey contextKey = "mapa.user"

// RequireAuth validates the bearer token on every request and puts the
// authenticated user on the context. Stale tokens, logged-out sessions
// and tokens superseded by a newer login are all rejected.
func (s *Server) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.auth.Validate(r.Context(), jwtauth.TokenFromHeader(r))
		if err != nil {
			renderError(w, r, mapa.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

func withUser(ctx context.Context, user *mapa.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the authenticated user set by RequireAuth.
func UserFromContext(ctx context.Context) (*mapa.User, bool) {
	user, ok := ctx.Value(userContextKey).(*mapa.User)
	return user, ok
}
