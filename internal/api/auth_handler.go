package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/mapa-edu/mapa-server/pkg/mapa"
)

func (s *Server) authRoutes() chi.Router {
	r := chi.NewRouter()

	r.Post("/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.RequireAuth)
		r.Get("/logout", s.handleLogout)
		r.Get("/current", s.handleCurrentUser)
	})

	return r
}

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Bind validates the login payload
func (req *LoginRequest) Bind(r *http.Request) error {
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return errValidation("valid email is required")
	}
	if req.Password == "" {
		return errValidation("password is required")
	}
	return nil
}

// LoginResponse carries the authenticated user and their session token
type LoginResponse struct {
	User  *mapa.User `json:"user"`
	Token string     `json:"token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := render.Bind(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	user, token, err := s.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		renderError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Logged in", LoginResponse{User: user, Token: token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		renderError(w, r, mapa.ErrUnauthenticated)
		return
	}

	if err := s.svc.Logout(r.Context(), user.ID); err != nil {
		renderError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Logged out", nil)
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		renderError(w, r, mapa.ErrUnauthenticated)
		return
	}

	respond(w, r, http.StatusOK, "Current user", user)
}
