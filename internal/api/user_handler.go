package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/mapa-edu/mapa-server/pkg/mapa"
)

func (s *Server) userRoutes() chi.Router {
	r := chi.NewRouter()

	r.Post("/create", s.handleRegister)
	r.Get("/verify/{token}", s.handleVerifyEmail)
	r.Post("/verify", s.handleResendVerification)

	r.Group(func(r chi.Router) {
		r.Use(s.RequireAuth)
		r.Get("/", s.handleListUsers)
		r.Get("/{userID}", s.handleGetUser)
		r.Patch("/", s.handleUpdateSubscription)
		r.Patch("/avatars", s.handleUpdateAvatar)
	})

	return r
}

// RegisterUserRequest is the request body for registering a user
type RegisterUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Bind validates the registration payload
func (req *RegisterUserRequest) Bind(r *http.Request) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)

	if req.Name == "" {
		return errValidation("name is required")
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return errValidation("valid email is required")
	}
	if len(req.Password) < 6 || len(req.Password) > 16 {
		return errValidation("password must be between 6 and 16 characters")
	}
	if req.Role == "" {
		req.Role = string(mapa.RoleStudent)
	}
	if !mapa.Role(req.Role).IsValid() {
		return errValidation("unknown role")
	}
	return nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterUserRequest
	if err := render.Bind(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	user, err := s.svc.Register(r.Context(), mapa.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     mapa.Role(req.Role),
	})
	if err != nil {
		renderError(w, r, err)
		return
	}

	respond(w, r, http.StatusCreated, "User created", user)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.ListUsers(r.Context(), listRequest(r))
	if err != nil {
		renderError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Users", users)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		badRequest(w, r, "invalid user ID")
		return
	}

	user, err := s.svc.GetUser(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "User", user)
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	user, err := s.svc.VerifyEmail(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		renderError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Email verified", user)
}

// ResendVerificationRequest is the request body for re-sending the
// verification email
type ResendVerificationRequest struct {
	Email string `json:"email"`
}

// Bind validates the resend payload
func (req *ResendVerificationRequest) Bind(r *http.Request) error {
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return errValidation("valid email is required")
	}
	return nil
}

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req ResendVerificationRequest
	if err := render.Bind(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	if err := s.svc.ResendVerificationEmail(r.Context(), req.Email); err != nil {
		renderError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Verification email sent", nil)
}

// UpdateSubscriptionRequest is the request body for changing the
// subscription tier
type UpdateSubscriptionRequest struct {
	Subscription string `json:"subscription"`
}

// Bind validates the subscription payload
func (req *UpdateSubscriptionRequest) Bind(r *http.Request) error {
	if !mapa.Subscription(req.Subscription).IsValid() {
		return errValidation("unknown subscription tier")
	}
	return nil
}

func (s *Server) handleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		renderError(w, r, mapa.ErrUnauthenticated)
		return
	}

	var req UpdateSubscriptionRequest
	if err := render.Bind(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	updated, err := s.svc.UpdateSubscription(r.Context(), user.ID, mapa.Subscription(req.Subscription))
	if err != nil {
		renderError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Subscription updated", updated)
}

func (s *Server) handleUpdateAvatar(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		renderError(w, r, mapa.ErrUnauthenticated)
		return
	}

	upload, err := s.stageFormFile(r, "avatar")
	if err != nil {
		renderError(w, r, err)
		return
	}

	avatarURL, err := s.svc.UpdateAvatar(r.Context(), user.ID, upload)
	if err != nil {
		renderError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Avatar updated", map[string]string{"avatar_url": avatarURL})
}
