package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/mapa-edu/mapa-server/pkg/mapa"
)

// Response is the envelope every endpoint renders
type Response struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func respond(w http.ResponseWriter, r *http.Request, status int, message string, data interface{}) {
	render.Status(r, status)
	render.JSON(w, r, Response{Message: message, Data: data})
}

// renderError maps a domain error onto the HTTP status taxonomy. The
// message leaks nothing for internal failures.
func renderError(w http.ResponseWriter, r *http.Request, err error) {
	var verr validationError
	switch {
	case errors.As(err, &verr):
		respond(w, r, http.StatusBadRequest, verr.Error(), nil)

	case errors.Is(err, mapa.ErrUnauthenticated):
		respond(w, r, http.StatusUnauthorized, "Not authorized", nil)

	case errors.Is(err, mapa.ErrInvalidCredentials):
		respond(w, r, http.StatusBadRequest, err.Error(), nil)

	case errors.Is(err, mapa.ErrVerificationExpired),
		errors.Is(err, mapa.ErrAlreadyVerified):
		respond(w, r, http.StatusBadRequest, err.Error(), nil)

	case mapa.IsNotFound(err):
		respond(w, r, http.StatusNotFound, err.Error(), nil)

	case mapa.IsConflict(err):
		respond(w, r, http.StatusConflict, err.Error(), nil)

	default:
		slog.Error("request failed", "path", r.URL.Path, "error", err)
		respond(w, r, http.StatusInternalServerError, "Something went wrong", nil)
	}
}

func badRequest(w http.ResponseWriter, r *http.Request, message string) {
	respond(w, r, http.StatusBadRequest, message, nil)
}

// validationError carries a user-facing message for a rejected payload
type validationError struct {
	msg string
}

func (e validationError) Error() string { return e.msg }

func errValidation(msg string) error { return validationError{msg: msg} }
