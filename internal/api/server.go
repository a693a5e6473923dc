// Package api exposes the mapa service over HTTP.
package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/mapa-edu/mapa-server/pkg/mapa"
)

// Server wires the service into a chi router
type Server struct {
	svc         mapa.Service
	auth        *mapa.Authenticator
	media       *mapa.MediaPipeline
	store       mapa.BlobStore
	environment string
}

// NewServer creates a new API server
func NewServer(svc mapa.Service, auth *mapa.Authenticator, media *mapa.MediaPipeline, store mapa.BlobStore, environment string) *Server {
	return &Server{
		svc:         svc,
		auth:        auth,
		media:       media,
		store:       store,
		environment: environment,
	}
}

// Routes sets up the HTTP routes
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	logger := httplog.NewLogger("mapa-server", httplog.Options{
		LogLevel:       slog.LevelInfo,
		Concise:        s.environment == "development",
		RequestHeaders: false,
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleMethodNotAllowed)

	r.Get("/health", s.handleHealth)
	r.Get("/media/*", s.handleMedia)

	r.Route("/api", func(r chi.Router) {
		// Set before the mounts so the resource routers inherit the
		// envelope instead of chi's plain-text default.
		r.NotFound(s.handleNotFound)
		r.MethodNotAllowed(s.handleMethodNotAllowed)

		r.Mount("/auth", s.authRoutes())
		r.Mount("/users", s.userRoutes())
		r.Mount("/sections", s.sectionRoutes())
		r.Mount("/posts", s.postRoutes())
		r.Mount("/comments", s.commentRoutes())
	})

	return r
}

const maxUploadSize = 32 << 20 // 32 MB

// stageFormFile pulls a required file field out of a multipart form
// and stages it for the media pipeline.
func (s *Server) stageFormFile(r *http.Request, field string) (*mapa.Upload, error) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return nil, errValidation("multipart form required")
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, errValidation(field + " file is required")
	}
	defer file.Close()

	return s.media.Stage(file, header.Filename)
}

// stageOptionalFormFile is stageFormFile for endpoints where the file
// may be omitted; a missing field stages nothing.
func (s *Server) stageOptionalFormFile(r *http.Request, field string) (*mapa.Upload, error) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return nil, nil
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, errValidation("invalid " + field + " file")
	}
	defer file.Close()

	return s.media.Stage(file, header.Filename)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusNotFound, "Not found", nil)
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, "ok", map[string]string{
		"status":      "healthy",
		"environment": s.environment,
	})
}

// handleMedia streams a stored object. Backends with their own public
// URLs (S3, CDN) are normally fronted directly; this route serves the
// memory and filesystem backends.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	objectKey := chi.URLParam(r, "*")
	if objectKey == "" {
		renderError(w, r, mapa.ErrObjectNotFound)
		return
	}

	meta, err := s.store.GetObjectMeta(r.Context(), objectKey)
	if err != nil {
		renderError(w, r, err)
		return
	}

	body, err := s.store.Download(r.Context(), objectKey)
	if err != nil {
		renderError(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", meta.ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		slog.Error("stream object", "key", objectKey, "error", err)
	}
}
