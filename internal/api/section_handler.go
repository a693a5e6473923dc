package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/mapa-edu/mapa-server/pkg/mapa"
)

func (s *Server) sectionRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.RequireAuth)

	r.Post("/", s.handleCreateSection)
	r.Get("/", s.handleListSections)
	r.Get("/{slug}", s.handleGetSection)
	r.Patch("/{id}", s.handleUpdateSection)
	r.Delete("/{id}", s.handleDeleteSection)

	return r
}

// CreateSectionRequest is the request body for creating a section
type CreateSectionRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Bind validates the section payload
func (req *CreateSectionRequest) Bind(r *http.Request) error {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return errValidation("title is required")
	}
	return nil
}

func (s *Server) handleCreateSection(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		renderError(w, r, mapa.ErrUnauthenticated)
		return
	}

	var req CreateSectionRequest
	if err := render.Bind(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	section, err := s.svc.CreateSection(r.Context(), mapa.CreateSectionRequest{
		AuthorID:    user.ID,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		renderError(w, r, err)
		return
	}

	respond(w, r, http.StatusCreated, "Section created", section)
}

func (s *Server) handleListSections(w http.ResponseWriter, r *http.Request) {
	sections, err := s.svc.ListSections(r.Context(), listRequest(r))
	if err != nil {
		renderError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Sections", sections)
}

func (s *Server) handleGetSection(w http.ResponseWriter, r *http.Request) {
	section, err := s.svc.GetSectionBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		renderError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Section", section)
}

// UpdateSectionRequest is the request body for updating a section.
// Absent fields are left unchanged.
type UpdateSectionRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// Bind validates the update payload
func (req *UpdateSectionRequest) Bind(r *http.Request) error {
	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		if trimmed == "" {
			return errValidation("title cannot be empty")
		}
		req.Title = &trimmed
	}
	if req.Title == nil && req.Description == nil {
		return errValidation("nothing to update")
	}
	return nil
}

func (s *Server) handleUpdateSection(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, r, "invalid section ID")
		return
	}

	var req UpdateSectionRequest
	if err := render.Bind(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	section, err := s.svc.UpdateSection(r.Context(), mapa.UpdateSectionRequest{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		renderError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Section updated", section)
}

func (s *Server) handleDeleteSection(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, r, "invalid section ID")
		return
	}

	if err := s.svc.DeleteSection(r.Context(), id); err != nil {
		renderError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Section deleted", nil)
}

// listRequest reads page/limit query parameters
func listRequest(r *http.Request) mapa.ListRequest {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return mapa.ListRequest{Page: page, Limit: limit}
}
