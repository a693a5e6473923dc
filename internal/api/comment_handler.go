package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/mapa-edu/mapa-server/pkg/mapa"
)

func (s *Server) commentRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.RequireAuth)

	r.Post("/create/{postSlug}", s.handleCreateComment)
	r.Get("/index/{postSlug}", s.handleListComments)
	r.Get("/show/{commentID}", s.handleGetComment)
	r.Patch("/update/{commentID}", s.handleUpdateComment)
	r.Delete("/delete/{commentID}", s.handleDeleteComment)

	return r
}

// CommentRequest is the request body for creating or updating a comment
type CommentRequest struct {
	Content string `json:"content"`
}

// Bind validates the comment payload
func (req *CommentRequest) Bind(r *http.Request) error {
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		return errValidation("content is required")
	}
	return nil
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		renderError(w, r, mapa.ErrUnauthenticated)
		return
	}

	var req CommentRequest
	if err := render.Bind(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	comment, err := s.svc.CreateComment(r.Context(), mapa.CreateCommentRequest{
		AuthorID: user.ID,
		PostSlug: chi.URLParam(r, "postSlug"),
		Content:  req.Content,
	})
	if err != nil {
		renderError(w, r, err)
		return
	}

	respond(w, r, http.StatusCreated, "Comment created", comment)
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.svc.ListCommentsByPost(r.Context(), chi.URLParam(r, "postSlug"), listRequest(r))
	if err != nil {
		renderError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Comments", comments)
}

func (s *Server) handleGetComment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "commentID"))
	if err != nil {
		badRequest(w, r, "invalid comment ID")
		return
	}

	comment, err := s.svc.GetComment(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Comment", comment)
}

func (s *Server) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "commentID"))
	if err != nil {
		badRequest(w, r, "invalid comment ID")
		return
	}

	var req CommentRequest
	if err := render.Bind(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	comment, err := s.svc.UpdateComment(r.Context(), mapa.UpdateCommentRequest{
		ID:      id,
		Content: req.Content,
	})
	if err != nil {
		renderError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Comment updated", comment)
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "commentID"))
	if err != nil {
		badRequest(w, r, "invalid comment ID")
		return
	}

	if err := s.svc.DeleteComment(r.Context(), id); err != nil {
		renderError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Comment deleted", nil)
}
