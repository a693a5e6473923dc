package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mapa-edu/mapa-server/pkg/mapa"
)

func (s *Server) postRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.RequireAuth)

	r.Post("/create/{sectionSlug}", s.handleCreatePost)
	r.Get("/", s.handleListPosts)
	r.Get("/details/{postSlug}", s.handleGetPost)
	r.Get("/{sectionSlug}", s.handleListPostsBySection)
	r.Put("/{postSlug}", s.handleUpdatePost)
	r.Delete("/{sectionSlug}/{postSlug}", s.handleDeletePost)

	return r
}

// Post create and update arrive as multipart forms: text fields plus
// an optional "content" file driven through the media pipeline.

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		renderError(w, r, mapa.ErrUnauthenticated)
		return
	}

	upload, err := s.stageOptionalFormFile(r, "content")
	if err != nil {
		renderError(w, r, err)
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		s.media.Discard(upload)
		badRequest(w, r, "title is required")
		return
	}

	post, err := s.svc.CreatePost(r.Context(), mapa.CreatePostRequest{
		AuthorID:    user.ID,
		SectionSlug: chi.URLParam(r, "sectionSlug"),
		Title:       title,
		Description: r.FormValue("description"),
		Upload:      upload,
	})
	if err != nil {
		renderError(w, r, err)
		return
	}

	respond(w, r, http.StatusCreated, "Post created", post)
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	post, err := s.svc.GetPostBySlug(r.Context(), chi.URLParam(r, "postSlug"))
	if err != nil {
		renderError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Post", post)
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.svc.ListPosts(r.Context(), listRequest(r))
	if err != nil {
		renderError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Posts", posts)
}

func (s *Server) handleListPostsBySection(w http.ResponseWriter, r *http.Request) {
	posts, err := s.svc.ListPostsBySection(r.Context(), chi.URLParam(r, "sectionSlug"), listRequest(r))
	if err != nil {
		renderError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Posts", posts)
}

func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	upload, err := s.stageOptionalFormFile(r, "content")
	if err != nil {
		renderError(w, r, err)
		return
	}

	req := mapa.UpdatePostRequest{
		PostSlug: chi.URLParam(r, "postSlug"),
		Upload:   upload,
	}
	if title := strings.TrimSpace(r.FormValue("title")); title != "" {
		req.Title = &title
	}
	if _, ok := r.Form["description"]; ok {
		description := r.FormValue("description")
		req.Description = &description
	}
	if req.Title == nil && req.Description == nil && req.Upload == nil {
		badRequest(w, r, "nothing to update")
		return
	}

	post, err := s.svc.UpdatePost(r.Context(), req)
	if err != nil {
		renderError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Post updated", post)
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	sectionSlug := chi.URLParam(r, "sectionSlug")
	postSlug := chi.URLParam(r, "postSlug")

	// The post must live in the named section; a mismatched pair is
	// treated as not found.
	post, err := s.svc.GetPostBySlug(r.Context(), postSlug)
	if err != nil {
		renderError(w, r, err)
		return
	}
	if post.Section == nil || post.Section.Slug != sectionSlug {
		renderError(w, r, mapa.ErrPostNotFound)
		return
	}

	if err := s.svc.DeletePost(r.Context(), postSlug); err != nil {
		renderError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Post deleted", nil)
}
