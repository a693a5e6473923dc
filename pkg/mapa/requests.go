package mapa

import "github.com/google/uuid"

// Request DTOs

// RegisterRequest contains parameters for registering a user
type RegisterRequest struct {
	Name     string
	Email    string
	Password string
	Role     Role
}

// CreateSectionRequest contains parameters for creating a section
type CreateSectionRequest struct {
	AuthorID    uuid.UUID
	Title       string
	Description string
}

// UpdateSectionRequest contains parameters for updating a section.
// Nil fields are left unchanged.
type UpdateSectionRequest struct {
	ID          uuid.UUID
	Title       *string
	Description *string
}

// CreatePostRequest contains parameters for creating a post. Upload
// is optional; when present it is driven through the media pipeline
// before the post row is written.
type CreatePostRequest struct {
	AuthorID    uuid.UUID
	SectionSlug string
	Title       string
	Description string
	Upload      *Upload
}

// UpdatePostRequest contains parameters for updating a post. A
// non-nil Upload replaces the post's asset at its existing object key.
type UpdatePostRequest struct {
	PostSlug    string
	Title       *string
	Description *string
	Upload      *Upload
}

// CreateCommentRequest contains parameters for creating a comment
type CreateCommentRequest struct {
	AuthorID uuid.UUID
	PostSlug string
	Content  string
}

// UpdateCommentRequest contains parameters for updating a comment
type UpdateCommentRequest struct {
	ID      uuid.UUID
	Content string
}

// ListRequest carries pagination for list operations. Ordering is
// always newest first so page boundaries are stable between calls.
type ListRequest struct {
	Page  int
	Limit int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// LimitOffset normalizes the request into a limit/offset pair.
func (r ListRequest) LimitOffset() (limit, offset int) {
	limit = r.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	page := r.Page
	if page < 1 {
		page = 1
	}
	return limit, (page - 1) * limit
}
