package mapa

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for persisting users and the
// section/post/comment hierarchy.
//
// CreatePost, CreateComment and the cascade deletes are composite
// writes: implementations must pair the row mutation with the owning
// record's counter delta in a single transaction (or an equivalent
// atomic unit), so denormalized counters never drift from the live
// child counts.
type Repository interface {
	// User operations
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByVerificationToken(ctx context.Context, token string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error
	ListUsers(ctx context.Context, limit, offset int) ([]*User, error)
	// SetUserToken replaces the user's current session token as a
	// single-field mutation. An empty token clears the session.
	SetUserToken(ctx context.Context, id uuid.UUID, token string) error

	// Section operations
	CreateSection(ctx context.Context, section *Section) error
	GetSection(ctx context.Context, id uuid.UUID) (*Section, error)
	GetSectionBySlug(ctx context.Context, slug string) (*Section, error)
	GetSectionByTitle(ctx context.Context, title string) (*Section, error)
	UpdateSection(ctx context.Context, section *Section) error
	ListSections(ctx context.Context, limit, offset int) ([]*Section, error)
	// DeleteSectionCascade removes the section, every post referencing
	// it and every comment referencing those posts, all or nothing.
	DeleteSectionCascade(ctx context.Context, id uuid.UUID) error

	// Post operations
	CreatePost(ctx context.Context, post *Post) error
	GetPost(ctx context.Context, id uuid.UUID) (*Post, error)
	GetPostBySlug(ctx context.Context, slug string) (*Post, error)
	GetPostByTitle(ctx context.Context, title string) (*Post, error)
	UpdatePost(ctx context.Context, post *Post) error
	// ListPostsBySection returns posts newest first. A limit <= 0
	// returns every post in the section.
	ListPostsBySection(ctx context.Context, sectionID uuid.UUID, limit, offset int) ([]*Post, error)
	ListPosts(ctx context.Context, limit, offset int) ([]*Post, error)
	// DeletePostCascade removes the post and its comments and restores
	// the parent section's posts_count.
	DeletePostCascade(ctx context.Context, id uuid.UUID) error

	// Comment operations
	CreateComment(ctx context.Context, comment *Comment) error
	GetComment(ctx context.Context, id uuid.UUID) (*Comment, error)
	UpdateComment(ctx context.Context, comment *Comment) error
	ListCommentsByPost(ctx context.Context, postID uuid.UUID, limit, offset int) ([]*Comment, error)
	DeleteComment(ctx context.Context, id uuid.UUID) error

	// Counter primitives. Single atomic deltas, never read-modify-write.
	IncrementSectionPosts(ctx context.Context, id uuid.UUID, delta int) error
	IncrementPostComments(ctx context.Context, id uuid.UUID, delta int) error
}

// BlobStore defines the interface for durable object storage backends
type BlobStore interface {
	// Upload stores the content under objectKey, overwriting any
	// existing object at the same key
	Upload(ctx context.Context, objectKey string, reader io.Reader) error

	// Download retrieves the content stored under objectKey
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete removes the object; returns ErrObjectNotFound when absent
	Delete(ctx context.Context, objectKey string) error

	// GetObjectMeta retrieves metadata for a stored object
	GetObjectMeta(ctx context.Context, objectKey string) (*ObjectMeta, error)
}

// ObjectMeta contains metadata about an object in storage
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
	Metadata    map[string]string
}

// Notifier delivers outbound notifications. Delivery is fire and
// forget: callers log failures and never block a response on them.
type Notifier interface {
	Send(ctx context.Context, to, subject, html string) error
}
