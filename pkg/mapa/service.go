package mapa

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the main interface for the mapa content backend
type Service interface {
	// Account operations
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Login(ctx context.Context, email, password string) (*User, string, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	ListUsers(ctx context.Context, req ListRequest) ([]*User, error)
	VerifyEmail(ctx context.Context, verificationToken string) (*User, error)
	ResendVerificationEmail(ctx context.Context, email string) error
	UpdateSubscription(ctx context.Context, userID uuid.UUID, sub Subscription) (*User, error)
	UpdateAvatar(ctx context.Context, userID uuid.UUID, upload *Upload) (string, error)

	// Section operations
	CreateSection(ctx context.Context, req CreateSectionRequest) (*Section, error)
	GetSectionBySlug(ctx context.Context, slug string) (*Section, error)
	ListSections(ctx context.Context, req ListRequest) ([]*Section, error)
	UpdateSection(ctx context.Context, req UpdateSectionRequest) (*Section, error)
	DeleteSection(ctx context.Context, id uuid.UUID) error

	// Post operations
	CreatePost(ctx context.Context, req CreatePostRequest) (*Post, error)
	GetPostBySlug(ctx context.Context, slug string) (*Post, error)
	ListPosts(ctx context.Context, req ListRequest) ([]*Post, error)
	ListPostsBySection(ctx context.Context, sectionSlug string, req ListRequest) ([]*Post, error)
	UpdatePost(ctx context.Context, req UpdatePostRequest) (*Post, error)
	DeletePost(ctx context.Context, postSlug string) error

	// Comment operations
	CreateComment(ctx context.Context, req CreateCommentRequest) (*Comment, error)
	GetComment(ctx context.Context, id uuid.UUID) (*Comment, error)
	ListCommentsByPost(ctx context.Context, postSlug string, req ListRequest) ([]*Comment, error)
	UpdateComment(ctx context.Context, req UpdateCommentRequest) (*Comment, error)
	DeleteComment(ctx context.Context, id uuid.UUID) error
}
