package mapa

import (
	"time"

	"github.com/google/uuid"
)

// Role is the domain type for user roles.
type Role string

// Role constants (typed).
const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleParent  Role = "parent"
	RoleAdmin   Role = "admin"
)

// IsValid reports whether the role is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleParent, RoleAdmin:
		return true
	}
	return false
}

// Subscription is the domain type for subscription tiers.
type Subscription string

// Subscription constants (typed).
const (
	SubscriptionStarter  Subscription = "starter"
	SubscriptionPro      Subscription = "pro"
	SubscriptionBusiness Subscription = "business"
)

// IsValid reports whether the subscription is one of the known tiers.
func (s Subscription) IsValid() bool {
	switch s {
	case SubscriptionStarter, SubscriptionPro, SubscriptionBusiness:
		return true
	}
	return false
}

// User represents a registered account.
//
// Token holds the user's sole current session token. It is replaced
// wholesale on login and cleared on logout; an empty value means the
// user has no live session.
type User struct {
	ID                uuid.UUID    `json:"id"`
	Name              string       `json:"name"`
	Email             string       `json:"email"`
	HashPassword      string       `json:"-"`
	Role              Role         `json:"role"`
	Subscription      Subscription `json:"subscription"`
	AvatarURL         string       `json:"avatar_url,omitempty"`
	Token             string       `json:"-"`
	Verified          bool         `json:"verified"`
	VerificationToken string       `json:"-"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// Section is a top-level content category owned by an author.
//
// PostsCount is denormalized: it must equal the live count of posts
// referencing the section after every create and delete, cascades
// included.
type Section struct {
	ID          uuid.UUID `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	AuthorID    uuid.UUID `json:"author_id"`
	PostsCount  int       `json:"posts_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Post is a leaf unit of content belonging to exactly one section.
//
// Content is a URL into durable storage, or empty when the post
// carries no asset. It is never left pointing at a deleted or
// not-yet-uploaded object.
type Post struct {
	ID            uuid.UUID `json:"id"`
	Slug          string    `json:"slug"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Content       string    `json:"content,omitempty"`
	SectionID     uuid.UUID `json:"section_id"`
	AuthorID      uuid.UUID `json:"author_id"`
	CommentsCount int       `json:"comments_count"`
	LikesCount    int       `json:"likes_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Populated by detail fetches, not persisted on the post row.
	Section *Section `json:"section,omitempty"`
}

// Comment is user feedback attached to a post.
type Comment struct {
	ID         uuid.UUID `json:"id"`
	Content    string    `json:"content"`
	AuthorID   uuid.UUID `json:"author_id"`
	PostID     uuid.UUID `json:"post_id"`
	LikesCount int       `json:"likes_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
