package mapa

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrUnauthenticated indicates a missing, malformed, expired or
	// superseded session token
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidCredentials indicates a failed email/password check
	ErrInvalidCredentials = errors.New("email or password is wrong")

	// ErrUserNotFound indicates a user was not found
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailInUse indicates a registration attempt with a taken email
	ErrEmailInUse = errors.New("email in use")

	// ErrSectionNotFound indicates a section was not found
	ErrSectionNotFound = errors.New("section not found")

	// ErrPostNotFound indicates a post was not found
	ErrPostNotFound = errors.New("post not found")

	// ErrCommentNotFound indicates a comment was not found
	ErrCommentNotFound = errors.New("comment not found")

	// ErrTitleExists indicates a title-uniqueness violation
	ErrTitleExists = errors.New("title already exists")

	// ErrSlugTaken indicates a slug-uniqueness violation; callers retry
	// with a fresh disambiguator
	ErrSlugTaken = errors.New("slug already taken")

	// ErrObjectNotFound indicates a blob was not found in storage
	ErrObjectNotFound = errors.New("object not found")

	// ErrVerificationExpired indicates an expired email-verification link
	ErrVerificationExpired = errors.New("verification link has expired")

	// ErrAlreadyVerified indicates verification was already completed
	ErrAlreadyVerified = errors.New("verification has already been passed")
)

// IsNotFound reports whether err maps to the NotFound class.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrSectionNotFound) ||
		errors.Is(err, ErrPostNotFound) ||
		errors.Is(err, ErrCommentNotFound) ||
		errors.Is(err, ErrObjectNotFound)
}

// IsConflict reports whether err maps to the Conflict class.
func IsConflict(err error) bool {
	return errors.Is(err, ErrTitleExists) || errors.Is(err, ErrEmailInUse)
}

// SectionError represents an error related to section operations
type SectionError struct {
	SectionID uuid.UUID
	Op        string
	Err       error
}

func (e *SectionError) Error() string {
	return fmt.Sprintf("section operation %s failed for section %s: %v", e.Op, e.SectionID, e.Err)
}

func (e *SectionError) Unwrap() error {
	return e.Err
}

// PostError represents an error related to post operations
type PostError struct {
	Slug string
	Op   string
	Err  error
}

func (e *PostError) Error() string {
	return fmt.Sprintf("post operation %s failed for post %s: %v", e.Op, e.Slug, e.Err)
}

func (e *PostError) Unwrap() error {
	return e.Err
}

// MediaError represents an error in the media asset pipeline
type MediaError struct {
	Key string
	Op  string
	Err error
}

func (e *MediaError) Error() string {
	return fmt.Sprintf("media operation %s failed for key %s: %v", e.Op, e.Key, e.Err)
}

func (e *MediaError) Unwrap() error {
	return e.Err
}
