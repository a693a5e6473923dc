package mapa

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Attempts at finding a free slug before giving up. Collisions need
// both equal slugified titles and equal 40-bit random suffixes, so a
// second attempt is already rare.
const slugAttempts = 3

const verificationWindow = time.Hour

// service implements the Service interface
type service struct {
	repo     Repository
	media    *MediaPipeline
	auth     *Authenticator
	notifier Notifier
	baseURL  string
	logger   *slog.Logger
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) { s.repo = repo }
}

// WithMediaPipeline sets the media asset pipeline for the service
func WithMediaPipeline(media *MediaPipeline) Option {
	return func(s *service) { s.media = media }
}

// WithAuthenticator sets the token authenticator for the service
func WithAuthenticator(auth *Authenticator) Option {
	return func(s *service) { s.auth = auth }
}

// WithNotifier sets the outbound notifier for the service
func WithNotifier(notifier Notifier) Option {
	return func(s *service) { s.notifier = notifier }
}

// WithBaseURL sets the public base URL used in notification links
func WithBaseURL(baseURL string) Option {
	return func(s *service) { s.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithLogger sets the logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) { s.logger = logger }
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{}
	for _, option := range options {
		option(s)
	}

	if s.repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.media == nil {
		return nil, fmt.Errorf("media pipeline is required")
	}
	if s.auth == nil {
		return nil, fmt.Errorf("authenticator is required")
	}
	if s.notifier == nil {
		s.notifier = NewNoopNotifier()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Account operations

func (s *service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if _, err := s.repo.GetUserByEmail(ctx, req.Email); err == nil {
		return nil, ErrEmailInUse
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = RoleStudent
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &User{
		ID:                uuid.New(),
		Name:              req.Name,
		Email:             req.Email,
		HashPassword:      string(hash),
		Role:              role,
		Subscription:      SubscriptionStarter,
		AvatarURL:         gravatarURL(req.Email),
		VerificationToken: newVerificationToken(now),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.notify(user.Email, "Action Required: Verify Your Email",
		verificationEmailHTML(s.baseURL, user.VerificationToken))
	return user, nil
}

func (s *service) Login(ctx context.Context, email, password string) (*User, string, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashPassword), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.auth.Issue(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}
	user.Token = token
	return user, token, nil
}

func (s *service) Logout(ctx context.Context, userID uuid.UUID) error {
	return s.auth.Revoke(ctx, userID)
}

func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetUser(ctx, id)
}

func (s *service) ListUsers(ctx context.Context, req ListRequest) ([]*User, error) {
	limit, offset := req.LimitOffset()
	return s.repo.ListUsers(ctx, limit, offset)
}

func (s *service) VerifyEmail(ctx context.Context, verificationToken string) (*User, error) {
	parts := strings.SplitN(verificationToken, "T", 2)
	if len(parts) != 2 {
		return nil, ErrUserNotFound
	}
	expiry, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, ErrUserNotFound
	}
	if time.Now().UnixMilli() > expiry {
		return nil, ErrVerificationExpired
	}

	user, err := s.repo.GetUserByVerificationToken(ctx, verificationToken)
	if err != nil {
		return nil, err
	}
	user.Verified = true
	user.VerificationToken = ""
	user.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *service) ResendVerificationEmail(ctx context.Context, email string) error {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.Verified {
		return ErrAlreadyVerified
	}

	user.VerificationToken = newVerificationToken(time.Now().UTC())
	user.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return err
	}

	s.notify(user.Email, "Action Required: Verify Your Email",
		verificationEmailHTML(s.baseURL, user.VerificationToken))
	return nil
}

func (s *service) UpdateSubscription(ctx context.Context, userID uuid.UUID, sub Subscription) (*User, error) {
	if !sub.IsValid() {
		return nil, fmt.Errorf("invalid subscription %q", sub)
	}
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Subscription = sub
	user.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *service) UpdateAvatar(ctx context.Context, userID uuid.UUID, upload *Upload) (string, error) {
	// Reconfirm the record exists before the object is stored.
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		s.media.Discard(upload)
		return "", err
	}

	key := AvatarAssetKey(userID, upload.Filename)
	url, err := s.media.Store(ctx, upload, key)
	if err != nil {
		return "", err
	}

	user.AvatarURL = url
	user.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		if derr := s.media.Delete(ctx, key); derr != nil {
			s.logger.Error("orphaned avatar object after failed user update",
				"key", key, "error", derr)
		}
		return "", err
	}
	return url, nil
}

// Section operations

func (s *service) CreateSection(ctx context.Context, req CreateSectionRequest) (*Section, error) {
	if _, err := s.repo.GetSectionByTitle(ctx, req.Title); err == nil {
		return nil, ErrTitleExists
	} else if !errors.Is(err, ErrSectionNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	section := &Section{
		ID:          uuid.New(),
		Title:       req.Title,
		Description: req.Description,
		AuthorID:    req.AuthorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Uniqueness lives in the store, not the generator: retry with a
	// fresh disambiguator when the constraint rejects the slug.
	var err error
	for attempt := 0; attempt < slugAttempts; attempt++ {
		section.Slug = NewSlug(req.Title)
		err = s.repo.CreateSection(ctx, section)
		if !errors.Is(err, ErrSlugTaken) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	return section, nil
}

func (s *service) GetSectionBySlug(ctx context.Context, slug string) (*Section, error) {
	return s.repo.GetSectionBySlug(ctx, slug)
}

func (s *service) ListSections(ctx context.Context, req ListRequest) ([]*Section, error) {
	limit, offset := req.LimitOffset()
	return s.repo.ListSections(ctx, limit, offset)
}

func (s *service) UpdateSection(ctx context.Context, req UpdateSectionRequest) (*Section, error) {
	section, err := s.repo.GetSection(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if req.Title != nil && *req.Title != section.Title {
		if _, err := s.repo.GetSectionByTitle(ctx, *req.Title); err == nil {
			return nil, ErrTitleExists
		} else if !errors.Is(err, ErrSectionNotFound) {
			return nil, err
		}
		section.Title = *req.Title
	}
	if req.Description != nil {
		section.Description = *req.Description
	}
	section.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateSection(ctx, section); err != nil {
		return nil, err
	}
	return section, nil
}

func (s *service) DeleteSection(ctx context.Context, id uuid.UUID) error {
	section, err := s.repo.GetSection(ctx, id)
	if err != nil {
		return err
	}

	// Snapshot posts before the cascade so their assets can be removed
	// from durable storage afterwards.
	posts, err := s.repo.ListPostsBySection(ctx, section.ID, 0, 0)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteSectionCascade(ctx, section.ID); err != nil {
		return &SectionError{SectionID: section.ID, Op: "delete", Err: err}
	}

	for _, post := range posts {
		if post.Content == "" {
			continue
		}
		key := PostAssetKey(post.AuthorID, post.Slug)
		if err := s.media.Delete(ctx, key); err != nil {
			s.logger.Error("orphaned media object after section cascade",
				"section_id", section.ID, "key", key, "error", err)
		}
	}
	return nil
}

// Post operations

func (s *service) CreatePost(ctx context.Context, req CreatePostRequest) (*Post, error) {
	fail := func(err error) (*Post, error) {
		s.media.Discard(req.Upload)
		return nil, err
	}

	section, err := s.repo.GetSectionBySlug(ctx, req.SectionSlug)
	if err != nil {
		return fail(err)
	}
	if _, err := s.repo.GetPostByTitle(ctx, req.Title); err == nil {
		return fail(ErrTitleExists)
	} else if !errors.Is(err, ErrPostNotFound) {
		return fail(err)
	}

	// The object key embeds the slug, so settle it before storing.
	slug, err := s.freePostSlug(ctx, req.Title)
	if err != nil {
		return fail(err)
	}

	var contentURL, objectKey string
	if req.Upload != nil {
		objectKey = PostAssetKey(req.AuthorID, slug)
		contentURL, err = s.media.Store(ctx, req.Upload, objectKey)
		if err != nil {
			// Pipeline failed: the post row is never written.
			return nil, err
		}
	}

	now := time.Now().UTC()
	post := &Post{
		ID:          uuid.New(),
		Slug:        slug,
		Title:       req.Title,
		Description: req.Description,
		Content:     contentURL,
		SectionID:   section.ID,
		AuthorID:    req.AuthorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreatePost(ctx, post); err != nil {
		// Linking failed after the object was stored; delete it so the
		// store holds no object no record points at.
		if objectKey != "" {
			if derr := s.media.Delete(ctx, objectKey); derr != nil {
				s.logger.Error("orphaned media object after failed post create",
					"key", objectKey, "error", derr)
			}
		}
		return nil, err
	}
	return post, nil
}

func (s *service) freePostSlug(ctx context.Context, title string) (string, error) {
	for attempt := 0; attempt < slugAttempts; attempt++ {
		slug := NewSlug(title)
		_, err := s.repo.GetPostBySlug(ctx, slug)
		if errors.Is(err, ErrPostNotFound) {
			return slug, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no free slug for %q after %d attempts", title, slugAttempts)
}

func (s *service) GetPostBySlug(ctx context.Context, slug string) (*Post, error) {
	post, err := s.repo.GetPostBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	section, err := s.repo.GetSection(ctx, post.SectionID)
	if err == nil {
		post.Section = section
	}
	return post, nil
}

func (s *service) ListPosts(ctx context.Context, req ListRequest) ([]*Post, error) {
	limit, offset := req.LimitOffset()
	return s.repo.ListPosts(ctx, limit, offset)
}

func (s *service) ListPostsBySection(ctx context.Context, sectionSlug string, req ListRequest) ([]*Post, error) {
	section, err := s.repo.GetSectionBySlug(ctx, sectionSlug)
	if err != nil {
		return nil, err
	}
	limit, offset := req.LimitOffset()
	return s.repo.ListPostsBySection(ctx, section.ID, limit, offset)
}

func (s *service) UpdatePost(ctx context.Context, req UpdatePostRequest) (*Post, error) {
	post, err := s.repo.GetPostBySlug(ctx, req.PostSlug)
	if err != nil {
		s.media.Discard(req.Upload)
		return nil, err
	}

	if req.Title != nil && *req.Title != post.Title {
		if _, err := s.repo.GetPostByTitle(ctx, *req.Title); err == nil {
			s.media.Discard(req.Upload)
			return nil, ErrTitleExists
		} else if !errors.Is(err, ErrPostNotFound) {
			s.media.Discard(req.Upload)
			return nil, err
		}
		post.Title = *req.Title
	}
	if req.Description != nil {
		post.Description = *req.Description
	}

	if req.Upload != nil {
		// Replace overwrites the object at the post's existing key, so
		// the stored URL stays valid even if the row write below fails.
		key := PostAssetKey(post.AuthorID, post.Slug)
		url, err := s.media.Store(ctx, req.Upload, key)
		if err != nil {
			return nil, err
		}
		post.Content = url
	}

	post.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdatePost(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *service) DeletePost(ctx context.Context, postSlug string) error {
	post, err := s.repo.GetPostBySlug(ctx, postSlug)
	if err != nil {
		return err
	}

	if err := s.repo.DeletePostCascade(ctx, post.ID); err != nil {
		return &PostError{Slug: post.Slug, Op: "delete", Err: err}
	}

	if post.Content != "" {
		key := PostAssetKey(post.AuthorID, post.Slug)
		if err := s.media.Delete(ctx, key); err != nil {
			s.logger.Error("orphaned media object after post delete",
				"key", key, "error", err)
		}
	}
	return nil
}

// Comment operations

func (s *service) CreateComment(ctx context.Context, req CreateCommentRequest) (*Comment, error) {
	post, err := s.repo.GetPostBySlug(ctx, req.PostSlug)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	comment := &Comment{
		ID:        uuid.New(),
		Content:   req.Content,
		AuthorID:  req.AuthorID,
		PostID:    post.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *service) GetComment(ctx context.Context, id uuid.UUID) (*Comment, error) {
	return s.repo.GetComment(ctx, id)
}

func (s *service) ListCommentsByPost(ctx context.Context, postSlug string, req ListRequest) ([]*Comment, error) {
	post, err := s.repo.GetPostBySlug(ctx, postSlug)
	if err != nil {
		return nil, err
	}
	limit, offset := req.LimitOffset()
	return s.repo.ListCommentsByPost(ctx, post.ID, limit, offset)
}

func (s *service) UpdateComment(ctx context.Context, req UpdateCommentRequest) (*Comment, error) {
	comment, err := s.repo.GetComment(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	comment.Content = req.Content
	comment.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *service) DeleteComment(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetComment(ctx, id); err != nil {
		return err
	}
	return s.repo.DeleteComment(ctx, id)
}

// Helpers

// notify delivers fire and forget: failures are logged, never
// surfaced to the caller.
func (s *service) notify(to, subject, html string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.notifier.Send(ctx, to, subject, html); err != nil {
			s.logger.Error("notification send failed",
				"to", to, "subject", subject, "error", err)
		}
	}()
}

func newVerificationToken(now time.Time) string {
	return fmt.Sprintf("%sT%d", uuid.New(), now.Add(verificationWindow).UnixMilli())
}

func verificationEmailHTML(baseURL, token string) string {
	return fmt.Sprintf(`
      <h1>Welcome to our service</h1>
      <p>
        To complete the registration process and have access to all the features of our service, please click the link below to verify your email address:
      </p>
      <p>
       The link will be active for 1 hour.
      </p>
      <a style="display: block; padding: 10px; background-color: #4CAF50; color: white; text-align: center; text-decoration: none;" href="%s/api/users/verify/%s">Verify Email</a>
    `, baseURL, token)
}

func gravatarURL(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%x?s=500", sum)
}
