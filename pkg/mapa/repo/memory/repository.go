package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/mapa-edu/mapa-server/pkg/mapa"
)

// Repository implements mapa.Repository using in-memory storage. The
// single mutex makes every composite write (insert plus counter
// delta, cascade delete) atomic with respect to concurrent calls,
// mirroring the transactional guarantees of the postgres repository.
type Repository struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]*mapa.User
	sections map[uuid.UUID]*mapa.Section
	posts    map[uuid.UUID]*mapa.Post
	comments map[uuid.UUID]*mapa.Comment
}

// New creates a new in-memory repository
func New() mapa.Repository {
	return &Repository{
		users:    make(map[uuid.UUID]*mapa.User),
		sections: make(map[uuid.UUID]*mapa.Section),
		posts:    make(map[uuid.UUID]*mapa.Post),
		comments: make(map[uuid.UUID]*mapa.Comment),
	}
}

// User operations

func (r *Repository) CreateUser(ctx context.Context, user *mapa.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == user.Email {
			return mapa.ErrEmailInUse
		}
	}
	userCopy := *user
	r.users[user.ID] = &userCopy
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*mapa.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, mapa.ErrUserNotFound
	}
	userCopy := *user
	return &userCopy, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*mapa.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.Email == email {
			userCopy := *user
			return &userCopy, nil
		}
	}
	return nil, mapa.ErrUserNotFound
}

func (r *Repository) GetUserByVerificationToken(ctx context.Context, token string) (*mapa.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if token == "" {
		return nil, mapa.ErrUserNotFound
	}
	for _, user := range r.users {
		if user.VerificationToken == token {
			userCopy := *user
			return &userCopy, nil
		}
	}
	return nil, mapa.ErrUserNotFound
}

func (r *Repository) UpdateUser(ctx context.Context, user *mapa.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.users[user.ID]
	if !exists {
		return mapa.ErrUserNotFound
	}
	userCopy := *user
	// Token is owned by SetUserToken; a profile update never touches
	// the session.
	userCopy.Token = stored.Token
	r.users[user.ID] = &userCopy
	return nil
}

func (r *Repository) ListUsers(ctx context.Context, limit, offset int) ([]*mapa.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*mapa.User, 0, len(r.users))
	for _, user := range r.users {
		userCopy := *user
		all = append(all, &userCopy)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return paginate(all, limit, offset), nil
}

func (r *Repository) SetUserToken(ctx context.Context, id uuid.UUID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.users[id]
	if !exists {
		return mapa.ErrUserNotFound
	}
	user.Token = token
	return nil
}

// Section operations

func (r *Repository) CreateSection(ctx context.Context, section *mapa.Section) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sections {
		if s.Slug == section.Slug {
			return mapa.ErrSlugTaken
		}
		if s.Title == section.Title {
			return mapa.ErrTitleExists
		}
	}
	sectionCopy := *section
	r.sections[section.ID] = &sectionCopy
	return nil
}

func (r *Repository) GetSection(ctx context.Context, id uuid.UUID) (*mapa.Section, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	section, exists := r.sections[id]
	if !exists {
		return nil, mapa.ErrSectionNotFound
	}
	sectionCopy := *section
	return &sectionCopy, nil
}

func (r *Repository) GetSectionBySlug(ctx context.Context, slug string) (*mapa.Section, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, section := range r.sections {
		if section.Slug == slug {
			sectionCopy := *section
			return &sectionCopy, nil
		}
	}
	return nil, mapa.ErrSectionNotFound
}

func (r *Repository) GetSectionByTitle(ctx context.Context, title string) (*mapa.Section, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, section := range r.sections {
		if section.Title == title {
			sectionCopy := *section
			return &sectionCopy, nil
		}
	}
	return nil, mapa.ErrSectionNotFound
}

func (r *Repository) UpdateSection(ctx context.Context, section *mapa.Section) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.sections[section.ID]
	if !exists {
		return mapa.ErrSectionNotFound
	}
	for _, s := range r.sections {
		if s.ID != section.ID && s.Title == section.Title {
			return mapa.ErrTitleExists
		}
	}
	sectionCopy := *section
	sectionCopy.PostsCount = stored.PostsCount
	r.sections[section.ID] = &sectionCopy
	return nil
}

func (r *Repository) ListSections(ctx context.Context, limit, offset int) ([]*mapa.Section, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*mapa.Section, 0, len(r.sections))
	for _, section := range r.sections {
		sectionCopy := *section
		all = append(all, &sectionCopy)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return paginate(all, limit, offset), nil
}

func (r *Repository) DeleteSectionCascade(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sections[id]; !exists {
		return mapa.ErrSectionNotFound
	}
	for postID, post := range r.posts {
		if post.SectionID != id {
			continue
		}
		for commentID, comment := range r.comments {
			if comment.PostID == postID {
				delete(r.comments, commentID)
			}
		}
		delete(r.posts, postID)
	}
	delete(r.sections, id)
	return nil
}

// Post operations

func (r *Repository) CreatePost(ctx context.Context, post *mapa.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	section, exists := r.sections[post.SectionID]
	if !exists {
		return mapa.ErrSectionNotFound
	}
	for _, p := range r.posts {
		if p.Slug == post.Slug {
			return mapa.ErrSlugTaken
		}
		if p.Title == post.Title {
			return mapa.ErrTitleExists
		}
	}
	postCopy := *post
	postCopy.Section = nil
	r.posts[post.ID] = &postCopy
	section.PostsCount++
	return nil
}

func (r *Repository) GetPost(ctx context.Context, id uuid.UUID) (*mapa.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	post, exists := r.posts[id]
	if !exists {
		return nil, mapa.ErrPostNotFound
	}
	postCopy := *post
	return &postCopy, nil
}

func (r *Repository) GetPostBySlug(ctx context.Context, slug string) (*mapa.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, post := range r.posts {
		if post.Slug == slug {
			postCopy := *post
			return &postCopy, nil
		}
	}
	return nil, mapa.ErrPostNotFound
}

func (r *Repository) GetPostByTitle(ctx context.Context, title string) (*mapa.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, post := range r.posts {
		if post.Title == title {
			postCopy := *post
			return &postCopy, nil
		}
	}
	return nil, mapa.ErrPostNotFound
}

func (r *Repository) UpdatePost(ctx context.Context, post *mapa.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.posts[post.ID]
	if !exists {
		return mapa.ErrPostNotFound
	}
	for _, p := range r.posts {
		if p.ID != post.ID && p.Title == post.Title {
			return mapa.ErrTitleExists
		}
	}
	postCopy := *post
	postCopy.Section = nil
	postCopy.CommentsCount = stored.CommentsCount
	r.posts[post.ID] = &postCopy
	return nil
}

func (r *Repository) ListPostsBySection(ctx context.Context, sectionID uuid.UUID, limit, offset int) ([]*mapa.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*mapa.Post
	for _, post := range r.posts {
		if post.SectionID == sectionID {
			postCopy := *post
			result = append(result, &postCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return paginate(result, limit, offset), nil
}

func (r *Repository) ListPosts(ctx context.Context, limit, offset int) ([]*mapa.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*mapa.Post, 0, len(r.posts))
	for _, post := range r.posts {
		postCopy := *post
		result = append(result, &postCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return paginate(result, limit, offset), nil
}

func (r *Repository) DeletePostCascade(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, exists := r.posts[id]
	if !exists {
		return mapa.ErrPostNotFound
	}
	for commentID, comment := range r.comments {
		if comment.PostID == id {
			delete(r.comments, commentID)
		}
	}
	delete(r.posts, id)
	if section, ok := r.sections[post.SectionID]; ok {
		section.PostsCount--
	}
	return nil
}

// Comment operations

func (r *Repository) CreateComment(ctx context.Context, comment *mapa.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, exists := r.posts[comment.PostID]
	if !exists {
		return mapa.ErrPostNotFound
	}
	commentCopy := *comment
	r.comments[comment.ID] = &commentCopy
	post.CommentsCount++
	return nil
}

func (r *Repository) GetComment(ctx context.Context, id uuid.UUID) (*mapa.Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	comment, exists := r.comments[id]
	if !exists {
		return nil, mapa.ErrCommentNotFound
	}
	commentCopy := *comment
	return &commentCopy, nil
}

func (r *Repository) UpdateComment(ctx context.Context, comment *mapa.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.comments[comment.ID]; !exists {
		return mapa.ErrCommentNotFound
	}
	commentCopy := *comment
	r.comments[comment.ID] = &commentCopy
	return nil
}

func (r *Repository) ListCommentsByPost(ctx context.Context, postID uuid.UUID, limit, offset int) ([]*mapa.Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*mapa.Comment
	for _, comment := range r.comments {
		if comment.PostID == postID {
			commentCopy := *comment
			result = append(result, &commentCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return paginate(result, limit, offset), nil
}

func (r *Repository) DeleteComment(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	comment, exists := r.comments[id]
	if !exists {
		return mapa.ErrCommentNotFound
	}
	delete(r.comments, id)
	if post, ok := r.posts[comment.PostID]; ok {
		post.CommentsCount--
	}
	return nil
}

// Counter primitives

func (r *Repository) IncrementSectionPosts(ctx context.Context, id uuid.UUID, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	section, exists := r.sections[id]
	if !exists {
		return mapa.ErrSectionNotFound
	}
	section.PostsCount += delta
	return nil
}

func (r *Repository) IncrementPostComments(ctx context.Context, id uuid.UUID, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, exists := r.posts[id]
	if !exists {
		return mapa.ErrPostNotFound
	}
	post.CommentsCount += delta
	return nil
}

func paginate[T any](items []*T, limit, offset int) []*T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
