package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mapa-edu/mapa-server/pkg/mapa"
)

// DBTX is satisfied by both a pgxpool.Pool and a pgx.Tx, so the same
// queries can run standalone or inside a transaction.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements mapa.Repository using PostgreSQL.
//
// Counters are single-statement atomic updates and every composite
// write (insert plus counter delta, cascade delete) runs in one
// transaction, so posts_count and comments_count cannot drift from
// the live child counts.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL repository backed by a connection pool
func New(pool *pgxpool.Pool) mapa.Repository {
	return &Repository{pool: pool}
}

// mapUniqueViolation translates a unique-constraint violation into
// the domain error the caller can act on: title conflicts surface as
// Conflict, slug conflicts are retryable with a fresh disambiguator.
func mapUniqueViolation(pgErr *pgconn.PgError) error {
	switch {
	case strings.Contains(pgErr.ConstraintName, "slug"):
		return mapa.ErrSlugTaken
	case strings.Contains(pgErr.ConstraintName, "title"):
		return mapa.ErrTitleExists
	case strings.Contains(pgErr.ConstraintName, "email"):
		return mapa.ErrEmailInUse
	}
	return fmt.Errorf("duplicate entry: %s", pgErr.ConstraintName)
}

func mapError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return mapUniqueViolation(pgErr)
		case "23503": // foreign_key_violation
			return fmt.Errorf("referenced record not found: %s", pgErr.ConstraintName)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (r *Repository) inTx(ctx context.Context, operation string, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return mapError(operation, err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError(operation, err)
	}
	return nil
}

// User operations

const userColumns = `id, name, email, hash_password, role, subscription,
       avatar_url, COALESCE(token, ''), verified, COALESCE(verification_token, ''),
       created_at, updated_at`

func scanUser(row pgx.Row) (*mapa.User, error) {
	var user mapa.User
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.HashPassword, &user.Role,
		&user.Subscription, &user.AvatarURL, &user.Token, &user.Verified,
		&user.VerificationToken, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, mapa.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *Repository) CreateUser(ctx context.Context, user *mapa.User) error {
	query := `
		INSERT INTO users (
			id, name, email, hash_password, role, subscription, avatar_url,
			verified, verification_token, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		user.ID, user.Name, user.Email, user.HashPassword, user.Role,
		user.Subscription, user.AvatarURL, user.Verified,
		user.VerificationToken, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return mapError("create user", err)
	}
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*mapa.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*mapa.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *Repository) GetUserByVerificationToken(ctx context.Context, token string) (*mapa.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE verification_token = $1`
	return scanUser(r.pool.QueryRow(ctx, query, token))
}

func (r *Repository) UpdateUser(ctx context.Context, user *mapa.User) error {
	// Token is deliberately absent: session state is owned by
	// SetUserToken alone.
	query := `
		UPDATE users SET
			name = $2, email = $3, hash_password = $4, role = $5,
			subscription = $6, avatar_url = $7, verified = $8,
			verification_token = NULLIF($9, ''), updated_at = $10
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query,
		user.ID, user.Name, user.Email, user.HashPassword, user.Role,
		user.Subscription, user.AvatarURL, user.Verified,
		user.VerificationToken, user.UpdatedAt)
	if err != nil {
		return mapError("update user", err)
	}
	if tag.RowsAffected() == 0 {
		return mapa.ErrUserNotFound
	}
	return nil
}

func (r *Repository) ListUsers(ctx context.Context, limit, offset int) ([]*mapa.User, error) {
	query := `
		SELECT ` + userColumns + ` FROM users
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, mapError("list users", err)
	}
	defer rows.Close()

	var users []*mapa.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *Repository) SetUserToken(ctx context.Context, id uuid.UUID, token string) error {
	query := `UPDATE users SET token = NULLIF($2, ''), updated_at = NOW() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, token)
	if err != nil {
		return mapError("set user token", err)
	}
	if tag.RowsAffected() == 0 {
		return mapa.ErrUserNotFound
	}
	return nil
}

// Section operations

const sectionColumns = `id, slug, title, description, author_id, posts_count, created_at, updated_at`

func scanSection(row pgx.Row) (*mapa.Section, error) {
	var section mapa.Section
	err := row.Scan(
		&section.ID, &section.Slug, &section.Title, &section.Description,
		&section.AuthorID, &section.PostsCount, &section.CreatedAt, &section.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, mapa.ErrSectionNotFound
		}
		return nil, err
	}
	return &section, nil
}

func (r *Repository) CreateSection(ctx context.Context, section *mapa.Section) error {
	query := `
		INSERT INTO sections (id, slug, title, description, author_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		section.ID, section.Slug, section.Title, section.Description,
		section.AuthorID, section.CreatedAt, section.UpdatedAt)
	if err != nil {
		return mapError("create section", err)
	}
	return nil
}

func (r *Repository) GetSection(ctx context.Context, id uuid.UUID) (*mapa.Section, error) {
	query := `SELECT ` + sectionColumns + ` FROM sections WHERE id = $1`
	return scanSection(r.pool.QueryRow(ctx, query, id))
}

func (r *Repository) GetSectionBySlug(ctx context.Context, slug string) (*mapa.Section, error) {
	query := `SELECT ` + sectionColumns + ` FROM sections WHERE slug = $1`
	return scanSection(r.pool.QueryRow(ctx, query, slug))
}

func (r *Repository) GetSectionByTitle(ctx context.Context, title string) (*mapa.Section, error) {
	query := `SELECT ` + sectionColumns + ` FROM sections WHERE title = $1`
	return scanSection(r.pool.QueryRow(ctx, query, title))
}

func (r *Repository) UpdateSection(ctx context.Context, section *mapa.Section) error {
	query := `
		UPDATE sections SET title = $2, description = $3, updated_at = $4
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query,
		section.ID, section.Title, section.Description, section.UpdatedAt)
	if err != nil {
		return mapError("update section", err)
	}
	if tag.RowsAffected() == 0 {
		return mapa.ErrSectionNotFound
	}
	return nil
}

func (r *Repository) ListSections(ctx context.Context, limit, offset int) ([]*mapa.Section, error) {
	query := `
		SELECT ` + sectionColumns + ` FROM sections
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, mapError("list sections", err)
	}
	defer rows.Close()

	var sections []*mapa.Section
	for rows.Next() {
		section, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		sections = append(sections, section)
	}
	return sections, rows.Err()
}

func (r *Repository) DeleteSectionCascade(ctx context.Context, id uuid.UUID) error {
	return r.inTx(ctx, "delete section cascade", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM comments WHERE post_id IN (SELECT id FROM posts WHERE section_id = $1)`, id); err != nil {
			return mapError("delete section comments", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM posts WHERE section_id = $1`, id); err != nil {
			return mapError("delete section posts", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM sections WHERE id = $1`, id)
		if err != nil {
			return mapError("delete section", err)
		}
		if tag.RowsAffected() == 0 {
			return mapa.ErrSectionNotFound
		}
		return nil
	})
}

// Post operations

const postColumns = `id, slug, title, description, COALESCE(content, ''), section_id,
       author_id, comments_count, likes_count, created_at, updated_at`

func scanPost(row pgx.Row) (*mapa.Post, error) {
	var post mapa.Post
	err := row.Scan(
		&post.ID, &post.Slug, &post.Title, &post.Description, &post.Content,
		&post.SectionID, &post.AuthorID, &post.CommentsCount, &post.LikesCount,
		&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, mapa.ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

func (r *Repository) CreatePost(ctx context.Context, post *mapa.Post) error {
	return r.inTx(ctx, "create post", func(tx pgx.Tx) error {
		query := `
			INSERT INTO posts (
				id, slug, title, description, content, section_id, author_id,
				created_at, updated_at
			) VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9)`

		_, err := tx.Exec(ctx, query,
			post.ID, post.Slug, post.Title, post.Description, post.Content,
			post.SectionID, post.AuthorID, post.CreatedAt, post.UpdatedAt)
		if err != nil {
			return mapError("create post", err)
		}
		return incrementSectionPosts(ctx, tx, post.SectionID, 1)
	})
}

func (r *Repository) GetPost(ctx context.Context, id uuid.UUID) (*mapa.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	return scanPost(r.pool.QueryRow(ctx, query, id))
}

func (r *Repository) GetPostBySlug(ctx context.Context, slug string) (*mapa.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE slug = $1`
	return scanPost(r.pool.QueryRow(ctx, query, slug))
}

func (r *Repository) GetPostByTitle(ctx context.Context, title string) (*mapa.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE title = $1`
	return scanPost(r.pool.QueryRow(ctx, query, title))
}

func (r *Repository) UpdatePost(ctx context.Context, post *mapa.Post) error {
	query := `
		UPDATE posts SET
			title = $2, description = $3, content = NULLIF($4, ''), updated_at = $5
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query,
		post.ID, post.Title, post.Description, post.Content, post.UpdatedAt)
	if err != nil {
		return mapError("update post", err)
	}
	if tag.RowsAffected() == 0 {
		return mapa.ErrPostNotFound
	}
	return nil
}

func (r *Repository) ListPostsBySection(ctx context.Context, sectionID uuid.UUID, limit, offset int) ([]*mapa.Post, error) {
	query := `
		SELECT ` + postColumns + ` FROM posts
		WHERE section_id = $1
		ORDER BY created_at DESC, id DESC`
	args := []interface{}{sectionID}
	if limit > 0 {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}
	return r.queryPosts(ctx, query, args...)
}

func (r *Repository) ListPosts(ctx context.Context, limit, offset int) ([]*mapa.Post, error) {
	query := `
		SELECT ` + postColumns + ` FROM posts
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`
	return r.queryPosts(ctx, query, limit, offset)
}

func (r *Repository) queryPosts(ctx context.Context, query string, args ...interface{}) ([]*mapa.Post, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError("list posts", err)
	}
	defer rows.Close()

	var posts []*mapa.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (r *Repository) DeletePostCascade(ctx context.Context, id uuid.UUID) error {
	return r.inTx(ctx, "delete post cascade", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM comments WHERE post_id = $1`, id); err != nil {
			return mapError("delete post comments", err)
		}

		var sectionID uuid.UUID
		err := tx.QueryRow(ctx,
			`DELETE FROM posts WHERE id = $1 RETURNING section_id`, id).Scan(&sectionID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return mapa.ErrPostNotFound
			}
			return mapError("delete post", err)
		}
		return incrementSectionPosts(ctx, tx, sectionID, -1)
	})
}

// Comment operations

const commentColumns = `id, content, author_id, post_id, likes_count, created_at, updated_at`

func scanComment(row pgx.Row) (*mapa.Comment, error) {
	var comment mapa.Comment
	err := row.Scan(
		&comment.ID, &comment.Content, &comment.AuthorID, &comment.PostID,
		&comment.LikesCount, &comment.CreatedAt, &comment.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, mapa.ErrCommentNotFound
		}
		return nil, err
	}
	return &comment, nil
}

func (r *Repository) CreateComment(ctx context.Context, comment *mapa.Comment) error {
	return r.inTx(ctx, "create comment", func(tx pgx.Tx) error {
		query := `
			INSERT INTO comments (id, content, author_id, post_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)`

		_, err := tx.Exec(ctx, query,
			comment.ID, comment.Content, comment.AuthorID, comment.PostID,
			comment.CreatedAt, comment.UpdatedAt)
		if err != nil {
			return mapError("create comment", err)
		}
		return incrementPostComments(ctx, tx, comment.PostID, 1)
	})
}

func (r *Repository) GetComment(ctx context.Context, id uuid.UUID) (*mapa.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments WHERE id = $1`
	return scanComment(r.pool.QueryRow(ctx, query, id))
}

func (r *Repository) UpdateComment(ctx context.Context, comment *mapa.Comment) error {
	query := `UPDATE comments SET content = $2, updated_at = $3 WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, comment.ID, comment.Content, comment.UpdatedAt)
	if err != nil {
		return mapError("update comment", err)
	}
	if tag.RowsAffected() == 0 {
		return mapa.ErrCommentNotFound
	}
	return nil
}

func (r *Repository) ListCommentsByPost(ctx context.Context, postID uuid.UUID, limit, offset int) ([]*mapa.Comment, error) {
	query := `
		SELECT ` + commentColumns + ` FROM comments
		WHERE post_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, postID, limit, offset)
	if err != nil {
		return nil, mapError("list comments", err)
	}
	defer rows.Close()

	var comments []*mapa.Comment
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}

func (r *Repository) DeleteComment(ctx context.Context, id uuid.UUID) error {
	return r.inTx(ctx, "delete comment", func(tx pgx.Tx) error {
		var postID uuid.UUID
		err := tx.QueryRow(ctx,
			`DELETE FROM comments WHERE id = $1 RETURNING post_id`, id).Scan(&postID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return mapa.ErrCommentNotFound
			}
			return mapError("delete comment", err)
		}
		return incrementPostComments(ctx, tx, postID, -1)
	})
}

// Counter primitives. Single-statement deltas so concurrent writers
// cannot lose updates.

func (r *Repository) IncrementSectionPosts(ctx context.Context, id uuid.UUID, delta int) error {
	return incrementSectionPosts(ctx, r.pool, id, delta)
}

func (r *Repository) IncrementPostComments(ctx context.Context, id uuid.UUID, delta int) error {
	return incrementPostComments(ctx, r.pool, id, delta)
}

func incrementSectionPosts(ctx context.Context, db DBTX, id uuid.UUID, delta int) error {
	tag, err := db.Exec(ctx,
		`UPDATE sections SET posts_count = posts_count + $2, updated_at = NOW() WHERE id = $1`,
		id, delta)
	if err != nil {
		return mapError("increment section posts", err)
	}
	if tag.RowsAffected() == 0 {
		return mapa.ErrSectionNotFound
	}
	return nil
}

func incrementPostComments(ctx context.Context, db DBTX, id uuid.UUID, delta int) error {
	tag, err := db.Exec(ctx,
		`UPDATE posts SET comments_count = comments_count + $2, updated_at = NOW() WHERE id = $1`,
		id, delta)
	if err != nil {
		return mapError("increment post comments", err)
	}
	if tag.RowsAffected() == 0 {
		return mapa.ErrPostNotFound
	}
	return nil
}
