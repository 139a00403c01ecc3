package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrBlogNotFound = errors.New("blog not found")
var ErrSlugExists = errors.New("slug already exists")

// BlogStatus is the publication state of a post.
type BlogStatus string

const (
	StatusDraft     BlogStatus = "draft"
	StatusPublished BlogStatus = "published"
)

func (s BlogStatus) Valid() bool {
	return s == StatusDraft || s == StatusPublished
}

type Blog struct {
	ID        uuid.UUID
	AuthorID  uuid.UUID
	Title     string
	Slug      string
	Content   string
	CoverKey  string
	Status    BlogStatus
	ViewCount int64
	LikeCount int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OwnerID satisfies the ownership contract used by authorization checks.
func (b *Blog) OwnerID() uuid.UUID {
	return b.AuthorID
}

type BlogRepository struct {
	db *DB
}

func NewBlogRepository(db *DB) *BlogRepository {
	return &BlogRepository{db: db}
}

const blogColumns = `id, author_id, title, slug, content, COALESCE(cover_key, ''), status,
	view_count, like_count, created_at, updated_at`

func (r *BlogRepository) Create(ctx context.Context, blog *Blog) error {
	query := `
		INSERT INTO blogs (id, author_id, title, slug, content, cover_key, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		blog.ID, blog.AuthorID, blog.Title, blog.Slug, blog.Content, blog.CoverKey,
		blog.Status, blog.CreatedAt, blog.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlugExists
		}
		return err
	}

	return nil
}

func (r *BlogRepository) GetByID(ctx context.Context, id uuid.UUID) (*Blog, error) {
	query := `SELECT ` + blogColumns + ` FROM blogs WHERE id = $1`
	return r.scanBlog(r.db.QueryRowContext(ctx, query, id))
}

func (r *BlogRepository) GetBySlug(ctx context.Context, slug string) (*Blog, error) {
	query := `SELECT ` + blogColumns + ` FROM blogs WHERE slug = $1`
	return r.scanBlog(r.db.QueryRowContext(ctx, query, slug))
}

// List returns published posts, plus drafts owned by viewerID when non-nil.
func (r *BlogRepository) List(ctx context.Context, viewerID *uuid.UUID, limit, offset int) ([]*Blog, error) {
	query := `
		SELECT ` + blogColumns + `
		FROM blogs
		WHERE status = 'published' OR author_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	// The anonymous viewer matches nothing.
	viewer := uuid.Nil
	if viewerID != nil {
		viewer = *viewerID
	}

	rows, err := r.db.QueryContext(ctx, query, viewer, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blogs []*Blog
	for rows.Next() {
		blog := &Blog{}
		err := rows.Scan(
			&blog.ID, &blog.AuthorID, &blog.Title, &blog.Slug, &blog.Content,
			&blog.CoverKey, &blog.Status, &blog.ViewCount, &blog.LikeCount,
			&blog.CreatedAt, &blog.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		blogs = append(blogs, blog)
	}

	return blogs, rows.Err()
}

func (r *BlogRepository) Update(ctx context.Context, blog *Blog) error {
	query := `
		UPDATE blogs
		SET title = $2, slug = $3, content = $4, cover_key = NULLIF($5, ''), status = $6, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		blog.ID, blog.Title, blog.Slug, blog.Content, blog.CoverKey, blog.Status,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlugExists
		}
		return err
	}

	return requireRow(result, ErrBlogNotFound)
}

func (r *BlogRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM blogs WHERE id = $1`, id)
	if err != nil {
		return err
	}

	return requireRow(result, ErrBlogNotFound)
}

// IncrementViews bumps the view counter in a single statement so concurrent
// reads never lose updates.
func (r *BlogRepository) IncrementViews(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE blogs SET view_count = view_count + 1 WHERE id = $1`, id)
	return err
}

// IncrementLikes bumps the like counter atomically.
func (r *BlogRepository) IncrementLikes(ctx context.Context, id uuid.UUID) (int64, error) {
	var likes int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE blogs SET like_count = like_count + 1 WHERE id = $1 RETURNING like_count`, id,
	).Scan(&likes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrBlogNotFound
		}
		return 0, err
	}
	return likes, nil
}

func (r *BlogRepository) scanBlog(row *sql.Row) (*Blog, error) {
	blog := &Blog{}
	err := row.Scan(
		&blog.ID, &blog.AuthorID, &blog.Title, &blog.Slug, &blog.Content,
		&blog.CoverKey, &blog.Status, &blog.ViewCount, &blog.LikeCount,
		&blog.CreatedAt, &blog.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBlogNotFound
		}
		return nil, err
	}

	return blog, nil
}
