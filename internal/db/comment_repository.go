package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrCommentNotFound = errors.New("comment not found")

type Comment struct {
	ID        uuid.UUID
	BlogID    uuid.UUID
	UserID    uuid.UUID
	Body      string
	CreatedAt time.Time
}

// OwnerID satisfies the ownership contract used by authorization checks.
func (c *Comment) OwnerID() uuid.UUID {
	return c.UserID
}

type CommentRepository struct {
	db *DB
}

func NewCommentRepository(db *DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) Create(ctx context.Context, comment *Comment) error {
	query := `
		INSERT INTO comments (id, blog_id, user_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		comment.ID, comment.BlogID, comment.UserID, comment.Body, comment.CreatedAt,
	)
	return err
}

func (r *CommentRepository) GetByID(ctx context.Context, id uuid.UUID) (*Comment, error) {
	query := `
		SELECT id, blog_id, user_id, body, created_at
		FROM comments
		WHERE id = $1
	`

	comment := &Comment{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&comment.ID, &comment.BlogID, &comment.UserID, &comment.Body, &comment.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}

	return comment, nil
}

func (r *CommentRepository) ListByBlog(ctx context.Context, blogID uuid.UUID, limit, offset int) ([]*Comment, error) {
	query := `
		SELECT id, blog_id, user_id, body, created_at
		FROM comments
		WHERE blog_id = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, blogID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []*Comment
	for rows.Next() {
		comment := &Comment{}
		err := rows.Scan(
			&comment.ID, &comment.BlogID, &comment.UserID, &comment.Body, &comment.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}

	return comments, rows.Err()
}

func (r *CommentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return err
	}

	return requireRow(result, ErrCommentNotFound)
}
