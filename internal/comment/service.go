// Package comment handles reader comments on published posts.
package comment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/openblog/backend/internal/auth"
	"github.com/openblog/backend/internal/db"
	apperrors "github.com/openblog/backend/internal/errors"
	"github.com/openblog/backend/internal/events"
)

// CommentStore is the persistence surface the service needs.
type CommentStore interface {
	Create(ctx context.Context, comment *db.Comment) error
	GetByID(ctx context.Context, id uuid.UUID) (*db.Comment, error)
	ListByBlog(ctx context.Context, blogID uuid.UUID, limit, offset int) ([]*db.Comment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// BlogResolver checks the target post exists and is visible to the
// commenter before a comment is attached to it.
type BlogResolver interface {
	GetForComment(ctx context.Context, viewer *db.User, id uuid.UUID) (*db.Blog, error)
}

type CommentInfo struct {
	ID        string    `json:"id"`
	BlogID    string    `json:"blogId"`
	UserID    string    `json:"userId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewCommentInfo(comment *db.Comment) *CommentInfo {
	return &CommentInfo{
		ID:        comment.ID.String(),
		BlogID:    comment.BlogID.String(),
		UserID:    comment.UserID.String(),
		Body:      comment.Body,
		CreatedAt: comment.CreatedAt,
	}
}

type Service struct {
	comments CommentStore
	blogs    BlogResolver
	hub      *events.Hub
}

// NewService wires the comment service. hub may be nil.
func NewService(comments CommentStore, blogs BlogResolver, hub *events.Hub) *Service {
	return &Service{comments: comments, blogs: blogs, hub: hub}
}

// Create attaches a comment to a post the author can see. The post's
// author gets a targeted notification unless they commented themselves.
func (s *Service) Create(ctx context.Context, actor *db.User, blogID uuid.UUID, body string) (*CommentInfo, error) {
	blog, err := s.blogs.GetForComment(ctx, actor, blogID)
	if err != nil {
		return nil, err
	}

	comment := &db.Comment{
		ID:        uuid.New(),
		BlogID:    blog.ID,
		UserID:    actor.ID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.DatabaseError("failed to create comment").WithCause(err)
	}

	if blog.AuthorID != actor.ID {
		s.hub.Notify(blog.AuthorID, events.TypeCommentCreated, map[string]any{
			"blogId":    blog.ID.String(),
			"slug":      blog.Slug,
			"commentId": comment.ID.String(),
			"author":    actor.Name,
		})
	}

	return NewCommentInfo(comment), nil
}

// ListByBlog returns a post's comments, oldest first.
func (s *Service) ListByBlog(ctx context.Context, viewer *db.User, blogID uuid.UUID, limit, offset int) ([]*CommentInfo, error) {
	if _, err := s.blogs.GetForComment(ctx, viewer, blogID); err != nil {
		return nil, err
	}

	limit = clampLimit(limit)
	comments, err := s.comments.ListByBlog(ctx, blogID, limit, offset)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to list comments").WithCause(err)
	}

	infos := make([]*CommentInfo, 0, len(comments))
	for _, comment := range comments {
		infos = append(infos, NewCommentInfo(comment))
	}
	return infos, nil
}

// Delete removes a comment. Missing comments report not-found before
// the ownership check runs.
func (s *Service) Delete(ctx context.Context, actor *db.User, id uuid.UUID) error {
	comment, err := s.comments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrCommentNotFound) {
			return apperrors.CommentNotFound()
		}
		return apperrors.DatabaseError("failed to load comment").WithCause(err)
	}
	if err := auth.AuthorizeOwner(actor, comment); err != nil {
		return err
	}

	if err := s.comments.Delete(ctx, id); err != nil {
		if errors.Is(err, db.ErrCommentNotFound) {
			return apperrors.CommentNotFound()
		}
		return apperrors.DatabaseError("failed to delete comment").WithCause(err)
	}
	return nil
}

const defaultListLimit = 50
const maxListLimit = 200

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
