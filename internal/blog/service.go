// Package blog implements post authoring and reading: creation with
// slug generation, draft visibility rules, ownership-checked edits,
// and atomic view and like counters.
package blog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openblog/backend/internal/auth"
	"github.com/openblog/backend/internal/cache"
	"github.com/openblog/backend/internal/db"
	apperrors "github.com/openblog/backend/internal/errors"
	"github.com/openblog/backend/internal/events"
	"github.com/openblog/backend/internal/logger"
)

// BlogStore is the persistence surface the service needs.
type BlogStore interface {
	Create(ctx context.Context, blog *db.Blog) error
	GetByID(ctx context.Context, id uuid.UUID) (*db.Blog, error)
	GetBySlug(ctx context.Context, slug string) (*db.Blog, error)
	List(ctx context.Context, viewerID *uuid.UUID, limit, offset int) ([]*db.Blog, error)
	Update(ctx context.Context, blog *db.Blog) error
	Delete(ctx context.Context, id uuid.UUID) error
	IncrementViews(ctx context.Context, id uuid.UUID) error
	IncrementLikes(ctx context.Context, id uuid.UUID) (int64, error)
}

// BlogInfo is the wire representation of a post.
type BlogInfo struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Content   string    `json:"content,omitempty"`
	CoverKey  string    `json:"coverKey,omitempty"`
	Status    string    `json:"status"`
	ViewCount int64     `json:"viewCount"`
	LikeCount int64     `json:"likeCount"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func NewBlogInfo(blog *db.Blog) *BlogInfo {
	return &BlogInfo{
		ID:        blog.ID.String(),
		AuthorID:  blog.AuthorID.String(),
		Title:     blog.Title,
		Slug:      blog.Slug,
		Content:   blog.Content,
		CoverKey:  blog.CoverKey,
		Status:    string(blog.Status),
		ViewCount: blog.ViewCount,
		LikeCount: blog.LikeCount,
		CreatedAt: blog.CreatedAt,
		UpdatedAt: blog.UpdatedAt,
	}
}

// CreateInput carries the fields a caller may set when creating a post.
type CreateInput struct {
	Title   string
	Content string
	Status  db.BlogStatus
}

// UpdateInput fields are pointers so absent fields stay untouched.
type UpdateInput struct {
	Title    *string
	Content  *string
	CoverKey *string
	Status   *db.BlogStatus
}

const (
	listCacheKey = "blogs:public:recent"
	listCacheTTL = 30 * time.Second

	slugRetries = 3
)

type Service struct {
	blogs BlogStore
	cache *cache.Cache
	hub   *events.Hub
	log   *logger.Logger
}

// NewService wires the blog service. cache and hub may be nil.
func NewService(blogs BlogStore, c *cache.Cache, hub *events.Hub, log *logger.Logger) *Service {
	return &Service{blogs: blogs, cache: c, hub: hub, log: log}
}

// Create inserts a new post owned by the author. The slug comes from
// the title; on collision a short random suffix is appended.
func (s *Service) Create(ctx context.Context, author *db.User, input CreateInput) (*BlogInfo, error) {
	status := input.Status
	if status == "" {
		status = db.StatusDraft
	}
	if !status.Valid() {
		return nil, apperrors.ValidationError(fmt.Sprintf("invalid status %q", input.Status))
	}

	now := time.Now().UTC()
	blog := &db.Blog{
		ID:        uuid.New(),
		AuthorID:  author.ID,
		Title:     input.Title,
		Slug:      Slugify(input.Title),
		Content:   input.Content,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}

	base := blog.Slug
	var err error
	for attempt := 0; attempt <= slugRetries; attempt++ {
		if attempt > 0 {
			blog.Slug = fmt.Sprintf("%s-%s", base, uuid.NewString()[:8])
		}
		err = s.blogs.Create(ctx, blog)
		if !errors.Is(err, db.ErrSlugExists) {
			break
		}
	}
	if err != nil {
		if errors.Is(err, db.ErrSlugExists) {
			return nil, apperrors.Conflict("could not generate a unique slug")
		}
		return nil, apperrors.DatabaseError("failed to create blog").WithCause(err)
	}

	s.invalidateListing(ctx)
	if blog.Status == db.StatusPublished {
		s.publishEvent(blog, author)
	}

	return NewBlogInfo(blog), nil
}

// List returns recent posts visible to the viewer: published ones for
// everyone, plus the viewer's own drafts. The anonymous listing is
// served from cache when possible.
func (s *Service) List(ctx context.Context, viewer *db.User, limit, offset int) ([]*BlogInfo, error) {
	limit = clampLimit(limit)

	cacheable := viewer == nil && offset == 0 && limit == defaultListLimit
	if cacheable {
		if raw, ok := s.cache.Get(ctx, listCacheKey); ok {
			var infos []*BlogInfo
			if err := json.Unmarshal([]byte(raw), &infos); err == nil {
				return infos, nil
			}
		}
	}

	var viewerID *uuid.UUID
	if viewer != nil {
		viewerID = &viewer.ID
	}

	blogs, err := s.blogs.List(ctx, viewerID, limit, offset)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to list blogs").WithCause(err)
	}

	infos := make([]*BlogInfo, 0, len(blogs))
	for _, blog := range blogs {
		infos = append(infos, NewBlogInfo(blog))
	}

	if cacheable {
		if raw, err := json.Marshal(infos); err == nil {
			s.cache.Set(ctx, listCacheKey, string(raw), listCacheTTL)
		}
	}

	return infos, nil
}

// Resolve loads a post by slug without touching counters. Drafts are
// visible only to their author and admins; everyone else sees
// not-found.
func (s *Service) Resolve(ctx context.Context, viewer *db.User, slug string) (*db.Blog, error) {
	blog, err := s.blogs.GetBySlug(ctx, slug)
	if err != nil {
		return nil, mapBlogError(err)
	}
	if blog.Status != db.StatusPublished {
		if viewer == nil || auth.AuthorizeOwner(viewer, blog) != nil {
			return nil, apperrors.BlogNotFound()
		}
	}
	return blog, nil
}

// GetBySlug returns one post for display. Reads of published posts
// bump the view counter.
func (s *Service) GetBySlug(ctx context.Context, viewer *db.User, slug string) (*BlogInfo, error) {
	blog, err := s.Resolve(ctx, viewer, slug)
	if err != nil {
		return nil, err
	}

	if blog.Status == db.StatusPublished {
		if err := s.blogs.IncrementViews(ctx, blog.ID); err != nil {
			s.log.Warn(ctx, "view count update failed", map[string]any{"blog_id": blog.ID.String(), "error": err.Error()})
		} else {
			blog.ViewCount++
		}
	}

	return NewBlogInfo(blog), nil
}

// Update edits a post. Missing posts report not-found before ownership
// is considered.
func (s *Service) Update(ctx context.Context, actor *db.User, id uuid.UUID, input UpdateInput) (*BlogInfo, error) {
	blog, err := s.blogs.GetByID(ctx, id)
	if err != nil {
		return nil, mapBlogError(err)
	}
	if err := auth.AuthorizeOwner(actor, blog); err != nil {
		return nil, err
	}

	wasPublished := blog.Status == db.StatusPublished

	if input.Title != nil && *input.Title != blog.Title {
		blog.Title = *input.Title
		blog.Slug = Slugify(blog.Title)
	}
	if input.Content != nil {
		blog.Content = *input.Content
	}
	if input.CoverKey != nil {
		blog.CoverKey = *input.CoverKey
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, apperrors.ValidationError(fmt.Sprintf("invalid status %q", *input.Status))
		}
		blog.Status = *input.Status
	}

	if err := s.blogs.Update(ctx, blog); err != nil {
		if errors.Is(err, db.ErrSlugExists) {
			blog.Slug = fmt.Sprintf("%s-%s", blog.Slug, uuid.NewString()[:8])
			err = s.blogs.Update(ctx, blog)
		}
		if err != nil {
			return nil, mapBlogError(err)
		}
	}

	s.invalidateListing(ctx)
	if !wasPublished && blog.Status == db.StatusPublished {
		s.publishEvent(blog, actor)
	}

	return NewBlogInfo(blog), nil
}

// Delete removes a post after the ownership check.
func (s *Service) Delete(ctx context.Context, actor *db.User, id uuid.UUID) error {
	blog, err := s.blogs.GetByID(ctx, id)
	if err != nil {
		return mapBlogError(err)
	}
	if err := auth.AuthorizeOwner(actor, blog); err != nil {
		return err
	}

	if err := s.blogs.Delete(ctx, id); err != nil {
		return mapBlogError(err)
	}

	s.invalidateListing(ctx)
	return nil
}

// Like bumps the like counter and returns the new total.
func (s *Service) Like(ctx context.Context, actor *db.User, id uuid.UUID) (int64, error) {
	blog, err := s.blogs.GetByID(ctx, id)
	if err != nil {
		return 0, mapBlogError(err)
	}
	if blog.Status != db.StatusPublished && auth.AuthorizeOwner(actor, blog) != nil {
		return 0, apperrors.BlogNotFound()
	}

	likes, err := s.blogs.IncrementLikes(ctx, id)
	if err != nil {
		return 0, mapBlogError(err)
	}

	s.hub.Notify(blog.AuthorID, events.TypeBlogLiked, map[string]any{
		"blogId":    blog.ID.String(),
		"slug":      blog.Slug,
		"likeCount": likes,
	})

	return likes, nil
}

// GetForComment loads a post for commenting. Drafts cannot be
// commented on by anyone but their author.
func (s *Service) GetForComment(ctx context.Context, viewer *db.User, id uuid.UUID) (*db.Blog, error) {
	blog, err := s.blogs.GetByID(ctx, id)
	if err != nil {
		return nil, mapBlogError(err)
	}
	if blog.Status != db.StatusPublished && auth.AuthorizeOwner(viewer, blog) != nil {
		return nil, apperrors.BlogNotFound()
	}
	return blog, nil
}

func (s *Service) publishEvent(blog *db.Blog, author *db.User) {
	s.hub.Publish(events.TypeBlogPublished, map[string]any{
		"blogId": blog.ID.String(),
		"slug":   blog.Slug,
		"title":  blog.Title,
		"author": author.Name,
	})
}

func (s *Service) invalidateListing(ctx context.Context) {
	s.cache.Invalidate(ctx, listCacheKey)
}

const defaultListLimit = 20
const maxListLimit = 100

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func mapBlogError(err error) error {
	if errors.Is(err, db.ErrBlogNotFound) {
		return apperrors.BlogNotFound()
	}
	if errors.Is(err, db.ErrSlugExists) {
		return apperrors.Conflict("slug already in use")
	}
	return apperrors.DatabaseError("blog operation failed").WithCause(err)
}
