package blog

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/openblog/backend/internal/db"
	apperrors "github.com/openblog/backend/internal/errors"
	"github.com/openblog/backend/internal/logger"
)

// fakeBlogStore is an in-memory BlogStore for service tests.
type fakeBlogStore struct {
	mu    sync.Mutex
	blogs map[uuid.UUID]*db.Blog
}

func newFakeBlogStore() *fakeBlogStore {
	return &fakeBlogStore{blogs: make(map[uuid.UUID]*db.Blog)}
}

func (s *fakeBlogStore) Create(ctx context.Context, blog *db.Blog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.blogs {
		if b.Slug == blog.Slug {
			return db.ErrSlugExists
		}
	}
	clone := *blog
	s.blogs[blog.ID] = &clone
	return nil
}

func (s *fakeBlogStore) GetByID(ctx context.Context, id uuid.UUID) (*db.Blog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blog, ok := s.blogs[id]
	if !ok {
		return nil, db.ErrBlogNotFound
	}
	clone := *blog
	return &clone, nil
}

func (s *fakeBlogStore) GetBySlug(ctx context.Context, slug string) (*db.Blog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, blog := range s.blogs {
		if blog.Slug == slug {
			clone := *blog
			return &clone, nil
		}
	}
	return nil, db.ErrBlogNotFound
}

func (s *fakeBlogStore) List(ctx context.Context, viewerID *uuid.UUID, limit, offset int) ([]*db.Blog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	viewer := uuid.Nil
	if viewerID != nil {
		viewer = *viewerID
	}
	var out []*db.Blog
	for _, blog := range s.blogs {
		if blog.Status == db.StatusPublished || blog.AuthorID == viewer {
			clone := *blog
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *fakeBlogStore) Update(ctx context.Context, blog *db.Blog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blogs[blog.ID]; !ok {
		return db.ErrBlogNotFound
	}
	for id, b := range s.blogs {
		if id != blog.ID && b.Slug == blog.Slug {
			return db.ErrSlugExists
		}
	}
	clone := *blog
	s.blogs[blog.ID] = &clone
	return nil
}

func (s *fakeBlogStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blogs[id]; !ok {
		return db.ErrBlogNotFound
	}
	delete(s.blogs, id)
	return nil
}

func (s *fakeBlogStore) IncrementViews(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	blog, ok := s.blogs[id]
	if !ok {
		return db.ErrBlogNotFound
	}
	blog.ViewCount++
	return nil
}

func (s *fakeBlogStore) IncrementLikes(ctx context.Context, id uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blog, ok := s.blogs[id]
	if !ok {
		return 0, db.ErrBlogNotFound
	}
	blog.LikeCount++
	return blog.LikeCount, nil
}

func newTestService(t *testing.T) (*Service, *fakeBlogStore) {
	t.Helper()
	store := newFakeBlogStore()
	log := logger.New(io.Discard, logger.LevelError, "test")
	return NewService(store, nil, nil, log), store
}

func testUser(role db.Role) *db.User {
	return &db.User{
		ID:       uuid.New(),
		Name:     "Test User",
		Email:    "user@example.com",
		Role:     role,
		IsActive: true,
	}
}

func createPost(t *testing.T, svc *Service, author *db.User, title string, status db.BlogStatus) *BlogInfo {
	t.Helper()
	info, err := svc.Create(t.Context(), author, CreateInput{
		Title:   title,
		Content: "body",
		Status:  status,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return info
}

func errorCode(t *testing.T, err error) string {
	t.Helper()
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}
	return appErr.Code
}

func TestCreateGeneratesSlug(t *testing.T) {
	svc, _ := newTestService(t)
	author := testUser(db.RoleReader)

	info := createPost(t, svc, author, "Café Crème à Paris", db.StatusPublished)
	if info.Slug != "cafe-creme-a-paris" {
		t.Errorf("slug = %q, want cafe-creme-a-paris", info.Slug)
	}
	if info.Status != string(db.StatusPublished) {
		t.Errorf("status = %q, want published", info.Status)
	}
}

func TestCreateSlugCollisionGetsSuffix(t *testing.T) {
	svc, _ := newTestService(t)
	author := testUser(db.RoleReader)

	first := createPost(t, svc, author, "Same Title", db.StatusPublished)
	second := createPost(t, svc, author, "Same Title", db.StatusPublished)

	if first.Slug == second.Slug {
		t.Fatalf("expected distinct slugs, both %q", first.Slug)
	}
	if got, want := second.Slug[:len("same-title-")], "same-title-"; got != want {
		t.Errorf("second slug = %q, want prefix %q", second.Slug, want)
	}
}

func TestDraftVisibility(t *testing.T) {
	svc, _ := newTestService(t)
	author := testUser(db.RoleReader)
	admin := testUser(db.RoleAdmin)
	stranger := testUser(db.RoleReader)

	draft := createPost(t, svc, author, "Work in Progress", db.StatusDraft)

	tests := []struct {
		name     string
		viewer   *db.User
		wantCode string
	}{
		{"anonymous", nil, "BLOG_NOT_FOUND"},
		{"stranger", stranger, "BLOG_NOT_FOUND"},
		{"author", author, ""},
		{"admin", admin, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.GetBySlug(t.Context(), tt.viewer, draft.Slug)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("GetBySlug: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got none")
			}
			if code := errorCode(t, err); code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestViewCountOnlyForPublished(t *testing.T) {
	svc, store := newTestService(t)
	author := testUser(db.RoleReader)

	published := createPost(t, svc, author, "Published Post", db.StatusPublished)
	draft := createPost(t, svc, author, "Draft Post", db.StatusDraft)

	if _, err := svc.GetBySlug(t.Context(), nil, published.Slug); err != nil {
		t.Fatalf("GetBySlug published: %v", err)
	}
	if _, err := svc.GetBySlug(t.Context(), author, draft.Slug); err != nil {
		t.Fatalf("GetBySlug draft: %v", err)
	}

	pub, _ := store.GetBySlug(t.Context(), published.Slug)
	if pub.ViewCount != 1 {
		t.Errorf("published view count = %d, want 1", pub.ViewCount)
	}
	dr, _ := store.GetBySlug(t.Context(), draft.Slug)
	if dr.ViewCount != 0 {
		t.Errorf("draft view count = %d, want 0", dr.ViewCount)
	}
}

func TestUpdateNotFoundBeforeOwnership(t *testing.T) {
	svc, _ := newTestService(t)
	stranger := testUser(db.RoleReader)

	// A missing post reports not-found even to a caller who would
	// fail the ownership check anyway.
	_, err := svc.Update(t.Context(), stranger, uuid.New(), UpdateInput{})
	if code := errorCode(t, err); code != "BLOG_NOT_FOUND" {
		t.Errorf("code = %q, want BLOG_NOT_FOUND", code)
	}
}

func TestUpdateOwnership(t *testing.T) {
	svc, _ := newTestService(t)
	author := testUser(db.RoleReader)
	admin := testUser(db.RoleAdmin)
	stranger := testUser(db.RoleReader)

	post := createPost(t, svc, author, "Original", db.StatusPublished)
	id := uuid.MustParse(post.ID)
	newTitle := "Edited"

	if _, err := svc.Update(t.Context(), stranger, id, UpdateInput{Title: &newTitle}); err == nil {
		t.Fatal("expected stranger update to fail")
	} else if code := errorCode(t, err); code != "FORBIDDEN" {
		t.Errorf("stranger code = %q, want FORBIDDEN", code)
	}

	info, err := svc.Update(t.Context(), author, id, UpdateInput{Title: &newTitle})
	if err != nil {
		t.Fatalf("author update: %v", err)
	}
	if info.Title != "Edited" || info.Slug != "edited" {
		t.Errorf("title/slug = %q/%q, want Edited/edited", info.Title, info.Slug)
	}

	adminTitle := "Moderated"
	if _, err := svc.Update(t.Context(), admin, id, UpdateInput{Title: &adminTitle}); err != nil {
		t.Fatalf("admin update: %v", err)
	}
}

func TestDeleteOwnership(t *testing.T) {
	svc, store := newTestService(t)
	author := testUser(db.RoleReader)
	stranger := testUser(db.RoleReader)

	post := createPost(t, svc, author, "Doomed", db.StatusPublished)
	id := uuid.MustParse(post.ID)

	if err := svc.Delete(t.Context(), stranger, id); err == nil {
		t.Fatal("expected stranger delete to fail")
	}
	if err := svc.Delete(t.Context(), author, id); err != nil {
		t.Fatalf("author delete: %v", err)
	}
	if _, err := store.GetByID(t.Context(), id); !errors.Is(err, db.ErrBlogNotFound) {
		t.Errorf("expected post deleted, got %v", err)
	}
}

func TestLike(t *testing.T) {
	svc, _ := newTestService(t)
	author := testUser(db.RoleReader)
	reader := testUser(db.RoleReader)

	post := createPost(t, svc, author, "Likeable", db.StatusPublished)
	id := uuid.MustParse(post.ID)

	for want := int64(1); want <= 3; want++ {
		likes, err := svc.Like(t.Context(), reader, id)
		if err != nil {
			t.Fatalf("Like: %v", err)
		}
		if likes != want {
			t.Errorf("likes = %d, want %d", likes, want)
		}
	}

	draft := createPost(t, svc, author, "Hidden Draft", db.StatusDraft)
	_, err := svc.Like(t.Context(), reader, uuid.MustParse(draft.ID))
	if code := errorCode(t, err); code != "BLOG_NOT_FOUND" {
		t.Errorf("draft like code = %q, want BLOG_NOT_FOUND", code)
	}
}

func TestListVisibility(t *testing.T) {
	svc, _ := newTestService(t)
	author := testUser(db.RoleReader)
	stranger := testUser(db.RoleReader)

	createPost(t, svc, author, "Public One", db.StatusPublished)
	createPost(t, svc, author, "Secret Draft", db.StatusDraft)

	anon, err := svc.List(t.Context(), nil, 0, 0)
	if err != nil {
		t.Fatalf("List anonymous: %v", err)
	}
	if len(anon) != 1 {
		t.Errorf("anonymous sees %d posts, want 1", len(anon))
	}

	own, err := svc.List(t.Context(), author, 0, 0)
	if err != nil {
		t.Fatalf("List author: %v", err)
	}
	if len(own) != 2 {
		t.Errorf("author sees %d posts, want 2", len(own))
	}

	other, err := svc.List(t.Context(), stranger, 0, 0)
	if err != nil {
		t.Fatalf("List stranger: %v", err)
	}
	if len(other) != 1 {
		t.Errorf("stranger sees %d posts, want 1", len(other))
	}
}

func TestPublishTransitionKeepsTimestamps(t *testing.T) {
	svc, store := newTestService(t)
	author := testUser(db.RoleReader)

	post := createPost(t, svc, author, "Draft First", db.StatusDraft)
	id := uuid.MustParse(post.ID)

	status := db.StatusPublished
	info, err := svc.Update(t.Context(), author, id, UpdateInput{Status: &status})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if info.Status != string(db.StatusPublished) {
		t.Errorf("status = %q, want published", info.Status)
	}

	stored, _ := store.GetByID(t.Context(), id)
	if stored.CreatedAt.After(time.Now()) {
		t.Error("created_at in the future")
	}
}
