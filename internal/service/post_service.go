package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"inkpost/internal/cache"
	"inkpost/internal/models"
	"inkpost/internal/observability"
	"inkpost/internal/repository"
	"inkpost/internal/slug"

	"github.com/google/uuid"
)

// PostService implements post reads and writes on top of the whole-document
// repository. Writes are serialized within the process. A read that fills
// the cache holds the read lock from load to cache store, so it can never
// put back a document a concurrent write has already invalidated.
type PostService struct {
	repo  repository.PostRepository
	cache *cache.PostCache

	mu    sync.RWMutex
	now   func() time.Time
	newID func() string
}

type CreatePostInput struct {
	Title   string
	Content string
	Slug    string
	Status  string
}

// UpdatePostInput carries a replacement title and optional field changes.
// Nil fields keep their stored value.
type UpdatePostInput struct {
	ID      string
	Title   string
	Content *string
	Slug    *string
	Status  *string
}

func NewPostService(repo repository.PostRepository, postCache *cache.PostCache) *PostService {
	return &PostService{
		repo:  repo,
		cache: postCache,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (s *PostService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// resolveSlug normalizes an explicit slug and falls back to the title when
// the result is empty.
func resolveSlug(explicit, title string) string {
	if v := slug.Slugify(explicit); v != "" {
		return v
	}
	return slug.Slugify(title)
}

func (s *PostService) ListPosts(ctx context.Context) ([]models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var posts []models.Post
	err := s.cache.Aside(ctx, cache.PostsListKey, &posts, func() error {
		loaded, err := s.repo.LoadAll(ctx)
		if err != nil {
			return fmt.Errorf("load posts: %w", err)
		}
		posts = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return posts, nil
}

func (s *PostService) GetPost(ctx context.Context, id string) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var post models.Post
	err := s.cache.Aside(ctx, cache.PostKey(id), &post, func() error {
		posts, err := s.repo.LoadAll(ctx)
		if err != nil {
			return fmt.Errorf("load posts: %w", err)
		}
		i := indexOf(posts, id)
		if i < 0 {
			return models.NewNotFoundError()
		}
		post = posts[i]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// FindBySlug resolves a public post address using models.IndexBySlug.
func (s *PostService) FindBySlug(ctx context.Context, value string) (*models.Post, error) {
	if value == "" {
		return nil, models.NewNotFoundError()
	}
	posts, err := s.ListPosts(ctx)
	if err != nil {
		return nil, err
	}

	i := models.IndexBySlug(posts, value)
	if i < 0 {
		return nil, models.NewNotFoundError()
	}
	p := posts[i]
	return &p, nil
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "CreatePost")
	defer span.End()

	if in.Title == "" {
		return nil, models.NewValidationError("title required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := s.repo.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load posts: %w", err)
	}

	status := in.Status
	if status == "" {
		status = models.PostStatusDraft
	}
	ts := s.timestamp()
	post := models.Post{
		ID:        s.newID(),
		Title:     in.Title,
		Content:   in.Content,
		Slug:      resolveSlug(in.Slug, in.Title),
		Status:    status,
		CreatedAt: ts,
		UpdatedAt: ts,
	}

	posts = slices.Insert(posts, 0, post)
	if err := s.repo.SaveAll(ctx, posts); err != nil {
		return nil, fmt.Errorf("save posts: %w", err)
	}
	s.cache.InvalidatePost(ctx, post.ID)

	return &post, nil
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "UpdatePost")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := s.repo.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load posts: %w", err)
	}
	i := indexOf(posts, in.ID)
	if i < 0 {
		return nil, models.NewNotFoundError()
	}
	if in.Title == "" {
		return nil, models.NewValidationError("title required")
	}

	post := posts[i]
	post.Title = in.Title
	if in.Content != nil {
		post.Content = *in.Content
	}
	switch {
	case in.Slug != nil:
		post.Slug = resolveSlug(*in.Slug, post.Title)
	case post.Slug == "":
		post.Slug = slug.Slugify(post.Title)
	}
	if in.Status != nil && *in.Status != "" {
		post.Status = *in.Status
	}
	if post.Status == "" {
		post.Status = models.PostStatusDraft
	}

	post.UpdatedAt = s.timestamp()
	if post.UpdatedAt.Before(post.CreatedAt) {
		post.UpdatedAt = post.CreatedAt
	}

	posts[i] = post
	if err := s.repo.SaveAll(ctx, posts); err != nil {
		return nil, fmt.Errorf("save posts: %w", err)
	}
	s.cache.InvalidatePost(ctx, post.ID)

	return &post, nil
}

// DeletePost removes the post and returns its id. An unknown id leaves the
// document untouched.
func (s *PostService) DeletePost(ctx context.Context, id string) (string, error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "DeletePost")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := s.repo.LoadAll(ctx)
	if err != nil {
		return "", fmt.Errorf("load posts: %w", err)
	}
	i := indexOf(posts, id)
	if i < 0 {
		return "", models.NewNotFoundError()
	}

	removed := posts[i]
	posts = slices.Delete(posts, i, i+1)
	if err := s.repo.SaveAll(ctx, posts); err != nil {
		return "", fmt.Errorf("save posts: %w", err)
	}
	s.cache.InvalidatePost(ctx, removed.ID)

	return removed.ID, nil
}

func indexOf(posts []models.Post, id string) int {
	return slices.IndexFunc(posts, func(p models.Post) bool { return p.ID == id })
}
