// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"context"
	"sync"

	"inkpost/internal/models"
)

// PostRepoStub is an in-memory post repository implementation for tests.
type PostRepoStub struct {
	mu    sync.Mutex
	posts []models.Post
	saves int

	// LoadErr, when set, is returned by LoadAll and Ping.
	LoadErr error
	// SaveErr, when set, is returned by SaveAll.
	SaveErr error
}

// NewPostRepoStub creates an in-memory post repository seeded with posts.
func NewPostRepoStub(posts ...models.Post) *PostRepoStub {
	return &PostRepoStub{posts: append([]models.Post{}, posts...)}
}

// LoadAll returns a copy of the stored posts.
func (s *PostRepoStub) LoadAll(_ context.Context) ([]models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	return append([]models.Post{}, s.posts...), nil
}

// SaveAll replaces the stored posts.
func (s *PostRepoStub) SaveAll(_ context.Context, posts []models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.posts = append([]models.Post{}, posts...)
	s.saves++
	return nil
}

// Ping reports LoadErr.
func (s *PostRepoStub) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.LoadErr
}

// Posts returns a snapshot of the stored posts.
func (s *PostRepoStub) Posts() []models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Post{}, s.posts...)
}

// Saves returns how many times SaveAll succeeded.
func (s *PostRepoStub) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
