// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"inkpost/internal/slug"
)

// Post statuses. Any other non-empty string is accepted as-is.
const (
	PostStatusDraft     = "draft"
	PostStatusPublished = "published"
)

// Post represents a blog post as stored in the post document.
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Slug      string    `json:"slug"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CanonicalSlug is the slug used when linking to the post.
func (p *Post) CanonicalSlug() string {
	return slug.Canonical(p.Title, p.Slug, p.ID)
}

// IndexBySlug returns the index of the post addressed by value, or -1. A
// canonical slug match wins over a stored slug match, which wins over an id
// match.
func IndexBySlug(posts []Post, value string) int {
	if value == "" {
		return -1
	}
	matchers := []func(p *Post) bool{
		func(p *Post) bool { return p.CanonicalSlug() == value },
		func(p *Post) bool { return p.Slug == value },
		func(p *Post) bool { return p.ID == value },
	}
	for _, match := range matchers {
		for i := range posts {
			if match(&posts[i]) {
				return i
			}
		}
	}
	return -1
}
