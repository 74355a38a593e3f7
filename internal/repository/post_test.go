package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"inkpost/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePosts() []models.Post {
	now := time.Date(2025, 3, 1, 12, 0, 0, 123_000_000, time.UTC)
	return []models.Post{
		{ID: "b", Title: "Second", Content: "two", Slug: "second", Status: "draft", CreatedAt: now, UpdatedAt: now},
		{ID: "a", Title: "First", Content: "one", Slug: "first", Status: "published", CreatedAt: now.Add(-time.Hour), UpdatedAt: now},
	}
}

func TestNewFilePostRepository_CreatesEmptyDocument(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	repo, err := NewFilePostRepository(dir, false)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, PostsFileName))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	posts, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.NotNil(t, posts)
}

func TestFilePostRepository_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewFilePostRepository(dir, false)
	require.NoError(t, err)
	ctx := context.Background()

	want := samplePosts()
	require.NoError(t, repo.SaveAll(ctx, want))

	got, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, want[0].ID, got[0].ID)
	assert.Equal(t, want[1].Title, got[1].Title)
	assert.True(t, want[0].CreatedAt.Equal(got[0].CreatedAt))

	raw, err := os.ReadFile(filepath.Join(dir, PostsFileName))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"createdAt": "2025-03-01T12:00:00.123Z"`)
	assert.Contains(t, string(raw), "\n  {")
}

func TestFilePostRepository_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewFilePostRepository(dir, false)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.SaveAll(context.Background(), samplePosts()))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, PostsFileName, entries[0].Name())
}

func TestFilePostRepository_SaveNilWritesEmptyArray(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewFilePostRepository(dir, false)
	require.NoError(t, err)

	require.NoError(t, repo.SaveAll(context.Background(), nil))
	data, err := os.ReadFile(filepath.Join(dir, PostsFileName))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestFilePostRepository_CorruptDocument(t *testing.T) {
	tests := []struct {
		name    string
		lenient bool
		content string
		wantErr bool
	}{
		{name: "strict malformed", content: "{not json", wantErr: true},
		{name: "strict wrong shape", content: `{"id":"x"}`, wantErr: true},
		{name: "lenient malformed", lenient: true, content: "{not json"},
		{name: "strict null document", content: "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, PostsFileName), []byte(tt.content), 0o644))

			repo, err := NewFilePostRepository(dir, tt.lenient)
			require.NoError(t, err)

			posts, err := repo.LoadAll(context.Background())
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrCorruptDocument)
				assert.ErrorIs(t, repo.Ping(context.Background()), ErrCorruptDocument)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, posts)
			assert.NoError(t, repo.Ping(context.Background()))
		})
	}
}

func TestFilePostRepository_MissingDocumentReadsEmpty(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewFilePostRepository(dir, false)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, PostsFileName)))

	posts, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, posts)
}
