// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"inkpost/internal/models"
	"inkpost/internal/observability"
)

// PostsFileName is the name of the post document inside the data directory.
const PostsFileName = "posts.json"

// ErrCorruptDocument is returned when the post document exists but cannot be decoded.
var ErrCorruptDocument = errors.New("post document is corrupt")

// PostRepository defines the interface for post data operations.
// The collection is read and written as a whole, newest first.
type PostRepository interface {
	LoadAll(ctx context.Context) ([]models.Post, error)
	SaveAll(ctx context.Context, posts []models.Post) error
	Ping(ctx context.Context) error
}

// filePostRepository implements PostRepository on a single JSON document.
type filePostRepository struct {
	path    string
	lenient bool
	logger  *observability.StoreLogger
}

// NewFilePostRepository creates a post repository stored in dataDir/posts.json.
// The directory and an empty document are created when missing. With lenient
// set, a malformed document reads as an empty collection instead of failing.
func NewFilePostRepository(dataDir string, lenient bool) (PostRepository, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(dataDir, PostsFileName)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
			return nil, fmt.Errorf("create post document: %w", err)
		}
	}
	return &filePostRepository{
		path:    path,
		lenient: lenient,
		logger:  observability.NewStoreLogger(PostsFileName),
	}, nil
}

func (r *filePostRepository) LoadAll(ctx context.Context) ([]models.Post, error) {
	ctx, span := observability.StartStoreSpan(ctx, "load", PostsFileName)
	defer span.End()
	defer observability.TrackStore("load")()

	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.Post{}, nil
	}
	if err != nil {
		r.logger.LogError(ctx, err, "read")
		span.RecordError(err)
		return nil, fmt.Errorf("read post document: %w", err)
	}

	var posts []models.Post
	if err := json.Unmarshal(data, &posts); err != nil {
		if r.lenient {
			r.logger.LogWarn(ctx, "corrupt post document read as empty", err)
			return []models.Post{}, nil
		}
		r.logger.LogError(ctx, err, "decode")
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	if posts == nil {
		posts = []models.Post{}
	}

	r.logger.LogRead(ctx, map[string]any{"count": len(posts)})
	return posts, nil
}

// SaveAll replaces the document. The new content is written to a temporary
// file in the same directory and renamed over the old one.
func (r *filePostRepository) SaveAll(ctx context.Context, posts []models.Post) error {
	ctx, span := observability.StartStoreSpan(ctx, "save", PostsFileName)
	defer span.End()
	defer observability.TrackStore("save")()

	if posts == nil {
		posts = []models.Post{}
	}
	data, err := json.MarshalIndent(posts, "", "  ")
	if err != nil {
		return fmt.Errorf("encode post document: %w", err)
	}

	if err := writeFileAtomic(r.path, data); err != nil {
		r.logger.LogError(ctx, err, "write")
		span.RecordError(err)
		return fmt.Errorf("write post document: %w", err)
	}

	r.logger.LogWrite(ctx, map[string]any{"count": len(posts)})
	return nil
}

// Ping reports whether the document can be read and decoded under the
// configured read policy.
func (r *filePostRepository) Ping(ctx context.Context) error {
	_, err := r.LoadAll(ctx)
	return err
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
