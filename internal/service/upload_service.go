package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"inkpost/internal/content"
	"inkpost/internal/models"
	"inkpost/internal/observability"

	"github.com/google/uuid"
)

const (
	// MaxUploadBytes is the largest accepted upload.
	MaxUploadBytes = 10 * 1024 * 1024
	// DefaultUploadExt is used when the client file name has no extension.
	DefaultUploadExt = ".bin"
)

// UploadService stores uploaded files verbatim under a generated name.
type UploadService struct {
	dir      string
	maxBytes int64
	newID    func() string
}

type UploadInput struct {
	Filename string
	Size     int64
	Body     io.Reader
}

func NewUploadService(dir string) (*UploadService, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &UploadService{
		dir:      dir,
		maxBytes: MaxUploadBytes,
		newID:    uuid.NewString,
	}, nil
}

// Dir is the directory uploads are written to.
func (s *UploadService) Dir() string {
	return s.dir
}

// UploadExt returns the extension kept from a client file name, including
// the dot, or DefaultUploadExt when there is none.
func UploadExt(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	ext := filepath.Ext(base)
	if ext == "" || ext == base || ext == "." {
		return DefaultUploadExt
	}
	return ext
}

// Save writes the upload and returns its public path under /uploads/.
func (s *UploadService) Save(ctx context.Context, in UploadInput) (string, error) {
	if in.Body == nil {
		return "", models.NewValidationError("no_file")
	}
	if in.Size > s.maxBytes {
		return "", models.NewPayloadTooLargeError("file_too_large")
	}

	name := s.newID() + UploadExt(in.Filename)
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", models.NewInternalError(fmt.Errorf("create upload: %w", err))
	}

	n, err := io.Copy(f, io.LimitReader(in.Body, s.maxBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n > s.maxBytes {
		err = errTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		if errors.Is(err, errTooLarge) {
			return "", models.NewPayloadTooLargeError("file_too_large")
		}
		return "", models.NewInternalError(fmt.Errorf("write upload: %w", err))
	}

	observability.UploadBytes.Observe(float64(n))
	observability.GlobalLogger.InfoContext(ctx, "upload stored",
		"name", name,
		"bytes", n,
	)
	return content.UploadsPrefix + name, nil
}

var errTooLarge = errors.New("upload exceeds size limit")
