package server

import (
	"fmt"

	"inkpost/internal/models"
	"inkpost/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UploadImage handles POST /api/upload. The file is read from the "image"
// form field and stored as-is.
func (s *Server) UploadImage(c *fiber.Ctx) error {
	fh, err := c.FormFile("image")
	if err != nil {
		return respondError(c, models.NewValidationError("no_file"))
	}
	if fh.Size > service.MaxUploadBytes {
		return respondError(c, models.NewPayloadTooLargeError("file_too_large"))
	}

	f, err := fh.Open()
	if err != nil {
		return respondError(c, models.NewInternalError(fmt.Errorf("open upload: %w", err)))
	}
	defer f.Close()

	url, err := s.uploadService.Save(c.UserContext(), service.UploadInput{
		Filename: fh.Filename,
		Size:     fh.Size,
		Body:     f,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(UploadResponse{OK: true, URL: url})
}
