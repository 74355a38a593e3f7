package server

import (
	"inkpost/internal/middleware"
	"inkpost/internal/models"

	"github.com/gofiber/fiber/v2"
)

// OKResponse is the body of endpoints that only acknowledge success.
type OKResponse struct {
	OK bool `json:"ok"`
}

// AuthzResponse reports which gate rule admitted the request.
type AuthzResponse struct {
	OK     bool   `json:"ok"`
	Method string `json:"method"`
}

type DeleteResponse struct {
	OK bool   `json:"ok"`
	ID string `json:"id"`
}

type UploadResponse struct {
	OK  bool   `json:"ok"`
	URL string `json:"url"`
}

// respondError writes err with the status its AppError code maps to.
// Anything that is not an AppError is logged and reported as a 500.
func respondError(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	if status == fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request error",
			"error", err.Error(),
			"method", c.Method(),
			"path", c.Path(),
		)
	}
	return models.RespondWithError(c, status, err)
}

// decodeJSON parses the request body into dest. An empty body decodes as
// an empty object.
func decodeJSON(c *fiber.Ctx, dest any) error {
	body := c.Body()
	if len(body) == 0 {
		return nil
	}
	if err := c.App().Config().JSONDecoder(body, dest); err != nil {
		return models.NewValidationError("invalid_body")
	}
	return nil
}
