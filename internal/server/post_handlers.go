package server

import (
	"inkpost/internal/service"

	"github.com/gofiber/fiber/v2"
)

// PostRequest is the body accepted by create and update. Absent optional
// fields keep their stored value on update.
type PostRequest struct {
	Title   string  `json:"title"`
	Content *string `json:"content"`
	Slug    *string `json:"slug"`
	Status  *string `json:"status"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// GetPosts handles GET /api/posts
func (s *Server) GetPosts(c *fiber.Ctx) error {
	posts, err := s.postService.ListPosts(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	post, err := s.postService.GetPost(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req PostRequest
	if err := decodeJSON(c, &req); err != nil {
		return respondError(c, err)
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		Title:   req.Title,
		Content: deref(req.Content),
		Slug:    deref(req.Slug),
		Status:  deref(req.Status),
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(post)
}

// UpdatePost handles PUT /api/posts/:id
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	var req PostRequest
	if err := decodeJSON(c, &req); err != nil {
		return respondError(c, err)
	}

	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		ID:      c.Params("id"),
		Title:   req.Title,
		Content: req.Content,
		Slug:    req.Slug,
		Status:  req.Status,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.postService.DeletePost(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(DeleteResponse{OK: true, ID: id})
}
