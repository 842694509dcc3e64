package server

import (
	"longform/internal/middleware"
	"longform/internal/models"
	"longform/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetPost returns a post with its placeholders rendered into display_body (public)
func (s *Server) GetPost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.UserContext(), postID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(post)
}

// CreatePost creates a post owned by the caller (protected)
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req service.CreatePostInput
	if err := s.parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.CreatePost(c.UserContext(), middleware.CurrentUser(c), req)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// UpdatePost edits title, body or media refs (owner or admin)
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.UpdatePostInput
	if err := s.parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.UpdatePost(c.UserContext(), postID, middleware.CurrentUser(c), req)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(post)
}

// DeletePost removes a post with all of its comments and reactions (owner or admin)
func (s *Server) DeletePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.DeletePost(c.UserContext(), postID, middleware.CurrentUser(c)); err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AttachImage adds an image ref to a post and returns it with its token
func (s *Server) AttachImage(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req models.ImageRef
	if err := s.parseBody(c, &req); err != nil {
		return nil
	}

	ref, err := s.postService.AttachImage(c.UserContext(), postID, middleware.CurrentUser(c), req)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(ref)
}

// UpdateImage edits the mutable fields of an image ref
func (s *Server) UpdateImage(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.ImageUpdate
	if err := s.parseBody(c, &req); err != nil {
		return nil
	}

	ref, err := s.postService.UpdateImage(c.UserContext(), postID, middleware.CurrentUser(c), c.Params("token"), req)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(ref)
}

// RemoveImage strips an image's placeholders from the body and drops the ref
func (s *Server) RemoveImage(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.RemoveImage(c.UserContext(), postID, middleware.CurrentUser(c), c.Params("token"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(post)
}

// AttachVideo adds a video ref to a post and returns it with its token
func (s *Server) AttachVideo(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req models.VideoRef
	if err := s.parseBody(c, &req); err != nil {
		return nil
	}

	ref, err := s.postService.AttachVideo(c.UserContext(), postID, middleware.CurrentUser(c), req)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(ref)
}

// UpdateVideo edits the mutable fields of a video ref
func (s *Server) UpdateVideo(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.VideoUpdate
	if err := s.parseBody(c, &req); err != nil {
		return nil
	}

	ref, err := s.postService.UpdateVideo(c.UserContext(), postID, middleware.CurrentUser(c), c.Params("token"), req)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(ref)
}

// RemoveVideo strips a video's placeholders from the body and drops the ref
func (s *Server) RemoveVideo(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.RemoveVideo(c.UserContext(), postID, middleware.CurrentUser(c), c.Params("token"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(post)
}
