package server

import (
	"longform/internal/middleware"
	"longform/internal/models"
	"longform/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SetCommentStatus moves a comment between pending, approved and rejected (admin)
func (s *Server) SetCommentStatus(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}
	var req struct {
		Status models.CommentStatus `json:"status"`
	}
	if err := s.parseBody(c, &req); err != nil {
		return nil
	}

	comment, err := s.commentService.SetCommentStatus(c.UserContext(), commentID, req.Status)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(comment)
}

// AdminDeleteComment deletes any comment with the full cascade (admin)
func (s *Server) AdminDeleteComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}

	err = s.commentService.DeleteComment(c.UserContext(), service.DeleteCommentInput{
		CommentID: commentID,
		Actor:     middleware.CurrentUser(c),
		AsAdmin:   true,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ReconcilePost recounts a post's counters from fact rows and reports the drift (admin)
func (s *Server) ReconcilePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	report, err := s.reconcileSvc.ReconcilePost(c.UserContext(), postID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(report)
}
