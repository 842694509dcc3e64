package server

import (
	"longform/internal/models"
	"longform/internal/service"

	"github.com/gofiber/fiber/v2"
)

type reactionRequest struct {
	Type  models.ReactionType `json:"type"`
	Name  string              `json:"name"`
	Email string              `json:"email"`
}

// ReactToPost toggles the caller's reaction on a post
func (s *Server) ReactToPost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	return s.react(c, models.TargetPost, postID)
}

// ReactToComment toggles the caller's reaction on a comment
func (s *Server) ReactToComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}
	return s.react(c, models.TargetComment, commentID)
}

func (s *Server) react(c *fiber.Ctx, kind models.TargetKind, targetID uint) error {
	var req reactionRequest
	if err := s.parseBody(c, &req); err != nil {
		return nil
	}
	name, email := requesterIdentity(c, req.Name, req.Email)

	result, err := s.reactionService.React(c.UserContext(), service.ReactInput{
		TargetKind: kind,
		TargetID:   targetID,
		UserEmail:  email,
		UserName:   name,
		Type:       req.Type,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(result)
}

// GetPostReactionState reports whether ?email= has reacted to a post
func (s *Server) GetPostReactionState(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	return s.reactionState(c, models.TargetPost, postID)
}

// GetCommentReactionState reports whether ?email= has reacted to a comment
func (s *Server) GetCommentReactionState(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}
	return s.reactionState(c, models.TargetComment, commentID)
}

func (s *Server) reactionState(c *fiber.Ctx, kind models.TargetKind, targetID uint) error {
	_, email := requesterIdentity(c, "", c.Query("email"))

	state, err := s.reactionService.GetReactionState(c.UserContext(), kind, targetID, email)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(state)
}
