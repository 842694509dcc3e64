package server

import (
	"longform/internal/middleware"
	"longform/internal/service"

	"github.com/gofiber/fiber/v2"
)

type commentRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Content string `json:"content"`
}

// GetComments lists a post's approved comments; ?all=true returns every status to the post
// author or an admin.
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	comments, err := s.commentService.ListComments(c.UserContext(), postID,
		middleware.CurrentUser(c), c.QueryBool("all", false))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(comments)
}

// CreateComment submits a public top-level comment
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	return s.submitPublicComment(c, postID, nil)
}

// CreateReply submits a public reply to an approved top-level comment
func (s *Server) CreateReply(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	parentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}
	return s.submitPublicComment(c, postID, &parentID)
}

func (s *Server) submitPublicComment(c *fiber.Ctx, postID uint, parentID *uint) error {
	var req commentRequest
	if err := s.parseBody(c, &req); err != nil {
		return nil
	}
	name, email := requesterIdentity(c, req.Name, req.Email)

	comment, err := s.commentService.SubmitComment(c.UserContext(), service.SubmitCommentInput{
		PostID:   postID,
		ParentID: parentID,
		Name:     name,
		Email:    email,
		Content:  req.Content,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// CreateAuthorComment posts a top-level comment or reply as the post's author
func (s *Server) CreateAuthorComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Content         string `json:"content"`
		ParentCommentID *uint  `json:"parent_comment_id"`
	}
	if err := s.parseBody(c, &req); err != nil {
		return nil
	}

	comment, err := s.commentService.SubmitComment(c.UserContext(), service.SubmitCommentInput{
		PostID:   postID,
		ParentID: req.ParentCommentID,
		Content:  req.Content,
		AsAuthor: true,
		Actor:    middleware.CurrentUser(c),
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// DeleteAuthorComment lets the post's author delete any comment on the post
func (s *Server) DeleteAuthorComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}

	err = s.commentService.DeleteComment(c.UserContext(), service.DeleteCommentInput{
		CommentID:    commentID,
		Actor:        middleware.CurrentUser(c),
		AsPostAuthor: true,
		PostID:       postID,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteOwnComment deletes a comment whose e-mail matches ?email= or the bearer identity
func (s *Server) DeleteOwnComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}
	_, email := requesterIdentity(c, "", c.Query("email"))

	err = s.commentService.DeleteComment(c.UserContext(), service.DeleteCommentInput{
		CommentID:      commentID,
		RequesterEmail: email,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
