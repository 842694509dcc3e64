package service

import (
	"context"
	"fmt"
	"strings"

	"longform/internal/cache"
	"longform/internal/middleware"
	"longform/internal/models"
	"longform/internal/observability"
	"longform/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// maxDeleteAttempts bounds how often a cascade re-reads a comment whose status changed
// between the read and the conditional delete.
const maxDeleteAttempts = 3

// CommentService is the comment thread manager: moderation states, one level of replies,
// and the cascade that keeps reply, comment and reaction counters consistent on delete.
type CommentService struct {
	comments  repository.CommentRepository
	posts     repository.PostRepository
	reactions repository.ReactionRepository
	repairer  CounterRepairer
	notifier  Notifier
	cache     *cache.Store
}

type SubmitCommentInput struct {
	PostID   uint
	ParentID *uint
	Name     string
	Email    string
	Content  string
	// AsAuthor takes the identity from Actor, marks the comment as an author comment and
	// requires Actor to own the post or be an admin.
	AsAuthor bool
	Actor    *models.CurrentUser
}

// DeleteCommentInput selects one of the three delete entry points. All of them run the
// same cascade.
type DeleteCommentInput struct {
	CommentID uint
	// RequesterEmail must match the comment's address for an owner delete.
	RequesterEmail string
	Actor          *models.CurrentUser
	AsAdmin        bool
	// AsPostAuthor lets the owner of PostID delete any comment on it.
	AsPostAuthor bool
	PostID       uint
}

func NewCommentService(
	comments repository.CommentRepository,
	posts repository.PostRepository,
	reactions repository.ReactionRepository,
	repairer CounterRepairer,
	notifier Notifier,
	store *cache.Store,
) *CommentService {
	return &CommentService{
		comments:  comments,
		posts:     posts,
		reactions: reactions,
		repairer:  repairer,
		notifier:  notifier,
		cache:     store,
	}
}

// SubmitComment stores a top-level comment or a reply. A top-level comment always moves the
// post's commentsCount; a reply moves only its parent's repliesCount.
func (s *CommentService) SubmitComment(ctx context.Context, in SubmitCommentInput) (comment *models.Comment, err error) {
	ctx, span := observability.StartSpan(ctx, "CommentService.SubmitComment",
		attribute.Int64("post.id", int64(in.PostID)),
		attribute.Bool("comment.reply", in.ParentID != nil),
		attribute.Bool("comment.author", in.AsAuthor),
	)
	defer func() { observability.EndSpan(span, err) }()

	content, err := validateCommentContent(in.Content)
	if err != nil {
		return nil, err
	}

	name, email := in.Name, in.Email
	if in.AsAuthor {
		if in.Actor == nil || in.Actor.Email == "" {
			return nil, models.NewUnauthorizedError("Authentication required")
		}
		name, email = in.Actor.Name, in.Actor.Email
		if strings.TrimSpace(name) == "" {
			name = email
		}
	}
	name, email, err = validateIdentity(name, email)
	if err != nil {
		return nil, err
	}

	post, err := s.posts.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if in.AsAuthor && !canManagePost(post, in.Actor) {
		return nil, models.NewForbiddenError("Only the post author can post author comments")
	}

	var parent *models.Comment
	if in.ParentID != nil {
		parent, err = s.loadReplyParent(ctx, post.ID, *in.ParentID)
		if err != nil {
			return nil, err
		}
	}

	comment = &models.Comment{
		PostID:          post.ID,
		ParentCommentID: in.ParentID,
		User:            models.CommentUser{Name: name, Email: email},
		Content:         content,
		Status:          models.CommentApproved,
		IsAuthorComment: in.AsAuthor,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}

	// The parent or post may have been deleted after it was loaded.
	undo := func(ctx context.Context) error {
		return s.deleteThread(ctx, comment)
	}

	event := "submitted"
	if parent != nil {
		event = "replied"
		err = applyCounter(ctx, s.repairer, counterStep{
			kind: models.TargetComment,
			id:   parent.ID,
			adjust: func(ctx context.Context) error {
				return s.comments.AdjustRepliesCount(ctx, parent.ID, 1)
			},
			undo: undo,
		})
	} else {
		err = applyCounter(ctx, s.repairer, counterStep{
			kind: models.TargetPost,
			id:   post.ID,
			adjust: func(ctx context.Context) error {
				return s.posts.AdjustCommentsCount(ctx, post.ID, 1)
			},
			undo: undo,
		})
		invalidatePost(ctx, s.cache, post.ID)
	}
	if err != nil {
		return nil, err
	}

	observability.CommentEventsTotal.WithLabelValues(event).Inc()
	middleware.Logger.InfoContext(ctx, "comment submitted",
		"post_id", post.ID, "comment_id", comment.ID, "reply", parent != nil, "author", in.AsAuthor)

	s.notifySubmitted(ctx, post, parent, comment)
	return comment, nil
}

func (s *CommentService) loadReplyParent(ctx context.Context, postID, parentID uint) (*models.Comment, error) {
	parent, err := s.comments.GetByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent.PostID != postID {
		return nil, models.NewValidationError("Parent comment belongs to a different post")
	}
	if !parent.IsTopLevel() {
		return nil, models.NewValidationError("Replies can only be one level deep")
	}
	if !parent.IsApproved() {
		return nil, models.NewValidationError("Cannot reply to a comment that is not approved")
	}
	return parent, nil
}

func (s *CommentService) notifySubmitted(ctx context.Context, post *models.Post, parent, comment *models.Comment) {
	if s.notifier == nil {
		return
	}

	var msg models.Notification
	switch {
	case parent == nil && comment.IsAuthorComment:
		return
	case parent == nil:
		msg = models.Notification{
			Kind:    models.NotifyNewComment,
			To:      post.AuthorEmail,
			Subject: fmt.Sprintf("New comment on %q", post.Title),
		}
	case comment.IsAuthorComment:
		msg = models.Notification{
			Kind:    models.NotifyAuthorReply,
			To:      parent.User.Email,
			Subject: fmt.Sprintf("The author replied to your comment on %q", post.Title),
		}
	default:
		msg = models.Notification{
			Kind:    models.NotifyNewReply,
			To:      parent.User.Email,
			Subject: fmt.Sprintf("New reply to your comment on %q", post.Title),
		}
	}
	if msg.To == "" || models.SameEmail(msg.To, comment.User.Email) {
		return
	}

	msg.Body = fmt.Sprintf("%s wrote:\n\n%s", comment.User.Name, comment.Content)
	msg.PostID = post.ID
	msg.CommentID = comment.ID
	s.notifier.Notify(ctx, msg)
}

// SetCommentStatus moves a comment between moderation states. For a top-level comment,
// entering approved increments the post's commentsCount and leaving approved decrements it.
func (s *CommentService) SetCommentStatus(
	ctx context.Context,
	commentID uint,
	status models.CommentStatus,
) (comment *models.Comment, err error) {
	ctx, span := observability.StartSpan(ctx, "CommentService.SetCommentStatus",
		attribute.Int64("comment.id", int64(commentID)),
		attribute.String("comment.status", string(status)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if !status.Valid() {
		return nil, models.NewValidationError("Status must be pending, approved or rejected")
	}

	comment, err = s.comments.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	from := comment.Status
	if from == status {
		return comment, nil
	}

	changed, err := s.comments.UpdateStatus(ctx, comment.ID, from, status)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, models.NewConflictError("comment status changed concurrently, retry", nil)
	}
	comment.Status = status

	if comment.IsTopLevel() {
		delta := 0
		switch {
		case status == models.CommentApproved:
			delta = 1
		case from == models.CommentApproved:
			delta = -1
		}
		if delta != 0 {
			if err := applyCounter(ctx, s.repairer, counterStep{
				kind: models.TargetPost,
				id:   comment.PostID,
				adjust: func(ctx context.Context) error {
					return s.posts.AdjustCommentsCount(ctx, comment.PostID, delta)
				},
			}); err != nil {
				return nil, err
			}
			invalidatePost(ctx, s.cache, comment.PostID)
		}
	}

	observability.CommentEventsTotal.WithLabelValues("moderated").Inc()
	middleware.Logger.InfoContext(ctx, "comment moderated",
		"comment_id", comment.ID, "from", from, "to", status)
	return comment, nil
}

// DeleteComment authorizes the requested entry point and removes the comment, its replies
// and every reaction on any of them.
func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) (err error) {
	ctx, span := observability.StartSpan(ctx, "CommentService.DeleteComment",
		attribute.Int64("comment.id", int64(in.CommentID)),
		attribute.Bool("delete.admin", in.AsAdmin),
		attribute.Bool("delete.post_author", in.AsPostAuthor),
	)
	defer func() { observability.EndSpan(span, err) }()

	comment, err := s.comments.GetByID(ctx, in.CommentID)
	if err != nil {
		return err
	}

	switch {
	case in.AsAdmin:
		if !in.Actor.IsAdmin() {
			return models.NewForbiddenError("Admin role required")
		}
	case in.AsPostAuthor:
		if in.PostID != 0 && comment.PostID != in.PostID {
			return models.NewNotFoundError("Comment", in.CommentID)
		}
		post, err := s.posts.GetByID(ctx, comment.PostID)
		if err != nil {
			return err
		}
		if !canManagePost(post, in.Actor) {
			return models.NewForbiddenError("Only the post author can delete comments on this post")
		}
	default:
		requester := models.NormalizeEmail(in.RequesterEmail)
		if requester == "" {
			return models.NewValidationError("Email is required")
		}
		if !models.SameEmail(comment.User.Email, requester) {
			return models.NewForbiddenError("You can only delete your own comments")
		}
	}

	if err := s.deleteThread(ctx, comment); err != nil {
		return err
	}
	invalidatePost(ctx, s.cache, comment.PostID)

	observability.CommentEventsTotal.WithLabelValues("deleted").Inc()
	middleware.Logger.InfoContext(ctx, "comment deleted",
		"comment_id", comment.ID, "post_id", comment.PostID, "admin", in.AsAdmin)
	return nil
}

// deleteThread removes a comment leaves-first: each reply's thread, then the comment's
// reactions, then the comment row, then its counter contributions. An interruption leaves
// a comment missing some replies, never a reply without its parent.
//
// The row delete is conditional on the status that was read; when moderation moved the
// comment in between, the comment is reloaded so the post counter follows the status that
// was actually deleted.
func (s *CommentService) deleteThread(ctx context.Context, comment *models.Comment) error {
	if err := s.deleteReplies(ctx, comment.ID); err != nil {
		return err
	}
	if err := deleteTargetReactions(ctx, s.reactions, models.TargetComment, comment.ID); err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		removed, err := s.comments.Delete(ctx, comment.ID, comment.Status)
		if err != nil {
			return err
		}
		if removed {
			break
		}
		fresh, err := s.comments.GetByID(ctx, comment.ID)
		if models.ErrorCode(err) == models.CodeNotFound {
			// Deleted by a concurrent request, which owns the counter updates.
			return nil
		}
		if err != nil {
			return err
		}
		if attempt == maxDeleteAttempts {
			return models.NewConflictError("comment changed concurrently, retry", nil)
		}
		comment = fresh
	}
	observability.CascadeDeletedRows.WithLabelValues("comments").Inc()

	// Replies or reactions that raced past their parent checks.
	if err := s.deleteReplies(ctx, comment.ID); err != nil {
		return err
	}
	if err := deleteTargetReactions(ctx, s.reactions, models.TargetComment, comment.ID); err != nil {
		return err
	}

	switch {
	case !comment.IsTopLevel():
		parentID := *comment.ParentCommentID
		return applyCounter(ctx, s.repairer, counterStep{
			kind: models.TargetComment,
			id:   parentID,
			adjust: func(ctx context.Context) error {
				return s.comments.AdjustRepliesCount(ctx, parentID, -1)
			},
		})
	case comment.IsApproved():
		return applyCounter(ctx, s.repairer, counterStep{
			kind: models.TargetPost,
			id:   comment.PostID,
			adjust: func(ctx context.Context) error {
				return s.posts.AdjustCommentsCount(ctx, comment.PostID, -1)
			},
		})
	}
	return nil
}

func (s *CommentService) deleteReplies(ctx context.Context, parentID uint) error {
	replies, err := s.comments.ListReplies(ctx, parentID)
	if err != nil {
		return err
	}
	for _, reply := range replies {
		if err := s.deleteThread(ctx, reply); err != nil {
			return fmt.Errorf("delete reply %d: %w", reply.ID, err)
		}
	}
	return nil
}

// deletePostThreads cascades every comment of a post that is about to be deleted.
func (s *CommentService) deletePostThreads(ctx context.Context, postID uint) error {
	comments, err := s.comments.ListByPost(ctx, postID)
	if err != nil {
		return err
	}
	for _, comment := range comments {
		if !comment.IsTopLevel() {
			continue
		}
		if err := s.deleteThread(ctx, comment); err != nil {
			return fmt.Errorf("delete comment %d: %w", comment.ID, err)
		}
	}

	// Rows whose parent vanished outside the cascade.
	leftovers, err := s.comments.ListByPost(ctx, postID)
	if err != nil {
		return err
	}
	for _, comment := range leftovers {
		if err := s.deleteThread(ctx, comment); err != nil {
			return fmt.Errorf("delete comment %d: %w", comment.ID, err)
		}
	}
	return nil
}

// ListComments returns a post's comments oldest-first. Public callers see approved comments
// only; includeAll requires the post owner or an admin.
func (s *CommentService) ListComments(
	ctx context.Context,
	postID uint,
	viewer *models.CurrentUser,
	includeAll bool,
) ([]*models.Comment, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	statuses := []models.CommentStatus{models.CommentApproved}
	if includeAll {
		if !canManagePost(post, viewer) {
			return nil, models.NewForbiddenError("Only the post author or an admin can list all comments")
		}
		statuses = nil
	}

	comments, err := s.comments.ListByPost(ctx, postID, statuses...)
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []*models.Comment{}
	}
	return comments, nil
}
