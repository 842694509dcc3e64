package service

import (
	"context"
	"fmt"

	"longform/internal/cache"
	"longform/internal/middleware"
	"longform/internal/models"
	"longform/internal/observability"
	"longform/internal/repository"
)

// CounterDrift is one stored counter that disagreed with its fact rows.
type CounterDrift struct {
	TargetKind models.TargetKind `json:"target_kind"`
	TargetID   uint              `json:"target_id"`
	Counter    string            `json:"counter"`
	Stored     int               `json:"stored"`
	Actual     int               `json:"actual"`
}

// ReconcileReport lists the counters of one post thread that were overwritten.
type ReconcileReport struct {
	PostID           uint           `json:"post_id"`
	CommentsExamined int            `json:"comments_examined"`
	Drifts           []CounterDrift `json:"drifts"`
}

// ReconcileService recounts denormalized counters from fact rows and overwrites them.
type ReconcileService struct {
	posts     repository.PostRepository
	comments  repository.CommentRepository
	reactions repository.ReactionRepository
	cache     *cache.Store
}

func NewReconcileService(
	posts repository.PostRepository,
	comments repository.CommentRepository,
	reactions repository.ReactionRepository,
	store *cache.Store,
) *ReconcileService {
	return &ReconcileService{
		posts:     posts,
		comments:  comments,
		reactions: reactions,
		cache:     store,
	}
}

// ReconcilePost recounts the post and every comment on it.
func (s *ReconcileService) ReconcilePost(ctx context.Context, postID uint) (*ReconcileReport, error) {
	defer observability.TrackQuery("reconcile", "posts")()

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{PostID: postID, Drifts: []CounterDrift{}}

	drifts, err := s.reconcilePostRow(ctx, post)
	if err != nil {
		return nil, err
	}
	if len(drifts) > 0 {
		observability.CounterRepairs.WithLabelValues(string(models.TargetPost), "reconcile").Inc()
	}
	report.Drifts = append(report.Drifts, drifts...)

	comments, err := s.comments.ListByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	report.CommentsExamined = len(comments)

	for _, comment := range comments {
		drifts, err := s.reconcileCommentRow(ctx, comment)
		if err != nil {
			return nil, err
		}
		if len(drifts) > 0 {
			observability.CounterRepairs.WithLabelValues(string(models.TargetComment), "reconcile").Inc()
		}
		report.Drifts = append(report.Drifts, drifts...)
	}

	if len(report.Drifts) > 0 {
		invalidatePost(ctx, s.cache, postID)
		middleware.Logger.InfoContext(ctx, "reconciled counters",
			"post_id", postID, "drifts", len(report.Drifts))
	}
	return report, nil
}

// ReconcileAll runs ReconcilePost over every post. Posts deleted mid-run are skipped.
func (s *ReconcileService) ReconcileAll(ctx context.Context) ([]*ReconcileReport, error) {
	ids, err := s.posts.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]*ReconcileReport, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		report, err := s.ReconcilePost(ctx, id)
		if models.ErrorCode(err) == models.CodeNotFound {
			continue
		}
		if err != nil {
			return reports, fmt.Errorf("reconcile post %d: %w", id, err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// RepairPost recounts one post's counters. It is the self-repair hook used when a counter
// adjustment fails after its fact row was written.
func (s *ReconcileService) RepairPost(ctx context.Context, postID uint, reason string) error {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if _, err := s.reconcilePostRow(ctx, post); err != nil {
		return err
	}
	observability.CounterRepairs.WithLabelValues(string(models.TargetPost), reason).Inc()
	invalidatePost(ctx, s.cache, postID)
	middleware.Logger.WarnContext(ctx, "post counters repaired", "post_id", postID, "reason", reason)
	return nil
}

// RepairComment recounts one comment's counters.
func (s *ReconcileService) RepairComment(ctx context.Context, commentID uint, reason string) error {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if _, err := s.reconcileCommentRow(ctx, comment); err != nil {
		return err
	}
	observability.CounterRepairs.WithLabelValues(string(models.TargetComment), reason).Inc()
	middleware.Logger.WarnContext(ctx, "comment counters repaired", "comment_id", commentID, "reason", reason)
	return nil
}

func (s *ReconcileService) reconcilePostRow(ctx context.Context, post *models.Post) ([]CounterDrift, error) {
	counts, err := s.reactions.CountByTarget(ctx, models.TargetPost, post.ID)
	if err != nil {
		return nil, err
	}
	topLevel, err := s.comments.CountApprovedTopLevel(ctx, post.ID)
	if err != nil {
		return nil, err
	}

	drifts := collectDrifts(models.TargetPost, post.ID, map[string][2]int{
		"likes":          {post.ReactionCounts.Likes, counts.Likes},
		"dislikes":       {post.ReactionCounts.Dislikes, counts.Dislikes},
		"comments_count": {post.CommentsCount, topLevel},
	})
	if len(drifts) == 0 {
		return nil, nil
	}
	if err := s.posts.SetCounters(ctx, post.ID, counts, topLevel); err != nil {
		return nil, err
	}
	return drifts, nil
}

func (s *ReconcileService) reconcileCommentRow(ctx context.Context, comment *models.Comment) ([]CounterDrift, error) {
	counts, err := s.reactions.CountByTarget(ctx, models.TargetComment, comment.ID)
	if err != nil {
		return nil, err
	}
	replies, err := s.comments.CountReplies(ctx, comment.ID)
	if err != nil {
		return nil, err
	}

	drifts := collectDrifts(models.TargetComment, comment.ID, map[string][2]int{
		"likes":         {comment.ReactionCounts.Likes, counts.Likes},
		"dislikes":      {comment.ReactionCounts.Dislikes, counts.Dislikes},
		"replies_count": {comment.RepliesCount, replies},
	})
	if len(drifts) == 0 {
		return nil, nil
	}
	if err := s.comments.SetCounters(ctx, comment.ID, counts, replies); err != nil {
		return nil, err
	}
	return drifts, nil
}

// collectDrifts compares stored/actual pairs in a stable column order.
func collectDrifts(kind models.TargetKind, id uint, pairs map[string][2]int) []CounterDrift {
	var drifts []CounterDrift
	for _, column := range []string{"likes", "dislikes", "comments_count", "replies_count"} {
		pair, ok := pairs[column]
		if !ok || pair[0] == pair[1] {
			continue
		}
		drifts = append(drifts, CounterDrift{
			TargetKind: kind,
			TargetID:   id,
			Counter:    column,
			Stored:     pair[0],
			Actual:     pair[1],
		})
	}
	return drifts
}
