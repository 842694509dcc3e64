package service

import (
	"context"
	"errors"

	"longform/internal/cache"
	"longform/internal/middleware"
	"longform/internal/models"
	"longform/internal/observability"
	"longform/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// ReactionService is the reaction ledger: at most one reaction per user and target, with
// toggle semantics and denormalized like/dislike counters on the target.
type ReactionService struct {
	reactions repository.ReactionRepository
	posts     repository.PostRepository
	comments  repository.CommentRepository
	repairer  CounterRepairer
	cache     *cache.Store
}

type ReactInput struct {
	TargetKind models.TargetKind
	TargetID   uint
	UserEmail  string
	UserName   string
	Type       models.ReactionType
}

func NewReactionService(
	reactions repository.ReactionRepository,
	posts repository.PostRepository,
	comments repository.CommentRepository,
	repairer CounterRepairer,
	store *cache.Store,
) *ReactionService {
	return &ReactionService{
		reactions: reactions,
		posts:     posts,
		comments:  comments,
		repairer:  repairer,
		cache:     store,
	}
}

// React applies the three-way toggle:
//   - no reaction yet: insert it and increment its counter (created)
//   - same type: delete it and decrement its counter (removed)
//   - other type: switch it, moving one count between the counters (switched)
//
// Two first reactions racing past the existence check are settled by the unique index; the
// loser gets a CONFLICT "already reacted".
func (s *ReactionService) React(ctx context.Context, in ReactInput) (result *models.ReactionResult, err error) {
	ctx, span := observability.StartSpan(ctx, "ReactionService.React",
		attribute.String("target.kind", string(in.TargetKind)),
		attribute.Int64("target.id", int64(in.TargetID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if !in.TargetKind.Valid() {
		return nil, models.NewValidationError("Target must be post or comment")
	}
	if !in.Type.Valid() {
		return nil, models.NewValidationError("Reaction type must be like or dislike")
	}
	email := models.NormalizeEmail(in.UserEmail)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if _, err := s.loadCounts(ctx, in.TargetKind, in.TargetID); err != nil {
		return nil, err
	}

	existing, err := s.reactions.Find(ctx, in.TargetKind, in.TargetID, email)
	if err != nil {
		return nil, err
	}

	var (
		status   models.ReactionStatus
		likes    int
		dislikes int
	)

	switch {
	case existing == nil:
		reaction := &models.Reaction{
			TargetKind: in.TargetKind,
			TargetID:   in.TargetID,
			UserEmail:  email,
			UserName:   in.UserName,
			Type:       in.Type,
		}
		if err := s.reactions.Create(ctx, reaction); err != nil {
			if errors.Is(err, repository.ErrDuplicateReaction) {
				observability.ReactionsTotal.WithLabelValues(string(in.TargetKind), "conflict").Inc()
				return nil, models.NewConflictError("already reacted", err)
			}
			return nil, err
		}
		status = models.ReactionCreated
		likes, dislikes = reactionDelta(in.Type, 1)

	case existing.Type == in.Type:
		removed, err := s.reactions.Delete(ctx, existing.ID, existing.Type)
		if err != nil {
			return nil, err
		}
		if !removed {
			return nil, s.concurrentChange(in.TargetKind)
		}
		status = models.ReactionRemoved
		likes, dislikes = reactionDelta(in.Type, -1)

	default:
		switched, err := s.reactions.UpdateType(ctx, existing.ID, existing.Type, in.Type)
		if err != nil {
			return nil, err
		}
		if !switched {
			return nil, s.concurrentChange(in.TargetKind)
		}
		status = models.ReactionSwitched
		oldLikes, oldDislikes := reactionDelta(existing.Type, -1)
		newLikes, newDislikes := reactionDelta(in.Type, 1)
		likes, dislikes = oldLikes+newLikes, oldDislikes+newDislikes
	}

	if err := applyCounter(ctx, s.repairer, counterStep{
		kind: in.TargetKind,
		id:   in.TargetID,
		adjust: func(ctx context.Context) error {
			return s.adjust(ctx, in.TargetKind, in.TargetID, likes, dislikes)
		},
		// The target was deleted after the existence check; its sweep may have missed
		// the row written here.
		undo: func(ctx context.Context) error {
			return deleteTargetReactions(ctx, s.reactions, in.TargetKind, in.TargetID)
		},
	}); err != nil {
		return nil, err
	}

	if in.TargetKind == models.TargetPost {
		invalidatePost(ctx, s.cache, in.TargetID)
	}
	observability.ReactionsTotal.WithLabelValues(string(in.TargetKind), string(status)).Inc()

	counts, err := s.loadCounts(ctx, in.TargetKind, in.TargetID)
	if err != nil {
		return nil, err
	}
	return &models.ReactionResult{Status: status, ReactionCounts: counts}, nil
}

// GetReactionState reports whether email has reacted to the target and with which type.
func (s *ReactionService) GetReactionState(
	ctx context.Context,
	kind models.TargetKind,
	targetID uint,
	email string,
) (*models.ReactionState, error) {
	if !kind.Valid() {
		return nil, models.NewValidationError("Target must be post or comment")
	}
	email = models.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if _, err := s.loadCounts(ctx, kind, targetID); err != nil {
		return nil, err
	}

	reaction, err := s.reactions.Find(ctx, kind, targetID, email)
	if err != nil {
		return nil, err
	}
	if reaction == nil {
		return &models.ReactionState{}, nil
	}
	typ := reaction.Type
	return &models.ReactionState{HasReacted: true, Type: &typ}, nil
}

func (s *ReactionService) concurrentChange(kind models.TargetKind) error {
	observability.ReactionsTotal.WithLabelValues(string(kind), "conflict").Inc()
	return models.NewConflictError("reaction changed concurrently, retry", nil)
}

func (s *ReactionService) loadCounts(ctx context.Context, kind models.TargetKind, id uint) (models.ReactionCounts, error) {
	switch kind {
	case models.TargetPost:
		post, err := s.posts.GetByID(ctx, id)
		if err != nil {
			return models.ReactionCounts{}, err
		}
		return post.ReactionCounts, nil
	case models.TargetComment:
		comment, err := s.comments.GetByID(ctx, id)
		if err != nil {
			return models.ReactionCounts{}, err
		}
		return comment.ReactionCounts, nil
	}
	return models.ReactionCounts{}, models.NewValidationError("Target must be post or comment")
}

func (s *ReactionService) adjust(ctx context.Context, kind models.TargetKind, id uint, likes, dislikes int) error {
	if kind == models.TargetPost {
		return s.posts.AdjustReactionCounts(ctx, id, likes, dislikes)
	}
	return s.comments.AdjustReactionCounts(ctx, id, likes, dislikes)
}

// reactionDelta maps a signed step on typ to (likes, dislikes) deltas.
func reactionDelta(typ models.ReactionType, step int) (int, int) {
	if typ == models.ReactionDislike {
		return 0, step
	}
	return step, 0
}

// DeleteTargetReactions removes every reaction on a target that is itself being deleted.
func deleteTargetReactions(ctx context.Context, reactions repository.ReactionRepository, kind models.TargetKind, id uint) error {
	n, err := reactions.DeleteByTarget(ctx, kind, id)
	if err != nil {
		return err
	}
	if n > 0 {
		observability.CascadeDeletedRows.WithLabelValues("reactions").Add(float64(n))
		middleware.Logger.DebugContext(ctx, "deleted target reactions", "target_kind", kind, "target_id", id, "rows", n)
	}
	return nil
}
