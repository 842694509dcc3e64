// Package service implements the engagement rules: the reaction ledger, the comment thread
// manager, the post media workflow and counter reconciliation.
//
// Every mutation writes its fact row first and adjusts the denormalized counter in a second,
// separate statement. The two are not wrapped in a transaction: a crash between them leaves
// the counter off by one until ReconcileService recounts it. Fact writes are conditional on
// the state the service read, so a lost race surfaces as a CONFLICT instead of a counter
// moving for a transition that did not happen.
package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"longform/internal/cache"
	"longform/internal/middleware"
	"longform/internal/models"
)

// Notifier is the fire-and-forget message capability.
type Notifier interface {
	Notify(ctx context.Context, msg models.Notification)
}

// CounterRepairer recomputes a target's counters from its fact rows.
type CounterRepairer interface {
	RepairPost(ctx context.Context, postID uint, reason string) error
	RepairComment(ctx context.Context, commentID uint, reason string) error
}

// Field limits.
const (
	MaxCommentLength = 1000
	MaxNameLength    = 100
	MaxTitleLength   = 300
	MaxBodyLength    = 100000
)

func validateIdentity(name, email string) (string, string, error) {
	name = strings.TrimSpace(name)
	email = models.NormalizeEmail(email)

	if name == "" {
		return "", "", models.NewValidationError("Name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", "", models.NewValidationError("Name too long (max 100 characters)")
	}
	if err := validateEmail(email); err != nil {
		return "", "", err
	}
	return name, email, nil
}

func validateEmail(email string) error {
	if email == "" {
		return models.NewValidationError("Email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return models.NewValidationError("Email is invalid")
	}
	return nil
}

func validateCommentContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", models.NewValidationError("Content is required")
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return "", models.NewValidationError("Comment too long (max 1000 characters)")
	}
	return content, nil
}

// counterStep applies one counter adjustment after its fact row was written. When the
// adjustment fails, the target is recounted; only a failed recount reaches the caller.
//
// A NotFound from adjust means the target was deleted after the fact row was written.
// With undo set the fact row is removed again and the NotFound is returned; without it
// (delete paths) there is nothing left to fix.
type counterStep struct {
	kind   models.TargetKind
	id     uint
	adjust func(ctx context.Context) error
	undo   func(ctx context.Context) error
}

func applyCounter(ctx context.Context, repairer CounterRepairer, step counterStep) error {
	err := step.adjust(ctx)
	if err == nil {
		return nil
	}
	if models.ErrorCode(err) == models.CodeNotFound {
		if step.undo == nil {
			return nil
		}
		middleware.Logger.InfoContext(ctx, "target deleted concurrently, removing written row",
			"target_kind", step.kind, "target_id", step.id)
		if undoErr := step.undo(ctx); undoErr != nil {
			return fmt.Errorf("remove row for deleted %s %d: %w", step.kind, step.id, undoErr)
		}
		return err
	}

	middleware.Logger.WarnContext(ctx, "counter adjustment failed, recounting",
		"target_kind", step.kind, "target_id", step.id, "error", err)
	if repairer == nil {
		return models.NewInternalError(err)
	}

	var repairErr error
	switch step.kind {
	case models.TargetPost:
		repairErr = repairer.RepairPost(ctx, step.id, "adjust_failed")
	case models.TargetComment:
		repairErr = repairer.RepairComment(ctx, step.id, "adjust_failed")
	}
	if repairErr != nil {
		middleware.Logger.ErrorContext(ctx, "counter repair failed",
			"target_kind", step.kind, "target_id", step.id, "error", repairErr)
		return models.NewInternalError(err)
	}
	return nil
}

func invalidatePost(ctx context.Context, store *cache.Store, postID uint) {
	store.Invalidate(ctx, cache.PostKey(postID))
}

// canManagePost reports whether user may change the post or its media.
func canManagePost(post *models.Post, user *models.CurrentUser) bool {
	return post.IsOwnedBy(user) || user.IsAdmin()
}
