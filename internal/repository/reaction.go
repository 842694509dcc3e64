package repository

import (
	"context"
	"errors"

	"longform/internal/models"

	"gorm.io/gorm"
)

// ReactionRepository stores reaction facts. Writes report whether a row actually changed so
// callers only move counters for transitions that happened.
type ReactionRepository interface {
	// Find returns nil, nil when the address has not reacted to the target.
	Find(ctx context.Context, kind models.TargetKind, targetID uint, email string) (*models.Reaction, error)
	// Create returns ErrDuplicateReaction when a reaction for the same key already exists.
	Create(ctx context.Context, reaction *models.Reaction) error
	// Delete removes the reaction only while it still has the given type.
	Delete(ctx context.Context, id uint, typ models.ReactionType) (bool, error)
	// UpdateType switches the reaction only while it still has the from type.
	UpdateType(ctx context.Context, id uint, from, to models.ReactionType) (bool, error)
	DeleteByTarget(ctx context.Context, kind models.TargetKind, targetID uint) (int64, error)
	CountByTarget(ctx context.Context, kind models.TargetKind, targetID uint) (models.ReactionCounts, error)
}

type reactionRepository struct {
	db *gorm.DB
}

// NewReactionRepository creates a new ReactionRepository
func NewReactionRepository(db *gorm.DB) ReactionRepository {
	return &reactionRepository{db: db}
}

func (r *reactionRepository) Find(
	ctx context.Context,
	kind models.TargetKind,
	targetID uint,
	email string,
) (*models.Reaction, error) {
	var reaction models.Reaction
	err := r.db.WithContext(ctx).
		Where("target_kind = ? AND target_id = ? AND user_email = ?", kind, targetID, email).
		Take(&reaction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reaction, nil
}

func (r *reactionRepository) Create(ctx context.Context, reaction *models.Reaction) error {
	err := r.db.WithContext(ctx).Create(reaction).Error
	if isUniqueViolation(err) {
		return ErrDuplicateReaction
	}
	return err
}

func (r *reactionRepository) Delete(ctx context.Context, id uint, typ models.ReactionType) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ? AND type = ?", id, typ).Delete(&models.Reaction{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *reactionRepository) UpdateType(ctx context.Context, id uint, from, to models.ReactionType) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Reaction{}).
		Where("id = ? AND type = ?", id, from).
		Update("type", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *reactionRepository) DeleteByTarget(ctx context.Context, kind models.TargetKind, targetID uint) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("target_kind = ? AND target_id = ?", kind, targetID).
		Delete(&models.Reaction{})
	return result.RowsAffected, result.Error
}

func (r *reactionRepository) CountByTarget(
	ctx context.Context,
	kind models.TargetKind,
	targetID uint,
) (models.ReactionCounts, error) {
	var rows []struct {
		Type  models.ReactionType
		Total int
	}
	err := r.db.WithContext(ctx).Model(&models.Reaction{}).
		Select("type, COUNT(*) AS total").
		Where("target_kind = ? AND target_id = ?", kind, targetID).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return models.ReactionCounts{}, err
	}

	var counts models.ReactionCounts
	for _, row := range rows {
		switch row.Type {
		case models.ReactionLike:
			counts.Likes = row.Total
		case models.ReactionDislike:
			counts.Dislikes = row.Total
		}
	}
	return counts, nil
}
