package repository

import (
	"context"

	"longform/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	// ListByPost returns the post's comments oldest-first; no statuses means all of them.
	ListByPost(ctx context.Context, postID uint, statuses ...models.CommentStatus) ([]*models.Comment, error)
	ListReplies(ctx context.Context, parentID uint) ([]*models.Comment, error)
	// UpdateStatus moves the comment from one status to another. It reports false when the
	// comment was no longer in the from status.
	UpdateStatus(ctx context.Context, id uint, from, to models.CommentStatus) (bool, error)
	// Delete removes the comment only while it still has the given status and reports
	// false when no row was removed.
	Delete(ctx context.Context, id uint, status models.CommentStatus) (bool, error)
	AdjustReactionCounts(ctx context.Context, id uint, likesDelta, dislikesDelta int) error
	AdjustRepliesCount(ctx context.Context, id uint, delta int) error
	SetCounters(ctx context.Context, id uint, counts models.ReactionCounts, repliesCount int) error
	CountApprovedTopLevel(ctx context.Context, postID uint) (int, error)
	CountReplies(ctx context.Context, parentID uint) (int, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		return nil, translateNotFound(err, "Comment", id)
	}
	return &comment, nil
}

func (r *commentRepository) ListByPost(
	ctx context.Context,
	postID uint,
	statuses ...models.CommentStatus,
) ([]*models.Comment, error) {
	var comments []*models.Comment
	query := r.db.WithContext(ctx).Where("post_id = ?", postID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	err := query.Order("created_at asc, id asc").Find(&comments).Error
	return comments, err
}

func (r *commentRepository) ListReplies(ctx context.Context, parentID uint) ([]*models.Comment, error) {
	var replies []*models.Comment
	err := r.db.WithContext(ctx).
		Where("parent_comment_id = ?", parentID).
		Order("id asc").
		Find(&replies).Error
	return replies, err
}

func (r *commentRepository) UpdateStatus(ctx context.Context, id uint, from, to models.CommentStatus) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *commentRepository) Delete(ctx context.Context, id uint, status models.CommentStatus) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ? AND status = ?", id, status).Delete(&models.Comment{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *commentRepository) AdjustReactionCounts(ctx context.Context, id uint, likesDelta, dislikesDelta int) error {
	return adjustCounters(r.db.WithContext(ctx), &models.Comment{}, "Comment", id, map[string]int{
		"likes":    likesDelta,
		"dislikes": dislikesDelta,
	})
}

func (r *commentRepository) AdjustRepliesCount(ctx context.Context, id uint, delta int) error {
	return adjustCounters(r.db.WithContext(ctx), &models.Comment{}, "Comment", id, map[string]int{
		"replies_count": delta,
	})
}

func (r *commentRepository) SetCounters(ctx context.Context, id uint, counts models.ReactionCounts, repliesCount int) error {
	result := r.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).UpdateColumns(map[string]any{
		"likes":         counts.Likes,
		"dislikes":      counts.Dislikes,
		"replies_count": repliesCount,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	return nil
}

func (r *commentRepository) CountApprovedTopLevel(ctx context.Context, postID uint) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("post_id = ? AND parent_comment_id IS NULL AND status = ?", postID, models.CommentApproved).
		Count(&n).Error
	return int(n), err
}

func (r *commentRepository) CountReplies(ctx context.Context, parentID uint) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("parent_comment_id = ?", parentID).
		Count(&n).Error
	return int(n), err
}
