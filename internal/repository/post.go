package repository

import (
	"context"

	"longform/internal/models"

	"gorm.io/gorm"
)

// PostRepository defines interface for post operations. Counter columns are only ever
// changed through the Adjust*/SetCounters methods, never by UpdateContent.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	ListIDs(ctx context.Context) ([]uint, error)
	UpdateContent(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
	AdjustReactionCounts(ctx context.Context, id uint, likesDelta, dislikesDelta int) error
	AdjustCommentsCount(ctx context.Context, id uint, delta int) error
	SetCounters(ctx context.Context, id uint, counts models.ReactionCounts, commentsCount int) error
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new PostRepository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, translateNotFound(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) ListIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Post{}).Order("id asc").Pluck("id", &ids).Error
	return ids, err
}

// UpdateContent writes title, body and media refs only.
func (r *postRepository) UpdateContent(ctx context.Context, post *models.Post) error {
	result := r.db.WithContext(ctx).Model(post).
		Select("title", "body", "images", "videos", "updated_at").
		Updates(post)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Post", post.ID)
	}
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Post{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

func (r *postRepository) AdjustReactionCounts(ctx context.Context, id uint, likesDelta, dislikesDelta int) error {
	return adjustCounters(r.db.WithContext(ctx), &models.Post{}, "Post", id, map[string]int{
		"likes":    likesDelta,
		"dislikes": dislikesDelta,
	})
}

func (r *postRepository) AdjustCommentsCount(ctx context.Context, id uint, delta int) error {
	return adjustCounters(r.db.WithContext(ctx), &models.Post{}, "Post", id, map[string]int{
		"comments_count": delta,
	})
}

func (r *postRepository) SetCounters(ctx context.Context, id uint, counts models.ReactionCounts, commentsCount int) error {
	result := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).UpdateColumns(map[string]any{
		"likes":          counts.Likes,
		"dislikes":       counts.Dislikes,
		"comments_count": commentsCount,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}
