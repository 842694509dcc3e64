package models

import "time"

// CommentStatus is the moderation state of a comment.
type CommentStatus string

const (
	CommentPending  CommentStatus = "pending"
	CommentApproved CommentStatus = "approved"
	CommentRejected CommentStatus = "rejected"
)

// Valid reports whether s is one of the three moderation states.
func (s CommentStatus) Valid() bool {
	switch s {
	case CommentPending, CommentApproved, CommentRejected:
		return true
	}
	return false
}

// CommentUser is the display identity attached to a comment.
type CommentUser struct {
	Name  string `gorm:"not null" json:"name"`
	Email string `gorm:"not null;index" json:"email"`
}

// Comment rows form a flat table; ParentCommentID == nil marks a top-level comment.
type Comment struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	PostID          uint           `gorm:"not null;index" json:"post_id"`
	ParentCommentID *uint          `gorm:"index" json:"parent_comment_id"`
	User            CommentUser    `gorm:"embedded;embeddedPrefix:user_" json:"user"`
	Content         string         `gorm:"type:text;not null" json:"content"`
	Status          CommentStatus  `gorm:"type:varchar(16);not null;default:approved;index" json:"status"`
	IsAuthorComment bool           `gorm:"not null;default:false" json:"is_author_comment"`
	RepliesCount    int            `gorm:"not null;default:0" json:"replies_count"`
	ReactionCounts  ReactionCounts `gorm:"embedded" json:"reaction_counts"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// IsTopLevel reports whether the comment has no parent.
func (c *Comment) IsTopLevel() bool {
	return c.ParentCommentID == nil
}

// IsApproved reports whether the comment is publicly visible.
func (c *Comment) IsApproved() bool {
	return c.Status == CommentApproved
}
