package models

import "time"

// TargetKind names the aggregate a reaction is attached to.
type TargetKind string

const (
	TargetPost    TargetKind = "post"
	TargetComment TargetKind = "comment"
)

// Valid reports whether k is a known target kind.
func (k TargetKind) Valid() bool {
	return k == TargetPost || k == TargetComment
}

// ReactionType is like or dislike.
type ReactionType string

const (
	ReactionLike    ReactionType = "like"
	ReactionDislike ReactionType = "dislike"
)

// Valid reports whether t is like or dislike.
func (t ReactionType) Valid() bool {
	return t == ReactionLike || t == ReactionDislike
}

// CounterColumn is the counter column the reaction type maps to on posts and comments.
func (t ReactionType) CounterColumn() string {
	if t == ReactionDislike {
		return "dislikes"
	}
	return "likes"
}

// Reaction is one user's reaction to a post or comment. At most one row exists per
// (target_kind, target_id, user_email); the unique index is the authority on that.
type Reaction struct {
	ID         uint         `gorm:"primaryKey" json:"id"`
	TargetKind TargetKind   `gorm:"type:varchar(16);not null;uniqueIndex:idx_reactions_target_user,priority:1" json:"target_kind"`
	TargetID   uint         `gorm:"not null;uniqueIndex:idx_reactions_target_user,priority:2" json:"target_id"`
	UserEmail  string       `gorm:"not null;uniqueIndex:idx_reactions_target_user,priority:3" json:"user_email"`
	UserName   string       `json:"user_name"`
	Type       ReactionType `gorm:"type:varchar(16);not null" json:"type"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// ReactionStatus is the outcome of a toggle.
type ReactionStatus string

const (
	ReactionCreated  ReactionStatus = "created"
	ReactionRemoved  ReactionStatus = "removed"
	ReactionSwitched ReactionStatus = "switched"
)

// ReactionResult is returned by the reaction ledger after a toggle.
type ReactionResult struct {
	Status         ReactionStatus `json:"status"`
	ReactionCounts ReactionCounts `json:"reaction_counts"`
}

// ReactionState describes whether an address has reacted to a target.
type ReactionState struct {
	HasReacted bool          `json:"has_reacted"`
	Type       *ReactionType `json:"type,omitempty"`
}
