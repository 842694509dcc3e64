// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// Image/video placement values stored on refs. Anything else is still accepted and
// sanitized at render time.
const (
	PositionCenter = "center"
	PositionLeft   = "left"
	PositionRight  = "right"
	PositionWide   = "full-width"
)

// ReactionCounts are the denormalized like/dislike counters carried by posts and comments.
type ReactionCounts struct {
	Likes    int `gorm:"not null;default:0" json:"likes"`
	Dislikes int `gorm:"not null;default:0" json:"dislikes"`
}

// ImageRef is an image embedded in a post body through an [IMAGE:token] placeholder.
type ImageRef struct {
	Token    string `json:"token"`
	URL      string `json:"url"`
	Alt      string `json:"alt,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Position string `json:"position,omitempty"`
}

// GetToken returns the placeholder key of the ref.
func (r ImageRef) GetToken() string { return r.Token }

// VideoRef is an external video embedded in a post body through a [VIDEO:token] placeholder.
type VideoRef struct {
	Token           string `json:"token"`
	Platform        string `json:"platform"`
	ExternalVideoID string `json:"external_video_id"`
	URL             string `json:"url,omitempty"`
	Title           string `json:"title,omitempty"`
	Caption         string `json:"caption,omitempty"`
	Position        string `json:"position,omitempty"`
	Autoplay        bool   `json:"autoplay"`
	Muted           bool   `json:"muted"`
}

// GetToken returns the placeholder key of the ref.
func (r VideoRef) GetToken() string { return r.Token }

// Post is a long-form post. Images and Videos live inside the post row and share its lifetime.
type Post struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Title          string         `gorm:"not null" json:"title"`
	Body           string         `gorm:"type:text;not null" json:"body"`
	AuthorName     string         `gorm:"not null" json:"author_name"`
	AuthorEmail    string         `gorm:"not null;index" json:"author_email"`
	Images         []ImageRef     `gorm:"serializer:json;type:text" json:"images"`
	Videos         []VideoRef     `gorm:"serializer:json;type:text" json:"videos"`
	ReactionCounts ReactionCounts `gorm:"embedded" json:"reaction_counts"`
	// CommentsCount counts top-level comments only; replies never move it.
	CommentsCount int       `gorm:"not null;default:0" json:"comments_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsOwnedBy reports whether the given identity authored the post.
func (p *Post) IsOwnedBy(user *CurrentUser) bool {
	return user != nil && user.Email != "" && SameEmail(p.AuthorEmail, user.Email)
}

// RenderedPost is the read-side view of a post with placeholders expanded.
type RenderedPost struct {
	Post
	DisplayBody string `json:"display_body"`
}
