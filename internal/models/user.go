package models

import "strings"

// Roles carried by a verified identity.
const (
	RoleReader = "reader"
	RoleAuthor = "author"
	RoleAdmin  = "admin"
)

// CurrentUser is the verified caller identity supplied by the auth layer.
type CurrentUser struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// IsAdmin reports whether the identity carries the admin role.
func (u *CurrentUser) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// NormalizeEmail lower-cases and trims an address for comparisons and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SameEmail compares two addresses case-insensitively.
func SameEmail(a, b string) bool {
	return NormalizeEmail(a) == NormalizeEmail(b)
}

// Notification is a rendered message handed to the notifier capability.
type Notification struct {
	Kind      string `json:"kind"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	PostID    uint   `json:"post_id"`
	CommentID uint   `json:"comment_id,omitempty"`
}

// Notification kinds.
const (
	NotifyNewComment  = "new_comment"
	NotifyNewReply    = "new_reply"
	NotifyAuthorReply = "author_reply"
)
