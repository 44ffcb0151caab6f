package blog

import (
	"fmt"
	"regexp"
	"strings"
)

var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Comment moderation states. New comments always start out pending and only
// an explicit moderation action moves them to approved or rejected.
const (
	CommentPending  = "pending"
	CommentApproved = "approved"
	CommentRejected = "rejected"
)

// Comment is a reader comment on a post. PostSlug is not a enforced foreign
// key: comments whose post has been deleted are tolerated and still show up
// in the admin view.
type Comment struct {
	ID        string `json:"id"`
	PostSlug  string `json:"postSlug"`
	Author    string `json:"author"`
	Email     string `json:"email"`
	Content   string `json:"content"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt,omitempty"`
	IPAddress string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// CommentInput carries the caller-supplied fields for submitting a comment.
type CommentInput struct {
	PostSlug  string
	Author    string
	Email     string
	Content   string
	IPAddress string
	UserAgent string
}

// CommentUpdate carries a partial update; nil fields are left untouched.
type CommentUpdate struct {
	Author  *string
	Email   *string
	Content *string
	Status  *string
}

// Validate checks the fields required for submitting a comment.
func (in CommentInput) Validate() error {
	if strings.TrimSpace(in.PostSlug) == "" {
		return fmt.Errorf("%w: postSlug is required", ErrValidation)
	}
	if strings.TrimSpace(in.Author) == "" {
		return fmt.Errorf("%w: author is required", ErrValidation)
	}
	if strings.TrimSpace(in.Email) == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if !emailShape.MatchString(strings.TrimSpace(in.Email)) {
		return fmt.Errorf("%w: email %q is not a valid address", ErrValidation, in.Email)
	}
	if strings.TrimSpace(in.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrValidation)
	}
	return nil
}

// normalize trims the caller-supplied text fields and lowercases the email.
func (in CommentInput) normalize() CommentInput {
	in.PostSlug = strings.TrimSpace(in.PostSlug)
	in.Author = strings.TrimSpace(in.Author)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Content = strings.TrimSpace(in.Content)
	return in
}

// ValidCommentStatus reports whether s is one of the moderation states.
func ValidCommentStatus(s string) bool {
	switch s {
	case CommentPending, CommentApproved, CommentRejected:
		return true
	}
	return false
}

// CommentStats summarizes the moderation queue for the admin dashboard.
type CommentStats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}
