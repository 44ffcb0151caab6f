package blog

import (
	"fmt"
	"strings"
	"time"
)

// Post is a blog post. The slug doubles as the identifier inside the posts
// collection document and never changes once the post is created.
type Post struct {
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Date        string   `json:"date"` // publish date, YYYY-MM-DD
	Author      string   `json:"author"`
	Tags        []string `json:"tags"`
	Status      string   `json:"status"` // "draft" or "published" by convention
	Content     string   `json:"content"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
}

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// PostInput carries the caller-supplied fields for creating a post.
type PostInput struct {
	Title       string
	Description string
	Content     string
	Author      string
	Date        string
	Tags        []string
	Status      string
}

// PostUpdate carries a partial update; nil fields are left untouched.
// There is no Slug field: the slug is immutable.
type PostUpdate struct {
	Title       *string
	Description *string
	Content     *string
	Author      *string
	Date        *string
	Tags        *[]string
	Status      *string
}

// Validate checks the fields required for creating a post.
func (in PostInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(in.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrValidation)
	}
	if strings.TrimSpace(in.Author) == "" {
		return fmt.Errorf("%w: author is required", ErrValidation)
	}
	if in.Date != "" {
		if _, err := time.Parse("2006-01-02", in.Date); err != nil {
			return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
		}
	}
	return nil
}

// IsPublished reports whether the post is visible on the public blog.
func (p Post) IsPublished() bool {
	return p.Status == StatusPublished
}
