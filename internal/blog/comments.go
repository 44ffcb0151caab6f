package blog

import (
	"context"
	"fmt"
	"sort"

	"github.com/inkhaven/inkhaven-backend/pkg/kv"
	"go.uber.org/zap"
)

// CommentRepository owns the comments collection document.
type CommentRepository struct {
	comments collection[Comment]
}

func NewCommentRepository(store kv.Store, logger *zap.SugaredLogger, metrics StoreMetrics) *CommentRepository {
	return &CommentRepository{
		comments: collection[Comment]{store: store, key: keyComments, logger: logger, metrics: metrics},
	}
}

// All returns every comment regardless of moderation state, newest first.
// This is the admin view.
func (r *CommentRepository) All(ctx context.Context) []Comment {
	items := r.comments.all(ctx)
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt != items[j].CreatedAt {
			return items[i].CreatedAt > items[j].CreatedAt
		}
		return items[i].ID < items[j].ID
	})
	return items
}

// ForPost returns the approved comments for one post, oldest first. Pending
// and rejected comments never reach the public view.
func (r *CommentRepository) ForPost(ctx context.Context, postSlug string) []Comment {
	items := r.comments.all(ctx)
	visible := make([]Comment, 0, len(items))
	for _, c := range items {
		if c.PostSlug == postSlug && c.Status == CommentApproved {
			visible = append(visible, c)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool {
		if visible[i].CreatedAt != visible[j].CreatedAt {
			return visible[i].CreatedAt < visible[j].CreatedAt
		}
		return visible[i].ID < visible[j].ID
	})
	return visible
}

// Get looks up one comment by ID.
func (r *CommentRepository) Get(ctx context.Context, id string) (Comment, error) {
	m, _, err := r.comments.load(ctx)
	if err != nil {
		return Comment{}, err
	}
	c, ok := m[id]
	if !ok {
		return Comment{}, fmt.Errorf("comment %q: %w", id, ErrNotFound)
	}
	return c, nil
}

// Create stores a new comment. Whatever the caller says, the comment starts
// out pending; only an explicit moderation update changes that.
func (r *CommentRepository) Create(ctx context.Context, in CommentInput) (Comment, error) {
	if err := in.Validate(); err != nil {
		return Comment{}, err
	}
	in = in.normalize()

	comment := Comment{
		ID:        newToken("comment"),
		PostSlug:  in.PostSlug,
		Author:    in.Author,
		Email:     in.Email,
		Content:   in.Content,
		Status:    CommentPending,
		CreatedAt: nowRFC3339(),
		IPAddress: in.IPAddress,
		UserAgent: in.UserAgent,
	}

	err := r.comments.mutate(ctx, "create", func(m map[string]Comment) error {
		if _, exists := m[comment.ID]; exists {
			return fmt.Errorf("comment %q already exists: %w", comment.ID, ErrConflict)
		}
		m[comment.ID] = comment
		return nil
	})
	if err != nil {
		return Comment{}, err
	}
	return comment, nil
}

// Update merges the provided fields over the stored comment. Moderation goes
// through here: set Status to approved or rejected.
func (r *CommentRepository) Update(ctx context.Context, id string, up CommentUpdate) (Comment, error) {
	if up.Status != nil && !ValidCommentStatus(*up.Status) {
		return Comment{}, fmt.Errorf("%w: invalid status %q", ErrValidation, *up.Status)
	}

	var updated Comment
	err := r.comments.mutate(ctx, "update", func(m map[string]Comment) error {
		c, ok := m[id]
		if !ok {
			return fmt.Errorf("comment %q: %w", id, ErrNotFound)
		}

		if up.Author != nil {
			c.Author = *up.Author
		}
		if up.Email != nil {
			c.Email = *up.Email
		}
		if up.Content != nil {
			c.Content = *up.Content
		}
		if up.Status != nil {
			c.Status = *up.Status
		}
		c.UpdatedAt = nowRFC3339()

		m[id] = c
		updated = c
		return nil
	})
	if err != nil {
		return Comment{}, err
	}
	return updated, nil
}

// UpdateStatus is the moderation shortcut used by the admin handlers.
func (r *CommentRepository) UpdateStatus(ctx context.Context, id, status string) (Comment, error) {
	return r.Update(ctx, id, CommentUpdate{Status: &status})
}

// Delete removes one comment in any moderation state.
func (r *CommentRepository) Delete(ctx context.Context, id string) error {
	return r.comments.mutate(ctx, "delete", func(m map[string]Comment) error {
		if _, ok := m[id]; !ok {
			return fmt.Errorf("comment %q: %w", id, ErrNotFound)
		}
		delete(m, id)
		return nil
	})
}

// Stats counts comments per moderation state for the admin dashboard.
func (r *CommentRepository) Stats(ctx context.Context) CommentStats {
	stats := CommentStats{}
	for _, c := range r.comments.all(ctx) {
		stats.Total++
		switch c.Status {
		case CommentPending:
			stats.Pending++
		case CommentApproved:
			stats.Approved++
		case CommentRejected:
			stats.Rejected++
		}
	}
	return stats
}
