package blog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/inkhaven/inkhaven-backend/pkg/kv"
	"github.com/inkhaven/inkhaven-backend/pkg/slug"
	"go.uber.org/zap"
)

// PostRepository owns the posts collection document. The store handle is
// injected; nothing in this package reaches for a process-wide client.
type PostRepository struct {
	posts collection[Post]
}

func NewPostRepository(store kv.Store, logger *zap.SugaredLogger, metrics StoreMetrics) *PostRepository {
	return &PostRepository{
		posts: collection[Post]{store: store, key: keyPosts, logger: logger, metrics: metrics},
	}
}

// All returns every post, newest publish date first. A missing or unreadable
// backing document yields an empty slice.
func (r *PostRepository) All(ctx context.Context) []Post {
	items := r.posts.all(ctx)
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Date != items[j].Date {
			return items[i].Date > items[j].Date
		}
		return items[i].Slug < items[j].Slug
	})
	return items
}

// Published returns the posts visible on the public blog.
func (r *PostRepository) Published(ctx context.Context) []Post {
	all := r.All(ctx)
	published := make([]Post, 0, len(all))
	for _, p := range all {
		if p.IsPublished() {
			published = append(published, p)
		}
	}
	return published
}

// Get looks up one post by slug via a whole-document fetch.
func (r *PostRepository) Get(ctx context.Context, postSlug string) (Post, error) {
	m, _, err := r.posts.load(ctx)
	if err != nil {
		return Post{}, err
	}
	p, ok := m[postSlug]
	if !ok {
		return Post{}, fmt.Errorf("post %q: %w", postSlug, ErrNotFound)
	}
	return p, nil
}

// Create derives the slug from the title and stores the post. A colliding
// slug is rejected with ErrConflict; titles are never suffixed to dodge the
// collision.
func (r *PostRepository) Create(ctx context.Context, in PostInput) (Post, error) {
	if err := in.Validate(); err != nil {
		return Post{}, err
	}

	postSlug := slug.From(in.Title)
	if postSlug == "" {
		return Post{}, fmt.Errorf("%w: title produces an empty slug", ErrValidation)
	}

	now := nowRFC3339()
	post := Post{
		Slug:        postSlug,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Content:     in.Content,
		Author:      strings.TrimSpace(in.Author),
		Date:        in.Date,
		Tags:        in.Tags,
		Status:      in.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if post.Date == "" {
		post.Date = now[:10] // today, YYYY-MM-DD
	}
	if post.Status == "" {
		post.Status = StatusDraft
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}

	err := r.posts.mutate(ctx, "create", func(m map[string]Post) error {
		if _, exists := m[postSlug]; exists {
			return fmt.Errorf("post %q already exists: %w", postSlug, ErrConflict)
		}
		m[postSlug] = post
		return nil
	})
	if err != nil {
		return Post{}, err
	}
	return post, nil
}

// Update merges the provided fields over the stored post and re-stamps the
// modification timestamp. The slug and creation timestamp never change, and
// updating a missing post never creates one.
func (r *PostRepository) Update(ctx context.Context, postSlug string, up PostUpdate) (Post, error) {
	var updated Post
	err := r.posts.mutate(ctx, "update", func(m map[string]Post) error {
		p, ok := m[postSlug]
		if !ok {
			return fmt.Errorf("post %q: %w", postSlug, ErrNotFound)
		}

		if up.Title != nil {
			p.Title = *up.Title
		}
		if up.Description != nil {
			p.Description = *up.Description
		}
		if up.Content != nil {
			p.Content = *up.Content
		}
		if up.Author != nil {
			p.Author = *up.Author
		}
		if up.Date != nil {
			p.Date = *up.Date
		}
		if up.Tags != nil {
			p.Tags = *up.Tags
		}
		if up.Status != nil {
			p.Status = *up.Status
		}
		p.UpdatedAt = nowRFC3339()

		m[postSlug] = p
		updated = p
		return nil
	})
	if err != nil {
		return Post{}, err
	}
	return updated, nil
}

// Delete removes one post. Comments referencing the slug are left dangling
// on purpose; the admin view still lists them.
func (r *PostRepository) Delete(ctx context.Context, postSlug string) error {
	return r.posts.mutate(ctx, "delete", func(m map[string]Post) error {
		if _, ok := m[postSlug]; !ok {
			return fmt.Errorf("post %q: %w", postSlug, ErrNotFound)
		}
		delete(m, postSlug)
		return nil
	})
}
