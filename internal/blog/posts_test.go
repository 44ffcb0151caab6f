package blog

import (
	"context"
	"testing"

	"github.com/inkhaven/inkhaven-backend/pkg/kv/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPostRepo(t *testing.T) *PostRepository {
	t.Helper()
	store := memory.New(0)
	t.Cleanup(func() { store.Close() })
	return NewPostRepository(store, zap.NewNop().Sugar(), nil)
}

func TestPostCreateAndGet(t *testing.T) {
	repo := newTestPostRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, PostInput{
		Title:   "Hello, World!  2024",
		Content: "Some content",
		Author:  "alice",
		Date:    "2024-05-01",
		Tags:    []string{"go", "intro"},
		Status:  StatusPublished,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello-world-2024", created.Slug)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	got, err := repo.Get(ctx, created.Slug)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestPostCreateDefaults(t *testing.T) {
	repo := newTestPostRepo(t)

	created, err := repo.Create(context.Background(), PostInput{
		Title:   "Minimal Post",
		Content: "body",
		Author:  "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, created.Status)
	assert.NotEmpty(t, created.Date)
	assert.NotNil(t, created.Tags)
	assert.Empty(t, created.Tags)
}

func TestPostCreateValidation(t *testing.T) {
	repo := newTestPostRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, PostInput{Content: "x", Author: "a"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = repo.Create(ctx, PostInput{Title: "t", Author: "a"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = repo.Create(ctx, PostInput{Title: "t", Content: "x", Author: "a", Date: "01/02/2024"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPostCreateSlugConflict(t *testing.T) {
	repo := newTestPostRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, PostInput{Title: "Same Title", Content: "a", Author: "alice"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, PostInput{Title: "Same Title", Content: "b", Author: "bob"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestPostUpdateMergesFields(t *testing.T) {
	repo := newTestPostRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, PostInput{
		Title:       "Original",
		Description: "original description",
		Content:     "original content",
		Author:      "alice",
		Tags:        []string{"one"},
	})
	require.NoError(t, err)

	newTitle := "Updated"
	updated, err := repo.Update(ctx, created.Slug, PostUpdate{Title: &newTitle})
	require.NoError(t, err)

	assert.Equal(t, "Updated", updated.Title)
	assert.Equal(t, created.Slug, updated.Slug)
	assert.Equal(t, "original description", updated.Description)
	assert.Equal(t, "original content", updated.Content)
	assert.Equal(t, []string{"one"}, updated.Tags)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
}

func TestPostUpdateMissing(t *testing.T) {
	repo := newTestPostRepo(t)

	title := "nope"
	_, err := repo.Update(context.Background(), "does-not-exist", PostUpdate{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)

	// the failed update must not have created anything
	_, err = repo.Get(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostDelete(t *testing.T) {
	repo := newTestPostRepo(t)
	ctx := context.Background()

	keep, err := repo.Create(ctx, PostInput{Title: "Keep Me", Content: "a", Author: "alice"})
	require.NoError(t, err)
	gone, err := repo.Create(ctx, PostInput{Title: "Delete Me", Content: "b", Author: "alice"})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, gone.Slug))

	_, err = repo.Get(ctx, gone.Slug)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.Get(ctx, keep.Slug)
	assert.NoError(t, err)

	assert.ErrorIs(t, repo.Delete(ctx, gone.Slug), ErrNotFound)
}

func TestPostListOrderingAndVisibility(t *testing.T) {
	repo := newTestPostRepo(t)
	ctx := context.Background()

	mk := func(title, date, status string) {
		t.Helper()
		_, err := repo.Create(ctx, PostInput{
			Title: title, Content: "c", Author: "alice", Date: date, Status: status,
		})
		require.NoError(t, err)
	}

	mk("Oldest", "2023-01-01", StatusPublished)
	mk("Newest", "2024-06-01", StatusPublished)
	mk("Hidden Draft", "2024-07-01", StatusDraft)

	all := repo.All(ctx)
	require.Len(t, all, 3)
	assert.Equal(t, "hidden-draft", all[0].Slug)
	assert.Equal(t, "newest", all[1].Slug)
	assert.Equal(t, "oldest", all[2].Slug)

	published := repo.Published(ctx)
	require.Len(t, published, 2)
	assert.Equal(t, "newest", published[0].Slug)
	assert.Equal(t, "oldest", published[1].Slug)
}

func TestEnsureSeeded(t *testing.T) {
	repo := newTestPostRepo(t)
	ctx := context.Background()
	logger := zap.NewNop().Sugar()

	require.NoError(t, EnsureSeeded(ctx, repo, logger))
	first := repo.All(ctx)
	require.Len(t, first, 1)
	assert.True(t, first[0].IsPublished())

	// idempotent
	require.NoError(t, EnsureSeeded(ctx, repo, logger))
	assert.Len(t, repo.All(ctx), 1)
}
