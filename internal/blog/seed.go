package blog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

const welcomeContent = `# Welcome to your new blog

This is your first post. It was created automatically when the backend
started against an empty store.

## Getting started

- Log in to the admin area to write posts, moderate comments and manage
  images.
- Edit or delete this post whenever you are ready.

Happy writing!
`

// EnsureSeeded writes a welcome post when the posts collection is empty so a
// fresh deployment has something to show. Running it against a populated
// store is a no-op.
func EnsureSeeded(ctx context.Context, posts *PostRepository, logger *zap.SugaredLogger) error {
	if len(posts.All(ctx)) > 0 {
		return nil
	}

	_, err := posts.Create(ctx, PostInput{
		Title:       "Welcome to Inkhaven",
		Description: "A first post to get you started.",
		Author:      "admin",
		Tags:        []string{"welcome"},
		Status:      StatusPublished,
		Content:     welcomeContent,
	})
	if err != nil {
		// Another instance may have seeded between our check and the write.
		if errors.Is(err, ErrConflict) {
			return nil
		}
		return fmt.Errorf("seed welcome post: %w", err)
	}

	logger.Infow("Seeded store with welcome post")
	return nil
}
