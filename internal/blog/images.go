package blog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/inkhaven/inkhaven-backend/pkg/kv"
	"go.uber.org/zap"
)

// blobKeyPrefix namespaces the binary artifacts away from the collection
// documents in the same store.
const blobKeyPrefix = "imagefile:"

// ImageRepository owns the images metadata collection and the parallel
// binary blobs. Upload and delete touch both artifacts; a failure in between
// can orphan one of them, which is logged and tolerated as best-effort
// cleanup.
type ImageRepository struct {
	images collection[Image]
	store  kv.Store
	logger *zap.SugaredLogger
}

func NewImageRepository(store kv.Store, logger *zap.SugaredLogger, metrics StoreMetrics) *ImageRepository {
	return &ImageRepository{
		images: collection[Image]{store: store, key: keyImages, logger: logger, metrics: metrics},
		store:  store,
		logger: logger,
	}
}

func blobKey(filename string) string {
	return blobKeyPrefix + filename
}

// All returns every image's metadata, newest upload first.
func (r *ImageRepository) All(ctx context.Context) []Image {
	items := r.images.all(ctx)
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].UploadedAt != items[j].UploadedAt {
			return items[i].UploadedAt > items[j].UploadedAt
		}
		return items[i].ID < items[j].ID
	})
	return items
}

// Get looks up one image's metadata by ID.
func (r *ImageRepository) Get(ctx context.Context, id string) (Image, error) {
	m, _, err := r.images.load(ctx)
	if err != nil {
		return Image{}, err
	}
	img, ok := m[id]
	if !ok {
		return Image{}, fmt.Errorf("image %q: %w", id, ErrNotFound)
	}
	return img, nil
}

// Upload stores the binary blob first, then the metadata record. If the
// metadata write fails the blob is removed again so no half-uploaded image
// lingers; that removal itself failing is logged, not raised.
func (r *ImageRepository) Upload(ctx context.Context, in ImageUpload) (Image, error) {
	if err := in.Validate(); err != nil {
		return Image{}, err
	}

	id := newToken("img")
	filename := fmt.Sprintf("%s.%s", id, ExtensionForMime(in.MimeType))

	img := Image{
		ID:           id,
		Filename:     filename,
		OriginalName: in.OriginalName,
		MimeType:     in.MimeType,
		Size:         int64(len(in.Data)),
		UploadedAt:   nowRFC3339(),
		URL:          "/v1/images/serve?file=" + filename,
		Alt:          in.Alt,
		Description:  in.Description,
	}

	if _, err := r.store.Put(ctx, blobKey(filename), in.Data, kv.VersionAny); err != nil {
		return Image{}, fmt.Errorf("store image blob: %w", err)
	}

	err := r.images.mutate(ctx, "create", func(m map[string]Image) error {
		if _, exists := m[id]; exists {
			return fmt.Errorf("image %q already exists: %w", id, ErrConflict)
		}
		m[id] = img
		return nil
	})
	if err != nil {
		if delErr := r.store.Delete(ctx, blobKey(filename)); delErr != nil && !errors.Is(delErr, kv.ErrNotFound) {
			r.logger.Errorw("Orphaned image blob after failed metadata write",
				"filename", filename,
				"error", delErr,
			)
		}
		return Image{}, err
	}
	return img, nil
}

// Blob fetches the binary for a stored filename.
func (r *ImageRepository) Blob(ctx context.Context, filename string) ([]byte, error) {
	doc, err := r.store.Get(ctx, blobKey(filename))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("image file %q: %w", filename, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return doc.Data, nil
}

// Update merges alt text and description over the stored metadata. Nothing
// else about an image can change after upload.
func (r *ImageRepository) Update(ctx context.Context, id string, up ImageUpdate) (Image, error) {
	var updated Image
	err := r.images.mutate(ctx, "update", func(m map[string]Image) error {
		img, ok := m[id]
		if !ok {
			return fmt.Errorf("image %q: %w", id, ErrNotFound)
		}

		if up.Alt != nil {
			img.Alt = *up.Alt
		}
		if up.Description != nil {
			img.Description = *up.Description
		}

		m[id] = img
		updated = img
		return nil
	})
	if err != nil {
		return Image{}, err
	}
	return updated, nil
}

// Delete removes the metadata record and the blob. The blob going missing
// first is fine; failing to remove it after the metadata is gone leaves an
// orphan, which is logged so an operator can clean up.
func (r *ImageRepository) Delete(ctx context.Context, id string) error {
	img, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	err = r.images.mutate(ctx, "delete", func(m map[string]Image) error {
		if _, ok := m[id]; !ok {
			return fmt.Errorf("image %q: %w", id, ErrNotFound)
		}
		delete(m, id)
		return nil
	})
	if err != nil {
		return err
	}

	if err := r.store.Delete(ctx, blobKey(img.Filename)); err != nil && !errors.Is(err, kv.ErrNotFound) {
		r.logger.Errorw("Orphaned image blob after metadata delete",
			"id", id,
			"filename", img.Filename,
			"error", err,
		)
	}
	return nil
}

// Stats summarizes the image library for the admin dashboard.
func (r *ImageRepository) Stats(ctx context.Context) ImageStats {
	stats := ImageStats{ByType: make(map[string]int)}
	for _, img := range r.images.all(ctx) {
		stats.TotalImages++
		stats.TotalSize += img.Size
		stats.ByType[img.MimeType]++
	}
	stats.TotalSizeMB = fmt.Sprintf("%.2f", float64(stats.TotalSize)/(1024*1024))
	return stats
}
