package blog

import (
	"fmt"
	"path"
	"strings"
)

// Image is the metadata record for an uploaded image. The binary itself is a
// separate blob in the content store keyed by the derived filename; the two
// artifacts share the image ID and must be deleted together.
type Image struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"size"`
	UploadedAt   string `json:"uploadedAt"`
	URL          string `json:"url"`
	Alt          string `json:"alt,omitempty"`
	Description  string `json:"description,omitempty"`
}

// ImageUpload carries the caller-supplied fields for uploading an image.
type ImageUpload struct {
	OriginalName string
	MimeType     string
	Data         []byte
	Alt          string
	Description  string
}

// ImageUpdate carries a partial metadata update; only alt text and the
// description can change after upload.
type ImageUpdate struct {
	Alt         *string
	Description *string
}

// ImageStats summarizes the image library for the admin dashboard.
type ImageStats struct {
	TotalImages int            `json:"totalImages"`
	TotalSize   int64          `json:"totalSize"`
	TotalSizeMB string         `json:"totalSizeMB"`
	ByType      map[string]int `json:"byType"`
}

var extByMime = map[string]string{
	"image/jpeg":    "jpg",
	"image/jpg":     "jpg",
	"image/png":     "png",
	"image/gif":     "gif",
	"image/webp":    "webp",
	"image/svg+xml": "svg",
}

var mimeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
}

// AllowedImageType reports whether the MIME type is accepted for upload.
func AllowedImageType(mimeType string) bool {
	_, ok := extByMime[mimeType]
	return ok
}

// ExtensionForMime returns the file extension for a MIME type, or "bin".
func ExtensionForMime(mimeType string) string {
	if ext, ok := extByMime[mimeType]; ok {
		return ext
	}
	return "bin"
}

// MimeForFilename resolves a stored filename's extension to the MIME type
// used when serving the binary. Unknown extensions fall back to
// application/octet-stream.
func MimeForFilename(filename string) string {
	if mime, ok := mimeByExt[strings.ToLower(path.Ext(filename))]; ok {
		return mime
	}
	return "application/octet-stream"
}

// Validate checks the fields required for uploading an image.
func (in ImageUpload) Validate() error {
	if strings.TrimSpace(in.OriginalName) == "" {
		return fmt.Errorf("%w: original filename is required", ErrValidation)
	}
	if !AllowedImageType(in.MimeType) {
		return fmt.Errorf("%w: unsupported image type %q", ErrValidation, in.MimeType)
	}
	if len(in.Data) == 0 {
		return fmt.Errorf("%w: empty image payload", ErrValidation)
	}
	return nil
}
