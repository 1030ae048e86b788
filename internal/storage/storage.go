// Package storage keeps place images in an S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/segmentio/ksuid"
)

// ObjectStorage is the subset of bucket operations the image upload uses.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// ImageExt returns the object extension for an accepted image content
// type and false for anything else.
func ImageExt(contentType string) (string, bool) {
	ext, ok := allowedImageTypes[strings.ToLower(strings.TrimSpace(contentType))]
	return ext, ok
}

// PlaceImageKey builds lugares/<id>/<ksuid><ext>. KSUIDs sort by creation
// time so a prefix listing comes back in upload order.
func PlaceImageKey(placeID uint64, ext string) string {
	return path.Join("lugares", fmt.Sprint(placeID), ksuid.New().String()+ext)
}
