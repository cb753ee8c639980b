// Package storage keeps the media files attached to posts.
package storage

import (
	"context"
	"errors"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrForeignURL is returned for a URL that does not point into the store
var ErrForeignURL = errors.New("url is not managed by this store")

// AssetStore uploads and removes post media
type AssetStore interface {
	// Upload stores r under the post and returns the public URL of the asset
	Upload(ctx context.Context, postID, filename, contentType string, r io.Reader) (string, error)
	// Delete removes the asset behind url. Missing assets are not an error.
	Delete(ctx context.Context, url string) error
}

// objectKey builds a collision free key for an uploaded file
func objectKey(postID, filename, contentType string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/"))))
	if ext == "" || len(ext) > 8 {
		ext = ""
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}
	return "posts/" + postID + "/" + uuid.NewString() + ext
}

// keyFromURL maps a public URL back to its object key
func keyFromURL(baseURL, url string) (string, error) {
	prefix := strings.TrimRight(baseURL, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", ErrForeignURL
	}
	key := strings.TrimPrefix(url, prefix)
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return "", ErrForeignURL
	}
	return key, nil
}

func publicURL(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + "/" + key
}
