package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// LocalStore keeps media on the local filesystem, for development
type LocalStore struct {
	root    string
	baseURL string
	log     zerolog.Logger
}

// NewLocalStore creates root if needed. Files are expected to be served
// from baseURL, see the /media route.
func NewLocalStore(root, baseURL string, log zerolog.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create local storage directory: %w", err)
	}
	return &LocalStore{
		root:    root,
		baseURL: baseURL,
		log:     log.With().Str("component", "local_store").Logger(),
	}, nil
}

// Root is the directory files are written to
func (s *LocalStore) Root() string {
	return s.root
}

// Upload writes the file below root
func (s *LocalStore) Upload(ctx context.Context, postID, filename, contentType string, r io.Reader) (string, error) {
	key := objectKey(postID, filename, contentType)
	path := filepath.Join(s.root, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create media directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("write to local storage: %w", err)
	}
	n, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write to local storage: %w", err)
	}

	s.log.Info().Str("path", path).Int64("bytes", n).Msg("Media saved to local storage")
	return publicURL(s.baseURL, key), nil
}

// Delete removes the file behind url
func (s *LocalStore) Delete(ctx context.Context, url string) error {
	key, err := keyFromURL(s.baseURL, url)
	if err != nil {
		s.log.Warn().Str("url", url).Msg("Skipping delete of media not stored locally")
		return nil
	}
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete from local storage: %w", err)
	}
	s.log.Info().Str("path", path).Msg("Media deleted from local storage")
	return nil
}
