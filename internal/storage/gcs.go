package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
	"github.com/rs/zerolog"
)

// GCSStore keeps media in a Cloud Storage bucket
type GCSStore struct {
	client  *storage.Client
	bucket  string
	baseURL string
	log     zerolog.Logger
}

// NewGCSStore creates a store writing to bucket. baseURL is the public prefix
// objects are served from, usually https://storage.googleapis.com/<bucket>.
func NewGCSStore(client *storage.Client, bucket, baseURL string, log zerolog.Logger) *GCSStore {
	if baseURL == "" {
		baseURL = "https://storage.googleapis.com/" + bucket
	}
	return &GCSStore{
		client:  client,
		bucket:  bucket,
		baseURL: baseURL,
		log:     log.With().Str("component", "gcs_store").Str("bucket", bucket).Logger(),
	}
}

func retryOpts(ctx context.Context, log zerolog.Logger, op, key string) []retry.Option {
	return []retry.Option{
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(10 * time.Second),
		retry.MaxJitter(time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			log.Info().Uint("attempt", n).Str("key", key).Err(err).Msgf("Retrying %s after error", op)
		}),
	}
}

// Upload writes the file to the bucket, retrying transient failures
func (s *GCSStore) Upload(ctx context.Context, postID, filename, contentType string, r io.Reader) (string, error) {
	// Buffered so the write can be replayed on retry
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	key := objectKey(postID, filename, contentType)

	err = retry.Do(
		func() error {
			w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
			w.ContentType = contentType
			if _, writeErr := io.Copy(w, bytes.NewReader(data)); writeErr != nil {
				if closeErr := w.Close(); closeErr != nil {
					s.log.Warn().Err(closeErr).Msg("Failed to close writer after error")
				}
				return fmt.Errorf("write to storage: %w", writeErr)
			}
			if closeErr := w.Close(); closeErr != nil {
				return fmt.Errorf("close storage writer: %w", closeErr)
			}
			return nil
		},
		retryOpts(ctx, s.log, "upload", key)...,
	)
	if err != nil {
		return "", fmt.Errorf("upload after retries: %w", err)
	}

	s.log.Info().Str("key", key).Int("bytes", len(data)).Msg("Media uploaded")
	return publicURL(s.baseURL, key), nil
}

// Delete removes the object behind url. Objects outside the bucket are skipped.
func (s *GCSStore) Delete(ctx context.Context, url string) error {
	key, err := keyFromURL(s.baseURL, url)
	if err != nil {
		s.log.Warn().Str("url", url).Msg("Skipping delete of media not stored in bucket")
		return nil
	}

	err = retry.Do(
		func() error {
			if deleteErr := s.client.Bucket(s.bucket).Object(key).Delete(ctx); deleteErr != nil {
				if errors.Is(deleteErr, storage.ErrObjectNotExist) {
					return retry.Unrecoverable(deleteErr)
				}
				return fmt.Errorf("delete from storage: %w", deleteErr)
			}
			return nil
		},
		retryOpts(ctx, s.log, "delete", key)...,
	)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete after retries: %w", err)
	}

	s.log.Info().Str("key", key).Msg("Media deleted")
	return nil
}
