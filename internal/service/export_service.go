package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/GianDevelops/corex-portal/internal/models"
	"github.com/GianDevelops/corex-portal/internal/workflow"
)

// Export formats
const (
	FormatNDJSON = "ndjson"
	FormatJSON   = "json"
	FormatCSV    = "csv"
)

// ExportContentType returns the media type for an export format
func ExportContentType(format string) (string, bool) {
	switch format {
	case FormatNDJSON:
		return "application/x-ndjson", true
	case FormatJSON:
		return "application/json", true
	case FormatCSV:
		return "text/csv", true
	default:
		return "", false
	}
}

var csvHeader = []string{
	"id", "client_id", "designer_id", "status", "platforms", "caption", "hashtags",
	"media_urls", "revision_count", "feedback_count", "scheduled_at", "created_at", "updated_at",
}

// Export streams every post actor is a party to in the given format
func (s *postService) Export(ctx context.Context, actor models.Actor, w io.Writer, format string) (int, error) {
	const op = "export_posts"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Workflow.ExportTimeout)
	defer cancel()

	s.log.Info().Str("format", format).Str("actor", actor.UserID).Msg("Starting posts export")

	var count int
	var err error
	switch format {
	case FormatNDJSON:
		count, err = s.streamNDJSON(ctx, actor, w)
	case FormatJSON:
		count, err = s.streamJSON(ctx, actor, w)
	case FormatCSV:
		count, err = s.streamCSV(ctx, actor, w)
	default:
		return 0, workflow.Validation(op, fmt.Sprintf("unsupported format: %s", format))
	}
	if err != nil {
		return count, workflow.Wrap(workflow.KindPersistence, op, err)
	}

	s.log.Info().Int("count", count).Str("format", format).Msg("Posts export completed")
	return count, nil
}

func (s *postService) streamNDJSON(ctx context.Context, actor models.Actor, w io.Writer) (int, error) {
	flusher, _ := w.(http.Flusher)
	count := 0

	err := s.repos.Post.StreamForUser(ctx, actor, func(post *models.Post) error {
		data, err := json.Marshal(post.ViewFor(actor.Role))
		if err != nil {
			return err
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return err
		}
		count++

		// Flush every 100 records for streaming
		if count%100 == 0 && flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	return count, err
}

func (s *postService) streamJSON(ctx context.Context, actor models.Actor, w io.Writer) (int, error) {
	if _, err := w.Write([]byte("[")); err != nil {
		return 0, err
	}
	count := 0

	err := s.repos.Post.StreamForUser(ctx, actor, func(post *models.Post) error {
		if count > 0 {
			if _, err := w.Write([]byte(",")); err != nil {
				return err
			}
		}
		data, err := json.Marshal(post.ViewFor(actor.Role))
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		count++
		return nil
	})

	if _, werr := w.Write([]byte("]")); werr != nil && err == nil {
		err = werr
	}
	return count, err
}

func (s *postService) streamCSV(ctx context.Context, actor models.Actor, w io.Writer) (int, error) {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return 0, err
	}
	count := 0

	err := s.repos.Post.StreamForUser(ctx, actor, func(post *models.Post) error {
		scheduled := ""
		if post.ScheduledAt != nil {
			scheduled = post.ScheduledAt.UTC().Format(time.RFC3339)
		}
		count++
		return writer.Write([]string{
			post.ID,
			post.ClientID,
			post.DesignerID,
			string(post.Status),
			strings.Join(post.Platforms, "|"),
			post.Caption,
			post.Hashtags,
			strings.Join(post.MediaURLs, "|"),
			strconv.Itoa(post.RevisionCount),
			strconv.Itoa(len(post.Feedback)),
			scheduled,
			post.CreatedAt.UTC().Format(time.RFC3339),
			post.UpdatedAt.UTC().Format(time.RFC3339),
		})
	})

	writer.Flush()
	if err == nil {
		err = writer.Error()
	}
	return count, err
}
