package service

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/GianDevelops/corex-portal/internal/models"
	"github.com/GianDevelops/corex-portal/internal/validation"
	"github.com/GianDevelops/corex-portal/internal/workflow"
	"github.com/google/uuid"
)

// ImportIdeas reads NDJSON ideas and stores every valid line in one batch.
// Invalid lines are reported with their line number and skipped.
func (s *postService) ImportIdeas(ctx context.Context, actor models.Actor, r io.Reader) (*models.ImportResult, error) {
	const op = "import_ideas"
	startTime := time.Now()

	scanner := bufio.NewScanner(r)
	// Increase buffer size for long lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	validator := validation.NewValidator()
	if actor.Role == models.RoleDesigner {
		lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.Workflow.OperationTimeout)
		clients, err := s.repos.User.ListByRole(lookupCtx, models.RoleClient)
		cancel()
		if err != nil {
			return nil, workflow.Wrap(workflow.KindPersistence, op, err)
		}
		ids := make([]string, 0, len(clients))
		for _, c := range clients {
			ids = append(ids, c.ID)
		}
		validator.SetClientIDCache(ids)
	}

	result := &models.ImportResult{PostIDs: []string{}}
	var batch []*models.Post
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		if strings.TrimSpace(line) == "" {
			continue
		}

		result.Total++
		if s.cfg.Import.MaxLines > 0 && result.Total > s.cfg.Import.MaxLines {
			return nil, workflow.Validation(op, fmt.Sprintf("an import may contain at most %d ideas", s.cfg.Import.MaxLines))
		}

		var idea models.IdeaNDJSON
		if err := json.Unmarshal([]byte(line), &idea); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, models.ValidationError{
				Line:    lineNum,
				Field:   "json",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}

		if errs := validator.ValidateIdea(&idea, actor.Role); len(errs) > 0 {
			result.Failed++
			for _, e := range errs {
				result.Errors = append(result.Errors, models.ValidationError{
					Line:    lineNum,
					Field:   e.Field,
					Message: e.Message,
					Value:   e.Value,
				})
			}
			continue
		}

		post, err := s.engine.NewPost(uuid.New().String(), actor, &models.CreatePostRequest{
			ClientID:  idea.ClientID,
			Idea:      true,
			Caption:   idea.Caption,
			Hashtags:  idea.Hashtags,
			Platforms: idea.Platforms,
		})
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, models.ValidationError{
				Line:    lineNum,
				Field:   "idea",
				Message: workflow.PublicMessage(err),
			})
			continue
		}

		batch = append(batch, post)
		validator.AddCaption(idea.Caption)
	}
	if err := scanner.Err(); err != nil {
		return nil, workflow.Validation(op, fmt.Sprintf("unreadable import file: %v", err))
	}

	if len(batch) > 0 {
		insertCtx, cancel := context.WithTimeout(ctx, s.cfg.Workflow.OperationTimeout)
		inserted, err := s.repos.Post.BatchCreate(insertCtx, batch)
		cancel()
		if err != nil {
			s.log.Error().Err(err).Int("batch_size", len(batch)).Msg("Batch insert failed")
			return nil, workflow.Wrap(workflow.KindPersistence, op, err)
		}
		result.Successful = inserted
		for _, p := range batch {
			result.PostIDs = append(result.PostIDs, p.ID)
		}
		s.notify.Notify(ctx, importIntents(batch, actor))
	}

	s.log.Info().
		Str("actor", actor.UserID).
		Int("total", result.Total).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int64("duration_ms", time.Since(startTime).Milliseconds()).
		Msg("Idea import completed")

	return result, nil
}

// importIntents sends one summary per counterpart instead of one per idea
func importIntents(posts []*models.Post, actor models.Actor) []models.NotificationIntent {
	type tally struct {
		first string
		count int
	}
	byRecipient := map[string]*tally{}
	var order []string
	for _, p := range posts {
		recipient := p.ClientID
		if actor.UserID == p.ClientID {
			recipient = p.DesignerID
		}
		if recipient == "" || recipient == actor.UserID {
			continue
		}
		t, ok := byRecipient[recipient]
		if !ok {
			t = &tally{first: p.ID}
			byRecipient[recipient] = t
			order = append(order, recipient)
		}
		t.count++
	}

	name := strings.TrimSpace(actor.DisplayName)
	if name == "" {
		name = "Someone"
	}
	intents := make([]models.NotificationIntent, 0, len(order))
	for _, recipient := range order {
		t := byRecipient[recipient]
		noun := "ideas"
		if t.count == 1 {
			noun = "idea"
		}
		intents = append(intents, models.NotificationIntent{
			RecipientID: recipient,
			PostID:      t.first,
			Message:     fmt.Sprintf("%s added %d new %s", name, t.count, noun),
		})
	}
	return intents
}
