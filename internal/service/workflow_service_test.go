package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GianDevelops/corex-portal/internal/config"
	"github.com/GianDevelops/corex-portal/internal/models"
	"github.com/GianDevelops/corex-portal/internal/workflow"
)

func upload(name, body string) models.MediaUpload {
	return models.MediaUpload{
		Filename:    name,
		ContentType: "image/png",
		Size:        int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}

func TestWorkflow_DeleteRemovesAssetsBeforeRecord(t *testing.T) {
	h := newTestHarness(t, nil)
	media := []string{"https://media.test/m1", "https://media.test/m2", "https://media.test/m3"}
	h.seed("post-1", models.PostStatusApproved, func(p *models.Post) {
		p.MediaURLs = media
		p.ArchivedBy = []string{designer.UserID}
	})

	detail, err := h.services.Workflow.Perform(context.Background(), designer, "post-1", workflow.Command{Action: workflow.ActionDelete})
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if detail != nil {
		t.Errorf("expected no detail after delete, got %+v", detail)
	}
	if h.postRepo.Snapshot("post-1") != nil {
		t.Error("post should be gone")
	}

	want := []string{
		"asset.delete:" + media[0],
		"asset.delete:" + media[1],
		"asset.delete:" + media[2],
		"post.delete:post-1",
	}
	got := h.calls.Entries()
	if len(got) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestWorkflow_DeleteAbortsWhenAnAssetCannotBeRemoved(t *testing.T) {
	h := newTestHarness(t, nil)
	h.seed("post-1", models.PostStatusApproved, func(p *models.Post) {
		p.MediaURLs = []string{"https://media.test/m1", "https://media.test/m2"}
		p.ArchivedBy = []string{designer.UserID}
	})
	h.store.DeleteFunc = func(ctx context.Context, url string) error {
		if strings.HasSuffix(url, "m2") {
			return errors.New("bucket unavailable")
		}
		return nil
	}

	_, err := h.services.Workflow.Perform(context.Background(), designer, "post-1", workflow.Command{Action: workflow.ActionDelete})
	wantKind(t, err, workflow.KindAsset)

	if h.postRepo.Snapshot("post-1") == nil {
		t.Fatal("post must survive a failed asset delete")
	}
	for _, c := range h.calls.Entries() {
		if strings.HasPrefix(c, "post.delete") {
			t.Errorf("record delete must not run, saw %q", c)
		}
	}
}

func TestWorkflow_DeleteSurvivesConcurrentSeenMarker(t *testing.T) {
	h := newTestHarness(t, nil)
	h.seed("post-1", models.PostStatusApproved, func(p *models.Post) {
		p.MediaURLs = []string{"https://media.test/m1"}
		p.ArchivedBy = []string{designer.UserID}
	})
	// The client opens the post while its media is being removed
	h.store.DeleteFunc = func(ctx context.Context, url string) error {
		_, err := h.postRepo.AddSeen(ctx, "post-1", client.UserID)
		return err
	}

	if _, err := h.services.Workflow.Perform(context.Background(), designer, "post-1", workflow.Command{Action: workflow.ActionDelete}); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if h.postRepo.Snapshot("post-1") != nil {
		t.Error("post should be gone")
	}
	if h.postRepo.ConflictCount != 0 {
		t.Errorf("a seen marker must not conflict with delete, got %d conflicts", h.postRepo.ConflictCount)
	}
	if n := len(h.store.Deleted); n != 1 {
		t.Errorf("expected the asset removed once, got %d", n)
	}
}

func TestWorkflow_DeleteRequiresArchive(t *testing.T) {
	h := newTestHarness(t, nil)
	h.seed("post-1", models.PostStatusApproved, nil)

	_, err := h.services.Workflow.Perform(context.Background(), designer, "post-1", workflow.Command{Action: workflow.ActionDelete})
	wantKind(t, err, workflow.KindValidation)
	if len(h.calls.Entries()) != 0 {
		t.Errorf("nothing should be touched, got %v", h.calls.Entries())
	}
}

func TestWorkflow_MediaRequestRoundTrip(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := context.Background()
	h.seed("post-1", models.PostStatusInProgress, nil)

	detail, err := h.services.Workflow.Perform(ctx, designer, "post-1", workflow.Command{Action: workflow.ActionRequestMedia})
	if err != nil {
		t.Fatalf("request media: %v", err)
	}
	if detail.Status != models.PostStatusAwaitingMedia {
		t.Fatalf("expected awaiting media, got %s", detail.Status)
	}

	detail, err = h.services.Workflow.UploadMedia(ctx, client, "post-1", []models.MediaUpload{upload("logo.png", "png-bytes")})
	if err != nil {
		t.Fatalf("upload media: %v", err)
	}
	if detail.Status != models.PostStatusInProgress {
		t.Fatalf("expected in progress after upload, got %s", detail.Status)
	}
	if len(detail.MediaURLs) != 1 || h.store.Count() != 1 {
		t.Fatalf("expected one stored asset, got urls=%v stored=%d", detail.MediaURLs, h.store.Count())
	}

	detail, err = h.services.Workflow.Perform(ctx, designer, "post-1", workflow.Command{Action: workflow.ActionSendToReview})
	if err != nil {
		t.Fatalf("send to review: %v", err)
	}
	if detail.Status != models.PostStatusPendingReview {
		t.Fatalf("expected pending review, got %s", detail.Status)
	}

	if got := h.notificationsFor(client.UserID); len(got) != 2 {
		t.Errorf("client should get 2 notifications, got %v", got)
	}
	if got := h.notificationsFor(designer.UserID); len(got) != 1 {
		t.Errorf("designer should get 1 notification, got %v", got)
	}
}

func TestWorkflow_UploadRejectedBeforeStoring(t *testing.T) {
	h := newTestHarness(t, nil)
	h.seed("post-1", models.PostStatusInProgress, nil)

	_, err := h.services.Workflow.UploadMedia(context.Background(), client, "post-1", []models.MediaUpload{upload("a.png", "x")})
	wantKind(t, err, workflow.KindValidation)
	if h.store.Count() != 0 {
		t.Errorf("nothing should be uploaded, got %d objects", h.store.Count())
	}
}

func TestWorkflow_UploadFailureCleansUp(t *testing.T) {
	h := newTestHarness(t, nil)
	h.seed("post-1", models.PostStatusAwaitingMedia, nil)
	h.store.UploadFunc = func(ctx context.Context, postID, filename string) error {
		if filename == "second.png" {
			return errors.New("quota exceeded")
		}
		return nil
	}

	_, err := h.services.Workflow.UploadMedia(context.Background(), client, "post-1",
		[]models.MediaUpload{upload("first.png", "1"), upload("second.png", "2")})
	wantKind(t, err, workflow.KindAsset)
	if h.store.Count() != 0 {
		t.Errorf("partial upload should be removed, %d objects left", h.store.Count())
	}
	if got := h.postRepo.Snapshot("post-1"); got.Status != models.PostStatusAwaitingMedia || len(got.MediaURLs) != 0 {
		t.Errorf("post should be untouched, got %s with %v", got.Status, got.MediaURLs)
	}
}

func TestWorkflow_StalledUploadTimesOut(t *testing.T) {
	cfg := testConfig()
	cfg.Workflow.OperationTimeout = 50 * time.Millisecond
	h := newTestHarness(t, cfg)
	h.seed("post-1", models.PostStatusAwaitingMedia, nil)
	h.store.UploadFunc = func(ctx context.Context, postID, filename string) error {
		<-ctx.Done()
		return ctx.Err()
	}

	done := make(chan error, 1)
	go func() {
		_, err := h.services.Workflow.UploadMedia(context.Background(), client, "post-1", []models.MediaUpload{upload("a.png", "x")})
		done <- err
	}()

	select {
	case err := <-done:
		wantKind(t, err, workflow.KindTimeout)
	case <-time.After(2 * time.Second):
		t.Fatal("upload did not give up on a stalled store")
	}
	if got := h.postRepo.Snapshot("post-1"); len(got.MediaURLs) != 0 {
		t.Errorf("post should be untouched, got %v", got.MediaURLs)
	}
}

func TestWorkflow_ConcurrentFeedbackKeepsEveryEntry(t *testing.T) {
	h := newTestHarness(t, nil)
	h.seed("post-1", models.PostStatusPendingReview, func(p *models.Post) {
		p.MediaURLs = []string{"https://media.test/m1"}
	})

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		actor := designer
		if i%2 == 0 {
			actor = client
		}
		wg.Add(1)
		go func(i int, actor models.Actor) {
			defer wg.Done()
			_, err := h.services.Workflow.Perform(context.Background(), actor, "post-1", workflow.Command{
				Action: workflow.ActionAddFeedback,
				Text:   fmt.Sprintf("comment %d", i),
			})
			errs <- err
		}(i, actor)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("feedback failed: %v", err)
		}
	}
	if got := len(h.postRepo.Snapshot("post-1").Feedback); got != writers {
		t.Errorf("expected %d feedback entries, got %d", writers, got)
	}
}

func TestWorkflow_FeedbackAfterApprovalIsRejected(t *testing.T) {
	h := newTestHarness(t, nil)
	h.seed("post-1", models.PostStatusApproved, nil)

	_, err := h.services.Workflow.Perform(context.Background(), client, "post-1", workflow.Command{Action: workflow.ActionAddFeedback, Text: "late"})
	wantKind(t, err, workflow.KindValidation)
}

func TestWorkflow_RetriesOnVersionConflict(t *testing.T) {
	h := newTestHarness(t, nil)
	h.seed("post-1", models.PostStatusInProgress, nil)

	first := true
	h.postRepo.SaveFunc = func(ctx context.Context, post *models.Post, expectedVersion int64) error {
		if first {
			first = false
			// Another writer edits the caption in between
			other := h.postRepo.Snapshot(post.ID)
			other.Caption = "edited elsewhere"
			other.Version++
			h.postRepo.Put(other)
		}
		return nil
	}

	detail, err := h.services.Workflow.Perform(context.Background(), designer, "post-1", workflow.Command{Action: workflow.ActionRequestMedia})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if detail.Status != models.PostStatusAwaitingMedia {
		t.Errorf("expected awaiting media, got %s", detail.Status)
	}
	if detail.Caption != "edited elsewhere" {
		t.Errorf("the concurrent edit must be preserved, got caption %q", detail.Caption)
	}
	if h.postRepo.ConflictCount != 1 {
		t.Errorf("expected 1 conflict, got %d", h.postRepo.ConflictCount)
	}
}

func TestWorkflow_ConflictRetriesExhausted(t *testing.T) {
	h := newTestHarness(t, nil)
	h.seed("post-1", models.PostStatusInProgress, nil)
	h.postRepo.SaveFunc = func(ctx context.Context, post *models.Post, expectedVersion int64) error {
		other := h.postRepo.Snapshot(post.ID)
		other.Version++
		h.postRepo.Put(other)
		return nil
	}

	_, err := h.services.Workflow.Perform(context.Background(), designer, "post-1", workflow.Command{Action: workflow.ActionRequestMedia})
	wantKind(t, err, workflow.KindConflict)
	if h.postRepo.SaveCalls != 4 {
		t.Errorf("expected 4 save attempts, got %d", h.postRepo.SaveCalls)
	}
}

func TestWorkflow_PersistenceErrorsAreClassified(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want workflow.Kind
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: workflow.KindTimeout},
		{name: "connection", err: errors.New("connection refused"), want: workflow.KindPersistence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHarness(t, nil)
			h.seed("post-1", models.PostStatusInProgress, nil)
			h.postRepo.SaveFunc = func(ctx context.Context, post *models.Post, expectedVersion int64) error {
				return tt.err
			}

			_, err := h.services.Workflow.Perform(context.Background(), designer, "post-1", workflow.Command{Action: workflow.ActionRequestMedia})
			wantKind(t, err, tt.want)
			if msg := workflow.PublicMessage(err); strings.Contains(msg, tt.err.Error()) {
				t.Errorf("public message leaks the cause: %q", msg)
			}
		})
	}
}

func TestWorkflow_NotificationFailureDoesNotFailTransition(t *testing.T) {
	h := newTestHarness(t, nil)
	h.seed("post-1", models.PostStatusPendingReview, func(p *models.Post) {
		p.MediaURLs = []string{"https://media.test/m1"}
	})
	h.noteRepo.CreateFunc = func(ctx context.Context, n *models.Notification) error {
		return errors.New("notifications table locked")
	}

	detail, err := h.services.Workflow.Perform(context.Background(), client, "post-1", workflow.Command{Action: workflow.ActionApprove})
	if err != nil {
		t.Fatalf("approve should succeed, got %v", err)
	}
	if detail.Status != models.PostStatusApproved {
		t.Errorf("expected approved, got %s", detail.Status)
	}
	if got := h.notificationsFor(designer.UserID); len(got) != 0 {
		t.Errorf("no notification should be stored, got %v", got)
	}
}

func TestWorkflow_FeedbackPolicyRequestsRevision(t *testing.T) {
	cfg := testConfig()
	cfg.Workflow.FeedbackPolicy = config.FeedbackPolicyRequestRevision
	h := newTestHarness(t, cfg)
	h.seed("post-1", models.PostStatusPendingReview, func(p *models.Post) {
		p.MediaURLs = []string{"https://media.test/m1"}
	})

	detail, err := h.services.Workflow.Perform(context.Background(), client, "post-1", workflow.Command{
		Action: workflow.ActionAddFeedback,
		Text:   "Please use the darker logo",
	})
	if err != nil {
		t.Fatalf("feedback failed: %v", err)
	}
	if detail.Status != models.PostStatusRevisionsRequested {
		t.Errorf("expected revisions requested, got %s", detail.Status)
	}
	if detail.RevisionCount != 1 || len(detail.Feedback) != 1 {
		t.Errorf("expected 1 revision and 1 comment, got %d and %d", detail.RevisionCount, len(detail.Feedback))
	}
	if got := h.notificationsFor(designer.UserID); len(got) != 2 {
		t.Errorf("designer should hear about the comment and the revision, got %v", got)
	}
}

func TestWorkflow_AccessAndLookupErrors(t *testing.T) {
	h := newTestHarness(t, nil)
	h.seed("post-1", models.PostStatusInProgress, nil)

	_, err := h.services.Workflow.Perform(context.Background(), designer, "missing", workflow.Command{Action: workflow.ActionRequestMedia})
	wantKind(t, err, workflow.KindNotFound)

	_, err = h.services.Workflow.Perform(context.Background(), stranger, "post-1", workflow.Command{Action: workflow.ActionMarkSeen})
	wantKind(t, err, workflow.KindPermission)
}

func TestWorkflow_MarkSeenAndArchive(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := context.Background()
	stale := time.Now().Add(-time.Hour).UTC()
	h.seed("post-1", models.PostStatusApproved, func(p *models.Post) {
		p.Feedback = []models.Feedback{{AuthorID: designer.UserID, Text: "final version attached"}}
		p.SeenBy = []string{designer.UserID}
		p.UpdatedAt = stale
	})

	detail, err := h.services.Workflow.Perform(ctx, client, "post-1", workflow.Command{Action: workflow.ActionMarkSeen})
	if err != nil {
		t.Fatalf("mark seen: %v", err)
	}
	if detail.HasUnread {
		t.Error("post should be read after mark seen")
	}
	if !h.postRepo.Snapshot("post-1").UpdatedAt.After(stale) {
		t.Error("mark seen should refresh updated_at")
	}
	version := h.postRepo.Snapshot("post-1").Version

	if _, err := h.services.Workflow.Perform(ctx, client, "post-1", workflow.Command{Action: workflow.ActionMarkSeen}); err != nil {
		t.Fatalf("second mark seen: %v", err)
	}
	if h.postRepo.Snapshot("post-1").Version != version {
		t.Error("marking seen twice must not write")
	}

	detail, err = h.services.Workflow.Perform(ctx, client, "post-1", workflow.Command{Action: workflow.ActionArchive})
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !detail.Archived {
		t.Error("post should be archived for the client")
	}
	if h.postRepo.Snapshot("post-1").ArchivedFor(designer.UserID) {
		t.Error("archive is per user")
	}
}
