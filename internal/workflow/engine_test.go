package workflow

import (
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/GianDevelops/corex-portal/internal/models"
)

var (
	designer = models.Actor{UserID: "designer-1", Role: models.RoleDesigner, DisplayName: "Dana"}
	client   = models.Actor{UserID: "client-1", Role: models.RoleClient, DisplayName: "Chris"}
	stranger = models.Actor{UserID: "client-2", Role: models.RoleClient, DisplayName: "Sam"}
	fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func newTestEngine(policy Policy) *Engine {
	return NewEngine(policy).WithClock(func() time.Time { return fixedNow })
}

func newPost(status models.PostStatus) *models.Post {
	return &models.Post{
		ID:         "post-1",
		ClientID:   client.UserID,
		DesignerID: designer.UserID,
		Status:     status,
		Platforms:  []string{"instagram"},
		Caption:    "Spring launch teaser",
		MediaURLs:  []string{},
		Feedback:   []models.Feedback{},
		SeenBy:     []string{},
		ArchivedBy: []string{},
		CreatedAt:  fixedNow.Add(-time.Hour),
		UpdatedAt:  fixedNow.Add(-time.Hour),
	}
}

func TestSendToReview_RequiresMedia(t *testing.T) {
	engine := newTestEngine(DefaultPolicy())
	post := newPost(models.PostStatusInProgress)

	for _, actor := range []models.Actor{designer, client} {
		_, err := engine.Apply(post, Command{Action: ActionSendToReview, Actor: actor})
		if !IsKind(err, KindValidation) {
			t.Fatalf("Expected validation error for %s, got %v", actor.Role, err)
		}
		if PublicMessage(err) != "media required" {
			t.Errorf("Expected 'media required', got %q", PublicMessage(err))
		}
	}
	if post.Status != models.PostStatusInProgress {
		t.Errorf("Post must be unchanged, got status %s", post.Status)
	}
}

func TestSendToReview_WithMedia(t *testing.T) {
	engine := newTestEngine(DefaultPolicy())
	post := newPost(models.PostStatusRevisionsRequested)
	post.MediaURLs = []string{"https://cdn/a.png"}

	fx, err := engine.Apply(post, Command{Action: ActionSendToReview, Actor: designer})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if fx.Post.Status != models.PostStatusPendingReview {
		t.Errorf("Expected pending review, got %s", fx.Post.Status)
	}
	if len(fx.Notifications) != 1 || fx.Notifications[0].RecipientID != client.UserID {
		t.Errorf("Expected one notification for the client, got %+v", fx.Notifications)
	}
	if !fx.Post.UpdatedAt.Equal(fixedNow) {
		t.Errorf("Expected updatedAt refreshed, got %v", fx.Post.UpdatedAt)
	}
}

func TestRequestRevision_Cap(t *testing.T) {
	engine := newTestEngine(DefaultPolicy())

	tests := []struct {
		name      string
		count     int
		wantErr   bool
		wantCount int
	}{
		{"first revision", 0, false, 1},
		{"second revision", 1, false, 2},
		{"cap reached", 2, true, 2},
		{"beyond cap", 5, true, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			post := newPost(models.PostStatusPendingReview)
			post.RevisionCount = tt.count

			fx, err := engine.Apply(post, Command{Action: ActionRequestRevision, Actor: client})
			if tt.wantErr {
				if !IsKind(err, KindValidation) {
					t.Fatalf("Expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Apply failed: %v", err)
			}
			if fx.Post.RevisionCount != tt.wantCount {
				t.Errorf("Expected revision count %d, got %d", tt.wantCount, fx.Post.RevisionCount)
			}
			if fx.Post.Status != models.PostStatusRevisionsRequested {
				t.Errorf("Expected revisions requested, got %s", fx.Post.Status)
			}
			if len(fx.Notifications) != 1 || fx.Notifications[0].RecipientID != designer.UserID {
				t.Errorf("Expected designer notification, got %+v", fx.Notifications)
			}
		})
	}
}

func TestRequestRevision_ConfigurableCap(t *testing.T) {
	engine := newTestEngine(Policy{RevisionCap: 3})
	post := newPost(models.PostStatusPendingReview)
	post.RevisionCount = 2

	if _, err := engine.Apply(post, Command{Action: ActionRequestRevision, Actor: client}); err != nil {
		t.Errorf("Expected third revision to be allowed with cap 3, got %v", err)
	}
}

func TestApproveAfterCap(t *testing.T) {
	engine := newTestEngine(DefaultPolicy())
	post := newPost(models.PostStatusPendingReview)
	post.RevisionCount = 2

	if _, err := engine.Apply(post, Command{Action: ActionRequestRevision, Actor: client}); !IsKind(err, KindValidation) {
		t.Fatalf("Expected revise to be rejected, got %v", err)
	}

	fx, err := engine.Apply(post, Command{Action: ActionApprove, Actor: client})
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if fx.Post.Status != models.PostStatusApproved {
		t.Errorf("Expected approved, got %s", fx.Post.Status)
	}
}

func TestMediaRoundTrip(t *testing.T) {
	engine := newTestEngine(DefaultPolicy())
	post := newPost(models.PostStatusInProgress)

	fx, err := engine.Apply(post, Command{Action: ActionRequestMedia, Actor: designer})
	if err != nil {
		t.Fatalf("requestMedia failed: %v", err)
	}
	if fx.Post.Status != models.PostStatusAwaitingMedia {
		t.Fatalf("Expected awaiting media, got %s", fx.Post.Status)
	}
	if len(fx.Notifications) != 1 || fx.Notifications[0].RecipientID != client.UserID {
		t.Fatalf("Expected one client notification, got %+v", fx.Notifications)
	}

	fx, err = engine.Apply(fx.Post, Command{Action: ActionUploadMedia, Actor: client, MediaURLs: []string{"url1"}})
	if err != nil {
		t.Fatalf("uploadMedia failed: %v", err)
	}
	if fx.Post.Status != models.PostStatusInProgress {
		t.Errorf("Expected in progress, got %s", fx.Post.Status)
	}
	if !reflect.DeepEqual(fx.Post.MediaURLs, []string{"url1"}) {
		t.Errorf("Expected [url1], got %v", fx.Post.MediaURLs)
	}
	if len(fx.Notifications) != 1 || fx.Notifications[0].RecipientID != designer.UserID {
		t.Errorf("Expected one designer notification, got %+v", fx.Notifications)
	}
}

func TestUploadMedia_RequiresItems(t *testing.T) {
	engine := newTestEngine(DefaultPolicy())
	post := newPost(models.PostStatusAwaitingMedia)

	for _, urls := range [][]string{nil, {}, {""}, {"a", " "}} {
		if _, err := engine.Apply(post, Command{Action: ActionUploadMedia, Actor: client, MediaURLs: urls}); !IsKind(err, KindValidation) {
			t.Errorf("Expected validation error for %v, got %v", urls, err)
		}
	}
}

func TestAddFeedback_ResetsSeenBy(t *testing.T) {
	engine := newTestEngine(DefaultPolicy())
	post := newPost(models.PostStatusPendingReview)
	post.SeenBy = []string{client.UserID, designer.UserID, "someone-else"}

	fx, err := engine.Apply(post, Command{Action: ActionAddFeedback, Actor: designer, Text: "  Updated the colours  "})
	if err != nil {
		t.Fatalf("addFeedback failed: %v", err)
	}
	if !reflect.DeepEqual(fx.Post.SeenBy, []string{designer.UserID}) {
		t.Errorf("Expected seenBy == {designer}, got %v", fx.Post.SeenBy)
	}
	if fx.Mutation != MutationAppendFeedback {
		t.Errorf("Expected append mutation, got %v", fx.Mutation)
	}
	if fx.Feedback == nil || fx.Feedback.Text != "Updated the colours" || fx.Feedback.AuthorRole != models.RoleDesigner {
		t.Errorf("Unexpected feedback entry: %+v", fx.Feedback)
	}
	if fx.Post.Status != models.PostStatusPendingReview {
		t.Errorf("Feedback must not change status by default, got %s", fx.Post.Status)
	}
	if fx.FollowUp != nil {
		t.Errorf("Expected no follow-up under default policy")
	}
	if len(fx.Notifications) != 1 || fx.Notifications[0].RecipientID != client.UserID {
		t.Errorf("Expected client notification, got %+v", fx.Notifications)
	}
	if len(post.Feedback) != 0 {
		t.Errorf("Input post must not be mutated")
	}
}

func TestAddFeedback_Rejections(t *testing.T) {
	engine := newTestEngine(DefaultPolicy())

	approved := newPost(models.PostStatusApproved)
	if _, err := engine.Apply(approved, Command{Action: ActionAddFeedback, Actor: client, Text: "late"}); !IsKind(err, KindValidation) {
		t.Errorf("Expected validation error on approved post, got %v", err)
	}

	open := newPost(models.PostStatusInProgress)
	if _, err := engine.Apply(open, Command{Action: ActionAddFeedback, Actor: client, Text: "   "}); !IsKind(err, KindValidation) {
		t.Errorf("Expected validation error for blank comment, got %v", err)
	}
	if _, err := engine.Apply(open, Command{Action: ActionAddFeedback, Actor: stranger, Text: "hi"}); !IsKind(err, KindPermission) {
		t.Errorf("Expected permission error for stranger, got %v", err)
	}
}

func TestAddFeedback_RevisionPolicy(t *testing.T) {
	engine := newTestEngine(Policy{RevisionCap: 2, ClientFeedbackRequestsRevision: true})

	tests := []struct {
		name       string
		actor      models.Actor
		status     models.PostStatus
		count      int
		wantFollow bool
	}{
		{"client on pending review", client, models.PostStatusPendingReview, 0, true},
		{"client at cap", client, models.PostStatusPendingReview, 2, false},
		{"designer on pending review", designer, models.PostStatusPendingReview, 0, false},
		{"client while in progress", client, models.PostStatusInProgress, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			post := newPost(tt.status)
			post.RevisionCount = tt.count
			fx, err := engine.Apply(post, Command{Action: ActionAddFeedback, Actor: tt.actor, Text: "note"})
			if err != nil {
				t.Fatalf("addFeedback failed: %v", err)
			}
			if (fx.FollowUp != nil) != tt.wantFollow {
				t.Fatalf("FollowUp = %+v, want present=%v", fx.FollowUp, tt.wantFollow)
			}
			if fx.FollowUp != nil && fx.FollowUp.Action != ActionRequestRevision {
				t.Errorf("Expected request revision follow-up, got %s", fx.FollowUp.Action)
			}
			if fx.Post.RevisionCount != tt.count {
				t.Errorf("Feedback itself must not touch revision count")
			}
		})
	}
}

func TestArchiveAndDelete(t *testing.T) {
	engine := newTestEngine(DefaultPolicy())

	inProgress := newPost(models.PostStatusInProgress)
	if _, err := engine.Apply(inProgress, Command{Action: ActionArchive, Actor: designer}); !IsKind(err, KindValidation) {
		t.Errorf("Expected archive to require approval, got %v", err)
	}

	post := newPost(models.PostStatusApproved)
	post.MediaURLs = []string{"m1", "m2", "m3"}

	if _, err := engine.Apply(post, Command{Action: ActionDelete, Actor: designer}); !IsKind(err, KindValidation) {
		t.Fatalf("Expected delete to require archiving first, got %v", err)
	}

	fx, err := engine.Apply(post, Command{Action: ActionArchive, Actor: client})
	if err != nil {
		t.Fatalf("client archive failed: %v", err)
	}
	if fx.Post.Status != models.PostStatusApproved || !fx.Post.ArchivedFor(client.UserID) || fx.Post.ArchivedFor(designer.UserID) {
		t.Errorf("Archive must be per-user and keep status, got %+v", fx.Post)
	}

	if _, err := engine.Apply(fx.Post, Command{Action: ActionArchive, Actor: client}); !IsKind(err, KindValidation) {
		t.Errorf("Expected double archive to be rejected, got %v", err)
	}
	if _, err := engine.Apply(fx.Post, Command{Action: ActionDelete, Actor: client}); err == nil {
		t.Errorf("Client must not be able to delete")
	}

	fx, err = engine.Apply(fx.Post, Command{Action: ActionArchive, Actor: designer})
	if err != nil {
		t.Fatalf("designer archive failed: %v", err)
	}
	fx, err = engine.Apply(fx.Post, Command{Action: ActionDelete, Actor: designer})
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if fx.Mutation != MutationDelete || fx.Post != nil {
		t.Errorf("Expected delete mutation with no resulting post")
	}
	if !reflect.DeepEqual(fx.DeleteAssets, []string{"m1", "m2", "m3"}) {
		t.Errorf("Expected every media asset scheduled for deletion, got %v", fx.DeleteAssets)
	}
}

func TestConvertToPost(t *testing.T) {
	engine := newTestEngine(DefaultPolicy())
	idea := newPost(models.PostStatusIdea)
	idea.DesignerID = ""
	idea.Platforms = nil

	if _, err := engine.Apply(idea, Command{Action: ActionConvertToPost, Actor: designer}); !IsKind(err, KindValidation) {
		t.Fatalf("Expected platforms to be required, got %v", err)
	}

	when := fixedNow.Add(48 * time.Hour)
	fx, err := engine.Apply(idea, Command{Action: ActionConvertToPost, Actor: designer, Platforms: []string{"Instagram", "instagram", "linkedin"}, ScheduledAt: &when})
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if fx.Post.DesignerID != designer.UserID {
		t.Errorf("Expected designer to claim the idea, got %q", fx.Post.DesignerID)
	}
	if !reflect.DeepEqual(fx.Post.Platforms, []string{"instagram", "linkedin"}) {
		t.Errorf("Unexpected platforms %v", fx.Post.Platforms)
	}
	if fx.Post.Status != models.PostStatusInProgress {
		t.Errorf("Expected in progress, got %s", fx.Post.Status)
	}

	other := models.Actor{UserID: "designer-2", Role: models.RoleDesigner}
	if _, err := engine.Apply(fx.Post, Command{Action: ActionConvertToPost, Actor: other, Platforms: []string{"x"}}); !IsKind(err, KindPermission) {
		t.Errorf("Expected another designer to be rejected, got %v", err)
	}
	if _, err := engine.Apply(idea, Command{Action: ActionConvertToPost, Actor: client, Platforms: []string{"x"}}); !IsKind(err, KindPermission) {
		t.Errorf("Expected client conversion to be rejected, got %v", err)
	}
}

func TestScheduleAndEdit(t *testing.T) {
	engine := newTestEngine(DefaultPolicy())
	post := newPost(models.PostStatusInProgress)

	if _, err := engine.Apply(post, Command{Action: ActionSchedule, Actor: designer}); !IsKind(err, KindValidation) {
		t.Fatalf("Expected schedule without time to fail, got %v", err)
	}
	when := fixedNow.Add(24 * time.Hour)
	fx, err := engine.Apply(post, Command{Action: ActionSchedule, Actor: designer, ScheduledAt: &when})
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	if fx.Post.Status != models.PostStatusScheduled || !fx.Post.ScheduledAt.Equal(when) {
		t.Errorf("Unexpected scheduled post %+v", fx.Post)
	}

	caption := "New caption"
	notes := "use the blue palette"
	fx, err = engine.Apply(fx.Post, Command{Action: ActionEditContent, Actor: designer, Edit: &models.UpdatePostRequest{Caption: &caption, InternalNotes: &notes}})
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if fx.Post.Caption != caption || fx.Post.InternalNotes != notes || fx.Post.Status != models.PostStatusScheduled {
		t.Errorf("Unexpected edited post %+v", fx.Post)
	}
	if _, err := engine.Apply(fx.Post, Command{Action: ActionEditContent, Actor: client, Edit: &models.UpdatePostRequest{Caption: &caption}}); !IsKind(err, KindPermission) {
		t.Errorf("Expected client edit to be rejected, got %v", err)
	}
}

func TestMarkSeen(t *testing.T) {
	engine := newTestEngine(DefaultPolicy())
	post := newPost(models.PostStatusPendingReview)

	fx, err := engine.Apply(post, Command{Action: ActionMarkSeen, Actor: client})
	if err != nil {
		t.Fatalf("markSeen failed: %v", err)
	}
	if fx.Mutation != MutationMarkSeen || !fx.Post.SeenFor(client.UserID) {
		t.Errorf("Expected client added to seenBy")
	}

	fx, err = engine.Apply(fx.Post, Command{Action: ActionMarkSeen, Actor: client})
	if err != nil {
		t.Fatalf("second markSeen failed: %v", err)
	}
	if fx.Mutation != MutationNone {
		t.Errorf("Expected second markSeen to be a no-op")
	}
}

func TestUnknownActionAndStranger(t *testing.T) {
	engine := newTestEngine(DefaultPolicy())
	post := newPost(models.PostStatusPendingReview)

	if _, err := engine.Apply(post, Command{Action: "publish", Actor: client}); !IsKind(err, KindValidation) {
		t.Errorf("Expected unknown action to be rejected, got %v", err)
	}
	if _, err := engine.Apply(post, Command{Action: ActionApprove, Actor: stranger}); !IsKind(err, KindPermission) {
		t.Errorf("Expected stranger to be rejected, got %v", err)
	}
	if _, err := engine.Apply(post, Command{Action: ActionApprove, Actor: designer}); !IsKind(err, KindPermission) {
		t.Errorf("Expected designer approval to be rejected, got %v", err)
	}
	if _, err := engine.Apply(nil, Command{Action: ActionApprove, Actor: client}); !IsKind(err, KindNotFound) {
		t.Errorf("Expected not found for nil post, got %v", err)
	}
}

func TestRevisionCountNeverDecreases(t *testing.T) {
	engine := newTestEngine(Policy{RevisionCap: 2, ClientFeedbackRequestsRevision: true})
	rng := rand.New(rand.NewSource(42))
	actions := append([]Action(nil), actionOrder...)
	actions = append(actions, ActionMarkSeen)
	when := fixedNow.Add(time.Hour)

	post := newPost(models.PostStatusIdea)
	for i := 0; i < 2000; i++ {
		actor := designer
		if rng.Intn(2) == 0 {
			actor = client
		}
		cmd := Command{
			Action:      actions[rng.Intn(len(actions))],
			Actor:       actor,
			MediaURLs:   []string{"m"},
			Platforms:   []string{"x"},
			Text:        "comment",
			ScheduledAt: &when,
			Edit:        &models.UpdatePostRequest{},
		}
		fx, err := engine.Apply(post, cmd)
		if err != nil || fx.Post == nil {
			continue
		}
		if fx.Post.RevisionCount < post.RevisionCount {
			t.Fatalf("revision count decreased from %d to %d on %s", post.RevisionCount, fx.Post.RevisionCount, cmd.Action)
		}
		if fx.Post.RevisionCount > post.RevisionCount+1 {
			t.Fatalf("revision count jumped on %s", cmd.Action)
		}
		if fx.Post.RevisionCount != post.RevisionCount && cmd.Action != ActionRequestRevision {
			t.Fatalf("revision count changed by %s", cmd.Action)
		}
		if len(fx.Post.Feedback) < len(post.Feedback) {
			t.Fatalf("feedback shrank on %s", cmd.Action)
		}
		post = fx.Post
		if post.Status == models.PostStatusApproved && rng.Intn(10) == 0 {
			// restart so the walk keeps exercising earlier states
			post = newPost(models.PostStatusIdea)
		}
	}
}

func TestAvailableActions(t *testing.T) {
	engine := newTestEngine(DefaultPolicy())
	post := newPost(models.PostStatusPendingReview)

	got := engine.AvailableActions(post, client)
	want := []Action{ActionApprove, ActionRequestRevision, ActionAddFeedback}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AvailableActions(client) = %v, want %v", got, want)
	}

	post.RevisionCount = 2
	got = engine.AvailableActions(post, client)
	want = []Action{ActionApprove, ActionAddFeedback}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AvailableActions(client at cap) = %v, want %v", got, want)
	}
}

func TestAllowed(t *testing.T) {
	tests := []struct {
		action Action
		role   models.Role
		status models.PostStatus
		want   bool
	}{
		{ActionApprove, models.RoleClient, models.PostStatusPendingReview, true},
		{ActionApprove, models.RoleDesigner, models.PostStatusPendingReview, false},
		{ActionApprove, models.RoleClient, models.PostStatusInProgress, false},
		{ActionMarkSeen, models.RoleDesigner, models.PostStatusApproved, true},
		{Action("publish"), models.RoleDesigner, models.PostStatusScheduled, false},
	}

	for _, tt := range tests {
		if got := Allowed(tt.action, tt.role, tt.status); got != tt.want {
			t.Errorf("Allowed(%s, %s, %s) = %v, want %v", tt.action, tt.role, tt.status, got, tt.want)
		}
	}

	// Every offered action must pass the table
	engine := newTestEngine(DefaultPolicy())
	for _, status := range models.PostStatuses {
		for _, actor := range []models.Actor{designer, client} {
			for _, a := range engine.AvailableActions(newPost(status), actor) {
				if !Allowed(a, actor.Role, status) {
					t.Errorf("%s offered to %s in %s but not allowed", a, actor.Role, status)
				}
			}
		}
	}
}

func TestNewPost(t *testing.T) {
	engine := newTestEngine(DefaultPolicy())

	tests := []struct {
		name       string
		actor      models.Actor
		req        models.CreatePostRequest
		wantStatus models.PostStatus
		wantKind   Kind
	}{
		{"client idea", client, models.CreatePostRequest{Caption: "Idea"}, models.PostStatusIdea, ""},
		{"client idea for someone else", client, models.CreatePostRequest{Caption: "Idea", ClientID: "client-9"}, "", KindPermission},
		{"client idea without caption", client, models.CreatePostRequest{}, "", KindValidation},
		{"designer draft", designer, models.CreatePostRequest{Caption: "Draft", ClientID: client.UserID}, models.PostStatusInProgress, ""},
		{"designer idea", designer, models.CreatePostRequest{Caption: "Idea", ClientID: client.UserID, Idea: true}, models.PostStatusIdea, ""},
		{"designer draft without client", designer, models.CreatePostRequest{Caption: "Draft"}, "", KindValidation},
		{"designer draft without caption", designer, models.CreatePostRequest{ClientID: client.UserID}, "", KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			post, err := engine.NewPost("id-1", tt.actor, &tt.req)
			if tt.wantKind != "" {
				if !IsKind(err, tt.wantKind) {
					t.Fatalf("Expected %s error, got %v", tt.wantKind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewPost failed: %v", err)
			}
			if post.Status != tt.wantStatus {
				t.Errorf("Expected %s, got %s", tt.wantStatus, post.Status)
			}
			if post.RevisionCount != 0 || len(post.Feedback) != 0 {
				t.Errorf("New posts start without revisions or feedback")
			}
		})
	}

	idea, _ := engine.NewPost("id-2", client, &models.CreatePostRequest{Caption: "Idea"})
	if idea.DesignerID != "" {
		t.Errorf("Client ideas must not be auto-assigned, got %q", idea.DesignerID)
	}
}
