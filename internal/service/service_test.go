package service_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/GianDevelops/corex-portal/internal/config"
	"github.com/GianDevelops/corex-portal/internal/mocks"
	"github.com/GianDevelops/corex-portal/internal/models"
	"github.com/GianDevelops/corex-portal/internal/service"
	"github.com/GianDevelops/corex-portal/internal/workflow"
	"github.com/rs/zerolog"
)

var (
	designer = models.Actor{UserID: "designer-1", Role: models.RoleDesigner, DisplayName: "Dana", Email: "dana@corex.test"}
	client   = models.Actor{UserID: "client-1", Role: models.RoleClient, DisplayName: "Cora", Email: "cora@client.test"}
	stranger = models.Actor{UserID: "client-2", Role: models.RoleClient, DisplayName: "Sam"}
)

// testdataPath returns the absolute path to a file in the testdata directory.
func testdataPath(t testing.TB, filename string) string {
	t.Helper()
	_, currentFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine test file path")
	}
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(currentFile)))
	path := filepath.Join(projectRoot, "testdata", filename)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skipf("testdata file not found: %s", path)
	}
	return path
}

func testConfig() *config.Config {
	return &config.Config{
		Workflow: config.WorkflowConfig{
			RevisionCap:      2,
			FeedbackPolicy:   config.FeedbackPolicyKeepStatus,
			OperationTimeout: 5 * time.Second,
			ExportTimeout:    time.Minute,
			ConflictRetries:  3,
		},
		Email: config.EmailConfig{
			PollInterval:   10 * time.Millisecond,
			MaxConcurrency: 2,
			MaxAttempts:    3,
		},
		Import: config.ImportConfig{MaxLines: 500},
	}
}

type testHarness struct {
	services *service.Services
	postRepo *mocks.MockPostRepository
	noteRepo *mocks.MockNotificationRepository
	userRepo *mocks.MockUserRepository
	store    *mocks.MockAssetStore
	mailer   *mocks.MockMailer
	calls    *mocks.CallLog
}

func newTestHarness(t *testing.T, cfg *config.Config) *testHarness {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}

	repos, postRepo, noteRepo, userRepo := mocks.NewRepositories()
	calls := &mocks.CallLog{}
	postRepo.Log = calls
	store := mocks.NewMockAssetStore()
	store.Log = calls
	mailer := mocks.NewMockMailer()

	userRepo.Upsert(context.Background(), &models.User{ID: designer.UserID, Email: designer.Email, Name: designer.DisplayName, Role: designer.Role})
	userRepo.Upsert(context.Background(), &models.User{ID: client.UserID, Email: client.Email, Name: client.DisplayName, Role: client.Role})

	engine := workflow.NewEngine(service.PolicyFromConfig(&cfg.Workflow))
	services := service.NewServices(repos, store, mailer, engine, cfg, zerolog.Nop())

	return &testHarness{
		services: services,
		postRepo: postRepo,
		noteRepo: noteRepo,
		userRepo: userRepo,
		store:    store,
		mailer:   mailer,
		calls:    calls,
	}
}

// seed stores a post between designer-1 and client-1
func (h *testHarness) seed(id string, status models.PostStatus, mutate func(p *models.Post)) *models.Post {
	now := time.Now().UTC()
	p := &models.Post{
		ID:         id,
		ClientID:   client.UserID,
		DesignerID: designer.UserID,
		Status:     status,
		Platforms:  []string{"instagram"},
		Caption:    "Autumn collection teaser",
		MediaURLs:  []string{},
		Feedback:   []models.Feedback{},
		SeenBy:     []string{},
		ArchivedBy: []string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if mutate != nil {
		mutate(p)
	}
	h.postRepo.Put(p)
	return p
}

// notificationsFor waits for dispatch and returns the messages sent to userID
func (h *testHarness) notificationsFor(userID string) []string {
	h.services.Notification.Wait()
	var out []string
	for _, n := range h.noteRepo.All() {
		if n.UserID == userID {
			out = append(out, n.Message)
		}
	}
	return out
}

func wantKind(t *testing.T, err error, kind workflow.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := workflow.KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s (%v)", kind, got, err)
	}
}
