package mocks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/GianDevelops/corex-portal/internal/models"
	"github.com/GianDevelops/corex-portal/internal/service"
	"github.com/GianDevelops/corex-portal/internal/storage"
)

// CallLog records calls across mocks so tests can assert their order.
// A nil log ignores records.
type CallLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *CallLog) Record(entry string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *CallLog) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

// MockAssetStore is an in-memory AssetStore
type MockAssetStore struct {
	mu         sync.Mutex
	Objects    map[string][]byte
	Deleted    []string
	UploadFunc func(ctx context.Context, postID, filename string) error
	DeleteFunc func(ctx context.Context, url string) error
	Log        *CallLog
	seq        int
}

var _ storage.AssetStore = (*MockAssetStore)(nil)

func NewMockAssetStore() *MockAssetStore {
	return &MockAssetStore{Objects: make(map[string][]byte)}
}

func (m *MockAssetStore) Upload(ctx context.Context, postID, filename, contentType string, r io.Reader) (string, error) {
	if m.UploadFunc != nil {
		if err := m.UploadFunc(ctx, postID, filename); err != nil {
			return "", err
		}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	url := fmt.Sprintf("https://media.test/posts/%s/%d-%s", postID, m.seq, filename)
	m.Objects[url] = data
	m.Log.Record("asset.upload:" + url)
	return url, nil
}

func (m *MockAssetStore) Delete(ctx context.Context, url string) error {
	m.Log.Record("asset.delete:" + url)
	if m.DeleteFunc != nil {
		if err := m.DeleteFunc(ctx, url); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Objects, url)
	m.Deleted = append(m.Deleted, url)
	return nil
}

// Count returns how many objects are stored
func (m *MockAssetStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Objects)
}

// MockMailer records notification emails
type MockMailer struct {
	mu       sync.Mutex
	Sent     []*models.Notification
	SendFunc func(ctx context.Context, to *models.User, n *models.Notification) error
}

var _ service.Mailer = (*MockMailer)(nil)

func NewMockMailer() *MockMailer {
	return &MockMailer{}
}

func (m *MockMailer) SendNotification(ctx context.Context, to *models.User, n *models.Notification) error {
	if m.SendFunc != nil {
		if err := m.SendFunc(ctx, to, n); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, n)
	return nil
}

// SentCount returns how many emails went out
func (m *MockMailer) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
