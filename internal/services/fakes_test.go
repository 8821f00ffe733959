package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"widget-sync-backend/internal/models"
	"widget-sync-backend/internal/repository"
)

// memUserStore is an in-memory UserStore for tests.
type memUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemUserStore(users ...*models.User) *memUserStore {
	s := &memUserStore{users: make(map[string]*models.User)}
	for _, u := range users {
		cp := *u
		s.users[u.ID] = &cp
	}
	return s
}

func (s *memUserStore) get(id string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp
	}
	return nil
}

func (s *memUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *memUserStore) GetByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, repository.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *memUserStore) GetByCode(_ context.Context, code string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Code == code {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("code %s: %w", code, repository.ErrNotFound)
}

func (s *memUserStore) CodeExists(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *memUserStore) UpdateUsername(_ context.Context, userID, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, repository.ErrNotFound)
	}
	u.Username = &username
	return nil
}

func (s *memUserStore) SetPartner(_ context.Context, userID, partnerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.PartnerUID = &partnerID
	}
	return nil
}

func (s *memUserStore) ClearPartner(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.PartnerUID = nil
	}
	return nil
}

func (s *memUserStore) UpdatePushToken(_ context.Context, userID string, pushToken *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.PushToken = pushToken
	}
	return nil
}

// memWidgetStore is an in-memory WidgetStore. Setting failReads simulates a
// transient remote store failure.
type memWidgetStore struct {
	mu        sync.Mutex
	payloads  map[string]*models.WidgetPayload
	latest    *models.LatestMessage
	failReads bool
}

func newMemWidgetStore() *memWidgetStore {
	return &memWidgetStore{payloads: make(map[string]*models.WidgetPayload)}
}

func (s *memWidgetStore) UpsertPayload(_ context.Context, payload *models.WidgetPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *payload
	s.payloads[payload.UserID] = &cp
	return nil
}

func (s *memWidgetStore) GetPayload(_ context.Context, userID string) (*models.WidgetPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads {
		return nil, errors.New("store unavailable")
	}
	p, ok := s.payloads[userID]
	if !ok {
		return nil, fmt.Errorf("widget payload for %s: %w", userID, repository.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *memWidgetStore) SetLatest(_ context.Context, msg *models.LatestMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *msg
	s.latest = &cp
	return nil
}

func (s *memWidgetStore) GetLatest(_ context.Context) (*models.LatestMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return nil, fmt.Errorf("latest message: %w", repository.ErrNotFound)
	}
	cp := *s.latest
	return &cp, nil
}

// fakeUploader records uploads and hands back deterministic URLs.
type fakeUploader struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeUploader) Upload(_ context.Context, key string, _ []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return "https://blobs.test/" + key, nil
}

// fakeDownloader serves fixed bytes and counts fetches per URL.
type fakeDownloader struct {
	mu      sync.Mutex
	data    []byte
	fetches map[string]int
	err     error
}

func newFakeDownloader(data []byte) *fakeDownloader {
	return &fakeDownloader{data: data, fetches: make(map[string]int)}
}

func (f *fakeDownloader) Download(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.fetches[url]++
	return f.data, nil
}

// fakePush records refresh pushes.
type fakePush struct {
	mu     sync.Mutex
	tokens []string
	err    error
}

func (f *fakePush) SendRefresh(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.tokens = append(f.tokens, token)
	return nil
}

func (f *fakePush) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens...)
}

func strptr(s string) *string { return &s }
