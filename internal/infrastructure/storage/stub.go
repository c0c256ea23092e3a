package storage

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	inventoryapp "github.com/pharmaledger/backend/internal/application/inventory"
)

var _ inventoryapp.ReportStorage = (*StubReportStorage)(nil)

// StubReportStorage fakes presigned URLs for local development. Every key
// it issued an upload URL for is reported as existing.
type StubReportStorage struct {
	BaseURL string

	mu     sync.RWMutex
	issued map[string]struct{}
}

func NewStubReportStorage() *StubReportStorage {
	return &StubReportStorage{
		BaseURL: "http://localhost:9000/reports",
		issued:  make(map[string]struct{}),
	}
}

func (s *StubReportStorage) GenerateUploadURL(_ context.Context, key, _ string, expiresIn time.Duration) (string, time.Time, error) {
	if key == "" {
		return "", time.Time{}, errors.New("storage key is required")
	}
	s.mu.Lock()
	s.issued[key] = struct{}{}
	s.mu.Unlock()

	expiresAt := time.Now().Add(expiresIn)
	return s.url("upload", key, expiresAt), expiresAt, nil
}

func (s *StubReportStorage) GenerateDownloadURL(_ context.Context, key string, expiresIn time.Duration) (string, time.Time, error) {
	if key == "" {
		return "", time.Time{}, errors.New("storage key is required")
	}
	expiresAt := time.Now().Add(expiresIn)
	return s.url("download", key, expiresAt), expiresAt, nil
}

func (s *StubReportStorage) ObjectExists(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("storage key is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.issued[key]
	return ok, nil
}

func (s *StubReportStorage) url(action, key string, expiresAt time.Time) string {
	q := url.Values{"expires": []string{expiresAt.UTC().Format(time.RFC3339)}}
	return s.BaseURL + "/" + action + "/" + key + "?" + q.Encode()
}
