package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kendall-kelly/appliance-repair-api/utils"
)

// MockMediaService is an in-memory MediaStorage for testing
type MockMediaService struct {
	issued map[string]uint // key -> uploading user
	mu     sync.RWMutex
}

// NewMockMediaService creates a new mock media storage
func NewMockMediaService() *MockMediaService {
	return &MockMediaService{issued: make(map[string]uint)}
}

// SetAsMockForTesting sets this mock as the global media storage
func (m *MockMediaService) SetAsMockForTesting() {
	SetMediaService(m)
}

// PresignUpload records the issued key and returns a fake URL
func (m *MockMediaService) PresignUpload(_ context.Context, userID uint, contentType string, size int64) (*MediaUpload, error) {
	if err := utils.ValidateMedia(contentType, size); err != nil {
		return nil, err
	}
	key, err := MediaKey(userID, contentType)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.issued[key] = userID
	m.mu.Unlock()

	return &MediaUpload{
		Key:       key,
		UploadURL: fmt.Sprintf("https://test-bucket.s3.us-east-1.amazonaws.com/%s?mock=upload", key),
		ExpiresAt: time.Now().Add(presignExpiry),
	}, nil
}

// PresignDownload returns a fake URL for any key
func (m *MockMediaService) PresignDownload(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	return fmt.Sprintf("https://test-bucket.s3.us-east-1.amazonaws.com/%s?mock=true", key), nil
}

// Issued reports whether PresignUpload handed out key
func (m *MockMediaService) Issued(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.issued[key]
	return ok
}
