package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"richmenu-editor/internal/domain"
)

// StateRepository 是 repository.StateRepository 的 testify mock。
type StateRepository struct {
	mock.Mock
}

func (m *StateRepository) SetActiveTab(ctx context.Context, projectID string, tab domain.EditorTab, ttl time.Duration) error {
	args := m.Called(ctx, projectID, tab, ttl)
	return args.Error(0)
}

func (m *StateRepository) RemoveActiveTab(ctx context.Context, projectID string, userID string) error {
	args := m.Called(ctx, projectID, userID)
	return args.Error(0)
}

func (m *StateRepository) GetActiveTabs(ctx context.Context, projectID string) ([]domain.EditorTab, error) {
	args := m.Called(ctx, projectID)
	var tabs []domain.EditorTab
	if args.Get(0) != nil {
		tabs = args.Get(0).([]domain.EditorTab)
	}
	return tabs, args.Error(1)
}

func (m *StateRepository) CleanupProjectState(ctx context.Context, projectID string) error {
	args := m.Called(ctx, projectID)
	return args.Error(0)
}

func (m *StateRepository) ListActiveProjects(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	var projects []string
	if args.Get(0) != nil {
		projects = args.Get(0).([]string)
	}
	return projects, args.Error(1)
}

func (m *StateRepository) CheckRateLimit(ctx context.Context, key string, limit int, duration time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, duration)
	return args.Bool(0), args.Error(1)
}

func (m *StateRepository) PublishEvent(ctx context.Context, projectID string, frame []byte) error {
	args := m.Called(ctx, projectID, frame)
	return args.Error(0)
}

func (m *StateRepository) SubscribeEvents(ctx context.Context, projectID string) (<-chan []byte, func(), error) {
	args := m.Called(ctx, projectID)
	var frames <-chan []byte
	if args.Get(0) != nil {
		frames = args.Get(0).(<-chan []byte)
	}
	var closer func()
	if args.Get(1) != nil {
		closer = args.Get(1).(func())
	}
	return frames, closer, args.Error(2)
}
