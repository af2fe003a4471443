package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"richmenu-editor/internal/repository/mocks"
	"richmenu-editor/internal/tasks"
)

type fakeRoomLister struct {
	live []string
}

func (f *fakeRoomLister) ActiveProjectIDs() []string { return f.live }

func sweepTask(t *testing.T) *asynq.Task {
	t.Helper()
	payload, err := tasks.NewPresenceSweepTask()
	require.NoError(t, err)
	return asynq.NewTask(tasks.TypePresenceSweep, payload)
}

func TestPresenceSweep_CleansOnlyStaleRooms(t *testing.T) {
	stateRepo := new(mocks.StateRepository)
	rooms := &fakeRoomLister{live: []string{"7"}}
	handler := NewPresenceSweepHandler(stateRepo, rooms)

	stateRepo.On("ListActiveProjects", mock.Anything).Return([]string{"7", "8", "9"}, nil).Once()
	stateRepo.On("CleanupProjectState", mock.Anything, "8").Return(nil).Once()
	stateRepo.On("CleanupProjectState", mock.Anything, "9").Return(nil).Once()

	err := handler.ProcessTask(context.Background(), sweepTask(t))

	assert.NoError(t, err)
	stateRepo.AssertExpectations(t)
	stateRepo.AssertNotCalled(t, "CleanupProjectState", mock.Anything, "7")
}

func TestPresenceSweep_NoRecordsIsANoop(t *testing.T) {
	stateRepo := new(mocks.StateRepository)
	handler := NewPresenceSweepHandler(stateRepo, &fakeRoomLister{})

	stateRepo.On("ListActiveProjects", mock.Anything).Return([]string{}, nil).Once()

	err := handler.ProcessTask(context.Background(), sweepTask(t))

	assert.NoError(t, err)
	stateRepo.AssertNotCalled(t, "CleanupProjectState", mock.Anything, mock.Anything)
}

func TestPresenceSweep_SingleRoomFailureDoesNotAbortSweep(t *testing.T) {
	stateRepo := new(mocks.StateRepository)
	handler := NewPresenceSweepHandler(stateRepo, &fakeRoomLister{})

	stateRepo.On("ListActiveProjects", mock.Anything).Return([]string{"8", "9"}, nil).Once()
	stateRepo.On("CleanupProjectState", mock.Anything, "8").Return(errors.New("redis: connection reset")).Once()
	stateRepo.On("CleanupProjectState", mock.Anything, "9").Return(nil).Once()

	err := handler.ProcessTask(context.Background(), sweepTask(t))

	assert.NoError(t, err, "a single failed room should be retried on the next cycle, not fail the task")
	stateRepo.AssertExpectations(t)
}
