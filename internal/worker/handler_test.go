package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"richmenu-editor/internal/domain"
	"richmenu-editor/internal/dto"
	"richmenu-editor/internal/repository"
	"richmenu-editor/internal/repository/mocks"
	"richmenu-editor/internal/service"
	"richmenu-editor/internal/tasks"
)

func persistedRichMenu(id string) *domain.RichMenu {
	rm := &domain.RichMenu{ID: id, ProjectID: 7, Alias: "main"}
	meta := domain.NewMetadata()
	meta.Name = "Main Menu"
	_ = rm.SetMetadata(meta)
	return rm
}

func TestAreasPersistence_SavesRelayedAreas(t *testing.T) {
	mockProjectRepo := new(mocks.ProjectRepository)
	handler := NewAreasPersistenceHandler(service.NewProjectService(mockProjectRepo))

	areas := []domain.Area{{
		Bounds: domain.Bounds{X: 0, Y: 0, Width: 1250, Height: 843},
		Action: domain.Action{Type: domain.ActionTypeURI, URI: "https://example.com"},
	}}
	mockProjectRepo.On("FindRichMenu", mock.Anything, "rm1").Return(persistedRichMenu("rm1"), nil).Once()
	mockProjectRepo.On("SaveRichMenu", mock.Anything, mock.MatchedBy(func(rm *domain.RichMenu) bool {
		return rm.ID == "rm1" && len(rm.Metadata.Areas) == 1
	})).Return(nil).Once()

	payload, err := tasks.NewAreasPersistenceTask("rm1", areas)
	require.NoError(t, err)

	err = handler.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeAreasPersistence, payload))

	assert.NoError(t, err)
	mockProjectRepo.AssertExpectations(t)
}

func TestAreasPersistence_StaleMenuSkipsRetry(t *testing.T) {
	mockProjectRepo := new(mocks.ProjectRepository)
	handler := NewAreasPersistenceHandler(service.NewProjectService(mockProjectRepo))

	mockProjectRepo.On("FindRichMenu", mock.Anything, "gone").
		Return(nil, repository.ErrRichMenuNotFound).Once()

	payload, err := tasks.NewAreasPersistenceTask("gone", nil)
	require.NoError(t, err)

	err = handler.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeAreasPersistence, payload))

	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestAreasPersistence_MalformedPayloadSkipsRetry(t *testing.T) {
	mockProjectRepo := new(mocks.ProjectRepository)
	handler := NewAreasPersistenceHandler(service.NewProjectService(mockProjectRepo))

	err := handler.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeAreasPersistence, []byte("{not json")))

	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	mockProjectRepo.AssertNotCalled(t, "FindRichMenu", mock.Anything, mock.Anything)
}

func TestAreasPersistence_TransientDBErrorRetries(t *testing.T) {
	mockProjectRepo := new(mocks.ProjectRepository)
	handler := NewAreasPersistenceHandler(service.NewProjectService(mockProjectRepo))

	mockProjectRepo.On("FindRichMenu", mock.Anything, "rm1").Return(persistedRichMenu("rm1"), nil).Once()
	mockProjectRepo.On("SaveRichMenu", mock.Anything, mock.Anything).
		Return(errors.New("driver: bad connection")).Once()

	payload, err := tasks.NewAreasPersistenceTask("rm1", nil)
	require.NoError(t, err)

	err = handler.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeAreasPersistence, payload))

	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry, "transient DB failures should stay retryable")
}

func TestMetadataPersistence_MergesPatch(t *testing.T) {
	mockProjectRepo := new(mocks.ProjectRepository)
	handler := NewMetadataPersistenceHandler(service.NewProjectService(mockProjectRepo))

	newText := "Menu"
	mockProjectRepo.On("FindRichMenu", mock.Anything, "rm1").Return(persistedRichMenu("rm1"), nil).Once()
	mockProjectRepo.On("SaveRichMenu", mock.Anything, mock.MatchedBy(func(rm *domain.RichMenu) bool {
		// 只合并补丁携带的字段
		return rm.Metadata.ChatBarText == "Menu" && rm.Metadata.Name == "Main Menu"
	})).Return(nil).Once()

	payload, err := tasks.NewMetadataPersistenceTask("rm1", dto.MetadataPatch{ChatBarText: &newText})
	require.NoError(t, err)

	err = handler.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeMetadataPersistence, payload))

	assert.NoError(t, err)
	mockProjectRepo.AssertExpectations(t)
}

func TestMetadataPersistence_InvalidPatchSkipsRetry(t *testing.T) {
	mockProjectRepo := new(mocks.ProjectRepository)
	handler := NewMetadataPersistenceHandler(service.NewProjectService(mockProjectRepo))

	tooLong := "aaaaaaaaaaaaaaa" // 15 UTF-16 单元，超过 14 的上限
	mockProjectRepo.On("FindRichMenu", mock.Anything, "rm1").Return(persistedRichMenu("rm1"), nil).Once()

	payload, err := tasks.NewMetadataPersistenceTask("rm1", dto.MetadataPatch{ChatBarText: &tooLong})
	require.NoError(t, err)

	err = handler.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeMetadataPersistence, payload))

	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	mockProjectRepo.AssertNotCalled(t, "SaveRichMenu", mock.Anything, mock.Anything)
}
