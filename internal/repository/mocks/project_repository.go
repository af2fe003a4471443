package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"richmenu-editor/internal/domain"
)

// ProjectRepository 是 repository.ProjectRepository 的 testify mock。
type ProjectRepository struct {
	mock.Mock
}

func (m *ProjectRepository) FindByID(ctx context.Context, id uint) (*domain.Project, error) {
	args := m.Called(ctx, id)
	var project *domain.Project
	if args.Get(0) != nil {
		project = args.Get(0).(*domain.Project)
	}
	return project, args.Error(1)
}

func (m *ProjectRepository) FindByAccount(ctx context.Context, accountID uint) ([]domain.Project, error) {
	args := m.Called(ctx, accountID)
	var projects []domain.Project
	if args.Get(0) != nil {
		projects = args.Get(0).([]domain.Project)
	}
	return projects, args.Error(1)
}

func (m *ProjectRepository) Save(ctx context.Context, project *domain.Project) error {
	args := m.Called(ctx, project)
	return args.Error(0)
}

func (m *ProjectRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *ProjectRepository) FindRichMenu(ctx context.Context, richMenuID string) (*domain.RichMenu, error) {
	args := m.Called(ctx, richMenuID)
	var rm *domain.RichMenu
	if args.Get(0) != nil {
		rm = args.Get(0).(*domain.RichMenu)
	}
	return rm, args.Error(1)
}

func (m *ProjectRepository) SaveRichMenu(ctx context.Context, rm *domain.RichMenu) error {
	args := m.Called(ctx, rm)
	return args.Error(0)
}

func (m *ProjectRepository) DeleteRichMenu(ctx context.Context, richMenuID string) error {
	args := m.Called(ctx, richMenuID)
	return args.Error(0)
}

func (m *ProjectRepository) IsAliasTaken(ctx context.Context, projectID uint, alias string, excludeID string) (bool, error) {
	args := m.Called(ctx, projectID, alias, excludeID)
	return args.Bool(0), args.Error(1)
}
