package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"richmenu-editor/internal/domain"
	"richmenu-editor/internal/dto"
	"richmenu-editor/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// 别名允许的字符集，长度 1~50。与平台的 richmenu alias 约束一致。
var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)

// ProjectService 负责项目和 Rich Menu 管理相关的业务逻辑。
type ProjectService struct {
	projectRepo repository.ProjectRepository
}

// NewProjectService 创建 ProjectService 实例。
func NewProjectService(projectRepo repository.ProjectRepository) *ProjectService {
	if projectRepo == nil {
		panic("ProjectRepository cannot be nil for ProjectService")
	}
	return &ProjectService{projectRepo: projectRepo}
}

// CreateProject 创建一个新项目，附带一个默认的 Rich Menu。
func (s *ProjectService) CreateProject(ctx context.Context, accountID uint, name string) (*domain.Project, error) {
	logCtx := logrus.WithFields(logrus.Fields{"account_id": accountID, "name": name})

	if name == "" {
		return nil, fmt.Errorf("%w: project name is required", ErrInvalidInput)
	}

	project := &domain.Project{
		AccountID: accountID,
		Name:      name,
	}
	if err := s.projectRepo.Save(ctx, project); err != nil {
		logCtx.WithError(err).Error("Failed to save new project to database")
		return nil, ErrInternalServer
	}
	logCtx = logCtx.WithField("project_id", project.ID)

	// 新项目自带一页，打开即可编辑
	rm, err := s.CreateRichMenu(ctx, project.ID, "main")
	if err != nil {
		logCtx.WithError(err).Error("Failed to create default rich menu for new project")
		return nil, ErrInternalServer
	}
	project.RichMenus = []domain.RichMenu{*rm}

	logCtx.Info("Project created successfully")
	return project, nil
}

// GetProject 获取项目及其全部 Rich Menu。
func (s *ProjectService) GetProject(ctx context.Context, projectID uint) (*domain.Project, error) {
	project, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, ErrProjectNotFound
		}
		logrus.WithField("project_id", projectID).WithError(err).Error("Failed to load project")
		return nil, ErrInternalServer
	}
	return project, nil
}

// ListProjects 列出帐号下的全部项目。
func (s *ProjectService) ListProjects(ctx context.Context, accountID uint) ([]domain.Project, error) {
	projects, err := s.projectRepo.FindByAccount(ctx, accountID)
	if err != nil {
		logrus.WithField("account_id", accountID).WithError(err).Error("Failed to list projects")
		return nil, ErrInternalServer
	}
	return projects, nil
}

// DeleteProject 删除项目及其全部 Rich Menu。
func (s *ProjectService) DeleteProject(ctx context.Context, projectID uint) error {
	if err := s.projectRepo.Delete(ctx, projectID); err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return ErrProjectNotFound
		}
		logrus.WithField("project_id", projectID).WithError(err).Error("Failed to delete project")
		return ErrInternalServer
	}
	return nil
}

// CreateRichMenu 在项目内新建一个菜单页。别名必须合法且项目内唯一。
// ID 由服务端生成，发布到平台后再替换为平台分配的 ID。
func (s *ProjectService) CreateRichMenu(ctx context.Context, projectID uint, alias string) (*domain.RichMenu, error) {
	logCtx := logrus.WithFields(logrus.Fields{"project_id": projectID, "alias": alias})

	if err := s.validateAlias(ctx, projectID, alias, ""); err != nil {
		return nil, err
	}

	rm := &domain.RichMenu{
		ID:        "local-" + uuid.NewString(),
		ProjectID: projectID,
		Alias:     alias,
	}
	if err := rm.SetMetadata(domain.NewMetadata()); err != nil {
		logCtx.WithError(err).Error("Failed to serialize default metadata")
		return nil, ErrInternalServer
	}

	if err := s.projectRepo.SaveRichMenu(ctx, rm); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return nil, ErrAliasTaken
		}
		logCtx.WithError(err).Error("Failed to save new rich menu")
		return nil, ErrInternalServer
	}

	logCtx.WithField("rich_menu_id", rm.ID).Info("Rich menu created successfully")
	return rm, nil
}

// RenameRichMenu 修改菜单页别名。
func (s *ProjectService) RenameRichMenu(ctx context.Context, richMenuID, alias string) (*domain.RichMenu, error) {
	rm, err := s.loadRichMenu(ctx, richMenuID)
	if err != nil {
		return nil, err
	}
	if err := s.validateAlias(ctx, rm.ProjectID, alias, rm.ID); err != nil {
		return nil, err
	}
	rm.Alias = alias
	if err := s.projectRepo.SaveRichMenu(ctx, rm); err != nil {
		logrus.WithField("rich_menu_id", richMenuID).WithError(err).Error("Failed to rename rich menu")
		return nil, ErrInternalServer
	}
	return rm, nil
}

// DeleteRichMenu 删除菜单页。
func (s *ProjectService) DeleteRichMenu(ctx context.Context, richMenuID string) error {
	if err := s.projectRepo.DeleteRichMenu(ctx, richMenuID); err != nil {
		if errors.Is(err, repository.ErrRichMenuNotFound) {
			return ErrRichMenuNotFound
		}
		logrus.WithField("rich_menu_id", richMenuID).WithError(err).Error("Failed to delete rich menu")
		return ErrInternalServer
	}
	return nil
}

// SaveAreas 整表替换菜单页的区域列表并落库。
// 协作广播走实时通道，这里只负责持久化（自动保存任务也调它）。
func (s *ProjectService) SaveAreas(ctx context.Context, richMenuID string, areas []domain.Area) (*domain.RichMenu, error) {
	rm, err := s.loadRichMenu(ctx, richMenuID)
	if err != nil {
		return nil, err
	}

	if areas == nil {
		areas = []domain.Area{}
	}
	for i, area := range areas {
		if err := area.Validate(rm.Metadata.Size); err != nil {
			return nil, fmt.Errorf("%w: area %d: %v", ErrInvalidMetadata, i, err)
		}
	}

	rm.Metadata.Areas = areas
	if err := s.projectRepo.SaveRichMenu(ctx, rm); err != nil {
		logrus.WithField("rich_menu_id", richMenuID).WithError(err).Error("Failed to save areas")
		return nil, ErrInternalServer
	}
	return rm, nil
}

// SaveMetadata 按字段合并菜单页的 metadata 并落库。
// 合并语义与实时通道的 richmenu:update_metadata 一致：只应用携带的字段。
func (s *ProjectService) SaveMetadata(ctx context.Context, richMenuID string, patch dto.MetadataPatch) (*domain.RichMenu, error) {
	rm, err := s.loadRichMenu(ctx, richMenuID)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		rm.Metadata.Name = *patch.Name
	}
	if patch.ChatBarText != nil {
		rm.Metadata.ChatBarText = *patch.ChatBarText
	}
	if patch.Size != nil {
		rm.Metadata.Size = *patch.Size
	}
	if patch.Selected != nil {
		rm.Metadata.Selected = *patch.Selected
	}
	if patch.ImagePath != nil {
		rm.ImagePath = *patch.ImagePath
	}
	if patch.ThumbnailPath != nil {
		rm.ThumbnailPath = *patch.ThumbnailPath
	}
	if patch.ImageName != nil {
		rm.ImageName = *patch.ImageName
	}

	if err := rm.Metadata.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}

	if err := s.projectRepo.SaveRichMenu(ctx, rm); err != nil {
		logrus.WithField("rich_menu_id", richMenuID).WithError(err).Error("Failed to save metadata")
		return nil, ErrInternalServer
	}
	return rm, nil
}

// --- 私有辅助函数 ---

func (s *ProjectService) loadRichMenu(ctx context.Context, richMenuID string) (*domain.RichMenu, error) {
	rm, err := s.projectRepo.FindRichMenu(ctx, richMenuID)
	if err != nil {
		if errors.Is(err, repository.ErrRichMenuNotFound) {
			return nil, ErrRichMenuNotFound
		}
		logrus.WithField("rich_menu_id", richMenuID).WithError(err).Error("Failed to load rich menu")
		return nil, ErrInternalServer
	}
	return rm, nil
}

func (s *ProjectService) validateAlias(ctx context.Context, projectID uint, alias, excludeID string) error {
	if !aliasPattern.MatchString(alias) {
		return ErrInvalidAlias
	}
	taken, err := s.projectRepo.IsAliasTaken(ctx, projectID, alias, excludeID)
	if err != nil {
		logrus.WithFields(logrus.Fields{"project_id": projectID, "alias": alias}).
			WithError(err).Error("Failed to check alias availability")
		return ErrInternalServer
	}
	if taken {
		return ErrAliasTaken
	}
	return nil
}
