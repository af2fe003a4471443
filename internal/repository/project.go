package repository

import (
	"context"

	"richmenu-editor/internal/domain"
)

// ProjectRepository 定义了项目和 Rich Menu 数据的存储和检索操作。
type ProjectRepository interface {
	// FindByID 根据项目 ID 查找项目，预加载全部 Rich Menu。
	// 项目不存在时返回 ErrProjectNotFound。
	FindByID(ctx context.Context, id uint) (*domain.Project, error)

	// FindByAccount 列出指定帐号下的全部项目（不含 Rich Menu 明细）。
	FindByAccount(ctx context.Context, accountID uint) ([]domain.Project, error)

	// Save 保存项目。已存在（基于 ID）则更新，否则创建。
	Save(ctx context.Context, project *domain.Project) error

	// Delete 删除项目及其全部 Rich Menu。
	Delete(ctx context.Context, id uint) error

	// FindRichMenu 根据 Rich Menu ID 查找菜单页。
	// 不存在时返回 ErrRichMenuNotFound。
	FindRichMenu(ctx context.Context, richMenuID string) (*domain.RichMenu, error)

	// SaveRichMenu 保存菜单页（含 MetadataJSON 列）。
	// 自动保存任务和显式保存都走这里。
	SaveRichMenu(ctx context.Context, rm *domain.RichMenu) error

	// DeleteRichMenu 删除菜单页。
	DeleteRichMenu(ctx context.Context, richMenuID string) error

	// IsAliasTaken 检查别名在项目内是否已被其他菜单页占用。
	// excludeID 非空时跳过该菜单页自身（更新场景）。
	IsAliasTaken(ctx context.Context, projectID uint, alias string, excludeID string) (bool, error)
}
