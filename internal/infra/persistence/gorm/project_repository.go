package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"richmenu-editor/internal/domain"
	"richmenu-editor/internal/repository"
)

// GormProjectRepository 是 ProjectRepository 接口的 GORM 实现
type GormProjectRepository struct {
	db *gorm.DB
}

// NewGormProjectRepository 创建 GormProjectRepository 实例
func NewGormProjectRepository(db *gorm.DB) *GormProjectRepository {
	if db == nil {
		panic("database connection cannot be nil for GormProjectRepository")
	}
	return &GormProjectRepository{db: db}
}

// FindByID 实现根据项目 ID 查找项目，预加载全部 Rich Menu。
// 加载后立即解析每个菜单页的 MetadataJSON，调用方拿到的是可直接使用的对象。
func (r *GormProjectRepository) FindByID(ctx context.Context, id uint) (*domain.Project, error) {
	var project domain.Project
	err := r.db.WithContext(ctx).Preload("RichMenus").First(&project, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrProjectNotFound
		}
		return nil, fmt.Errorf("gorm: find project by id %d: %w", id, err)
	}
	for i := range project.RichMenus {
		if err := project.RichMenus[i].ParseMetadata(); err != nil {
			return nil, fmt.Errorf("gorm: parse metadata for rich menu %s: %w", project.RichMenus[i].ID, err)
		}
	}
	return &project, nil
}

// FindByAccount 实现列出帐号下的全部项目
func (r *GormProjectRepository) FindByAccount(ctx context.Context, accountID uint) ([]domain.Project, error) {
	var projects []domain.Project
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Order("updated_at DESC").Find(&projects).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find projects by account %d: %w", accountID, err)
	}
	return projects, nil
}

// Save 实现保存项目（创建或更新）
func (r *GormProjectRepository) Save(ctx context.Context, project *domain.Project) error {
	err := r.db.WithContext(ctx).Omit("RichMenus").Save(project).Error
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save project (id: %d, name: %s): %w", project.ID, project.Name, err)
	}
	return nil
}

// Delete 实现删除项目及其全部 Rich Menu（事务内）
func (r *GormProjectRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", id).Delete(&domain.RichMenu{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&domain.Project{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return repository.ErrProjectNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return err
		}
		return fmt.Errorf("gorm: delete project %d: %w", id, err)
	}
	return nil
}

// FindRichMenu 实现根据 ID 查找菜单页
func (r *GormProjectRepository) FindRichMenu(ctx context.Context, richMenuID string) (*domain.RichMenu, error) {
	var rm domain.RichMenu
	err := r.db.WithContext(ctx).Where("id = ?", richMenuID).First(&rm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRichMenuNotFound
		}
		return nil, fmt.Errorf("gorm: find rich menu by id %s: %w", richMenuID, err)
	}
	if err := rm.ParseMetadata(); err != nil {
		return nil, fmt.Errorf("gorm: parse metadata for rich menu %s: %w", richMenuID, err)
	}
	return &rm, nil
}

// SaveRichMenu 实现保存菜单页。写入前把 Metadata 刷回 MetadataJSON 列，
// 保证落库的始终是最新的编辑状态。
func (r *GormProjectRepository) SaveRichMenu(ctx context.Context, rm *domain.RichMenu) error {
	if err := rm.SetMetadata(rm.Metadata); err != nil {
		return fmt.Errorf("gorm: serialize metadata for rich menu %s: %w", rm.ID, err)
	}
	err := r.db.WithContext(ctx).Save(rm).Error
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save rich menu (id: %s, alias: %s): %w", rm.ID, rm.Alias, err)
	}
	return nil
}

// DeleteRichMenu 实现删除菜单页
func (r *GormProjectRepository) DeleteRichMenu(ctx context.Context, richMenuID string) error {
	result := r.db.WithContext(ctx).Where("id = ?", richMenuID).Delete(&domain.RichMenu{})
	if result.Error != nil {
		return fmt.Errorf("gorm: delete rich menu %s: %w", richMenuID, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrRichMenuNotFound
	}
	return nil
}

// IsAliasTaken 实现项目内别名唯一性检查
func (r *GormProjectRepository) IsAliasTaken(ctx context.Context, projectID uint, alias string, excludeID string) (bool, error) {
	query := r.db.WithContext(ctx).Model(&domain.RichMenu{}).
		Where("project_id = ? AND alias = ?", projectID, alias)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("gorm: count rich menus by alias '%s' in project %d: %w", alias, projectID, err)
	}
	return count > 0, nil
}
