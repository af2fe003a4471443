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

// GormAccountRepository 是 AccountRepository 接口的 GORM 实现
type GormAccountRepository struct {
	db *gorm.DB
}

// NewGormAccountRepository 创建 GormAccountRepository 实例
func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	if db == nil {
		panic("database connection cannot be nil for GormAccountRepository")
	}
	return &GormAccountRepository{db: db}
}

// FindByUsername 实现根据用户名查找帐号
func (r *GormAccountRepository) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	var account domain.Account
	err := r.db.WithContext(ctx).Where("name = ?", username).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrAccountNotFound
		}
		return nil, fmt.Errorf("gorm: find account by username '%s': %w", username, err)
	}
	return &account, nil
}

// FindByID 实现根据帐号 ID 查找帐号
func (r *GormAccountRepository) FindByID(ctx context.Context, id uint) (*domain.Account, error) {
	var account domain.Account
	err := r.db.WithContext(ctx).First(&account, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrAccountNotFound
		}
		return nil, fmt.Errorf("gorm: find account by id %d: %w", id, err)
	}
	return &account, nil
}

// Save 实现保存帐号（创建或更新）
func (r *GormAccountRepository) Save(ctx context.Context, account *domain.Account) error {
	err := r.db.WithContext(ctx).Save(account).Error
	if err != nil {
		// MySQL 1062: 唯一约束冲突（用户名重复）
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save account (id: %d, name: %s): %w", account.ID, account.Name, err)
	}
	return nil
}
