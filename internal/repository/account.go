package repository

import (
	"context"

	"richmenu-editor/internal/domain"
)

// AccountRepository 定义了账号数据的存储和检索操作。
type AccountRepository interface {
	// FindByUsername 根据用户名查找账号。
	// 账号不存在时返回 ErrAccountNotFound。
	FindByUsername(ctx context.Context, username string) (*domain.Account, error)

	// FindByID 根据账号 ID 查找账号。
	FindByID(ctx context.Context, id uint) (*domain.Account, error)

	// Save 保存账号。已存在（基于 ID）则更新，否则创建。
	Save(ctx context.Context, account *domain.Account) error
}
