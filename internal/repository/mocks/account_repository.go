package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"richmenu-editor/internal/domain"
)

// AccountRepository 是 repository.AccountRepository 的 testify mock。
type AccountRepository struct {
	mock.Mock
}

func (m *AccountRepository) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	args := m.Called(ctx, username)
	var account *domain.Account
	if args.Get(0) != nil {
		account = args.Get(0).(*domain.Account)
	}
	return account, args.Error(1)
}

func (m *AccountRepository) FindByID(ctx context.Context, id uint) (*domain.Account, error) {
	args := m.Called(ctx, id)
	var account *domain.Account
	if args.Get(0) != nil {
		account = args.Get(0).(*domain.Account)
	}
	return account, args.Error(1)
}

func (m *AccountRepository) Save(ctx context.Context, account *domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}
