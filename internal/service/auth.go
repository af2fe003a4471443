package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"richmenu-editor/internal/domain"
	"richmenu-editor/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// AuthService 负责帐号认证相关的业务逻辑。
type AuthService struct {
	accountRepo repository.AccountRepository
	jwtSecret   []byte
	jwtExpiry   time.Duration
}

// NewAuthService 创建 AuthService 实例。
// jwtSecretKey 应从安全配置中获取，jwtExpiryHours 定义 token 过期的小时数。
func NewAuthService(accountRepo repository.AccountRepository, jwtSecretKey string, jwtExpiryHours int) (*AuthService, error) {
	if accountRepo == nil {
		panic("AccountRepository cannot be nil for AuthService")
	}
	if jwtSecretKey == "" {
		return nil, fmt.Errorf("JWT secret key cannot be empty")
	}
	if jwtExpiryHours <= 0 {
		jwtExpiryHours = 24
	}
	return &AuthService{
		accountRepo: accountRepo,
		jwtSecret:   []byte(jwtSecretKey),
		jwtExpiry:   time.Duration(jwtExpiryHours) * time.Hour,
	}, nil
}

// Register 处理帐号注册。channelToken 可以为空，之后再补。
func (s *AuthService) Register(ctx context.Context, username, password, channelToken string) (*domain.Account, error) {
	logCtx := logrus.WithField("username", username)

	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}

	// 先查重，给调用方一个明确的业务错误；数据库唯一约束兜底
	existing, err := s.accountRepo.FindByUsername(ctx, username)
	if err != nil && !errors.Is(err, repository.ErrAccountNotFound) {
		logCtx.WithError(err).Error("Database error while checking username availability")
		return nil, ErrInternalServer
	}
	if existing != nil {
		logCtx.Warn("Registration failed: account name already exists")
		return nil, ErrRegistrationFailed
	}

	hashedPassword, err := hashPassword(password)
	if err != nil {
		logCtx.WithError(err).Error("Failed to hash password during registration")
		return nil, ErrInternalServer
	}

	account := &domain.Account{
		Name:     username,
		Password: hashedPassword,
		Token:    channelToken,
	}

	if err := s.accountRepo.Save(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.WithError(err).Warn("Registration failed: account name already exists (repo error)")
			return nil, ErrRegistrationFailed
		}
		logCtx.WithError(err).Error("Database error during account creation")
		return nil, ErrInternalServer
	}

	logCtx.WithField("account_id", account.ID).Info("Account registered successfully")
	account.Password = "" // 清除密码哈希再返回
	return account, nil
}

// Login 处理帐号登录，成功时返回 JWT。
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	logCtx := logrus.WithField("username", username)

	account, err := s.accountRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			logCtx.WithError(err).Warn("Login attempt failed: account not found")
		} else {
			logCtx.WithError(err).Warn("Login attempt failed: error finding account")
		}
		return "", ErrAuthenticationFailed // 对客户端统一返回认证失败
	}
	if account == nil {
		logCtx.Warn("Login attempt failed: repo returned nil account without error")
		return "", ErrAuthenticationFailed
	}

	if !checkPassword(password, account.Password) {
		logCtx.Warn("Login attempt failed: invalid password")
		return "", ErrAuthenticationFailed
	}

	token, err := s.generateJWT(account.ID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to generate JWT token during login")
		return "", ErrInternalServer
	}

	logCtx.WithField("account_id", account.ID).Info("Account logged in successfully")
	return token, nil
}

// --- 私有辅助函数 ---

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to generate hash from password: %w", err)
	}
	return string(bytes), nil
}

func checkPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func (s *AuthService) generateJWT(accountID uint) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"account_id": accountID,
		"exp":        time.Now().Add(s.jwtExpiry).Unix(),
		"iat":        time.Now().Unix(),
	})
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}
