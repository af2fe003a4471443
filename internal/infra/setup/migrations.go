package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"richmenu-editor/internal/domain"
)

// MigrateDB 迁移全部表结构。accounts 表用自定义 SQL 建表，
// 因为 token 是 TEXT 列，AutoMigrate 的默认索引策略会在 MySQL 上报
// 索引长度错误；其余表交给 AutoMigrate。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	if err := migrateAccountsTable(db); err != nil {
		return fmt.Errorf("failed to migrate accounts table: %w", err)
	}

	if err := db.AutoMigrate(&domain.Project{}, &domain.RichMenu{}); err != nil {
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}

	logrus.Info("Database migration completed successfully")
	return nil
}

func migrateAccountsTable(db *gorm.DB) error {
	var count int64
	db.Raw("SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = 'accounts'").Count(&count)

	if count > 0 {
		// 表已存在，让 AutoMigrate 补齐新列和索引
		if err := db.AutoMigrate(&domain.Account{}); err != nil {
			return fmt.Errorf("failed to update accounts table: %w", err)
		}
		logrus.Info("Accounts table schema checked/updated successfully")
		return nil
	}

	sql := `
	CREATE TABLE accounts (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		password TEXT NOT NULL,
		token TEXT,
		created_at DATETIME(3),
		updated_at DATETIME(3),
		UNIQUE INDEX idx_account_name (name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_general_ci;
	`
	if err := db.Exec(sql).Error; err != nil {
		return fmt.Errorf("failed to create accounts table: %w", err)
	}
	logrus.Info("Accounts table created successfully")
	return nil
}
