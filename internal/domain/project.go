package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Account 表示一个消息平台帐号（bot channel），是项目的归属单位。
type Account struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Password  string    `gorm:"type:text;not null" json:"-"` // bcrypt 哈希
	Token     string    `gorm:"type:text" json:"-"`          // channel access token，不出现在 API 响应里
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// Project 表示一个编辑项目：一个帐号下的一组 Rich Menu。
// 项目 ID 同时是协作房间的 key。
type Project struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	AccountID uint       `gorm:"index;not null" json:"accountId"`
	Name      string     `gorm:"size:100;not null" json:"name"`
	RichMenus []RichMenu `gorm:"foreignKey:ProjectID" json:"richMenus"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// RichMenu 表示项目内的一个菜单页（tab）。
// ID 是字符串：本地新建时由客户端生成，发布后替换为平台分配的 ID。
// Metadata 以 JSON 文本存储在 MetadataJSON 列，通过 ParseMetadata /
// SetMetadata 读写。
type RichMenu struct {
	ID            string    `gorm:"primaryKey;size:64" json:"id"`
	ProjectID     uint      `gorm:"index;not null" json:"projectId"`
	Alias         string    `gorm:"size:50;not null" json:"alias"`
	MetadataJSON  string    `gorm:"type:text;not null" json:"-"`
	ImagePath     string    `gorm:"size:255" json:"imagePath,omitempty"`
	ThumbnailPath string    `gorm:"size:255" json:"thumbnailPath,omitempty"`
	ImageName     string    `gorm:"size:255" json:"imageName,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updatedAt"`

	// 解析后的 Metadata，持久化时忽略。
	Metadata Metadata `gorm:"-" json:"metadata"`
}

// ParseMetadata 将 MetadataJSON 列解析到 Metadata 字段。
func (rm *RichMenu) ParseMetadata() error {
	if rm.MetadataJSON == "" || rm.MetadataJSON == "null" {
		rm.Metadata = NewMetadata()
		return nil
	}
	var meta Metadata
	if err := json.Unmarshal([]byte(rm.MetadataJSON), &meta); err != nil {
		return fmt.Errorf("failed to unmarshal rich menu metadata: %w", err)
	}
	if meta.Areas == nil {
		meta.Areas = []Area{}
	}
	rm.Metadata = meta
	return nil
}

// SetMetadata 将 Metadata 字段序列化回 MetadataJSON 列。
func (rm *RichMenu) SetMetadata(meta Metadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal rich menu metadata: %w", err)
	}
	rm.Metadata = meta
	rm.MetadataJSON = string(data)
	return nil
}

// FindRichMenu 按 ID 在项目内查找菜单，返回索引，找不到返回 -1。
func (p *Project) FindRichMenu(richMenuID string) int {
	for i := range p.RichMenus {
		if p.RichMenus[i].ID == richMenuID {
			return i
		}
	}
	return -1
}
