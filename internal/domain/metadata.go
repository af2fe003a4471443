package domain

import (
	"fmt"
	"unicode/utf16"
)

// 设计稿固定尺寸。编辑器中所有菜单坐标都以此为基准。
const (
	MenuWidth  = 2500
	MenuHeight = 1686

	// ChatBarText 的最大长度（UTF-16 code unit，与平台限制一致）。
	MaxChatBarTextLen = 14
)

// MenuSize 表示 Rich Menu 画布的尺寸（菜单坐标系）。
type MenuSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DefaultMenuSize 返回设计稿固定尺寸 2500x1686。
func DefaultMenuSize() MenuSize {
	return MenuSize{Width: MenuWidth, Height: MenuHeight}
}

// Metadata 表示一个 Rich Menu 的可编辑内容：画布尺寸、聊天栏文字、
// 以及有序的点击区域列表。区域顺序即 z-order，后创建的绘制在上层。
type Metadata struct {
	Name        string   `json:"name,omitempty"`
	Size        MenuSize `json:"size"`
	ChatBarText string   `json:"chatBarText"`
	Selected    bool     `json:"selected"`
	Areas       []Area   `json:"areas"`
}

// NewMetadata 返回一个空的 Metadata，尺寸固定为设计稿尺寸。
func NewMetadata() Metadata {
	return Metadata{
		Size:     DefaultMenuSize(),
		Selected: true,
		Areas:    []Area{},
	}
}

// Validate 检查 Metadata 是否满足发布前的约束。
func (m Metadata) Validate() error {
	if m.Size.Width <= 0 || m.Size.Height <= 0 {
		return fmt.Errorf("invalid menu size %dx%d", m.Size.Width, m.Size.Height)
	}
	if n := len(utf16.Encode([]rune(m.ChatBarText))); n > MaxChatBarTextLen {
		return fmt.Errorf("chatBarText is %d code units, max is %d", n, MaxChatBarTextLen)
	}
	for i, area := range m.Areas {
		if err := area.Validate(m.Size); err != nil {
			return fmt.Errorf("area %d: %w", i, err)
		}
	}
	return nil
}
