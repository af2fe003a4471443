package domain

import (
	"fmt"
)

// Action 类型常量。与 LINE Rich Menu API 的 action.type 字段保持一致，
// "flex" 是编辑器内部类型，导出时会被归一化为 postback。
const (
	ActionTypeNone           = "none"
	ActionTypeURI            = "uri"
	ActionTypeMessage        = "message"
	ActionTypePostback       = "postback"
	ActionTypeRichMenuSwitch = "richmenuswitch"
	ActionTypeFlex           = "flex"
)

// Bounds 表示一个点击区域在 Rich Menu 坐标系中的矩形范围。
// 单位是菜单像素（2500x1686 设计稿坐标），不是画布像素。
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Contains 判断菜单坐标 (x, y) 是否落在矩形内（含边界）。
func (b Bounds) Contains(x, y float64) bool {
	return x >= float64(b.X) && x <= float64(b.X+b.Width) &&
		y >= float64(b.Y) && y <= float64(b.Y+b.Height)
}

// Action 表示点击区域触发的动作，按 Type 区分变体。
// 非当前变体的字段保持零值并在 JSON 中省略。
type Action struct {
	Type            string `json:"type"`
	URI             string `json:"uri,omitempty"`
	Text            string `json:"text,omitempty"`
	Data            string `json:"data,omitempty"`
	DisplayText     string `json:"displayText,omitempty"`
	RichMenuAliasID string `json:"richMenuAliasId,omitempty"`
}

// Area 表示 Rich Menu 上的一个矩形点击区域。
type Area struct {
	Bounds Bounds `json:"bounds"`
	Action Action `json:"action"`
}

// DefaultArea 返回新建区域的默认形态：uri 动作、空目标。
func DefaultArea(bounds Bounds) Area {
	return Area{
		Bounds: bounds,
		Action: Action{Type: ActionTypeURI, URI: ""},
	}
}

// Validate 检查区域边界是否落在给定的菜单尺寸内且为正尺寸。
func (a Area) Validate(size MenuSize) error {
	b := a.Bounds
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("area has non-positive size %dx%d", b.Width, b.Height)
	}
	if b.X < 0 || b.Y < 0 {
		return fmt.Errorf("area origin (%d,%d) is negative", b.X, b.Y)
	}
	if b.X+b.Width > size.Width || b.Y+b.Height > size.Height {
		return fmt.Errorf("area (%d,%d %dx%d) exceeds menu size %dx%d",
			b.X, b.Y, b.Width, b.Height, size.Width, size.Height)
	}
	return nil
}

// Normalize 将动作归一化为可发布到平台的形态：
//   - none / 未知类型返回 nil（调用方应丢弃该区域）
//   - flex 变体转换为 postback，data 中保存外部文档引用
//   - richmenuswitch 的 data 按约定与 richMenuAliasId 保持一致
//
// 返回的是新对象，原 Action 不被修改。
func (a Action) Normalize() *Action {
	switch a.Type {
	case ActionTypeURI:
		return &Action{Type: ActionTypeURI, URI: a.URI}
	case ActionTypeMessage:
		return &Action{Type: ActionTypeMessage, Text: a.Text}
	case ActionTypePostback, ActionTypeFlex:
		return &Action{Type: ActionTypePostback, Data: a.Data, DisplayText: a.DisplayText}
	case ActionTypeRichMenuSwitch:
		return &Action{
			Type:            ActionTypeRichMenuSwitch,
			RichMenuAliasID: a.RichMenuAliasID,
			Data:            a.RichMenuAliasID,
		}
	default:
		return nil
	}
}
