// Package dto 定义实时协作协议的消息目录。字段名是线上格式的一部分，
// 所有端必须一致，不可随意改名。
package dto

import (
	"encoding/json"
	"fmt"

	"richmenu-editor/internal/domain"
)

// 事件名。房间以项目 ID 为 key，所有事件都只在房间内转发。
const (
	EventJoinProject    = "join_project"
	EventLeaveProject   = "leave_project"
	EventUserJoined     = "user:joined"
	EventUserLeft       = "user:left"
	EventTabsInitial    = "tabs:initial_state"
	EventTabSwitch      = "tab:switch"
	EventUpdateAreas    = "richmenu:update_areas"
	EventUpdateMetadata = "richmenu:update_metadata"
	EventRichMenuNew    = "richmenu:new"
	EventRichMenuDelete = "richmenu:delete"
	EventCursorMove     = "cursor:move"
	EventCursorLeave    = "cursor:leave"
)

// Envelope 是 WebSocket 上传输的帧：事件名加原始 payload。
// payload 的具体结构由 Event 决定，收到后再二次解码。
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope 将 payload 序列化并包进帧里。
func NewEnvelope(event string, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	return Envelope{Event: event, Payload: raw}, nil
}

// Encode 将帧序列化为传输字节。
func (e Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope %s: %w", e.Event, err)
	}
	return data, nil
}

// DecodeEnvelope 从传输字节解析帧。
func DecodeEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	if e.Event == "" {
		return Envelope{}, fmt.Errorf("envelope has empty event name")
	}
	return e, nil
}

// JoinProject 请求进入项目房间，宣告自己的身份。
type JoinProject struct {
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	Color     string `json:"color"`
}

// LeaveProject 请求离开项目房间。
type LeaveProject struct {
	ProjectID string `json:"project_id"`
}

// UserJoined 通知房间内成员有新协作者加入。
type UserJoined struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Color    string `json:"color"`
}

// UserLeft 通知协作者离开（显式离开或断线都会触发）。
type UserLeft struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// TabsInitialState 是加入房间时收到的快照：现有成员各自停留的菜单页。
type TabsInitialState struct {
	ActiveTabs []domain.EditorTab `json:"active_tabs"`
}

// TabSwitch 宣告发送者切换到了某个菜单页。
type TabSwitch struct {
	ProjectID  string `json:"project_id"`
	RichMenuID string `json:"rich_menu_id"`
	UserID     string `json:"user_id"`
	UserName   string `json:"user_name"`
	Color      string `json:"color"`
}

// UpdateAreas 整表替换指定菜单页的区域列表（last-writer-wins）。
type UpdateAreas struct {
	ProjectID  string        `json:"project_id"`
	RichMenuID string        `json:"rich_menu_id"`
	Areas      []domain.Area `json:"areas"`
	Sender     string        `json:"sender"`
}

// MetadataPatch 是 metadata 的部分更新。指针为 nil 表示该字段未携带，
// 接收端只合并携带的字段，两人并发改不同字段互不覆盖。
type MetadataPatch struct {
	Name          *string          `json:"name,omitempty"`
	ChatBarText   *string          `json:"chatBarText,omitempty"`
	Size          *domain.MenuSize `json:"size,omitempty"`
	Selected      *bool            `json:"selected,omitempty"`
	ImagePath     *string          `json:"imagePath,omitempty"`
	ThumbnailPath *string          `json:"thumbnailPath,omitempty"`
	ImageName     *string          `json:"imageName,omitempty"`
}

// UpdateMetadata 按字段合并指定菜单页的 metadata。
type UpdateMetadata struct {
	ProjectID  string        `json:"project_id"`
	RichMenuID string        `json:"rich_menu_id"`
	Metadata   MetadataPatch `json:"metadata"`
	Sender     string        `json:"sender"`
}

// RichMenuNew 宣告项目新增了一个菜单页。
type RichMenuNew struct {
	ProjectID string          `json:"project_id"`
	RichMenu  domain.RichMenu `json:"rich_menu"`
	Sender    string          `json:"sender"`
}

// RichMenuDelete 宣告项目删除了一个菜单页。
type RichMenuDelete struct {
	ProjectID  string `json:"project_id"`
	RichMenuID string `json:"rich_menu_id"`
	Sender     string `json:"sender"`
}

// CursorMove 广播游标位置。坐标是相对画布的 0~1 值，各端屏幕尺寸
// 不同，绝对像素不可共享。
type CursorMove struct {
	ProjectID  string  `json:"project_id"`
	RichMenuID string  `json:"rich_menu_id"`
	RelativeX  float64 `json:"relative_x"`
	RelativeY  float64 `json:"relative_y"`
	UserID     string  `json:"user_id"`
	UserName   string  `json:"user_name"`
	Color      string  `json:"color"`
}

// CursorLeave 宣告游标离开画布，接收端隐藏（不删除）对应游标。
type CursorLeave struct {
	ProjectID  string `json:"project_id"`
	RichMenuID string `json:"rich_menu_id"`
	UserID     string `json:"user_id"`
}
