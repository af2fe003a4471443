package domain

// EditorTab 表示一个远端协作者当前停留的菜单页。
// 由 tab:switch 事件和加入房间时的 tabs:initial_state 快照维护。
type EditorTab struct {
	UserID     string `json:"user_id"`
	UserName   string `json:"user_name"`
	Color      string `json:"color"`
	RichMenuID string `json:"rich_menu_id"`
}

// RemoteCursor 表示一个远端协作者游标的最近已知位置。
// X / Y 是相对于画布的 0~1 坐标；接收端用自己的画布尺寸换算成像素，
// 因为各客户端屏幕尺寸不同，绝对坐标不可共享。
type RemoteCursor struct {
	UserID     string  `json:"user_id"`
	UserName   string  `json:"user_name"`
	Color      string  `json:"color"`
	RichMenuID string  `json:"rich_menu_id"`
	X          float64 `json:"relative_x"`
	Y          float64 `json:"relative_y"`

	// Visible 为 false 表示游标被隐藏（cursor:leave 或切到别的菜单页），
	// 但条目保留，下次 cursor:move 直接复用，避免重建闪烁。
	Visible bool `json:"-"`
}
