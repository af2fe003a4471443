package session

import (
	"sort"

	"richmenu-editor/internal/domain"
	"richmenu-editor/internal/dto"
)

// CanvasRect 是接收端画布在视口中的位置和尺寸（像素）。
// 远端游标的相对坐标用它换算成本地绝对坐标。
type CanvasRect struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// UI 是会话层对展示层的出口：通知、标签指示器、远端游标。
// 核心逻辑只发出这些请求，绘制细节不在本包范围内。
type UI interface {
	// Notify 显示一条短暂的提示（加入/离开/远端编辑等）。
	Notify(message string)
	// RefreshTabs 请求重绘菜单页标签（新增/删除/改名后）。
	RefreshTabs()
	// RefreshTabIndicators 请求按最新的 ActiveEditors 重绘每个标签的
	// 编辑者指示点（取第一个编辑者的颜色，tooltip 列出所有人名）。
	RefreshTabIndicators(editors []domain.EditorTab)
	// ShowCursor 在绝对坐标 (x, y) 处创建或移动远端游标。
	ShowCursor(cursor domain.RemoteCursor, x, y float64)
	// HideCursor 隐藏游标。fade 为 true 时带淡出动画（cursor:leave），
	// 元素保留，下次 ShowCursor 复用。
	HideCursor(userID string, fade bool)
	// RemoveCursor 彻底移除游标元素（成员离开房间时）。
	RemoveCursor(userID string)
	// CanvasRect 返回本地画布的视口矩形，用于游标坐标换算。
	CanvasRect() CanvasRect
}

// PresenceTracker 维护远端协作者的状态：每个人停留的菜单页
// （ActiveEditors）和游标位置（RemoteCursors）。
type PresenceTracker struct {
	ui      UI
	editors map[string]domain.EditorTab
	cursors map[string]*domain.RemoteCursor
}

// NewPresenceTracker 创建空的 presence 状态。
func NewPresenceTracker(ui UI) *PresenceTracker {
	if ui == nil {
		panic("UI cannot be nil for PresenceTracker")
	}
	return &PresenceTracker{
		ui:      ui,
		editors: make(map[string]domain.EditorTab),
		cursors: make(map[string]*domain.RemoteCursor),
	}
}

// Seed 用加入房间时收到的快照重建 ActiveEditors。
func (p *PresenceTracker) Seed(tabs []domain.EditorTab) {
	for _, tab := range tabs {
		if tab.UserID == "" || tab.RichMenuID == "" {
			continue
		}
		p.editors[tab.UserID] = tab
	}
	p.ui.RefreshTabIndicators(p.sortedEditors())
}

// ApplyTabSwitch 更新发送者的 ActiveEditors 条目并刷新指示器。
// 返回 true 表示发送者切到了与本地不同的菜单页（调用方据此提示）。
func (p *PresenceTracker) ApplyTabSwitch(ev dto.TabSwitch, localRichMenuID string) bool {
	p.editors[ev.UserID] = domain.EditorTab{
		UserID:     ev.UserID,
		UserName:   ev.UserName,
		Color:      ev.Color,
		RichMenuID: ev.RichMenuID,
	}
	p.ui.RefreshTabIndicators(p.sortedEditors())
	return localRichMenuID != "" && ev.RichMenuID != localRichMenuID
}

// ApplyCursorMove 更新远端游标。游标属于别的菜单页时只隐藏不删除，
// 属于本地菜单页时按接收端自己的画布矩形换算成绝对坐标后显示。
// 对未知用户直接懒创建条目，不要求先收到 join 通知。
func (p *PresenceTracker) ApplyCursorMove(ev dto.CursorMove, localRichMenuID string) {
	cursor, ok := p.cursors[ev.UserID]
	if !ok {
		cursor = &domain.RemoteCursor{UserID: ev.UserID}
		p.cursors[ev.UserID] = cursor
	}
	cursor.UserName = ev.UserName
	cursor.Color = ev.Color
	cursor.RichMenuID = ev.RichMenuID
	cursor.X = ev.RelativeX
	cursor.Y = ev.RelativeY

	if localRichMenuID == "" || ev.RichMenuID != localRichMenuID {
		cursor.Visible = false
		p.ui.HideCursor(ev.UserID, false)
		return
	}

	rect := p.ui.CanvasRect()
	cursor.Visible = true
	p.ui.ShowCursor(*cursor, rect.Left+ev.RelativeX*rect.Width, rect.Top+ev.RelativeY*rect.Height)
}

// ApplyCursorLeave 淡出并隐藏游标，条目保留以便复现时无需重建。
func (p *PresenceTracker) ApplyCursorLeave(ev dto.CursorLeave) {
	cursor, ok := p.cursors[ev.UserID]
	if !ok {
		return
	}
	cursor.Visible = false
	p.ui.HideCursor(ev.UserID, true)
}

// RemoveUser 在成员离开时清掉它的游标和 ActiveEditors 条目。
func (p *PresenceTracker) RemoveUser(userID string) {
	if _, ok := p.cursors[userID]; ok {
		delete(p.cursors, userID)
		p.ui.RemoveCursor(userID)
	}
	if _, ok := p.editors[userID]; ok {
		delete(p.editors, userID)
		p.ui.RefreshTabIndicators(p.sortedEditors())
	}
}

// Reset 清空全部 presence 状态（离开房间时）。
func (p *PresenceTracker) Reset() {
	for userID := range p.cursors {
		p.ui.RemoveCursor(userID)
	}
	p.editors = make(map[string]domain.EditorTab)
	p.cursors = make(map[string]*domain.RemoteCursor)
	p.ui.RefreshTabIndicators(nil)
}

// Editors 返回 ActiveEditors 的副本（按 userId 排序，输出稳定）。
func (p *PresenceTracker) Editors() []domain.EditorTab {
	return p.sortedEditors()
}

// EditorsOn 返回停留在指定菜单页上的协作者。
func (p *PresenceTracker) EditorsOn(richMenuID string) []domain.EditorTab {
	var out []domain.EditorTab
	for _, tab := range p.sortedEditors() {
		if tab.RichMenuID == richMenuID {
			out = append(out, tab)
		}
	}
	return out
}

// Cursor 返回指定用户的游标状态，不存在时返回 nil。
func (p *PresenceTracker) Cursor(userID string) *domain.RemoteCursor {
	return p.cursors[userID]
}

func (p *PresenceTracker) sortedEditors() []domain.EditorTab {
	out := make([]domain.EditorTab, 0, len(p.editors))
	for _, tab := range p.editors {
		out = append(out, tab)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
