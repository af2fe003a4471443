package editor

import (
	"github.com/sirupsen/logrus"

	"richmenu-editor/internal/domain"
	"richmenu-editor/internal/geometry"
)

// Renderer 是交互控制器对渲染层的出口。控制器只发出重绘请求，
// 实际的画布绘制不属于核心逻辑；测试时可以注入空实现。
type Renderer interface {
	// RedrawOverlay 请求重绘区域覆盖层（不重绘背景图，拖拽中高频调用）。
	RedrawOverlay(state *EditorState)
	// DrawCreatePreview 请求绘制创建中的虚线预览矩形（画布坐标角点）。
	DrawCreatePreview(state *EditorState, p0, p1 geometry.Point)
	// RefreshActionPanel 请求刷新动作配置面板（选中变化、区域变更时）。
	RefreshActionPanel(state *EditorState)
	// RefreshJSONPreview 请求刷新 JSON 预览。
	RefreshJSONPreview(state *EditorState)
}

// Broadcaster 是交互控制器对协作层的出口：区域列表产生变更后
// 请求向房间广播整表替换。实现方是 session.CollaborationSession。
type Broadcaster interface {
	BroadcastAreas(richMenuID string, areas []domain.Area)
}

// 手势状态。每次 pointer-down 进入 creating / dragging / resizing 之一，
// pointer-up 回到 selectIdle。
type gestureMode int

const (
	gestureIdle gestureMode = iota
	gestureCreating
	gestureDragging
	gestureResizing
)

// Controller 把指针/触摸事件驱动成区域变更：命中测试、选中、
// 创建、拖拽、缩放，以及随之而来的重绘请求和广播意图。
type Controller struct {
	state    *EditorState
	renderer Renderer
	bcast    Broadcaster

	mode      gestureMode
	dragStart geometry.Point // creating 的起始角点（画布坐标）
	grabX     float64        // dragging 的抓取偏移（菜单坐标）
	grabY     float64
	handle    geometry.Handle // resizing 使用的手柄
	mutated   bool            // 本次手势是否产生了区域变更
	lastTouch geometry.Point  // 最近一次触点，touchend 不带触点时回退用
}

// NewController 创建交互控制器。renderer 和 broadcaster 不允许为 nil。
func NewController(state *EditorState, renderer Renderer, bcast Broadcaster) *Controller {
	if state == nil {
		panic("EditorState cannot be nil for Controller")
	}
	if renderer == nil {
		panic("Renderer cannot be nil for Controller")
	}
	if bcast == nil {
		panic("Broadcaster cannot be nil for Controller")
	}
	return &Controller{state: state, renderer: renderer, bcast: bcast}
}

// PointerDown 处理按下事件（画布坐标）。
// 优先级：选中区域的缩放手柄 > 区域命中（进入拖拽）> 空白处开始创建。
func (c *Controller) PointerDown(p geometry.Point) {
	st := c.state
	rm := st.CurrentRichMenu()
	if rm == nil {
		return
	}

	// 先检查缩放手柄（只在已有选中区域时）
	if sel := st.SelectedArea(); sel != nil {
		if h := geometry.ResizeHandleAt(p, sel.Bounds, st.Scale); h != geometry.HandleNone {
			c.mode = gestureResizing
			c.handle = h
			return
		}
	}

	// 命中区域：选中并进入拖拽
	if idx := geometry.HitTest(p, rm.Metadata.Areas, st.Scale); idx >= 0 {
		st.SelectedAreaIndex = idx
		c.mode = gestureDragging
		area := rm.Metadata.Areas[idx]
		c.grabX = geometry.ToMenu(p.X, st.Scale) - float64(area.Bounds.X)
		c.grabY = geometry.ToMenu(p.Y, st.Scale) - float64(area.Bounds.Y)
		c.renderer.RedrawOverlay(st)
		c.renderer.RefreshActionPanel(st)
		return
	}

	// 空白处：清除选中，开始框选创建
	c.mode = gestureCreating
	c.dragStart = p
	st.SelectedAreaIndex = -1
	c.renderer.RefreshActionPanel(st)
}

// PointerMove 处理移动事件，按当前手势分派。
func (c *Controller) PointerMove(p geometry.Point) {
	st := c.state
	switch c.mode {
	case gestureCreating:
		// 创建中只画预览，不改区域列表
		c.renderer.RedrawOverlay(st)
		c.renderer.DrawCreatePreview(st, c.dragStart, p)

	case gestureDragging:
		sel := st.SelectedArea()
		if sel == nil {
			return
		}
		menuX := geometry.ToMenu(p.X, st.Scale)
		menuY := geometry.ToMenu(p.Y, st.Scale)
		sel.Bounds = geometry.ApplyDrag(sel.Bounds, menuX, menuY, c.grabX, c.grabY, st.MenuSize())
		c.mutated = true
		c.renderer.RedrawOverlay(st)
		c.renderer.RefreshJSONPreview(st)

	case gestureResizing:
		sel := st.SelectedArea()
		if sel == nil || c.handle == geometry.HandleNone {
			return
		}
		menuX := geometry.ToMenu(p.X, st.Scale)
		menuY := geometry.ToMenu(p.Y, st.Scale)
		sel.Bounds = geometry.ApplyResize(sel.Bounds, c.handle, menuX, menuY, st.MenuSize())
		c.mutated = true
		c.renderer.RedrawOverlay(st)
		c.renderer.RefreshJSONPreview(st)
	}
}

// PointerUp 结束手势。创建手势超过阈值则追加新区域并选中；
// 任何产生了变更的手势都会请求广播当前菜单页的完整区域列表。
func (c *Controller) PointerUp(p geometry.Point) {
	st := c.state
	rm := st.CurrentRichMenu()

	if c.mode == gestureCreating && rm != nil {
		if bounds, ok := geometry.CreateFromDrag(c.dragStart, p, st.Scale, st.MenuSize()); ok {
			rm.Metadata.Areas = append(rm.Metadata.Areas, domain.DefaultArea(bounds))
			st.SelectedAreaIndex = len(rm.Metadata.Areas) - 1
			c.mutated = true
			c.renderer.RefreshActionPanel(st)
			c.renderer.RefreshJSONPreview(st)
			logrus.WithFields(logrus.Fields{
				"rich_menu_id": rm.ID,
				"area_index":   st.SelectedAreaIndex,
			}).Debug("Area created from drag")
		}
		c.renderer.RedrawOverlay(st)
	}

	if c.mutated && rm != nil {
		c.bcast.BroadcastAreas(rm.ID, rm.Metadata.Areas)
	}

	c.mode = gestureIdle
	c.handle = geometry.HandleNone
	c.dragStart = geometry.Point{}
	c.mutated = false
}

// TouchStart / TouchMove / TouchEnd 把触摸事件归一化到指针事件，
// 只取第一个触点，不支持多点手势。
func (c *Controller) TouchStart(points []geometry.Point) {
	if len(points) > 0 {
		c.lastTouch = points[0]
		c.PointerDown(points[0])
	}
}

func (c *Controller) TouchMove(points []geometry.Point) {
	if len(points) > 0 {
		c.lastTouch = points[0]
		c.PointerMove(points[0])
	}
}

// TouchEnd 结束触摸手势。touchend 事件通常不再携带活跃触点，
// 此时回退到最近一次观察到的触点，保证手势一定走到 PointerUp。
func (c *Controller) TouchEnd(points []geometry.Point) {
	p := c.lastTouch
	if len(points) > 0 {
		p = points[0]
	}
	c.PointerUp(p)
}

// CursorFor 返回悬停位置应显示的鼠标指针样式，供渲染层使用。
func (c *Controller) CursorFor(p geometry.Point) string {
	st := c.state
	if sel := st.SelectedArea(); sel != nil {
		if h := geometry.ResizeHandleAt(p, sel.Bounds, st.Scale); h != geometry.HandleNone {
			return string(h) + "-resize"
		}
	}
	if rm := st.CurrentRichMenu(); rm != nil {
		if geometry.HitTest(p, rm.Metadata.Areas, st.Scale) >= 0 {
			return "move"
		}
	}
	return "crosshair"
}

// DeleteSelected 删除当前选中的区域并广播。无选中时不动作，返回 false。
func (c *Controller) DeleteSelected() bool {
	st := c.state
	rm := st.CurrentRichMenu()
	if rm == nil || st.SelectedArea() == nil {
		return false
	}
	idx := st.SelectedAreaIndex
	rm.Metadata.Areas = append(rm.Metadata.Areas[:idx], rm.Metadata.Areas[idx+1:]...)
	st.SelectedAreaIndex = -1
	c.renderer.RedrawOverlay(st)
	c.renderer.RefreshActionPanel(st)
	c.renderer.RefreshJSONPreview(st)
	c.bcast.BroadcastAreas(rm.ID, rm.Metadata.Areas)
	return true
}
