// Package geometry 实现区域编辑的纯坐标运算：命中测试、拖拽/缩放的
// 边界计算、画布坐标与菜单坐标的换算。不做任何 I/O，也不持有状态，
// 方便在没有画布的环境下单测。
package geometry

import (
	"math"

	"richmenu-editor/internal/domain"
)

const (
	// HandleSize 是缩放手柄的边长（画布像素）。命中容差为其一半。
	HandleSize = 8

	// MinAreaSize 是区域的最小宽高（菜单坐标单位）。
	MinAreaSize = 20

	// CreateThreshold 是创建区域的最小拖拽距离（画布像素）。
	// 低于此值视为误触点击，不产生区域。
	CreateThreshold = 10
)

// Handle 标识选中区域八个缩放手柄之一；空串表示未命中任何手柄。
type Handle string

const (
	HandleNone Handle = ""
	HandleNW   Handle = "nw"
	HandleN    Handle = "n"
	HandleNE   Handle = "ne"
	HandleE    Handle = "e"
	HandleSE   Handle = "se"
	HandleS    Handle = "s"
	HandleSW   Handle = "sw"
	HandleW    Handle = "w"
)

// Point 是画布坐标系中的一个点（像素）。
type Point struct {
	X float64
	Y float64
}

// ScaleFor 计算画布宽度对应的缩放比例（画布像素 / 菜单单位）。
func ScaleFor(canvasWidth float64, size domain.MenuSize) float64 {
	if size.Width <= 0 {
		return 0
	}
	return canvasWidth / float64(size.Width)
}

// CanvasHeight 按菜单长宽比推导画布高度。
func CanvasHeight(canvasWidth float64, size domain.MenuSize) float64 {
	if size.Width <= 0 {
		return 0
	}
	return canvasWidth * float64(size.Height) / float64(size.Width)
}

// ToCanvas 将菜单坐标换算为画布像素。
func ToCanvas(menuCoord, scale float64) float64 {
	return menuCoord * scale
}

// ToMenu 将画布像素换算为菜单坐标。
func ToMenu(canvasCoord, scale float64) float64 {
	if scale == 0 {
		return 0
	}
	return canvasCoord / scale
}

// HitTest 返回画布坐标 p 命中的区域下标。按 z-order 倒序遍历
// （后创建的绘制在上层，优先命中），未命中返回 -1。
func HitTest(p Point, areas []domain.Area, scale float64) int {
	for i := len(areas) - 1; i >= 0; i-- {
		b := areas[i].Bounds
		x := float64(b.X) * scale
		y := float64(b.Y) * scale
		w := float64(b.Width) * scale
		h := float64(b.Height) * scale
		if p.X >= x && p.X <= x+w && p.Y >= y && p.Y <= y+h {
			return i
		}
	}
	return -1
}

// ResizeHandleAt 返回画布坐标 p 命中的缩放手柄。手柄位于选中区域
// 边框的四角和四边中点，命中条件是两个轴向的偏差都不超过 HandleSize/2。
func ResizeHandleAt(p Point, selected domain.Bounds, scale float64) Handle {
	sx := float64(selected.X) * scale
	sy := float64(selected.Y) * scale
	sw := float64(selected.Width) * scale
	sh := float64(selected.Height) * scale

	handles := []struct {
		name Handle
		x, y float64
	}{
		{HandleNW, sx, sy},
		{HandleN, sx + sw/2, sy},
		{HandleNE, sx + sw, sy},
		{HandleE, sx + sw, sy + sh/2},
		{HandleSE, sx + sw, sy + sh},
		{HandleS, sx + sw/2, sy + sh},
		{HandleSW, sx, sy + sh},
		{HandleW, sx, sy + sh/2},
	}

	const tolerance = float64(HandleSize) / 2
	for _, h := range handles {
		if math.Abs(p.X-h.x) <= tolerance && math.Abs(p.Y-h.y) <= tolerance {
			return h.name
		}
	}
	return HandleNone
}

// ApplyResize 根据手柄和指针的菜单坐标重算区域边界。每个手柄只改写
// 自己对应的边，锚点是对侧边/角。结果经过最小尺寸、画布范围的约束，
// 右/下越界时收缩宽高而不移动对侧边，四个字段取整。
func ApplyResize(b domain.Bounds, handle Handle, menuX, menuY float64, size domain.MenuSize) domain.Bounds {
	x := float64(b.X)
	y := float64(b.Y)
	w := float64(b.Width)
	h := float64(b.Height)
	right := x + w
	bottom := y + h

	switch handle {
	case HandleNW:
		w = right - menuX
		h = bottom - menuY
		x = menuX
		y = menuY
	case HandleNE:
		w = menuX - x
		h = bottom - menuY
		y = menuY
	case HandleSW:
		w = right - menuX
		h = menuY - y
		x = menuX
	case HandleSE:
		w = menuX - x
		h = menuY - y
	case HandleN:
		h = bottom - menuY
		y = menuY
	case HandleS:
		h = menuY - y
	case HandleW:
		w = right - menuX
		x = menuX
	case HandleE:
		w = menuX - x
	default:
		return b
	}

	// 最小尺寸约束
	w = math.Max(MinAreaSize, w)
	h = math.Max(MinAreaSize, h)

	// 原点约束到画布内
	x = math.Max(0, math.Min(x, float64(size.Width)-w))
	y = math.Max(0, math.Min(y, float64(size.Height)-h))

	// 右/下边不允许越界：收缩宽高而不是移动原点
	if x+w > float64(size.Width) {
		w = float64(size.Width) - x
	}
	if y+h > float64(size.Height) {
		h = float64(size.Height) - y
	}

	return domain.Bounds{
		X:      int(math.Round(x)),
		Y:      int(math.Round(y)),
		Width:  int(math.Round(w)),
		Height: int(math.Round(h)),
	}
}

// ApplyDrag 平移区域，保持宽高不变。grabX / grabY 是按下时指针相对
// 区域原点的偏移（菜单坐标），用来避免区域跳到指针位置。
func ApplyDrag(b domain.Bounds, menuX, menuY, grabX, grabY float64, size domain.MenuSize) domain.Bounds {
	nx := math.Round(menuX - grabX)
	ny := math.Round(menuY - grabY)
	nx = math.Max(0, math.Min(nx, float64(size.Width-b.Width)))
	ny = math.Max(0, math.Min(ny, float64(size.Height-b.Height)))
	return domain.Bounds{
		X:      int(nx),
		Y:      int(ny),
		Width:  b.Width,
		Height: b.Height,
	}
}

// CreateFromDrag 将两个画布角点归一化成一个区域边界（菜单坐标）。
// 任一边不超过 CreateThreshold 画布像素时返回 false，不创建区域。
func CreateFromDrag(p0, p1 Point, scale float64, size domain.MenuSize) (domain.Bounds, bool) {
	x := math.Min(p0.X, p1.X)
	y := math.Min(p0.Y, p1.Y)
	w := math.Abs(p1.X - p0.X)
	h := math.Abs(p1.Y - p0.Y)

	if w <= CreateThreshold || h <= CreateThreshold {
		return domain.Bounds{}, false
	}

	b := domain.Bounds{
		X:      int(math.Round(ToMenu(x, scale))),
		Y:      int(math.Round(ToMenu(y, scale))),
		Width:  int(math.Round(ToMenu(w, scale))),
		Height: int(math.Round(ToMenu(h, scale))),
	}

	// 原点约束到画布内（宽高已由拖拽范围保证不超过画布）
	b.X = clampInt(b.X, 0, size.Width-b.Width)
	b.Y = clampInt(b.Y, 0, size.Height-b.Height)
	return b, true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
