package geometry_test

import (
	"testing"

	"richmenu-editor/internal/domain"
	"richmenu-editor/internal/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func menuSize() domain.MenuSize {
	return domain.MenuSize{Width: 2500, Height: 1686}
}

func areaAt(x, y, w, h int) domain.Area {
	return domain.Area{Bounds: domain.Bounds{X: x, Y: y, Width: w, Height: h}}
}

// --- HitTest ---

func TestHitTest_TopmostAreaWins(t *testing.T) {
	// 两个重叠区域，后创建的（下标大的）应当优先命中
	areas := []domain.Area{
		areaAt(0, 0, 1000, 1000),
		areaAt(500, 500, 1000, 1000),
	}
	scale := 0.1

	// (60,60) 画布坐标 = (600,600) 菜单坐标，落在两个区域的交集里
	idx := geometry.HitTest(geometry.Point{X: 60, Y: 60}, areas, scale)
	assert.Equal(t, 1, idx, "重叠时应命中 z-order 最高的区域")

	// (10,10) 只落在第一个区域里
	idx = geometry.HitTest(geometry.Point{X: 10, Y: 10}, areas, scale)
	assert.Equal(t, 0, idx)

	// 空白处不命中
	idx = geometry.HitTest(geometry.Point{X: 200, Y: 10}, areas, scale)
	assert.Equal(t, -1, idx)
}

func TestHitTest_EmptyAreas(t *testing.T) {
	idx := geometry.HitTest(geometry.Point{X: 1, Y: 1}, nil, 0.1)
	assert.Equal(t, -1, idx)
}

func TestHitTest_BoundaryInclusive(t *testing.T) {
	areas := []domain.Area{areaAt(100, 100, 200, 200)}
	scale := 0.5

	// 区域边界（含）应命中
	assert.Equal(t, 0, geometry.HitTest(geometry.Point{X: 50, Y: 50}, areas, scale))
	assert.Equal(t, 0, geometry.HitTest(geometry.Point{X: 150, Y: 150}, areas, scale))
	// 边界外一像素不命中
	assert.Equal(t, -1, geometry.HitTest(geometry.Point{X: 151, Y: 150}, areas, scale))
}

// --- ResizeHandleAt ---

func TestResizeHandleAt_AllHandles(t *testing.T) {
	// 区域 (100,100) 400x200，scale 0.5 → 画布上 (50,50) 200x100
	bounds := domain.Bounds{X: 100, Y: 100, Width: 400, Height: 200}
	scale := 0.5

	cases := []struct {
		name   string
		p      geometry.Point
		expect geometry.Handle
	}{
		{"nw corner", geometry.Point{X: 50, Y: 50}, geometry.HandleNW},
		{"n midpoint", geometry.Point{X: 150, Y: 50}, geometry.HandleN},
		{"ne corner", geometry.Point{X: 250, Y: 50}, geometry.HandleNE},
		{"e midpoint", geometry.Point{X: 250, Y: 100}, geometry.HandleE},
		{"se corner", geometry.Point{X: 250, Y: 150}, geometry.HandleSE},
		{"s midpoint", geometry.Point{X: 150, Y: 150}, geometry.HandleS},
		{"sw corner", geometry.Point{X: 50, Y: 150}, geometry.HandleSW},
		{"w midpoint", geometry.Point{X: 50, Y: 100}, geometry.HandleW},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, geometry.ResizeHandleAt(tc.p, bounds, scale))
		})
	}
}

func TestResizeHandleAt_Tolerance(t *testing.T) {
	bounds := domain.Bounds{X: 100, Y: 100, Width: 400, Height: 200}
	scale := 0.5

	// 手柄中心偏移 4px（= HandleSize/2）以内命中
	assert.Equal(t, geometry.HandleNW, geometry.ResizeHandleAt(geometry.Point{X: 54, Y: 46}, bounds, scale))
	// 偏移超过容差不命中
	assert.Equal(t, geometry.HandleNone, geometry.ResizeHandleAt(geometry.Point{X: 55, Y: 50}, bounds, scale))
}

// --- ApplyResize ---

func TestApplyResize_SEHandle(t *testing.T) {
	size := menuSize()
	bounds := domain.Bounds{X: 0, Y: 0, Width: 500, Height: 500}

	// se 手柄只改写宽高，锚点是左上角
	got := geometry.ApplyResize(bounds, geometry.HandleSE, 50, 50, size)
	assert.Equal(t, domain.Bounds{X: 0, Y: 0, Width: 50, Height: 50}, got)

	// 指针拖到负方向时 se 只能收缩到最小尺寸，原点不动
	got = geometry.ApplyResize(got, geometry.HandleSE, -10, -10, size)
	assert.Equal(t, domain.Bounds{X: 0, Y: 0, Width: 20, Height: 20}, got)
}

func TestApplyResize_NWHandleMovesOrigin(t *testing.T) {
	size := menuSize()
	bounds := domain.Bounds{X: 100, Y: 100, Width: 400, Height: 400}

	got := geometry.ApplyResize(bounds, geometry.HandleNW, 200, 150, size)
	assert.Equal(t, domain.Bounds{X: 200, Y: 150, Width: 300, Height: 350}, got)
}

func TestApplyResize_EdgeHandlesChangeOneAxis(t *testing.T) {
	size := menuSize()
	bounds := domain.Bounds{X: 100, Y: 100, Width: 400, Height: 400}

	got := geometry.ApplyResize(bounds, geometry.HandleE, 700, 9999, size)
	assert.Equal(t, domain.Bounds{X: 100, Y: 100, Width: 600, Height: 400}, got,
		"e 手柄不应影响 y / height")

	got = geometry.ApplyResize(bounds, geometry.HandleN, -9999, 300, size)
	assert.Equal(t, domain.Bounds{X: 100, Y: 300, Width: 400, Height: 200}, got,
		"n 手柄不应影响 x / width")
}

func TestApplyResize_NeverDegenerateOrOutOfBounds(t *testing.T) {
	size := menuSize()
	handles := []geometry.Handle{
		geometry.HandleNW, geometry.HandleN, geometry.HandleNE, geometry.HandleE,
		geometry.HandleSE, geometry.HandleS, geometry.HandleSW, geometry.HandleW,
	}
	starts := []domain.Bounds{
		{X: 0, Y: 0, Width: 100, Height: 100},
		{X: 2400, Y: 1586, Width: 100, Height: 100},
		{X: 1000, Y: 800, Width: 500, Height: 500},
	}
	pointers := []geometry.Point{
		{X: -500, Y: -500},
		{X: 5000, Y: 5000},
		{X: 0, Y: 1686},
		{X: 2500, Y: 0},
		{X: 1250, Y: 843},
	}

	for _, b := range starts {
		for _, h := range handles {
			for _, p := range pointers {
				got := geometry.ApplyResize(b, h, p.X, p.Y, size)
				assert.GreaterOrEqual(t, got.Width, geometry.MinAreaSize)
				assert.GreaterOrEqual(t, got.Height, geometry.MinAreaSize)
				assert.GreaterOrEqual(t, got.X, 0)
				assert.GreaterOrEqual(t, got.Y, 0)
				assert.LessOrEqual(t, got.X+got.Width, size.Width)
				assert.LessOrEqual(t, got.Y+got.Height, size.Height)
			}
		}
	}
}

func TestApplyResize_UnknownHandleNoop(t *testing.T) {
	bounds := domain.Bounds{X: 10, Y: 10, Width: 100, Height: 100}
	got := geometry.ApplyResize(bounds, geometry.HandleNone, 0, 0, menuSize())
	assert.Equal(t, bounds, got)
}

// --- ApplyDrag ---

func TestApplyDrag_TranslatesKeepingSize(t *testing.T) {
	size := menuSize()
	bounds := domain.Bounds{X: 100, Y: 100, Width: 400, Height: 300}

	// 按下点在区域内偏移 (50,50)，指针移到 (500,400)
	got := geometry.ApplyDrag(bounds, 500, 400, 50, 50, size)
	assert.Equal(t, domain.Bounds{X: 450, Y: 350, Width: 400, Height: 300}, got)
}

func TestApplyDrag_ClampsToCanvas(t *testing.T) {
	size := menuSize()
	bounds := domain.Bounds{X: 100, Y: 100, Width: 400, Height: 300}

	got := geometry.ApplyDrag(bounds, -1000, -1000, 0, 0, size)
	assert.Equal(t, domain.Bounds{X: 0, Y: 0, Width: 400, Height: 300}, got)

	got = geometry.ApplyDrag(bounds, 99999, 99999, 0, 0, size)
	assert.Equal(t, domain.Bounds{X: 2100, Y: 1386, Width: 400, Height: 300}, got)
}

// --- CreateFromDrag ---

func TestCreateFromDrag_ZeroDragYieldsNothing(t *testing.T) {
	p := geometry.Point{X: 30, Y: 30}
	_, ok := geometry.CreateFromDrag(p, p, 0.1, menuSize())
	assert.False(t, ok, "零距离拖拽不应创建区域")
}

func TestCreateFromDrag_BelowThresholdYieldsNothing(t *testing.T) {
	// 任一边不超过 10px 都不创建
	_, ok := geometry.CreateFromDrag(geometry.Point{X: 0, Y: 0}, geometry.Point{X: 100, Y: 10}, 0.1, menuSize())
	assert.False(t, ok)
	_, ok = geometry.CreateFromDrag(geometry.Point{X: 0, Y: 0}, geometry.Point{X: 10, Y: 100}, 0.1, menuSize())
	assert.False(t, ok)
}

func TestCreateFromDrag_NormalizesCorners(t *testing.T) {
	// 从右下往左上拖拽，角点应被归一化
	b, ok := geometry.CreateFromDrag(geometry.Point{X: 110, Y: 160}, geometry.Point{X: 10, Y: 10}, 0.1, menuSize())
	require.True(t, ok)
	assert.Equal(t, domain.Bounds{X: 100, Y: 100, Width: 1000, Height: 1500}, b)
}

// 对应场景 A：0.1 缩放下从 (10,10) 拖到 (110,160)。
func TestCreateFromDrag_ScenarioA(t *testing.T) {
	b, ok := geometry.CreateFromDrag(geometry.Point{X: 10, Y: 10}, geometry.Point{X: 110, Y: 160}, 0.1, menuSize())
	require.True(t, ok)
	assert.Equal(t, domain.Bounds{X: 100, Y: 100, Width: 1000, Height: 1500}, b)
	assert.LessOrEqual(t, b.Y+b.Height, 1686)
}

// --- 坐标换算 ---

func TestScaleAndConversions(t *testing.T) {
	size := menuSize()
	scale := geometry.ScaleFor(250, size)
	assert.InDelta(t, 0.1, scale, 1e-9)

	assert.InDelta(t, 168.6, geometry.CanvasHeight(250, size), 1e-9)
	assert.InDelta(t, 25.0, geometry.ToCanvas(250, scale), 1e-9)
	assert.InDelta(t, 2500.0, geometry.ToMenu(250, scale), 1e-9)
}
