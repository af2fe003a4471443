package editor_test

import (
	"testing"

	"richmenu-editor/internal/domain"
	"richmenu-editor/internal/editor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func projectWithMenus(n int) *domain.Project {
	p := &domain.Project{ID: 1, Name: "demo"}
	for i := 0; i < n; i++ {
		rm := domain.RichMenu{ID: string(rune('a' + i)), Metadata: domain.NewMetadata()}
		p.RichMenus = append(p.RichMenus, rm)
	}
	return p
}

func TestEditorState_CurrentRichMenu(t *testing.T) {
	st := editor.NewEditorState(projectWithMenus(2))
	require.NotNil(t, st.CurrentRichMenu())
	assert.Equal(t, "a", st.CurrentRichMenu().ID)

	assert.True(t, st.SwitchTab(1))
	assert.Equal(t, "b", st.CurrentRichMenu().ID)
	assert.Equal(t, -1, st.SelectedAreaIndex, "切换菜单页应清除选中")

	assert.False(t, st.SwitchTab(5))
	assert.Equal(t, 1, st.CurrentTabIndex, "越界切换不应改变当前页")

	empty := editor.NewEditorState(&domain.Project{})
	assert.Nil(t, empty.CurrentRichMenu())
}

func TestEditorState_ClampSelection(t *testing.T) {
	st := editor.NewEditorState(projectWithMenus(1))
	rm := st.CurrentRichMenu()
	rm.Metadata.Areas = []domain.Area{
		domain.DefaultArea(domain.Bounds{X: 0, Y: 0, Width: 100, Height: 100}),
		domain.DefaultArea(domain.Bounds{X: 200, Y: 0, Width: 100, Height: 100}),
	}
	st.SelectedAreaIndex = 1

	// 列表未收缩时不重置
	assert.False(t, st.ClampSelection())
	assert.Equal(t, 1, st.SelectedAreaIndex)

	// 远端整表替换把列表缩短后，失效下标重置为 -1
	rm.Metadata.Areas = rm.Metadata.Areas[:1]
	assert.True(t, st.ClampSelection())
	assert.Equal(t, -1, st.SelectedAreaIndex)
}

func TestEditorState_ClampTab(t *testing.T) {
	st := editor.NewEditorState(projectWithMenus(3))
	st.CurrentTabIndex = 2

	st.Project.RichMenus = st.Project.RichMenus[:1]
	st.ClampTab()
	assert.Equal(t, 0, st.CurrentTabIndex)
}

func TestEditorState_SetCanvasWidth(t *testing.T) {
	st := editor.NewEditorState(projectWithMenus(1))
	st.SetCanvasWidth(250)
	assert.InDelta(t, 0.1, st.Scale, 1e-9)
}

func TestEditorState_MenuSizeFallback(t *testing.T) {
	st := editor.NewEditorState(&domain.Project{})
	assert.Equal(t, domain.DefaultMenuSize(), st.MenuSize())
}
