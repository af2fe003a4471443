// Package editor 持有单个客户端的编辑状态（EditorState）和把指针输入
// 转换成区域变更的交互控制器。状态不跨客户端共享，所有跨端一致性
// 由 session 包的消息协议负责。
package editor

import (
	"richmenu-editor/internal/domain"
	"richmenu-editor/internal/geometry"
)

// EditorState 是一个客户端打开项目编辑时的共享内存文档。
// 所有几何计算、交互和协作 reducer 都在它上面操作。
// 单客户端内是单事件循环驱动，不需要加锁。
type EditorState struct {
	Project *domain.Project

	// CurrentTabIndex 是 Project.RichMenus 的下标，每个客户端
	// 同一时刻只有一个菜单页处于编辑中。
	CurrentTabIndex int

	// SelectedAreaIndex 指向当前菜单页的区域列表，-1 表示未选中。
	SelectedAreaIndex int

	// Scale 是画布像素 / 菜单单位，布局变化时重算。
	Scale float64
}

// NewEditorState 为项目创建编辑状态，默认选中第一个菜单页、无选中区域。
func NewEditorState(project *domain.Project) *EditorState {
	return &EditorState{
		Project:           project,
		CurrentTabIndex:   0,
		SelectedAreaIndex: -1,
	}
}

// CurrentRichMenu 返回当前菜单页，项目为空或下标越界时返回 nil。
func (s *EditorState) CurrentRichMenu() *domain.RichMenu {
	if s.Project == nil {
		return nil
	}
	if s.CurrentTabIndex < 0 || s.CurrentTabIndex >= len(s.Project.RichMenus) {
		return nil
	}
	return &s.Project.RichMenus[s.CurrentTabIndex]
}

// MenuSize 返回当前菜单页的画布尺寸，无菜单页时退回设计稿尺寸。
func (s *EditorState) MenuSize() domain.MenuSize {
	if rm := s.CurrentRichMenu(); rm != nil && rm.Metadata.Size.Width > 0 {
		return rm.Metadata.Size
	}
	return domain.DefaultMenuSize()
}

// Areas 返回当前菜单页的区域列表，无菜单页时返回 nil。
func (s *EditorState) Areas() []domain.Area {
	if rm := s.CurrentRichMenu(); rm != nil {
		return rm.Metadata.Areas
	}
	return nil
}

// SelectedArea 返回当前选中的区域，未选中或失效时返回 nil。
func (s *EditorState) SelectedArea() *domain.Area {
	rm := s.CurrentRichMenu()
	if rm == nil || s.SelectedAreaIndex < 0 || s.SelectedAreaIndex >= len(rm.Metadata.Areas) {
		return nil
	}
	return &rm.Metadata.Areas[s.SelectedAreaIndex]
}

// ClampSelection 在区域列表收缩后（例如远端整表替换删掉了区域）
// 把失效的 SelectedAreaIndex 重置为 -1。返回 true 表示选择被重置。
func (s *EditorState) ClampSelection() bool {
	rm := s.CurrentRichMenu()
	if rm == nil {
		if s.SelectedAreaIndex != -1 {
			s.SelectedAreaIndex = -1
			return true
		}
		return false
	}
	if s.SelectedAreaIndex >= len(rm.Metadata.Areas) {
		s.SelectedAreaIndex = -1
		return true
	}
	return false
}

// ClampTab 在菜单页列表收缩后把越界的 CurrentTabIndex 拉回有效范围。
func (s *EditorState) ClampTab() {
	if s.Project == nil || len(s.Project.RichMenus) == 0 {
		s.CurrentTabIndex = 0
		return
	}
	if s.CurrentTabIndex >= len(s.Project.RichMenus) {
		s.CurrentTabIndex = len(s.Project.RichMenus) - 1
	}
	if s.CurrentTabIndex < 0 {
		s.CurrentTabIndex = 0
	}
}

// SetCanvasWidth 按画布宽度重算缩放比例（布局变化时调用）。
func (s *EditorState) SetCanvasWidth(canvasWidth float64) {
	s.Scale = geometry.ScaleFor(canvasWidth, s.MenuSize())
}

// SwitchTab 切换当前菜单页并清除选中。下标越界时不动作，返回 false。
func (s *EditorState) SwitchTab(index int) bool {
	if s.Project == nil || index < 0 || index >= len(s.Project.RichMenus) {
		return false
	}
	s.CurrentTabIndex = index
	s.SelectedAreaIndex = -1
	return true
}
