package session

import (
	"encoding/json"
	"fmt"

	"richmenu-editor/internal/domain"
	"richmenu-editor/internal/dto"
)

// dispatchTable 把事件名映射到 reducer。reducer 只操作本地状态，
// 不触碰传输层，可以脱离网络单测。
func dispatchTable() map[string]func(*Session, dto.Envelope) error {
	return map[string]func(*Session, dto.Envelope) error{
		dto.EventUserJoined:     applyUserJoined,
		dto.EventUserLeft:       applyUserLeft,
		dto.EventTabsInitial:    applyTabsInitial,
		dto.EventTabSwitch:      applyTabSwitch,
		dto.EventUpdateAreas:    applyUpdateAreas,
		dto.EventUpdateMetadata: applyUpdateMetadata,
		dto.EventRichMenuNew:    applyRichMenuNew,
		dto.EventRichMenuDelete: applyRichMenuDelete,
		dto.EventCursorMove:     applyCursorMove,
		dto.EventCursorLeave:    applyCursorLeave,
	}
}

func decodePayload(env dto.Envelope, out interface{}) error {
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", env.Event, err)
	}
	return nil
}

func applyUserJoined(s *Session, env dto.Envelope) error {
	var ev dto.UserJoined
	if err := decodePayload(env, &ev); err != nil {
		return err
	}
	if ev.UserID == s.identity.UserID {
		return nil
	}
	s.ui.Notify(fmt.Sprintf("%s joined the project", ev.UserName))
	return nil
}

func applyUserLeft(s *Session, env dto.Envelope) error {
	var ev dto.UserLeft
	if err := decodePayload(env, &ev); err != nil {
		return err
	}
	if ev.UserID == s.identity.UserID {
		return nil
	}
	// 无论对方是显式离开还是断线，都走同一条清理路径
	s.presence.RemoveUser(ev.UserID)
	if ev.UserName != "" {
		s.ui.Notify(fmt.Sprintf("%s left the project", ev.UserName))
	}
	return nil
}

func applyTabsInitial(s *Session, env dto.Envelope) error {
	var ev dto.TabsInitialState
	if err := decodePayload(env, &ev); err != nil {
		return err
	}
	s.presence.Seed(ev.ActiveTabs)
	return nil
}

func applyTabSwitch(s *Session, env dto.Envelope) error {
	var ev dto.TabSwitch
	if err := decodePayload(env, &ev); err != nil {
		return err
	}
	if ev.UserID == s.identity.UserID {
		return nil
	}
	if s.presence.ApplyTabSwitch(ev, s.currentRichMenuID()) {
		s.ui.Notify(fmt.Sprintf("%s is editing %q", ev.UserName, s.richMenuName(ev.RichMenuID)))
	}
	return nil
}

// applyUpdateAreas 整表替换当前菜单页的区域列表（last-writer-wins）。
// 指向其他菜单页的更新被忽略；替换后必须重新约束选中下标并重绘。
func applyUpdateAreas(s *Session, env dto.Envelope) error {
	var ev dto.UpdateAreas
	if err := decodePayload(env, &ev); err != nil {
		return err
	}
	if ev.Sender == s.identity.UserID {
		return nil // 自己的回声，本地状态已经是最新
	}
	rm := s.state.CurrentRichMenu()
	if rm == nil || rm.ID != ev.RichMenuID {
		return nil
	}

	rm.Metadata.Areas = ev.Areas
	if rm.Metadata.Areas == nil {
		rm.Metadata.Areas = []domain.Area{}
	}
	s.state.ClampSelection()
	s.renderer.RedrawOverlay(s.state)
	s.renderer.RefreshActionPanel(s.state)
	s.renderer.RefreshJSONPreview(s.state)
	s.ui.Notify("Areas updated by another user")
	return nil
}

// applyUpdateMetadata 按字段合并 metadata：只应用携带的字段，
// 其余保持不变，两人并发编辑不同字段互不覆盖。
func applyUpdateMetadata(s *Session, env dto.Envelope) error {
	var ev dto.UpdateMetadata
	if err := decodePayload(env, &ev); err != nil {
		return err
	}
	if ev.Sender == s.identity.UserID {
		return nil
	}
	rm := s.state.CurrentRichMenu()
	if rm == nil || rm.ID != ev.RichMenuID {
		return nil
	}

	patch := ev.Metadata
	if patch.Name != nil {
		rm.Metadata.Name = *patch.Name
	}
	if patch.ChatBarText != nil {
		rm.Metadata.ChatBarText = *patch.ChatBarText
	}
	if patch.Size != nil {
		rm.Metadata.Size = *patch.Size
	}
	if patch.Selected != nil {
		rm.Metadata.Selected = *patch.Selected
	}
	if patch.ImagePath != nil {
		rm.ImagePath = *patch.ImagePath
	}
	if patch.ThumbnailPath != nil {
		rm.ThumbnailPath = *patch.ThumbnailPath
	}
	if patch.ImageName != nil {
		rm.ImageName = *patch.ImageName
	}

	s.ui.RefreshTabs()
	s.renderer.RefreshJSONPreview(s.state)
	s.ui.Notify("Settings updated by another user")
	return nil
}

func applyRichMenuNew(s *Session, env dto.Envelope) error {
	var ev dto.RichMenuNew
	if err := decodePayload(env, &ev); err != nil {
		return err
	}
	if ev.Sender == s.identity.UserID {
		return nil
	}
	if s.state.Project == nil || ev.RichMenu.ID == "" {
		return nil
	}
	if s.state.Project.FindRichMenu(ev.RichMenu.ID) >= 0 {
		return nil // 至少一次投递下可能重复，追加要幂等
	}
	rm := ev.RichMenu
	if rm.Metadata.Size.Width == 0 {
		if err := rm.ParseMetadata(); err != nil {
			return err
		}
	}
	s.state.Project.RichMenus = append(s.state.Project.RichMenus, rm)
	s.ui.RefreshTabs()
	s.ui.Notify(fmt.Sprintf("Rich menu %q added by another user", s.richMenuName(rm.ID)))
	return nil
}

func applyRichMenuDelete(s *Session, env dto.Envelope) error {
	var ev dto.RichMenuDelete
	if err := decodePayload(env, &ev); err != nil {
		return err
	}
	if ev.Sender == s.identity.UserID {
		return nil
	}
	project := s.state.Project
	if project == nil {
		return nil
	}
	idx := project.FindRichMenu(ev.RichMenuID)
	if idx < 0 {
		return nil
	}
	project.RichMenus = append(project.RichMenus[:idx], project.RichMenus[idx+1:]...)
	s.state.ClampTab()
	s.state.ClampSelection()
	s.ui.RefreshTabs()
	s.renderer.RedrawOverlay(s.state)
	s.ui.Notify("A rich menu was removed by another user")
	return nil
}

func applyCursorMove(s *Session, env dto.Envelope) error {
	var ev dto.CursorMove
	if err := decodePayload(env, &ev); err != nil {
		return err
	}
	if ev.UserID == s.identity.UserID {
		return nil
	}
	s.presence.ApplyCursorMove(ev, s.currentRichMenuID())
	return nil
}

func applyCursorLeave(s *Session, env dto.Envelope) error {
	var ev dto.CursorLeave
	if err := decodePayload(env, &ev); err != nil {
		return err
	}
	if ev.UserID == s.identity.UserID {
		return nil
	}
	s.presence.ApplyCursorLeave(ev)
	return nil
}

// richMenuName 返回用于提示文案的菜单页名称。
func (s *Session) richMenuName(richMenuID string) string {
	if s.state.Project != nil {
		if idx := s.state.Project.FindRichMenu(richMenuID); idx >= 0 {
			rm := &s.state.Project.RichMenus[idx]
			if rm.Metadata.Name != "" {
				return rm.Metadata.Name
			}
			if rm.Alias != "" {
				return rm.Alias
			}
		}
	}
	return "Rich Menu"
}
