// Package session 实现协作会话：房间生命周期、出站意图的序列化、
// 入站消息到本地状态变更的分派，以及 presence 追踪。
// 会话对传输层只依赖 Transport 接口，reducer 可以在无网络环境下单测。
package session

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"richmenu-editor/internal/domain"
	"richmenu-editor/internal/dto"
	"richmenu-editor/internal/editor"
)

// Transport 是会话对实时中继的出口：把事件发进当前房间。
// 具体实现（WebSocket 客户端）负责重连；重连后调用方必须 Rejoin。
type Transport interface {
	Emit(event string, payload interface{}) error
}

// Session 拥有一次编辑会话的全部协作状态：身份、当前房间、
// presence，以及入站事件的分派表。每个编辑器实例构造一个，
// 替代散落的模块级全局变量。
type Session struct {
	identity  Identity
	transport Transport
	state     *editor.EditorState
	renderer  editor.Renderer
	ui        UI
	presence  *PresenceTracker

	projectID  string // 当前房间（项目 ID），空串表示不在任何房间
	handlers   map[string]func(*Session, dto.Envelope) error
	cursorGate *Throttle
	log        *logrus.Entry
}

// New 创建协作会话。所有依赖都不允许为 nil。
func New(identity Identity, transport Transport, state *editor.EditorState, renderer editor.Renderer, ui UI) *Session {
	if transport == nil {
		panic("Transport cannot be nil for Session")
	}
	if state == nil {
		panic("EditorState cannot be nil for Session")
	}
	if renderer == nil {
		panic("Renderer cannot be nil for Session")
	}
	if ui == nil {
		panic("UI cannot be nil for Session")
	}
	s := &Session{
		identity:   identity,
		transport:  transport,
		state:      state,
		renderer:   renderer,
		ui:         ui,
		presence:   NewPresenceTracker(ui),
		cursorGate: NewThrottle(CursorThrottleInterval),
		log: logrus.WithFields(logrus.Fields{
			"component": "session",
			"user_id":   identity.UserID,
		}),
	}
	s.handlers = dispatchTable()
	return s
}

// Identity 返回会话身份。
func (s *Session) Identity() Identity { return s.identity }

// Presence 返回 presence 追踪器（只读用途）。
func (s *Session) Presence() *PresenceTracker { return s.presence }

// ProjectID 返回当前所在房间，空串表示未加入。
func (s *Session) ProjectID() string { return s.projectID }

// currentRichMenuID 返回本地正在编辑的菜单页 ID，无菜单页时返回空串。
func (s *Session) currentRichMenuID() string {
	if rm := s.state.CurrentRichMenu(); rm != nil {
		return rm.ID
	}
	return ""
}

// --- 房间生命周期 ---

// Join 进入项目房间。已在别的房间时先离开（同一时刻只允许一个房间）。
// 服务端收到后会向发送者回放 tabs:initial_state，并向其他成员广播
// user:joined。
func (s *Session) Join(projectID string) error {
	if projectID == "" {
		return fmt.Errorf("project id cannot be empty")
	}
	if s.projectID != "" && s.projectID != projectID {
		if err := s.Leave(); err != nil {
			s.log.WithError(err).Warn("Failed to leave previous room before join")
		}
	}
	s.projectID = projectID
	err := s.transport.Emit(dto.EventJoinProject, dto.JoinProject{
		ProjectID: projectID,
		UserID:    s.identity.UserID,
		UserName:  s.identity.UserName,
		Color:     s.identity.Color,
	})
	if err != nil {
		return fmt.Errorf("failed to join project %s: %w", projectID, err)
	}
	s.log.WithField("project_id", projectID).Info("Joined project room")
	return nil
}

// Leave 离开当前房间并清空 presence。已发出的消息继续传播，
// 之后的入站消息会因为 projectID 清空而被丢弃。
func (s *Session) Leave() error {
	if s.projectID == "" {
		return nil
	}
	projectID := s.projectID
	s.projectID = ""
	s.presence.Reset()
	if err := s.transport.Emit(dto.EventLeaveProject, dto.LeaveProject{ProjectID: projectID}); err != nil {
		return fmt.Errorf("failed to leave project %s: %w", projectID, err)
	}
	s.log.WithField("project_id", projectID).Info("Left project room")
	return nil
}

// Rejoin 在传输层重连后重新宣告房间成员身份和当前菜单页。
func (s *Session) Rejoin() error {
	if s.projectID == "" {
		return nil
	}
	projectID := s.projectID
	s.projectID = "" // 让 Join 走全新宣告路径
	if err := s.Join(projectID); err != nil {
		return err
	}
	s.AnnounceTabSwitch()
	return nil
}

// --- 出站意图 ---

// BroadcastAreas 整表广播指定菜单页的区域列表。
// 实现 editor.Broadcaster，交互控制器在手势结束时调用。
func (s *Session) BroadcastAreas(richMenuID string, areas []domain.Area) {
	if s.projectID == "" || richMenuID == "" {
		return
	}
	err := s.transport.Emit(dto.EventUpdateAreas, dto.UpdateAreas{
		ProjectID:  s.projectID,
		RichMenuID: richMenuID,
		Areas:      areas,
		Sender:     s.identity.UserID,
	})
	if err != nil {
		s.log.WithError(err).Warn("Failed to broadcast areas update")
	}
}

// BroadcastMetadata 广播 metadata 的部分更新，只携带变更的字段。
func (s *Session) BroadcastMetadata(richMenuID string, patch dto.MetadataPatch) {
	if s.projectID == "" || richMenuID == "" {
		return
	}
	err := s.transport.Emit(dto.EventUpdateMetadata, dto.UpdateMetadata{
		ProjectID:  s.projectID,
		RichMenuID: richMenuID,
		Metadata:   patch,
		Sender:     s.identity.UserID,
	})
	if err != nil {
		s.log.WithError(err).Warn("Failed to broadcast metadata update")
	}
}

// AnnounceTabSwitch 宣告本地当前停留的菜单页。
func (s *Session) AnnounceTabSwitch() {
	richMenuID := s.currentRichMenuID()
	if s.projectID == "" || richMenuID == "" {
		return
	}
	err := s.transport.Emit(dto.EventTabSwitch, dto.TabSwitch{
		ProjectID:  s.projectID,
		RichMenuID: richMenuID,
		UserID:     s.identity.UserID,
		UserName:   s.identity.UserName,
		Color:      s.identity.Color,
	})
	if err != nil {
		s.log.WithError(err).Warn("Failed to announce tab switch")
	}
}

// BroadcastRichMenuNew 宣告新增菜单页。
func (s *Session) BroadcastRichMenuNew(rm domain.RichMenu) {
	if s.projectID == "" {
		return
	}
	err := s.transport.Emit(dto.EventRichMenuNew, dto.RichMenuNew{
		ProjectID: s.projectID,
		RichMenu:  rm,
		Sender:    s.identity.UserID,
	})
	if err != nil {
		s.log.WithError(err).Warn("Failed to broadcast rich menu creation")
	}
}

// BroadcastRichMenuDelete 宣告删除菜单页。
func (s *Session) BroadcastRichMenuDelete(richMenuID string) {
	if s.projectID == "" || richMenuID == "" {
		return
	}
	err := s.transport.Emit(dto.EventRichMenuDelete, dto.RichMenuDelete{
		ProjectID:  s.projectID,
		RichMenuID: richMenuID,
		Sender:     s.identity.UserID,
	})
	if err != nil {
		s.log.WithError(err).Warn("Failed to broadcast rich menu deletion")
	}
}

// CursorMoved 广播游标的相对位置（0~1）。50ms 节流，越界坐标丢弃。
func (s *Session) CursorMoved(relativeX, relativeY float64) {
	richMenuID := s.currentRichMenuID()
	if s.projectID == "" || richMenuID == "" {
		return
	}
	if relativeX < 0 || relativeX > 1 || relativeY < 0 || relativeY > 1 {
		return
	}
	if !s.cursorGate.Allow() {
		return
	}
	err := s.transport.Emit(dto.EventCursorMove, dto.CursorMove{
		ProjectID:  s.projectID,
		RichMenuID: richMenuID,
		RelativeX:  relativeX,
		RelativeY:  relativeY,
		UserID:     s.identity.UserID,
		UserName:   s.identity.UserName,
		Color:      s.identity.Color,
	})
	if err != nil {
		s.log.WithError(err).Debug("Failed to broadcast cursor move")
	}
}

// CursorLeft 宣告游标离开画布。
func (s *Session) CursorLeft() {
	richMenuID := s.currentRichMenuID()
	if s.projectID == "" || richMenuID == "" {
		return
	}
	err := s.transport.Emit(dto.EventCursorLeave, dto.CursorLeave{
		ProjectID:  s.projectID,
		RichMenuID: richMenuID,
		UserID:     s.identity.UserID,
	})
	if err != nil {
		s.log.WithError(err).Debug("Failed to broadcast cursor leave")
	}
}

// SwitchTab 切换本地菜单页并向房间宣告。
func (s *Session) SwitchTab(index int) bool {
	if !s.state.SwitchTab(index) {
		return false
	}
	s.renderer.RedrawOverlay(s.state)
	s.renderer.RefreshActionPanel(s.state)
	s.ui.RefreshTabs()
	s.AnnounceTabSwitch()
	return true
}

// --- 入站分派 ---

// HandleFrame 解析一帧入站消息并分派给对应 reducer。
// 不在房间时全部丢弃；未知事件只记日志。
func (s *Session) HandleFrame(data []byte) error {
	env, err := dto.DecodeEnvelope(data)
	if err != nil {
		s.log.WithError(err).Warn("Dropping malformed frame")
		return err
	}
	return s.HandleEnvelope(env)
}

// HandleEnvelope 分派一帧已解析的消息。
func (s *Session) HandleEnvelope(env dto.Envelope) error {
	if s.projectID == "" {
		s.log.WithField("event", env.Event).Debug("Not in a room, dropping frame")
		return nil
	}
	handler, ok := s.handlers[env.Event]
	if !ok {
		s.log.WithField("event", env.Event).Warn("Received unknown event")
		return nil
	}
	if err := handler(s, env); err != nil {
		s.log.WithError(err).WithField("event", env.Event).Warn("Failed to apply remote event")
		return err
	}
	return nil
}
