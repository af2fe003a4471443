package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"richmenu-editor/internal/domain"
	"richmenu-editor/internal/dto"
	"richmenu-editor/internal/repository"
	"richmenu-editor/internal/tasks"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	// 区域整表更新可能包含几十个区域，给足余量。
	maxMessageSize = 64 * 1024

	// presence hash 的过期时间，防止僵尸房间的 key 堆积
	presenceTTL = 24 * time.Hour
)

// HubMessage 定义了在 Hub 内部通道传递的消息类型
type HubMessage struct {
	Type      string  // "register", "unregister", "frame", "remote_frame"
	ProjectID string  // 房间 ID（项目 ID）
	Client    *Client // 消息关联的客户端
	RawData   []byte  // frame / remote_frame 的原始消息体
}

// relayEnvelope 是跨实例转发时包在帧外层的信封。
// Origin 标记发布帧的实例，订阅侧据此丢弃自己发布的帧，防止回环。
type relayEnvelope struct {
	Origin string          `json:"origin"`
	Frame  json.RawMessage `json:"frame"`
}

// Hub 维护活跃客户端集合并转发房间消息。
// 它不理解编辑语义：除了 join/leave/tab:switch 需要维护 presence，
// 其余事件原样转发给房间内除发送者外的所有成员。
type Hub struct {
	// 内部通道，处理所有来自 Client 的事件
	messageChan chan HubMessage

	// 客户端集合，按项目 ID 组织
	rooms   map[string]map[*Client]bool
	roomsMu sync.RWMutex

	// 本实例的标识，用于过滤自己发布到 Redis 的帧
	instanceID string
	// 每个活跃房间一个 Redis 订阅，取消函数按项目 ID 索引（受 roomsMu 保护）
	subCancels map[string]func()
	// Shutdown 开始后拒绝新订阅（受 roomsMu 保护）
	closing bool
	// 在途的转发 goroutine，Shutdown 等它们退出后才关消息通道
	subWG sync.WaitGroup

	// presence 状态（Redis）
	stateRepo repository.StateRepository
	// 编辑内容的异步落库
	asynqClient *asynq.Client
}

// NewHub 创建并返回一个新的 Hub 实例
func NewHub(stateRepo repository.StateRepository, asynqClient *asynq.Client) *Hub {
	if stateRepo == nil {
		panic("StateRepository cannot be nil for Hub")
	}
	if asynqClient == nil {
		panic("asynq client cannot be nil for Hub")
	}
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		rooms:       make(map[string]map[*Client]bool),
		instanceID:  uuid.NewString(),
		subCancels:  make(map[string]func()),
		stateRepo:   stateRepo,
		asynqClient: asynqClient,
	}
}

// Run 启动 Hub 的主事件处理循环，应在单独的 goroutine 中运行。
// 帧在循环内同步处理：同一发送者的消息必须按发送顺序转发，
// last-writer-wins 依赖这个顺序。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for msg := range h.messageChan {
		switch msg.Type {
		case "register":
			h.registerClient(msg.Client)
		case "unregister":
			h.unregisterClient(msg.Client)
		case "frame":
			h.handleClientFrame(msg)
		case "remote_frame":
			// 其他实例成员发的帧，广播给本地所有成员（无本地发送者可排除）
			h.broadcast(msg.ProjectID, msg.RawData, nil)
		default:
			log.Warnf("Hub: received unknown message type: %s in project %s", msg.Type, msg.ProjectID)
		}
	}
	log.Info("Hub is shutting down...")
}

// QueueMessage 将消息放入 Hub 的处理队列（非阻塞）。
// 返回 false 表示队列已满，消息被丢弃。
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithFields(logrus.Fields{
			"message_type": msg.Type,
			"project_id":   msg.ProjectID,
		}).Warn("Hub message channel full, dropping message")
		return false
	}
}

// ActiveProjectIDs 返回当前有在线成员的项目 ID 列表。
// presence 清扫任务用它区分活跃房间和残留状态。
func (h *Hub) ActiveProjectIDs() []string {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	ids := make([]string, 0, len(h.rooms))
	for projectID := range h.rooms {
		ids = append(ids, projectID)
	}
	return ids
}

// Shutdown 取消所有 Redis 订阅，等转发 goroutine 退出后关闭消息通道，
// 让 Run 循环退出。
func (h *Hub) Shutdown() {
	h.roomsMu.Lock()
	h.closing = true
	cancels := make([]func(), 0, len(h.subCancels))
	for projectID, cancel := range h.subCancels {
		cancels = append(cancels, cancel)
		delete(h.subCancels, projectID)
	}
	h.roomsMu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	h.subWG.Wait()
	close(h.messageChan)
}

// --- 客户端生命周期 ---

func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: attempted to register a nil client")
		return
	}
	projectID := client.ProjectID()
	logCtx := logrus.WithFields(logrus.Fields{
		"project_id": projectID,
		"action":     "registerClient",
	})

	newRoom := false
	h.roomsMu.Lock()
	if _, ok := h.rooms[projectID]; !ok {
		h.rooms[projectID] = make(map[*Client]bool)
		newRoom = true
		logCtx.Info("Client list created for new room")
	}
	h.rooms[projectID][client] = true
	h.roomsMu.Unlock()

	if newRoom {
		// 第一个成员进房时建立该房间的跨实例订阅
		go h.startSubscription(projectID)
	}
	logCtx.Info("Client registered to Hub")
	// 成员广播等到客户端发 join_project 帧（带上会话身份）再做
}

func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: attempted to unregister a nil client")
		return
	}
	projectID := client.ProjectID()
	logCtx := logrus.WithFields(logrus.Fields{
		"project_id": projectID,
		"user_id":    client.UserID(),
		"action":     "unregisterClient",
	})

	// 断线视同离开房间：不等优雅的 leave_project
	if client.Joined() {
		h.announceLeave(client)
	}

	roomEmpty := false
	var cancelSub func()
	h.roomsMu.Lock()
	if roomClients, roomExists := h.rooms[projectID]; roomExists {
		if _, clientExists := roomClients[client]; clientExists {
			delete(roomClients, client)

			// 关闭 send 通道让 WritePump 退出；防止重复关闭 panic
			select {
			case <-client.send:
				logCtx.Warn("Client send channel already closed or has data during unregister")
			default:
				close(client.send)
			}

			if len(roomClients) == 0 {
				delete(h.rooms, projectID)
				cancelSub = h.subCancels[projectID]
				delete(h.subCancels, projectID)
				roomEmpty = true
				logCtx.Info("Room empty, removed from Hub")
			}
		} else {
			logCtx.Warn("Client not found in room during unregister")
		}
	} else {
		logCtx.Warn("Room not found during client unregister")
	}
	h.roomsMu.Unlock()

	if cancelSub != nil {
		cancelSub()
	}
	if roomEmpty {
		// 房间空了，清掉 Redis 里的 presence 残留
		go func() {
			if err := h.stateRepo.CleanupProjectState(context.Background(), projectID); err != nil {
				logCtx.WithError(err).Warn("Failed to cleanup project state after room emptied")
			}
		}()
	}
	logCtx.Info("Client unregistered from Hub")
}

// --- 帧处理 ---

// handleClientFrame 解析并分发一帧客户端消息。
func (h *Hub) handleClientFrame(msg HubMessage) {
	logCtx := logrus.WithFields(logrus.Fields{
		"project_id": msg.ProjectID,
		"operation":  "handleClientFrame",
	})

	env, err := dto.DecodeEnvelope(msg.RawData)
	if err != nil {
		logCtx.WithError(err).Warn("Dropping malformed frame from client")
		return
	}
	logCtx = logCtx.WithField("event", env.Event)

	switch env.Event {
	case dto.EventJoinProject:
		h.handleJoin(msg.Client, env)
	case dto.EventLeaveProject:
		h.handleLeave(msg.Client)
	case dto.EventTabSwitch:
		h.handleTabSwitch(msg.Client, env, msg.RawData)
	case dto.EventUpdateAreas:
		h.handleUpdateAreas(msg.Client, env, msg.RawData)
	case dto.EventUpdateMetadata:
		h.handleUpdateMetadata(msg.Client, env, msg.RawData)
	case dto.EventRichMenuNew, dto.EventRichMenuDelete,
		dto.EventCursorMove, dto.EventCursorLeave:
		// 纯转发事件：持久化（如有）走 HTTP API，这里只负责扩散
		h.relay(msg.Client, msg.RawData)
	default:
		logCtx.Warn("Received unknown event from client, dropping")
	}
}

// handleJoin 处理成员加入：记 presence、回放 tabs:initial_state 给加入者、
// 向其他成员广播 user:joined。
func (h *Hub) handleJoin(client *Client, env dto.Envelope) {
	var ev dto.JoinProject
	if err := decodePayload(env, &ev); err != nil {
		logrus.WithError(err).Warn("Dropping malformed join_project payload")
		return
	}
	if ev.UserID == "" {
		logrus.Warn("join_project without user_id, dropping")
		return
	}
	client.SetIdentity(ev.UserID, ev.UserName, ev.Color)
	projectID := client.ProjectID()
	logCtx := logrus.WithFields(logrus.Fields{
		"project_id": projectID,
		"user_id":    ev.UserID,
	})

	ctx := context.Background()

	// 先取快照再写自己的条目，加入者不会在快照里看到自己
	tabs, err := h.stateRepo.GetActiveTabs(ctx, projectID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to load active tabs for joiner")
		tabs = nil
	}
	tab := domain.EditorTab{
		UserID:   ev.UserID,
		UserName: ev.UserName,
		Color:    ev.Color,
	}
	if err := h.stateRepo.SetActiveTab(ctx, projectID, tab, presenceTTL); err != nil {
		logCtx.WithError(err).Warn("Failed to record presence for joiner")
	}

	if frame, err := encodeEvent(dto.EventTabsInitial, dto.TabsInitialState{ActiveTabs: tabs}); err == nil {
		client.Send(frame)
	} else {
		logCtx.WithError(err).Error("Failed to encode tabs:initial_state")
	}

	joined := dto.UserJoined{UserID: ev.UserID, UserName: ev.UserName, Color: ev.Color}
	if frame, err := encodeEvent(dto.EventUserJoined, joined); err == nil {
		h.relay(client, frame)
		h.publish(projectID, frame)
	} else {
		logCtx.WithError(err).Error("Failed to encode user:joined")
	}
	logCtx.Info("Member joined project room")
}

// handleLeave 处理显式离开。连接保持，只退出房间成员身份。
func (h *Hub) handleLeave(client *Client) {
	if !client.Joined() {
		return
	}
	h.announceLeave(client)
	client.ClearIdentity()
}

// announceLeave 清 presence 并向其他成员广播 user:left。
func (h *Hub) announceLeave(client *Client) {
	projectID := client.ProjectID()
	userID := client.UserID()
	logCtx := logrus.WithFields(logrus.Fields{
		"project_id": projectID,
		"user_id":    userID,
	})

	if err := h.stateRepo.RemoveActiveTab(context.Background(), projectID, userID); err != nil {
		logCtx.WithError(err).Warn("Failed to remove presence entry for leaving member")
	}

	left := dto.UserLeft{UserID: userID, UserName: client.UserName()}
	if frame, err := encodeEvent(dto.EventUserLeft, left); err == nil {
		h.relay(client, frame)
		h.publish(projectID, frame)
	} else {
		logCtx.WithError(err).Error("Failed to encode user:left")
	}
	logCtx.Info("Member left project room")
}

// handleTabSwitch 更新发送者的 presence 条目并转发。
func (h *Hub) handleTabSwitch(client *Client, env dto.Envelope, raw []byte) {
	var ev dto.TabSwitch
	if err := decodePayload(env, &ev); err != nil {
		logrus.WithError(err).Warn("Dropping malformed tab:switch payload")
		return
	}
	tab := domain.EditorTab{
		UserID:     ev.UserID,
		UserName:   ev.UserName,
		Color:      ev.Color,
		RichMenuID: ev.RichMenuID,
	}
	if err := h.stateRepo.SetActiveTab(context.Background(), client.ProjectID(), tab, presenceTTL); err != nil {
		logrus.WithFields(logrus.Fields{
			"project_id": client.ProjectID(),
			"user_id":    ev.UserID,
		}).WithError(err).Warn("Failed to record tab switch")
	}
	h.relay(client, raw)
	h.publish(client.ProjectID(), raw)
}

// handleUpdateAreas 转发区域更新并排队异步落库。
func (h *Hub) handleUpdateAreas(client *Client, env dto.Envelope, raw []byte) {
	h.relay(client, raw)
	h.publish(client.ProjectID(), raw)

	var ev dto.UpdateAreas
	if err := decodePayload(env, &ev); err != nil {
		logrus.WithError(err).Warn("Cannot decode update_areas for persistence, skipping enqueue")
		return
	}
	payload, err := tasks.NewAreasPersistenceTask(ev.RichMenuID, ev.Areas)
	if err != nil {
		logrus.WithError(err).Error("Failed to build areas persistence task")
		return
	}
	task := asynq.NewTask(tasks.TypeAreasPersistence, payload)
	if _, err := h.asynqClient.Enqueue(task, asynq.Queue("default")); err != nil {
		logrus.WithFields(logrus.Fields{
			"project_id":   client.ProjectID(),
			"rich_menu_id": ev.RichMenuID,
		}).WithError(err).Error("Failed to enqueue areas persistence task")
	}
}

// handleUpdateMetadata 转发 metadata 更新并排队异步落库。
func (h *Hub) handleUpdateMetadata(client *Client, env dto.Envelope, raw []byte) {
	h.relay(client, raw)
	h.publish(client.ProjectID(), raw)

	var ev dto.UpdateMetadata
	if err := decodePayload(env, &ev); err != nil {
		logrus.WithError(err).Warn("Cannot decode update_metadata for persistence, skipping enqueue")
		return
	}
	payload, err := tasks.NewMetadataPersistenceTask(ev.RichMenuID, ev.Metadata)
	if err != nil {
		logrus.WithError(err).Error("Failed to build metadata persistence task")
		return
	}
	task := asynq.NewTask(tasks.TypeMetadataPersistence, payload)
	if _, err := h.asynqClient.Enqueue(task, asynq.Queue("default")); err != nil {
		logrus.WithFields(logrus.Fields{
			"project_id":   client.ProjectID(),
			"rich_menu_id": ev.RichMenuID,
		}).WithError(err).Error("Failed to enqueue metadata persistence task")
	}
}

// --- 广播 ---

// relay 将消息发给发送者所在房间里除发送者外的所有客户端。
func (h *Hub) relay(sender *Client, message []byte) {
	h.broadcast(sender.ProjectID(), message, sender)
}

// broadcast 将消息发送给指定房间的所有客户端，排除发送者。
func (h *Hub) broadcast(projectID string, message []byte, sender *Client) {
	h.roomsMu.RLock()
	roomClients, ok := h.rooms[projectID]
	// 复制接收者列表，避免长时间持有锁
	clientsToSend := make([]*Client, 0, len(roomClients))
	if ok {
		for client := range roomClients {
			if client != sender {
				clientsToSend = append(clientsToSend, client)
			}
		}
	}
	h.roomsMu.RUnlock()

	if len(clientsToSend) == 0 {
		return
	}

	logCtx := logrus.WithFields(logrus.Fields{
		"project_id":      projectID,
		"message_size":    len(message),
		"recipient_count": len(clientsToSend),
	})
	logCtx.Debug("Broadcasting message to clients")

	for _, client := range clientsToSend {
		// 非阻塞发送，单个慢客户端不能拖住整个房间
		select {
		case client.send <- message:
		default:
			logCtx.WithField("receiver_user_id", client.UserID()).
				Warn("Client send channel full during broadcast, skipping this client")
		}
	}
}

// --- 跨实例转发 ---

// publish 把帧包上本实例标识后发布到 Redis 频道，
// 其他实例的订阅者转发给它们本地的房间成员。
func (h *Hub) publish(projectID string, frame []byte) {
	wrapped, err := json.Marshal(relayEnvelope{Origin: h.instanceID, Frame: frame})
	if err != nil {
		logrus.WithField("project_id", projectID).WithError(err).
			Error("Failed to wrap frame for cross-instance publish")
		return
	}
	if err := h.stateRepo.PublishEvent(context.Background(), projectID, wrapped); err != nil {
		logrus.WithField("project_id", projectID).WithError(err).
			Debug("Failed to publish frame to Redis channel")
	}
}

// startSubscription 为房间建立 Redis 订阅并持续转发入站帧。
// 房间在订阅建立前就被清空（或重复订阅）时立即回收订阅。
func (h *Hub) startSubscription(projectID string) {
	logCtx := logrus.WithFields(logrus.Fields{
		"project_id": projectID,
		"action":     "startSubscription",
	})

	frames, cancel, err := h.stateRepo.SubscribeEvents(context.Background(), projectID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to subscribe to project events, cross-instance relay disabled for room")
		return
	}

	stale := false
	h.roomsMu.Lock()
	if _, roomExists := h.rooms[projectID]; h.closing || !roomExists {
		stale = true
	} else if _, subExists := h.subCancels[projectID]; subExists {
		stale = true
	} else {
		h.subCancels[projectID] = cancel
		h.subWG.Add(1)
	}
	h.roomsMu.Unlock()

	if stale {
		cancel()
		return
	}
	logCtx.Info("Subscribed to project event channel")
	defer h.subWG.Done()
	h.forwardRemoteFrames(projectID, frames)
}

// forwardRemoteFrames 把其他实例发布的帧排入 Hub 主循环广播。
// 广播统一在 Run 循环里做，转发 goroutine 不直接碰客户端通道。
// 订阅取消后帧通道关闭，循环随之退出。
func (h *Hub) forwardRemoteFrames(projectID string, frames <-chan []byte) {
	logCtx := logrus.WithField("project_id", projectID)
	for raw := range frames {
		var env relayEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			logCtx.WithError(err).Warn("Dropping malformed cross-instance frame")
			continue
		}
		if env.Origin == h.instanceID {
			// 自己发布的帧本地已经广播过了
			continue
		}
		h.QueueMessage(HubMessage{Type: "remote_frame", ProjectID: projectID, RawData: env.Frame})
	}
	logCtx.Debug("Project event subscription closed")
}

// --- 辅助函数 ---

func decodePayload(env dto.Envelope, out interface{}) error {
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return err
	}
	return nil
}

func encodeEvent(event string, payload interface{}) ([]byte, error) {
	env, err := dto.NewEnvelope(event, payload)
	if err != nil {
		return nil, err
	}
	return env.Encode()
}
