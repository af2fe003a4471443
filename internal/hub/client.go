package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client 是 Hub 和单个 WebSocket 连接之间的中间人。
// 会话身份（userID/userName/color）在收到 join_project 帧时才确定，
// accountID 来自 JWT，仅用于审计日志。
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	projectID string
	accountID uint

	// 会话身份，join_project 之后才有值
	identityMu sync.RWMutex
	userID     string
	userName   string
	color      string

	// 发往客户端的消息缓冲
	send chan []byte
}

// NewClient 创建一个新的客户端实例
func NewClient(hub *Hub, conn *websocket.Conn, projectID string, accountID uint) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		projectID: projectID,
		accountID: accountID,
		send:      make(chan []byte, 256),
	}
}

func (c *Client) ProjectID() string { return c.projectID }
func (c *Client) AccountID() uint   { return c.accountID }

func (c *Client) UserID() string {
	c.identityMu.RLock()
	defer c.identityMu.RUnlock()
	return c.userID
}

func (c *Client) UserName() string {
	c.identityMu.RLock()
	defer c.identityMu.RUnlock()
	return c.userName
}

// Joined 报告客户端是否已通过 join_project 宣告身份。
func (c *Client) Joined() bool {
	c.identityMu.RLock()
	defer c.identityMu.RUnlock()
	return c.userID != ""
}

// SetIdentity 记录 join_project 带来的会话身份。
func (c *Client) SetIdentity(userID, userName, color string) {
	c.identityMu.Lock()
	defer c.identityMu.Unlock()
	c.userID = userID
	c.userName = userName
	c.color = color
}

// ClearIdentity 在显式 leave_project 后清除身份，连接保留。
func (c *Client) ClearIdentity() {
	c.identityMu.Lock()
	defer c.identityMu.Unlock()
	c.userID = ""
	c.userName = ""
	c.color = ""
}

// Send 将一条消息放入发送缓冲（非阻塞）。
func (c *Client) Send(message []byte) {
	select {
	case c.send <- message:
	default:
		logrus.WithFields(logrus.Fields{
			"project_id": c.projectID,
			"user_id":    c.UserID(),
		}).Warn("Client send channel full, dropping direct message")
	}
}

// Run 启动读写泵。WritePump 在独立 goroutine 中运行，
// ReadPump 占用当前 goroutine 直到连接关闭。
func (c *Client) Run() {
	go c.WritePump()
	c.ReadPump()
}

// ReadPump 将消息从 WebSocket 连接泵送到 Hub。
// 每个连接只有一个 reader，保证同一发送者的帧按序进入 Hub 队列。
func (c *Client) ReadPump() {
	defer func() {
		// 通知 Hub 注销，留出余量让注销消息入队
		registered := c.hub.QueueMessage(HubMessage{
			Type:      "unregister",
			ProjectID: c.projectID,
			Client:    c,
		})
		if !registered {
			logrus.WithFields(logrus.Fields{
				"project_id": c.projectID,
				"user_id":    c.UserID(),
			}).Error("Failed to queue unregister message, hub channel full")
			// 最后手段：等一秒再试一次
			time.Sleep(time.Second)
			c.hub.QueueMessage(HubMessage{
				Type:      "unregister",
				ProjectID: c.projectID,
				Client:    c,
			})
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithFields(logrus.Fields{
					"project_id": c.projectID,
					"user_id":    c.UserID(),
				}).WithError(err).Warn("Unexpected WebSocket close")
			}
			break
		}

		c.hub.QueueMessage(HubMessage{
			Type:      "frame",
			ProjectID: c.projectID,
			Client:    c,
			RawData:   message,
		})
	}
}

// WritePump 将消息从 send 缓冲泵送到 WebSocket 连接，并维持心跳。
// 每个连接只有一个 writer。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了 send 通道
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithFields(logrus.Fields{
					"project_id": c.projectID,
					"user_id":    c.UserID(),
				}).WithError(err).Warn("Failed to write message to WebSocket")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
