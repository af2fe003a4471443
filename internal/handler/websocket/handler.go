package websocket

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"richmenu-editor/internal/hub"
	"richmenu-editor/internal/service"
)

// WebSocketHandler 负责处理 WebSocket 升级请求和客户端注册
type WebSocketHandler struct {
	upgrader       websocket.Upgrader
	hub            *hub.Hub
	projectService *service.ProjectService
}

// NewWebSocketHandler 创建 WebSocketHandler 实例
func NewWebSocketHandler(h *hub.Hub, projectService *service.ProjectService) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if projectService == nil {
		panic("ProjectService cannot be nil for WebSocketHandler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// TODO: 生产环境应按配置校验 Origin
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return &WebSocketHandler{
		upgrader:       upgrader,
		hub:            h,
		projectService: projectService,
	}
}

// HandleConnection 处理 WebSocket 连接请求。
// URL 格式: /ws/project/{projectId}
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	// 1. 获取认证账号 ID（Auth 中间件已设置）
	accountIDAny, exists := c.Get("account_id")
	if !exists {
		logrus.Warn("WS Handler: account ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	accountID, ok := accountIDAny.(uint)
	if !ok {
		logrus.Error("WS Handler: account ID in context is not uint")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	logCtx := logrus.WithField("account_id", accountID)

	// 2. 解析项目 ID
	projectIDStr := c.Param("projectId")
	projectID64, err := strconv.ParseUint(projectIDStr, 10, 32)
	if err != nil {
		logCtx.WithError(err).Warnf("WS Handler: invalid project ID format: %s", projectIDStr)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID format"})
		return
	}
	logCtx = logCtx.WithField("project_id", projectID64)

	// 3. 校验项目存在且归属当前账号
	project, err := h.projectService.GetProject(c.Request.Context(), uint(projectID64))
	if err != nil {
		if errors.Is(err, service.ErrProjectNotFound) {
			logCtx.WithError(err).Warn("WS Handler: project not found")
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		} else {
			logCtx.WithError(err).Error("WS Handler: error checking project existence")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate project"})
		}
		return
	}
	if project.AccountID != accountID {
		logCtx.Warn("WS Handler: account does not own the project")
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this project"})
		return
	}

	// 4. 升级到 WebSocket。Upgrade 失败时自己会写 HTTP 错误响应。
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logCtx.WithError(err).Error("WS Handler: failed to upgrade connection")
		return
	}
	logCtx.Info("WS Handler: connection upgraded to WebSocket")

	// 5. 创建客户端并注册到 Hub
	client := hub.NewClient(h.hub, conn, projectIDStr, accountID)

	registered := h.hub.QueueMessage(hub.HubMessage{
		Type:      "register",
		ProjectID: client.ProjectID(),
		Client:    client,
	})
	if !registered {
		logCtx.Error("WS Handler: hub message channel full, failed to register client")
		conn.Close()
		return
	}

	// 6. 启动读写泵。ReadPump 占用当前 goroutine 直到连接关闭。
	client.Run()
}
