package repository

import (
	"context"
	"time"

	"richmenu-editor/internal/domain"
)

// StateRepository 定义了与房间实时状态相关的操作，由 Redis 实现。
// 存的是 presence 这类易失数据：房间成员、每个人停留的菜单页。
// 编辑内容本身只走 MySQL 持久化，不在这里。
type StateRepository interface {
	// === Active Tabs (presence) ===

	// SetActiveTab 记录一个成员当前停留的菜单页。
	// ttl 对整个房间的 tabs hash 生效，防止僵尸房间的 key 堆积。
	SetActiveTab(ctx context.Context, projectID string, tab domain.EditorTab, ttl time.Duration) error

	// RemoveActiveTab 在成员离开时删掉它的条目。
	RemoveActiveTab(ctx context.Context, projectID string, userID string) error

	// GetActiveTabs 获取房间当前全部成员的菜单页快照。
	// 新成员加入时用它构造 tabs:initial_state。
	GetActiveTabs(ctx context.Context, projectID string) ([]domain.EditorTab, error)

	// CleanupProjectState 清理房间相关的全部 Redis key（房间变空时）。
	CleanupProjectState(ctx context.Context, projectID string) error

	// ListActiveProjects 列出当前有 presence 记录的房间。
	// 后台清扫任务用它找出需要检查的房间。
	ListActiveProjects(ctx context.Context) ([]string, error)

	// === Rate Limiting ===

	// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数。
	// 返回 true 表示超限。
	CheckRateLimit(ctx context.Context, key string, limit int, duration time.Duration) (bool, error)

	// === PubSub ===

	// PublishEvent 将一帧已序列化的房间消息发布到项目频道，
	// 供多实例部署时其他实例的 Hub 转发。
	PublishEvent(ctx context.Context, projectID string, frame []byte) error

	// SubscribeEvents 订阅项目频道，返回入站帧的通道和取消函数。
	// 调用取消函数后帧通道会被关闭。帧按频道内的发布顺序到达。
	SubscribeEvents(ctx context.Context, projectID string) (<-chan []byte, func(), error)
}
