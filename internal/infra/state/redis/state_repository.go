package redisstate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"richmenu-editor/internal/domain"
)

// RedisStateRepository 是 StateRepository 接口的 Redis 实现
type RedisStateRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStateRepository 创建 RedisStateRepository 实例
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "rme:" // rich menu editor
	}
	return &RedisStateRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// --- Key Generation Helpers ---

func (r *RedisStateRepository) projectTabsKey(projectID string) string {
	return fmt.Sprintf("%sproject:%s:tabs", r.keyPrefix, projectID)
}

func (r *RedisStateRepository) projectPubSubChannel(projectID string) string {
	return fmt.Sprintf("%sproject:%s:pubsub", r.keyPrefix, projectID)
}

func (r *RedisStateRepository) activeProjectsKey() string {
	return fmt.Sprintf("%sprojects:active", r.keyPrefix)
}

// --- StateRepository Interface Implementation ---

// SetActiveTab 记录一个成员当前停留的菜单页（Hash: userID -> EditorTab JSON）。
func (r *RedisStateRepository) SetActiveTab(ctx context.Context, projectID string, tab domain.EditorTab, ttl time.Duration) error {
	key := r.projectTabsKey(projectID)
	data, err := json.Marshal(tab)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal editor tab for user %s: %w", tab.UserID, err)
	}
	// Pipeline: 写条目、刷新过期时间、登记活跃房间，一次往返完成
	pipe := r.client.Pipeline()
	pipe.HSet(ctx, key, tab.UserID, data)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	pipe.SAdd(ctx, r.activeProjectsKey(), projectID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to set active tab for user %s in project %s: %w", tab.UserID, projectID, err)
	}
	return nil
}

// RemoveActiveTab 删掉离开成员的条目。
func (r *RedisStateRepository) RemoveActiveTab(ctx context.Context, projectID string, userID string) error {
	key := r.projectTabsKey(projectID)
	if err := r.client.HDel(ctx, key, userID).Err(); err != nil {
		return fmt.Errorf("redis: failed to remove active tab for user %s in project %s: %w", userID, projectID, err)
	}
	return nil
}

// GetActiveTabs 获取房间当前全部成员的菜单页快照。
// 个别条目反序列化失败时跳过并记日志，不让一条脏数据挡住整个快照。
func (r *RedisStateRepository) GetActiveTabs(ctx context.Context, projectID string) ([]domain.EditorTab, error) {
	key := r.projectTabsKey(projectID)
	entries, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to get active tabs for project %s from %s: %w", projectID, key, err)
	}
	tabs := make([]domain.EditorTab, 0, len(entries))
	for userID, raw := range entries {
		var tab domain.EditorTab
		if err := json.Unmarshal([]byte(raw), &tab); err != nil {
			logrus.WithFields(logrus.Fields{
				"project_id": projectID,
				"user_id":    userID,
			}).WithError(err).Warn("Skipping corrupted active tab entry")
			continue
		}
		tabs = append(tabs, tab)
	}
	return tabs, nil
}

// CleanupProjectState 清理房间相关的全部 Redis key。
func (r *RedisStateRepository) CleanupProjectState(ctx context.Context, projectID string) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, r.projectTabsKey(projectID))
	pipe.SRem(ctx, r.activeProjectsKey(), projectID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to cleanup state for project %s: %w", projectID, err)
	}
	return nil
}

// ListActiveProjects 列出当前有 presence 记录的房间。
func (r *RedisStateRepository) ListActiveProjects(ctx context.Context) ([]string, error) {
	projects, err := r.client.SMembers(ctx, r.activeProjectsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to list active projects: %w", err)
	}
	return projects, nil
}

// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数。
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, duration time.Duration) (bool, error) {
	// 使用 Pipeline 减少网络往返
	pipe := r.client.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, duration)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: pipeline failed for rate limit check on key %s: %w", key, err)
	}
	count, err := incrCmd.Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to get incr result for rate limit on key %s: %w", key, err)
	}
	return count > int64(limit), nil
}

// PublishEvent 将一帧已序列化的房间消息发布到项目频道。
func (r *RedisStateRepository) PublishEvent(ctx context.Context, projectID string, frame []byte) error {
	channel := r.projectPubSubChannel(projectID)
	if err := r.client.Publish(ctx, channel, frame).Err(); err != nil {
		logrus.WithFields(logrus.Fields{
			"channel":    channel,
			"frame_size": len(frame),
			"project_id": projectID,
		}).WithError(err).Error("Failed to publish event to Redis channel")
		return fmt.Errorf("redis: failed to publish event for project %s: %w", projectID, err)
	}
	return nil
}

// SubscribeEvents 订阅项目频道，另起 goroutine 把收到的消息泵入返回的通道。
// 调用返回的取消函数会关闭底层订阅，帧通道随之关闭。
func (r *RedisStateRepository) SubscribeEvents(ctx context.Context, projectID string) (<-chan []byte, func(), error) {
	channel := r.projectPubSubChannel(projectID)
	pubsub := r.client.Subscribe(ctx, channel)

	// 确认订阅已建立，避免丢掉刚建立期间的帧
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("redis: failed to subscribe to events for project %s: %w", projectID, err)
	}

	frames := make(chan []byte, 64)
	go func() {
		defer close(frames)
		for msg := range pubsub.Channel() {
			frames <- []byte(msg.Payload)
		}
	}()

	closer := func() {
		if err := pubsub.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"channel":    channel,
				"project_id": projectID,
			}).WithError(err).Warn("Failed to close Redis subscription")
		}
	}
	return frames, closer, nil
}
