package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"richmenu-editor/internal/service"
	"richmenu-editor/internal/tasks"
)

// AreasPersistenceHandler 消费区域整表更新任务，把实时层已广播的
// 区域列表落进数据库。任务是整表替换，天然幂等，重试安全。
type AreasPersistenceHandler struct {
	projectService *service.ProjectService
}

// NewAreasPersistenceHandler 创建区域持久化任务处理器
func NewAreasPersistenceHandler(projectService *service.ProjectService) *AreasPersistenceHandler {
	if projectService == nil {
		panic("ProjectService cannot be nil for AreasPersistenceHandler")
	}
	return &AreasPersistenceHandler{projectService: projectService}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *AreasPersistenceHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.AreasPersistencePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		// payload 坏了，重试也没用
		return fmt.Errorf("failed to unmarshal areas persistence payload: %v: %w", err, asynq.SkipRetry)
	}

	logCtx := logrus.WithFields(logrus.Fields{
		"rich_menu_id": p.RichMenuID,
		"area_count":   len(p.Areas),
		"operation":    "AreasPersistence",
	})

	if _, err := h.projectService.SaveAreas(ctx, p.RichMenuID, p.Areas); err != nil {
		if errors.Is(err, service.ErrRichMenuNotFound) {
			// 菜单页已被删除，任务过期，不再重试
			logCtx.Warn("Rich menu no longer exists, dropping stale areas task")
			return fmt.Errorf("rich menu %s not found: %w", p.RichMenuID, asynq.SkipRetry)
		}
		if errors.Is(err, service.ErrInvalidMetadata) {
			logCtx.WithError(err).Warn("Areas failed validation, dropping task")
			return fmt.Errorf("areas rejected for rich menu %s: %v: %w", p.RichMenuID, err, asynq.SkipRetry)
		}
		logCtx.WithError(err).Error("Failed to persist areas")
		return fmt.Errorf("failed to persist areas for rich menu %s: %w", p.RichMenuID, err)
	}

	logCtx.Info("Areas persisted successfully")
	return nil
}

// MetadataPersistenceHandler 消费 metadata 部分更新任务。
// 补丁按字段合并，与实时层的合并语义一致。
type MetadataPersistenceHandler struct {
	projectService *service.ProjectService
}

// NewMetadataPersistenceHandler 创建 metadata 持久化任务处理器
func NewMetadataPersistenceHandler(projectService *service.ProjectService) *MetadataPersistenceHandler {
	if projectService == nil {
		panic("ProjectService cannot be nil for MetadataPersistenceHandler")
	}
	return &MetadataPersistenceHandler{projectService: projectService}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *MetadataPersistenceHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.MetadataPersistencePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal metadata persistence payload: %v: %w", err, asynq.SkipRetry)
	}

	logCtx := logrus.WithFields(logrus.Fields{
		"rich_menu_id": p.RichMenuID,
		"operation":    "MetadataPersistence",
	})

	if _, err := h.projectService.SaveMetadata(ctx, p.RichMenuID, p.Patch); err != nil {
		if errors.Is(err, service.ErrRichMenuNotFound) {
			logCtx.Warn("Rich menu no longer exists, dropping stale metadata task")
			return fmt.Errorf("rich menu %s not found: %w", p.RichMenuID, asynq.SkipRetry)
		}
		if errors.Is(err, service.ErrInvalidMetadata) {
			logCtx.WithError(err).Warn("Metadata patch failed validation, dropping task")
			return fmt.Errorf("metadata rejected for rich menu %s: %v: %w", p.RichMenuID, err, asynq.SkipRetry)
		}
		logCtx.WithError(err).Error("Failed to persist metadata")
		return fmt.Errorf("failed to persist metadata for rich menu %s: %w", p.RichMenuID, err)
	}

	logCtx.Info("Metadata persisted successfully")
	return nil
}
