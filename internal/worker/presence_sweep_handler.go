package worker

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"richmenu-editor/internal/repository"
)

// RoomLister 报告当前有在线成员的房间，由 Hub 实现。
type RoomLister interface {
	ActiveProjectIDs() []string
}

// PresenceSweepHandler 是周期性任务：对比 Redis 里有 presence 记录的
// 房间和 Hub 里真正有连接的房间，清掉崩溃或断电留下的残留状态。
type PresenceSweepHandler struct {
	stateRepo repository.StateRepository
	rooms     RoomLister
}

// NewPresenceSweepHandler 创建 presence 清扫任务处理器
func NewPresenceSweepHandler(stateRepo repository.StateRepository, rooms RoomLister) *PresenceSweepHandler {
	if stateRepo == nil {
		panic("StateRepository cannot be nil for PresenceSweepHandler")
	}
	if rooms == nil {
		panic("RoomLister cannot be nil for PresenceSweepHandler")
	}
	return &PresenceSweepHandler{stateRepo: stateRepo, rooms: rooms}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *PresenceSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithField("operation", "PresenceSweep")

	recorded, err := h.stateRepo.ListActiveProjects(ctx)
	if err != nil {
		logCtx.WithError(err).Error("Failed to list projects with presence records")
		return err
	}
	if len(recorded) == 0 {
		logCtx.Debug("No presence records to sweep")
		return nil
	}

	live := make(map[string]bool)
	for _, projectID := range h.rooms.ActiveProjectIDs() {
		live[projectID] = true
	}

	swept := 0
	for _, projectID := range recorded {
		if live[projectID] {
			continue
		}
		if err := h.stateRepo.CleanupProjectState(ctx, projectID); err != nil {
			// 单个房间清理失败不中断整轮清扫，下个周期还会再来
			logCtx.WithField("project_id", projectID).WithError(err).
				Warn("Failed to cleanup stale project state")
			continue
		}
		swept++
	}

	if swept > 0 {
		logCtx.WithFields(logrus.Fields{
			"recorded_count": len(recorded),
			"swept_count":    swept,
		}).Info("Swept stale presence state")
	}
	return nil
}
