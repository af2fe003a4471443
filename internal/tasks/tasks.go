package tasks

import (
	"encoding/json"

	"richmenu-editor/internal/domain"
	"richmenu-editor/internal/dto"
)

// 任务类型常量
const (
	// TypeAreasPersistence 把协作通道上的区域更新异步落库。
	TypeAreasPersistence = "richmenu:persist_areas"
	// TypeMetadataPersistence 把协作通道上的 metadata 更新异步落库。
	TypeMetadataPersistence = "richmenu:persist_metadata"
	// TypePresenceSweep 周期清理无人房间残留的 Redis presence 状态。
	TypePresenceSweep = "presence:sweep"
)

// AreasPersistencePayload 是区域落库任务的数据。
// 携带完整区域列表（整表替换语义），任务重放是幂等的。
type AreasPersistencePayload struct {
	RichMenuID string        `json:"rich_menu_id"`
	Areas      []domain.Area `json:"areas"`
}

// NewAreasPersistenceTask 序列化区域落库任务的 payload。
func NewAreasPersistenceTask(richMenuID string, areas []domain.Area) ([]byte, error) {
	return json.Marshal(AreasPersistencePayload{
		RichMenuID: richMenuID,
		Areas:      areas,
	})
}

// MetadataPersistencePayload 是 metadata 落库任务的数据。
type MetadataPersistencePayload struct {
	RichMenuID string            `json:"rich_menu_id"`
	Patch      dto.MetadataPatch `json:"patch"`
}

// NewMetadataPersistenceTask 序列化 metadata 落库任务的 payload。
func NewMetadataPersistenceTask(richMenuID string, patch dto.MetadataPatch) ([]byte, error) {
	return json.Marshal(MetadataPersistencePayload{
		RichMenuID: richMenuID,
		Patch:      patch,
	})
}

// NewPresenceSweepTask 序列化 presence 清扫任务的 payload（无数据）。
func NewPresenceSweepTask() ([]byte, error) {
	return json.Marshal(struct{}{})
}
