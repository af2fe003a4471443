package service

import (
	"fmt"

	"richmenu-editor/internal/domain"

	"github.com/sirupsen/logrus"
)

// PublishPayload 是发布到消息平台的 Rich Menu 形态。
// 字段名与平台 API 一致，编辑器内部的扩展（flex 类型、none 动作）
// 在构造时已被归一化或剔除。
type PublishPayload struct {
	Size        domain.MenuSize `json:"size"`
	Selected    bool            `json:"selected"`
	Name        string          `json:"name"`
	ChatBarText string          `json:"chatBarText"`
	Areas       []PublishArea   `json:"areas"`
}

// PublishArea 是发布形态的单个点击区域。
type PublishArea struct {
	Bounds domain.Bounds `json:"bounds"`
	Action domain.Action `json:"action"`
}

// ExportService 负责把编辑中的 Rich Menu 转成可发布的形态。
type ExportService struct{}

// NewExportService 创建 ExportService 实例。
func NewExportService() *ExportService {
	return &ExportService{}
}

// BuildPublishPayload 构造发布 payload：
//   - 校验 metadata 的发布前约束
//   - 逐区域归一化动作；none 及未知类型的区域整个剔除
//   - 至少要剩一个可发布区域，否则返回 ErrNotExportable
func (s *ExportService) BuildPublishPayload(rm *domain.RichMenu) (*PublishPayload, error) {
	if rm == nil {
		return nil, fmt.Errorf("%w: rich menu is nil", ErrInvalidMetadata)
	}
	meta := rm.Metadata
	if err := meta.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}

	name := meta.Name
	if name == "" {
		name = rm.Alias
	}

	payload := &PublishPayload{
		Size:        meta.Size,
		Selected:    meta.Selected,
		Name:        name,
		ChatBarText: meta.ChatBarText,
		Areas:       make([]PublishArea, 0, len(meta.Areas)),
	}

	dropped := 0
	for _, area := range meta.Areas {
		action := area.Action.Normalize()
		if action == nil {
			dropped++
			continue
		}
		payload.Areas = append(payload.Areas, PublishArea{
			Bounds: area.Bounds,
			Action: *action,
		})
	}
	if dropped > 0 {
		logrus.WithFields(logrus.Fields{
			"rich_menu_id": rm.ID,
			"dropped":      dropped,
		}).Debug("Dropped non-publishable areas during export")
	}

	if len(payload.Areas) == 0 {
		return nil, ErrNotExportable
	}
	return payload, nil
}
