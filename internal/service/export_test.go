package service_test

import (
	"errors"
	"testing"

	"richmenu-editor/internal/domain"
	"richmenu-editor/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportService_NormalizesActions(t *testing.T) {
	svc := service.NewExportService()
	rm := richMenuFixture("rm1", 7)
	rm.Metadata.ChatBarText = "Menu"
	rm.Metadata.Areas = []domain.Area{
		{
			Bounds: domain.Bounds{X: 0, Y: 0, Width: 1250, Height: 843},
			Action: domain.Action{Type: domain.ActionTypeURI, URI: "https://example.com"},
		},
		{
			// flex 是编辑器内部类型，导出时归一化成 postback
			Bounds: domain.Bounds{X: 1250, Y: 0, Width: 1250, Height: 843},
			Action: domain.Action{Type: domain.ActionTypeFlex, Data: "flex:doc-42"},
		},
		{
			// richmenuswitch 的 data 与别名保持一致
			Bounds: domain.Bounds{X: 0, Y: 843, Width: 1250, Height: 843},
			Action: domain.Action{Type: domain.ActionTypeRichMenuSwitch, RichMenuAliasID: "sub_menu"},
		},
		{
			// none 动作的区域整个剔除
			Bounds: domain.Bounds{X: 1250, Y: 843, Width: 1250, Height: 843},
			Action: domain.Action{Type: domain.ActionTypeNone},
		},
	}

	payload, err := svc.BuildPublishPayload(rm)

	require.NoError(t, err)
	require.Len(t, payload.Areas, 3, "none 动作的区域不应出现在发布 payload 里")
	assert.Equal(t, domain.ActionTypeURI, payload.Areas[0].Action.Type)
	assert.Equal(t, domain.ActionTypePostback, payload.Areas[1].Action.Type)
	assert.Equal(t, "flex:doc-42", payload.Areas[1].Action.Data)
	assert.Equal(t, domain.ActionTypeRichMenuSwitch, payload.Areas[2].Action.Type)
	assert.Equal(t, "sub_menu", payload.Areas[2].Action.Data)
	assert.Equal(t, "sub_menu", payload.Areas[2].Action.RichMenuAliasID)
	assert.Equal(t, "Main Menu", payload.Name)
	assert.Equal(t, "Menu", payload.ChatBarText)
}

func TestExportService_FallsBackToAliasForName(t *testing.T) {
	svc := service.NewExportService()
	rm := richMenuFixture("rm1", 7)
	rm.Metadata.Name = ""
	rm.Metadata.Areas = []domain.Area{
		domain.DefaultArea(domain.Bounds{X: 0, Y: 0, Width: 100, Height: 100}),
	}

	payload, err := svc.BuildPublishPayload(rm)

	require.NoError(t, err)
	assert.Equal(t, "main", payload.Name, "无名菜单页用别名兜底")
}

func TestExportService_AllAreasDropped(t *testing.T) {
	svc := service.NewExportService()
	rm := richMenuFixture("rm1", 7)
	rm.Metadata.Areas = []domain.Area{
		{
			Bounds: domain.Bounds{X: 0, Y: 0, Width: 100, Height: 100},
			Action: domain.Action{Type: domain.ActionTypeNone},
		},
	}

	_, err := svc.BuildPublishPayload(rm)

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrNotExportable))
}

func TestExportService_InvalidMetadataRejected(t *testing.T) {
	svc := service.NewExportService()
	rm := richMenuFixture("rm1", 7)
	rm.Metadata.Areas = []domain.Area{
		// 超出设计稿范围
		domain.DefaultArea(domain.Bounds{X: 2400, Y: 0, Width: 500, Height: 100}),
	}

	_, err := svc.BuildPublishPayload(rm)

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrInvalidMetadata))
}
