package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"richmenu-editor/internal/domain"
	"richmenu-editor/internal/dto"
	"richmenu-editor/internal/service"
)

// ProjectHandler 封装项目和菜单页管理的 HTTP 处理逻辑
type ProjectHandler struct {
	projectService *service.ProjectService
	exportService  *service.ExportService
}

// NewProjectHandler 创建 ProjectHandler 实例
func NewProjectHandler(projectService *service.ProjectService, exportService *service.ExportService) *ProjectHandler {
	if projectService == nil {
		panic("ProjectService cannot be nil for ProjectHandler")
	}
	if exportService == nil {
		panic("ExportService cannot be nil for ProjectHandler")
	}
	return &ProjectHandler{
		projectService: projectService,
		exportService:  exportService,
	}
}

// accountIDFromContext 取 Auth 中间件放进上下文的账号 ID。
// 返回 false 时已写好 HTTP 响应。
func accountIDFromContext(c *gin.Context) (uint, bool) {
	accountIDAny, exists := c.Get("account_id")
	if !exists {
		logrus.Warn("Handler: account ID not found in context, middleware missing or failed?")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return 0, false
	}
	accountID, ok := accountIDAny.(uint)
	if !ok {
		logrus.Error("Handler: account ID in context is not uint")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error processing account ID"})
		return 0, false
	}
	return accountID, true
}

// projectIDFromParam 解析 URL 里的项目 ID。
func projectIDFromParam(c *gin.Context) (uint, bool) {
	idStr := c.Param("projectId")
	id64, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		logrus.WithError(err).Warnf("Handler: invalid project ID format: %s", idStr)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID format"})
		return 0, false
	}
	return uint(id64), true
}

// loadOwnedProject 加载项目并校验归属，失败时已写好响应。
func (h *ProjectHandler) loadOwnedProject(c *gin.Context, accountID uint) (*domain.Project, bool) {
	projectID, ok := projectIDFromParam(c)
	if !ok {
		return nil, false
	}
	project, err := h.projectService.GetProject(c.Request.Context(), projectID)
	if err != nil {
		HandleServiceError(c, err)
		return nil, false
	}
	if project.AccountID != accountID {
		logrus.WithFields(logrus.Fields{
			"project_id": projectID,
			"account_id": accountID,
		}).Warn("Handler: account attempted to access a project it does not own")
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this project"})
		return nil, false
	}
	return project, true
}

// --- 项目 ---

// CreateProjectRequest 定义创建项目请求的结构体
type CreateProjectRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
}

// CreateProject 创建项目，自动带一个默认菜单页。
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	accountID, ok := accountIDFromContext(c)
	if !ok {
		return
	}
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.CreateProject: Invalid input format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: name is required"})
		return
	}

	project, err := h.projectService.CreateProject(c.Request.Context(), accountID, req.Name)
	if err != nil {
		logrus.WithField("account_id", accountID).WithError(err).
			Error("Handler.CreateProject: Failed to create project")
		HandleServiceError(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"account_id": accountID,
		"project_id": project.ID,
	}).Info("Handler.CreateProject: Project created successfully")
	SuccessResponse(c, http.StatusOK, project)
}

// ListProjects 列出当前账号的全部项目。
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	accountID, ok := accountIDFromContext(c)
	if !ok {
		return
	}
	projects, err := h.projectService.ListProjects(c.Request.Context(), accountID)
	if err != nil {
		logrus.WithField("account_id", accountID).WithError(err).
			Error("Handler.ListProjects: Failed to list projects")
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"projects": projects})
}

// GetProject 返回单个项目（含全部菜单页，编辑器打开项目时用）。
func (h *ProjectHandler) GetProject(c *gin.Context) {
	accountID, ok := accountIDFromContext(c)
	if !ok {
		return
	}
	project, ok := h.loadOwnedProject(c, accountID)
	if !ok {
		return
	}
	SuccessResponse(c, http.StatusOK, project)
}

// DeleteProject 删除项目及其全部菜单页。
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	accountID, ok := accountIDFromContext(c)
	if !ok {
		return
	}
	project, ok := h.loadOwnedProject(c, accountID)
	if !ok {
		return
	}
	if err := h.projectService.DeleteProject(c.Request.Context(), project.ID); err != nil {
		HandleServiceError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"account_id": accountID,
		"project_id": project.ID,
	}).Info("Handler.DeleteProject: Project deleted")
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Project deleted successfully"})
}

// --- 菜单页 ---

// RichMenuRequest 定义创建/改名菜单页请求的结构体
type RichMenuRequest struct {
	Alias string `json:"alias" binding:"required"`
}

// CreateRichMenu 在项目下新建一个菜单页。
func (h *ProjectHandler) CreateRichMenu(c *gin.Context) {
	accountID, ok := accountIDFromContext(c)
	if !ok {
		return
	}
	project, ok := h.loadOwnedProject(c, accountID)
	if !ok {
		return
	}
	var req RichMenuRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.CreateRichMenu: Invalid input format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: alias is required"})
		return
	}

	richMenu, err := h.projectService.CreateRichMenu(c.Request.Context(), project.ID, req.Alias)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"project_id":   project.ID,
		"rich_menu_id": richMenu.ID,
	}).Info("Handler.CreateRichMenu: Rich menu created")
	SuccessResponse(c, http.StatusOK, richMenu)
}

// RenameRichMenu 修改菜单页别名。
func (h *ProjectHandler) RenameRichMenu(c *gin.Context) {
	accountID, ok := accountIDFromContext(c)
	if !ok {
		return
	}
	if _, ok := h.loadOwnedProject(c, accountID); !ok {
		return
	}
	var req RichMenuRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.RenameRichMenu: Invalid input format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: alias is required"})
		return
	}

	richMenu, err := h.projectService.RenameRichMenu(c.Request.Context(), c.Param("richMenuId"), req.Alias)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, richMenu)
}

// DeleteRichMenu 删除一个菜单页。
func (h *ProjectHandler) DeleteRichMenu(c *gin.Context) {
	accountID, ok := accountIDFromContext(c)
	if !ok {
		return
	}
	if _, ok := h.loadOwnedProject(c, accountID); !ok {
		return
	}
	if err := h.projectService.DeleteRichMenu(c.Request.Context(), c.Param("richMenuId")); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Rich menu deleted successfully"})
}

// SaveAreasRequest 定义保存区域列表请求的结构体
type SaveAreasRequest struct {
	Areas []domain.Area `json:"areas"`
}

// SaveAreas 整表替换菜单页的区域列表（编辑器显式保存时走这里，
// 实时协作路径走 WebSocket + 异步任务）。
func (h *ProjectHandler) SaveAreas(c *gin.Context) {
	accountID, ok := accountIDFromContext(c)
	if !ok {
		return
	}
	if _, ok := h.loadOwnedProject(c, accountID); !ok {
		return
	}
	var req SaveAreasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.SaveAreas: Invalid input format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: areas list required"})
		return
	}

	richMenu, err := h.projectService.SaveAreas(c.Request.Context(), c.Param("richMenuId"), req.Areas)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, richMenu)
}

// SaveMetadata 按字段合并菜单页的 metadata。
func (h *ProjectHandler) SaveMetadata(c *gin.Context) {
	accountID, ok := accountIDFromContext(c)
	if !ok {
		return
	}
	if _, ok := h.loadOwnedProject(c, accountID); !ok {
		return
	}
	var patch dto.MetadataPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		logrus.WithError(err).Warn("Handler.SaveMetadata: Invalid input format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid metadata patch"})
		return
	}

	richMenu, err := h.projectService.SaveMetadata(c.Request.Context(), c.Param("richMenuId"), patch)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, richMenu)
}

// ExportRichMenu 生成符合 LINE Messaging API 要求的发布 payload。
func (h *ProjectHandler) ExportRichMenu(c *gin.Context) {
	accountID, ok := accountIDFromContext(c)
	if !ok {
		return
	}
	project, ok := h.loadOwnedProject(c, accountID)
	if !ok {
		return
	}

	richMenuID := c.Param("richMenuId")
	var target *domain.RichMenu
	for i := range project.RichMenus {
		if project.RichMenus[i].ID == richMenuID {
			target = &project.RichMenus[i]
			break
		}
	}
	if target == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Rich menu not found in project"})
		return
	}

	payload, err := h.exportService.BuildPublishPayload(target)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"project_id":   project.ID,
		"rich_menu_id": richMenuID,
		"area_count":   len(payload.Areas),
	}).Info("Handler.ExportRichMenu: Publish payload built")
	SuccessResponse(c, http.StatusOK, payload)
}
