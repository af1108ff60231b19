package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"toolkitforseo-api/internal/application/tools"
	"toolkitforseo-api/internal/interfaces/http/dto"
	"toolkitforseo-api/internal/interfaces/http/middleware"
	apperrors "toolkitforseo-api/pkg/errors"
	"toolkitforseo-api/pkg/logger"
)

// ToolHandler 工具调用处理器
type ToolHandler struct {
	catalog *tools.Catalog
}

// NewToolHandler 创建工具调用处理器
func NewToolHandler(catalog *tools.Catalog) *ToolHandler {
	return &ToolHandler{catalog: catalog}
}

// Run 执行工具
// @Summary 执行文本工具
// @Description 占用额度后调用模型，成功时直接返回该工具的结构化结果
// @Tags Tools
// @Accept json
// @Produce json
// @Param tool path string true "工具名称"
// @Param body body dto.ToolRequest true "工具输入"
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 402 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 413 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/tools/{tool} [post]
func (h *ToolHandler) Run(c *gin.Context) {
	ctx := c.Request.Context()
	name := c.Param("tool")

	if _, ok := h.catalog.Lookup(name); !ok {
		respondError(c, apperrors.ErrToolNotFound)
		return
	}

	var req dto.ToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	out, err := h.catalog.Run(ctx, middleware.GetSubscriberID(c), name, req.Vars())
	if err != nil {
		respondError(c, err)
		return
	}

	logger.Info(ctx, "tool run completed",
		"tool", name,
		"vendor", out.Run.Vendor,
		"credits_used", out.Run.CreditsUsed,
		"duration_ms", out.Run.Duration.Milliseconds(),
	)
	c.Header("X-Credits-Used", strconv.FormatInt(out.Run.CreditsUsed, 10))
	c.JSON(http.StatusOK, out.Result)
}

// List 列出可用工具
// @Summary 工具列表
// @Tags Tools
// @Produce json
// @Router /v1/tools [get]
func (h *ToolHandler) List(c *gin.Context) {
	dto.Success(c, h.catalog.Names())
}
