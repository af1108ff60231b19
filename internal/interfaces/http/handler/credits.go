package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"toolkitforseo-api/internal/application/credit"
	"toolkitforseo-api/internal/domain/repository"
	"toolkitforseo-api/internal/interfaces/http/dto"
	"toolkitforseo-api/internal/interfaces/http/middleware"
	apperrors "toolkitforseo-api/pkg/errors"
)

// CreditReader 额度查询能力
type CreditReader interface {
	Authorize(ctx context.Context, subscriberID, tool string, credits *int64) (*credit.Decision, error)
	Summary(ctx context.Context, subscriberID string) (*credit.CreditSummary, error)
}

// CreditHandler 额度与用量处理器
type CreditHandler struct {
	meter CreditReader
	usage repository.UsageRecordRepository
}

// NewCreditHandler 创建额度处理器
func NewCreditHandler(meter CreditReader, usage repository.UsageRecordRepository) *CreditHandler {
	return &CreditHandler{meter: meter, usage: usage}
}

// Summary 本期额度概览
// @Summary 额度概览
// @Tags Credits
// @Produce json
// @Success 200 {object} dto.Response[credit.CreditSummary]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/credits [get]
func (h *CreditHandler) Summary(c *gin.Context) {
	summary, err := h.meter.Summary(c.Request.Context(), middleware.GetSubscriberID(c))
	if err != nil {
		if errors.Is(err, credit.ErrNoActiveSubscription) {
			respondError(c, apperrors.ErrSubscriptionNotFound)
			return
		}
		respondError(c, err)
		return
	}
	dto.Success(c, summary)
}

// Check 额度预检，只读
// @Summary 额度预检
// @Tags Credits
// @Produce json
// @Param tool query string true "工具名称"
// @Param credits query int false "所需额度，缺省按成本表"
// @Success 200 {object} dto.Response[credit.Decision]
// @Router /v1/credits/check [get]
func (h *CreditHandler) Check(c *gin.Context) {
	var q dto.CreditCheckQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		dto.BadRequest(c, bindingMessage(err))
		return
	}

	decision, err := h.meter.Authorize(c.Request.Context(), middleware.GetSubscriberID(c), q.Tool, q.Credits)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, decision)
}

// Usage 分页列出消耗记录，最新在前
// @Summary 消耗记录
// @Tags Credits
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[[]dto.UsageRecordResponse]
// @Router /v1/usage [get]
func (h *CreditHandler) Usage(c *gin.Context) {
	page := dto.BindPage(c)

	result, err := h.usage.ListBySubscriber(c.Request.Context(), middleware.GetSubscriberID(c), page)
	if err != nil {
		respondError(c, err)
		return
	}

	dto.SuccessWithPage(c, dto.ToUsageRecordResponses(result.Items),
		dto.NewPageMeta(result.Page, result.PageSize, result.Total, result.TotalPages))
}
