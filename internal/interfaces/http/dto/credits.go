package dto

import (
	"time"

	"toolkitforseo-api/internal/domain/entity"
)

// UsageRecordResponse 消耗记录响应
type UsageRecordResponse struct {
	ID           string    `json:"id"`
	ToolName     string    `json:"tool_name"`
	ToolCategory string    `json:"tool_category"`
	CreditsUsed  int64     `json:"credits_used"`
	Success      bool      `json:"success"`
	CreatedAt    time.Time `json:"created_at"`
}

// ToUsageRecordResponses 转换消耗记录列表
func ToUsageRecordResponses(records []*entity.UsageRecord) []*UsageRecordResponse {
	out := make([]*UsageRecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, &UsageRecordResponse{
			ID:           r.ID,
			ToolName:     r.ToolName,
			ToolCategory: r.ToolCategory,
			CreditsUsed:  r.CreditsUsed,
			Success:      r.Success,
			CreatedAt:    r.CreatedAt,
		})
	}
	return out
}
