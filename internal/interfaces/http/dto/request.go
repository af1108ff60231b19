package dto

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"toolkitforseo-api/internal/domain/repository"
)

// PageRequest 分页请求参数
type PageRequest struct {
	Page     int `form:"page" json:"page"`
	PageSize int `form:"page_size" json:"page_size"`
}

// BindPage 从 Gin Context 绑定分页参数
func BindPage(c *gin.Context) repository.Pagination {
	return repository.NewPagination(
		parseIntWithDefault(c.Query("page"), 1),
		parseIntWithDefault(c.Query("page_size"), 20),
	)
}

// parseIntWithDefault 解析整数，失败时返回默认值
func parseIntWithDefault(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// ToolRequest 工具调用请求，可选字段按工具取用
type ToolRequest struct {
	Text   string `json:"text"`
	Tone   string `json:"tone,omitempty" binding:"omitempty,max=32"`
	Length string `json:"length,omitempty" binding:"omitempty,oneof=short medium long"`
	Style  string `json:"style,omitempty" binding:"omitempty,max=32"`
}

// Vars 转为提示词变量
func (r *ToolRequest) Vars() map[string]string {
	return map[string]string{
		"text":   r.Text,
		"tone":   r.Tone,
		"length": r.Length,
		"style":  r.Style,
	}
}

// CreditCheckQuery 额度预检参数
type CreditCheckQuery struct {
	Tool    string `form:"tool" binding:"required"`
	Credits *int64 `form:"credits" binding:"omitempty,min=0"`
}
