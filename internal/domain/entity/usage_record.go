package entity

import "time"

// UsageRecord 工具调用的额度消耗记录，只追加不修改
type UsageRecord struct {
	ID           string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SubscriberID string    `json:"subscriber_id" gorm:"type:varchar(128);not null"`
	ToolName     string    `json:"tool_name" gorm:"type:varchar(64);not null"`
	ToolCategory string    `json:"tool_category" gorm:"type:varchar(32);not null"`
	CreditsUsed  int64     `json:"credits_used" gorm:"not null;default:0"`
	Success      bool      `json:"success" gorm:"not null;default:true"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (UsageRecord) TableName() string {
	return "usage_records"
}
