// Package entity 定义领域实体
package entity

import (
	"strings"
	"time"
)

// SubscriptionStatus 订阅状态
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// Subscription 订阅实体，决定订阅者的套餐与各类别额度上限
type Subscription struct {
	ID               string             `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SubscriberID     string             `json:"subscriber_id" gorm:"type:varchar(128);uniqueIndex;not null"`
	Plan             string             `json:"plan" gorm:"type:varchar(32);not null"`
	Status           SubscriptionStatus `json:"status" gorm:"type:varchar(16);not null;default:active"`
	CurrentPeriodEnd *time.Time         `json:"current_period_end,omitempty"`
	// ExternalRef 支付侧的订阅引用，仅作关联展示
	ExternalRef string    `json:"external_ref,omitempty" gorm:"type:varchar(128)"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// NewSubscription 创建活跃订阅
func NewSubscription(subscriberID, plan string) *Subscription {
	now := time.Now()
	return &Subscription{
		SubscriberID: strings.TrimSpace(subscriberID),
		Plan:         strings.TrimSpace(plan),
		Status:       SubscriptionStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsActive 检查订阅在给定时刻是否有效
func (s *Subscription) IsActive(at time.Time) bool {
	if s == nil || s.Status != SubscriptionStatusActive {
		return false
	}
	if s.CurrentPeriodEnd != nil && !at.Before(*s.CurrentPeriodEnd) {
		return false
	}
	return true
}
