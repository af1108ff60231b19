package messaging

import (
	"context"
	"fmt"

	"toolkitforseo-api/internal/application/credit"
)

// UsageRetryQueue 基于 Redis Stream 的消耗记录重试队列
type UsageRetryQueue struct {
	producer *Producer
}

// NewUsageRetryQueue 创建重试队列
func NewUsageRetryQueue(producer *Producer) *UsageRetryQueue {
	return &UsageRetryQueue{producer: producer}
}

var _ credit.RetryQueue = (*UsageRetryQueue)(nil)

// EnqueueUsage 发布一条待补写的消耗记录
func (q *UsageRetryQueue) EnqueueUsage(ctx context.Context, in credit.RecordInput) error {
	if in.ID == "" {
		return fmt.Errorf("enqueue usage record: missing id")
	}
	rec := &UsageRecordMessage{
		RecordID:     in.ID,
		SubscriberID: in.SubscriberID,
		ToolName:     in.ToolName,
		ToolCategory: in.ToolCategory,
		Success:      true,
		OccurredAt:   in.OccurredAt,
	}
	if in.CreditsUsed != nil {
		rec.CreditsUsed = *in.CreditsUsed
	}
	if in.Success != nil {
		rec.Success = *in.Success
	}
	_, err := q.producer.PublishUsageRecord(ctx, rec)
	return err
}

// UsageReplayer 重放消耗记录
type UsageReplayer interface {
	Replay(ctx context.Context, in credit.RecordInput) error
}

// NewUsageReplayHandler 将重试流中的消息交给计量器重放
func NewUsageReplayHandler(replayer UsageReplayer) MessageHandler {
	return func(ctx context.Context, msg *Message) error {
		var rec UsageRecordMessage
		if err := msg.UnmarshalPayload(&rec); err != nil {
			return err
		}
		credits := rec.CreditsUsed
		success := rec.Success
		return replayer.Replay(ctx, credit.RecordInput{
			ID:           rec.RecordID,
			SubscriberID: rec.SubscriberID,
			ToolName:     rec.ToolName,
			ToolCategory: rec.ToolCategory,
			CreditsUsed:  &credits,
			Success:      &success,
			OccurredAt:   rec.OccurredAt,
		})
	}
}
