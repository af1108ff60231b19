package credit

import "context"

// RetryQueue 消耗记录写入失败后的异步重试队列
type RetryQueue interface {
	EnqueueUsage(ctx context.Context, in RecordInput) error
}
