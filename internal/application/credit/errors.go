package credit

import (
	"errors"
	"fmt"
)

// 拒绝原因
const (
	ReasonNoActiveSubscription = "no active subscription"
	ReasonInsufficientCredits  = "insufficient credits"
)

var (
	// ErrNoActiveSubscription 订阅者没有有效订阅
	ErrNoActiveSubscription = errors.New(ReasonNoActiveSubscription)
	// ErrUnknownTool 工具不在成本表中
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidCredits 调用方传入的额度为负数
	ErrInvalidCredits = errors.New("credits must not be negative")
)

// InsufficientCreditsError 剩余额度不足以支付本次调用
type InsufficientCreditsError struct {
	Decision *Decision
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("Insufficient credits. You have %d credits remaining for %s, but this tool requires %d.",
		e.Decision.Remaining, e.Decision.Category, e.Decision.Required)
}
