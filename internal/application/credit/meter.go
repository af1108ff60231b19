package credit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"toolkitforseo-api/internal/domain/entity"
	"toolkitforseo-api/internal/domain/repository"
	"toolkitforseo-api/pkg/logger"
	"toolkitforseo-api/pkg/metrics"
	"toolkitforseo-api/pkg/tracer"
)

const defaultCounterTTLSlack = 72 * time.Hour

// Policy 计费策略
type Policy struct {
	// ChargeFailedAttempts 失败的调用是否仍按成本扣减额度
	ChargeFailedAttempts bool
	// CounterTTLSlack 计数器在周期结束后额外保留的时长
	CounterTTLSlack time.Duration
}

// Decision 授权结果
type Decision struct {
	Allowed   bool   `json:"allowed"`
	Remaining int64  `json:"remaining"`
	Required  int64  `json:"required"`
	Limit     int64  `json:"limit"`
	Used      int64  `json:"used"`
	Unlimited bool   `json:"unlimited"`
	Category  string `json:"category"`
	Reason    string `json:"reason,omitempty"`
}

// RecordInput 一条消耗记录的输入，未填字段从成本表补齐
type RecordInput struct {
	// ID 预分配的记录 ID，重放时据此去重
	ID           string
	SubscriberID string
	ToolName     string
	ToolCategory string
	CreditsUsed  *int64
	Success      *bool
	OccurredAt   time.Time
}

// Reservation 已占用但尚未结算的额度
type Reservation struct {
	ID           string
	SubscriberID string
	Tool         string
	Category     string
	Credits      int64
	Limit        int64
	Unlimited    bool
	ReservedAt   time.Time

	counter repository.CreditCounter
	held    bool
}

// Remaining 占用后剩余额度，不限量时为 Unlimited
func (r *Reservation) Remaining(used int64) int64 {
	if r.Unlimited {
		return Unlimited
	}
	return r.Limit - used
}

// CategoryUsage 单个类别的本期用量
type CategoryUsage struct {
	Category  string `json:"category"`
	Limit     int64  `json:"limit"`
	Used      int64  `json:"used"`
	Remaining int64  `json:"remaining"`
	Unlimited bool   `json:"unlimited"`
}

// CreditSummary 订阅者本期额度概览
type CreditSummary struct {
	SubscriberID string          `json:"subscriber_id"`
	Plan         string          `json:"plan"`
	PeriodStart  time.Time       `json:"period_start"`
	ResetsAt     time.Time       `json:"resets_at"`
	Categories   []CategoryUsage `json:"categories"`
}

// Meter 额度计量器
type Meter struct {
	subs   repository.SubscriptionRepository
	usage  repository.UsageRecordRepository
	ledger repository.CreditLedger
	costs  *CostTable
	plans  *PlanCatalog
	policy Policy
	now    func() time.Time
}

// NewMeter 创建计量器，ledger 为 nil 时占用退化为读后写
func NewMeter(
	subs repository.SubscriptionRepository,
	usage repository.UsageRecordRepository,
	ledger repository.CreditLedger,
	costs *CostTable,
	plans *PlanCatalog,
	policy Policy,
) *Meter {
	if policy.CounterTTLSlack <= 0 {
		policy.CounterTTLSlack = defaultCounterTTLSlack
	}
	return &Meter{
		subs:   subs,
		usage:  usage,
		ledger: ledger,
		costs:  costs,
		plans:  plans,
		policy: policy,
		now:    time.Now,
	}
}

// Costs 返回成本表
func (m *Meter) Costs() *CostTable {
	return m.costs
}

// Authorize 只读地判断订阅者能否支付一次工具调用。
// credits 为 nil 时按成本表计算；没有有效订阅返回 Allowed=false 而不是错误。
func (m *Meter) Authorize(ctx context.Context, subscriberID, tool string, credits *int64) (*Decision, error) {
	ctx, span := tracer.Start(ctx, "credit.Meter.Authorize")
	var err error
	defer func() { tracer.End(span, err) }()

	cost, err := m.costs.Lookup(tool)
	if err != nil {
		return nil, err
	}
	required := cost.Credits
	if credits != nil {
		if *credits < 0 {
			err = ErrInvalidCredits
			return nil, err
		}
		required = *credits
	}
	d := &Decision{Required: required, Category: cost.Category}

	now := m.now()
	sub, err := m.activeSubscription(ctx, subscriberID, now)
	if err != nil {
		if errors.Is(err, ErrNoActiveSubscription) {
			err = nil
			d.Reason = ReasonNoActiveSubscription
			return d, nil
		}
		return nil, err
	}

	limit := m.limit(ctx, sub, cost.Category)
	d.Limit = limit
	if limit == Unlimited {
		d.Allowed = true
		d.Unlimited = true
		d.Remaining = Unlimited
		return d, nil
	}

	start, end := MonthWindow(now)
	used, err := m.usage.SumCredits(ctx, subscriberID, cost.Category, start, end)
	if err != nil {
		return nil, err
	}
	d.Used = used
	d.Remaining = limit - used
	d.Allowed = d.Remaining >= required
	if !d.Allowed {
		d.Reason = ReasonInsufficientCredits
	}
	span.SetAttributes(
		attribute.Bool("credits.allowed", d.Allowed),
		attribute.Int64("credits.remaining", d.Remaining),
	)
	return d, nil
}

// Record 追加一条消耗记录，成功与失败的调用都会记录。
// 周期计数器存在时同步累加，使其与数据库汇总保持一致。
func (m *Meter) Record(ctx context.Context, in RecordInput) error {
	rec, err := m.buildRecord(in)
	if err != nil {
		return err
	}
	if err := m.usage.Create(ctx, rec); err != nil {
		metrics.UsageRecordFailures.WithLabelValues("record").Inc()
		return err
	}
	m.observeConsumed(rec)

	if m.ledger != nil && rec.CreditsUsed != 0 {
		if err := m.ledger.Adjust(ctx, m.counter(rec.SubscriberID, rec.ToolCategory, rec.CreatedAt), rec.CreditsUsed); err != nil {
			logger.Warn(ctx, "failed to sync credit counter after record",
				"subscriber_id", rec.SubscriberID,
				"category", rec.ToolCategory,
				"error", err.Error(),
			)
		}
	}
	return nil
}

// Replay 重放一条已在占用时计入计数器的记录，只追加不调整计数器，按 ID 幂等
func (m *Meter) Replay(ctx context.Context, in RecordInput) error {
	if in.ID == "" {
		return fmt.Errorf("replay usage record: missing id")
	}
	rec, err := m.buildRecord(in)
	if err != nil {
		return err
	}
	if err := m.usage.Create(ctx, rec); err != nil {
		metrics.UsageRecordFailures.WithLabelValues("replay").Inc()
		return err
	}
	m.observeConsumed(rec)
	return nil
}

// Reserve 原子地检查并占用一次工具调用的额度。
// 额度不足返回 *InsufficientCreditsError，没有有效订阅返回 ErrNoActiveSubscription。
func (m *Meter) Reserve(ctx context.Context, subscriberID, tool string) (res *Reservation, err error) {
	ctx, span := tracer.Start(ctx, "credit.Meter.Reserve")
	defer func() { tracer.End(span, err) }()

	cost, err := m.costs.Lookup(tool)
	if err != nil {
		return nil, err
	}

	now := m.now()
	sub, err := m.activeSubscription(ctx, subscriberID, now)
	if err != nil {
		if errors.Is(err, ErrNoActiveSubscription) {
			metrics.CreditDenials.WithLabelValues("no_subscription").Inc()
		}
		return nil, err
	}

	res = &Reservation{
		ID:           uuid.NewString(),
		SubscriberID: subscriberID,
		Tool:         tool,
		Category:     cost.Category,
		Credits:      cost.Credits,
		ReservedAt:   now,
	}
	limit := m.limit(ctx, sub, cost.Category)
	res.Limit = limit
	if limit == Unlimited {
		res.Unlimited = true
		return res, nil
	}

	var used int64
	if m.ledger == nil {
		start, end := MonthWindow(now)
		used, err = m.usage.SumCredits(ctx, subscriberID, cost.Category, start, end)
		if err != nil {
			return nil, err
		}
		if limit-used < cost.Credits {
			err = m.deny(limit, used, cost)
			return nil, err
		}
		return res, nil
	}

	res.counter = m.counter(subscriberID, cost.Category, now)
	start, end := MonthWindow(now)
	outcome, err := m.ledger.Reserve(ctx, res.counter, limit, cost.Credits, func(ctx context.Context) (int64, error) {
		return m.usage.SumCredits(ctx, subscriberID, cost.Category, start, end)
	})
	if err != nil {
		return nil, err
	}
	if !outcome.Allowed {
		err = m.deny(limit, outcome.Used, cost)
		return nil, err
	}
	res.held = true
	span.SetAttributes(attribute.Int64("credits.used", outcome.Used))
	return res, nil
}

// Settle 结算占用：按调用结果追加消耗记录。
// 失败且策略不收费时记录 0 额度并释放占用。
// 写库失败不释放占用，计数器保持已扣额度，由 Replay 补写记录且不再改计数器。
// 返回值为尝试写入的记录，写入失败时调用方可据此重放。
func (m *Meter) Settle(ctx context.Context, res *Reservation, success bool) (in RecordInput, err error) {
	ctx, span := tracer.Start(ctx, "credit.Meter.Settle")
	defer func() { tracer.End(span, err) }()

	credits := res.Credits
	if !success && !m.policy.ChargeFailedAttempts {
		credits = 0
	}
	in = RecordInput{
		ID:           res.ID,
		SubscriberID: res.SubscriberID,
		ToolName:     res.Tool,
		ToolCategory: res.Category,
		CreditsUsed:  &credits,
		Success:      &success,
		OccurredAt:   res.ReservedAt,
	}

	rec, err := m.buildRecord(in)
	if err != nil {
		return in, err
	}
	createErr := m.usage.Create(ctx, rec)

	if res.held && credits != res.Credits {
		if adjErr := m.ledger.Adjust(ctx, res.counter, credits-res.Credits); adjErr != nil {
			logger.Warn(ctx, "failed to release reserved credits",
				"subscriber_id", res.SubscriberID,
				"category", res.Category,
				"credits", res.Credits-credits,
				"error", adjErr.Error(),
			)
		}
	}

	if createErr != nil {
		metrics.UsageRecordFailures.WithLabelValues("settle").Inc()
		err = createErr
		return in, err
	}
	m.observeConsumed(rec)
	return in, nil
}

// Summary 返回订阅者本期每个类别的额度概览
func (m *Meter) Summary(ctx context.Context, subscriberID string) (*CreditSummary, error) {
	now := m.now()
	sub, err := m.activeSubscription(ctx, subscriberID, now)
	if err != nil {
		return nil, err
	}

	start, end := MonthWindow(now)
	categories := mergeSorted(m.plans.Categories(sub.Plan), m.costs.Categories())
	out := &CreditSummary{
		SubscriberID: subscriberID,
		Plan:         sub.Plan,
		PeriodStart:  start,
		ResetsAt:     end,
		Categories:   make([]CategoryUsage, 0, len(categories)),
	}
	for _, category := range categories {
		used, err := m.usage.SumCredits(ctx, subscriberID, category, start, end)
		if err != nil {
			return nil, err
		}
		limit := m.limit(ctx, sub, category)
		cu := CategoryUsage{Category: category, Limit: limit, Used: used}
		if limit == Unlimited {
			cu.Unlimited = true
			cu.Remaining = Unlimited
		} else {
			cu.Remaining = limit - used
		}
		out.Categories = append(out.Categories, cu)
	}
	return out, nil
}

func (m *Meter) activeSubscription(ctx context.Context, subscriberID string, now time.Time) (*entity.Subscription, error) {
	sub, err := m.subs.GetBySubscriberID(ctx, subscriberID)
	if err != nil {
		return nil, err
	}
	if !sub.IsActive(now) {
		return nil, ErrNoActiveSubscription
	}
	return sub, nil
}

func (m *Meter) limit(ctx context.Context, sub *entity.Subscription, category string) int64 {
	limit, ok := m.plans.Limit(sub.Plan, category)
	if !ok {
		logger.Warn(ctx, "subscription references unknown plan",
			"subscriber_id", sub.SubscriberID,
			"plan", sub.Plan,
		)
	}
	return limit
}

func (m *Meter) deny(limit, used int64, cost ToolCost) error {
	metrics.CreditDenials.WithLabelValues("insufficient_credits").Inc()
	return &InsufficientCreditsError{Decision: &Decision{
		Allowed:   false,
		Remaining: limit - used,
		Required:  cost.Credits,
		Limit:     limit,
		Used:      used,
		Category:  cost.Category,
		Reason:    ReasonInsufficientCredits,
	}}
}

func (m *Meter) buildRecord(in RecordInput) (*entity.UsageRecord, error) {
	category := in.ToolCategory
	var credits int64
	if in.CreditsUsed == nil || category == "" {
		cost, err := m.costs.Lookup(in.ToolName)
		if err != nil {
			return nil, err
		}
		if category == "" {
			category = cost.Category
		}
		credits = cost.Credits
	}
	if in.CreditsUsed != nil {
		credits = *in.CreditsUsed
	}
	if credits < 0 {
		return nil, ErrInvalidCredits
	}

	success := true
	if in.Success != nil {
		success = *in.Success
	}
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	at := in.OccurredAt
	if at.IsZero() {
		at = m.now()
	}

	return &entity.UsageRecord{
		ID:           id,
		SubscriberID: in.SubscriberID,
		ToolName:     in.ToolName,
		ToolCategory: category,
		CreditsUsed:  credits,
		Success:      success,
		CreatedAt:    at.UTC(),
	}, nil
}

func (m *Meter) counter(subscriberID, category string, at time.Time) repository.CreditCounter {
	_, end := MonthWindow(at)
	ttl := end.Sub(at) + m.policy.CounterTTLSlack
	return repository.CreditCounter{
		SubscriberID: subscriberID,
		Category:     category,
		Period:       PeriodKey(at),
		TTL:          ttl,
	}
}

func (m *Meter) observeConsumed(rec *entity.UsageRecord) {
	metrics.CreditsConsumed.WithLabelValues(rec.ToolCategory, strconv.FormatBool(rec.Success)).Add(float64(rec.CreditsUsed))
}
