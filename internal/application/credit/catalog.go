// Package credit 提供按月额度的授权、占用与消耗记录
package credit

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"toolkitforseo-api/internal/config"
)

// Unlimited 套餐额度的不限量标记
const Unlimited = config.UnlimitedCredits

// ToolCost 单个工具的额度成本
type ToolCost struct {
	Tool     string
	Credits  int64
	Category string
}

// CostTable 静态工具成本表，授权与记录共用同一份
type CostTable struct {
	costs map[string]ToolCost
}

// NewCostTable 从配置构建成本表
func NewCostTable(cfg map[string]config.ToolCostConfig) *CostTable {
	t := &CostTable{costs: make(map[string]ToolCost, len(cfg))}
	for tool, c := range cfg {
		t.costs[tool] = ToolCost{Tool: tool, Credits: c.Credits, Category: strings.TrimSpace(c.Category)}
	}
	return t
}

// Lookup 查询工具成本
func (t *CostTable) Lookup(tool string) (ToolCost, error) {
	c, ok := t.costs[tool]
	if !ok {
		return ToolCost{}, fmt.Errorf("%w: %s", ErrUnknownTool, tool)
	}
	return c, nil
}

// Categories 成本表中出现的全部类别
func (t *CostTable) Categories() []string {
	seen := make(map[string]struct{})
	for _, c := range t.costs {
		seen[c.Category] = struct{}{}
	}
	return sortedSet(seen)
}

// PlanCatalog 套餐额度目录
type PlanCatalog struct {
	plans map[string]map[string]int64
}

// NewPlanCatalog 从配置构建套餐目录
func NewPlanCatalog(cfg map[string]config.PlanConfig) *PlanCatalog {
	c := &PlanCatalog{plans: make(map[string]map[string]int64, len(cfg))}
	for name, p := range cfg {
		limits := make(map[string]int64, len(p.Limits))
		for category, limit := range p.Limits {
			limits[category] = limit
		}
		c.plans[name] = limits
	}
	return c
}

// Limit 返回套餐在类别下的月额度。
// 套餐未定义该类别时额度为 0；ok 为 false 表示套餐本身不存在。
func (c *PlanCatalog) Limit(plan, category string) (limit int64, ok bool) {
	limits, ok := c.plans[plan]
	if !ok {
		return 0, false
	}
	return limits[category], true
}

// Categories 套餐定义了额度的类别
func (c *PlanCatalog) Categories(plan string) []string {
	seen := make(map[string]struct{})
	for category := range c.plans[plan] {
		seen[category] = struct{}{}
	}
	return sortedSet(seen)
}

// MonthWindow 返回 now 所在自然月的 [start, end)，按 UTC 计算
func MonthWindow(now time.Time) (start, end time.Time) {
	now = now.UTC()
	start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)
	return start, end
}

// PeriodKey 计费周期标识，如 202603
func PeriodKey(now time.Time) string {
	return now.UTC().Format("200601")
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		if k != "" {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func mergeSorted(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, s := range a {
		seen[s] = struct{}{}
	}
	for _, s := range b {
		seen[s] = struct{}{}
	}
	return sortedSet(seen)
}
