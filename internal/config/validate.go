package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// UnlimitedCredits 套餐额度中表示不限量的哨兵值
const UnlimitedCredits int64 = -1

// Validate 校验启动所需的关键配置
// 供应商标签是否合法由 LLM 网关在构造时检查
func (c *Config) Validate() error {
	var errs []error

	if c.LLM.DefaultProvider != "" {
		if _, ok := c.LLM.Providers[c.LLM.DefaultProvider]; !ok {
			errs = append(errs, fmt.Errorf("llm.default_provider %q has no providers entry", c.LLM.DefaultProvider))
		}
	}
	for tool, provider := range c.LLM.ToolProviders {
		if _, ok := c.LLM.Providers[provider]; !ok {
			errs = append(errs, fmt.Errorf("llm.tool_providers.%s refers to unconfigured provider %q", tool, provider))
		}
	}

	for _, tool := range sortedKeys(c.Credits.Costs) {
		cost := c.Credits.Costs[tool]
		if cost.Credits <= 0 {
			errs = append(errs, fmt.Errorf("credits.costs.%s.credits must be positive, got %d", tool, cost.Credits))
		}
		if strings.TrimSpace(cost.Category) == "" {
			errs = append(errs, fmt.Errorf("credits.costs.%s.category is required", tool))
		}
	}

	for _, plan := range sortedKeys(c.Credits.Plans) {
		for category, limit := range c.Credits.Plans[plan].Limits {
			if limit < UnlimitedCredits {
				errs = append(errs, fmt.Errorf("credits.plans.%s.limits.%s must be >= -1, got %d", plan, category, limit))
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
