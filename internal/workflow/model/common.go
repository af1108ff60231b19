package model

import "time"

// ToolRun 一次工具调用的元信息
type ToolRun struct {
	Tool        string
	Vendor      string
	Model       string
	CreditsUsed int64
	Success     bool
	StartedAt   time.Time
	Duration    time.Duration
}

// ToolOutput 工具结果与运行元信息
type ToolOutput struct {
	Result any
	Run    ToolRun
}
