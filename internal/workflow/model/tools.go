package model

// 工具名称，与计费成本表的键一致
const (
	ToolGrammarChecker   = "grammar-checker"
	ToolParaphrasingTool = "paraphrasing-tool"
	ToolTextSummarizer   = "text-summarizer"
	ToolContentRewriter  = "content-rewriter"
)

// ToolNames 所有已注册工具
func ToolNames() []string {
	return []string{ToolGrammarChecker, ToolParaphrasingTool, ToolTextSummarizer, ToolContentRewriter}
}

// GrammarIssue 单条语法问题
type GrammarIssue struct {
	Original    string `json:"original" validate:"required"`
	Correction  string `json:"correction"`
	Explanation string `json:"explanation"`
	Type        string `json:"type"`
}

// GrammarResult grammar-checker 输出
type GrammarResult struct {
	CorrectedText string         `json:"corrected_text" validate:"required"`
	Errors        []GrammarIssue `json:"errors" validate:"dive"`
	Score         int            `json:"score" validate:"gte=0,lte=100"`
}

// ParaphraseResult paraphrasing-tool 输出
type ParaphraseResult struct {
	Paraphrased  string   `json:"paraphrased" validate:"required"`
	Alternatives []string `json:"alternatives"`
}

// SummaryResult text-summarizer 输出
type SummaryResult struct {
	Summary   string   `json:"summary" validate:"required"`
	KeyPoints []string `json:"key_points"`
	WordCount int      `json:"word_count" validate:"gte=0"`
}

// RewriteResult content-rewriter 输出
type RewriteResult struct {
	Rewritten        string   `json:"rewritten" validate:"required"`
	Changes          []string `json:"changes"`
	ReadabilityScore int      `json:"readability_score" validate:"gte=0,lte=100"`
}
