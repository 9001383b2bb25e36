package contract

// FileID: 逻辑文档ID（通常为路径，需规范化，跨平台一致）。
type FileID string

// Document: 单个文件的完整文本（已按 UTF-8 解码）。
// 约束：
//   - 只做整体替换（读入 → 变换 → 写回），不做原地编辑；
//   - Path 为读写使用的本地路径，ID 仅用于日志/诊断。
type Document struct {
	ID   FileID
	Path string
	Text string
}

// WithText 返回仅替换正文的新 Document。
func (d Document) WithText(text string) Document {
	d.Text = text
	return d
}

// Rule: 替换表中的一条精确字面量替换。
// Note 用于记录该条规则的意图，引擎不读取。
type Rule struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
	Note string `yaml:"note,omitempty" json:"note,omitempty"`
}

// Anchors: 区间锚点对，标识半开区间 [offset(Start), offset(End))。
type Anchors struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// RuleHit: 单条规则的命中统计。
type RuleHit struct {
	Rule  string
	Count int
}

// Report: 每个步骤产出的软诊断（不影响成功与否）。
type Report struct {
	// Step: 产出该报告的步骤名。
	Step string
	// Dropped: 重解码过程中丢弃的单元数（DecodeLoss）。
	Dropped int
	// Hits: 按规则顺序的命中次数。
	Hits []RuleHit
	// Changed: 步骤输出是否与输入不同。
	Changed bool
}

// Unmatched 返回命中次数为 0 的规则（RuleNoMatch）。
func (r Report) Unmatched() []string {
	var out []string
	for _, h := range r.Hits {
		if h.Count == 0 {
			out = append(out, h.Rule)
		}
	}
	return out
}

// Replacements 汇总所有规则的命中次数。
func (r Report) Replacements() int {
	n := 0
	for _, h := range r.Hits {
		n += h.Count
	}
	return n
}
