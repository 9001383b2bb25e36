package dictionary

import (
	"context"
	"fmt"
	"strings"

	"srcmend/pkg/contract"
)

// Options 为 substitute 步骤的配置。
type Options struct {
	// Table: YAML 替换表路径（可选）。
	Table string `json:"table"`
	// Rules: 内联规则，追加在文件规则之后。
	Rules []contract.Rule `json:"rules"`
	// Mode: 覆盖表中声明的模式（chained | single-pass）。
	Mode Mode `json:"mode"`
}

// Step 将 Substitute 包装为流水线步骤。
type Step struct {
	name  string
	table Table
	warns []Warning
}

// New 在构造期加载并校验替换表；Lint 结果随步骤返回，由调用方决定如何报告。
func New(opts *Options) (*Step, []Warning, error) {
	if opts == nil {
		opts = &Options{}
	}
	var t Table
	if strings.TrimSpace(opts.Table) != "" {
		loaded, err := LoadTable(opts.Table)
		if err != nil {
			return nil, nil, err
		}
		t = loaded
	}
	t.Rules = append(t.Rules, opts.Rules...)
	if opts.Mode != "" {
		t.Mode = opts.Mode
	}
	if len(t.Rules) == 0 {
		return nil, nil, fmt.Errorf("%w: substitute: no rules", contract.ErrInvalidInput)
	}
	if err := t.Validate(); err != nil {
		return nil, nil, err
	}
	mode := t.Mode
	if mode == "" {
		mode = Chained
	}
	warns := Lint(t)
	return &Step{name: fmt.Sprintf("substitute:%s(%d)", mode, len(t.Rules)), table: t, warns: warns}, warns, nil
}

var (
	_ contract.Step    = (*Step)(nil)
	_ contract.Advisor = (*Step)(nil)
)

func (s *Step) Name() string { return s.name }

// Advice 返回构造期的表检查告警。
func (s *Step) Advice() []string {
	out := make([]string, len(s.warns))
	for i, w := range s.warns {
		out[i] = w.String()
	}
	return out
}

// Apply 对整个文档执行替换；零命中规则通过 Report.Hits 暴露。
func (s *Step) Apply(ctx context.Context, doc contract.Document) (contract.Document, contract.Report, error) {
	select {
	case <-ctx.Done():
		return contract.Document{}, contract.Report{}, ctx.Err()
	default:
	}
	out, hits := Substitute(doc.Text, s.table)
	return doc.WithText(out), contract.Report{Step: s.name, Hits: hits, Changed: out != doc.Text}, nil
}
