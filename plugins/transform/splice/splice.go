// Package splice 把草稿块改写为目标语法后整体替换进锚点区间。
package splice

import (
	"context"
	"fmt"
	"os"
	"strings"

	"srcmend/pkg/contract"
	"srcmend/plugins/transform/draft"
	"srcmend/plugins/transform/region"
)

// Options 为 splice 步骤的配置。
type Options struct {
	contract.Anchors
	// Draft: 草稿块文件路径；与 DraftInline 二选一。
	Draft       string `json:"draft"`
	DraftInline string `json:"draft_inline"`
	// Rules: YAML 规则集路径；RulesInline 追加在其后。
	Rules       string       `json:"rules"`
	RulesInline []draft.Rule `json:"rules_inline"`
	// Forbid: 额外的残留 token，与规则集中的 forbid 合并。
	Forbid []string `json:"forbid"`
	// Verify: 是否在拼接前做残留校验，默认 true。
	Verify *bool `json:"verify"`
}

// Step: Transform → Verify → region.Splice。
type Step struct {
	name    string
	anchors contract.Anchors
	block   string
	rules   []draft.Rule
	forbid  []string
	verify  bool
}

// New 在构造期读取草稿与规则；锚点是否存在要到 Apply 才能知道。
func New(opts *Options) (*Step, error) {
	if opts == nil {
		return nil, fmt.Errorf("%w: splice: options required", contract.ErrInvalidInput)
	}
	if opts.Start == "" || opts.End == "" {
		return nil, fmt.Errorf("%w: splice: start and end markers required", contract.ErrInvalidInput)
	}
	block := opts.DraftInline
	switch {
	case opts.Draft != "" && opts.DraftInline != "":
		return nil, fmt.Errorf("%w: splice: draft and draft_inline are mutually exclusive", contract.ErrInvalidInput)
	case opts.Draft != "":
		b, err := os.ReadFile(opts.Draft)
		if err != nil {
			return nil, err
		}
		block = string(b)
	case block == "":
		return nil, fmt.Errorf("%w: splice: draft required", contract.ErrInvalidInput)
	}

	var rs draft.RuleSet
	if strings.TrimSpace(opts.Rules) != "" {
		loaded, err := draft.LoadRules(opts.Rules)
		if err != nil {
			return nil, err
		}
		rs = loaded
	}
	rs.Rules = append(rs.Rules, opts.RulesInline...)
	rs.Forbid = append(rs.Forbid, opts.Forbid...)
	if err := rs.Validate(); err != nil {
		return nil, err
	}

	verify := true
	if opts.Verify != nil {
		verify = *opts.Verify
	}
	return &Step{
		name:    fmt.Sprintf("splice:%q..%q", opts.Start, opts.End),
		anchors: opts.Anchors,
		block:   block,
		rules:   rs.Rules,
		forbid:  rs.Forbid,
		verify:  verify,
	}, nil
}

var _ contract.Step = (*Step)(nil)

func (s *Step) Name() string { return s.name }

// Apply 改写草稿并拼接；任一环节失败都是硬错误，不产出文档。
func (s *Step) Apply(ctx context.Context, doc contract.Document) (contract.Document, contract.Report, error) {
	select {
	case <-ctx.Done():
		return contract.Document{}, contract.Report{}, ctx.Err()
	default:
	}
	block, hits := draft.Transform(s.block, s.rules)
	rep := contract.Report{Step: s.name, Hits: hits}
	if s.verify {
		if err := draft.Verify(block, s.forbid); err != nil {
			return contract.Document{}, rep, fmt.Errorf("%s: %w", s.name, err)
		}
	}
	out, err := region.Splice(doc.Text, s.anchors.Start, s.anchors.End, block)
	if err != nil {
		return contract.Document{}, rep, fmt.Errorf("%s: %w", s.name, err)
	}
	rep.Changed = out != doc.Text
	return doc.WithText(out), rep, nil
}
