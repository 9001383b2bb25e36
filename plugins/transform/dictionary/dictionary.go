package dictionary

import (
	"fmt"
	"strings"

	"srcmend/pkg/contract"
)

// Mode 决定规则之间是否链式作用。
type Mode string

const (
	// Chained: 逐条规则作用于上一条的结果（默认）。
	Chained Mode = "chained"
	// SinglePass: 所有规则针对原始缓冲区做一次自左向右扫描，替换结果不再参与匹配。
	// 同一位置按表中顺序取第一条匹配的规则。
	SinglePass Mode = "single-pass"
)

// Table: 有序替换表。
type Table struct {
	Mode  Mode            `yaml:"mode,omitempty"`
	Rules []contract.Rule `yaml:"rules"`
}

// Validate 校验表本身：from 不得为空，mode 必须已知。
func (t Table) Validate() error {
	switch t.Mode {
	case "", Chained, SinglePass:
	default:
		return fmt.Errorf("%w: unknown mode %q", contract.ErrInvalidInput, t.Mode)
	}
	for i, r := range t.Rules {
		if r.From == "" {
			return fmt.Errorf("%w: rule #%d has empty from", contract.ErrInvalidInput, i)
		}
	}
	return nil
}

// Substitute 对 text 依次应用表中所有规则，返回新文本与逐条命中统计。
// 零命中不是错误；空表为恒等变换。调用方应先 Validate。
func Substitute(text string, t Table) (string, []contract.RuleHit) {
	if len(t.Rules) == 0 {
		return text, nil
	}
	if t.Mode == SinglePass {
		return substituteOnce(text, t.Rules)
	}
	hits := make([]contract.RuleHit, len(t.Rules))
	for i, r := range t.Rules {
		hits[i].Rule = r.From
		if r.From == "" {
			continue
		}
		n := strings.Count(text, r.From)
		if n == 0 {
			continue
		}
		text = strings.ReplaceAll(text, r.From, r.To)
		hits[i].Count = n
	}
	return text, hits
}

// substituteOnce: 单次扫描，已替换的输出不会被后续规则再次匹配。
func substituteOnce(text string, rules []contract.Rule) (string, []contract.RuleHit) {
	hits := make([]contract.RuleHit, len(rules))
	for i, r := range rules {
		hits[i].Rule = r.From
	}
	var sb strings.Builder
	sb.Grow(len(text))
	last := 0
	for i := 0; i < len(text); {
		matched := -1
		for j, r := range rules {
			if r.From != "" && strings.HasPrefix(text[i:], r.From) {
				matched = j
				break
			}
		}
		if matched < 0 {
			i++
			continue
		}
		sb.WriteString(text[last:i])
		sb.WriteString(rules[matched].To)
		hits[matched].Count++
		i += len(rules[matched].From)
		last = i
	}
	if last == 0 {
		return text, hits
	}
	sb.WriteString(text[last:])
	return sb.String(), hits
}

// Warning 为替换表编写问题的诊断（从不致命）。
type Warning struct {
	Index int
	Msg   string
}

func (w Warning) String() string { return fmt.Sprintf("rule #%d: %s", w.Index, w.Msg) }

// Lint 检查表编写中的顺序问题：
//   - 靠后的 key 包含靠前的 key：更具体的规则永远不会命中原文（应前移）；
//   - 靠前规则的 to 含有靠后规则的 key（链式模式下会被再次替换）；
//   - 重复 key。
func Lint(t Table) []Warning {
	var ws []Warning
	for j := range t.Rules {
		later := t.Rules[j]
		if later.From == "" {
			continue
		}
		for i := 0; i < j; i++ {
			earlier := t.Rules[i]
			if earlier.From == "" {
				continue
			}
			switch {
			case earlier.From == later.From:
				ws = append(ws, Warning{Index: j, Msg: fmt.Sprintf("duplicate of rule #%d", i)})
			case strings.Contains(later.From, earlier.From):
				ws = append(ws, Warning{Index: j, Msg: fmt.Sprintf("shadowed by shorter rule #%d; move it earlier", i)})
			}
			if t.Mode != SinglePass && earlier.To != "" && strings.Contains(earlier.To, later.From) {
				ws = append(ws, Warning{Index: j, Msg: fmt.Sprintf("matches output of rule #%d (chained)", i)})
			}
		}
	}
	return ws
}
