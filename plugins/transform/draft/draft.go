// Package draft 将伪语法草稿块按有序规则改写为目标语言语法。
// 所有规则都是文本层面的：按子串、按行或按缩进工作，不解析宿主语言。
package draft

import (
	"fmt"
	"strings"

	"srcmend/pkg/contract"
)

// Kind 为规则类型。
type Kind string

const (
	// Literal: 精确子串替换。
	Literal Kind = "literal"
	// Ternary: 行内 `VALUE if COND else OTHER` → `COND ? VALUE : OTHER`。
	Ternary Kind = "ternary"
	// OpenBlock: `label:` → `label {`。
	OpenBlock Kind = "open-block"
	// CloseBlock: 在 `label {` 块体之后补 `}`。
	CloseBlock Kind = "close-block"
)

// DefaultLeaders: ternary 中 VALUE 之前可能出现的分界文本。
var DefaultLeaders = []string{"return ", "= ", "=> ", "(", ", ", ": "}

// Rule: 一条有序 token 规则。
type Rule struct {
	Kind Kind   `yaml:"kind"`
	From string `yaml:"from,omitempty"`
	To   string `yaml:"to,omitempty"`
	// Word: literal 仅在两侧不是标识符字符时匹配。
	Word bool `yaml:"word,omitempty"`
	// Guard: literal 仅在两侧不是这些字符时匹配（例如 "=" 防止 == 命中 ===）。
	Guard string `yaml:"guard,omitempty"`
	// Leaders: ternary 的分界文本；为空时使用 DefaultLeaders。
	Leaders []string `yaml:"leaders,omitempty"`
	// Labels: open-block/close-block 作用的块关键字。
	Labels []string `yaml:"labels,omitempty"`
	Note   string   `yaml:"note,omitempty"`
}

// String 返回规则在报告中的名称。
func (r Rule) String() string {
	switch r.Kind {
	case Literal, "":
		return fmt.Sprintf("%q->%q", r.From, r.To)
	case OpenBlock, CloseBlock:
		return fmt.Sprintf("%s[%s]", r.Kind, strings.Join(r.Labels, ","))
	default:
		return string(r.Kind)
	}
}

// Validate 校验单条规则。
func (r Rule) Validate() error {
	switch r.Kind {
	case Literal, "":
		if r.From == "" {
			return fmt.Errorf("%w: literal rule with empty from", contract.ErrInvalidInput)
		}
	case Ternary:
	case OpenBlock, CloseBlock:
		if len(r.Labels) == 0 {
			return fmt.Errorf("%w: %s rule needs labels", contract.ErrInvalidInput, r.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown rule kind %q", contract.ErrInvalidInput, r.Kind)
	}
	return nil
}

// Transform 依次对整个草稿块应用规则（每条规则看到上一条的输出）。
// 不校验输出是否仍含伪语法，见 Verify。
func Transform(block string, rules []Rule) (string, []contract.RuleHit) {
	hits := make([]contract.RuleHit, len(rules))
	for i, r := range rules {
		var n int
		switch r.Kind {
		case Literal, "":
			block, n = replaceLiteral(block, r)
		case Ternary:
			block, n = rewriteTernary(block, r.Leaders)
		case OpenBlock:
			block, n = openBlocks(block, r.Labels)
		case CloseBlock:
			block, n = closeBlocks(block, r.Labels)
		}
		hits[i] = contract.RuleHit{Rule: r.String(), Count: n}
	}
	return block, hits
}

// Verify 确认输出中不再残留任何伪语法 token。
func Verify(out string, forbid []string) error {
	var found []string
	for _, tok := range forbid {
		if tok != "" && strings.Contains(out, tok) {
			found = append(found, tok)
		}
	}
	if len(found) > 0 {
		return &contract.ResidualTokenError{Tokens: found}
	}
	return nil
}

func replaceLiteral(s string, r Rule) (string, int) {
	if r.From == "" {
		return s, 0
	}
	if !r.Word && r.Guard == "" {
		n := strings.Count(s, r.From)
		if n == 0 {
			return s, 0
		}
		return strings.ReplaceAll(s, r.From, r.To), n
	}
	blocked := func(c byte) bool {
		if r.Word && isIdent(c) {
			return true
		}
		return strings.IndexByte(r.Guard, c) >= 0
	}
	var sb strings.Builder
	n, last := 0, 0
	for i := 0; i <= len(s)-len(r.From); {
		j := strings.Index(s[i:], r.From)
		if j < 0 {
			break
		}
		at := i + j
		end := at + len(r.From)
		if (at > 0 && blocked(s[at-1])) || (end < len(s) && blocked(s[end])) {
			i = at + 1
			continue
		}
		sb.WriteString(s[last:at])
		sb.WriteString(r.To)
		n++
		last = end
		i = end
	}
	if n == 0 {
		return s, 0
	}
	sb.WriteString(s[last:])
	return sb.String(), n
}

func isIdent(c byte) bool {
	return c == '_' || c == '$' || c >= 0x80 ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
