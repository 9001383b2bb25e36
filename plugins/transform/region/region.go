// Package region 实现基于锚点的区间替换：纯文本、与宿主语言语法无关。
package region

import (
	"fmt"
	"strings"

	"srcmend/pkg/contract"
)

// Span: 待替换区间 [From, To)，按字节偏移。
type Span struct {
	From int
	To   int
}

// Locate 查找区间：start 取首次出现；end 取 start 之后的首次出现。
// 任一锚点缺失或顺序不满足时返回 *contract.MarkerNotFoundError。
func Locate(text, start, end string) (Span, error) {
	if start == "" || end == "" {
		return Span{}, fmt.Errorf("%w: empty marker", contract.ErrInvalidInput)
	}
	from := strings.Index(text, start)
	if from < 0 {
		return Span{}, &contract.MarkerNotFoundError{Role: contract.RoleStart, Marker: start}
	}
	rel := strings.Index(text[from+len(start):], end)
	if rel < 0 {
		return Span{}, &contract.MarkerNotFoundError{
			Role:       contract.RoleEnd,
			Marker:     end,
			AfterStart: strings.Contains(text, end),
		}
	}
	return Span{From: from, To: from + len(start) + rel}, nil
}

// Splice 用 replacement 替换两个锚点之间的内容：start 与 end 锚点均原样保留。
// 结果恒为 prefix + replacement + suffix，其中 prefix 止于 start 锚点末尾，suffix 始于 end 锚点；
// 区间外内容逐字节不变；失败时不产出任何文本。
func Splice(text, start, end, replacement string) (string, error) {
	sp, err := Locate(text, start, end)
	if err != nil {
		return "", err
	}
	head := sp.From + len(start)
	var sb strings.Builder
	sb.Grow(head + len(replacement) + len(text) - sp.To)
	sb.WriteString(text[:head])
	sb.WriteString(replacement)
	sb.WriteString(text[sp.To:])
	return sb.String(), nil
}
