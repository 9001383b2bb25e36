// Package mojibake 修复误解码文本：按单字节编码假设把每个字符还原为原始字节，再按 UTF-8 重新解码。
package mojibake

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"

	"srcmend/pkg/contract"
)

// DefaultEncoding: 误解码假设的默认单字节编码。
const DefaultEncoding = "ISO-8859-1"

// aliases: IANA 名称表之外的常用写法。
var aliases = map[string]string{
	"latin-1": "ISO-8859-1",
	"latin_1": "ISO-8859-1",
	"cp1252":  "windows-1252",
	"cp1250":  "windows-1250",
	"cp1251":  "windows-1251",
	"cp1258":  "windows-1258",
	"cp437":   "IBM437",
	"cp850":   "IBM850",
}

// Loss: 重编码/重解码过程中丢弃的单元计数（DecodeLoss）。
type Loss struct {
	// Unencodable: 单字节编码无法表示而被丢弃的字符数。
	Unencodable int
	// Malformed: UTF-8 重解码时被丢弃的非法字节数。
	Malformed int
}

// Total 返回丢弃总数。
func (l Loss) Total() int { return l.Unencodable + l.Malformed }

// Lookup 解析单字节编码名称。多字节编码与未知名称返回 ErrInvalidInput。
func Lookup(name string) (*charmap.Charmap, error) {
	n := strings.TrimSpace(name)
	if n == "" {
		n = DefaultEncoding
	}
	if a, ok := aliases[strings.ToLower(n)]; ok {
		n = a
	}
	enc, err := ianaindex.IANA.Encoding(n)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%w: unknown encoding %q", contract.ErrInvalidInput, name)
	}
	cm, ok := enc.(*charmap.Charmap)
	if !ok {
		return nil, fmt.Errorf("%w: encoding %q is not single-byte", contract.ErrInvalidInput, name)
	}
	return cm, nil
}

// Repair 假设原始字节是合法 UTF-8、曾被 cm 误解码一次：
// 先按 cm 逐字符重编码为字节（不可表示的字符丢弃），再按 UTF-8 解码（非法序列丢弃）。
// 尽力修复，不做校验；对已正确编码的非 ASCII 文本不幂等。
func Repair(text string, cm *charmap.Charmap) (string, Loss) {
	var loss Loss
	raw := make([]byte, 0, len(text))
	for _, r := range text {
		b, ok := cm.EncodeRune(r)
		if !ok {
			loss.Unencodable++
			continue
		}
		raw = append(raw, b)
	}

	var sb strings.Builder
	sb.Grow(len(raw))
	for len(raw) > 0 {
		r, size := utf8.DecodeRune(raw)
		if r == utf8.RuneError && size <= 1 {
			loss.Malformed++
			raw = raw[1:]
			continue
		}
		sb.Write(raw[:size])
		raw = raw[size:]
	}
	return sb.String(), loss
}

// Options 为 repair 步骤的可选配置。
type Options struct {
	// Encoding: 误解码假设编码（IANA 名称或常用别名），默认 ISO-8859-1。
	Encoding string `json:"encoding"`
}

// Step 将 Repair 包装为流水线步骤。
type Step struct {
	name string
	cm   *charmap.Charmap
}

// New 创建 repair 步骤；编码名在此解析，未知编码立即失败。
func New(opts *Options) (*Step, error) {
	name := DefaultEncoding
	if opts != nil && strings.TrimSpace(opts.Encoding) != "" {
		name = opts.Encoding
	}
	cm, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return &Step{name: "repair:" + cm.String(), cm: cm}, nil
}

var _ contract.Step = (*Step)(nil)

func (s *Step) Name() string { return s.name }

// Apply 对整个文档执行 Repair；丢弃计数写入 Report.Dropped。
func (s *Step) Apply(ctx context.Context, doc contract.Document) (contract.Document, contract.Report, error) {
	select {
	case <-ctx.Done():
		return contract.Document{}, contract.Report{}, ctx.Err()
	default:
	}
	out, loss := Repair(doc.Text, s.cm)
	rep := contract.Report{Step: s.name, Dropped: loss.Total(), Changed: out != doc.Text}
	return doc.WithText(out), rep, nil
}
