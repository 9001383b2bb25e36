package draft

import (
	"strings"
)

// rewriteTernary 逐行把 `VALUE if COND else OTHER` 改写为 `COND ? VALUE : OTHER`，每行至多一次。
// VALUE 从 if 左侧最近的、处于括号外且不在字符串内的 leader 之后开始；
// OTHER 在括号配平的前提下止于 , ; 或多余的右括号。
func rewriteTernary(block string, leaders []string) (string, int) {
	if len(leaders) == 0 {
		leaders = DefaultLeaders
	}
	lines := strings.Split(block, "\n")
	n := 0
	for i, ln := range lines {
		if out, ok := ternaryLine(ln, leaders); ok {
			lines[i] = out
			n++
		}
	}
	if n == 0 {
		return block, 0
	}
	return strings.Join(lines, "\n"), n
}

func ternaryLine(ln string, leaders []string) (string, bool) {
	ifAt := indexOutside(ln, " if ", 0)
	if ifAt < 0 {
		return ln, false
	}
	elseAt := indexOutside(ln, " else ", ifAt+len(" if "))
	if elseAt < 0 {
		return ln, false
	}
	cond := strings.TrimSpace(ln[ifAt+len(" if ") : elseAt])
	other := ln[elseAt+len(" else "):]

	valStart := valueStart(ln, ifAt, leaders)
	if valStart >= ifAt {
		return ln, false
	}
	value := strings.TrimSpace(ln[valStart:ifAt])

	cut := otherEnd(other)
	tail := other[cut:]
	other = strings.TrimSpace(other[:cut])
	if value == "" || cond == "" || other == "" {
		return ln, false
	}
	return ln[:valStart] + cond + " ? " + value + " : " + other + tail, true
}

// valueStart 自 ifAt 向左扫描，返回 VALUE 的起点：
// 括号深度为 0 且不在字符串内时遇到的第一个 leader 之后，或未配平的左括号之后，否则为缩进之后。
func valueStart(ln string, ifAt int, leaders []string) int {
	floor := len(indentOf(ln))
	depth := 0
	for i := ifAt; i > floor; {
		if depth == 0 {
			for _, l := range leaders {
				if strings.HasSuffix(ln[:i], l) && !comparison(ln, i-len(l), l) {
					return i
				}
			}
		}
		c := ln[i-1]
		switch c {
		case '\'', '"', '`':
			if j := openQuote(ln, i-1, floor); j >= 0 {
				i = j
				continue
			}
		case ')', ']', '}':
			depth++
		case '(', '[', '{':
			if depth == 0 {
				return i
			}
			depth--
		}
		i--
	}
	return floor
}

// comparison 判断以 "= " 结尾的 leader 是否其实是 == != <= >= 的一部分。
func comparison(ln string, at int, leader string) bool {
	if leader[0] != '=' || at == 0 {
		return false
	}
	return strings.IndexByte("=!<>", ln[at-1]) >= 0
}

// openQuote 返回与 ln[end] 处引号配对的左引号下标；找不到时返回 -1。
func openQuote(ln string, end, floor int) int {
	q := ln[end]
	for j := end - 1; j >= floor; j-- {
		if ln[j] == q && (j == 0 || ln[j-1] != '\\') {
			return j
		}
	}
	return -1
}

// indexOutside 与 strings.Index 相同，但跳过引号内的内容；从 from 开始查找。
func indexOutside(s, sub string, from int) int {
	for i := from; i < len(s); i++ {
		switch s[i] {
		case '\'', '"', '`':
			if j := closeQuote(s, i); j > i {
				i = j
				continue
			}
		}
		if strings.HasPrefix(s[i:], sub) {
			return i
		}
	}
	return -1
}

// closeQuote 返回与 s[start] 处引号配对的右引号下标；未闭合时返回 start。
func closeQuote(s string, start int) int {
	q := s[start]
	for j := start + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case q:
			return j
		}
	}
	return start
}

// otherEnd 返回 OTHER 表达式在 s 中的结束位置。
func otherEnd(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'', '"', '`':
			i = closeQuote(s, i)
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth == 0 {
				return i
			}
			depth--
		case ',', ';':
			if depth == 0 {
				return i
			}
		}
	}
	return len(strings.TrimRight(s, " \t\r"))
}

// openBlocks 把以 `:` 结尾、首词属于 labels 的行改写为以 ` {` 结尾。
// 首词前允许一个闭合上一块的 `}`，如 `} catch (e):`。
func openBlocks(block string, labels []string) (string, int) {
	lines := strings.Split(block, "\n")
	n := 0
	for i, ln := range lines {
		body := strings.TrimRight(ln, " \t\r")
		if !strings.HasSuffix(body, ":") || !hasLabel(body, labels) {
			continue
		}
		lines[i] = strings.TrimRight(body[:len(body)-1], " \t") + " {" + ln[len(body):]
		n++
	}
	if n == 0 {
		return block, 0
	}
	return strings.Join(lines, "\n"), n
}

// closeBlocks 为首词属于 labels、以 `{` 结尾的行补齐闭合 `}`。
// 块体为其后缩进更深的行（允许空行）；块体之后若已有同缩进的 `}` 则不补。
func closeBlocks(block string, labels []string) (string, int) {
	lines := strings.Split(block, "\n")
	out := make([]string, 0, len(lines)+4)
	// pending: 尚未闭合的块（按出现顺序，内层在后）
	type open struct {
		indent string
		last   int // out 中块体最后一个非空行的下标
	}
	var pending []open
	n := 0

	flush := func(cur string, isBlank bool) {
		for len(pending) > 0 {
			top := pending[len(pending)-1]
			if isBlank || len(indentOf(cur)) > len(top.indent) {
				return
			}
			pending = pending[:len(pending)-1]
			if len(indentOf(cur)) == len(top.indent) && strings.HasPrefix(strings.TrimSpace(cur), "}") {
				continue
			}
			closer := top.indent + "}"
			at := top.last + 1
			out = append(out, "")
			copy(out[at+1:], out[at:])
			out[at] = closer
			// 外层块的块体包含刚补上的 `}`
			for j := range pending {
				if pending[j].last >= at {
					pending[j].last++
				} else {
					pending[j].last = at
				}
			}
			n++
		}
	}

	for _, ln := range lines {
		blank := strings.TrimSpace(ln) == ""
		flush(ln, blank)
		out = append(out, ln)
		if !blank {
			for j := range pending {
				pending[j].last = len(out) - 1
			}
		}
		body := strings.TrimRight(ln, " \t\r")
		if strings.HasSuffix(body, "{") && hasLabel(body, labels) {
			pending = append(pending, open{indent: indentOf(ln), last: len(out) - 1})
		}
	}
	// 文末仍未闭合的块
	flush("", false)
	if n == 0 {
		return block, 0
	}
	return strings.Join(out, "\n"), n
}

func indentOf(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}

// hasLabel 判断行首词（跳过可选的前导 `}`）是否属于 labels。
func hasLabel(ln string, labels []string) bool {
	s := strings.TrimSpace(ln)
	s = strings.TrimSpace(strings.TrimPrefix(s, "}"))
	word := s
	if i := strings.IndexFunc(s, func(r rune) bool {
		return !(r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9'))
	}); i >= 0 {
		word = s[:i]
	}
	for _, l := range labels {
		if word == l {
			return true
		}
	}
	return false
}
