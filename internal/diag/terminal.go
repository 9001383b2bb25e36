package diag

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Terminal: 终端信息提示（非日志）。
// - 输出到提供的 io.Writer（默认建议 stderr）。
// - TTY: 单行 \r 覆盖、标签着色；非 TTY: 关键节点分行打印纯文本。
// - 并发安全；写失败后进入禁用态为 no-op。
type Terminal struct {
	w       io.Writer
	enabled bool
	isTTY   bool
	r       *lipgloss.Renderer

	// 运行期最小状态
	steps    int
	dryRun   bool
	runStart time.Time

	// 当前文件
	curFileID string // 短名（base + 截断）
	stepsDone int

	// 输出控制
	lastLen   int
	lastFlush time.Time

	mu sync.Mutex
}

// 进程级终端（可选，全局设置后供 pipeline 旁路调用）。
var (
	termMu sync.RWMutex
	global *Terminal
)

// SetTerminal 设置全局终端指针（nil 可清除）。
func SetTerminal(t *Terminal) { termMu.Lock(); global = t; termMu.Unlock() }

// GetTerminal 返回全局终端（可能为 nil）。
func GetTerminal() *Terminal { termMu.RLock(); defer termMu.RUnlock(); return global }

// NewTerminal 构造终端提示器。
// enabled=false 时总是 no-op。
func NewTerminal(w io.Writer, enabled bool) *Terminal {
	if w == nil {
		w = os.Stderr
	}
	t := &Terminal{w: w, enabled: enabled, r: lipgloss.NewRenderer(w)}
	// CI 环境视为非 TTY
	if os.Getenv("CI") == "" {
		if f, ok := w.(*os.File); ok {
			t.isTTY = term.IsTerminal(int(f.Fd()))
		}
	}
	return t
}

// RunStart: 记录运行上下文（步骤数、是否 dry-run）。
func (t *Terminal) RunStart(steps int, dryRun bool) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.steps = steps
	t.dryRun = dryRun
	t.runStart = time.Now()
	line := fmt.Sprintf("%s steps %d", t.tag("run", "6"), steps)
	if dryRun {
		line += " | dry-run"
	}
	t.println(line)
}

// FileStart: 标记当前文件。
func (t *Terminal) FileStart(fileID string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.curFileID = shortenBase(fileID, 48)
	t.stepsDone = 0
	if !t.isTTY { // 非 TTY 打点一行
		t.println(fmt.Sprintf("%s %s | steps %d", t.tag("file", "6"), t.curFileID, t.steps))
	}
}

// StepDone: 一个步骤完成（仅 TTY，≥100ms 节流）。
func (t *Terminal) StepDone(step string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.stepsDone++
	if !t.isTTY {
		return
	}
	// 节流：100ms
	now := time.Now()
	if now.Sub(t.lastFlush) < 100*time.Millisecond {
		return
	}
	t.lastFlush = now
	// 单行覆盖
	line := fmt.Sprintf("[file] %s | step %d/%d %s | %s",
		t.curFileID, t.stepsDone, t.steps, safe(step), formatSince(t.runStart))
	t.printInline(line)
}

// FileFinish: 完成当前文件（立即刷新并换行），报告结果长度。
func (t *Terminal) FileFinish(ok bool, length int, dur time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	status, color := "done", "2"
	if !ok {
		status, color = "fail", "1"
	}
	// 先清掉可能的行尾
	if t.isTTY && t.lastLen > 0 {
		t.printInline("")
	}
	t.println(fmt.Sprintf("%s %s | length %d | %s", t.tag(status, color), t.curFileID, length, formatDur(dur)))
}

// RunFinish: 结束总览；outcome 为 written|unchanged|dry-run|failed。
func (t *Terminal) RunFinish(ok bool, outcome string, dur time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	tag, color := "ok", "2"
	if !ok {
		tag, color = "fail", "1"
	}
	t.println(fmt.Sprintf("%s %s | %s", t.tag(tag, color), safe(outcome), formatDur(dur)))
}

// tag: TTY 下按 ANSI 颜色号着色加粗，非 TTY 返回纯文本。
func (t *Terminal) tag(s, color string) string {
	text := "[" + s + "]"
	if !t.isTTY || t.r == nil {
		return text
	}
	return t.r.NewStyle().Bold(true).Foreground(lipgloss.Color(color)).Render(text)
}

// 内部输出工具
func (t *Terminal) println(s string) {
	if t == nil || !t.enabled {
		return
	}
	if _, err := io.WriteString(t.w, s+"\n"); err != nil {
		// 写失败即禁用
		t.enabled = false
	}
	t.lastLen = 0
}

func (t *Terminal) printInline(s string) {
	if t == nil || !t.enabled {
		return
	}
	// \r + 内容；若新行比旧行短，用空格覆盖残留
	pad := 0
	if l := lipgloss.Width(s); t.lastLen > l {
		pad = t.lastLen - l
	}
	var b strings.Builder
	b.WriteByte('\r')
	b.WriteString(s)
	if pad > 0 {
		b.WriteString(strings.Repeat(" ", pad))
	}
	if _, err := io.WriteString(t.w, b.String()); err != nil {
		t.enabled = false
		return
	}
	t.lastLen = lipgloss.Width(s)
}

// shortenBase: 取基名并按可见宽度截断（尾部省略号）。
func shortenBase(s string, max int) string {
	if max <= 0 {
		return ""
	}
	base := filepath.Base(strings.TrimSpace(s))
	if base == "" {
		return ""
	}
	if lipgloss.Width(base) <= max {
		return base
	}
	// 预留 1 列给省略号
	var b strings.Builder
	w := 0
	for _, r := range base {
		rw := lipgloss.Width(string(r))
		if w+rw > max-1 {
			break
		}
		b.WriteRune(r)
		w += rw
	}
	return b.String() + "…"
}

func safe(s string) string {
	// 避免换行等控制字符污染终端
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return s
}

func formatSince(t0 time.Time) string { return formatDur(time.Since(t0)) }

func formatDur(d time.Duration) string {
	if d < time.Second {
		ms := d.Milliseconds()
		if ms <= 0 {
			ms = 0
		}
		return fmt.Sprintf("%dms", ms)
	}
	// 秒，保留 1 位小数
	s := float64(d.Milliseconds()) / 1000.0
	return fmt.Sprintf("%.1fs", s)
}
