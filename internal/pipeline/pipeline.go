package pipeline

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/zeebo/blake3"

	"srcmend/internal/diag"
	"srcmend/pkg/contract"
)

// - 单文件、同步执行：Reader 读入一次 → 步骤依次作用于内存缓冲 → 全部成功后才写回。
// - 首错即止：任一步骤硬错误，丢弃本次尝试，原文件保持不变。
// - 软诊断（解码丢弃、零命中规则、替换表告警）只记日志；Strict 下零命中升级为硬错误。

// Components 聚合运行所需的原子组件。
type Components struct {
	Reader contract.Reader
	Steps  []contract.Step
	Writer contract.Writer
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	// Input: 目标文件；"-" 为 STDIN。
	Input string
	// DryRun: 不写回，向 Stdout 输出统一 diff。
	DryRun bool
	// Strict: 零命中规则视为硬错误。
	Strict bool
	// Stdout: dry-run diff 输出（nil 时为 os.Stdout）。
	Stdout io.Writer
}

// Outcome 描述一次运行的落盘结果。
type Outcome string

const (
	OutcomeWritten   Outcome = "written"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeDryRun    Outcome = "dry-run"
)

// Summary 为一次运行的结果摘要。
type Summary struct {
	FileID  contract.FileID
	Outcome Outcome
	Reports []contract.Report
	// Length: 结果文本的字符数（rune）。
	Length int
	// Digest: 结果文本的 blake3 摘要（hex）。
	Digest string
}

// Run 执行完整流水线：Reader → Steps... → Writer。
// 约束：
// - 所有组件均为同步实现；
// - 内容未变化时不写回（STDIN 输入除外，始终回显到 STDOUT）；
// - 返回的错误保留原始哨兵，调用方可用 errors.Is 判定。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (Summary, error) {
	if err := sanity(comp, set); err != nil {
		return Summary{}, fmt.Errorf("sanity: %w", err)
	}
	if logger == nil {
		logger = diag.Nop()
	}

	// 读入
	rtimer := logger.StartWith("reader", "load", set.Input, "")
	doc, err := comp.Reader.Load(ctx, set.Input)
	if err != nil {
		fail(logger, "reader", "load failed", err, set.Input, "")
		return Summary{}, fmt.Errorf("reader load: %w", err)
	}
	rtimer.Finish("load", int64(len(doc.Text)))
	diag.IncOp("reader", "finish", "success")
	diag.ObserveDuration("reader", "load", rtimer.Elapsed().Milliseconds())

	fileID := string(doc.ID)
	sum := Summary{FileID: doc.ID}

	// 终端提示：文件开始/结束
	term := diag.GetTerminal()
	term.FileStart(fileID)
	fileStart := time.Now()
	ok := false
	defer func() {
		term.FileFinish(ok, sum.Length, time.Since(fileStart))
	}()

	// 构造期告警（例如替换表顺序）
	for _, s := range comp.Steps {
		adv, isAdv := s.(contract.Advisor)
		if !isAdv {
			continue
		}
		for _, msg := range adv.Advice() {
			logger.WarnWithKV("step", string(diag.CodeLint), msg, fileID, s.Name(), nil)
		}
	}

	before := doc.Text
	cur := doc
	for _, s := range comp.Steps {
		name := s.Name()
		stimer := logger.StartWith("step", "apply", fileID, name)
		next, rep, err := s.Apply(ctx, cur)
		if err != nil {
			fail(logger, "step", "apply failed", err, fileID, name)
			return Summary{}, fmt.Errorf("step %s: %w", name, err)
		}
		if rep.Step == "" {
			rep.Step = name
		}
		sum.Reports = append(sum.Reports, rep)
		stimer.Finish("apply", int64(rep.Replacements()))
		diag.IncOp("step", "finish", "success")
		diag.ObserveDuration("step", "apply", stimer.Elapsed().Milliseconds())

		if rep.Dropped > 0 {
			logger.WarnWithKV("step", string(diag.CodeDecode), "decode dropped units", fileID, name,
				map[string]string{"dropped": fmt.Sprint(rep.Dropped)})
		}
		if un := rep.Unmatched(); len(un) > 0 {
			for _, rule := range un {
				logger.WarnWithKV("step", string(diag.CodeNoMatch), "rule matched nothing", fileID, name,
					map[string]string{"rule": rule})
			}
			if set.Strict {
				err := fmt.Errorf("%w: %s", contract.ErrRuleNoMatch, strings.Join(un, ", "))
				fail(logger, "step", "strict: unmatched rules", err, fileID, name)
				return Summary{}, fmt.Errorf("step %s: %w", name, err)
			}
		}
		term.StepDone(name)
		cur = next
	}

	after := cur.Text
	sum.Length = utf8.RuneCountInString(after)
	sum.Digest = digest(after)
	changed := after != before

	switch {
	case set.DryRun:
		out := set.Stdout
		if out == nil {
			out = os.Stdout
		}
		if changed {
			if err := writeDiff(out, fileID, before, after); err != nil {
				fail(logger, "pipeline", "diff failed", err, fileID, "")
				return Summary{}, fmt.Errorf("dry-run diff: %w", err)
			}
		}
		sum.Outcome = OutcomeDryRun
	case !changed && cur.Path != "":
		sum.Outcome = OutcomeUnchanged
	default:
		wtimer := logger.StartWith("writer", "write", fileID, "")
		if err := comp.Writer.Write(ctx, cur); err != nil {
			fail(logger, "writer", "write failed", err, fileID, "")
			return Summary{}, fmt.Errorf("writer write: %w", err)
		}
		wtimer.Finish("write", int64(len(after)))
		diag.IncOp("writer", "finish", "success")
		sum.Outcome = OutcomeWritten
	}
	logger.StartWithKV("pipeline", "result", fileID, "", map[string]string{
		"outcome": string(sum.Outcome),
		"length":  fmt.Sprint(sum.Length),
		"blake3":  sum.Digest,
	}).Finish("result", int64(len(sum.Reports)))
	ok = true
	return sum, nil
}

func sanity(c Components, s Settings) error {
	if c.Reader == nil || c.Writer == nil {
		return errors.New("nil component")
	}
	if len(c.Steps) == 0 {
		return errors.New("no steps")
	}
	for i, st := range c.Steps {
		if st == nil {
			return fmt.Errorf("step %d is nil", i)
		}
	}
	if strings.TrimSpace(s.Input) == "" {
		return errors.New("input empty")
	}
	return nil
}

// fail 统一记录错误日志与指标；锚点/残留错误附带具体文本。
func fail(logger *diag.Logger, comp, msg string, err error, fileID, step string) {
	code := diag.Classify(err)
	kv := map[string]string{"err": err.Error()}
	var me *contract.MarkerNotFoundError
	if errors.As(err, &me) {
		kv["role"] = string(me.Role)
		kv["marker"] = me.Marker
	}
	var re *contract.ResidualTokenError
	if errors.As(err, &re) {
		kv["tokens"] = strings.Join(re.Tokens, "|")
	}
	logger.ErrorWithKV(comp, string(code), msg, nil, fileID, step, kv)
	diag.IncOp(comp, "error", "error")
	if code != diag.CodeUnknown {
		diag.IncError(comp, string(code))
	}
}

func digest(s string) string {
	sum := blake3.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// writeDiff 输出单文档的统一 diff（仅预览，不可回放）。
func writeDiff(w io.Writer, fileID, before, after string) error {
	return difflib.WriteUnifiedDiff(w, difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "a/" + fileID,
		ToFile:   "b/" + fileID,
		Context:  3,
	})
}
