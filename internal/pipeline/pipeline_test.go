package pipeline

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"srcmend/internal/diag"
	"srcmend/pkg/contract"
	"srcmend/plugins/transform/dictionary"
)

// 通用桩件 ----------------------------------------------------
type stubReader struct {
	text string
	path string
	err  error
}

func (r stubReader) Load(ctx context.Context, path string) (contract.Document, error) {
	if r.err != nil {
		return contract.Document{}, r.err
	}
	p := r.path
	if p == "" && path != "-" {
		p = path
	}
	return contract.Document{ID: contract.NormalizeFileID(path), Path: p, Text: r.text}, nil
}

type recWriter struct {
	docs []contract.Document
	err  error
}

func (w *recWriter) Write(ctx context.Context, doc contract.Document) error {
	if w.err != nil {
		return w.err
	}
	w.docs = append(w.docs, doc)
	return nil
}

// upperStep 将文本转大写，命中数为 1。
type upperStep struct{}

func (upperStep) Name() string { return "upper" }
func (upperStep) Apply(ctx context.Context, doc contract.Document) (contract.Document, contract.Report, error) {
	out := strings.ToUpper(doc.Text)
	return doc.WithText(out), contract.Report{Hits: []contract.RuleHit{{Rule: "upper", Count: 1}}, Changed: out != doc.Text}, nil
}

type failStep struct{ err error }

func (failStep) Name() string { return "fail" }
func (f failStep) Apply(ctx context.Context, doc contract.Document) (contract.Document, contract.Report, error) {
	return contract.Document{}, contract.Report{}, f.err
}

type lossyStep struct{}

func (lossyStep) Name() string { return "lossy" }
func (lossyStep) Apply(ctx context.Context, doc contract.Document) (contract.Document, contract.Report, error) {
	return doc, contract.Report{Dropped: 2}, nil
}

func newObserved(t *testing.T) (*diag.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	return diag.NewLoggerWithCore("test", core), logs
}

func TestRunWritesChangedDocument(t *testing.T) {
	w := &recWriter{}
	logger, logs := newObserved(t)
	sum, err := Run(context.Background(), Components{
		Reader: stubReader{text: "hello"},
		Steps:  []contract.Step{upperStep{}},
		Writer: w,
	}, Settings{Input: "src/a.tsx"}, logger)
	require.NoError(t, err)
	require.Equal(t, OutcomeWritten, sum.Outcome)
	require.Len(t, w.docs, 1)
	require.Equal(t, "HELLO", w.docs[0].Text)
	require.Equal(t, 5, sum.Length)
	require.Len(t, sum.Digest, 64)
	require.Equal(t, "upper", sum.Reports[0].Step)
	require.NotZero(t, logs.FilterMessage("result").Len())
}

func TestRunUnchangedSkipsWrite(t *testing.T) {
	w := &recWriter{}
	logger, logs := newObserved(t)
	sum, err := Run(context.Background(), Components{
		Reader: stubReader{text: "HELLO"},
		Steps:  []contract.Step{upperStep{}},
		Writer: w,
	}, Settings{Input: "a.txt"}, logger)
	require.NoError(t, err)
	require.Equal(t, OutcomeUnchanged, sum.Outcome)
	require.Empty(t, w.docs)

	// 摘要只用于记录：等于结果文本的 blake3，并出现在 result 日志中
	want := blake3.Sum256([]byte("HELLO"))
	require.Equal(t, hex.EncodeToString(want[:]), sum.Digest)
	res := logs.FilterMessage("result").FilterFieldKey("kv").All()
	require.NotEmpty(t, res)
	kv, ok := res[0].ContextMap()["kv"].(map[string]string)
	require.True(t, ok)
	require.Equal(t, sum.Digest, kv["blake3"])
	require.Equal(t, string(OutcomeUnchanged), kv["outcome"])
}

// STDIN 输入即使未变化也要回显
func TestRunStdinAlwaysWrites(t *testing.T) {
	w := &recWriter{}
	sum, err := Run(context.Background(), Components{
		Reader: stubReader{text: "HELLO"},
		Steps:  []contract.Step{upperStep{}},
		Writer: w,
	}, Settings{Input: "-"}, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeWritten, sum.Outcome)
	require.Len(t, w.docs, 1)
	require.Empty(t, w.docs[0].Path)
}

// 硬错误：不写回，错误链保留哨兵，日志携带锚点文本
func TestRunStepErrorAbortsWithoutWrite(t *testing.T) {
	w := &recWriter{}
	logger, logs := newObserved(t)
	mErr := &contract.MarkerNotFoundError{Role: contract.RoleEnd, Marker: "const fetchSolvedReports"}
	_, err := Run(context.Background(), Components{
		Reader: stubReader{text: "x"},
		Steps:  []contract.Step{upperStep{}, failStep{err: mErr}},
		Writer: w,
	}, Settings{Input: "a.tsx"}, logger)
	require.Error(t, err)
	require.ErrorIs(t, err, contract.ErrMarkerNotFound)
	require.Empty(t, w.docs)

	errs := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, errs, 1)
	kv, _ := errs[0].ContextMap()["kv"].(map[string]string)
	require.Equal(t, "const fetchSolvedReports", kv["marker"])
	require.Equal(t, "marker", errs[0].ContextMap()["code"])
}

func TestRunReaderError(t *testing.T) {
	_, err := Run(context.Background(), Components{
		Reader: stubReader{err: contract.ErrPathInvalid},
		Steps:  []contract.Step{upperStep{}},
		Writer: &recWriter{},
	}, Settings{Input: "dir"}, nil)
	require.ErrorIs(t, err, contract.ErrPathInvalid)
}

func TestRunWriterError(t *testing.T) {
	boom := errors.New("disk full")
	_, err := Run(context.Background(), Components{
		Reader: stubReader{text: "a"},
		Steps:  []contract.Step{upperStep{}},
		Writer: &recWriter{err: boom},
	}, Settings{Input: "a"}, nil)
	require.ErrorIs(t, err, boom)
}

// 零命中：默认仅告警；Strict 下为硬错误
func TestRunUnmatchedRules(t *testing.T) {
	step, _, err := dictionary.New(&dictionary.Options{Rules: []contract.Rule{
		{From: "a", To: "b"},
		{From: "zzz", To: "y"},
	}})
	require.NoError(t, err)

	logger, logs := newObserved(t)
	w := &recWriter{}
	comp := Components{Reader: stubReader{text: "aaa"}, Steps: []contract.Step{step}, Writer: w}
	sum, err := Run(context.Background(), comp, Settings{Input: "a.txt"}, logger)
	require.NoError(t, err)
	require.Equal(t, OutcomeWritten, sum.Outcome)
	require.Equal(t, []string{"zzz"}, sum.Reports[0].Unmatched())
	warn := logs.FilterField(zapcore.Field{Key: "code", Type: zapcore.StringType, String: "no_match"}).All()
	require.Len(t, warn, 1)

	w.docs = nil
	_, err = Run(context.Background(), comp, Settings{Input: "a.txt", Strict: true}, nil)
	require.ErrorIs(t, err, contract.ErrRuleNoMatch)
	require.Empty(t, w.docs)
}

func TestRunDecodeLossWarns(t *testing.T) {
	logger, logs := newObserved(t)
	_, err := Run(context.Background(), Components{
		Reader: stubReader{text: "a"},
		Steps:  []contract.Step{lossyStep{}, upperStep{}},
		Writer: &recWriter{},
	}, Settings{Input: "a"}, logger)
	require.NoError(t, err)
	warn := logs.FilterField(zapcore.Field{Key: "code", Type: zapcore.StringType, String: "decode_loss"}).All()
	require.Len(t, warn, 1)
}

// 替换表告警通过 Advisor 记录
func TestRunLogsAdvice(t *testing.T) {
	step, warns, err := dictionary.New(&dictionary.Options{Rules: []contract.Rule{
		{From: "Ã", To: "à"},
		{From: "Ã½", To: "ý"},
	}})
	require.NoError(t, err)
	require.NotEmpty(t, warns)

	logger, logs := newObserved(t)
	_, err = Run(context.Background(), Components{
		Reader: stubReader{text: "LÃ½ do"},
		Steps:  []contract.Step{step},
		Writer: &recWriter{},
	}, Settings{Input: "a"}, logger)
	require.NoError(t, err)
	lint := logs.FilterField(zapcore.Field{Key: "code", Type: zapcore.StringType, String: "lint"}).All()
	require.Len(t, lint, len(warns))
}

func TestRunDryRunPrintsDiff(t *testing.T) {
	w := &recWriter{}
	var out strings.Builder
	sum, err := Run(context.Background(), Components{
		Reader: stubReader{text: "keep\nchange\n"},
		Steps:  []contract.Step{upperStep{}},
		Writer: w,
	}, Settings{Input: "src/a.tsx", DryRun: true, Stdout: &out}, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeDryRun, sum.Outcome)
	require.Empty(t, w.docs)
	want := "--- a/src/a.tsx\n+++ b/src/a.tsx\n@@ -1,2 +1,2 @@\n-keep\n-change\n+KEEP\n+CHANGE\n"
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Fatalf("diff mismatch (-want +got):\n%s", diff)
	}
}

func TestRunSanity(t *testing.T) {
	cases := []struct {
		name string
		comp Components
		set  Settings
	}{
		{"nil reader", Components{Steps: []contract.Step{upperStep{}}, Writer: &recWriter{}}, Settings{Input: "a"}},
		{"no steps", Components{Reader: stubReader{}, Writer: &recWriter{}}, Settings{Input: "a"}},
		{"nil step", Components{Reader: stubReader{}, Steps: []contract.Step{nil}, Writer: &recWriter{}}, Settings{Input: "a"}},
		{"empty input", Components{Reader: stubReader{}, Steps: []contract.Step{upperStep{}}, Writer: &recWriter{}}, Settings{Input: " "}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Run(context.Background(), tt.comp, tt.set, nil); err == nil {
				t.Fatal("expected sanity error")
			}
		})
	}
}

// 终端：成功路径输出 [done] 行并带结果长度
func TestRunTerminalFinish(t *testing.T) {
	var sb strings.Builder
	diag.SetTerminal(diag.NewTerminal(&sb, true))
	defer diag.SetTerminal(nil)
	_, err := Run(context.Background(), Components{
		Reader: stubReader{text: "xin chào"},
		Steps:  []contract.Step{upperStep{}},
		Writer: &recWriter{},
	}, Settings{Input: "pages/report.tsx"}, nil)
	require.NoError(t, err)
	require.Contains(t, sb.String(), "[file] report.tsx")
	require.Contains(t, sb.String(), "[done] report.tsx | length 8 |")
}
