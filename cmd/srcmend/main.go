package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	cfgpkg "srcmend/internal/config"
	"srcmend/internal/diag"
	"srcmend/internal/pipeline"
)

var pipelineRun = pipeline.Run

// 退出码：0 成功；1 运行期失败（含锚点缺失、残留 token）；3 配置/装配错误。
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 3
)

// exitError 携带退出码；消息已在返回前打印。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// globalFlags: 所有子命令共享的旗标。
type globalFlags struct {
	config   string
	logLevel string
	dryRun   bool
	strict   bool
	status   bool
}

func run(args []string, stdout, stderr io.Writer) int {
	// 在任何 ENV 读取前，尝试加载工作目录下的 .env（不覆盖已有 ENV）。
	_ = loadDotEnv(".env")
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// cobra 自身的参数/旗标错误按配置错误处理
	fprintf(stderr, "参数错误: %v\n", err)
	return exitConfig
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "srcmend",
		Short:         "修复乱码并按锚点替换源码区间",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	pf := root.PersistentFlags()
	pf.StringVar(&g.config, "config", "", "配置文件路径（jsonc）；缺省读取 ./config.jsonc 或 ./config.json（若存在）")
	pf.StringVar(&g.logLevel, "log-level", "", "日志等级 debug|info|warn|error（覆盖配置）")
	pf.BoolVar(&g.dryRun, "dry-run", false, "只预览：打印统一 diff，不写回")
	pf.BoolVar(&g.strict, "strict", false, "零命中规则视为错误")
	pf.BoolVar(&g.status, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出")

	root.AddCommand(
		newRunCmd(g, stdout, stderr),
		newRepairCmd(g, stdout, stderr),
		newSubstituteCmd(g, stdout, stderr),
		newSpliceCmd(g, stdout, stderr),
		newInitCmd(stderr),
	)
	return root
}

func newRunCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "run [FILE]",
		Short: "按配置中的步骤列表处理文件",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var over cfgpkg.Config
			if len(args) == 1 {
				over.Input = args[0]
			}
			return execute(cmd.Context(), g, over, stdout, stderr)
		},
	}
}

func newRepairCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	var encoding string
	cmd := &cobra.Command{
		Use:   "repair FILE",
		Short: "按单字节编码假设重解码整个文件",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := rawOptions(map[string]any{"encoding": encoding})
			if err != nil {
				return configErr(stderr, err)
			}
			over := cfgpkg.Config{Input: args[0], Steps: []cfgpkg.Step{{Kind: "repair", Options: opts}}}
			return execute(cmd.Context(), g, over, stdout, stderr)
		},
	}
	cmd.Flags().StringVar(&encoding, "encoding", "ISO-8859-1", "误解码假设编码（IANA 名称或 latin-1/cp1252 等别名）")
	return cmd
}

func newSubstituteCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	var table, mode string
	cmd := &cobra.Command{
		Use:   "substitute FILE",
		Short: "按替换表做有序字面量替换",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := rawOptions(map[string]any{"table": table, "mode": mode})
			if err != nil {
				return configErr(stderr, err)
			}
			over := cfgpkg.Config{Input: args[0], Steps: []cfgpkg.Step{{Kind: "substitute", Options: opts}}}
			return execute(cmd.Context(), g, over, stdout, stderr)
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "替换表路径（YAML）")
	cmd.Flags().StringVar(&mode, "mode", "", "chained | single-pass（覆盖表中声明）")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}

func newSpliceCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	var (
		start, end, draftPath, rules string
		forbid                       []string
		noVerify                     bool
	)
	cmd := &cobra.Command{
		Use:   "splice FILE",
		Short: "把草稿转换后替换 start..end 锚点之间的区间",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o := map[string]any{
				"start":  start,
				"end":    end,
				"draft":  draftPath,
				"rules":  rules,
				"forbid": forbid,
			}
			if noVerify {
				o["verify"] = false
			}
			opts, err := rawOptions(o)
			if err != nil {
				return configErr(stderr, err)
			}
			over := cfgpkg.Config{Input: args[0], Steps: []cfgpkg.Step{{Kind: "splice", Options: opts}}}
			return execute(cmd.Context(), g, over, stdout, stderr)
		},
	}
	f := cmd.Flags()
	f.StringVar(&start, "start", "", "起始锚点（首次出现，保留在输出中；草稿只提供其后的块体）")
	f.StringVar(&end, "end", "", "结束锚点（起始锚点之后首次出现，保留在输出中）")
	f.StringVar(&draftPath, "draft", "", "草稿文件路径")
	f.StringVar(&rules, "rules", "", "token 规则文件路径（YAML）")
	f.StringSliceVar(&forbid, "forbid", nil, "额外的残留禁止 token（可重复）")
	f.BoolVar(&noVerify, "no-verify", false, "跳过残留 token 校验")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	_ = cmd.MarkFlagRequired("draft")
	return cmd
}

func newInitCmd(stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [DIR]",
		Short: "在目录中生成 config.jsonc 与 .env 模板（已存在则跳过，不覆盖）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				dir = strings.TrimSpace(args[0])
			}
			if err := initConfig(dir, stderr); err != nil {
				fprintf(stderr, "生成默认配置失败: %v\n", err)
				return &exitError{code: exitConfig, err: err}
			}
			return nil
		},
	}
}

// execute: 分层合并配置 → 装配 → 运行流水线。
func execute(ctx context.Context, g *globalFlags, overCLI cfgpkg.Config, stdout, stderr io.Writer) error {
	start := time.Now()
	corrID := uuid.NewString()
	// 先以默认 level 建立 logger，配置合并后按最终 level 重建
	logger := diag.NewLogger(corrID, "info")
	defer func() { _ = logger.Sync() }()

	cfg, err := loadConfig(g, overCLI)
	if err != nil {
		fprintf(stderr, "配置解析失败: %v\n", err)
		logger.Error("config", string(diag.CodeConfig), err.Error(), &start)
		return &exitError{code: exitConfig, err: err}
	}
	if err := cfgpkg.Validate(cfg); err != nil {
		fprintf(stderr, "配置校验失败: %v\n", err)
		logger.Error("config", string(diag.CodeConfig), err.Error(), &start)
		return &exitError{code: exitConfig, err: err}
	}

	// 使用最终配置中的日志级别重建 logger
	_ = logger.Sync()
	logger = diag.NewLogger(corrID, cfg.Logging.Level)

	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		fprintf(stderr, "装配失败: %v\n", err)
		logger.Error("config", string(diag.CodeConfig), err.Error(), &start)
		return &exitError{code: exitConfig, err: err}
	}
	set.Stdout = stdout

	logger.DebugStart("config", "effective", cfg.Input, "", map[string]string{
		"steps":   fmt.Sprint(len(cfg.Steps)),
		"dry_run": fmt.Sprint(cfg.DryRun),
		"strict":  fmt.Sprint(cfg.Strict),
		"reader":  cfg.Components.Reader,
		"writer":  cfg.Components.Writer,
	})

	// 终端信息提示（非日志）：按 CLI 启用，默认开启
	term := diag.NewTerminal(stderr, g.status)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)
	term.RunStart(len(comp.Steps), set.DryRun)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	t := logger.Start("pipeline", "run")
	sum, err := pipelineRun(ctx, comp, set, logger)
	if err != nil {
		code := string(diag.Classify(err))
		logger.Error("pipeline", code, "first error", &start)
		diag.IncOp("pipeline", "error", "error")
		if code != string(diag.CodeUnknown) {
			diag.IncError("pipeline", code)
		}
		if !errors.Is(err, context.Canceled) {
			fprintf(stderr, "运行失败: %v\n", err)
		}
		term.RunFinish(false, "failed", time.Since(start))
		return &exitError{code: exitRuntime, err: err}
	}
	t.Finish("run", int64(len(sum.Reports)))
	diag.IncOp("pipeline", "finish", "success")
	diag.ObserveDuration("pipeline", "finish", time.Since(start).Milliseconds())
	logger.DebugStart("metrics", "snapshot", string(sum.FileID), "", diag.SnapshotKV())
	term.RunFinish(true, string(sum.Outcome), time.Since(start))
	return nil
}

// loadConfig: 默认值 → JSON(文件或 SRCMEND_CONFIG_JSON) → ENV → CLI。
func loadConfig(g *globalFlags, overCLI cfgpkg.Config) (cfgpkg.Config, error) {
	var cfgJSON []byte
	if s := os.Getenv(cfgpkg.EnvPrefix + "CONFIG_JSON"); s != "" {
		cfgJSON = []byte(s)
	}
	path := g.config
	if path == "" {
		path = os.Getenv(cfgpkg.EnvPrefix + "CONFIG_FILE")
	}
	// 默认读取工作目录下 config.jsonc / config.json（若存在）
	if path == "" && len(cfgJSON) == 0 {
		for _, cand := range []string{"config.jsonc", "config.json"} {
			if _, err := os.Stat(cand); err == nil {
				path = cand
				break
			}
		}
	}

	cfg := cfgpkg.Defaults()
	if path != "" || len(cfgJSON) > 0 {
		base, err := cfgpkg.LoadJSON(path, cfgJSON)
		if err != nil {
			return cfg, err
		}
		cfg = cfgpkg.Merge(cfg, base)
	}
	overEnv, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		return cfg, err
	}
	cfg = cfgpkg.Merge(cfg, overEnv)

	overCLI.DryRun = overCLI.DryRun || g.dryRun
	overCLI.Strict = overCLI.Strict || g.strict
	if g.logLevel != "" {
		overCLI.Logging.Level = g.logLevel
	}
	return cfgpkg.Merge(cfg, overCLI), nil
}

func configErr(stderr io.Writer, err error) error {
	fprintf(stderr, "参数错误: %v\n", err)
	return &exitError{code: exitConfig, err: err}
}

func fprintf(w io.Writer, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }
