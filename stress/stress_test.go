package stress

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	cfgpkg "srcmend/internal/config"
	"srcmend/internal/pipeline"
)

const (
	startMarker = "const fetchPendingReports = useCallback("
	endMarker   = "const fetchSolvedReports = useCallback("
)

// buildPage 以样例页面为骨架，在区间之前与文件末尾各插入 pad 行带乱码文案的注释。
func buildPage(t *testing.T, pad int) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("..", "testdata", "src", "report-page.tsx"))
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	page := string(b)
	var filler strings.Builder
	for i := 0; i < pad; i++ {
		fmt.Fprintf(&filler, "  // %d { title: 'NgÃ\u00a0y táº¡o', dataIndex: 'createdAt' },\n", i)
	}
	at := strings.Index(page, startMarker)
	if at < 0 {
		t.Fatalf("sample lacks start marker")
	}
	return page[:at] + "\n" + filler.String() + "  " + page[at:] + filler.String()
}

// baseConfig 构造替换表 + 草稿拼接的完整配置。
func baseConfig(input string) cfgpkg.Config {
	td := filepath.Join("..", "testdata")
	cfg := cfgpkg.Defaults()
	cfg.Input = input
	cfg.Logging.Level = "error"
	cfg.Steps = []cfgpkg.Step{
		{Kind: "substitute", Options: json.RawMessage(fmt.Sprintf(`{"table":%q}`, filepath.Join(td, "tables", "admin-report-vi.yaml")))},
		{Kind: "splice", Options: json.RawMessage(fmt.Sprintf(`{"start":%q,"end":%q,"draft":%q,"rules":%q}`,
			startMarker, endMarker, filepath.Join(td, "drafts", "fetch-pending.txt"), filepath.Join(td, "rules", "py-to-ts.yaml")))},
	}
	return cfg
}

// runPipeline 执行完整流水线。
func runPipeline(cfg cfgpkg.Config) (pipeline.Summary, error) {
	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		return pipeline.Summary{}, err
	}
	set.Stdout = &strings.Builder{}
	return pipeline.Run(context.Background(), comp, set, nil)
}

// TestStress 在不同文件规模下运行流水线并记录延迟统计。
func TestStress(t *testing.T) {
	if testing.Short() {
		t.Skip("stress: skipped in -short")
	}
	sizes := []int{1_000, 50_000, 200_000}
	for _, pad := range sizes {
		t.Run(fmt.Sprintf("lines_%d", pad*2), func(t *testing.T) {
			const runs = 5
			page := buildPage(t, pad)
			successes := 0
			latencies := make([]time.Duration, 0, runs)
			for i := 0; i < runs; i++ {
				in := filepath.Join(t.TempDir(), "page.tsx")
				if err := os.WriteFile(in, []byte(page), 0o644); err != nil {
					t.Fatalf("write input: %v", err)
				}
				start := time.Now()
				sum, err := runPipeline(baseConfig(in))
				dur := time.Since(start)
				if err != nil {
					t.Errorf("run %d: %v", i, err)
					continue
				}
				if got := sum.Reports[0].Replacements(); got < pad*2 {
					t.Errorf("run %d: replacements %d < %d", i, got, pad*2)
					continue
				}
				out, err := os.ReadFile(in)
				if err != nil {
					t.Fatalf("read output: %v", err)
				}
				if strings.Contains(string(out), "Ã") {
					t.Errorf("run %d: mojibake left in output", i)
					continue
				}
				successes++
				latencies = append(latencies, dur)
			}
			if successes == 0 {
				t.Fatalf("全部运行失败")
			}
			sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
			var total time.Duration
			for _, d := range latencies {
				total += d
			}
			avg := total / time.Duration(len(latencies))
			idx := int(math.Ceil(float64(len(latencies))*0.95)) - 1
			if idx < 0 {
				idx = 0
			}
			p95 := latencies[idx]
			t.Logf("规模%d行 成功率%.2f 平均%v 95%%延迟%v", pad*2, float64(successes)/float64(runs), avg, p95)
		})
	}
}
