package config

import (
	"bytes"
	"encoding/json"
)

// DefaultTemplateConfig 返回一个默认配置模板：
// - 步骤依次为 repair → substitute → splice，对应一次完整的修复流程；
// - 路径均相对于工作目录，按需修改；
// - 选项包含全部键，给出安全中性默认值。
func DefaultTemplateConfig() Config {
	d := Defaults()
	cfg := Config{
		Input:      "src/pages/admin/AdminReportManagementPage.tsx",
		Logging:    Logging{Level: "info"},
		Components: d.Components,
	}
	cfg.Options.Reader = json.RawMessage(`{
  "buf_size": 65536,
  "max_bytes": 0
}`)
	cfg.Options.Writer = json.RawMessage(`{
  "atomic": true,
  "perm_file": 0,
  "buf_size": 65536,
  "backup_suffix": ""
}`)
	cfg.Steps = []Step{
		{Kind: "repair", Options: json.RawMessage(`{"encoding": "ISO-8859-1"}`)},
		{Kind: "substitute", Options: json.RawMessage(`{
  "table": "tables/admin-report-vi.yaml",
  "rules": [],
  "mode": "chained"
}`)},
		{Kind: "splice", Options: json.RawMessage(`{
  "start": "const fetchPendingReports = useCallback(",
  "end": "const fetchSolvedReports = useCallback(",
  "draft": "drafts/fetch-pending.txt",
  "draft_inline": "",
  "rules": "rules/py-to-ts.yaml",
  "rules_inline": [],
  "forbid": [],
  "verify": true
}`)},
	}
	return cfg
}

const templateHeader = `// srcmend 配置（jsonc：允许注释与尾逗号）
// 优先级：CLI > ENV(.env, SRCMEND_*) > 本文件 > 默认值
// steps 按顺序作用于同一缓冲区；全部成功后才覆盖写回 input。
`

// RenderTemplate 将配置渲染为带注释头的 jsonc 文本。
func RenderTemplate(cfg Config) ([]byte, error) {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(templateHeader)
	buf.Write(b)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
