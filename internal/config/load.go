package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
)

// EnvPrefix: 环境变量覆盖前缀。
const EnvPrefix = "SRCMEND_"

// Defaults 返回带有安全默认值的 Config 雏形。
// 注意：Input 与 Steps 不设默认（必须由 JSON/ENV/CLI 提供）。
func Defaults() Config {
	return Config{
		Logging: Logging{Level: "info"},
		Components: Components{
			Reader: "fs",
			Writer: "fs",
		},
	}
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
// 输入可带 // 与 /* */ 注释及尾逗号，解析前经 jsonc 规整为标准 JSON。
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	switch {
	case len(raw) > 0:
	case path != "":
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		raw = b
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		if path != "" {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
		return cfg, err
	}
	return cfg, nil
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。
// 布尔开关只能被打开：over 为 false 视为未覆盖。
func Merge(base, over Config) Config {
	out := base
	if strings.TrimSpace(over.Input) != "" {
		out.Input = strings.TrimSpace(over.Input)
	}
	if over.DryRun {
		out.DryRun = true
	}
	if over.Strict {
		out.Strict = true
	}
	// Logging（仅 level）
	if strings.TrimSpace(over.Logging.Level) != "" {
		out.Logging.Level = strings.TrimSpace(over.Logging.Level)
	}

	// 组件名（空不覆盖）
	if over.Components.Reader != "" {
		out.Components.Reader = over.Components.Reader
	}
	if over.Components.Writer != "" {
		out.Components.Writer = over.Components.Writer
	}

	// Options（完整替换对应键）
	if len(over.Options.Reader) > 0 {
		out.Options.Reader = cloneRaw(over.Options.Reader)
	}
	if len(over.Options.Writer) > 0 {
		out.Options.Writer = cloneRaw(over.Options.Writer)
	}

	// Steps 整体替换：步骤顺序有语义，不做逐项合并。
	if len(over.Steps) > 0 {
		out.Steps = cloneSteps(over.Steps)
	}
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 规则：前缀 SRCMEND_；集合之外的键忽略。
// 支持：INPUT, DRY_RUN, STRICT, LOG_LEVEL, COMPONENTS_{READER,WRITER},
// OPTIONS_{READER,WRITER}_JSON, STEPS_JSON。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key := kv[len(EnvPrefix):eq]
		val := kv[eq+1:]
		switch key {
		case "INPUT":
			over.Input = strings.TrimSpace(val)
		case "DRY_RUN":
			b, err := parseBool(key, val)
			if err != nil {
				return Config{}, err
			}
			over.DryRun = b
		case "STRICT":
			b, err := parseBool(key, val)
			if err != nil {
				return Config{}, err
			}
			over.Strict = b
		case "LOG_LEVEL":
			over.Logging.Level = strings.TrimSpace(val)
		case "COMPONENTS_READER":
			over.Components.Reader = strings.TrimSpace(val)
		case "COMPONENTS_WRITER":
			over.Components.Writer = strings.TrimSpace(val)
		case "OPTIONS_READER_JSON":
			// 原样 JSON；空值视为未设置，避免清空现有配置
			if strings.TrimSpace(val) != "" {
				over.Options.Reader = json.RawMessage(val)
			}
		case "OPTIONS_WRITER_JSON":
			if strings.TrimSpace(val) != "" {
				over.Options.Writer = json.RawMessage(val)
			}
		case "STEPS_JSON":
			if strings.TrimSpace(val) == "" {
				continue
			}
			var steps []Step
			dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON([]byte(val))))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&steps); err != nil {
				return Config{}, fmt.Errorf("%sSTEPS_JSON: %w", EnvPrefix, err)
			}
			over.Steps = steps
		}
	}
	return over, nil
}

func parseBool(key, val string) (bool, error) {
	if strings.TrimSpace(val) == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(val))
	if err != nil {
		return false, fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	return b, nil
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func cloneSteps(in []Step) []Step {
	if len(in) == 0 {
		return nil
	}
	out := make([]Step, len(in))
	for i, s := range in {
		s.Options = cloneRaw(s.Options)
		out[i] = s
	}
	return out
}
