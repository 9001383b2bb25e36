package config

import (
	"encoding/json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON 使用 snake_case；允许注释与尾逗号（jsonc），未知字段在解析期失败。
type Config struct {
	// Input: 目标文件路径；"-" 表示 STDIN → STDOUT。
	Input string `json:"input"`
	// DryRun: 仅预览（打印统一 diff），不写回。
	DryRun bool `json:"dry_run"`
	// Strict: 零命中规则升级为硬错误。
	Strict  bool    `json:"strict"`
	Logging Logging `json:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`

	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`

	// Steps: 有序步骤列表；每步 kind 对应注册表中的 Step 工厂。
	Steps []Step `json:"steps"`
}

// Logging: 仅保留日志等级可配置；输出路径与轮转策略为固定默认。
type Logging struct {
	Level string `json:"level"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader string `json:"reader"`
	Writer string `json:"writer"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Reader json.RawMessage `json:"reader"`
	Writer json.RawMessage `json:"writer"`
}

// Step: 一个流水线步骤声明。
type Step struct {
	Kind string `json:"kind"`
	// Name: 可选显示名，仅用于日志。
	Name    string          `json:"name,omitempty"`
	Options json.RawMessage `json:"options"`
}
