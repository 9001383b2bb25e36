package draft

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// RuleSet: 有序规则与最终校验用的禁用 token。
type RuleSet struct {
	Rules  []Rule   `yaml:"rules"`
	Forbid []string `yaml:"forbid,omitempty"`
}

// Validate 逐条校验规则。
func (rs RuleSet) Validate() error {
	for i, r := range rs.Rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("rule #%d: %w", i, err)
		}
	}
	return nil
}

// ParseRules 解析 YAML 规则集（拒绝未知字段）。
func ParseRules(data []byte) (RuleSet, error) {
	var rs RuleSet
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rs); err != nil && !errors.Is(err, io.EOF) {
		return RuleSet{}, fmt.Errorf("parse rules: %w", err)
	}
	if err := rs.Validate(); err != nil {
		return RuleSet{}, err
	}
	return rs, nil
}

// LoadRules 从文件读取规则集。
func LoadRules(path string) (RuleSet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, err
	}
	rs, err := ParseRules(b)
	if err != nil {
		return RuleSet{}, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}
