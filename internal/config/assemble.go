package config

import (
	"errors"
	"fmt"
	"strings"

	"srcmend/internal/pipeline"
	"srcmend/pkg/contract"
	"srcmend/pkg/registry"
)

// Validate 对最小必要边界做静态校验。
// Step Options 的严格解析发生在 Assemble（工厂层）。
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Input) == "" {
		return errors.New("config: input empty")
	}
	if len(cfg.Steps) == 0 {
		return errors.New("config: steps empty")
	}
	for i, s := range cfg.Steps {
		if strings.TrimSpace(s.Kind) == "" {
			return fmt.Errorf("config: steps[%d]: kind empty", i)
		}
		if registry.Step[s.Kind] == nil {
			return fmt.Errorf("config: steps[%d]: kind %q not registered", i, s.Kind)
		}
	}
	// 组件名若为空，使用默认名（由 Defaults() 提供）。此处只要最终有值即可。
	if name := effName(cfg.Components.Reader, Defaults().Components.Reader); registry.Reader[name] == nil {
		return fmt.Errorf("config: reader %q not registered", name)
	}
	if name := effName(cfg.Components.Writer, Defaults().Components.Writer); registry.Writer[name] == nil {
		return fmt.Errorf("config: writer %q not registered", name)
	}
	return nil
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 raw JSON。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	// 有效名称
	d := Defaults()
	rn := effName(cfg.Components.Reader, d.Components.Reader)
	wn := effName(cfg.Components.Writer, d.Components.Writer)

	// 构造实例
	r, err := registry.Reader[rn](cfg.Options.Reader)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("config: reader %q: %w", rn, err)
	}
	w, err := registry.Writer[wn](cfg.Options.Writer)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("config: writer %q: %w", wn, err)
	}
	steps := make([]contract.Step, 0, len(cfg.Steps))
	for i, s := range cfg.Steps {
		st, err := registry.Step[s.Kind](s.Options)
		if err != nil {
			return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("config: steps[%d] %s: %w", i, stepLabel(s), err)
		}
		steps = append(steps, st)
	}

	comp := pipeline.Components{Reader: r, Steps: steps, Writer: w}
	set := pipeline.Settings{
		Input:  strings.TrimSpace(cfg.Input),
		DryRun: cfg.DryRun,
		Strict: cfg.Strict,
	}
	return comp, set, nil
}

func stepLabel(s Step) string {
	if s.Name != "" {
		return fmt.Sprintf("%s(%s)", s.Kind, s.Name)
	}
	return s.Kind
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
