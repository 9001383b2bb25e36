package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	cfgpkg "srcmend/internal/config"
)

// rawOptions 把子命令旗标编码为步骤 Options；空值省略以保留工厂默认。
func rawOptions(m map[string]any) (json.RawMessage, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch tv := v.(type) {
		case string:
			if strings.TrimSpace(tv) == "" {
				continue
			}
		case []string:
			if len(tv) == 0 {
				continue
			}
		case nil:
			continue
		}
		out[k] = v
	}
	return json.Marshal(out)
}

// initConfig 在 dir 下生成 config.jsonc 与 .env（已存在的文件跳过，不覆盖）。
func initConfig(dir string, stderr io.Writer) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := cfgpkg.RenderTemplate(cfgpkg.DefaultTemplateConfig())
	if err != nil {
		return err
	}
	cfgPath := filepath.Join(dir, "config.jsonc")
	created, err := writeNew(cfgPath, b)
	if err != nil {
		return err
	}
	if !created {
		fprintf(stderr, "已存在，跳过: %s\n", cfgPath)
	}
	// .env 失败不致命
	envPath := filepath.Join(dir, ".env")
	if created, err := writeNew(envPath, []byte(dotEnvTemplate())); err != nil {
		fprintf(stderr, "提示：.env 生成失败（已跳过）：%v\n", err)
	} else if !created {
		fprintf(stderr, "已存在，跳过: %s\n", envPath)
	}
	return nil
}

// writeNew 以 O_EXCL 创建文件；文件已存在时返回 created=false。
func writeNew(path string, b []byte) (created bool, err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(b); err != nil {
		return false, err
	}
	return true, nil
}

func dotEnvTemplate() string {
	p := cfgpkg.EnvPrefix
	var b strings.Builder
	b.WriteString("# srcmend .env 模板（由 init-config 生成）\n")
	b.WriteString("# 优先级：CLI > ENV(.env) > config.jsonc\n")
	b.WriteString("# 空值表示未设置。\n\n")

	b.WriteString("# 配置来源（可二选一）\n")
	fmt.Fprintf(&b, "%sCONFIG_FILE=\n%sCONFIG_JSON=\n\n", p, p)

	b.WriteString("# 运行参数覆盖\n")
	for _, k := range []string{"INPUT", "DRY_RUN", "STRICT", "LOG_LEVEL"} {
		fmt.Fprintf(&b, "%s%s=\n", p, k)
	}
	b.WriteString("\n# 组件选择与选项（原样 JSON）\n")
	for _, k := range []string{"COMPONENTS_READER", "COMPONENTS_WRITER", "OPTIONS_READER_JSON", "OPTIONS_WRITER_JSON"} {
		fmt.Fprintf(&b, "%s%s=\n", p, k)
	}
	b.WriteString("\n# 步骤列表（JSON 数组，整体替换配置中的 steps）\n")
	fmt.Fprintf(&b, "%sSTEPS_JSON=\n", p)
	return b.String()
}

// loadDotEnv 读取简单的 .env 文件格式并注入进程环境。
// 规则：
// - 忽略不存在的文件；无法读取时返回错误（但调用处可忽略）。
// - 跳过空行与以 # 开头的行；支持可选的前缀 "export ".
// - 仅按首个 '=' 分割；key 与 value 去首尾空白；
// - 成对的单/双引号会被去除；双引号内处理 \n \t \" \\ 转义。
// - 不覆盖已存在的环境变量。
func loadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		if key == "" {
			continue
		}
		if len(val) >= 2 {
			q := val[0]
			if (q == '\'' || q == '"') && val[len(val)-1] == q {
				val = val[1 : len(val)-1]
				if q == '"' {
					val = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\r`, "\r", `\"`, `"`, `\\`, `\`).Replace(val)
				}
			}
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, val)
	}
	return s.Err()
}
