package registry

import (
	"bytes"
	"encoding/json"

	"srcmend/pkg/contract"
	rfs "srcmend/plugins/reader/filesystem"
	"srcmend/plugins/transform/dictionary"
	"srcmend/plugins/transform/mojibake"
	"srcmend/plugins/transform/splice"
	wfs "srcmend/plugins/writer/filesystem"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.Reader, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// NewStep 工厂签名：接收原样 JSON Options。
type NewStep func(raw json.RawMessage) (contract.Step, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 文件系统/STDIN Reader
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts), nil
	},
}

// Step 工厂注册表；键即配置中 steps[].kind。
var Step = map[string]NewStep{
	// repair: 整文件按单字节编码假设重解码
	"repair": func(raw json.RawMessage) (contract.Step, error) {
		var opts mojibake.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return mojibake.New(&opts)
	},
	// substitute: 有序字面量替换表；表检查告警经 contract.Advisor 暴露
	"substitute": func(raw json.RawMessage) (contract.Step, error) {
		var opts dictionary.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		s, _, err := dictionary.New(&opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	},
	// splice: 草稿改写 + 锚点区间替换
	"splice": func(raw json.RawMessage) (contract.Step, error) {
		var opts splice.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return splice.New(&opts)
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 原地覆盖写（默认原子替换）
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
}
