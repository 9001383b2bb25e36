package contract

import "context"

// Writer: 将变换后的 Document 覆盖写回其来源路径。
// 约束：
//  1. 同一路径单写者；
//  2. 失败时原文件保持不变（不得留下半写内容）；
//  3. ctx 取消/超时需尽快返回；
//  4. 错误直接上抛（不做重试/回退）。
type Writer interface {
	Write(ctx context.Context, doc Document) error
}

// Step: 作用于整个缓冲区的纯变换。
// 约束：
//   - 无 I/O 副作用（规则表等资源在构造期加载）；
//   - 返回新 Document，不修改入参；
//   - 硬错误时返回零值 Document，调用方必须丢弃本次尝试。
type Step interface {
	Name() string
	Apply(ctx context.Context, doc Document) (Document, Report, error)
}

// Advisor: 可选接口。步骤在构造期发现的非致命问题（如替换表顺序），由编排层记录。
type Advisor interface {
	Advice() []string
}
