package contract

import "context"

// Reader: 文档来源抽象。
// 约束：
// 1) 单次调用只加载一个文件，整体读入；
// 2) 打开的句柄在所有返回路径上关闭；
// 3) 不做业务变换，仅按 UTF-8 解释字节；
// 4) 不在内部起并发。
type Reader interface {
	Load(ctx context.Context, path string) (Document, error)
}
