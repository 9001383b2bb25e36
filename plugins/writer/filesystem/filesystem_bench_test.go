package filesystem

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"srcmend/pkg/contract"
)

// BenchmarkWrite 基准测试 Writer.Write。不同文档尺寸下测量原子覆盖写的开销。
func BenchmarkWrite(b *testing.B) {
	sizes := []int{1024, 1024 * 1024}
	for _, sz := range sizes {
		b.Run(fmt.Sprintf("size=%d", sz), func(b *testing.B) {
			doc := contract.Document{Path: filepath.Join(b.TempDir(), "page.tsx"), Text: strings.Repeat("a", sz)}
			w, err := New(nil)
			if err != nil {
				b.Fatalf("创建 Writer 失败: %v", err)
			}
			ctx := context.Background()
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := w.Write(ctx, doc); err != nil {
					b.Fatalf("写入失败: %v", err)
				}
			}
		})
	}
}
