package contract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

// TestNormalizeFileID 验证路径规范化逻辑。
func TestNormalizeFileID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"系统分隔符", filepath.Join("src", "pages", "admin"), "src/pages/admin"},
		{"空串", "", "."},
		{"Windows路径", "src\\pages\\admin\\AdminReportManagementPage.tsx", "src/pages/admin/AdminReportManagementPage.tsx"},
		{"清理多余斜杠", "src//pages///App.tsx", "src/pages/App.tsx"},
		{"清理当前目录", "./src/./main.tsx", "src/main.tsx"},
		{"处理父目录", "src/pages/../routes/index.ts", "src/routes/index.ts"},
		{"混合分隔符", "C:\\work/fe\\src/App.tsx", "C:/work/fe/src/App.tsx"},
		{"越界父目录", "a\\..\\..\\b", "../b"},
		{"绝对路径", "/srv/app/../fe/src/main.tsx", "/srv/fe/src/main.tsx"},
		{"非ASCII", "tài liệu\\báo cáo.tsx", "tài liệu/báo cáo.tsx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeFileID(tt.input); string(got) != tt.expected {
				t.Errorf("NormalizeFileID(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

// TestMarkerNotFoundError 验证错误信息包含锚点且可用 errors.Is 判定。
func TestMarkerNotFoundError(t *testing.T) {
	err := fmt.Errorf("splice: %w", &MarkerNotFoundError{Role: RoleEnd, Marker: "const fetchSolvedReports", AfterStart: true})
	if !errors.Is(err, ErrMarkerNotFound) {
		t.Fatalf("应能识别为 ErrMarkerNotFound: %v", err)
	}
	if !strings.Contains(err.Error(), "const fetchSolvedReports") || !strings.Contains(err.Error(), "after start") {
		t.Fatalf("错误信息缺少锚点描述: %v", err)
	}
	var mnf *MarkerNotFoundError
	if !errors.As(err, &mnf) || mnf.Role != RoleEnd {
		t.Fatalf("errors.As 失败: %v", err)
	}
}

// TestResidualTokenError 验证残留 token 错误。
func TestResidualTokenError(t *testing.T) {
	err := &ResidualTokenError{Tokens: []string{" and ", "finally:"}}
	if !errors.Is(err, ErrResidualToken) {
		t.Fatalf("应能识别为 ErrResidualToken")
	}
	if errors.Is(err, ErrMarkerNotFound) {
		t.Fatalf("不应识别为 ErrMarkerNotFound")
	}
	if got := err.Error(); got != `residual tokens: " and ", "finally:"` {
		t.Fatalf("错误信息不符: %s", got)
	}
}

// TestReportUnmatched 验证零命中规则的汇总。
func TestReportUnmatched(t *testing.T) {
	r := Report{Hits: []RuleHit{{Rule: "a", Count: 2}, {Rule: "b"}, {Rule: "c", Count: 1}, {Rule: "d"}}}
	um := r.Unmatched()
	if len(um) != 2 || um[0] != "b" || um[1] != "d" {
		t.Fatalf("Unmatched 结果错误: %v", um)
	}
	if r.Replacements() != 3 {
		t.Fatalf("Replacements 应为 3, got %d", r.Replacements())
	}
	if (Report{}).Unmatched() != nil {
		t.Fatalf("空报告应返回 nil")
	}
}

// TestDocumentWithText 验证替换正文不影响原值。
func TestDocumentWithText(t *testing.T) {
	d := Document{ID: "a.tsx", Path: "a.tsx", Text: "old"}
	n := d.WithText("new")
	if d.Text != "old" || n.Text != "new" || n.Path != d.Path {
		t.Fatalf("WithText 行为错误: %+v %+v", d, n)
	}
}
