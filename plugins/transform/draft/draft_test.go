package draft

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"srcmend/pkg/contract"
)

func TestTernaryConcrete(t *testing.T) {
	got, hits := Transform("return prev if unchanged else next", []Rule{{Kind: Ternary}})
	if got != "return unchanged ? prev : next" {
		t.Fatalf("got %q", got)
	}
	if len(hits) != 1 || hits[0].Count != 1 {
		t.Fatalf("hits %+v", hits)
	}
}

func TestTernaryLines(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"赋值与分号", "  const x = a if ok else b;", "  const x = ok ? a : b;"},
		{"函数参数", "foo(a if c else g(x), 1)", "foo(c ? a : g(x), 1)"},
		{"仅缩进", "  value if c else other", "  c ? value : other"},
		{"箭头函数", "const f = () => x if y else z", "const f = () => y ? x : z"},
		{"VALUE为调用", "return f(x) if ok else g(y)", "return ok ? f(x) : g(y)"},
		{"VALUE含逗号参数", "const v = pick(a, b) if ok else c", "const v = ok ? pick(a, b) : c"},
		{"VALUE为字符串", "const s = 'a, b' if ok else 'c'", "const s = ok ? 'a, b' : 'c'"},
		{"字符串内的if", `const s = "x if y" if ok else "z"`, `const s = ok ? "x if y" : "z"`},
		{"OTHER含字符串逗号", "setLabel(a if ok else 'b, c')", "setLabel(ok ? a : 'b, c')"},
		{"比较运算不是leader", "const eq = a == b if c else d", "const eq = c ? a == b : d"},
		{"嵌套括号", "  return (a[0] + g(b)) if ok else {}", "  return ok ? (a[0] + g(b)) : {}"},
		{"无else", "a if b", "a if b"},
		{"语句if", "  if x:", "  if x:"},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := Transform(tt.in, []Rule{{Kind: Ternary}})
			if got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestLiteralWordAndGuard(t *testing.T) {
	got, hits := Transform("pass; password; bypass", []Rule{{Kind: Literal, From: "pass", To: "X", Word: true}})
	if got != "X; password; bypass" || hits[0].Count != 1 {
		t.Fatalf("word: got %q %+v", got, hits)
	}

	in := "a == b; c === d; e !== f"
	got, hits = Transform(in, []Rule{{Kind: Literal, From: "==", To: "===", Guard: "=!"}})
	if got != "a === b; c === d; e !== f" || hits[0].Count != 1 {
		t.Fatalf("guard: got %q %+v", got, hits)
	}
	// 再跑一次不应再有变化
	again, hits := Transform(got, []Rule{{Kind: Literal, From: "==", To: "===", Guard: "=!"}})
	if again != got || hits[0].Count != 0 {
		t.Fatalf("guard 应幂等: %q", again)
	}

	// 不带 guard 时是普通子串替换
	got, hits = Transform("a == b; c === d", []Rule{{From: "==", To: "==="}})
	if got != "a === b; c ==== d" || hits[0].Count != 2 {
		t.Fatalf("plain: got %q %+v", got, hits)
	}
}

func TestOpenBlocks(t *testing.T) {
	in := "try:\n  x()\n} catch (e):\n  y()\nfinally :\n  z()\ncase 1:\n"
	want := "try {\n  x()\n} catch (e) {\n  y()\nfinally {\n  z()\ncase 1:\n"
	got, hits := Transform(in, []Rule{{Kind: OpenBlock, Labels: []string{"try", "catch", "finally"}}})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if hits[0].Count != 3 {
		t.Fatalf("hits %+v", hits)
	}
}

func TestCloseBlocks(t *testing.T) {
	cases := []struct {
		name, in, want string
		n              int
	}{
		{
			name: "已有闭合不补",
			in:   "try {\n  a()\n} catch (e) {\n  b()\n\nfinally {\n  c()\n}",
			want: "try {\n  a()\n} catch (e) {\n  b()\n}\n\nfinally {\n  c()\n}",
			n:    1,
		},
		{
			name: "文末补齐",
			in:   "if (x) {\n  try {\n    a()\n  catch {\n    b()",
			want: "if (x) {\n  try {\n    a()\n  }\n  catch {\n    b()\n  }",
			n:    2,
		},
		{
			name: "嵌套顺序",
			in:   "try {\n  catch {\n    b()",
			want: "try {\n  catch {\n    b()\n  }\n}",
			n:    2,
		},
		{
			name: "无匹配标签",
			in:   "while (x) {\n  a()",
			want: "while (x) {\n  a()",
			n:    0,
		},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got, hits := Transform(tt.in, []Rule{{Kind: CloseBlock, Labels: []string{"try", "catch", "finally"}}})
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("(-want +got):\n%s", diff)
			}
			if hits[0].Count != tt.n {
				t.Fatalf("count %d want %d", hits[0].Count, tt.n)
			}
		})
	}
}

func TestVerify(t *testing.T) {
	if err := Verify("return unchanged ? prev : next", []string{" if ", " else "}); err != nil {
		t.Fatalf("unexpected %v", err)
	}
	err := Verify("x and y if z", []string{" and ", " or ", " if "})
	if !errors.Is(err, contract.ErrResidualToken) {
		t.Fatalf("want residual token, got %v", err)
	}
	var rt *contract.ResidualTokenError
	if !errors.As(err, &rt) || !cmp.Equal(rt.Tokens, []string{" and ", " if "}) {
		t.Fatalf("tokens %+v", rt)
	}
	if err := Verify("anything", nil); err != nil {
		t.Fatalf("无禁用 token 时不应失败: %v", err)
	}
}

func TestParseRules(t *testing.T) {
	rs, err := ParseRules([]byte("rules:\n  - kind: literal\n    from: a\n    to: b\n  - kind: ternary\nforbid: [\" and \"]\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rs.Rules) != 2 || rs.Rules[1].Kind != Ternary || len(rs.Forbid) != 1 {
		t.Fatalf("parsed %+v", rs)
	}
	bad := map[string]string{
		"未知类型":     "rules:\n  - kind: regex\n",
		"空from":     "rules:\n  - kind: literal\n    to: x\n",
		"缺少labels":  "rules:\n  - kind: open-block\n",
		"未知字段":     "rules:\n  - kind: ternary\n    leader: x\n",
		"forbid类型错": "forbid: 3\nrules: {}\n",
	}
	for name, src := range bad {
		if _, err := ParseRules([]byte(src)); err == nil {
			t.Fatalf("%s: 应当失败", name)
		}
	}
}

// 完整改写仓库自带的草稿样例，并通过残留校验。
func TestTransformFetchPendingDraft(t *testing.T) {
	root := filepath.Join("..", "..", "..", "testdata")
	raw, err := os.ReadFile(filepath.Join(root, "drafts", "fetch-pending.txt"))
	if err != nil {
		t.Fatal(err)
	}
	rs, err := LoadRules(filepath.Join(root, "rules", "py-to-ts.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	got, hits := Transform(string(raw), rs.Rules)
	if err := Verify(got, rs.Forbid); err != nil {
		t.Fatalf("verify: %v\n%s", err, got)
	}

	want := strings.NewReplacer(
		"prev.current === next.current and prev.pageSize === next.pageSize and prev.total == next.total",
		"prev.current === next.current && prev.pageSize === next.pageSize && prev.total === next.total",
		"return prev if unchanged else next", "return unchanged ? prev : next",
		"} catch (error):\n        print(", "} catch (error) {\n        console.error(",
		"        # use placeholder\n      finally:\n        pass\n",
		"        message.error('Không thể tải danh sách report chờ xử lý')\n      }\n      finally {\n        setPendingLoading(false)\n      }\n",
	).Replace(string(raw))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}

	counts := map[string]int{}
	for _, h := range hits {
		counts[h.Rule] += h.Count
	}
	for rule, n := range map[string]int{
		`"print"->"console.error"`:           1,
		`"=="->"==="`:                        1,
		`" and "->" && "`:                    2,
		`" or "->" || "`:                     0,
		"ternary":                            1,
		"open-block[try,catch,finally,else]": 2,
		"close-block[catch,finally]":         2,
	} {
		if counts[rule] != n {
			t.Fatalf("%s: %d hits, want %d", rule, counts[rule], n)
		}
	}
}
