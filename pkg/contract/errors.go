package contract

import (
	"errors"
	"fmt"
	"strings"
)

// 最小错误分类（用于上层策略判定）。
var (
	// ErrPathInvalid: 路径无效（目录、非常规文件或空路径）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrInvalidInput: 参数或规则本身非法（空锚点、空 from、未知编码等）。
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵）。
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrMarkerNotFound: 区间锚点缺失或顺序错误（硬错误，不得写出）。
	ErrMarkerNotFound = errors.New("marker not found")
	// ErrResidualToken: 草稿转换后仍残留伪语法 token。
	ErrResidualToken = errors.New("residual token")
	// ErrRuleNoMatch: 规则零命中；默认仅作诊断，严格模式下升级为错误。
	ErrRuleNoMatch = errors.New("rule matched nothing")
)

// MarkerRole 标识锚点在区间中的角色。
type MarkerRole string

const (
	RoleStart MarkerRole = "start"
	RoleEnd   MarkerRole = "end"
)

// MarkerNotFoundError 携带缺失的锚点文本，便于向操作者报告。
type MarkerNotFoundError struct {
	Role   MarkerRole
	Marker string
	// AfterStart: end 锚点存在，但未出现在 start 之后。
	AfterStart bool
}

func (e *MarkerNotFoundError) Error() string {
	if e.AfterStart {
		return fmt.Sprintf("%s marker %q not found after start marker", e.Role, e.Marker)
	}
	return fmt.Sprintf("%s marker %q not found", e.Role, e.Marker)
}

func (e *MarkerNotFoundError) Is(target error) bool { return target == ErrMarkerNotFound }

// ResidualTokenError 列出校验时仍残留的伪语法 token。
type ResidualTokenError struct {
	Tokens []string
}

func (e *ResidualTokenError) Error() string {
	q := make([]string, len(e.Tokens))
	for i, t := range e.Tokens {
		q[i] = fmt.Sprintf("%q", t)
	}
	return "residual tokens: " + strings.Join(q, ", ")
}

func (e *ResidualTokenError) Is(target error) bool { return target == ErrResidualToken }
