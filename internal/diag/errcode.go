package diag

import (
	"context"
	"errors"
	"os"

	"srcmend/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志/指标汇总，与退出码解耦。
type Code string

const (
	CodeUnknown   Code = "unknown"
	CodeInvariant Code = "invariant"
	CodeMarker    Code = "marker"
	CodeResidual  Code = "residual"
	CodeNoMatch   Code = "no_match"
	CodeDecode    Code = "decode_loss"
	CodeLint      Code = "lint"
	CodeConfig    Code = "config"
	CodeCancel    Code = "cancel"
	CodeIO        Code = "io"
)

// Classify 将错误归为最小分类。
// 说明：仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
// 配置错误由调用方直接标记为 CodeConfig。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	// 取消/超时优先
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	switch {
	case errors.Is(err, contract.ErrMarkerNotFound):
		return CodeMarker
	case errors.Is(err, contract.ErrResidualToken):
		return CodeResidual
	case errors.Is(err, contract.ErrRuleNoMatch):
		return CodeNoMatch
	case errors.Is(err, contract.ErrInvariantViolation),
		errors.Is(err, contract.ErrInvalidInput),
		errors.Is(err, contract.ErrPathInvalid):
		return CodeInvariant
	}
	// I/O
	var perr *os.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	var lerr *os.LinkError
	if errors.As(err, &lerr) {
		return CodeIO
	}
	return CodeUnknown
}
