package diag

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 为结构化日志器：单行 JSON（zap）写入轮转文件。
// 字段约定：comp/stage/code/dur_ms/count/file_id/step/kv，以及固定的 corr_id。
type Logger struct {
	z    *zap.Logger
	sink *RotatingFile
}

// NewLogger 通过配置的 level 初始化，并将日志写入 logs/srcmend-current.log，10m 轮转。
func NewLogger(corrID, level string) *Logger {
	sink := NewRotatingFile("logs", 10*1024*1024)
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.Lock(sink), parseLevel(level))
	l := NewLoggerWithCore(corrID, core)
	l.sink = sink
	return l
}

// NewLoggerWithCore 使用给定 core 构造（测试中可传入 zaptest/observer）。
func NewLoggerWithCore(corrID string, core zapcore.Core) *Logger {
	z := zap.New(core, zap.ErrorOutput(zapcore.Lock(os.Stderr)))
	if corrID != "" {
		z = z.With(zap.String("corr_id", corrID))
	}
	return &Logger{z: z}
}

// Nop 返回丢弃一切输出的 Logger。
func Nop() *Logger { return &Logger{z: zap.NewNop()} }

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     func(t time.Time, enc zapcore.PrimitiveArrayEncoder) { enc.AppendString(t.UTC().Format(time.RFC3339)) },
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
}

func parseLevel(s string) zapcore.Level {
	lv, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zapcore.InfoLevel
	}
	return lv
}

// Sync 刷新缓冲并关闭文件句柄。
func (l *Logger) Sync() error {
	if l == nil || l.z == nil {
		return nil
	}
	err := l.z.Sync()
	if l.sink != nil {
		if cerr := l.sink.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Enabled 判断某级别是否会输出。
func (l *Logger) Enabled(lv zapcore.Level) bool {
	return l != nil && l.z != nil && l.z.Core().Enabled(lv)
}

type event struct {
	comp   string
	stage  string // start|finish|error|warn
	code   string
	durMS  int64
	count  int64
	fileID string
	step   string
	kv     map[string]string
}

func (l *Logger) log(lv zapcore.Level, msg string, ev event) {
	if l == nil || l.z == nil {
		return
	}
	ce := l.z.Check(lv, msg)
	if ce == nil {
		return
	}
	fields := make([]zap.Field, 0, 8)
	fields = append(fields, zap.String("comp", ev.comp), zap.String("stage", ev.stage))
	if ev.code != "" {
		fields = append(fields, zap.String("code", ev.code))
	}
	if ev.durMS != 0 {
		fields = append(fields, zap.Int64("dur_ms", ev.durMS))
	}
	if ev.count != 0 {
		fields = append(fields, zap.Int64("count", ev.count))
	}
	if ev.fileID != "" {
		fields = append(fields, zap.String("file_id", ev.fileID))
	}
	if ev.step != "" {
		fields = append(fields, zap.String("step", ev.step))
	}
	if len(ev.kv) > 0 {
		fields = append(fields, zap.Any("kv", ev.kv))
	}
	ce.Write(fields...)
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	l.log(zapcore.InfoLevel, msg, event{comp: comp, stage: "start"})
	return &Timer{l: l, comp: comp, t0: time.Now()}
}

// StartWith 记录带 file_id/step 的 start。
func (l *Logger) StartWith(comp, msg, fileID, step string) *Timer {
	l.log(zapcore.InfoLevel, msg, event{comp: comp, stage: "start", fileID: fileID, step: step})
	return &Timer{l: l, comp: comp, fileID: fileID, step: step, t0: time.Now()}
}

// StartWithKV 记录带 file_id/step 与键值的 start。
func (l *Logger) StartWithKV(comp, msg, fileID, step string, kv map[string]string) *Timer {
	l.log(zapcore.InfoLevel, msg, event{comp: comp, stage: "start", fileID: fileID, step: step, kv: kv})
	return &Timer{l: l, comp: comp, fileID: fileID, step: step, t0: time.Now()}
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.log(zapcore.ErrorLevel, msg, event{comp: comp, stage: "error", code: code, durMS: since(durSince)})
}

// ErrorWith 支持 file_id/step。
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, fileID, step string) {
	l.log(zapcore.ErrorLevel, msg, event{comp: comp, stage: "error", code: code, durMS: since(durSince), fileID: fileID, step: step})
}

// ErrorWithKV 支持附带键值对（例如缺失的锚点、残留 token）。
func (l *Logger) ErrorWithKV(comp, code, msg string, durSince *time.Time, fileID, step string, kv map[string]string) {
	l.log(zapcore.ErrorLevel, msg, event{comp: comp, stage: "error", code: code, durMS: since(durSince), fileID: fileID, step: step, kv: kv})
}

// WarnWithKV 记录软诊断（解码丢弃、零命中规则、替换表告警）。
func (l *Logger) WarnWithKV(comp, code, msg, fileID, step string, kv map[string]string) {
	l.log(zapcore.WarnLevel, msg, event{comp: comp, stage: "warn", code: code, fileID: fileID, step: step, kv: kv})
}

// InfoFinish 在已有起点的情况下记录 finish。
func (l *Logger) InfoFinish(comp, msg string, start time.Time, count int64) {
	l.log(zapcore.InfoLevel, msg, event{comp: comp, stage: "finish", durMS: time.Since(start).Milliseconds(), count: count})
}

// DebugStart 输出调试级别的“start”类事件（仅在 level=debug 时生效）。
func (l *Logger) DebugStart(comp, msg, fileID, step string, kv map[string]string) {
	l.log(zapcore.DebugLevel, msg, event{comp: comp, stage: "start", fileID: fileID, step: step, kv: kv})
}

func since(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return time.Since(*t).Milliseconds()
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l      *Logger
	comp   string
	fileID string
	step   string
	t0     time.Time
}

// Finish 记录 finish；可选 count。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	t.l.log(zapcore.InfoLevel, msg, event{comp: t.comp, stage: "finish", durMS: time.Since(t.t0).Milliseconds(), count: count, fileID: t.fileID, step: t.step})
}

// Elapsed 返回自 start 起的耗时。
func (t *Timer) Elapsed() time.Duration {
	if t == nil {
		return 0
	}
	return time.Since(t.t0)
}
