package filesystem

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"srcmend/pkg/contract"
)

// StdinPath 表示从 STDIN 读取；对应 Document.Path 为空，写回时输出到 STDOUT。
const StdinPath = "-"

// Options 为 FileSystem Reader 的可选配置（最小必要）。
type Options struct {
	// BufSize 为读缓冲区大小（字节）。默认 64KiB。
	BufSize int `json:"buf_size"`
	// MaxBytes: 单个文件的大小上限；<=0 表示不限制。
	MaxBytes int64 `json:"max_bytes"`
}

// FileSystem 一次加载一个完整文件（或 STDIN）为 Document。
type FileSystem struct {
	bufSize  int
	maxBytes int64
}

// New 创建 FileSystem Reader。
func New(opts *Options) *FileSystem {
	const defaultBuf = 64 * 1024
	r := &FileSystem{bufSize: defaultBuf}
	if opts != nil {
		if opts.BufSize > 0 {
			r.bufSize = opts.BufSize
		}
		r.maxBytes = opts.MaxBytes
	}
	return r
}

var _ contract.Reader = (*FileSystem)(nil)

// Load 读取 path 的全部内容。
// 符号链接跟随到目标；目标必须是常规文件，目录等返回 ErrPathInvalid。
func (r *FileSystem) Load(ctx context.Context, path string) (contract.Document, error) {
	select {
	case <-ctx.Done():
		return contract.Document{}, ctx.Err()
	default:
	}
	if strings.TrimSpace(path) == "" {
		return contract.Document{}, fmt.Errorf("%w: empty path", contract.ErrPathInvalid)
	}

	if path == StdinPath {
		// 统一缓冲策略：STDIN 也使用 bufio.Reader 封装
		text, err := r.readAll(ctx, newBufferedCloser(io.NopCloser(os.Stdin), r.bufSize))
		if err != nil {
			return contract.Document{}, err
		}
		return contract.Document{ID: "stdin", Text: text}, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return contract.Document{}, err
	}
	if !info.Mode().IsRegular() {
		return contract.Document{}, fmt.Errorf("%w: %s is not a regular file", contract.ErrPathInvalid, path)
	}
	if r.maxBytes > 0 && info.Size() > r.maxBytes {
		return contract.Document{}, fmt.Errorf("%w: %s is %d bytes, limit %d", contract.ErrInvalidInput, path, info.Size(), r.maxBytes)
	}
	f, err := os.Open(path)
	if err != nil {
		return contract.Document{}, err
	}
	brc := newBufferedCloser(f, r.bufSize)
	defer brc.Close()

	text, err := r.readAll(ctx, brc)
	if err != nil {
		return contract.Document{}, err
	}
	return contract.Document{ID: contract.NormalizeFileID(path), Path: path, Text: text}, nil
}

func (r *FileSystem) readAll(ctx context.Context, rc io.Reader) (string, error) {
	var src io.Reader = &ctxReader{ctx: ctx, r: rc}
	if r.maxBytes > 0 {
		// 多读一个字节用于判断是否超限（STDIN 无法预先 Stat）
		src = io.LimitReader(src, r.maxBytes+1)
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, src); err != nil {
		return "", err
	}
	if r.maxBytes > 0 && int64(sb.Len()) > r.maxBytes {
		return "", fmt.Errorf("%w: input exceeds %d bytes", contract.ErrInvalidInput, r.maxBytes)
	}
	// 文档按 UTF-8 载入；非法字节不做静默替换
	if !utf8.ValidString(sb.String()) {
		return "", fmt.Errorf("%w: input is not valid UTF-8", contract.ErrInvalidInput)
	}
	return sb.String(), nil
}

// ctxReader: 在每次 Read 前检查 ctx 是否已取消。
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	select {
	case <-cr.ctx.Done():
		return 0, cr.ctx.Err()
	default:
	}
	return cr.r.Read(p)
}

// bufferedCloser 将 bufio.Reader 与底层 Closer 组合为 ReadCloser。
type bufferedCloser struct {
	*bufio.Reader
	c io.Closer
}

func newBufferedCloser(c io.ReadCloser, bufSize int) *bufferedCloser {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	return &bufferedCloser{Reader: bufio.NewReaderSize(c, bufSize), c: c}
}

func (b *bufferedCloser) Close() error { return b.c.Close() }
