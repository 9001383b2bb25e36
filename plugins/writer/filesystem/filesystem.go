package filesystem

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"srcmend/pkg/contract"
)

// Options: 最小必要选项。
type Options struct {
	// Atomic: 是否使用原子替换（同目录临时文件 + rename）。
	// 默认值：true。未提供该字段时采用原子写；显式 false 可关闭。
	Atomic *bool `json:"atomic,omitempty"`
	// PermFile: 新建文件的权限；已存在的文件保留原权限。为 0 时使用 0644。
	PermFile os.FileMode `json:"perm_file,omitempty"`
	// BufSize: 写缓冲区大小；<=0 使用实现默认。
	BufSize int `json:"buf_size,omitempty"`
	// BackupSuffix: 非空时在覆盖前把原文件另存为 <path><suffix>。
	BackupSuffix string `json:"backup_suffix,omitempty"`
}

// FS 把 Document 整体写回 Document.Path；Path 为空（STDIN 输入）时写到 stdout。
type FS struct {
	atomic  bool
	permF   os.FileMode
	bufSize int
	backup  string
	stdout  io.Writer
}

// New 创建文件系统 Writer 实现。
func New(opts *Options) (*FS, error) {
	if opts == nil {
		opts = &Options{}
	}
	if strings.ContainsAny(opts.BackupSuffix, `/\`) {
		return nil, fmt.Errorf("%w: backup_suffix must not contain path separators", contract.ErrInvalidInput)
	}
	bsz := opts.BufSize
	if bsz <= 0 {
		bsz = 64 * 1024
	}
	pf := opts.PermFile
	if pf == 0 {
		pf = 0o644
	}
	atomic := true
	if opts.Atomic != nil {
		atomic = *opts.Atomic
	}
	return &FS{atomic: atomic, permF: pf, bufSize: bsz, backup: opts.BackupSuffix, stdout: os.Stdout}, nil
}

var _ contract.Writer = (*FS)(nil)

// Write 用 doc.Text 覆盖 doc.Path 的全部内容。
func (w *FS) Write(ctx context.Context, doc contract.Document) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	r := strings.NewReader(doc.Text)
	if doc.Path == "" {
		bw := bufio.NewWriterSize(w.stdout, w.bufSize)
		if _, err := io.Copy(bw, readerWithCtx(ctx, r)); err != nil {
			return err
		}
		return bw.Flush()
	}

	dest, perm, err := w.resolve(doc.Path)
	if err != nil {
		return err
	}
	if w.backup != "" {
		if err := backupFile(dest, dest+w.backup, perm); err != nil {
			return err
		}
	}
	if w.atomic {
		return w.writeAtomic(ctx, dest, perm, r)
	}
	return w.writeOverwrite(ctx, dest, perm, r)
}

// resolve 返回真正要写入的路径与权限：符号链接写到其目标，保持链接本身不变。
func (w *FS) resolve(p string) (string, os.FileMode, error) {
	info, err := os.Stat(p)
	if os.IsNotExist(err) {
		return p, w.permF, nil
	}
	if err != nil {
		return "", 0, err
	}
	if !info.Mode().IsRegular() {
		return "", 0, fmt.Errorf("%w: %s is not a regular file", contract.ErrPathInvalid, p)
	}
	dest, err := filepath.EvalSymlinks(p)
	if err != nil {
		return "", 0, err
	}
	return dest, info.Mode().Perm(), nil
}

func backupFile(src, dst string, perm os.FileMode) error {
	b, err := os.ReadFile(src)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return os.WriteFile(dst, b, perm)
}

func (w *FS) writeOverwrite(ctx context.Context, dest string, perm os.FileMode, r io.Reader) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	// 确保及时关闭
	defer f.Close()

	bw := bufio.NewWriterSize(f, w.bufSize)
	if _, err := io.Copy(bw, readerWithCtx(ctx, r)); err != nil {
		return err
	}
	return bw.Flush()
}

func (w *FS) writeAtomic(ctx context.Context, dest string, perm os.FileMode, r io.Reader) error {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	// CreateTemp 固定为 0600，改为目标权限
	_ = os.Chmod(tmpPath, perm)

	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	bw := bufio.NewWriterSize(tmp, w.bufSize)
	if _, err := io.Copy(bw, readerWithCtx(ctx, r)); err != nil {
		_ = bw.Flush()
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	// 平台特定的原子替换（或最佳努力）：
	if err := osReplace(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	// 最佳努力：在部分平台同步父目录，提升崩溃安全性
	_ = syncDir(dir)
	return nil
}

// readerWithCtx: 在每次 Read 前检查 ctx 是否已取消。
func readerWithCtx(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

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
