package lease

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// File 基于 flock 的文件租约，同一主机的多个进程互斥
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Name() string { return "file" }

func (f *File) Acquire(context.Context) (func(), error) {
	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建锁文件目录失败: %w", err)
		}
	}
	lock := flock.New(f.path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("获取文件锁失败: %w", err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return func() { _ = lock.Unlock() }, nil
}
