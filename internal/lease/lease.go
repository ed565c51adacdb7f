// Package lease 生成任务的运行租约。同一时间只允许一个持有者执行生成，
// 单进程用内存锁，多进程共享磁盘时用文件锁，多节点部署用 redis。
package lease

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ChannelSync/internal/config"
)

// ErrHeld 租约已被其他运行持有
var ErrHeld = errors.New("运行租约已被占用")

// Lease 非阻塞获取，成功时返回释放函数
type Lease interface {
	Acquire(ctx context.Context) (release func(), err error)
	Name() string
}

// New 按配置选择后端
func New(cfg config.LeaseConfig) (Lease, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocal(), nil
	case "file":
		return NewFile(cfg.FilePath), nil
	case "redis":
		return NewRedis(cfg.RedisAddr, cfg.Key, cfg.TTL)
	default:
		return nil, fmt.Errorf("不支持的租约后端: %s", cfg.Backend)
	}
}

// Local 进程内租约
type Local struct {
	mu sync.Mutex
}

func NewLocal() *Local { return &Local{} }

func (l *Local) Name() string { return "local" }

func (l *Local) Acquire(context.Context) (func(), error) {
	if !l.mu.TryLock() {
		return nil, ErrHeld
	}
	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, nil
}
