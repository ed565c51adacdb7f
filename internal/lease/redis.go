package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// 只删除自己持有的 key
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Redis SET NX PX 租约，ttl 兜底进程崩溃后的释放
type Redis struct {
	rdb *goredis.Client
	key string
	ttl time.Duration
}

func NewRedis(addr, key string, ttl time.Duration) (*Redis, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisWithClient(rdb, key, ttl), nil
}

func NewRedisWithClient(rdb *goredis.Client, key string, ttl time.Duration) *Redis {
	if key == "" {
		key = "channelsync:generation"
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Redis{rdb: rdb, key: key, ttl: ttl}
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := r.rdb.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("获取 redis 租约失败: %w", err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, r.rdb, []string{r.key}, token).Err()
	}, nil
}

// Close 关闭 redis 连接
func (r *Redis) Close() error { return r.rdb.Close() }
