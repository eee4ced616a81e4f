package cache

import (
	"context"
	"fmt"
	"time"
)

// Backend names accepted by New.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Cache 文档缓存接口. GetBytes returns nil without an error on a miss.
type Cache interface {
	// GetBytes 获取字节数组
	GetBytes(ctx context.Context, key string) ([]byte, error)

	// SetBytes 设置字节数组. A zero ttl uses the default.
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete 删除缓存
	Delete(ctx context.Context, key string) error

	// Close 关闭连接
	Close() error
}

// CacheOptions 缓存选项
type CacheOptions struct {
	Backend string

	// Redis 连接
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// 默认过期时间
	DefaultTTL time.Duration

	// 键前缀
	KeyPrefix string

	// 内存缓存的最大条目数
	MaxSize int64
}

// New builds the configured backend. BackendNone (or an empty backend) returns
// a nil Cache, which disables caching.
func New(opts CacheOptions) (Cache, error) {
	if opts.DefaultTTL == 0 {
		opts.DefaultTTL = 5 * time.Minute
	}
	switch opts.Backend {
	case "", BackendNone:
		return nil, nil
	case BackendMemory:
		return NewMemoryCache(&opts), nil
	case BackendRedis:
		return NewRedisCache(opts.RedisAddr, opts.RedisPassword, opts.RedisDB, &opts), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}
