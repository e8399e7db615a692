package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 按实体串行化锁
// ============================================================================
//
// 存储文件是全进程共享的可变资源，所有"读当前状态 → 计算 → 写新状态"
// 的序列必须按逻辑实体串行：账本变更按客户编码加锁，目录编辑按目录
// 整体加锁。
//
// 两种实现，接口一致：
//   - LocalLock：进程内按 key 的互斥锁，单实例部署用（默认）
//   - DistributedLock：Redis SetNX + Lua 校验删除，多实例共享一份
//     数据文件（例如网络盘）时使用
//
// 两者都只做有界等待：重试次数用完返回 ErrLockFailed，调用方把它
// 映射成"系统繁忙，请重试"，绝不无限阻塞。
//
// ============================================================================

// ErrLockFailed 有界等待内没拿到锁，可重试
var ErrLockFailed = errors.New("获取锁失败")

// Lock 单个实体锁
type Lock interface {
	// TryLock 非阻塞尝试
	TryLock(ctx context.Context) (bool, error)
	// Lock 带重试的有界等待，超出 maxRetries 返回 ErrLockFailed
	Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error
	// Unlock 释放，只释放自己持有的
	Unlock(ctx context.Context) error
}

// Provider 按业务键构造锁；rdb 为 nil 时退化为进程内锁
type Provider struct {
	rdb   *redis.Client
	local *localRegistry
	ttl   time.Duration
}

func NewProvider(rdb *redis.Client) *Provider {
	return &Provider{
		rdb:   rdb,
		local: newLocalRegistry(),
		ttl:   30 * time.Second,
	}
}

// ForClient 客户维度的账本锁：同一客户的扣款/调额串行，不同客户并发
func (p *Provider) ForClient(code, token string) Lock {
	return p.build(fmt.Sprintf("ledger:lock:client:%s", code), token)
}

// ForCatalog 目录整体一把锁：商品的增改本来就低频
func (p *Provider) ForCatalog(token string) Lock {
	return p.build("catalog:lock", token)
}

func (p *Provider) build(key, token string) Lock {
	if p.rdb != nil {
		return newDistributedLock(p.rdb, key, token, p.ttl)
	}
	return p.local.get(key)
}

// ----------------------------------------------------------------------------
// 进程内实现
// ----------------------------------------------------------------------------

type localRegistry struct {
	mu    sync.Mutex
	locks map[string]*LocalLock
}

func newLocalRegistry() *localRegistry {
	return &localRegistry{locks: make(map[string]*LocalLock)}
}

// get 同一个 key 永远返回同一把锁
func (r *localRegistry) get(key string) *LocalLock {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.locks[key]; ok {
		return l
	}
	l := &LocalLock{ch: make(chan struct{}, 1)}
	r.locks[key] = l
	return l
}

// LocalLock 容量 1 的 channel 当互斥量用，TryLock 不阻塞
type LocalLock struct {
	ch chan struct{}
}

func (l *LocalLock) TryLock(ctx context.Context) (bool, error) {
	select {
	case l.ch <- struct{}{}:
		return true, nil
	default:
		return false, nil
	}
}

func (l *LocalLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		ok, _ := l.TryLock(ctx)
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

func (l *LocalLock) Unlock(ctx context.Context) error {
	select {
	case <-l.ch:
		return nil
	default:
		return nil
	}
}
