package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁
// ============================================================================
//
// 多实例部署时，财务定时任务（日汇总、周结算、日对账、报表清理）
// 只允许一个实例执行。每个任务一把锁，拿不到锁的实例本轮跳过。
//
// 加锁：SET key value NX EX timeout
//   - NX: key 不存在才设置，保证互斥
//   - EX: 过期时间兜底，持锁实例崩溃后锁自动释放
// 释放：Lua 脚本先验 value 再删 key，避免误删别人续上的锁。

var ErrLockFailed = errors.New("获取分布式锁失败")

type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string // 持有者标识，释放时验证
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
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

// Unlock 释放锁
//
// 场景：A 持锁超时自动过期 -> B 拿到锁 -> A 跑完调 Unlock。
// 不验 value 的话 A 会把 B 的锁删掉，所以检查与删除必须原子。
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// NewJobLock 定时任务单飞锁，按任务名维度加锁
//
// 过期时间给足一次全量商户跑批的时长，到期未释放按实例崩溃处理。
func NewJobLock(client *redis.Client, jobName, instanceID string) *DistributedLock {
	key := fmt.Sprintf("job:lock:%s", jobName)
	return NewDistributedLock(client, key, instanceID, 10*time.Minute)
}
