package job

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"vinow/internal/infrastructure/lock"
)

// ============================================================================
// 定时任务调度器
// ============================================================================
//
// 每个任务注册一个触发时刻（每天几点 / 每周几几点），独立 goroutine
// 计算下一次触发时间后睡到点执行，执行完再算下一次。
//
// 【多实例单飞】
// 配了 Redis 时，触发后先抢 job:lock:<任务名>，抢不到说明别的实例
// 在跑，本轮跳过。没配 Redis（单实例 / 本地开发）直接执行。

type JobFunc func(ctx context.Context) error

type entry struct {
	name    string
	nextRun func(after time.Time) time.Time
	run     JobFunc
}

type Scheduler struct {
	entries    []entry
	redis      *redis.Client // 可为 nil，单实例模式
	instanceID string
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

func NewScheduler(redisClient *redis.Client) *Scheduler {
	return &Scheduler{
		redis:      redisClient,
		instanceID: uuid.NewString(),
		stopCh:     make(chan struct{}),
	}
}

// AddDaily 注册每天 hour 点触发的任务
func (s *Scheduler) AddDaily(name string, hour int, run JobFunc) {
	s.entries = append(s.entries, entry{
		name: name,
		nextRun: func(after time.Time) time.Time {
			next := time.Date(after.Year(), after.Month(), after.Day(), hour, 0, 0, 0, after.Location())
			if !next.After(after) {
				next = next.Add(24 * time.Hour)
			}
			return next
		},
		run: run,
	})
}

// AddWeekly 注册每周 weekday 的 hour 点触发的任务
func (s *Scheduler) AddWeekly(name string, weekday time.Weekday, hour int, run JobFunc) {
	s.entries = append(s.entries, entry{
		name: name,
		nextRun: func(after time.Time) time.Time {
			next := time.Date(after.Year(), after.Month(), after.Day(), hour, 0, 0, 0, after.Location())
			days := (int(weekday) - int(after.Weekday()) + 7) % 7
			next = next.AddDate(0, 0, days)
			if !next.After(after) {
				next = next.AddDate(0, 0, 7)
			}
			return next
		},
		run: run,
	})
}

func (s *Scheduler) Start(ctx context.Context) {
	log.Printf("[Scheduler] 调度器启动: 任务数=%d 实例=%s", len(s.entries), s.instanceID)
	for _, e := range s.entries {
		s.wg.Add(1)
		go s.runLoop(ctx, e)
	}
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	log.Println("[Scheduler] 调度器已停止")
}

func (s *Scheduler) runLoop(ctx context.Context, e entry) {
	defer s.wg.Done()

	for {
		next := e.nextRun(time.Now())
		log.Printf("[Scheduler] 任务 %s 下次触发: %s", e.name, next.Format("2006-01-02 15:04:05"))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}

		s.execute(ctx, e)
	}
}

func (s *Scheduler) execute(ctx context.Context, e entry) {
	if s.redis != nil {
		jobLock := lock.NewJobLock(s.redis, e.name, s.instanceID)
		acquired, err := jobLock.TryLock(ctx)
		if err != nil {
			log.Printf("[Scheduler] 任务 %s 抢锁失败: %v", e.name, err)
			return
		}
		if !acquired {
			log.Printf("[Scheduler] 任务 %s 已由其他实例执行，本轮跳过", e.name)
			return
		}
		defer func() {
			if err := jobLock.Unlock(ctx); err != nil {
				log.Printf("[Scheduler] 任务 %s 释放锁失败: %v", e.name, err)
			}
		}()
	}

	started := time.Now()
	if err := e.run(ctx); err != nil {
		log.Printf("[Scheduler] 任务 %s 执行失败: %v", e.name, err)
		return
	}
	log.Printf("[Scheduler] 任务 %s 执行完成: 耗时=%s", e.name, time.Since(started))
}
