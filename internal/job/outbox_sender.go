package job

import (
	"context"
	"log"
	"time"

	"vinow/internal/model"
	"vinow/internal/repository"
)

// EventPublisher 事件发送出口，生产环境由 Kafka 生产者实现
type EventPublisher interface {
	Send(topic, key, value string) error
}

// OutboxSender 发件箱转发任务
//
// 轮询 PENDING 消息逐条发往 Kafka，发送成功标记 SENT，
// 失败累加重试次数，超过上限标记 FAILED 等人工介入。
type OutboxSender struct {
	store      repository.DataStore
	publisher  EventPublisher
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
	maxRetries int
}

func NewOutboxSender(store repository.DataStore, publisher EventPublisher, maxRetries int) *OutboxSender {
	return &OutboxSender{
		store:      store,
		publisher:  publisher,
		stopCh:     make(chan struct{}),
		interval:   100 * time.Millisecond,
		batchSize:  100,
		maxRetries: maxRetries,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	log.Println("[OutboxSender] 消息发送任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[OutboxSender] 收到停止信号，任务退出")
			return
		case <-s.stopCh:
			log.Println("[OutboxSender] 任务停止")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

func (s *OutboxSender) processPendingMessages(ctx context.Context) {
	messages, err := s.store.Outbox().ListPending(ctx, s.batchSize)
	if err != nil {
		log.Printf("[OutboxSender] 查询消息失败: %v", err)
		return
	}

	for _, msg := range messages {
		s.sendMessage(ctx, msg)
	}
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) {
	err := s.publisher.Send(msg.Topic, msg.MessageKey, msg.Payload)

	if err == nil {
		if updateErr := s.store.Outbox().MarkSent(ctx, msg.ID); updateErr != nil {
			log.Printf("[OutboxSender] 更新消息状态失败: id=%d, err=%v", msg.ID, updateErr)
		} else {
			log.Printf("[OutboxSender] 消息发送成功: id=%d, topic=%s, key=%s", msg.ID, msg.Topic, msg.MessageKey)
		}
		return
	}

	log.Printf("[OutboxSender] 消息发送失败: id=%d, err=%v", msg.ID, err)

	if err := s.store.Outbox().IncrementRetry(ctx, msg.ID); err != nil {
		log.Printf("[OutboxSender] 增加重试次数失败: id=%d, err=%v", msg.ID, err)
	}

	if msg.RetryCount+1 >= s.maxRetries {
		if err := s.store.Outbox().MarkFailed(ctx, msg.ID); err != nil {
			log.Printf("[OutboxSender] 标记消息失败状态失败: id=%d, err=%v", msg.ID, err)
		} else {
			log.Printf("[OutboxSender] 消息超过最大重试次数，标记为失败: id=%d", msg.ID)
		}
	}
}
