package service

import (
	"context"
	"encoding/json"
	"time"

	"vinow/internal/model"
	"vinow/internal/repository"
)

// OrderEvent 订单生命周期事件，经发件箱转发到 Kafka
type OrderEvent struct {
	EventType   string    `json:"event_type"`
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	MerchantID  string    `json:"merchant_id"`
	Amount      int64     `json:"amount"`
	Status      string    `json:"status"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// enqueueOrderEvent 在当前事务内写入发件箱消息，与业务数据同生共死
func enqueueOrderEvent(ctx context.Context, store repository.DataStore, topic, eventType string, order *model.Order) error {
	event := OrderEvent{
		EventType:   eventType,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		MerchantID:  order.MerchantID,
		Amount:      order.FinalAmount,
		Status:      order.Status,
		OccurredAt:  time.Now(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return store.Outbox().Create(ctx, &model.OutboxMessage{
		MessageKey: order.ID,
		EventType:  eventType,
		Topic:      topic,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	})
}
