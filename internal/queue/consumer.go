package queue

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"bookstore/internal/order"
)

// Consumer 消费订单事件并触发客户通知（这里以结构化日志代替真实投递渠道）。
type Consumer struct {
	r   *kafka.Reader
	log *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		log: log,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			return // ctx cancel / 连接断开等
		}

		var e order.Event
		if err := json.Unmarshal(m.Value, &e); err != nil {
			c.log.Warn("consumer unmarshal", zap.Error(err))
			continue
		}

		// 通知幂等性由事件键（订单号 + 事件类型）保障，重复消费只会重复记日志。
		switch e.Type {
		case order.EventOrderCreated:
			c.log.Info("notify: order placed",
				zap.String("order_no", e.OrderNo), zap.Uint("user_id", e.UserID), zap.Int64("amount", e.Amount))
		case order.EventPaymentCompleted:
			c.log.Info("notify: payment received",
				zap.String("order_no", e.OrderNo), zap.Uint("user_id", e.UserID),
				zap.Int64("amount", e.Amount), zap.String("method", string(e.Method)))
		case order.EventOrderCancelled:
			c.log.Info("notify: order cancelled",
				zap.String("order_no", e.OrderNo), zap.Uint("user_id", e.UserID))
		default:
			c.log.Warn("consumer unknown event type", zap.String("type", string(e.Type)))
		}
	}
}
