package order

import (
	"context"
	"time"

	"go.uber.org/zap"

	"bookstore/internal/model"
)

// EventType 订单生命周期事件。
type EventType string

const (
	EventOrderCreated     EventType = "order.created"
	EventOrderCancelled   EventType = "order.cancelled"
	EventPaymentCompleted EventType = "payment.completed"
)

// Event 发往通知链路的订单事件。只在事务提交之后发布，
// 事件本身不参与金额/库存一致性，发布失败只记日志。
type Event struct {
	Type       EventType           `json:"type"`
	OrderNo    string              `json:"order_no"`
	UserID     uint                `json:"user_id"`
	Amount     int64               `json:"amount"`
	Method     model.PaymentMethod `json:"method,omitempty"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// Emitter 事件出口，由 queue.Outbox 实现。
type Emitter interface {
	Emit(ctx context.Context, e Event) error
}

// emit 尽力而为地发布事件。
func (s *Service) emit(ctx context.Context, e Event) {
	if s.events == nil {
		return
	}
	e.OccurredAt = s.now()
	if err := s.events.Emit(ctx, e); err != nil {
		s.log.Warn("emit order event",
			zap.String("type", string(e.Type)),
			zap.String("order_no", e.OrderNo),
			zap.Error(err))
	}
}
