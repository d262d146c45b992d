package queue

import (
	"context"
	"encoding/json"

	rd "github.com/redis/go-redis/v9"

	"bookstore/internal/order"
)

// Outbox 把订单生命周期事件原子写入 Redis Stream，由 Relay 异步转发 Kafka。
// 事件链路与订单/库存事务完全解耦：写流失败由调用方记日志，不影响主流程。
type Outbox struct {
	rdb    *rd.Client
	stream string
}

// NewOutbox 创建事件出口。
func NewOutbox(rdb *rd.Client, stream string) *Outbox {
	return &Outbox{rdb: rdb, stream: stream}
}

// Emit 实现 order.Emitter：事件整体序列化为 payload 字段，order_no 单列便于排查。
func (o *Outbox) Emit(ctx context.Context, e order.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return o.rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: o.stream,
		Values: map[string]interface{}{
			"order_no": e.OrderNo,
			"payload":  string(payload),
		},
	}).Err()
}
