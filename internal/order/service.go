// Package order 实现订单履约核心：下单协议、支付状态机、库存守卫与购物车合并。
// 并发安全完全依赖数据库事务与行锁（多实例部署时进程内互斥没有意义），
// 库存只在支付完成事务内被扣减（先款后货，下单不占库存）。
package order

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service 持有数据库句柄与周边依赖。所有写路径都通过 db.Transaction
// 获得一个事务内句柄并显式向下传递，保证任意出口（含 panic）要么整体提交要么整体回滚。
type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	events Emitter
	own    Ownership

	// gatewayTTL 网关支付尝试的有效期（过期后由下一次发起请求退役重建）。
	gatewayTTL time.Duration
	now        func() time.Time
}

// Option 配置 Service 的可选依赖。
type Option func(*Service)

// WithEmitter 注入生命周期事件发布器（nil 时静默跳过）。
func WithEmitter(e Emitter) Option { return func(s *Service) { s.events = e } }

// WithOwnership 替换归属校验实现，测试时可注入桩。
func WithOwnership(o Ownership) Option { return func(s *Service) { s.own = o } }

// WithGatewayTTL 覆盖网关支付尝试有效期。
func WithGatewayTTL(d time.Duration) Option { return func(s *Service) { s.gatewayTTL = d } }

// WithClock 覆盖时钟，测试过期语义用。
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService 创建订单核心服务。
func NewService(db *gorm.DB, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		db:         db,
		log:        log,
		own:        gormOwnership{},
		gatewayTTL: 15 * time.Minute,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
