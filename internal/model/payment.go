package model

import (
	"time"

	"gorm.io/gorm"
)

// PaymentMethod 支付方式。COD 为货到付款（运营侧直接确认），
// 其余方式必须经网关回调携带签名证明。
type PaymentMethod string

const (
	MethodCOD        PaymentMethod = "COD"
	MethodCreditCard PaymentMethod = "CREDIT_CARD"
	MethodVNPay      PaymentMethod = "VNPAY"
	MethodMoMo       PaymentMethod = "MOMO"
)

// IsGateway 是否走外部网关对账。
func (m PaymentMethod) IsGateway() bool { return m != MethodCOD }

// PaymentStatus 支付状态机：PENDING → COMPLETED / INACTIVE。
// COMPLETED 后金额、方式等字段一律只读。
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentInactive  PaymentStatus = "INACTIVE"
)

// Payment 支付记录，归属唯一订单。
// 约束：同一订单任意时刻最多一条 PENDING 支付；发起新的网关支付前，
// 旧的未终态支付先被置为 INACTIVE。
type Payment struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	OrderID uint          `gorm:"not null;index" json:"order_id"`
	Method  PaymentMethod `gorm:"size:16;not null;default:COD" json:"method"`
	Amount  int64         `gorm:"not null" json:"amount"` // 单位：分，创建时必须等于订单总额
	Status  PaymentStatus `gorm:"size:16;not null;default:PENDING;index" json:"status"`

	// TxnRef 作为网关侧交易引用与幂等主键（所有支付都会生成）。
	TxnRef string `gorm:"size:64;uniqueIndex;not null" json:"txn_ref"`
	// 网关回调回填的字段。
	GatewayTxnNo string `gorm:"size:64" json:"gateway_txn_no,omitempty"`
	BankCode     string `gorm:"size:32" json:"bank_code,omitempty"`

	PaidAt *time.Time `json:"paid_at,omitempty"`
	// ExpiresAt 仅网关支付设置（创建 +15 分钟）。过期的 PENDING 不被自动取消，
	// 由下一次发起请求先行退役再新建。
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (Payment) TableName() string { return "payments" }
