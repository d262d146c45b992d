package model

import (
	"time"

	"gorm.io/gorm"
)

// OrderStatus 订单状态机：PENDING → COMPLETED / INACTIVE，两个终态不可再迁移。
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderInactive  OrderStatus = "INACTIVE"
)

// Order 订单聚合根。
// TotalAmount 在创建时按当时价格快照计算，之后不再随书目价格变动。
// 订单只软标记（状态迁移），从不硬删除。
type Order struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	OrderNo     string      `gorm:"size:64;uniqueIndex;not null" json:"order_no"`
	UserID      uint        `gorm:"not null;index" json:"user_id"`
	AddressID   uint        `gorm:"not null" json:"address_id"`
	TotalAmount int64       `gorm:"not null" json:"total_amount"` // 单位：分
	Status      OrderStatus `gorm:"size:16;not null;default:PENDING;index" json:"status"`
	// CancelReason 仅在 INACTIVE 时有值。
	CancelReason string     `gorm:"size:255" json:"cancel_reason,omitempty"`
	PlacedAt     time.Time  `gorm:"not null" json:"placed_at"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`

	Lines    []OrderLine `gorm:"foreignKey:OrderID" json:"lines,omitempty"`
	Payments []Payment   `gorm:"foreignKey:OrderID" json:"payments,omitempty"`
}

func (Order) TableName() string { return "orders" }

// OrderLine 订单行：下单时刻书目单价与数量的不可变快照。
// 价格快照意味着后续改价、下架都不影响历史订单。
type OrderLine struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	OrderID   uint   `gorm:"not null;index" json:"order_id"`
	BookID    uint   `gorm:"not null;index" json:"book_id"`
	Title     string `gorm:"size:255" json:"title"`
	Quantity  int    `gorm:"not null;default:1" json:"quantity"`
	UnitPrice int64  `gorm:"not null" json:"unit_price"` // 单位：分
}

func (OrderLine) TableName() string { return "order_lines" }
