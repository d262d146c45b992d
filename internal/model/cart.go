package model

import (
	"time"

	"gorm.io/gorm"
)

// CartStatus 购物车状态机：ACTIVE → CHECKED_OUT / INACTIVE。
type CartStatus string

const (
	CartActive     CartStatus = "ACTIVE"
	CartCheckedOut CartStatus = "CHECKED_OUT"
	CartInactive   CartStatus = "INACTIVE"
)

// Cart 购物车。登录用户以 UserID 归属，游客以 GuestToken 归属（UserID=0）。
// 约束：同一用户 / 同一游客 token 最多一个 ACTIVE 购物车。
type Cart struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID     uint       `gorm:"index" json:"user_id"`
	GuestToken string     `gorm:"size:64;index" json:"-"`
	Status     CartStatus `gorm:"size:16;not null;default:ACTIVE;index" json:"status"`

	Items []CartItem `gorm:"foreignKey:CartID" json:"items,omitempty"`
}

func (Cart) TableName() string { return "carts" }

// CartItem 购物车条目。结算时被消费（删除），不留历史。
type CartItem struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	CartID   uint `gorm:"not null;index" json:"cart_id"`
	BookID   uint `gorm:"not null;index" json:"book_id"`
	Quantity int  `gorm:"not null;default:1" json:"quantity"`
}

func (CartItem) TableName() string { return "cart_items" }
