package model

import (
	"time"

	"gorm.io/gorm"
)

// Book 书目：价格与库存。
// Stock 只允许支付完成事务内的库存扣减逻辑修改，其他组件一律只读。
type Book struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Title     string `gorm:"size:255;not null" json:"title"`
	Author    string `gorm:"size:128" json:"author"`
	Publisher string `gorm:"size:128" json:"publisher"`
	Price     int64  `gorm:"not null" json:"price"` // 单位：分
	Stock     int64  `gorm:"not null;default:0" json:"stock"`
}

func (Book) TableName() string { return "books" }
