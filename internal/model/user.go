package model

import (
	"time"

	"gorm.io/gorm"
)

// UserStatus 用户账号状态。
type UserStatus string

const (
	UserActive   UserStatus = "ACTIVE"
	UserInactive UserStatus = "INACTIVE"
)

// UserRole 由上游网关在 JWT 中签发，核心只区分普通用户与管理员。
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// User 用户档案。认证/授权在上游完成，这里只保留下单所需字段。
type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name   string     `gorm:"size:128;not null" json:"name"`
	Email  string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Role   UserRole   `gorm:"size:16;not null;default:user" json:"role"`
	Status UserStatus `gorm:"size:16;not null;default:ACTIVE;index" json:"status"`
}

func (User) TableName() string { return "users" }

// Address 收货地址，归属唯一用户。
type Address struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID    uint   `gorm:"not null;index" json:"user_id"`
	Recipient string `gorm:"size:128;not null" json:"recipient"`
	Phone     string `gorm:"size:32" json:"phone"`
	Line1     string `gorm:"size:255;not null" json:"line1"`
	City      string `gorm:"size:64" json:"city"`
}

func (Address) TableName() string { return "addresses" }
