package order

import (
	"errors"

	"gorm.io/gorm"

	"bookstore/internal/model"
)

// Ownership 回答“X 是否存在、是否归 Y 所有、是否可用”这类前置问题，
// 把跨表归属判断从业务规则代码里分离出来。答案为“否”是请求级拒绝，不是系统故障。
type Ownership interface {
	// AddressOwnedBy 地址存在且归属该用户。
	AddressOwnedBy(tx *gorm.DB, addressID, userID uint) error
	// ActiveUser 用户存在且处于 ACTIVE。
	ActiveUser(tx *gorm.DB, userID uint) error
	// CartOwnedBy 购物车可由该请求者结算：非游客车，且归本人（或管理员代操作）。
	CartOwnedBy(cart *model.Cart, id Identity) error
}

// gormOwnership 默认实现，直接查库。
type gormOwnership struct{}

func (gormOwnership) AddressOwnedBy(tx *gorm.DB, addressID, userID uint) error {
	var addr model.Address
	if err := tx.First(&addr, addressID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAddressNotFound
		}
		return err
	}
	if addr.UserID != userID {
		return ErrAddressNotOwned
	}
	return nil
}

func (gormOwnership) CartOwnedBy(cart *model.Cart, id Identity) error {
	if cart.UserID == 0 {
		return ErrCartGuestOwned
	}
	if cart.UserID != id.UserID && !id.IsAdmin() {
		return ErrCartNotOwned
	}
	return nil
}

func (gormOwnership) ActiveUser(tx *gorm.DB, userID uint) error {
	var u model.User
	if err := tx.First(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if u.Status != model.UserActive {
		return ErrUserInactive
	}
	return nil
}
