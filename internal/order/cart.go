package order

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"bookstore/internal/model"
)

// GetCart 取回身份对应的 ACTIVE 购物车（含条目）。不存在时返回 ErrCartNotFound。
func (s *Service) GetCart(ctx context.Context, id Identity, guestToken string) (*model.Cart, error) {
	var cart model.Cart
	q := s.db.WithContext(ctx).Preload("Items")
	var err error
	if id.UserID != 0 {
		err = q.Where("user_id = ? AND status = ?", id.UserID, model.CartActive).First(&cart).Error
	} else if guestToken != "" {
		err = q.Where("guest_token = ? AND user_id = 0 AND status = ?", guestToken, model.CartActive).First(&cart).Error
	} else {
		return nil, ErrCartNotFound
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCartNotFound
		}
		return nil, err
	}
	return &cart, nil
}

// AddItem 向身份对应的 ACTIVE 购物车加书（不存在则建车）。
// 加购不校验库存——库存只在支付完成时刻裁决。
func (s *Service) AddItem(ctx context.Context, id Identity, guestToken string, bookID uint, qty int) (*model.Cart, error) {
	if qty < 1 {
		qty = 1
	}
	if id.UserID == 0 && guestToken == "" {
		return nil, ErrCartNotFound
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findBook(tx, bookID); err != nil {
			return err
		}
		cart, err := ensureActiveCart(tx, id.UserID, guestToken)
		if err != nil {
			return err
		}

		var item model.CartItem
		err = tx.Where("cart_id = ? AND book_id = ?", cart.ID, bookID).First(&item).Error
		switch {
		case err == nil:
			if err := tx.Model(&item).Update("quantity", item.Quantity+qty).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			item = model.CartItem{CartID: cart.ID, BookID: bookID, Quantity: qty}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
		default:
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, id, guestToken)
}

// MergeGuestCart 登录时把游客购物车并入用户购物车，同一事务内完成：
//   - 游客车不存在或已非 ACTIVE → 幂等空操作（重复登录回放不报错）
//   - 同书条目数量相加，合并数量封顶当前库存（下限 1）
//   - 游客条目消费掉，游客车退役为 INACTIVE
func (s *Service) MergeGuestCart(ctx context.Context, userID uint, guestToken string) (*model.Cart, error) {
	if userID == 0 || guestToken == "" {
		return nil, ErrCartNotFound
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var guest model.Cart
		err := forUpdate(tx).
			Where("guest_token = ? AND user_id = 0 AND status = ?", guestToken, model.CartActive).
			First(&guest).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil // 已合并过或从未存在，幂等退出
			}
			return err
		}

		userCart, err := ensureActiveCart(tx, userID, "")
		if err != nil {
			return err
		}

		var guestItems []model.CartItem
		if err := tx.Where("cart_id = ?", guest.ID).Find(&guestItems).Error; err != nil {
			return err
		}

		for _, gi := range guestItems {
			book, err := findBook(tx, gi.BookID)
			if err != nil {
				if errors.Is(err, ErrBookNotFound) {
					continue // 书已下架，丢弃该条目
				}
				return err
			}

			var ui model.CartItem
			err = tx.Where("cart_id = ? AND book_id = ?", userCart.ID, gi.BookID).First(&ui).Error
			switch {
			case err == nil:
				merged := capQuantity(ui.Quantity+gi.Quantity, book.Stock)
				if err := tx.Model(&ui).Update("quantity", merged).Error; err != nil {
					return err
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				item := model.CartItem{
					CartID:   userCart.ID,
					BookID:   gi.BookID,
					Quantity: capQuantity(gi.Quantity, book.Stock),
				}
				if err := tx.Create(&item).Error; err != nil {
					return err
				}
			default:
				return err
			}
		}

		if err := tx.Unscoped().Where("cart_id = ?", guest.ID).Delete(&model.CartItem{}).Error; err != nil {
			return err
		}
		return tx.Model(&guest).Update("status", model.CartInactive).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("guest cart merged", zap.Uint("user_id", userID))
	return s.GetCart(ctx, Identity{UserID: userID}, "")
}

// ensureActiveCart 取回或创建归属者的 ACTIVE 购物车。
func ensureActiveCart(tx *gorm.DB, userID uint, guestToken string) (*model.Cart, error) {
	var cart model.Cart
	q := tx.Where("status = ?", model.CartActive)
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	} else {
		q = q.Where("guest_token = ? AND user_id = 0", guestToken)
	}
	err := q.First(&cart).Error
	switch {
	case err == nil:
		return &cart, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		cart = model.Cart{UserID: userID, GuestToken: guestToken, Status: model.CartActive}
		if err := tx.Create(&cart).Error; err != nil {
			return nil, err
		}
		return &cart, nil
	default:
		return nil, err
	}
}

// capQuantity 合并数量封顶当前库存，下限 1。
// 库存为 0 时保留 1 件：条目留在车里让用户看见，库存由支付完成时刻裁决。
func capQuantity(qty int, stock int64) int {
	if int64(qty) > stock {
		qty = int(stock)
	}
	if qty < 1 {
		qty = 1
	}
	return qty
}
