package order

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"bookstore/internal/model"
)

// GetOrder 订单聚合：订单 + 全部订单行 + 支付记录（新在前）。
// 非所有者（且非管理员）一律 ErrOrderNotFound，不暴露订单存在性。
func (s *Service) GetOrder(ctx context.Context, id Identity, orderID uint) (*model.Order, error) {
	var o model.Order
	err := s.db.WithContext(ctx).
		Preload("Lines").
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("id DESC") }).
		First(&o, orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if o.UserID != id.UserID && !id.IsAdmin() {
		return nil, ErrOrderNotFound
	}
	return &o, nil
}

// ListOrders 用户看自己的订单，管理员看全部（新在前）。
func (s *Service) ListOrders(ctx context.Context, id Identity) ([]model.Order, error) {
	q := s.db.WithContext(ctx).
		Preload("Lines").
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("id DESC") }).
		Order("id DESC")
	if !id.IsAdmin() {
		q = q.Where("user_id = ?", id.UserID)
	}
	var orders []model.Order
	if err := q.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// ListPayments 订单的支付记录（新在前），归属校验同 GetOrder。
func (s *Service) ListPayments(ctx context.Context, id Identity, orderID uint) ([]model.Payment, error) {
	o, err := s.GetOrder(ctx, id, orderID)
	if err != nil {
		return nil, err
	}
	return o.Payments, nil
}
