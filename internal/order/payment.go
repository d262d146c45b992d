package order

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"bookstore/internal/model"
)

// CompletionSource 标记完成支付的触发方。COD 是运营侧断言的事实，
// 网关完成必须携带签名验证通过的回调；两条路径互不相通。
type CompletionSource string

const (
	SourceCOD     CompletionSource = "COD"
	SourceGateway CompletionSource = "GATEWAY"
)

// GatewayProof 网关回调验签通过后回填到支付记录的字段。
type GatewayProof struct {
	TxnNo    string
	BankCode string
}

// Complete 唯一的支付完成迁移，也是全系统唯一扣库存的地方。
// 整个流程在一个事务内、订单行与涉及的书目行持行锁：
//  1. 订单已 COMPLETED → 幂等返回 ErrAlreadyCompleted（调用方按成功处理，不会二次扣减）
//  2. 找最新 PENDING 支付，没有则报错
//  3. 完成来源与支付方式交叉校验（COD ⟷ COD，网关 ⟷ 非 COD）
//  4. 逐行锁书目并校验库存，任何一行不足整单中止
//  5. 逐行扣减
//  6. 支付置 COMPLETED + 支付时间
//  7. 订单置 COMPLETED + 支付时间
// 步骤 4–7 任意失败整体回滚，不存在部分扣减。
func (s *Service) Complete(ctx context.Context, orderID uint, src CompletionSource, proof *GatewayProof) (*model.Payment, error) {
	var done *model.Payment
	var evt *Event
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o model.Order
		if err := forUpdate(tx).First(&o, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if o.Status == model.OrderCompleted {
			return ErrAlreadyCompleted
		}
		if o.Status == model.OrderInactive {
			return ErrOrderNotPending
		}

		var p model.Payment
		err := forUpdate(tx).
			Where("order_id = ? AND status = ?", o.ID, model.PaymentPending).
			Order("id DESC").First(&p).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoPendingPayment
			}
			return err
		}

		switch src {
		case SourceCOD:
			if p.Method != model.MethodCOD {
				return ErrSourceMismatch
			}
		case SourceGateway:
			if p.Method == model.MethodCOD {
				return ErrSourceMismatch
			}
		default:
			return ErrSourceMismatch
		}

		var lines []model.OrderLine
		if err := tx.Where("order_id = ?", o.ID).Find(&lines).Error; err != nil {
			return err
		}
		// 按 BookID 升序锁行，并发完成不同订单时锁序一致，避免互相持锁等待。
		sort.Slice(lines, func(i, j int) bool { return lines[i].BookID < lines[j].BookID })

		// 先整单锁行验库存，再整单扣减；任何一行不足在写之前拒绝。
		for _, ln := range lines {
			var book model.Book
			if err := forUpdate(tx).First(&book, ln.BookID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrBookNotFound
				}
				return err
			}
			if book.Stock < int64(ln.Quantity) {
				return ErrInsufficientStock
			}
		}
		for _, ln := range lines {
			if err := reserve(tx, ln.BookID, ln.Quantity); err != nil {
				return err
			}
		}

		now := s.now()
		updates := map[string]any{"status": model.PaymentCompleted, "paid_at": now}
		if proof != nil {
			updates["gateway_txn_no"] = proof.TxnNo
			updates["bank_code"] = proof.BankCode
		}
		if err := tx.Model(&p).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.Model(&o).Updates(map[string]any{
			"status":  model.OrderCompleted,
			"paid_at": now,
		}).Error; err != nil {
			return err
		}

		done = &p
		evt = &Event{Type: EventPaymentCompleted, OrderNo: o.OrderNo, UserID: o.UserID, Amount: p.Amount, Method: p.Method}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment completed",
		zap.Uint("order_id", orderID), zap.String("source", string(src)),
		zap.String("method", string(done.Method)), zap.Int64("amount", done.Amount))
	s.emit(ctx, *evt)
	return done, nil
}

// CompleteCOD 运营侧确认货到付款，仅管理员。
func (s *Service) CompleteCOD(ctx context.Context, id Identity, orderID uint) (*model.Payment, error) {
	if !id.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.Complete(ctx, orderID, SourceCOD, nil)
}

// CancelPending 把订单的全部 PENDING 支付置为 INACTIVE，不触碰订单本身的状态。
func (s *Service) CancelPending(ctx context.Context, id Identity, orderID uint) (int64, error) {
	if !id.IsAdmin() {
		return 0, ErrForbidden
	}
	var n int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o model.Order
		if err := tx.First(&o, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		res := tx.Model(&model.Payment{}).
			Where("order_id = ? AND status = ?", o.ID, model.PaymentPending).
			Update("status", model.PaymentInactive)
		if res.Error != nil {
			return res.Error
		}
		n = res.RowsAffected
		return nil
	})
	return n, err
}

// CancelOrder 取消订单：仅 PENDING 可取消，级联退役其 PENDING 支付。
// 下单从未占库存，取消无需回补。
func (s *Service) CancelOrder(ctx context.Context, id Identity, orderID uint, reason string) error {
	var evt *Event
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o model.Order
		if err := forUpdate(tx).First(&o, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if o.UserID != id.UserID && !id.IsAdmin() {
			return ErrOrderNotFound
		}
		if o.Status != model.OrderPending {
			return ErrOrderNotPending
		}

		if err := tx.Model(&o).Updates(map[string]any{
			"status":        model.OrderInactive,
			"cancel_reason": reason,
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Payment{}).
			Where("order_id = ? AND status = ?", o.ID, model.PaymentPending).
			Update("status", model.PaymentInactive).Error; err != nil {
			return err
		}
		evt = &Event{Type: EventOrderCancelled, OrderNo: o.OrderNo, UserID: o.UserID, Amount: o.TotalAmount}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("order cancelled", zap.Uint("order_id", orderID), zap.String("reason", reason))
	s.emit(ctx, *evt)
	return nil
}

// UpdateAddress 修改收货地址，仅 PENDING 订单允许，地址必须归订单所有者。
func (s *Service) UpdateAddress(ctx context.Context, id Identity, orderID, addressID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o model.Order
		if err := forUpdate(tx).First(&o, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if o.UserID != id.UserID && !id.IsAdmin() {
			return ErrOrderNotFound
		}
		if o.Status != model.OrderPending {
			return ErrOrderNotPending
		}
		if err := s.own.AddressOwnedBy(tx, addressID, o.UserID); err != nil {
			return err
		}
		return tx.Model(&o).Update("address_id", addressID).Error
	})
}

// EnsureGatewayPayment 为订单准备一条可用的网关支付尝试：
// 存在未过期的同方式 PENDING 尝试则直接复用；否则先退役全部 PENDING
// （含默认 COD 支付与过期的网关尝试），再以新 TxnRef 新建一条（+有效期）。
// 「同一订单最多一条非终态支付」的约束由该退役-重建顺序维持。
func (s *Service) EnsureGatewayPayment(ctx context.Context, id Identity, orderID uint, method model.PaymentMethod) (*model.Payment, error) {
	if !method.IsGateway() {
		return nil, ErrInvalidMethod
	}
	if _, err := normalizeMethod(method); err != nil {
		return nil, err
	}

	var out *model.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o model.Order
		if err := forUpdate(tx).First(&o, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if o.UserID != id.UserID && !id.IsAdmin() {
			return ErrOrderNotFound
		}
		if o.Status == model.OrderCompleted {
			return ErrAlreadyCompleted
		}
		if o.Status != model.OrderPending {
			return ErrOrderNotPending
		}

		now := s.now()
		var p model.Payment
		err := forUpdate(tx).
			Where("order_id = ? AND status = ?", o.ID, model.PaymentPending).
			Order("id DESC").First(&p).Error
		switch {
		case err == nil:
			live := p.Method == method && p.ExpiresAt != nil && now.Before(*p.ExpiresAt)
			if live {
				out = &p
				return nil
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// 没有待复用的尝试，直接新建。
		default:
			return err
		}

		if err := tx.Model(&model.Payment{}).
			Where("order_id = ? AND status = ?", o.ID, model.PaymentPending).
			Update("status", model.PaymentInactive).Error; err != nil {
			return err
		}

		exp := now.Add(s.gatewayTTL)
		fresh := &model.Payment{
			OrderID:   o.ID,
			Method:    method,
			Amount:    o.TotalAmount,
			Status:    model.PaymentPending,
			TxnRef:    uuid.New().String(),
			ExpiresAt: &exp,
		}
		if err := tx.Create(fresh).Error; err != nil {
			return err
		}
		out = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PaymentByTxnRef 按网关交易引用取回支付及其订单，回调对账用。
func (s *Service) PaymentByTxnRef(ctx context.Context, txnRef string) (*model.Payment, *model.Order, error) {
	var p model.Payment
	if err := s.db.WithContext(ctx).Where("txn_ref = ?", txnRef).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrPaymentNotFound
		}
		return nil, nil, err
	}
	var o model.Order
	if err := s.db.WithContext(ctx).First(&o, p.OrderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrOrderNotFound
		}
		return nil, nil, err
	}
	return &p, &o, nil
}

// RetirePayment 网关明确回报失败的尝试置 INACTIVE（幂等，终态不动）。
func (s *Service) RetirePayment(ctx context.Context, paymentID uint) error {
	return s.db.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ? AND status = ?", paymentID, model.PaymentPending).
		Update("status", model.PaymentInactive).Error
}
