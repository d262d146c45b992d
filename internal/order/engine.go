package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"bookstore/internal/model"
)

// 下单有且只有三种入口，各自携带恰好所需的字段（而不是一个带 mode 字符串的大请求）：
//   FromCartInput — 购物车结算，显式选择要结算的条目子集
//   InstantInput  — 立即购买单本
//   ManualInput   — 管理员代客下单，可覆盖单价
// 三者都在一个事务内产出 订单 + 不可变订单行 + 一条 PENDING 支付，失败则全部回滚。
// 下单阶段不扣库存（先款后货）。

// FromCartInput 购物车结算请求。ItemIDs 必须显式给出且非空，不存在“默认全选”。
type FromCartInput struct {
	CartID    uint
	AddressID uint
	ItemIDs   []uint
	Method    model.PaymentMethod
}

// InstantInput 立即购买请求。
type InstantInput struct {
	AddressID uint
	BookID    uint
	Quantity  int
	Method    model.PaymentMethod
}

// ManualItem 代客下单条目，UnitPrice 为 nil 时快照当前书价。
type ManualItem struct {
	BookID    uint
	Quantity  int
	UnitPrice *int64
}

// ManualInput 管理员代客下单请求。
type ManualInput struct {
	UserID    uint
	AddressID uint
	Items     []ManualItem
	Method    model.PaymentMethod
}

// CreateFromCart 结算购物车中显式选中的条目。
// 只消费选中的条目，未选中的保留在购物车里；清空后购物车转 CHECKED_OUT。
func (s *Service) CreateFromCart(ctx context.Context, id Identity, in FromCartInput) (*model.Order, error) {
	if len(in.ItemIDs) == 0 {
		return nil, ErrEmptySelection
	}
	method, err := normalizeMethod(in.Method)
	if err != nil {
		return nil, err
	}

	var out *model.Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cart model.Cart
		if err := forUpdate(tx).First(&cart, in.CartID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCartNotFound
			}
			return err
		}
		if cart.Status != model.CartActive {
			return ErrCartNotActive
		}
		if err := s.own.CartOwnedBy(&cart, id); err != nil {
			return err
		}
		// 地址必须归购物车所有者（而非请求者，管理员代结算时两者不同）。
		if err := s.own.AddressOwnedBy(tx, in.AddressID, cart.UserID); err != nil {
			return err
		}

		var items []model.CartItem
		if err := tx.Where("cart_id = ? AND id IN ?", cart.ID, in.ItemIDs).Find(&items).Error; err != nil {
			return err
		}
		if len(items) != len(dedup(in.ItemIDs)) {
			return ErrItemNotInCart
		}

		lines := make([]model.OrderLine, 0, len(items))
		for _, it := range items {
			book, err := findBook(tx, it.BookID)
			if err != nil {
				return err
			}
			qty := it.Quantity
			if qty < 1 {
				qty = 1
			}
			lines = append(lines, model.OrderLine{
				BookID:    book.ID,
				Title:     book.Title,
				Quantity:  qty,
				UnitPrice: book.Price,
			})
		}

		o, err := s.insertOrder(tx, cart.UserID, in.AddressID, lines, method)
		if err != nil {
			return err
		}

		// 消费选中的条目；购物车清空后整车转 CHECKED_OUT。
		if err := tx.Unscoped().Where("cart_id = ? AND id IN ?", cart.ID, in.ItemIDs).
			Delete(&model.CartItem{}).Error; err != nil {
			return err
		}
		var remaining int64
		if err := tx.Model(&model.CartItem{}).Where("cart_id = ?", cart.ID).Count(&remaining).Error; err != nil {
			return err
		}
		if remaining == 0 {
			if err := tx.Model(&cart).Update("status", model.CartCheckedOut).Error; err != nil {
				return err
			}
		}

		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order created from cart",
		zap.String("order_no", out.OrderNo), zap.Uint("user_id", out.UserID), zap.Int64("amount", out.TotalAmount))
	s.emit(ctx, Event{Type: EventOrderCreated, OrderNo: out.OrderNo, UserID: out.UserID, Amount: out.TotalAmount, Method: method})
	return out, nil
}

// CreateInstant 立即购买：校验地址归属与书目存在后快照当前价格成单。
func (s *Service) CreateInstant(ctx context.Context, id Identity, in InstantInput) (*model.Order, error) {
	if in.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	method, err := normalizeMethod(in.Method)
	if err != nil {
		return nil, err
	}

	var out *model.Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.own.AddressOwnedBy(tx, in.AddressID, id.UserID); err != nil {
			return err
		}
		book, err := findBook(tx, in.BookID)
		if err != nil {
			return err
		}
		lines := []model.OrderLine{{
			BookID:    book.ID,
			Title:     book.Title,
			Quantity:  in.Quantity,
			UnitPrice: book.Price,
		}}
		o, err := s.insertOrder(tx, id.UserID, in.AddressID, lines, method)
		if err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("instant order created",
		zap.String("order_no", out.OrderNo), zap.Uint("user_id", out.UserID), zap.Int64("amount", out.TotalAmount))
	s.emit(ctx, Event{Type: EventOrderCreated, OrderNo: out.OrderNo, UserID: out.UserID, Amount: out.TotalAmount, Method: method})
	return out, nil
}

// CreateManual 管理员代客下单（客服/后台补单）。目标用户必须 ACTIVE，
// 地址必须归目标用户；未给出单价覆盖时快照当前书价。
func (s *Service) CreateManual(ctx context.Context, id Identity, in ManualInput) (*model.Order, error) {
	if !id.IsAdmin() {
		return nil, ErrForbidden
	}
	if len(in.Items) == 0 {
		return nil, ErrEmptySelection
	}
	method, err := normalizeMethod(in.Method)
	if err != nil {
		return nil, err
	}

	var out *model.Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.own.ActiveUser(tx, in.UserID); err != nil {
			return err
		}
		if err := s.own.AddressOwnedBy(tx, in.AddressID, in.UserID); err != nil {
			return err
		}

		lines := make([]model.OrderLine, 0, len(in.Items))
		for _, it := range in.Items {
			if it.Quantity < 1 {
				return ErrInvalidQuantity
			}
			book, err := findBook(tx, it.BookID)
			if err != nil {
				return err
			}
			price := book.Price
			if it.UnitPrice != nil {
				price = *it.UnitPrice
			}
			lines = append(lines, model.OrderLine{
				BookID:    book.ID,
				Title:     book.Title,
				Quantity:  it.Quantity,
				UnitPrice: price,
			})
		}

		o, err := s.insertOrder(tx, in.UserID, in.AddressID, lines, method)
		if err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("manual order created",
		zap.String("order_no", out.OrderNo), zap.Uint("user_id", out.UserID),
		zap.Uint("operator_id", id.UserID), zap.Int64("amount", out.TotalAmount))
	s.emit(ctx, Event{Type: EventOrderCreated, OrderNo: out.OrderNo, UserID: out.UserID, Amount: out.TotalAmount, Method: method})
	return out, nil
}

// insertOrder 三种入口共用的落库路径：订单 + 订单行 + 一条 PENDING 支付，
// 总额只在此处按订单行求和计算一次，之后不再重算。
func (s *Service) insertOrder(tx *gorm.DB, userID, addressID uint, lines []model.OrderLine, method model.PaymentMethod) (*model.Order, error) {
	var total int64
	for _, ln := range lines {
		total += int64(ln.Quantity) * ln.UnitPrice
	}

	now := s.now()
	o := &model.Order{
		OrderNo:     newOrderNo(),
		UserID:      userID,
		AddressID:   addressID,
		TotalAmount: total,
		Status:      model.OrderPending,
		PlacedAt:    now,
	}
	if err := tx.Create(o).Error; err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	for i := range lines {
		lines[i].OrderID = o.ID
	}
	if err := tx.Create(&lines).Error; err != nil {
		return nil, fmt.Errorf("create order lines: %w", err)
	}
	o.Lines = lines

	p := &model.Payment{
		OrderID: o.ID,
		Method:  method,
		Amount:  total,
		Status:  model.PaymentPending,
		TxnRef:  uuid.New().String(),
	}
	if method.IsGateway() {
		exp := now.Add(s.gatewayTTL)
		p.ExpiresAt = &exp
	}
	if err := tx.Create(p).Error; err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	o.Payments = []model.Payment{*p}
	return o, nil
}

// findBook 书目存在性校验兼价格快照来源。
func findBook(tx *gorm.DB, bookID uint) (*model.Book, error) {
	var book model.Book
	if err := tx.First(&book, bookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	return &book, nil
}

// normalizeMethod 空值回退 COD，未知方式拒绝。
func normalizeMethod(m model.PaymentMethod) (model.PaymentMethod, error) {
	switch m {
	case "":
		return model.MethodCOD, nil
	case model.MethodCOD, model.MethodCreditCard, model.MethodVNPay, model.MethodMoMo:
		return m, nil
	default:
		return "", ErrInvalidMethod
	}
}

// newOrderNo 订单号：前缀 + uuid 截断，uniqueIndex 兜底冲突。
func newOrderNo() string {
	return "BK" + uuid.New().String()[:13]
}

func dedup(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
