package order

import "errors"

// 错误分五类：校验失败（写前拒绝）、状态冲突（请求合法但时机不对）、
// 库存不足（完成事务整体回滚）、签名/金额不一致（网关适配层定义）、
// 基础设施错误（原样向上传播）。HTTP 层用 errors.Is 映射状态码。
var (
	// 校验类：任何写入发生之前拒绝。
	ErrBookNotFound    = errors.New("book not found")
	ErrAddressNotFound = errors.New("address not found")
	ErrAddressNotOwned = errors.New("address does not belong to user")
	ErrUserNotFound    = errors.New("user not found")
	ErrUserInactive    = errors.New("user is not active")
	ErrCartNotFound    = errors.New("cart not found")
	ErrCartNotActive   = errors.New("cart is not active")
	ErrCartNotOwned    = errors.New("cart does not belong to requester")
	ErrCartGuestOwned  = errors.New("guest cart must be merged before checkout")
	ErrEmptySelection  = errors.New("no cart items selected")
	ErrItemNotInCart   = errors.New("cart item does not belong to cart")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidMethod   = errors.New("unsupported payment method")

	// ErrForbidden 请求者身份不足（非本人且非管理员）。
	ErrForbidden = errors.New("operation not permitted for requester")

	// 状态冲突类。
	ErrOrderNotFound    = errors.New("order not found")
	ErrOrderNotPending  = errors.New("order is not pending")
	ErrAlreadyCompleted = errors.New("order already completed")
	ErrNoPendingPayment = errors.New("no pending payment for order")
	ErrSourceMismatch   = errors.New("completion source does not match payment method")
	ErrPaymentNotFound  = errors.New("payment not found")

	// 资源耗尽类：完成事务内任何一行不足即整单回滚。
	ErrInsufficientStock = errors.New("insufficient stock")
)
