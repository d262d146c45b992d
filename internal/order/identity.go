package order

import "bookstore/internal/model"

// Identity 每请求的身份上下文，由上游认证中间件解析后显式传入核心调用，
// 核心不自行推导、也不从任何进程级环境读取。
type Identity struct {
	UserID uint
	Role   model.UserRole
}

// IsAdmin 管理员可代客操作（代下单、COD 确认、取消支付）。
func (i Identity) IsAdmin() bool { return i.Role == model.RoleAdmin }
