package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"bookstore/internal/model"
	"bookstore/internal/order"
)

const identityKey = "identity"

// GuestTokenHeader 游客购物车令牌由前端生成（uuid）随请求携带。
const GuestTokenHeader = "X-Guest-Token"

// Auth 解析上游签发的 HS256 Bearer JWT（claims: uid, role），
// 解析结果以显式 order.Identity 放入请求上下文，核心调用全部按参数传递。
// 未携带 token 时作为游客放行，由需要登录的路由自行用 RequireUser 拦截。
func Auth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" || !strings.HasPrefix(h, "Bearer ") {
			c.Next()
			return
		}
		raw := strings.TrimPrefix(h, "Bearer ")

		claims := jwt.MapClaims{}
		tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return key, nil
		})
		if err != nil || !tok.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "invalid token"})
			return
		}

		uid, _ := claims["uid"].(float64)
		role, _ := claims["role"].(string)
		if uid <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "invalid token"})
			return
		}
		c.Set(identityKey, order.Identity{UserID: uint(uid), Role: model.UserRole(role)})
		c.Next()
	}
}

// RequireUser 必须登录。
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IdentityFrom(c).UserID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "login required"})
			return
		}
		c.Next()
	}
}

// RequireAdmin 必须管理员。
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IdentityFrom(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": 403, "msg": "admin only"})
			return
		}
		c.Next()
	}
}

// IdentityFrom 取出请求身份，未登录返回零值（游客）。
func IdentityFrom(c *gin.Context) order.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return order.Identity{}
	}
	id, _ := v.(order.Identity)
	return id
}
