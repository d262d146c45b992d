package router

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bookstore/internal/middleware"
	"bookstore/internal/order"
)

// getCart 当前身份（用户或游客 token）的 ACTIVE 购物车。
func getCart(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := middleware.IdentityFrom(c)
		cart, err := d.Svc.GetCart(c.Request.Context(), id, c.GetHeader(middleware.GuestTokenHeader))
		if err != nil {
			if errors.Is(err, order.ErrCartNotFound) {
				// 没有购物车等价于空车，避免前端处理 404。
				c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"items": []any{}}})
				return
			}
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": cart})
	}
}

// addCartItem 加购（用户或游客）。
func addCartItem(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			BookID   uint `json:"book_id" binding:"required,min=1"`
			Quantity int  `json:"quantity" binding:"omitempty,min=1"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		id := middleware.IdentityFrom(c)
		token := c.GetHeader(middleware.GuestTokenHeader)
		if id.UserID == 0 && token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "guest token required"})
			return
		}
		cart, err := d.Svc.AddItem(c.Request.Context(), id, token, req.BookID, req.Quantity)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": cart})
	}
}

// mergeCart 登录后把游客购物车并入用户购物车（幂等，重复合并为空操作）。
func mergeCart(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			GuestToken string `json:"guest_token"`
		}
		// body 缺省时退回 header。
		_ = c.ShouldBindJSON(&req)
		token := req.GuestToken
		if token == "" {
			token = c.GetHeader(middleware.GuestTokenHeader)
		}
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "guest token required"})
			return
		}

		id := middleware.IdentityFrom(c)
		cart, err := d.Svc.MergeGuestCart(c.Request.Context(), id.UserID, token)
		if err != nil {
			if errors.Is(err, order.ErrCartNotFound) {
				c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"items": []any{}}})
				return
			}
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": cart})
	}
}
