package router

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bookstore/internal/middleware"
	"bookstore/internal/order"
)

// listPayments 订单的支付记录（新在前）。
func listPayments(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		payments, err := d.Svc.ListPayments(c.Request.Context(), middleware.IdentityFrom(c), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": payments})
	}
}

// completeCOD 运营确认货到付款收讫。重复确认幂等返回，不会二次扣库存。
func completeCOD(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		p, err := d.Svc.CompleteCOD(c.Request.Context(), middleware.IdentityFrom(c), id)
		if err != nil {
			if errors.Is(err, order.ErrAlreadyCompleted) {
				c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "already completed"})
				return
			}
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": p})
	}
}

// cancelPendingPayments 退役订单全部 PENDING 支付（不动订单状态）。
func cancelPendingPayments(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		n, err := d.Svc.CancelPending(c.Request.Context(), middleware.IdentityFrom(c), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"cancelled": n}})
	}
}
