package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bookstore/internal/middleware"
	"bookstore/internal/model"
	"bookstore/internal/order"
)

// checkoutOrder 购物车结算。item_ids 必须显式给出要结算的条目子集。
func checkoutOrder(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			CartID    uint   `json:"cart_id" binding:"required,min=1"`
			AddressID uint   `json:"address_id" binding:"required,min=1"`
			ItemIDs   []uint `json:"item_ids" binding:"required,min=1"`
			Method    string `json:"method"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		o, err := d.Svc.CreateFromCart(c.Request.Context(), middleware.IdentityFrom(c), order.FromCartInput{
			CartID:    req.CartID,
			AddressID: req.AddressID,
			ItemIDs:   req.ItemIDs,
			Method:    model.PaymentMethod(req.Method),
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": o})
	}
}

// instantOrder 立即购买。
func instantOrder(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			AddressID uint   `json:"address_id" binding:"required,min=1"`
			BookID    uint   `json:"book_id" binding:"required,min=1"`
			Quantity  int    `json:"quantity" binding:"required,min=1"`
			Method    string `json:"method"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		o, err := d.Svc.CreateInstant(c.Request.Context(), middleware.IdentityFrom(c), order.InstantInput{
			AddressID: req.AddressID,
			BookID:    req.BookID,
			Quantity:  req.Quantity,
			Method:    model.PaymentMethod(req.Method),
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": o})
	}
}

// manualOrder 管理员代客下单，可逐条覆盖单价。
func manualOrder(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID    uint `json:"user_id" binding:"required,min=1"`
			AddressID uint `json:"address_id" binding:"required,min=1"`
			Items     []struct {
				BookID    uint   `json:"book_id" binding:"required,min=1"`
				Quantity  int    `json:"quantity" binding:"required,min=1"`
				UnitPrice *int64 `json:"unit_price"`
			} `json:"items" binding:"required,min=1"`
			Method string `json:"method"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		in := order.ManualInput{
			UserID:    req.UserID,
			AddressID: req.AddressID,
			Method:    model.PaymentMethod(req.Method),
		}
		for _, it := range req.Items {
			in.Items = append(in.Items, order.ManualItem{
				BookID:    it.BookID,
				Quantity:  it.Quantity,
				UnitPrice: it.UnitPrice,
			})
		}
		o, err := d.Svc.CreateManual(c.Request.Context(), middleware.IdentityFrom(c), in)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": o})
	}
}

// listOrders 用户看自己的订单，管理员看全部。
func listOrders(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := d.Svc.ListOrders(c.Request.Context(), middleware.IdentityFrom(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": orders})
	}
}

// getOrder 订单聚合（订单 + 行 + 支付记录）。
func getOrder(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		o, err := d.Svc.GetOrder(c.Request.Context(), middleware.IdentityFrom(c), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": o})
	}
}

// cancelOrder 取消 PENDING 订单，级联退役其 PENDING 支付。
func cancelOrder(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req struct {
			Reason string `json:"reason"`
		}
		_ = c.ShouldBindJSON(&req)
		if err := d.Svc.CancelOrder(c.Request.Context(), middleware.IdentityFrom(c), id, req.Reason); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "cancelled"})
	}
}

// updateOrderAddress 修改 PENDING 订单的收货地址。
func updateOrderAddress(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req struct {
			AddressID uint `json:"address_id" binding:"required,min=1"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		if err := d.Svc.UpdateAddress(c.Request.Context(), middleware.IdentityFrom(c), id, req.AddressID); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "updated"})
	}
}
