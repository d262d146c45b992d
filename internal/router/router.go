package router

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"bookstore/internal/config"
	"bookstore/internal/gateway/vnpay"
	"bookstore/internal/middleware"
	"bookstore/internal/order"
)

// Deps 路由层依赖。RDB 为 nil 时限流放行，Cache 为 nil 时回调回放直连数据库。
type Deps struct {
	DB    *gorm.DB
	RDB   *rd.Client
	Svc   *order.Service
	VNPay *vnpay.Client
	Cache CallbackCache
	Log   *zap.Logger
	Cfg   config.AppConfig
}

// Setup 注册全部 HTTP 路由。
func Setup(r *gin.Engine, d Deps) {
	r.Use(middleware.Metrics())
	r.Use(middleware.Auth(d.Cfg.JWTSecret))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})
	r.GET("/metrics", middleware.PrometheusHandler())

	// 书目（薄 CRUD，核心只消费其价格与库存）
	r.GET("/api/books", listBooks(d))
	r.POST("/api/admin/books", middleware.RequireAdmin(), createBook(d))

	// 购物车
	r.GET("/api/cart", getCart(d))
	r.POST("/api/cart/items", addCartItem(d))
	r.POST("/api/cart/merge", middleware.RequireUser(), mergeCart(d))

	// 订单
	rate := middleware.RedisRateLimit(d.RDB, "checkout", d.Cfg.CheckoutRateLimit, d.Cfg.CheckoutRateWindow)
	r.POST("/api/orders/checkout", middleware.RequireUser(), rate, checkoutOrder(d))
	r.POST("/api/orders/instant", middleware.RequireUser(), rate, instantOrder(d))
	r.POST("/api/admin/orders", middleware.RequireAdmin(), manualOrder(d))
	r.GET("/api/orders", middleware.RequireUser(), listOrders(d))
	r.GET("/api/orders/:id", middleware.RequireUser(), getOrder(d))
	r.POST("/api/orders/:id/cancel", middleware.RequireUser(), cancelOrder(d))
	r.PATCH("/api/orders/:id/address", middleware.RequireUser(), updateOrderAddress(d))

	// 支付
	r.GET("/api/orders/:id/payments", middleware.RequireUser(), listPayments(d))
	r.POST("/api/admin/orders/:id/payments/complete", middleware.RequireAdmin(), completeCOD(d))
	r.POST("/api/admin/orders/:id/payments/cancel", middleware.RequireAdmin(), cancelPendingPayments(d))

	// 网关：发起需登录；IPN/回跳不鉴权（生产环境 IPN 由外层 IP 白名单保护）
	r.POST("/api/orders/:id/payments/vnpay", middleware.RequireUser(), rate, createGatewayIntent(d))
	r.GET("/api/payments/vnpay/ipn", gatewayIPN(d))
	r.GET("/api/payments/vnpay/return", gatewayReturn(d))
}

// fail 把核心错误分类映射到 HTTP 状态码：
// 校验类 400、归属/存在类 404、身份类 403、状态冲突与库存不足 409。
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, order.ErrInvalidMethod),
		errors.Is(err, order.ErrEmptySelection),
		errors.Is(err, order.ErrItemNotInCart),
		errors.Is(err, order.ErrAddressNotOwned),
		errors.Is(err, order.ErrCartGuestOwned),
		errors.Is(err, order.ErrUserInactive):
		status = http.StatusBadRequest
	case errors.Is(err, order.ErrBookNotFound),
		errors.Is(err, order.ErrAddressNotFound),
		errors.Is(err, order.ErrUserNotFound),
		errors.Is(err, order.ErrCartNotFound),
		errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, order.ErrPaymentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, order.ErrForbidden),
		errors.Is(err, order.ErrCartNotOwned):
		status = http.StatusForbidden
	case errors.Is(err, order.ErrCartNotActive),
		errors.Is(err, order.ErrOrderNotPending),
		errors.Is(err, order.ErrNoPendingPayment),
		errors.Is(err, order.ErrSourceMismatch),
		errors.Is(err, order.ErrInsufficientStock):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"code": status, "msg": err.Error()})
}

// parseID 解析路径参数里的数字主键。
func parseID(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || v == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": name + " invalid"})
		return 0, false
	}
	return uint(v), true
}
