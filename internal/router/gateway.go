package router

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bookstore/internal/gateway/vnpay"
	"bookstore/internal/middleware"
	"bookstore/internal/model"
	"bookstore/internal/order"
)

// CallbackCache 回调结果码的回放缓存，redis.CallbackCache 实现。
// 只是快路径：权威的幂等保障在数据库状态机里。
type CallbackCache interface {
	Get(ctx context.Context, txnRef string) (string, bool, error)
	PutOnce(ctx context.Context, txnRef, code string) (bool, error)
}

// createGatewayIntent 发起（或重试）一次网关支付：复用未过期的 PENDING 尝试，
// 否则退役旧尝试新建一条，返回带签名的跳转 URL。
func createGatewayIntent(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req struct {
			Method string `json:"method"`
		}
		_ = c.ShouldBindJSON(&req)
		method := model.PaymentMethod(req.Method)
		if method == "" {
			method = model.MethodVNPay
		}

		ident := middleware.IdentityFrom(c)
		p, err := d.Svc.EnsureGatewayPayment(c.Request.Context(), ident, id, method)
		if err != nil {
			if errors.Is(err, order.ErrAlreadyCompleted) {
				c.JSON(http.StatusConflict, gin.H{"code": 409, "msg": "order already paid"})
				return
			}
			fail(c, err)
			return
		}

		o, err := d.Svc.GetOrder(c.Request.Context(), ident, p.OrderID)
		if err != nil {
			fail(c, err)
			return
		}
		payURL, err := d.VNPay.BuildPayURL(p, "bookstore order "+o.OrderNo, c.ClientIP())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{
			"pay_url":    payURL,
			"txn_ref":    p.TxnRef,
			"expires_at": p.ExpiresAt,
		}})
	}
}

// gatewayIPN 网关服务端回调。响应必须是固定结果码 JSON（网关程序化解析），
// 任何情况下不返回 HTML。处理步骤：
//  1. 验签（失败无条件 97，不泄露细节；验签之前不回答任何别的结果码）
//  2. Redis 快路径：该 TxnRef 已有结果码则直接回放（合法重投与首投签名相同）
//  3. TxnRef 找支付（找不到 01）
//  4. 金额与库内支付逐分比对（不符 04，与签名失败分开归类）
//  5. 网关回报失败 → 退役该尝试，确认收讫 00
//  6. 成功 → 走唯一的完成迁移；重复回调拿到幂等信号回 02
func gatewayIPN(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		q := c.Request.URL.Query()

		respond := func(code string) {
			middleware.RecordGatewayCallback(code)
			c.JSON(http.StatusOK, vnpay.Resp(code))
		}
		// 本次回 code，缓存 replay 供重投回放。两者可以不同：首次确认成功
		// 回 00，重投按重复回调词汇回 02。缓存只记确定性的终局结果，
		// 99 留给网关重投。
		respondFinal := func(txnRef, code, replay string) {
			if d.Cache != nil {
				if _, err := d.Cache.PutOnce(ctx, txnRef, replay); err != nil {
					d.Log.Warn("cache callback result", zap.Error(err))
				}
			}
			respond(code)
		}

		cb, err := d.VNPay.ParseCallback(q)
		if err != nil {
			// 签名或载荷不合法。细节只进服务端日志。
			d.Log.Warn("gateway callback rejected", zap.Error(err))
			respond(vnpay.RspInvalidSignature)
			return
		}

		if d.Cache != nil {
			if code, found, err := d.Cache.Get(ctx, cb.TxnRef); err == nil && found {
				respond(code)
				return
			}
		}

		p, o, err := d.Svc.PaymentByTxnRef(ctx, cb.TxnRef)
		if err != nil {
			respond(vnpay.RspOrderNotFound)
			return
		}
		if cb.Amount != p.Amount {
			d.Log.Warn("gateway amount mismatch",
				zap.String("txn_ref", cb.TxnRef), zap.Int64("got", cb.Amount), zap.Int64("want", p.Amount))
			respondFinal(cb.TxnRef, vnpay.RspInvalidAmount, vnpay.RspInvalidAmount)
			return
		}
		if p.Status == model.PaymentCompleted {
			respondFinal(cb.TxnRef, vnpay.RspAlreadyConfirmed, vnpay.RspAlreadyConfirmed)
			return
		}

		if !cb.Success() {
			if err := d.Svc.RetirePayment(ctx, p.ID); err != nil {
				d.Log.Error("retire failed gateway payment", zap.Error(err))
				respond(vnpay.RspUnknownError)
				return
			}
			respondFinal(cb.TxnRef, vnpay.RspConfirmed, vnpay.RspConfirmed)
			return
		}

		_, err = d.Svc.Complete(ctx, o.ID, order.SourceGateway, &order.GatewayProof{
			TxnNo:    cb.TransactionNo,
			BankCode: cb.BankCode,
		})
		switch {
		case err == nil:
			respondFinal(cb.TxnRef, vnpay.RspConfirmed, vnpay.RspAlreadyConfirmed)
		case errors.Is(err, order.ErrAlreadyCompleted):
			respondFinal(cb.TxnRef, vnpay.RspAlreadyConfirmed, vnpay.RspAlreadyConfirmed)
		default:
			d.Log.Error("gateway completion failed", zap.Uint("order_id", o.ID), zap.Error(err))
			respond(vnpay.RspUnknownError)
		}
	}
}

// gatewayReturn 浏览器回跳。同一套验签，但只用于展示——
// 无论载荷说什么，这个端点都不改支付/订单状态（状态由 IPN 驱动）。
func gatewayReturn(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		cb, err := d.VNPay.ParseCallback(c.Request.URL.Query())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "invalid signature"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{
			"txn_ref":       cb.TxnRef,
			"amount":        cb.Amount,
			"response_code": cb.ResponseCode,
			"success":       cb.Success(),
		}})
	}
}
