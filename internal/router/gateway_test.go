package router

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"bookstore/internal/config"
	"bookstore/internal/gateway/vnpay"
	"bookstore/internal/model"
	"bookstore/internal/order"
)

const testHashSecret = "ROUTERTESTSECRET"

// mapCallbackCache 进程内回放缓存，观察快路径行为用。
type mapCallbackCache struct {
	m map[string]string
}

func newMapCallbackCache() *mapCallbackCache {
	return &mapCallbackCache{m: map[string]string{}}
}

func (c *mapCallbackCache) Get(_ context.Context, txnRef string) (string, bool, error) {
	code, ok := c.m[txnRef]
	return code, ok, nil
}

func (c *mapCallbackCache) PutOnce(_ context.Context, txnRef, code string) (bool, error) {
	if _, ok := c.m[txnRef]; ok {
		return false, nil
	}
	c.m[txnRef] = code
	return true, nil
}

// newTestRouter 起一个完整路由栈：内存 SQLite + 真服务 + 真网关适配器。
// RDB 传 nil（限流放行）；cache 传 nil 时回放快路径关闭，断言全部落在数据库状态机上。
func newTestRouter(t *testing.T, cache CallbackCache) (*gin.Engine, *gorm.DB, *order.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{}, &model.Address{}, &model.Book{},
		&model.Cart{}, &model.CartItem{},
		&model.Order{}, &model.OrderLine{}, &model.Payment{},
	))

	svc := order.NewService(db, zap.NewNop())
	vnp := vnpay.New(vnpay.Config{
		TmnCode:    "TESTTMN1",
		HashSecret: testHashSecret,
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "https://shop.example.com/payments/vnpay/return",
	})

	r := gin.New()
	Setup(r, Deps{
		DB:    db,
		RDB:   nil,
		Svc:   svc,
		VNPay: vnp,
		Cache: cache,
		Log:   zap.NewNop(),
		Cfg: config.AppConfig{
			JWTSecret:          "router-test-secret",
			CheckoutRateLimit:  100,
			CheckoutRateWindow: time.Minute,
			CallbackCacheTTL:   time.Hour,
		},
	})
	return r, db, svc
}

// signQuery 测试侧独立签名：排序 + 表单编码 + HMAC-SHA512。
func signQuery(q url.Values) url.Values {
	data := url.Values{}
	for k, vs := range q {
		for _, v := range vs {
			data.Add(k, v)
		}
	}
	mac := hmac.New(sha512.New, []byte(testHashSecret))
	mac.Write([]byte(data.Encode()))
	q.Set("vnp_SecureHash", hex.EncodeToString(mac.Sum(nil)))
	return q
}

func gatewayOrder(t *testing.T, db *gorm.DB, svc *order.Service, stock int64) (*model.Order, *model.Payment, *model.Book) {
	t.Helper()
	u := &model.User{Name: "reader", Email: t.Name() + "@example.com", Status: model.UserActive}
	require.NoError(t, db.Create(u).Error)
	addr := &model.Address{UserID: u.ID, Recipient: u.Name, Line1: "1 book st"}
	require.NoError(t, db.Create(addr).Error)
	book := &model.Book{Title: "A", Author: "anon", Price: 125000, Stock: stock}
	require.NoError(t, db.Create(book).Error)

	o, err := svc.CreateInstant(context.Background(), order.Identity{UserID: u.ID}, order.InstantInput{
		AddressID: addr.ID, BookID: book.ID, Quantity: 2, Method: model.MethodVNPay,
	})
	require.NoError(t, err)
	return o, &o.Payments[0], book
}

func doIPN(t *testing.T, r *gin.Engine, q url.Values) vnpay.IPNResponse {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/payments/vnpay/ipn?"+q.Encode(), nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code) // IPN 永远 200 + 结果码 JSON
	var resp vnpay.IPNResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func successQuery(p *model.Payment) url.Values {
	q := url.Values{}
	q.Set("vnp_TxnRef", p.TxnRef)
	q.Set("vnp_Amount", strconv.FormatInt(p.Amount, 10))
	q.Set("vnp_ResponseCode", "00")
	q.Set("vnp_TransactionNo", "14400996")
	q.Set("vnp_BankCode", "NCB")
	q.Set("vnp_PayDate", "20260829103210")
	return signQuery(q)
}

func TestIPNSuccessAndReplay(t *testing.T) {
	r, db, svc := newTestRouter(t, nil)
	o, p, book := gatewayOrder(t, db, svc, 5)

	resp := doIPN(t, r, successQuery(p))
	assert.Equal(t, vnpay.RspConfirmed, resp.RspCode)

	var reloaded model.Order
	require.NoError(t, db.Preload("Payments").First(&reloaded, o.ID).Error)
	assert.Equal(t, model.OrderCompleted, reloaded.Status)
	assert.Equal(t, model.PaymentCompleted, reloaded.Payments[0].Status)
	assert.Equal(t, "14400996", reloaded.Payments[0].GatewayTxnNo)
	var b model.Book
	require.NoError(t, db.First(&b, book.ID).Error)
	assert.Equal(t, int64(3), b.Stock)

	// 网关重投同一回调 → 02，库存不再动。
	resp = doIPN(t, r, successQuery(p))
	assert.Equal(t, vnpay.RspAlreadyConfirmed, resp.RspCode)
	require.NoError(t, db.First(&b, book.ID).Error)
	assert.Equal(t, int64(3), b.Stock)
}

func TestIPNInvalidSignature(t *testing.T) {
	r, db, svc := newTestRouter(t, nil)
	o, p, book := gatewayOrder(t, db, svc, 5)

	// 签名后篡改参数。
	q := successQuery(p)
	q.Set("vnp_Amount", "1")
	resp := doIPN(t, r, q)
	assert.Equal(t, vnpay.RspInvalidSignature, resp.RspCode)

	// 无签名。
	q = successQuery(p)
	q.Del("vnp_SecureHash")
	resp = doIPN(t, r, q)
	assert.Equal(t, vnpay.RspInvalidSignature, resp.RspCode)

	// 拒绝的回调不触碰任何状态。
	var reloaded model.Order
	require.NoError(t, db.First(&reloaded, o.ID).Error)
	assert.Equal(t, model.OrderPending, reloaded.Status)
	var b model.Book
	require.NoError(t, db.First(&b, book.ID).Error)
	assert.Equal(t, int64(5), b.Stock)
}

func TestIPNAmountMismatch(t *testing.T) {
	r, db, svc := newTestRouter(t, nil)
	o, p, book := gatewayOrder(t, db, svc, 5)

	// 金额改掉但重新签名：签名合法，金额比对必须兜住。
	q := url.Values{}
	q.Set("vnp_TxnRef", p.TxnRef)
	q.Set("vnp_Amount", strconv.FormatInt(p.Amount+100, 10))
	q.Set("vnp_ResponseCode", "00")
	resp := doIPN(t, r, signQuery(q))
	assert.Equal(t, vnpay.RspInvalidAmount, resp.RspCode)

	var reloaded model.Order
	require.NoError(t, db.First(&reloaded, o.ID).Error)
	assert.Equal(t, model.OrderPending, reloaded.Status)
	var b model.Book
	require.NoError(t, db.First(&b, book.ID).Error)
	assert.Equal(t, int64(5), b.Stock)
}

func TestIPNUnknownTxnRef(t *testing.T) {
	r, _, _ := newTestRouter(t, nil)

	q := url.Values{}
	q.Set("vnp_TxnRef", "no-such-ref")
	q.Set("vnp_Amount", "1000")
	q.Set("vnp_ResponseCode", "00")
	resp := doIPN(t, r, signQuery(q))
	assert.Equal(t, vnpay.RspOrderNotFound, resp.RspCode)
}

func TestIPNGatewayReportedFailure(t *testing.T) {
	r, db, svc := newTestRouter(t, nil)
	o, p, book := gatewayOrder(t, db, svc, 5)

	// 网关回报用户取消（24）：确认收讫 00，尝试退役，订单留在 PENDING 可重试。
	q := url.Values{}
	q.Set("vnp_TxnRef", p.TxnRef)
	q.Set("vnp_Amount", strconv.FormatInt(p.Amount, 10))
	q.Set("vnp_ResponseCode", "24")
	resp := doIPN(t, r, signQuery(q))
	assert.Equal(t, vnpay.RspConfirmed, resp.RspCode)

	var reloaded model.Payment
	require.NoError(t, db.First(&reloaded, p.ID).Error)
	assert.Equal(t, model.PaymentInactive, reloaded.Status)
	var ord model.Order
	require.NoError(t, db.First(&ord, o.ID).Error)
	assert.Equal(t, model.OrderPending, ord.Status)
	var b model.Book
	require.NoError(t, db.First(&b, book.ID).Error)
	assert.Equal(t, int64(5), b.Stock)
}

func TestReturnEndpointNeverMutates(t *testing.T) {
	r, db, svc := newTestRouter(t, nil)
	o, p, book := gatewayOrder(t, db, svc, 5)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/payments/vnpay/return?"+successQuery(p).Encode(), nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// 回跳只展示，状态由 IPN 驱动。
	var reloaded model.Order
	require.NoError(t, db.First(&reloaded, o.ID).Error)
	assert.Equal(t, model.OrderPending, reloaded.Status)
	var b model.Book
	require.NoError(t, db.First(&b, book.ID).Error)
	assert.Equal(t, int64(5), b.Stock)

	// 验签失败 → 400。
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/payments/vnpay/return?vnp_TxnRef="+p.TxnRef, nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIPNCacheOnlyAfterSignature(t *testing.T) {
	cache := newMapCallbackCache()
	r, db, svc := newTestRouter(t, cache)
	_, p, book := gatewayOrder(t, db, svc, 5)

	// 首次成功回调：回 00，缓存里记下重投用的 02。
	resp := doIPN(t, r, successQuery(p))
	assert.Equal(t, vnpay.RspConfirmed, resp.RspCode)
	assert.Equal(t, vnpay.RspAlreadyConfirmed, cache.m[p.TxnRef])

	// 缓存已热，伪造请求带上同一 TxnRef：未通过验签之前不回答任何结果码。
	forged := url.Values{}
	forged.Set("vnp_TxnRef", p.TxnRef)
	forged.Set("vnp_Amount", strconv.FormatInt(p.Amount, 10))
	forged.Set("vnp_ResponseCode", "00")
	resp = doIPN(t, r, forged)
	assert.Equal(t, vnpay.RspInvalidSignature, resp.RspCode)

	// 签名后篡改同理。
	tampered := successQuery(p)
	tampered.Set("vnp_Amount", "1")
	resp = doIPN(t, r, tampered)
	assert.Equal(t, vnpay.RspInvalidSignature, resp.RspCode)

	// 签名合法的重投走快路径，按重复回调词汇回 02。
	resp = doIPN(t, r, successQuery(p))
	assert.Equal(t, vnpay.RspAlreadyConfirmed, resp.RspCode)

	// 库存只扣了一次。
	var b model.Book
	require.NoError(t, db.First(&b, book.ID).Error)
	assert.Equal(t, int64(3), b.Stock)
}
