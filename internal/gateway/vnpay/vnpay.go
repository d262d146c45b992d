// Package vnpay 是对外部支付网关的对账适配层：构造出站签名支付请求、
// 验证与解释入站签名回调，把网关语言翻译成支付状态机的词汇。
package vnpay

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"bookstore/internal/model"
)

// ErrInvalidSignature 签名不一致。安全相关拒绝：对外只回固定码，
// 不泄露是哪一部分校验失败。
var ErrInvalidSignature = errors.New("vnpay: invalid signature")

// 网关要求的机器可读结果码（IPN 响应必须是这套固定词汇的 JSON，绝不能是 HTML）。
const (
	RspConfirmed        = "00"
	RspOrderNotFound    = "01"
	RspAlreadyConfirmed = "02"
	RspInvalidAmount    = "04"
	RspInvalidSignature = "97"
	RspUnknownError     = "99"
)

// IPNResponse IPN 端点的响应体，网关按 RspCode 程序化解析。
type IPNResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

var rspMessages = map[string]string{
	RspConfirmed:        "Confirm Success",
	RspOrderNotFound:    "Order not found",
	RspAlreadyConfirmed: "Order already confirmed",
	RspInvalidAmount:    "Invalid amount",
	RspInvalidSignature: "Invalid signature",
	RspUnknownError:     "Unknown error",
}

// Resp 按结果码构造 IPN 响应。
func Resp(code string) IPNResponse {
	msg, ok := rspMessages[code]
	if !ok {
		code, msg = RspUnknownError, rspMessages[RspUnknownError]
	}
	return IPNResponse{RspCode: code, Message: msg}
}

// dateLayout 网关日期格式：定宽纯数字 yyyyMMddHHmmss，无分隔符。
const dateLayout = "20060102150405"

// Config 网关接入参数。HashSecret 永不下发客户端。
type Config struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	ReturnURL  string
}

// Client 网关适配器。
type Client struct {
	cfg Config
	now func() time.Time
}

// New 创建适配器。
func New(cfg Config) *Client {
	return &Client{cfg: cfg, now: time.Now}
}

// WithClock 覆盖时钟（测试固定 vnp_CreateDate 用）。
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// BuildPayURL 构造带签名的支付跳转 URL。
// 金额：库内金额本身就是最小货币单位整数，直接作为 vnp_Amount。
// 过期时间取支付尝试上的 ExpiresAt（创建 +15 分钟）。
func (c *Client) BuildPayURL(p *model.Payment, orderInfo, clientIP string) (string, error) {
	if p.TxnRef == "" {
		return "", fmt.Errorf("vnpay: payment has no txn ref")
	}
	now := c.now()
	expire := now.Add(15 * time.Minute)
	if p.ExpiresAt != nil {
		expire = *p.ExpiresAt
	}

	params := url.Values{}
	params.Set("vnp_Version", "2.1.0")
	params.Set("vnp_Command", "pay")
	params.Set("vnp_TmnCode", c.cfg.TmnCode)
	params.Set("vnp_Amount", strconv.FormatInt(p.Amount, 10))
	params.Set("vnp_CurrCode", "VND")
	params.Set("vnp_TxnRef", p.TxnRef)
	params.Set("vnp_OrderInfo", orderInfo)
	params.Set("vnp_OrderType", "other")
	params.Set("vnp_Locale", "vn")
	params.Set("vnp_IpAddr", clientIP)
	params.Set("vnp_ReturnUrl", c.cfg.ReturnURL)
	params.Set("vnp_CreateDate", now.Format(dateLayout))
	params.Set("vnp_ExpireDate", expire.Format(dateLayout))

	data := canonicalize(params)
	sig := signData(c.cfg.HashSecret, data)
	return c.cfg.PayURL + "?" + data + "&" + fieldSecureHash + "=" + sig, nil
}

// Callback 验签通过后从回调参数提取的结构化结果。
type Callback struct {
	TxnRef        string
	Amount        int64
	ResponseCode  string
	TransactionNo string
	BankCode      string
	PayDate       string
}

// Success 网关是否回报支付成功。
func (cb Callback) Success() bool { return cb.ResponseCode == "00" }

// ParseCallback 处理入站回调（服务端 IPN 与浏览器回跳共用同一套校验）：
// 先验签，签名不一致直接 ErrInvalidSignature；通过后才解析各字段。
// 金额与库内支付记录的比对由调用方完成（金额不符与签名失败是两类错误）。
func (c *Client) ParseCallback(q url.Values) (*Callback, error) {
	if !verify(c.cfg.HashSecret, q) {
		return nil, ErrInvalidSignature
	}
	amount, err := strconv.ParseInt(q.Get("vnp_Amount"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("vnpay: bad amount: %w", err)
	}
	return &Callback{
		TxnRef:        q.Get("vnp_TxnRef"),
		Amount:        amount,
		ResponseCode:  q.Get("vnp_ResponseCode"),
		TransactionNo: q.Get("vnp_TransactionNo"),
		BankCode:      q.Get("vnp_BankCode"),
		PayDate:       q.Get("vnp_PayDate"),
	}, nil
}
