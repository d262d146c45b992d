package redis

import "fmt"

// CallbackResultKey 缓存某笔网关交易引用（TxnRef）已给出的 IPN 结果码。
func CallbackResultKey(txnRef string) string {
	return fmt.Sprintf("bookstore:gateway:callback:%s", txnRef)
}

// RateLimitUserKey 按用户限流键。
func RateLimitUserKey(scope string, userID uint) string {
	return fmt.Sprintf("rate_limit:%s:user:%d", scope, userID)
}

// RateLimitIPKey 按 IP 限流键（身份解析失败时的降级）。
func RateLimitIPKey(scope, ip string) string {
	return fmt.Sprintf("rate_limit:%s:ip:%s", scope, ip)
}
