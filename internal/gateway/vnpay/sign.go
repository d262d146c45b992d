package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
)

// 网关签名字段。参与签名的规范串必须排除这两个字段本身。
const (
	fieldSecureHash     = "vnp_SecureHash"
	fieldSecureHashType = "vnp_SecureHashType"
)

// canonicalize 构造规范参数串：剔除签名字段后，键按字典序排序、
// 键值分别 URL 编码、以 k=v&k=v 连接。url.Values.Encode 的行为恰好就是
// 这套规范（排序 + application/x-www-form-urlencoded 编码），
// 必须与网关侧逐字节一致，否则所有回调都会被判为伪造。
func canonicalize(params url.Values) string {
	data := url.Values{}
	for k, vs := range params {
		if k == fieldSecureHash || k == fieldSecureHashType {
			continue
		}
		for _, v := range vs {
			data.Add(k, v)
		}
	}
	return data.Encode()
}

// signData HMAC-SHA512，十六进制小写输出。密钥只存在于服务端。
func signData(secret, data string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// verify 对收到的完整参数集重建规范串并重新计算签名。
// 任何不一致都是无条件验证失败，与载荷声称的成功码无关。
func verify(secret string, params url.Values) bool {
	got := params.Get(fieldSecureHash)
	if got == "" {
		return false
	}
	want := signData(secret, canonicalize(params))
	return hmac.Equal([]byte(want), []byte(got))
}
