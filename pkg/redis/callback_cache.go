package redis

import (
	"context"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// 网关对同一笔交易可能多次投递回调。权威的幂等保障在数据库状态机里，
// 这里只是快路径：已处理过的 TxnRef 直接回放记录的结果码，不再进库。
// 调用方必须先验签再查缓存——缓存回答的是“这笔交易处理过没有”，
// 不能替代“这个请求是不是网关发的”。

// luaPutCallbackOnce 仅在键不存在时写入结果码（SETNX + EXPIRE 原子化），
// 保证并发回调只有第一个写入者的结果被缓存。
const luaPutCallbackOnce = `
local key = KEYS[1]
local code = ARGV[1]
local ttlSec = tonumber(ARGV[2])

if redis.call('SETNX', key, code) == 1 then
  redis.call('EXPIRE', key, ttlSec)
  return 1
end
return 0
`

// CallbackCache 网关回调结果码的 Redis 回放缓存。
type CallbackCache struct {
	rdb *rd.Client
	ttl time.Duration
}

// NewCallbackCache 创建回放缓存，ttl 非正值时取 24 小时。
func NewCallbackCache(rdb *rd.Client, ttl time.Duration) *CallbackCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CallbackCache{rdb: rdb, ttl: ttl}
}

// Get 查询某 TxnRef 已缓存的结果码。found=false 表示未处理过。
func (c *CallbackCache) Get(ctx context.Context, txnRef string) (string, bool, error) {
	code, err := c.rdb.Get(ctx, CallbackResultKey(txnRef)).Result()
	if err != nil {
		if err == rd.Nil {
			return "", false, nil
		}
		return "", false, err
	}
	return code, true, nil
}

// PutOnce 记录该 TxnRef 的回放结果码：
// - 首次记录返回 true
// - 已有记录返回 false（不覆盖）
func (c *CallbackCache) PutOnce(ctx context.Context, txnRef, code string) (bool, error) {
	ttlSec := int64(c.ttl / time.Second)
	n, err := c.rdb.Eval(ctx, luaPutCallbackOnce, []string{CallbackResultKey(txnRef)}, code, ttlSec).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
