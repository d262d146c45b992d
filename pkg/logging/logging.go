// Package logging 统一构造 zap 日志器。
package logging

import (
	"go.uber.org/zap"
)

// New 按环境构造日志器：dev 用开发编码（彩色、可读），否则 JSON 生产编码。
func New(env string) (*zap.Logger, error) {
	if env == "dev" || env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
