package chain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrProviderNotInitialized 客户端未连接
	ErrProviderNotInitialized = errors.New("provider not initialized")
	// ErrNoSigner 未配置签名私钥
	ErrNoSigner = errors.New("signer not configured")
	// ErrTxReverted 交易执行失败
	ErrTxReverted = errors.New("transaction reverted")
	// ErrUnknownEvent 无法识别的事件
	ErrUnknownEvent = errors.New("unknown event")
)

// wrap 给底层错误加上业务前缀
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// IsRateLimitError 节点限流
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Too Many Requests") || strings.Contains(msg, "429") || strings.Contains(msg, "rate limit")
}

// IsTransient 网络类错误，稍后重试可能成功；缺少签名私钥或交易回滚不属于此类
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoSigner) || errors.Is(err, ErrTxReverted) {
		return false
	}
	return !strings.Contains(err.Error(), "execution reverted")
}
