package purchase

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/blues/ideamarket/internal/chain"
)

var (
	// ErrListingNotFound 本地缓存中没有该挂单
	ErrListingNotFound = errors.New("listing not found")
	// ErrListingSold 挂单已售出
	ErrListingSold = errors.New("listing already sold")
	// ErrWalletUnavailable 多次重连后钱包仍不可用
	ErrWalletUnavailable = errors.New("wallet connection lost, please disconnect and reconnect your wallet")
	// ErrAllowanceTimeout 授权交易上链后额度仍未生效
	ErrAllowanceTimeout = errors.New("timed out waiting for USDC allowance to update")
)

// InsufficientFundsError 余额不足
type InsufficientFundsError struct {
	Required *big.Int
	Actual   *big.Int
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient USDC balance: required %s, have %s",
		chain.USDCLabel(e.Required), chain.USDCLabel(e.Actual))
}

// listingNotFound 错误信息里列出已知ID，便于发现链上ID和本地索引不一致
func listingNotFound(id int64, known []int64) error {
	return fmt.Errorf("%w: idea %d (known ids: %v)", ErrListingNotFound, id, known)
}
