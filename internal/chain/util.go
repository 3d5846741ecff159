package chain

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

func bigInt(v int64) *big.Int {
	return big.NewInt(v)
}

// IsNotFound 交易或回执不存在
func IsNotFound(err error) bool {
	return errors.Is(err, ethereum.NotFound)
}

// IsZeroAddress 是否为零地址
func IsZeroAddress(addr common.Address) bool {
	return addr == (common.Address{})
}
