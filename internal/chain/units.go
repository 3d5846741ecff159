package chain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	USDCDecimals  = 6
	EtherDecimals = 18
)

// ParseUnits 十进制字符串转最小单位
func ParseUnits(value string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("invalid amount %q: must not be negative", value)
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("invalid amount %q: more than %d decimal places", value, decimals)
	}
	return scaled.BigInt(), nil
}

// FormatUnits 最小单位转十进制字符串
func FormatUnits(value *big.Int, decimals int32) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -decimals).String()
}

func ParseUSDC(value string) (*big.Int, error) {
	return ParseUnits(value, USDCDecimals)
}

func FormatUSDC(value *big.Int) string {
	return FormatUnits(value, USDCDecimals)
}

// USDCLabel 形如 "50 USDC"
func USDCLabel(value *big.Int) string {
	return FormatUSDC(value) + " USDC"
}

func ParseEther(value string) (*big.Int, error) {
	return ParseUnits(value, EtherDecimals)
}

func FormatEther(value *big.Int) string {
	return FormatUnits(value, EtherDecimals)
}
