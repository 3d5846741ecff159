package chain

import (
	"context"
	"math/big"

	"github.com/blues/ideamarket/internal/config"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// USDCBalance 稳定币余额（6位小数的最小单位）
func (m *Manager) USDCBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	contract, err := m.bound(config.ContractMockUSDC)
	if err != nil {
		return nil, err
	}
	out, err := contract.call(m.callOpts(ctx), "balanceOf", owner)
	if err != nil {
		return nil, wrap("get USDC balance", err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// USDCAllowance owner 授权给 spender 的额度
func (m *Manager) USDCAllowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	contract, err := m.bound(config.ContractMockUSDC)
	if err != nil {
		return nil, err
	}
	out, err := contract.call(m.callOpts(ctx), "allowance", owner, spender)
	if err != nil {
		return nil, wrap("get USDC allowance", err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// ApproveUSDC 授权 spender 使用 amount
func (m *Manager) ApproveUSDC(ctx context.Context, spender common.Address, amount *big.Int) (*TxResult, error) {
	res, err := m.transact(ctx, config.ContractMockUSDC, "approve", spender, amount)
	return res, wrap("approve USDC", err)
}

// MintUSDC 铸造测试稳定币，仅测试网合约支持
func (m *Manager) MintUSDC(ctx context.Context, to common.Address, amount *big.Int) (*TxResult, error) {
	res, err := m.transact(ctx, config.ContractMockUSDC, "mint", to, amount)
	return res, wrap("mint test USDC", err)
}
