package chain

import (
	"context"
	"math/big"

	"github.com/blues/ideamarket/internal/config"
	"github.com/blues/ideamarket/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// BuyIdea 购买挂单
func (m *Manager) BuyIdea(ctx context.Context, ideaId uint64) (*TxResult, error) {
	res, err := m.transact(ctx, config.ContractMarketplace, "buyIdea", new(big.Int).SetUint64(ideaId))
	return res, wrap("purchase idea", err)
}

// MarketplaceAddress 市场合约地址，即 USDC 授权的 spender
func (m *Manager) MarketplaceAddress() common.Address {
	return m.ContractAddress(config.ContractMarketplace)
}

// DecodeEvents 解码回执中属于已知合约的事件，跳过无法识别的日志
func (m *Manager) DecodeEvents(receipt *types.Receipt) []Event {
	if receipt == nil {
		return nil
	}
	byAddress := make(map[common.Address]*Contract)
	for _, c := range m.GetContracts() {
		byAddress[c.GetAddress()] = c
	}

	var events []Event
	for _, log := range receipt.Logs {
		contract, ok := byAddress[log.Address]
		if !ok {
			continue
		}
		event, err := contract.DecodeLog(*log)
		if err != nil {
			logger.Debug("Skipping receipt log %d: %v", log.Index, err)
			continue
		}
		events = append(events, event)
	}
	return events
}
