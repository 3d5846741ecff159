package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// FilterLogs 批量获取区块范围内多个合约的日志
func (m *Manager) FilterLogs(ctx context.Context, addresses []common.Address, fromBlock, toBlock int64) ([]types.Log, error) {
	client, err := m.GetClient()
	if err != nil {
		return nil, err
	}
	query := ethereum.FilterQuery{
		FromBlock: big.NewInt(fromBlock),
		ToBlock:   big.NewInt(toBlock),
		Addresses: addresses,
	}
	logs, err := client.FilterLogs(ctx, query)
	return logs, wrap("filter logs", err)
}

// HeadBlockNumber 主节点的最新区块号
func (m *Manager) HeadBlockNumber(ctx context.Context) (int64, error) {
	client, err := m.GetClient()
	if err != nil {
		return 0, err
	}
	head, err := client.BlockNumber(ctx)
	if err != nil {
		return 0, wrap("get head block", err)
	}
	return int64(head), nil
}

// BlockTime 区块时间戳
func (m *Manager) BlockTime(ctx context.Context, number uint64) (time.Time, error) {
	client, err := m.GetClient()
	if err != nil {
		return time.Time{}, err
	}
	header, err := client.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return time.Time{}, wrap("get block header", err)
	}
	return time.Unix(int64(header.Time), 0).UTC(), nil
}
