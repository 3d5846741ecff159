package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TxResult 已上链的交易
type TxResult struct {
	Hash        common.Hash    `json:"transactionHash"`
	BlockNumber uint64         `json:"blockNumber"`
	GasUsed     uint64         `json:"gasUsed"`
	Receipt     *types.Receipt `json:"-"`
}

// TxStatus 交易状态
type TxStatus string

const (
	TxStatusPending TxStatus = "pending"
	TxStatusSuccess TxStatus = "success"
	TxStatusFailed  TxStatus = "failed"
)

// transact 签名发送交易并等待上链
func (m *Manager) transact(ctx context.Context, contractName, method string, params ...interface{}) (*TxResult, error) {
	if m.key == nil {
		return nil, ErrNoSigner
	}
	contract, err := m.bound(contractName)
	if err != nil {
		return nil, err
	}
	client, err := m.GetClient()
	if err != nil {
		return nil, err
	}

	tx, err := m.send(ctx, contract, method, params...)
	if err != nil {
		return nil, err
	}

	timeout := m.config.ReceiptTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, client, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: %s", ErrTxReverted, tx.Hash().Hex())
	}

	return &TxResult{
		Hash:        receipt.TxHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
		Receipt:     receipt,
	}, nil
}

func (m *Manager) send(ctx context.Context, contract *Contract, method string, params ...interface{}) (*types.Transaction, error) {
	m.sendMu.Lock()
	defer m.sendMu.Unlock()

	auth, err := bind.NewKeyedTransactorWithChainID(m.key, bigInt(m.config.ChainId))
	if err != nil {
		return nil, err
	}
	auth.Context = ctx
	return contract.bound.Transact(auth, method, params...)
}

// Receipt 查询交易回执
func (m *Manager) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	client, err := m.GetClient()
	if err != nil {
		return nil, err
	}
	receipt, err := client.TransactionReceipt(ctx, hash)
	return receipt, wrap("get transaction receipt", err)
}

// TransactionStatus 查询交易状态，回执不存在视为 pending
func (m *Manager) TransactionStatus(ctx context.Context, hash common.Hash) (TxStatus, error) {
	client, err := m.GetClient()
	if err != nil {
		return "", err
	}
	receipt, err := client.TransactionReceipt(ctx, hash)
	if err != nil {
		if IsNotFound(err) {
			return TxStatusPending, nil
		}
		return "", wrap("get transaction status", err)
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		return TxStatusSuccess, nil
	}
	return TxStatusFailed, nil
}
