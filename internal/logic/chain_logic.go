package logic

import (
	"context"
	"math/big"

	"github.com/blues/ideamarket/internal/chain"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

// ChainLogic 链上工具查询
type ChainLogic struct {
	chain ChainGateway
}

func NewChainLogic(chain ChainGateway) *ChainLogic {
	return &ChainLogic{chain: chain}
}

// BlockNumber 按配置顺序尝试各RPC节点
func (l *ChainLogic) BlockNumber(ctx context.Context) (uint64, error) {
	return l.chain.BlockNumber(ctx)
}

// TxStatus 交易状态
type TxStatus struct {
	Hash   string         `json:"hash"`
	Status chain.TxStatus `json:"status"`
}

func (l *ChainLogic) TransactionStatus(ctx context.Context, hash string) (*TxStatus, error) {
	if !IsTxHash(hash) {
		return nil, invalid("hash", "must match ^0x[a-fA-F0-9]{64}$")
	}
	status, err := l.chain.TransactionStatus(ctx, common.HexToHash(hash))
	if err != nil {
		return nil, err
	}
	return &TxStatus{Hash: hash, Status: status}, nil
}

// GasPrice 返回 wei 和 gwei 两种表示
type GasPrice struct {
	Wei  string `json:"wei"`
	Gwei string `json:"gwei"`
}

func (l *ChainLogic) GasPrice(ctx context.Context) (*GasPrice, error) {
	price, err := l.chain.GasPrice(ctx)
	if err != nil {
		return nil, err
	}
	return &GasPrice{Wei: price.String(), Gwei: chain.FormatUnits(price, 9)}, nil
}

// Balance 原生币和USDC余额
type Balance struct {
	Address string `json:"address"`
	Native  string `json:"native"`
	Wei     string `json:"wei"`
	USDC    string `json:"usdc"`
	USDCRaw string `json:"usdcRaw"`
}

// Balance 并行读取两种余额
func (l *ChainLogic) Balance(ctx context.Context, address string) (*Balance, error) {
	if err := requireAddress("address", address); err != nil {
		return nil, err
	}
	account := mustAddress(address)

	var native, usdc *big.Int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := l.chain.NativeBalance(gctx, account)
		native = v
		return err
	})
	g.Go(func() error {
		v, err := l.chain.USDCBalance(gctx, account)
		usdc = v
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Balance{
		Address: address,
		Native:  chain.FormatEther(native),
		Wei:     native.String(),
		USDC:    chain.FormatUSDC(usdc),
		USDCRaw: usdc.String(),
	}, nil
}
