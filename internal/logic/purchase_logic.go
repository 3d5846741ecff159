package logic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/blues/ideamarket/internal/chain"
	"github.com/blues/ideamarket/internal/indexer"
	"github.com/blues/ideamarket/internal/logger"
	"github.com/blues/ideamarket/internal/model"
	"github.com/blues/ideamarket/internal/repository"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// PurchaseLogic 购买记录业务逻辑
type PurchaseLogic struct {
	store    *repository.Store
	chain    ChainGateway
	registry *indexer.Registry
}

// NewPurchaseLogic 与索引器共用同一套事件处理，两边写入互相幂等
func NewPurchaseLogic(store *repository.Store, chain ChainGateway, registry *indexer.Registry) *PurchaseLogic {
	return &PurchaseLogic{store: store, chain: chain, registry: registry}
}

func (l *PurchaseLogic) List(ctx context.Context, buyer string, page repository.Page) ([]model.PurchaseModel, int64, error) {
	if buyer != "" {
		if err := requireAddress("buyer", buyer); err != nil {
			return nil, 0, err
		}
	}
	return l.store.Purchases.List(ctx, buyer, page)
}

// RecordPurchaseInput 客户端上报的购买
type RecordPurchaseInput struct {
	IdeaId          int64  `json:"ideaId" binding:"gt=0"`
	TransactionHash string `json:"transactionHash" binding:"required,tx_hash"`
	BuyerAddress    string `json:"buyerAddress" binding:"required,evm_address"`
}

// RecordPurchaseResult Recorded 为 false 表示该事件此前已写入
type RecordPurchaseResult struct {
	IdeaId          int64  `json:"ideaId"`
	TransactionHash string `json:"transactionHash"`
	Buyer           string `json:"buyer"`
	Seller          string `json:"seller"`
	Price           string `json:"price"`
	PriceUSDC       string `json:"priceUsdc"`
	BlockNumber     uint64 `json:"blockNumber"`
	Recorded        bool   `json:"recorded"`
}

// Record 从链上回执中取出成交事件并入库，不信任客户端提交的价格
func (l *PurchaseLogic) Record(ctx context.Context, in RecordPurchaseInput) (*RecordPurchaseResult, error) {
	if err := validateStruct(&in); err != nil {
		return nil, err
	}

	receipt, err := l.chain.Receipt(ctx, common.HexToHash(in.TransactionHash))
	if err != nil {
		if chain.IsNotFound(err) {
			return nil, invalid("transactionHash", "transaction not found or not yet mined")
		}
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, invalid("transactionHash", "transaction failed on chain")
	}

	var purchase *chain.IdeaPurchased
	for _, event := range l.chain.DecodeEvents(receipt) {
		e, ok := event.(*chain.IdeaPurchased)
		if !ok || e.IdeaId == nil {
			continue
		}
		if e.IdeaId.Int64() == in.IdeaId && strings.EqualFold(e.Buyer.Hex(), in.BuyerAddress) {
			purchase = e
			break
		}
	}
	if purchase == nil {
		return nil, invalid("transactionHash", "no IdeaPurchased event for idea %d and buyer %s", in.IdeaId, in.BuyerAddress)
	}

	inserted, err := l.registry.Apply(ctx, l.store, purchase, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to record purchase: %w", err)
	}
	if !inserted {
		logger.Info("Purchase %d/%s already recorded", in.IdeaId, in.TransactionHash)
	}

	return &RecordPurchaseResult{
		IdeaId:          in.IdeaId,
		TransactionHash: purchase.TxHash.Hex(),
		Buyer:           strings.ToLower(purchase.Buyer.Hex()),
		Seller:          strings.ToLower(purchase.Seller.Hex()),
		Price:           bigString(purchase.Price),
		PriceUSDC:       chain.FormatUSDC(purchase.Price),
		BlockNumber:     purchase.BlockNumber,
		Recorded:        inserted,
	}, nil
}
