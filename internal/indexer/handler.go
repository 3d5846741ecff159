package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/blues/ideamarket/internal/chain"
	"github.com/blues/ideamarket/internal/logger"
	"github.com/blues/ideamarket/internal/model"
	"github.com/blues/ideamarket/internal/repository"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// EventHandler 单个事件的入库处理器，在事务中执行
type EventHandler interface {
	EventName() string
	Handle(ctx context.Context, tx *repository.Store, event chain.Event, blockTime time.Time) error
}

// HandlerFunc 函数形式的处理器
type HandlerFunc struct {
	Name string
	Fn   func(ctx context.Context, tx *repository.Store, event chain.Event, blockTime time.Time) error
}

func (h HandlerFunc) EventName() string { return h.Name }

func (h HandlerFunc) Handle(ctx context.Context, tx *repository.Store, event chain.Event, blockTime time.Time) error {
	return h.Fn(ctx, tx, event, blockTime)
}

// Registry 事件处理器管理器
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]EventHandler
}

// NewRegistry 创建并注册所有内置处理器
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[string]EventHandler)}

	r.Register(HandlerFunc{Name: chain.EventCreateSuperhero, Fn: handleSuperheroCreated})
	r.Register(HandlerFunc{Name: chain.EventTransfer, Fn: handleTransfer})
	r.Register(HandlerFunc{Name: chain.EventRoleGranted, Fn: handleAuditOnly})
	r.Register(HandlerFunc{Name: chain.EventRoleRevoked, Fn: handleAuditOnly})
	r.Register(HandlerFunc{Name: chain.EventIdeaCreated, Fn: handleIdeaCreated})
	r.Register(HandlerFunc{Name: chain.EventIdeaPurchased, Fn: handleIdeaPurchased})
	r.Register(HandlerFunc{Name: chain.EventTeamCreated, Fn: handleTeamCreated})

	logger.Info("Indexer registry initialized with %d handlers", len(r.handlers))
	return r
}

// Register 注册处理器，同名覆盖
func (r *Registry) Register(h EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.EventName()] = h
	logger.Debug("Registered handler for event: %s", h.EventName())
}

// Get 获取处理器
func (r *Registry) Get(eventName string) (EventHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[eventName]
	return h, ok
}

// Apply 在一个事务中写入审计记录和实体，重复事件直接跳过
func (r *Registry) Apply(ctx context.Context, store *repository.Store, event chain.Event, blockTime time.Time) (bool, error) {
	handler, ok := r.Get(event.EventName())
	if !ok {
		return false, fmt.Errorf("%w: no handler for %s", chain.ErrUnknownEvent, event.EventName())
	}

	row, err := eventLogRow(event, blockTime)
	if err != nil {
		return false, err
	}

	var inserted bool
	err = store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		inserted, err = tx.Events.Insert(ctx, row)
		if err != nil || !inserted {
			return err
		}
		return handler.Handle(ctx, tx, event, blockTime)
	})
	if err != nil {
		return false, fmt.Errorf("apply %s %s: %w", event.EventName(), row.Id, err)
	}
	return inserted, nil
}

// eventLogRow 事件的审计记录
func eventLogRow(event chain.Event, blockTime time.Time) (*model.EventLogModel, error) {
	meta := event.Meta()
	args, err := json.Marshal(EventArgs(event))
	if err != nil {
		return nil, fmt.Errorf("marshal %s args: %w", event.EventName(), err)
	}
	txHash := meta.TxHash.Hex()
	return &model.EventLogModel{
		Id:              model.EventLogId(txHash, meta.LogIndex),
		ContractAddress: lower(meta.Address),
		ContractName:    meta.Contract,
		EventName:       event.EventName(),
		TxHash:          txHash,
		BlockNum:        int64(meta.BlockNumber),
		LogIndex:        int64(meta.LogIndex),
		Args:            datatypes.JSON(args),
		Timestamp:       blockTime,
	}, nil
}

// EventArgs 事件参数，bytes32 转为字符串，整数转为十进制字符串
func EventArgs(event chain.Event) map[string]interface{} {
	switch e := event.(type) {
	case *chain.SuperheroCreated:
		return map[string]interface{}{
			"superhero": lower(e.Superhero),
			"id":        e.Id.String(),
			"name":      chain.ParseBytes32String(e.Name),
			"bio":       chain.ParseBytes32String(e.Bio),
			"uri":       e.Uri,
		}
	case *chain.NFTTransfer:
		return map[string]interface{}{
			"from":    lower(e.From),
			"to":      lower(e.To),
			"tokenId": e.TokenId.String(),
		}
	case *chain.RoleChanged:
		return map[string]interface{}{
			"role":    common.Hash(e.Role).Hex(),
			"account": lower(e.Account),
			"sender":  lower(e.Sender),
		}
	case *chain.IdeaCreated:
		return map[string]interface{}{
			"ideaId":     e.IdeaId.String(),
			"creator":    lower(e.Creator),
			"title":      chain.ParseBytes32String(e.Title),
			"categories": chain.ParseBytes32Strings(e.Categories),
			"ipfsHash":   e.IpfsHash,
			"price":      e.Price.String(),
		}
	case *chain.IdeaPurchased:
		return map[string]interface{}{
			"ideaId":         e.IdeaId.String(),
			"buyer":          lower(e.Buyer),
			"seller":         lower(e.Seller),
			"price":          e.Price.String(),
			"marketplaceFee": e.MarketplaceFee.String(),
			"timestamp":      e.Timestamp.String(),
		}
	case *chain.TeamCreated:
		return map[string]interface{}{
			"teamId":          e.TeamId.String(),
			"leader":          lower(e.Leader),
			"teamName":        e.TeamName,
			"projectName":     e.ProjectName,
			"requiredMembers": e.RequiredMembers.String(),
			"requiredStake":   e.RequiredStake.String(),
		}
	}
	return map[string]interface{}{}
}

func handleSuperheroCreated(ctx context.Context, tx *repository.Store, event chain.Event, blockTime time.Time) error {
	e := event.(*chain.SuperheroCreated)
	return tx.Superheroes.Upsert(ctx, &model.SuperheroModel{
		Address:      e.Superhero.Hex(),
		SuperheroId:  e.Id.Int64(),
		Name:         chain.ParseBytes32String(e.Name),
		Bio:          chain.ParseBytes32String(e.Bio),
		AvatarUrl:    e.Uri,
		CreatedBlock: int64(e.BlockNumber),
		CreatedTime:  blockTime,
		TxHash:       e.TxHash.Hex(),
	})
}

func handleTransfer(ctx context.Context, tx *repository.Store, event chain.Event, blockTime time.Time) error {
	e := event.(*chain.NFTTransfer)
	return tx.Transfers.Insert(ctx, &model.TransferModel{
		Id:              model.EventLogId(e.TxHash.Hex(), e.LogIndex),
		ContractAddress: lower(e.Address),
		TokenId:         e.TokenId.String(),
		From:            lower(e.From),
		To:              lower(e.To),
		TransferType:    TransferTypeOf(e.From, e.To),
		BlockNum:        int64(e.BlockNumber),
		TxHash:          e.TxHash.Hex(),
		Timestamp:       blockTime,
	})
}

// TransferTypeOf 零地址转出为铸造，转入零地址为销毁
func TransferTypeOf(from, to common.Address) model.TransferType {
	switch {
	case chain.IsZeroAddress(from):
		return model.TransferTypeMint
	case chain.IsZeroAddress(to):
		return model.TransferTypeBurn
	}
	return model.TransferTypeTransfer
}

// handleAuditOnly 只记录审计日志
func handleAuditOnly(context.Context, *repository.Store, chain.Event, time.Time) error {
	return nil
}

func handleIdeaCreated(ctx context.Context, tx *repository.Store, event chain.Event, blockTime time.Time) error {
	e := event.(*chain.IdeaCreated)
	return tx.Ideas.Upsert(ctx, &model.IdeaModel{
		IdeaId:       e.IdeaId.Int64(),
		Creator:      e.Creator.Hex(),
		Title:        chain.ParseBytes32String(e.Title),
		Categories:   datatypes.NewJSONSlice(chain.ParseBytes32Strings(e.Categories)),
		IpfsHash:     e.IpfsHash,
		Price:        decimal.NewFromBigInt(e.Price, 0),
		CreatedBlock: int64(e.BlockNumber),
		CreatedTime:  blockTime,
		TxHash:       e.TxHash.Hex(),
	})
}

func handleIdeaPurchased(ctx context.Context, tx *repository.Store, event chain.Event, blockTime time.Time) error {
	e := event.(*chain.IdeaPurchased)
	return RecordPurchase(ctx, tx, e, blockTime)
}

// RecordPurchase 写入购买记录并标记挂单已售，按 (ideaId, txHash) 幂等
func RecordPurchase(ctx context.Context, tx *repository.Store, e *chain.IdeaPurchased, blockTime time.Time) error {
	ts := blockTime
	if e.Timestamp != nil && e.Timestamp.Sign() > 0 {
		ts = time.Unix(e.Timestamp.Int64(), 0).UTC()
	}
	price := decimal.NewFromBigInt(e.Price, 0)
	fee := decimal.Zero
	if e.MarketplaceFee != nil {
		fee = decimal.NewFromBigInt(e.MarketplaceFee, 0)
	}

	if _, err := tx.Purchases.Create(ctx, &model.PurchaseModel{
		IdeaId:         e.IdeaId.Int64(),
		TxHash:         e.TxHash.Hex(),
		Buyer:          lower(e.Buyer),
		Seller:         lower(e.Seller),
		Price:          price,
		MarketplaceFee: fee,
		BlockNum:       int64(e.BlockNumber),
		Timestamp:      ts,
	}); err != nil {
		return err
	}
	return tx.Ideas.MarkPurchased(ctx, e.IdeaId.Int64(), e.Buyer.Hex(), price)
}

func handleTeamCreated(ctx context.Context, tx *repository.Store, event chain.Event, _ time.Time) error {
	e := event.(*chain.TeamCreated)
	return tx.Teams.Upsert(ctx, &model.TeamModel{
		TeamId:          e.TeamId.Int64(),
		Leader:          e.Leader.Hex(),
		TeamName:        e.TeamName,
		ProjectName:     e.ProjectName,
		RequiredMembers: int(e.RequiredMembers.Int64()),
		RequiredStake:   decimal.NewFromBigInt(e.RequiredStake, 0),
		CreatedBlock:    int64(e.BlockNumber),
		TxHash:          e.TxHash.Hex(),
	})
}

func lower(a common.Address) string {
	return strings.ToLower(a.Hex())
}
