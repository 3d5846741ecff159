package purchase

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/blues/ideamarket/internal/apiclient"
	"github.com/blues/ideamarket/internal/chain"
	"github.com/blues/ideamarket/internal/config"
	"github.com/blues/ideamarket/internal/logger"
	"github.com/blues/ideamarket/internal/session"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

// State 购买流程状态
type State string

const (
	StateIdle              State = "idle"
	StateWalletConnecting  State = "wallet_connecting"
	StateBalanceChecking   State = "balance_checking"
	StateMinting           State = "minting"
	StateAllowanceChecking State = "allowance_checking"
	StateApproving         State = "approving"
	StatePurchasing        State = "purchasing"
	StateContentRetrieving State = "content_retrieving"
	StateSettled           State = "settled"
	StateFailed            State = "failed"
)

// ChainAdapter 购买流程使用的链能力，*chain.Manager 实现了它
type ChainAdapter interface {
	Connect(ctx context.Context) error
	Account() (common.Address, bool)
	USDCBalance(ctx context.Context, owner common.Address) (*big.Int, error)
	USDCAllowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	ApproveUSDC(ctx context.Context, spender common.Address, amount *big.Int) (*chain.TxResult, error)
	MintUSDC(ctx context.Context, to common.Address, amount *big.Int) (*chain.TxResult, error)
	BuyIdea(ctx context.Context, ideaId uint64) (*chain.TxResult, error)
	MarketplaceAddress() common.Address
}

var _ ChainAdapter = (*chain.Manager)(nil)

// API 成交后的两个尽力而为步骤
type API interface {
	RecordPurchase(ctx context.Context, req apiclient.RecordPurchaseRequest) error
	RetrieveContent(ctx context.Context, ideaId int64, buyer string) (*apiclient.Content, error)
}

// Refresher 成交后刷新余额
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Result 购买结果，Trace 为经过的状态
type Result struct {
	IdeaId          int64              `json:"ideaId"`
	TransactionHash string             `json:"transactionHash"`
	BlockNumber     uint64             `json:"blockNumber"`
	Price           string             `json:"price"`
	Minted          bool               `json:"minted"`
	Approved        bool               `json:"approved"`
	Content         *apiclient.Content `json:"content,omitempty"`
	Warnings        []string           `json:"warnings,omitempty"`
	Trace           []State            `json:"trace"`
}

// Orchestrator 购买流程，链上成交之前的错误中止流程，之后的错误只记录
type Orchestrator struct {
	chain  ChainAdapter
	api    API
	market *session.Market
	wallet Refresher
	cfg    config.PurchaseConfig
	nowFn  func() time.Time
}

// NewOrchestrator wallet 可以为空
func NewOrchestrator(chain ChainAdapter, api API, market *session.Market, wallet Refresher, cfg config.PurchaseConfig) *Orchestrator {
	if cfg.MaxBalanceAttempts <= 0 {
		cfg.MaxBalanceAttempts = 3
	}
	if cfg.AllowancePollInterval <= 0 {
		cfg.AllowancePollInterval = 500 * time.Millisecond
	}
	if cfg.AllowancePollTimeout <= 0 {
		cfg.AllowancePollTimeout = 30 * time.Second
	}
	if cfg.TestMintAmount == "" {
		cfg.TestMintAmount = "10000"
	}
	return &Orchestrator{chain: chain, api: api, market: market, wallet: wallet, cfg: cfg, nowFn: time.Now}
}

type flow struct {
	o      *Orchestrator
	result *Result
}

func (f *flow) enter(s State) {
	f.result.Trace = append(f.result.Trace, s)
	logger.Debug("Purchase of idea %d: %s", f.result.IdeaId, s)
}

func (f *flow) fail(err error) (*Result, error) {
	from := f.result.Trace[len(f.result.Trace)-1]
	f.enter(StateFailed)
	logger.Warn("Purchase of idea %d failed in %s: %v", f.result.IdeaId, from, err)
	return f.result, err
}

func (f *flow) warn(step string, err error) {
	logger.Warn("Purchase of idea %d: %s failed: %v", f.result.IdeaId, step, err)
	f.result.Warnings = append(f.result.Warnings, fmt.Sprintf("%s: %v", step, err))
}

// Buy 购买挂单
func (o *Orchestrator) Buy(ctx context.Context, ideaId int64) (*Result, error) {
	f := &flow{o: o, result: &Result{IdeaId: ideaId}}
	f.enter(StateIdle)

	f.enter(StateWalletConnecting)
	buyer, err := o.ensureAccount(ctx)
	if err != nil {
		return f.fail(err)
	}

	f.enter(StateBalanceChecking)
	balance, err := o.readBalance(ctx, buyer)
	if err != nil {
		return f.fail(err)
	}

	// 售出检查在任何链上写入之前，包括测试币铸造
	listing, ok := o.market.Get(ideaId)
	if !ok {
		return f.fail(listingNotFound(ideaId, o.market.IDs()))
	}
	if listing.IsSold {
		return f.fail(fmt.Errorf("idea %d: %w", ideaId, ErrListingSold))
	}
	price := listing.PriceUnits()
	f.result.Price = price.String()

	if balance.Sign() == 0 {
		if !o.cfg.AutoMintTestUSDC {
			return f.fail(&InsufficientFundsError{Required: price, Actual: balance})
		}
		f.enter(StateMinting)
		amount, err := chain.ParseUSDC(o.cfg.TestMintAmount)
		if err != nil {
			return f.fail(fmt.Errorf("invalid test mint amount: %w", err))
		}
		logger.Warn("Minting %s test USDC to %s (purchase.auto_mint_test_usdc is enabled)", o.cfg.TestMintAmount, buyer.Hex())
		if _, err := o.chain.MintUSDC(ctx, buyer, amount); err != nil {
			return f.fail(err)
		}
		f.result.Minted = true
	}

	f.enter(StateAllowanceChecking)
	spender := o.chain.MarketplaceAddress()
	balance, allowance, err := o.readBalanceAndAllowance(ctx, buyer, spender)
	if err != nil {
		return f.fail(err)
	}
	if balance.Cmp(price) < 0 {
		return f.fail(&InsufficientFundsError{Required: price, Actual: balance})
	}

	if allowance.Cmp(price) < 0 {
		f.enter(StateApproving)
		if _, err := o.chain.ApproveUSDC(ctx, spender, price); err != nil {
			return f.fail(err)
		}
		if err := o.waitForAllowance(ctx, buyer, spender, price); err != nil {
			return f.fail(err)
		}
		f.result.Approved = true
	}

	f.enter(StatePurchasing)
	tx, err := o.chain.BuyIdea(ctx, uint64(ideaId))
	if err != nil {
		return f.fail(err)
	}
	f.result.TransactionHash = tx.Hash.Hex()
	f.result.BlockNumber = tx.BlockNumber

	// 以下步骤失败不影响已上链的结果
	f.enter(StateContentRetrieving)
	if err := o.api.RecordPurchase(ctx, apiclient.RecordPurchaseRequest{
		IdeaId:          ideaId,
		TransactionHash: f.result.TransactionHash,
		BuyerAddress:    buyer.Hex(),
	}); err != nil {
		f.warn("record purchase", err)
	}
	if content, err := o.api.RetrieveContent(ctx, ideaId, buyer.Hex()); err != nil {
		f.warn("retrieve content", err)
	} else {
		f.result.Content = content
	}

	o.market.MarkPurchased(ideaId, price, o.nowFn())
	if o.wallet != nil {
		if err := o.wallet.Refresh(ctx); err != nil {
			f.warn("refresh balance", err)
		}
	}

	f.enter(StateSettled)
	logger.Info("Purchased idea %d in tx %s", ideaId, f.result.TransactionHash)
	return f.result, nil
}

func (o *Orchestrator) ensureAccount(ctx context.Context) (common.Address, error) {
	if account, ok := o.chain.Account(); ok {
		return account, nil
	}
	if err := o.chain.Connect(ctx); err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrWalletUnavailable, err)
	}
	account, ok := o.chain.Account()
	if !ok {
		return common.Address{}, ErrWalletUnavailable
	}
	return account, nil
}

// readBalance 客户端未初始化时重连重试，其他错误直接返回
func (o *Orchestrator) readBalance(ctx context.Context, buyer common.Address) (*big.Int, error) {
	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxBalanceAttempts; attempt++ {
		balance, err := o.chain.USDCBalance(ctx, buyer)
		if err == nil {
			return balance, nil
		}
		if !errors.Is(err, chain.ErrProviderNotInitialized) {
			return nil, err
		}
		lastErr = err
		if attempt == o.cfg.MaxBalanceAttempts {
			break
		}
		logger.Warn("Balance check attempt %d/%d failed, reconnecting: %v", attempt, o.cfg.MaxBalanceAttempts, err)
		if err := o.chain.Connect(ctx); err != nil {
			lastErr = err
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrWalletUnavailable, lastErr)
}

// readBalanceAndAllowance 额度可能在两次读取之间变化，这里总是重新读取
func (o *Orchestrator) readBalanceAndAllowance(ctx context.Context, buyer, spender common.Address) (balance, allowance *big.Int, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		balance, err = o.chain.USDCBalance(gctx, buyer)
		return err
	})
	g.Go(func() (err error) {
		allowance, err = o.chain.USDCAllowance(gctx, buyer, spender)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return balance, allowance, nil
}

// waitForAllowance 轮询直到额度不小于 price
func (o *Orchestrator) waitForAllowance(ctx context.Context, buyer, spender common.Address, price *big.Int) error {
	pollCtx, cancel := context.WithTimeout(ctx, o.cfg.AllowancePollTimeout)
	defer cancel()

	ticker := time.NewTicker(o.cfg.AllowancePollInterval)
	defer ticker.Stop()

	for {
		allowance, err := o.chain.USDCAllowance(pollCtx, buyer, spender)
		if err == nil && allowance.Cmp(price) >= 0 {
			return nil
		}
		if err != nil {
			logger.Debug("Allowance poll failed: %v", err)
		}
		select {
		case <-pollCtx.Done():
			// 调用方取消时返回其原因
			if err := ctx.Err(); err != nil {
				return err
			}
			return ErrAllowanceTimeout
		case <-ticker.C:
		}
	}
}
