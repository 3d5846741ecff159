package session

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"

	"github.com/blues/ideamarket/internal/identity"
	"github.com/blues/ideamarket/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

// ErrNotConnected 钱包未连接
var ErrNotConnected = errors.New("wallet not connected")

// WalletBackend 钱包依赖的链能力
type WalletBackend interface {
	Connect(ctx context.Context) error
	Account() (common.Address, bool)
	NativeBalance(ctx context.Context, account common.Address) (*big.Int, error)
	USDCBalance(ctx context.Context, owner common.Address) (*big.Int, error)
}

// Balances 钱包余额，均为最小单位
type Balances struct {
	Native *big.Int
	USDC   *big.Int
}

// Wallet 钱包状态
type Wallet struct {
	backend    WalletBackend
	identities *identity.Cache

	mu       sync.RWMutex
	address  common.Address
	balances Balances
}

func NewWallet(backend WalletBackend, identities *identity.Cache) *Wallet {
	return &Wallet{backend: backend, identities: identities}
}

// Connect 连接并读取余额，余额读取失败不影响连接结果
func (w *Wallet) Connect(ctx context.Context) error {
	if err := w.backend.Connect(ctx); err != nil {
		return err
	}
	account, ok := w.backend.Account()
	if !ok {
		return ErrNotConnected
	}

	w.mu.Lock()
	w.address = account
	w.mu.Unlock()

	if err := w.Refresh(ctx); err != nil {
		logger.Warn("Connected %s but balance refresh failed: %v", account.Hex(), err)
	}
	return nil
}

// Disconnect 清空状态并使身份缓存失效
func (w *Wallet) Disconnect() {
	w.mu.Lock()
	w.address = common.Address{}
	w.balances = Balances{}
	w.mu.Unlock()
	w.invalidate()
}

// SwitchAccount 切换账户后余额需要重新读取
func (w *Wallet) SwitchAccount(ctx context.Context, account common.Address) error {
	w.mu.Lock()
	w.address = account
	w.balances = Balances{}
	w.mu.Unlock()
	w.invalidate()
	return w.Refresh(ctx)
}

func (w *Wallet) invalidate() {
	if w.identities != nil {
		w.identities.Invalidate()
	}
}

// Refresh 并行读取原生币和USDC余额
func (w *Wallet) Refresh(ctx context.Context) error {
	account, ok := w.Address()
	if !ok {
		return ErrNotConnected
	}

	var balances Balances
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		balances.Native, err = w.backend.NativeBalance(gctx, account)
		return err
	})
	g.Go(func() (err error) {
		balances.USDC, err = w.backend.USDCBalance(gctx, account)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	w.mu.Lock()
	if w.address == account {
		w.balances = balances
	}
	w.mu.Unlock()
	return nil
}

// Address 当前账户
func (w *Wallet) Address() (common.Address, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.address, w.address != (common.Address{})
}

func (w *Wallet) Balances() Balances {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.balances
}

// Identity 当前账户的身份，没有身份时返回 nil
func (w *Wallet) Identity(ctx context.Context) (*identity.Identity, error) {
	account, ok := w.Address()
	if !ok {
		return nil, ErrNotConnected
	}
	if w.identities == nil {
		return nil, nil
	}
	return w.identities.Lookup(ctx, strings.ToLower(account.Hex()))
}
