package purchase

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/blues/ideamarket/internal/apiclient"
	"github.com/blues/ideamarket/internal/chain"
	"github.com/blues/ideamarket/internal/config"
	"github.com/blues/ideamarket/internal/session"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	buyer       = common.HexToAddress("0x1111111111111111111111111111111111111111")
	marketplace = common.HexToAddress("0x2222222222222222222222222222222222222222")
	price       = big.NewInt(50_000_000)
)

type mockChain struct {
	mock.Mock
}

func (m *mockChain) Connect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockChain) Account() (common.Address, bool) {
	args := m.Called()
	return args.Get(0).(common.Address), args.Bool(1)
}

func (m *mockChain) USDCBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	args := m.Called(ctx, owner)
	v, _ := args.Get(0).(*big.Int)
	return v, args.Error(1)
}

func (m *mockChain) USDCAllowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	args := m.Called(ctx, owner, spender)
	v, _ := args.Get(0).(*big.Int)
	return v, args.Error(1)
}

func (m *mockChain) ApproveUSDC(ctx context.Context, spender common.Address, amount *big.Int) (*chain.TxResult, error) {
	args := m.Called(ctx, spender, amount)
	v, _ := args.Get(0).(*chain.TxResult)
	return v, args.Error(1)
}

func (m *mockChain) MintUSDC(ctx context.Context, to common.Address, amount *big.Int) (*chain.TxResult, error) {
	args := m.Called(ctx, to, amount)
	v, _ := args.Get(0).(*chain.TxResult)
	return v, args.Error(1)
}

func (m *mockChain) BuyIdea(ctx context.Context, ideaId uint64) (*chain.TxResult, error) {
	args := m.Called(ctx, ideaId)
	v, _ := args.Get(0).(*chain.TxResult)
	return v, args.Error(1)
}

func (m *mockChain) MarketplaceAddress() common.Address {
	return marketplace
}

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) RecordPurchase(ctx context.Context, req apiclient.RecordPurchaseRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockAPI) RetrieveContent(ctx context.Context, ideaId int64, buyer string) (*apiclient.Content, error) {
	args := m.Called(ctx, ideaId, buyer)
	v, _ := args.Get(0).(*apiclient.Content)
	return v, args.Error(1)
}

func amount(want *big.Int) interface{} {
	return mock.MatchedBy(func(v *big.Int) bool { return v != nil && v.Cmp(want) == 0 })
}

func newMarket() *session.Market {
	m := session.NewMarket(nil)
	m.Replace([]apiclient.Idea{
		{IdeaId: 1, Title: "sold", Price: "1000000", IsPurchased: true},
		{IdeaId: 7, Title: "fresh", Price: price.String()},
	})
	return m
}

func testConfig() config.PurchaseConfig {
	return config.PurchaseConfig{
		MaxBalanceAttempts:    3,
		AllowancePollInterval: 5 * time.Millisecond,
		AllowancePollTimeout:  100 * time.Millisecond,
		TestMintAmount:        "10000",
	}
}

func buyTx() *chain.TxResult {
	return &chain.TxResult{Hash: common.HexToHash("0xbeef"), BlockNumber: 23452010}
}

func connected(c *mockChain) {
	c.On("Account").Return(buyer, true)
}

func happyAPI() *mockAPI {
	api := &mockAPI{}
	api.On("RecordPurchase", mock.Anything, mock.Anything).Return(nil)
	api.On("RetrieveContent", mock.Anything, int64(7), buyer.Hex()).Return(&apiclient.Content{IdeaId: 7, Content: "secret"}, nil)
	return api
}

func TestBuy_SufficientAllowanceSkipsApproval(t *testing.T) {
	c := &mockChain{}
	connected(c)
	c.On("USDCBalance", mock.Anything, buyer).Return(big.NewInt(100_000_000), nil)
	c.On("USDCAllowance", mock.Anything, buyer, marketplace).Return(price, nil)
	c.On("BuyIdea", mock.Anything, uint64(7)).Return(buyTx(), nil).Once()
	api := happyAPI()
	market := newMarket()

	res, err := NewOrchestrator(c, api, market, nil, testConfig()).Buy(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, buyTx().Hash.Hex(), res.TransactionHash)
	assert.False(t, res.Approved)
	assert.Equal(t, "secret", res.Content.Content)
	assert.Equal(t, []State{
		StateIdle, StateWalletConnecting, StateBalanceChecking, StateAllowanceChecking,
		StatePurchasing, StateContentRetrieving, StateSettled,
	}, res.Trace)
	c.AssertNotCalled(t, "ApproveUSDC", mock.Anything, mock.Anything, mock.Anything)
	c.AssertNotCalled(t, "MintUSDC", mock.Anything, mock.Anything, mock.Anything)
	c.AssertNumberOfCalls(t, "BuyIdea", 1)

	l, _ := market.Get(7)
	assert.True(t, l.IsOwned)
	assert.Equal(t, "50 USDC", l.SoldPrice)
}

func TestBuy_LowAllowanceApprovesExactPrice(t *testing.T) {
	c := &mockChain{}
	connected(c)
	c.On("USDCBalance", mock.Anything, buyer).Return(big.NewInt(100_000_000), nil)
	c.On("USDCAllowance", mock.Anything, buyer, marketplace).Return(big.NewInt(0), nil).Twice()
	c.On("USDCAllowance", mock.Anything, buyer, marketplace).Return(price, nil)
	c.On("ApproveUSDC", mock.Anything, marketplace, amount(price)).Return(&chain.TxResult{}, nil).Once()
	c.On("BuyIdea", mock.Anything, uint64(7)).Return(buyTx(), nil)

	res, err := NewOrchestrator(c, happyAPI(), newMarket(), nil, testConfig()).Buy(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, res.Approved)
	assert.Contains(t, res.Trace, StateApproving)
	c.AssertNumberOfCalls(t, "ApproveUSDC", 1)
	c.AssertNumberOfCalls(t, "USDCAllowance", 3)
}

func TestBuy_AllowanceNeverUpdates(t *testing.T) {
	c := &mockChain{}
	connected(c)
	c.On("USDCBalance", mock.Anything, buyer).Return(big.NewInt(100_000_000), nil)
	c.On("USDCAllowance", mock.Anything, buyer, marketplace).Return(big.NewInt(0), nil)
	c.On("ApproveUSDC", mock.Anything, marketplace, amount(price)).Return(&chain.TxResult{}, nil)

	res, err := NewOrchestrator(c, &mockAPI{}, newMarket(), nil, testConfig()).Buy(context.Background(), 7)
	assert.ErrorIs(t, err, ErrAllowanceTimeout)
	assert.Equal(t, StateFailed, res.Trace[len(res.Trace)-1])
	c.AssertNotCalled(t, "BuyIdea", mock.Anything, mock.Anything)
}

func TestBuy_CancelledWhileWaitingForAllowance(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &mockChain{}
	connected(c)
	c.On("USDCBalance", mock.Anything, buyer).Return(big.NewInt(100_000_000), nil)
	c.On("USDCAllowance", mock.Anything, buyer, marketplace).Return(big.NewInt(0), nil)
	c.On("ApproveUSDC", mock.Anything, marketplace, amount(price)).
		Run(func(mock.Arguments) { cancel() }).
		Return(&chain.TxResult{}, nil)

	cfg := testConfig()
	cfg.AllowancePollTimeout = time.Minute
	_, err := NewOrchestrator(c, &mockAPI{}, newMarket(), nil, cfg).Buy(ctx, 7)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrAllowanceTimeout)
	c.AssertNotCalled(t, "BuyIdea", mock.Anything, mock.Anything)
}

func TestBuy_SoldListingFailsBeforeAnyWrite(t *testing.T) {
	c := &mockChain{}
	connected(c)
	c.On("USDCBalance", mock.Anything, buyer).Return(big.NewInt(0), nil)
	cfg := testConfig()
	cfg.AutoMintTestUSDC = true

	_, err := NewOrchestrator(c, &mockAPI{}, newMarket(), nil, cfg).Buy(context.Background(), 1)
	assert.ErrorIs(t, err, ErrListingSold)
	c.AssertNotCalled(t, "MintUSDC", mock.Anything, mock.Anything, mock.Anything)
	c.AssertNotCalled(t, "ApproveUSDC", mock.Anything, mock.Anything, mock.Anything)
	c.AssertNotCalled(t, "BuyIdea", mock.Anything, mock.Anything)
}

func TestBuy_UnknownListingEnumeratesIds(t *testing.T) {
	c := &mockChain{}
	connected(c)
	c.On("USDCBalance", mock.Anything, buyer).Return(big.NewInt(100_000_000), nil)

	_, err := NewOrchestrator(c, &mockAPI{}, newMarket(), nil, testConfig()).Buy(context.Background(), 42)
	assert.ErrorIs(t, err, ErrListingNotFound)
	assert.Contains(t, err.Error(), "[1 7]")
}

func TestBuy_InsufficientFunds(t *testing.T) {
	c := &mockChain{}
	connected(c)
	c.On("USDCBalance", mock.Anything, buyer).Return(big.NewInt(10_000_000), nil)
	c.On("USDCAllowance", mock.Anything, buyer, marketplace).Return(big.NewInt(0), nil)

	_, err := NewOrchestrator(c, &mockAPI{}, newMarket(), nil, testConfig()).Buy(context.Background(), 7)
	var insufficient *InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.Zero(t, price.Cmp(insufficient.Required))
	assert.EqualValues(t, 10_000_000, insufficient.Actual.Int64())
	assert.Contains(t, err.Error(), "required 50 USDC, have 10 USDC")
}

func TestBuy_ZeroBalanceMintsOnlyWhenEnabled(t *testing.T) {
	c := &mockChain{}
	connected(c)
	c.On("USDCBalance", mock.Anything, buyer).Return(big.NewInt(0), nil)

	_, err := NewOrchestrator(c, &mockAPI{}, newMarket(), nil, testConfig()).Buy(context.Background(), 7)
	var insufficient *InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	c.AssertNotCalled(t, "MintUSDC", mock.Anything, mock.Anything, mock.Anything)

	c = &mockChain{}
	connected(c)
	c.On("USDCBalance", mock.Anything, buyer).Return(big.NewInt(0), nil).Once()
	c.On("USDCBalance", mock.Anything, buyer).Return(big.NewInt(10_000_000_000), nil)
	c.On("MintUSDC", mock.Anything, buyer, amount(big.NewInt(10_000_000_000))).Return(&chain.TxResult{}, nil).Once()
	c.On("USDCAllowance", mock.Anything, buyer, marketplace).Return(price, nil)
	c.On("BuyIdea", mock.Anything, uint64(7)).Return(buyTx(), nil)
	cfg := testConfig()
	cfg.AutoMintTestUSDC = true

	market := newMarket()
	res, err := NewOrchestrator(c, happyAPI(), market, nil, cfg).Buy(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, res.Minted)
	assert.Contains(t, res.Trace, StateMinting)
	c.AssertNumberOfCalls(t, "MintUSDC", 1)

	l, _ := market.Get(7)
	assert.True(t, l.IsSold)
	assert.Equal(t, "50 USDC", l.SoldPrice)
}

func TestBuy_PostPurchaseFailuresAreSwallowed(t *testing.T) {
	c := &mockChain{}
	connected(c)
	c.On("USDCBalance", mock.Anything, buyer).Return(big.NewInt(100_000_000), nil)
	c.On("USDCAllowance", mock.Anything, buyer, marketplace).Return(price, nil)
	c.On("BuyIdea", mock.Anything, uint64(7)).Return(buyTx(), nil)
	api := &mockAPI{}
	api.On("RecordPurchase", mock.Anything, mock.Anything).Return(errors.New("api down"))
	api.On("RetrieveContent", mock.Anything, int64(7), buyer.Hex()).Return(nil, errors.New("gateway timeout"))
	market := newMarket()

	res, err := NewOrchestrator(c, api, market, nil, testConfig()).Buy(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, buyTx().Hash.Hex(), res.TransactionHash)
	assert.EqualValues(t, 23452010, res.BlockNumber)
	assert.Nil(t, res.Content)
	assert.Len(t, res.Warnings, 2)
	assert.Equal(t, StateSettled, res.Trace[len(res.Trace)-1])

	l, _ := market.Get(7)
	assert.True(t, l.IsSold)
}

func TestBuy_ReconnectsThenGivesUp(t *testing.T) {
	c := &mockChain{}
	connected(c)
	c.On("USDCBalance", mock.Anything, buyer).Return(nil, chain.ErrProviderNotInitialized)
	c.On("Connect", mock.Anything).Return(nil)

	_, err := NewOrchestrator(c, &mockAPI{}, newMarket(), nil, testConfig()).Buy(context.Background(), 7)
	assert.ErrorIs(t, err, ErrWalletUnavailable)
	c.AssertNumberOfCalls(t, "USDCBalance", 3)
	// 最后一次失败后不再重连
	c.AssertNumberOfCalls(t, "Connect", 2)
}

func TestBuy_PurchaseFailureIsFatal(t *testing.T) {
	c := &mockChain{}
	connected(c)
	c.On("USDCBalance", mock.Anything, buyer).Return(big.NewInt(100_000_000), nil)
	c.On("USDCAllowance", mock.Anything, buyer, marketplace).Return(price, nil)
	c.On("BuyIdea", mock.Anything, uint64(7)).Return(nil, chain.ErrTxReverted)
	api := &mockAPI{}
	market := newMarket()

	_, err := NewOrchestrator(c, api, market, nil, testConfig()).Buy(context.Background(), 7)
	assert.ErrorIs(t, err, chain.ErrTxReverted)
	api.AssertNotCalled(t, "RecordPurchase", mock.Anything, mock.Anything)
	l, _ := market.Get(7)
	assert.False(t, l.IsSold)
}
