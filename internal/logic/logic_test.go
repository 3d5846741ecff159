package logic

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/blues/ideamarket/internal/chain"
	"github.com/blues/ideamarket/internal/content"
	"github.com/blues/ideamarket/internal/graphql"
	"github.com/blues/ideamarket/internal/indexer"
	"github.com/blues/ideamarket/internal/model"
	"github.com/blues/ideamarket/internal/repository"
	"github.com/blues/ideamarket/internal/storage"
	"github.com/blues/ideamarket/internal/testutil"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testGateway = "https://ipfs.filebase.io/ipfs/"
	testKey     = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	buyerAddr   = "0x1111111111111111111111111111111111111111"
)

var _ ChainGateway = (*testutil.FakeChain)(nil)

type fixture struct {
	store  *repository.Store
	chain  *testutil.FakeChain
	pinner *storage.MemoryPinner
}

func newFixture(t *testing.T) *fixture {
	return &fixture{
		store:  repository.NewStore(testutil.NewDB(t)),
		chain:  testutil.NewFakeChain(),
		pinner: storage.NewMemoryPinner(testGateway),
	}
}

func (f *fixture) ideas(t *testing.T) *IdeaLogic {
	sealer, err := content.NewSealer(testKey)
	require.NoError(t, err)
	return NewIdeaLogic(f.store, f.chain, graphql.NewClient("", nil), f.pinner, sealer, testGateway)
}

func validSuperhero() CreateSuperheroInput {
	return CreateSuperheroInput{
		Name:         "Captain Ledger",
		Bio:          "Builds settlement layers for fun and writes about it on weekends.",
		Skills:       []string{"solidity", "go"},
		Specialities: []string{"defi"},
		UserAddress:  "0x00000000000000000000000000000000000000aa",
	}
}

func TestEmojiAvatar_Deterministic(t *testing.T) {
	assert.Equal(t, emojiAvatars[0], EmojiAvatar("0x0000000000000000000000000000000000000000"))
	// 0x19 = 25, 25 % 24 = 1
	assert.Equal(t, emojiAvatars[1], EmojiAvatar("0x0000000000000000000000000000000000000019"))
	assert.Equal(t, EmojiAvatar(buyerAddr), EmojiAvatar(buyerAddr))
}

func TestSuperheroCreate_WritesChainAndDatastore(t *testing.T) {
	f := newFixture(t)
	logic := NewSuperheroLogic(f.store, f.chain, f.pinner, testGateway)
	ctx := context.Background()

	res, err := logic.Create(ctx, validSuperhero())
	require.NoError(t, err)
	assert.False(t, res.Pending)
	assert.NotEmpty(t, res.TransactionHash)
	assert.True(t, strings.HasPrefix(res.MetadataUrl, testGateway))
	require.NotNil(t, res.Superhero)
	assert.EqualValues(t, 1, res.Superhero.SuperheroId)
	assert.Equal(t, 1, f.pinner.Len())

	row, err := f.store.Superheroes.GetByAddress(ctx, "0x00000000000000000000000000000000000000AA")
	require.NoError(t, err)
	assert.Equal(t, "Captain Ledger", row.Name)
	assert.Equal(t, []string{"solidity", "go"}, []string(row.Skills))

	_, err = logic.Create(ctx, validSuperhero())
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestSuperheroCreate_DegradesWhenChainFails(t *testing.T) {
	f := newFixture(t)
	f.chain.WriteErr = errors.New("failed to create superhero: dial tcp: connection refused")
	logic := NewSuperheroLogic(f.store, f.chain, f.pinner, testGateway)
	ctx := context.Background()

	res, err := logic.Create(ctx, validSuperhero())
	require.NoError(t, err)
	assert.True(t, res.Pending)
	assert.Equal(t, PendingChainMessage, res.Message)
	require.NotNil(t, res.Metadata)
	assert.Equal(t, "Captain Ledger", res.Metadata.Name)
	assert.NotEmpty(t, res.Metadata.Image)
	assert.Nil(t, res.Superhero)

	_, err = f.store.Superheroes.GetByAddress(ctx, validSuperhero().UserAddress)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSuperheroCreate_SignerErrorsAreNotPending(t *testing.T) {
	f := newFixture(t)
	f.chain.WriteErr = chain.ErrNoSigner
	logic := NewSuperheroLogic(f.store, f.chain, f.pinner, testGateway)

	res, err := logic.Create(context.Background(), validSuperhero())
	assert.ErrorIs(t, err, chain.ErrNoSigner)
	assert.Nil(t, res)
}

func TestTeamCreate_RevertIsAnError(t *testing.T) {
	f := newFixture(t)
	f.chain.WriteErr = fmt.Errorf("%w: 0xbeef", chain.ErrTxReverted)

	_, err := NewTeamLogic(f.store, f.chain).Create(context.Background(), CreateTeamInput{
		TeamName:        "Rollup Rangers",
		RequiredMembers: 2,
		LeaderAddress:   buyerAddr,
	})
	assert.ErrorIs(t, err, chain.ErrTxReverted)
}

func TestSuperheroCreate_ValidatesBeforeSideEffects(t *testing.T) {
	f := newFixture(t)
	logic := NewSuperheroLogic(f.store, f.chain, f.pinner, testGateway)

	in := validSuperhero()
	in.Name = strings.Repeat("x", 32)
	_, err := logic.Create(context.Background(), in)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)
	assert.Equal(t, 0, f.pinner.Len())
	assert.Equal(t, 0, f.chain.Calls("CreateSuperhero"))

	in = validSuperhero()
	in.UserAddress = "0x123"
	_, err = logic.Create(context.Background(), in)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "userAddress", verr.Field)
}

func TestSuperheroCreate_NameTaken(t *testing.T) {
	f := newFixture(t)
	f.chain.TakenNames["Captain Ledger"] = true
	logic := NewSuperheroLogic(f.store, f.chain, f.pinner, testGateway)

	_, err := logic.Create(context.Background(), validSuperhero())
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.Equal(t, 0, f.chain.Calls("CreateSuperhero"))
}

func TestSuperheroCreate_NameCheckFailureIsTransient(t *testing.T) {
	f := newFixture(t)
	f.chain.NameErr = errors.New("execution reverted")
	logic := NewSuperheroLogic(f.store, f.chain, f.pinner, testGateway)

	res, err := logic.Create(context.Background(), validSuperhero())
	require.NoError(t, err)
	assert.False(t, res.Pending)
	assert.Equal(t, 1, f.chain.Calls("CreateSuperhero"))
}

func TestSuperheroGet_FallsBackToChain(t *testing.T) {
	f := newFixture(t)
	logic := NewSuperheroLogic(f.store, f.chain, f.pinner, testGateway)
	ctx := context.Background()

	f.chain.Profiles[common.HexToAddress(buyerAddr)] = &chain.SuperheroProfile{
		SuperheroId: 7,
		Name:        "Byte Knight",
		AvatarUrl:   "ipfs://bafkreiabc",
	}

	hero, err := logic.Get(ctx, buyerAddr)
	require.NoError(t, err)
	assert.EqualValues(t, 7, hero.SuperheroId)
	assert.Equal(t, testGateway+"bafkreiabc", hero.AvatarUrl)

	_, err = logic.Get(ctx, "0x2222222222222222222222222222222222222222")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = logic.Get(ctx, "not-an-address")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestIdeaCreate_SealsContentAndRetrievesForOwner(t *testing.T) {
	f := newFixture(t)
	logic := f.ideas(t)
	ctx := context.Background()

	res, err := logic.Create(ctx, CreateIdeaInput{
		Title:          "Gasless onboarding",
		Description:    "Sponsor the first three transactions",
		Content:        "use a paymaster with a per-user budget",
		Categories:     []string{"ux", "aa"},
		Price:          "12.5",
		CreatorAddress: "0x00000000000000000000000000000000000000aa",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Idea)
	assert.EqualValues(t, 1, res.Idea.IdeaId)
	assert.Equal(t, "12500000", res.Idea.Price)
	assert.Equal(t, "12.5", res.Idea.PriceUSDC)

	raw, err := f.pinner.Fetch(ctx, res.IpfsHash)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "paymaster")

	_, err = logic.RetrieveContent(ctx, 1, buyerAddr)
	assert.ErrorIs(t, err, ErrNotOwner)

	f.chain.Owners[1] = common.HexToAddress(buyerAddr)
	got, err := logic.RetrieveContent(ctx, 1, buyerAddr)
	require.NoError(t, err)
	assert.Equal(t, "use a paymaster with a per-user budget", got.Content)
	assert.Equal(t, "Gasless onboarding", got.Title)
}

func TestIdeaCreate_RejectsBadPrice(t *testing.T) {
	f := newFixture(t)
	logic := f.ideas(t)

	for _, price := range []string{"0", "-1", "1.0000001", "abc"} {
		_, err := logic.Create(context.Background(), CreateIdeaInput{
			Title:          "t",
			Content:        "c",
			Categories:     []string{"x"},
			Price:          price,
			CreatorAddress: buyerAddr,
		})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, price)
		assert.Equal(t, "price", verr.Field)
	}
	assert.Equal(t, 0, f.chain.Calls("CreateIdea"))
}

func TestIdeaCreate_DegradesWithoutLeakingContent(t *testing.T) {
	f := newFixture(t)
	f.chain.WriteErr = errors.New("failed to create idea: nonce too low")
	logic := f.ideas(t)

	res, err := logic.Create(context.Background(), CreateIdeaInput{
		Title:          "t",
		Content:        "secret",
		Categories:     []string{"x"},
		Price:          "1",
		CreatorAddress: buyerAddr,
	})
	require.NoError(t, err)
	assert.True(t, res.Pending)
	require.NotNil(t, res.Metadata)
	assert.Empty(t, res.Metadata.SealedContent)
	assert.NotEmpty(t, res.IpfsHash)
}

func TestIdeaList_FallsBackToChain(t *testing.T) {
	f := newFixture(t)
	logic := f.ideas(t)
	ctx := context.Background()

	for i := uint64(1); i <= 3; i++ {
		f.chain.Ideas[i] = &chain.IdeaDetails{
			IdeaId:      i,
			Title:       "idea",
			Price:       big.NewInt(int64(i) * 1_000_000),
			IsPurchased: i == 2,
		}
	}

	page, err := logic.List(ctx, true, repository.Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, SourceChain, page.Source)
	require.Len(t, page.Items, 2)
	assert.EqualValues(t, 3, page.Items[0].IdeaId)
	assert.EqualValues(t, 1, page.Items[1].IdeaId)
	assert.Equal(t, "3", page.Items[0].PriceUSDC)

	require.NoError(t, f.store.Ideas.Upsert(ctx, &model.IdeaModel{IdeaId: 9, Creator: buyerAddr, Title: "cached"}))
	page, err = logic.List(ctx, false, repository.Page{})
	require.NoError(t, err)
	assert.Equal(t, SourceDatastore, page.Source)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "cached", page.Items[0].Title)
}

func TestIdeaGet_ZeroIdIsNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.ideas(t).Get(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func purchasedEvent(ideaId int64, buyer string, price int64) *chain.IdeaPurchased {
	return &chain.IdeaPurchased{
		IdeaId:         big.NewInt(ideaId),
		Buyer:          common.HexToAddress(buyer),
		Seller:         common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Price:          big.NewInt(price),
		MarketplaceFee: big.NewInt(price / 40),
		Timestamp:      big.NewInt(1760000000),
	}
}

func TestPurchaseRecord_IdempotentAndMarksIdea(t *testing.T) {
	f := newFixture(t)
	logic := NewPurchaseLogic(f.store, f.chain, indexer.NewRegistry())
	ctx := context.Background()

	hash := f.chain.AddReceipt(types.ReceiptStatusSuccessful, purchasedEvent(5, buyerAddr, 50_000_000))
	in := RecordPurchaseInput{IdeaId: 5, TransactionHash: hash.Hex(), BuyerAddress: buyerAddr}

	res, err := logic.Record(ctx, in)
	require.NoError(t, err)
	assert.True(t, res.Recorded)
	assert.Equal(t, "50", res.PriceUSDC)

	res, err = logic.Record(ctx, in)
	require.NoError(t, err)
	assert.False(t, res.Recorded)

	purchases, total, err := logic.List(ctx, buyerAddr, repository.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, time.Unix(1760000000, 0).UTC(), purchases[0].Timestamp.UTC())

	idea, err := f.store.Ideas.Get(ctx, 5)
	require.NoError(t, err)
	assert.True(t, idea.IsPurchased)
	assert.True(t, idea.Price.Equal(decimal.NewFromInt(50_000_000)))
}

func TestPurchaseRecord_RejectsUnverifiableTx(t *testing.T) {
	f := newFixture(t)
	logic := NewPurchaseLogic(f.store, f.chain, indexer.NewRegistry())
	ctx := context.Background()
	var verr *ValidationError

	missing := common.HexToHash("0xdead").Hex()
	_, err := logic.Record(ctx, RecordPurchaseInput{IdeaId: 1, TransactionHash: missing, BuyerAddress: buyerAddr})
	require.ErrorAs(t, err, &verr)

	failed := f.chain.AddReceipt(types.ReceiptStatusFailed, purchasedEvent(1, buyerAddr, 1))
	_, err = logic.Record(ctx, RecordPurchaseInput{IdeaId: 1, TransactionHash: failed.Hex(), BuyerAddress: buyerAddr})
	require.ErrorAs(t, err, &verr)

	other := f.chain.AddReceipt(types.ReceiptStatusSuccessful, purchasedEvent(2, buyerAddr, 1))
	_, err = logic.Record(ctx, RecordPurchaseInput{IdeaId: 1, TransactionHash: other.Hex(), BuyerAddress: buyerAddr})
	require.ErrorAs(t, err, &verr)

	_, err = logic.Record(ctx, RecordPurchaseInput{IdeaId: 1, TransactionHash: "0x1234", BuyerAddress: buyerAddr})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "transactionHash", verr.Field)
}

func TestTeamCreate(t *testing.T) {
	f := newFixture(t)
	logic := NewTeamLogic(f.store, f.chain)
	ctx := context.Background()

	in := CreateTeamInput{
		TeamName:        "Rollup Rangers",
		ProjectName:     "zk bridge",
		Description:     "Looking for a circuit engineer",
		RequiredMembers: 3,
		RequiredStake:   "25.5",
		Roles:           []string{"circuits", "frontend"},
		LeaderAddress:   buyerAddr,
	}
	res, err := logic.Create(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, res.Team)

	team, err := logic.Get(ctx, res.Team.TeamId)
	require.NoError(t, err)
	assert.Equal(t, model.TeamStatusRecruiting, team.Status)
	assert.True(t, team.RequiredStake.Equal(decimal.NewFromInt(25_500_000)))
	assert.Equal(t, "Looking for a circuit engineer", team.Description)

	in.RequiredMembers = 11
	_, err = logic.Create(ctx, in)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "requiredMembers", verr.Field)

	_, err = logic.Get(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = logic.List(ctx, "sleeping", repository.Page{})
	assert.ErrorAs(t, err, &verr)
}

func TestChainBalance_ReadsBothInParallel(t *testing.T) {
	f := newFixture(t)
	account := common.HexToAddress(buyerAddr)
	f.chain.Native[account] = new(big.Int).Mul(big.NewInt(15), big.NewInt(1e17))
	f.chain.USDC[account] = big.NewInt(10_000_000_000)

	balance, err := NewChainLogic(f.chain).Balance(context.Background(), buyerAddr)
	require.NoError(t, err)
	assert.Equal(t, "1.5", balance.Native)
	assert.Equal(t, "10000", balance.USDC)
	assert.Equal(t, 1, f.chain.Calls("NativeBalance"))
	assert.Equal(t, 1, f.chain.Calls("USDCBalance"))
}

func TestStats_ChainHeadIsOptional(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Ideas.Upsert(ctx, &model.IdeaModel{IdeaId: 1, Creator: buyerAddr, Title: "a"}))
	require.NoError(t, f.store.Ideas.MarkPurchased(ctx, 1, buyerAddr, decimal.NewFromInt(2_000_000)))
	_, err := f.store.Purchases.Create(ctx, &model.PurchaseModel{
		IdeaId: 1, TxHash: "0x01", Buyer: buyerAddr, Price: decimal.NewFromInt(2_000_000),
	})
	require.NoError(t, err)

	f.chain.ReadErr = errors.New("dial tcp: connection refused")
	stats, err := NewStatsLogic(f.store, f.chain).Get(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Ideas)
	assert.EqualValues(t, 1, stats.PurchasedIdeas)
	assert.Equal(t, "2", stats.VolumeUSDC)
	assert.Zero(t, stats.ChainHead)

	health, healthy := NewStatsLogic(f.store, f.chain).Health(ctx)
	assert.True(t, healthy)
	assert.Equal(t, "connected", health["database"])
}

func TestIsAddress(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"0x00000000000000000000000000000000000000aa", true},
		{"0xABCDEFabcdef0123456789ABCDEFabcdef012345", true},
		{"0x00000000000000000000000000000000000000a", false},
		{"0x00000000000000000000000000000000000000aaa", false},
		{"00000000000000000000000000000000000000aa00", false},
		{"0X00000000000000000000000000000000000000aa", false},
		{"0x00000000000000000000000000000000000000ag", false},
		{" 0x00000000000000000000000000000000000000aa", false},
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsAddress(tc.in), tc.in)
	}
}

func TestIdeaList_PastEndStaysOnDatastore(t *testing.T) {
	f := newFixture(t)
	logic := f.ideas(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, f.store.Ideas.Upsert(ctx, &model.IdeaModel{IdeaId: i, Creator: buyerAddr, Title: "cached"}))
	}
	for i := uint64(1); i <= 5; i++ {
		f.chain.Ideas[i] = &chain.IdeaDetails{IdeaId: i, Title: "onchain", Price: big.NewInt(1_000_000)}
	}

	page, err := logic.List(ctx, false, repository.Page{Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, SourceDatastore, page.Source)
	assert.EqualValues(t, 3, page.Total)
	assert.Empty(t, page.Items)
	assert.Equal(t, 0, f.chain.Calls("TotalIdeas"))
	assert.Equal(t, 0, f.chain.Calls("GetIdea"))
}

func TestIdeaList_EmptyPageWhenEverySourceFails(t *testing.T) {
	f := newFixture(t)
	f.chain.ReadErr = errors.New("dial tcp: connection refused")

	page, err := f.ideas(t).List(context.Background(), false, repository.Page{})
	require.NoError(t, err)
	assert.Equal(t, SourceChain, page.Source)
	assert.Zero(t, page.Total)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}

func TestFieldErrors_UsesJSONPaths(t *testing.T) {
	in := CreateIdeaInput{
		Title:          "ok",
		Content:        "   ",
		Categories:     []string{"ux", strings.Repeat("c", 32)},
		Price:          "1",
		CreatorAddress: buyerAddr,
	}
	errs := FieldErrors(validate.Struct(&in))
	require.Len(t, errs, 2)
	assert.Equal(t, "content", errs[0].Field)
	assert.Equal(t, "is required", errs[0].Message)
	assert.Equal(t, "categories[1]", errs[1].Field)
	assert.Equal(t, "must be between 1 and 31 bytes", errs[1].Message)

	in.Categories = make([]string, 11)
	for i := range in.Categories {
		in.Categories[i] = "x"
	}
	in.Content = "c"
	_, err := in.Validate()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "categories", verr.Field)
	assert.Equal(t, "must contain at most 10 items", verr.Message)

	assert.Nil(t, FieldErrors(errors.New("unexpected EOF")))
}

func TestRecordPurchase_ValidatesShape(t *testing.T) {
	f := newFixture(t)
	logic := NewPurchaseLogic(f.store, f.chain, indexer.NewRegistry())

	_, err := logic.Record(context.Background(), RecordPurchaseInput{
		IdeaId:          0,
		TransactionHash: common.HexToHash("0x01").Hex(),
		BuyerAddress:    buyerAddr,
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "ideaId", verr.Field)
	assert.Equal(t, 0, f.chain.Calls("Receipt"))
}
