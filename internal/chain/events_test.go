package chain

import (
	"math/big"
	"testing"

	"github.com/blues/ideamarket/internal/config"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDecodeOnly(t *testing.T, name string) *Contract {
	t.Helper()
	c, err := NewContract(nil, name, config.DefaultContracts[name])
	require.NoError(t, err)
	return c
}

func addressTopic(a common.Address) common.Hash {
	return common.BytesToHash(a.Bytes())
}

func TestDecodeLog_CreateSuperhero(t *testing.T) {
	c := newDecodeOnly(t, config.ContractSuperheroNFT)
	event := c.GetABI().Events[EventCreateSuperhero]

	hero := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	name, _ := FormatBytes32String("nova")
	bio, _ := FormatBytes32String("builds things")
	data, err := event.Inputs.NonIndexed().Pack(name, bio, "ipfs://bafyhero")
	require.NoError(t, err)

	decoded, err := c.DecodeLog(types.Log{
		Address:     c.GetAddress(),
		Topics:      []common.Hash{event.ID, addressTopic(hero), common.BigToHash(big.NewInt(7))},
		Data:        data,
		TxHash:      common.HexToHash("0x01"),
		Index:       4,
		BlockNumber: 123,
	})
	require.NoError(t, err)

	created, ok := decoded.(*SuperheroCreated)
	require.True(t, ok)
	assert.Equal(t, hero, created.Superhero)
	assert.Equal(t, int64(7), created.Id.Int64())
	assert.Equal(t, "nova", ParseBytes32String(created.Name))
	assert.Equal(t, "ipfs://bafyhero", created.Uri)
	assert.Equal(t, uint(4), created.Meta().LogIndex)
	assert.Equal(t, config.ContractSuperheroNFT, created.Meta().Contract)
}

func TestDecodeLog_RoleAndPurchase(t *testing.T) {
	nft := newDecodeOnly(t, config.ContractSuperheroNFT)
	granted := nft.GetABI().Events[EventRoleGranted]
	account := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	decoded, err := nft.DecodeLog(types.Log{
		Topics: []common.Hash{granted.ID, common.HexToHash("0x1234"), addressTopic(account), addressTopic(account)},
	})
	require.NoError(t, err)
	role := decoded.(*RoleChanged)
	assert.Equal(t, EventRoleGranted, role.EventName())
	assert.Equal(t, account, role.Account)

	market := newDecodeOnly(t, config.ContractMarketplace)
	purchased := market.GetABI().Events[EventIdeaPurchased]
	data, err := purchased.Inputs.NonIndexed().Pack(big.NewInt(50_000_000), big.NewInt(1_250_000), big.NewInt(1700000000))
	require.NoError(t, err)

	decoded, err = market.DecodeLog(types.Log{
		Topics: []common.Hash{purchased.ID, common.BigToHash(big.NewInt(3)), addressTopic(account), addressTopic(common.HexToAddress("0xcc"))},
		Data:   data,
	})
	require.NoError(t, err)
	p := decoded.(*IdeaPurchased)
	assert.Equal(t, "50 USDC", USDCLabel(p.Price))
	assert.Equal(t, int64(3), p.IdeaId.Int64())
	assert.Equal(t, account, p.Buyer)
}

func TestDecodeLog_FailsClosed(t *testing.T) {
	c := newDecodeOnly(t, config.ContractSuperheroNFT)

	_, err := c.DecodeLog(types.Log{Topics: []common.Hash{common.HexToHash("0xdeadbeef")}})
	assert.ErrorIs(t, err, ErrUnknownEvent)

	_, err = c.DecodeLog(types.Log{})
	assert.ErrorIs(t, err, ErrUnknownEvent)

	// Transfer 缺少索引主题
	transfer := c.GetABI().Events[EventTransfer]
	_, err = c.DecodeLog(types.Log{Topics: []common.Hash{transfer.ID}})
	assert.Error(t, err)

	// 数据截断
	created := c.GetABI().Events[EventCreateSuperhero]
	_, err = c.DecodeLog(types.Log{
		Topics: []common.Hash{created.ID, common.Hash{}, common.Hash{}},
		Data:   []byte{0x01, 0x02},
	})
	assert.Error(t, err)
}

func TestParseABI_CompiledOutput(t *testing.T) {
	compiled := []byte(`{"contractName":"X","abi":[{"type":"function","name":"totalIdeas","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}]}`)
	parsed, err := ParseABI(compiled)
	require.NoError(t, err)
	_, ok := parsed.Methods["totalIdeas"]
	assert.True(t, ok)

	_, err = ParseABI([]byte(`not json`))
	assert.Error(t, err)
}
