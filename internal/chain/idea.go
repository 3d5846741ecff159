package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/blues/ideamarket/internal/config"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// IdeaParams 创建挂单的参数
type IdeaParams struct {
	Title      string
	Categories []string
	IpfsHash   string
	Price      *big.Int // USDC最小单位
}

// IdeaDetails 链上挂单
type IdeaDetails struct {
	IdeaId      uint64         `json:"ideaId"`
	Creator     common.Address `json:"creator"`
	Title       string         `json:"title"`
	Categories  []string       `json:"categories"`
	IpfsHash    string         `json:"ipfsHash"`
	Price       *big.Int       `json:"price"`
	RatingTotal uint64         `json:"ratingTotal"`
	NumRaters   uint64         `json:"numRaters"`
	IsPurchased bool           `json:"isPurchased"`
	CreatedAt   time.Time      `json:"createdAt"`
}

type ideaTuple struct {
	IdeaId      *big.Int
	Creator     common.Address
	Title       [32]byte
	Category    [][32]byte
	IpfsHash    string
	Price       *big.Int
	RatingTotal *big.Int
	NumRaters   *big.Int
	IsPurchased bool
	CreatedAt   *big.Int
}

// CreateIdea 铸造创意挂单
func (m *Manager) CreateIdea(ctx context.Context, p IdeaParams) (*TxResult, error) {
	title, err := FormatBytes32String(p.Title)
	if err != nil {
		return nil, wrap("create idea", err)
	}
	categories, err := FormatBytes32Strings(p.Categories)
	if err != nil {
		return nil, wrap("create idea", err)
	}
	res, err := m.transact(ctx, config.ContractIdeaRegistry, "createIdea", title, categories, p.IpfsHash, p.Price)
	return res, wrap("create idea", err)
}

// GetIdea 查询链上挂单，不存在时 IdeaId 为0
func (m *Manager) GetIdea(ctx context.Context, ideaId uint64) (*IdeaDetails, error) {
	contract, err := m.bound(config.ContractIdeaRegistry)
	if err != nil {
		return nil, err
	}
	out, err := contract.call(m.callOpts(ctx), "getIdea", new(big.Int).SetUint64(ideaId))
	if err != nil {
		return nil, wrap("get idea", err)
	}

	t := *abi.ConvertType(out[0], new(ideaTuple)).(*ideaTuple)
	return &IdeaDetails{
		IdeaId:      uint64OrZero(t.IdeaId),
		Creator:     t.Creator,
		Title:       ParseBytes32String(t.Title),
		Categories:  ParseBytes32Strings(t.Category),
		IpfsHash:    t.IpfsHash,
		Price:       t.Price,
		RatingTotal: uint64OrZero(t.RatingTotal),
		NumRaters:   uint64OrZero(t.NumRaters),
		IsPurchased: t.IsPurchased,
		CreatedAt:   unixTime(t.CreatedAt),
	}, nil
}

// TotalIdeas 挂单总数
func (m *Manager) TotalIdeas(ctx context.Context) (uint64, error) {
	contract, err := m.bound(config.ContractIdeaRegistry)
	if err != nil {
		return 0, err
	}
	out, err := contract.call(m.callOpts(ctx), "totalIdeas")
	if err != nil {
		return 0, wrap("get total ideas", err)
	}
	return uint64OrZero(*abi.ConvertType(out[0], new(*big.Int)).(**big.Int)), nil
}

// OwnerOf 挂单NFT的当前持有人
func (m *Manager) OwnerOf(ctx context.Context, ideaId uint64) (common.Address, error) {
	contract, err := m.bound(config.ContractIdeaRegistry)
	if err != nil {
		return common.Address{}, err
	}
	out, err := contract.call(m.callOpts(ctx), "ownerOf", new(big.Int).SetUint64(ideaId))
	if err != nil {
		return common.Address{}, wrap("get idea owner", err)
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}
