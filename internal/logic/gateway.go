package logic

import (
	"context"
	"math/big"

	"github.com/blues/ideamarket/internal/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ChainGateway 业务层使用的链适配器能力，*chain.Manager 实现了它
type ChainGateway interface {
	IsSuperheroNameAvailable(ctx context.Context, name string) (bool, error)
	CreateSuperhero(ctx context.Context, p chain.SuperheroParams) (*chain.TxResult, error)
	GetSuperheroProfile(ctx context.Context, account common.Address) (*chain.SuperheroProfile, error)
	IsSuperhero(ctx context.Context, account common.Address) (bool, error)
	GrantIdeaRegistryRole(ctx context.Context, account common.Address) (*chain.TxResult, error)

	CreateIdea(ctx context.Context, p chain.IdeaParams) (*chain.TxResult, error)
	GetIdea(ctx context.Context, ideaId uint64) (*chain.IdeaDetails, error)
	TotalIdeas(ctx context.Context) (uint64, error)
	OwnerOf(ctx context.Context, ideaId uint64) (common.Address, error)

	CreateTeam(ctx context.Context, p chain.TeamParams) (*chain.TxResult, error)

	Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	DecodeEvents(receipt *types.Receipt) []chain.Event
	TransactionStatus(ctx context.Context, hash common.Hash) (chain.TxStatus, error)
	BlockNumber(ctx context.Context) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	NativeBalance(ctx context.Context, account common.Address) (*big.Int, error)
	USDCBalance(ctx context.Context, owner common.Address) (*big.Int, error)
	HealthStatus(ctx context.Context) map[string]interface{}
}

var _ ChainGateway = (*chain.Manager)(nil)
