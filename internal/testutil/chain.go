package testutil

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/blues/ideamarket/internal/chain"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// FakeChain 内存中的链适配器，写操作会生成回执和对应的事件
type FakeChain struct {
	mu sync.Mutex

	Signer      common.Address
	Profiles    map[common.Address]*chain.SuperheroProfile
	Ideas       map[uint64]*chain.IdeaDetails
	Owners      map[uint64]common.Address
	TakenNames  map[string]bool
	Superheroes map[common.Address]bool
	Receipts    map[common.Hash]*types.Receipt
	Events      map[common.Hash][]chain.Event
	Native      map[common.Address]*big.Int
	USDC        map[common.Address]*big.Int
	Head        uint64
	Gas         *big.Int

	// WriteErr 所有写操作返回的错误
	WriteErr error
	// ReadErr 所有读操作返回的错误
	ReadErr error
	// NameErr 名称可用性检查返回的错误
	NameErr error

	calls  map[string]int
	nextTx uint64
	nextId uint64
}

func NewFakeChain() *FakeChain {
	return &FakeChain{
		Signer:      common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Profiles:    make(map[common.Address]*chain.SuperheroProfile),
		Ideas:       make(map[uint64]*chain.IdeaDetails),
		Owners:      make(map[uint64]common.Address),
		TakenNames:  make(map[string]bool),
		Superheroes: make(map[common.Address]bool),
		Receipts:    make(map[common.Hash]*types.Receipt),
		Events:      make(map[common.Hash][]chain.Event),
		Native:      make(map[common.Address]*big.Int),
		USDC:        make(map[common.Address]*big.Int),
		Head:        23452000,
		Gas:         big.NewInt(1_000_000_000),
		calls:       make(map[string]int),
	}
}

// Calls 某个方法被调用的次数
func (f *FakeChain) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *FakeChain) record(method string) {
	f.mu.Lock()
	f.calls[method]++
	f.mu.Unlock()
}

// AddReceipt 登记一笔已上链交易及其事件
func (f *FakeChain) AddReceipt(status uint64, events ...chain.Event) common.Hash {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addReceiptLocked(status, events...)
}

func (f *FakeChain) addReceiptLocked(status uint64, events ...chain.Event) common.Hash {
	f.nextTx++
	f.Head++
	hash := common.BigToHash(new(big.Int).SetUint64(f.nextTx))
	receipt := &types.Receipt{
		Status:      status,
		TxHash:      hash,
		BlockNumber: new(big.Int).SetUint64(f.Head),
		GasUsed:     21000,
	}
	for i, event := range events {
		meta := event.Meta()
		meta.TxHash = hash
		meta.LogIndex = uint(i)
		meta.BlockNumber = f.Head
	}
	f.Receipts[hash] = receipt
	f.Events[hash] = events
	return hash
}

func (f *FakeChain) result(hash common.Hash) *chain.TxResult {
	receipt := f.Receipts[hash]
	return &chain.TxResult{
		Hash:        hash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
		Receipt:     receipt,
	}
}

func (f *FakeChain) IsSuperheroNameAvailable(_ context.Context, name string) (bool, error) {
	f.record("IsSuperheroNameAvailable")
	if f.NameErr != nil {
		return false, f.NameErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.TakenNames[name], nil
}

func (f *FakeChain) CreateSuperhero(_ context.Context, p chain.SuperheroParams) (*chain.TxResult, error) {
	f.record("CreateSuperhero")
	if f.WriteErr != nil {
		return nil, f.WriteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextId++
	f.TakenNames[p.Name] = true
	f.Profiles[f.Signer] = &chain.SuperheroProfile{
		SuperheroId:  f.nextId,
		Name:         p.Name,
		Bio:          chain.TruncateBytes32(p.Bio),
		AvatarUrl:    p.MetadataURI,
		Skills:       p.Skills,
		Specialities: p.Specialities,
		CreatedAt:    time.Now().UTC(),
	}
	hash := f.addReceiptLocked(types.ReceiptStatusSuccessful, &chain.SuperheroCreated{
		Superhero: f.Signer,
		Id:        new(big.Int).SetUint64(f.nextId),
		Uri:       p.MetadataURI,
	})
	return f.result(hash), nil
}

func (f *FakeChain) GetSuperheroProfile(_ context.Context, account common.Address) (*chain.SuperheroProfile, error) {
	f.record("GetSuperheroProfile")
	if f.ReadErr != nil {
		return nil, f.ReadErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.Profiles[account]; ok {
		return p, nil
	}
	return &chain.SuperheroProfile{}, nil
}

func (f *FakeChain) IsSuperhero(_ context.Context, account common.Address) (bool, error) {
	f.record("IsSuperhero")
	if f.ReadErr != nil {
		return false, f.ReadErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Superheroes[account], nil
}

func (f *FakeChain) GrantIdeaRegistryRole(_ context.Context, account common.Address) (*chain.TxResult, error) {
	f.record("GrantIdeaRegistryRole")
	if f.WriteErr != nil {
		return nil, f.WriteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Superheroes[account] = true
	return f.result(f.addReceiptLocked(types.ReceiptStatusSuccessful)), nil
}

func (f *FakeChain) CreateIdea(_ context.Context, p chain.IdeaParams) (*chain.TxResult, error) {
	f.record("CreateIdea")
	if f.WriteErr != nil {
		return nil, f.WriteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	id := uint64(len(f.Ideas) + 1)
	f.Ideas[id] = &chain.IdeaDetails{
		IdeaId:     id,
		Creator:    f.Signer,
		Title:      p.Title,
		Categories: p.Categories,
		IpfsHash:   p.IpfsHash,
		Price:      new(big.Int).Set(p.Price),
		CreatedAt:  time.Now().UTC(),
	}
	f.Owners[id] = f.Signer
	hash := f.addReceiptLocked(types.ReceiptStatusSuccessful, &chain.IdeaCreated{
		IdeaId:   new(big.Int).SetUint64(id),
		Creator:  f.Signer,
		IpfsHash: p.IpfsHash,
		Price:    new(big.Int).Set(p.Price),
	})
	return f.result(hash), nil
}

func (f *FakeChain) GetIdea(_ context.Context, ideaId uint64) (*chain.IdeaDetails, error) {
	f.record("GetIdea")
	if f.ReadErr != nil {
		return nil, f.ReadErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if idea, ok := f.Ideas[ideaId]; ok {
		return idea, nil
	}
	return &chain.IdeaDetails{Price: new(big.Int)}, nil
}

func (f *FakeChain) TotalIdeas(context.Context) (uint64, error) {
	f.record("TotalIdeas")
	if f.ReadErr != nil {
		return 0, f.ReadErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.Ideas)), nil
}

func (f *FakeChain) OwnerOf(_ context.Context, ideaId uint64) (common.Address, error) {
	f.record("OwnerOf")
	if f.ReadErr != nil {
		return common.Address{}, f.ReadErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Owners[ideaId], nil
}

func (f *FakeChain) CreateTeam(_ context.Context, p chain.TeamParams) (*chain.TxResult, error) {
	f.record("CreateTeam")
	if f.WriteErr != nil {
		return nil, f.WriteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextId++
	hash := f.addReceiptLocked(types.ReceiptStatusSuccessful, &chain.TeamCreated{
		TeamId:          new(big.Int).SetUint64(f.nextId),
		Leader:          f.Signer,
		TeamName:        p.TeamName,
		ProjectName:     p.ProjectName,
		RequiredMembers: new(big.Int).SetUint64(p.RequiredMembers),
		RequiredStake:   new(big.Int).Set(p.RequiredStake),
	})
	return f.result(hash), nil
}

func (f *FakeChain) Receipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.record("Receipt")
	if f.ReadErr != nil {
		return nil, f.ReadErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if receipt, ok := f.Receipts[hash]; ok {
		return receipt, nil
	}
	return nil, ethereum.NotFound
}

func (f *FakeChain) DecodeEvents(receipt *types.Receipt) []chain.Event {
	if receipt == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Events[receipt.TxHash]
}

func (f *FakeChain) TransactionStatus(_ context.Context, hash common.Hash) (chain.TxStatus, error) {
	f.record("TransactionStatus")
	if f.ReadErr != nil {
		return "", f.ReadErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	receipt, ok := f.Receipts[hash]
	switch {
	case !ok:
		return chain.TxStatusPending, nil
	case receipt.Status == types.ReceiptStatusSuccessful:
		return chain.TxStatusSuccess, nil
	default:
		return chain.TxStatusFailed, nil
	}
}

func (f *FakeChain) BlockNumber(context.Context) (uint64, error) {
	f.record("BlockNumber")
	if f.ReadErr != nil {
		return 0, f.ReadErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Head, nil
}

func (f *FakeChain) GasPrice(context.Context) (*big.Int, error) {
	f.record("GasPrice")
	if f.ReadErr != nil {
		return nil, f.ReadErr
	}
	return new(big.Int).Set(f.Gas), nil
}

func (f *FakeChain) NativeBalance(_ context.Context, account common.Address) (*big.Int, error) {
	f.record("NativeBalance")
	if f.ReadErr != nil {
		return nil, f.ReadErr
	}
	return f.balance(f.Native, account), nil
}

func (f *FakeChain) USDCBalance(_ context.Context, owner common.Address) (*big.Int, error) {
	f.record("USDCBalance")
	if f.ReadErr != nil {
		return nil, f.ReadErr
	}
	return f.balance(f.USDC, owner), nil
}

func (f *FakeChain) balance(m map[common.Address]*big.Int, account common.Address) *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := m[account]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (f *FakeChain) HealthStatus(context.Context) map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return map[string]interface{}{
		"chain_id":      int64(4202),
		"client_status": "connected",
		"block_number":  f.Head,
	}
}
