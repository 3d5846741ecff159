package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/blues/ideamarket/internal/config"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// SuperheroParams 创建身份的参数，字符串会转为 bytes32
type SuperheroParams struct {
	Name         string
	Bio          string
	MetadataURI  string
	Skills       []string
	Specialities []string
}

// SuperheroProfile 链上身份资料
type SuperheroProfile struct {
	SuperheroId  uint64    `json:"superheroId"`
	Name         string    `json:"name"`
	Bio          string    `json:"bio"`
	AvatarUrl    string    `json:"avatarUrl"`
	Reputation   uint64    `json:"reputation"`
	Skills       []string  `json:"skills"`
	Specialities []string  `json:"specialities"`
	Flagged      bool      `json:"flagged"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Exists 链上身份ID为0表示不存在
func (p *SuperheroProfile) Exists() bool {
	return p != nil && p.SuperheroId != 0
}

type superheroTuple struct {
	SuperheroId  *big.Int
	Name         [32]byte
	Bio          [32]byte
	AvatarUrl    string
	Reputation   *big.Int
	Skills       [][32]byte
	Specialities [][32]byte
	Flagged      bool
	CreatedAt    *big.Int
}

// IsSuperheroNameAvailable 名称是否可用
func (m *Manager) IsSuperheroNameAvailable(ctx context.Context, name string) (bool, error) {
	name32, err := FormatBytes32String(name)
	if err != nil {
		return false, err
	}
	contract, err := m.bound(config.ContractSuperheroNFT)
	if err != nil {
		return false, err
	}
	out, err := contract.call(m.callOpts(ctx), "isSuperheroNameAvailable", name32)
	if err != nil {
		return false, wrap("check superhero name", err)
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// CreateSuperhero 铸造身份NFT，链上简介截断为31字节
func (m *Manager) CreateSuperhero(ctx context.Context, p SuperheroParams) (*TxResult, error) {
	name32, err := FormatBytes32String(p.Name)
	if err != nil {
		return nil, wrap("create superhero", err)
	}
	bio32, err := FormatBytes32String(TruncateBytes32(p.Bio))
	if err != nil {
		return nil, wrap("create superhero", err)
	}
	skills, err := FormatBytes32Strings(p.Skills)
	if err != nil {
		return nil, wrap("create superhero", err)
	}
	specialities, err := FormatBytes32Strings(p.Specialities)
	if err != nil {
		return nil, wrap("create superhero", err)
	}

	res, err := m.transact(ctx, config.ContractSuperheroNFT, "createSuperhero", name32, bio32, p.MetadataURI, skills, specialities)
	return res, wrap("create superhero", err)
}

// GetSuperheroProfile 查询链上身份资料
func (m *Manager) GetSuperheroProfile(ctx context.Context, account common.Address) (*SuperheroProfile, error) {
	contract, err := m.bound(config.ContractSuperheroNFT)
	if err != nil {
		return nil, err
	}
	out, err := contract.call(m.callOpts(ctx), "getSuperheroProfile", account)
	if err != nil {
		return nil, wrap("get superhero profile", err)
	}

	t := *abi.ConvertType(out[0], new(superheroTuple)).(*superheroTuple)
	return &SuperheroProfile{
		SuperheroId:  uint64OrZero(t.SuperheroId),
		Name:         ParseBytes32String(t.Name),
		Bio:          ParseBytes32String(t.Bio),
		AvatarUrl:    t.AvatarUrl,
		Reputation:   uint64OrZero(t.Reputation),
		Skills:       ParseBytes32Strings(t.Skills),
		Specialities: ParseBytes32Strings(t.Specialities),
		Flagged:      t.Flagged,
		CreatedAt:    unixTime(t.CreatedAt),
	}, nil
}

// superheroRole 读取合约的 SUPERHERO_ROLE
func (m *Manager) superheroRole(ctx context.Context, contractName string) ([32]byte, error) {
	contract, err := m.bound(contractName)
	if err != nil {
		return [32]byte{}, err
	}
	out, err := contract.call(m.callOpts(ctx), "SUPERHERO_ROLE")
	if err != nil {
		return [32]byte{}, err
	}
	return *abi.ConvertType(out[0], new([32]byte)).(*[32]byte), nil
}

// IsSuperhero 地址是否拥有 SUPERHERO_ROLE
func (m *Manager) IsSuperhero(ctx context.Context, account common.Address) (bool, error) {
	role, err := m.superheroRole(ctx, config.ContractSuperheroNFT)
	if err != nil {
		return false, wrap("check superhero role", err)
	}
	contract, err := m.bound(config.ContractSuperheroNFT)
	if err != nil {
		return false, err
	}
	out, err := contract.call(m.callOpts(ctx), "hasRole", role, account)
	if err != nil {
		return false, wrap("check superhero role", err)
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// GrantIdeaRegistryRole 在创意注册合约上授予 SUPERHERO_ROLE
func (m *Manager) GrantIdeaRegistryRole(ctx context.Context, account common.Address) (*TxResult, error) {
	role, err := m.superheroRole(ctx, config.ContractIdeaRegistry)
	if err != nil {
		return nil, wrap("grant idea registry role", err)
	}
	res, err := m.transact(ctx, config.ContractIdeaRegistry, "grantRole", role, account)
	return res, wrap("grant idea registry role", err)
}

func uint64OrZero(v *big.Int) uint64 {
	if v == nil || !v.IsUint64() {
		return 0
	}
	return v.Uint64()
}

func unixTime(v *big.Int) time.Time {
	if v == nil || v.Sign() == 0 {
		return time.Time{}
	}
	return time.Unix(v.Int64(), 0).UTC()
}

// ParseAddress 校验并解析地址
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
