package logic

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/blues/ideamarket/internal/chain"
	"github.com/blues/ideamarket/internal/logger"
	"github.com/blues/ideamarket/internal/metrics"
	"github.com/blues/ideamarket/internal/model"
	"github.com/blues/ideamarket/internal/repository"
	"github.com/blues/ideamarket/internal/storage"
	"github.com/ethereum/go-ethereum/common"
	"gorm.io/datatypes"
)

// PendingChainMessage 链上写入失败、仅返回链下元数据时的提示
const PendingChainMessage = "Superhero metadata created successfully. Blockchain transaction will be processed when network is available."

// emojiAvatars 没有头像时的默认头像
var emojiAvatars = []string{
	"🦸‍♂️", "🦸‍♀️", "🧙‍♂️", "🧙‍♀️", "👨‍💻", "👩‍💻",
	"🧑‍🚀", "👨‍🔬", "👩‍🔬", "🧑‍💼", "👨‍🎨", "👩‍🎨",
	"🧑‍🎓", "👨‍🏫", "👩‍🏫", "🧑‍⚕️", "👨‍🌾", "👩‍🌾",
	"🧑‍🍳", "👨‍🔧", "👩‍🔧", "🧑‍🏭", "👨‍✈️", "👩‍✈️",
}

// EmojiAvatar 按地址末8位hex确定性地选一个头像
func EmojiAvatar(address string) string {
	tail := address
	if len(tail) > 8 {
		tail = tail[len(tail)-8:]
	}
	n, err := strconv.ParseUint(tail, 16, 64)
	if err != nil {
		return emojiAvatars[0]
	}
	return emojiAvatars[n%uint64(len(emojiAvatars))]
}

// SuperheroLogic 超级英雄业务逻辑
type SuperheroLogic struct {
	store   *repository.Store
	chain   ChainGateway
	pinner  storage.Pinner
	gateway string
}

// NewSuperheroLogic 创建超级英雄业务逻辑
func NewSuperheroLogic(store *repository.Store, chain ChainGateway, pinner storage.Pinner, gateway string) *SuperheroLogic {
	return &SuperheroLogic{store: store, chain: chain, pinner: pinner, gateway: gateway}
}

// List 分页列表，数据库不可用时返回空页
func (s *SuperheroLogic) List(ctx context.Context, page repository.Page) ([]model.SuperheroModel, int64, error) {
	heroes, total, err := s.store.Superheroes.List(ctx, page)
	if err != nil {
		logger.Warn("Datastore unavailable for superhero list, returning empty page: %v", err)
		return []model.SuperheroModel{}, 0, nil
	}
	for i := range heroes {
		s.decorate(&heroes[i])
	}
	return heroes, total, nil
}

// Get 先查数据库，再查链上资料
func (s *SuperheroLogic) Get(ctx context.Context, address string) (*model.SuperheroModel, error) {
	if err := requireAddress("address", address); err != nil {
		return nil, err
	}

	hero, err := s.store.Superheroes.GetByAddress(ctx, address)
	if err == nil {
		s.decorate(hero)
		return hero, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		logger.Warn("Datastore lookup for superhero %s failed, trying chain: %v", address, err)
	}

	profile, err := s.Profile(ctx, address)
	if err != nil {
		return nil, err
	}
	hero = &model.SuperheroModel{
		Address:      strings.ToLower(address),
		SuperheroId:  int64(profile.SuperheroId),
		Name:         profile.Name,
		Bio:          profile.Bio,
		AvatarUrl:    profile.AvatarUrl,
		Reputation:   int64(profile.Reputation),
		Skills:       datatypes.NewJSONSlice(profile.Skills),
		Specialities: datatypes.NewJSONSlice(profile.Specialities),
		Flagged:      profile.Flagged,
		CreatedTime:  profile.CreatedAt,
	}
	s.decorate(hero)
	return hero, nil
}

// decorate 补全默认头像，ipfs:// 地址转为网关地址
func (s *SuperheroLogic) decorate(hero *model.SuperheroModel) {
	if hero.AvatarUrl == "" {
		hero.AvatarUrl = EmojiAvatar(hero.Address)
		return
	}
	hero.AvatarUrl = storage.ResolveURL(s.gateway, hero.AvatarUrl)
}

// Profile 链上资料，身份ID为0视为不存在
func (s *SuperheroLogic) Profile(ctx context.Context, address string) (*chain.SuperheroProfile, error) {
	account, err := chain.ParseAddress(address)
	if err != nil || !IsAddress(address) {
		return nil, invalid("address", "must match ^0x[a-fA-F0-9]{40}$")
	}
	profile, err := s.chain.GetSuperheroProfile(ctx, account)
	if err != nil {
		return nil, err
	}
	if !profile.Exists() {
		return nil, fmt.Errorf("superhero %s: %w", address, ErrNotFound)
	}
	return profile, nil
}

// IsSuperhero 是否拥有 SUPERHERO_ROLE
func (s *SuperheroLogic) IsSuperhero(ctx context.Context, address string) (bool, error) {
	if err := requireAddress("address", address); err != nil {
		return false, err
	}
	return s.chain.IsSuperhero(ctx, mustAddress(address))
}

// GrantIdeaRegistryRole 在创意注册合约上授予身份角色
func (s *SuperheroLogic) GrantIdeaRegistryRole(ctx context.Context, address string) (*chain.TxResult, error) {
	if err := requireAddress("address", address); err != nil {
		return nil, err
	}
	return s.chain.GrantIdeaRegistryRole(ctx, mustAddress(address))
}

// CreateSuperheroInput 创建身份请求
type CreateSuperheroInput struct {
	Name         string   `json:"name" binding:"required,bytes32"`
	Bio          string   `json:"bio" binding:"required,max=1000"`
	AvatarUrl    string   `json:"avatarUrl"`
	Skills       []string `json:"skills" binding:"max=10,dive,bytes32"`
	Specialities []string `json:"specialities" binding:"max=10,dive,bytes32"`
	UserAddress  string   `json:"userAddress" binding:"required,evm_address"`
}

// Validate 名称去掉首尾空白后再校验
func (in *CreateSuperheroInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	return validateStruct(in)
}

// CreateSuperheroResult 创建结果，Pending 为 true 表示链上交易未完成
type CreateSuperheroResult struct {
	Superhero       *model.SuperheroModel `json:"superhero,omitempty"`
	TransactionHash string                `json:"transactionHash,omitempty"`
	BlockNumber     uint64                `json:"blockNumber,omitempty"`
	Metadata        *SuperheroMetadata    `json:"metadata,omitempty"`
	MetadataUrl     string                `json:"metadataUrl"`
	AvatarUrl       string                `json:"avatarUrl"`
	Pending         bool                  `json:"pending"`
	Message         string                `json:"message"`
}

// Create 固定元数据并在链上铸造身份，链上失败时降级返回元数据
func (s *SuperheroLogic) Create(ctx context.Context, in CreateSuperheroInput) (*CreateSuperheroResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.store.Superheroes.GetByAddress(ctx, in.UserAddress); err == nil {
		return nil, fmt.Errorf("superhero for %s: %w", in.UserAddress, ErrAlreadyExists)
	} else if !errors.Is(err, repository.ErrNotFound) {
		logger.Warn("Datastore lookup for %s failed, continuing: %v", in.UserAddress, err)
	}

	available, err := s.chain.IsSuperheroNameAvailable(ctx, in.Name)
	switch {
	case err != nil:
		logger.Warn("Name availability check for %q failed, continuing: %v", in.Name, err)
	case !available:
		return nil, fmt.Errorf("superhero name %q: %w", in.Name, ErrAlreadyExists)
	}

	metadata := NewSuperheroMetadata(in, time.Now().UTC())
	pinned, err := s.pinner.PinJSON(ctx, "superhero-"+strings.ToLower(in.UserAddress), metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to upload superhero metadata: %w", err)
	}

	result := &CreateSuperheroResult{MetadataUrl: pinned.URL, AvatarUrl: in.AvatarUrl}

	tx, err := s.chain.CreateSuperhero(ctx, chain.SuperheroParams{
		Name:         in.Name,
		Bio:          in.Bio,
		MetadataURI:  pinned.URL,
		Skills:       in.Skills,
		Specialities: in.Specialities,
	})
	if err != nil && !chain.IsTransient(err) {
		return nil, fmt.Errorf("failed to create superhero on chain: %w", err)
	}
	if err != nil {
		logger.Warn("Superhero chain write failed for %s, returning metadata only: %v", in.UserAddress, err)
		metrics.GracefulDegradations.WithLabelValues("superheroes/create").Inc()
		result.Metadata = metadata
		result.Pending = true
		result.Message = PendingChainMessage
		return result, nil
	}

	hero := &model.SuperheroModel{
		Address:      in.UserAddress,
		Name:         in.Name,
		Bio:          in.Bio,
		AvatarUrl:    in.AvatarUrl,
		Skills:       datatypes.NewJSONSlice(nonNil(in.Skills)),
		Specialities: datatypes.NewJSONSlice(nonNil(in.Specialities)),
		CreatedBlock: int64(tx.BlockNumber),
		CreatedTime:  time.Now().UTC(),
		TxHash:       tx.Hash.Hex(),
	}
	for _, event := range s.chain.DecodeEvents(tx.Receipt) {
		if created, ok := event.(*chain.SuperheroCreated); ok {
			hero.SuperheroId = created.Id.Int64()
		}
	}
	if err := s.store.Superheroes.Upsert(ctx, hero); err != nil {
		logger.Warn("Superhero %s created on chain but datastore write failed: %v", in.UserAddress, err)
	}
	s.decorate(hero)

	result.Superhero = hero
	result.TransactionHash = tx.Hash.Hex()
	result.BlockNumber = tx.BlockNumber
	result.Message = "Superhero created successfully and saved to database."
	return result, nil
}

// UploadMetadataInput 单独上传元数据
type UploadMetadataInput struct {
	Name         string   `json:"name" binding:"notblank"`
	Bio          string   `json:"bio" binding:"max=1000"`
	Skills       []string `json:"skills" binding:"max=10"`
	Specialities []string `json:"specialities" binding:"max=10"`
	AvatarHash   string   `json:"avatarHash"`
}

// UploadMetadata 构造并固定身份元数据
func (s *SuperheroLogic) UploadMetadata(ctx context.Context, in UploadMetadataInput) (*storage.PinResult, error) {
	if err := validateStruct(&in); err != nil {
		return nil, err
	}
	avatar := ""
	if in.AvatarHash != "" {
		avatar = "ipfs://" + storage.HashFromURI(in.AvatarHash)
	}
	metadata := NewSuperheroMetadata(CreateSuperheroInput{
		Name:         in.Name,
		Bio:          in.Bio,
		AvatarUrl:    avatar,
		Skills:       in.Skills,
		Specialities: in.Specialities,
	}, time.Now().UTC())
	return s.pinner.PinJSON(ctx, "superhero-metadata", metadata)
}

// UploadAvatar 固定头像文件
func (s *SuperheroLogic) UploadAvatar(ctx context.Context, fileName, mime string, data []byte) (*storage.PinResult, error) {
	return s.pinner.PinFile(ctx, &storage.UploadObject{
		Prefix:   "avatars",
		FileName: fileName,
		Mime:     mime,
		Data:     data,
	})
}

// SuperheroMetadata ERC721 元数据
type SuperheroMetadata struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Image       string              `json:"image"`
	Attributes  []MetadataAttribute `json:"attributes"`
	Properties  SuperheroProperties `json:"properties"`
}

type MetadataAttribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

type SuperheroProperties struct {
	Skills       []string  `json:"skills"`
	Specialities []string  `json:"specialities"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewSuperheroMetadata 没有头像时使用按地址选取的默认头像
func NewSuperheroMetadata(in CreateSuperheroInput, now time.Time) *SuperheroMetadata {
	image := in.AvatarUrl
	if image == "" {
		image = EmojiAvatar(in.UserAddress)
	}
	attrs := make([]MetadataAttribute, 0, len(in.Skills)+len(in.Specialities))
	for _, skill := range in.Skills {
		attrs = append(attrs, MetadataAttribute{TraitType: "Skill", Value: skill})
	}
	for _, spec := range in.Specialities {
		attrs = append(attrs, MetadataAttribute{TraitType: "Speciality", Value: spec})
	}
	return &SuperheroMetadata{
		Name:        in.Name,
		Description: in.Bio,
		Image:       image,
		Attributes:  attrs,
		Properties: SuperheroProperties{
			Skills:       nonNil(in.Skills),
			Specialities: nonNil(in.Specialities),
			CreatedAt:    now,
		},
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// mustAddress 调用前已校验格式
func mustAddress(s string) common.Address {
	addr, _ := chain.ParseAddress(s)
	return addr
}
