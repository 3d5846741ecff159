package logic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/blues/ideamarket/internal/chain"
	"github.com/blues/ideamarket/internal/content"
	"github.com/blues/ideamarket/internal/graphql"
	"github.com/blues/ideamarket/internal/logger"
	"github.com/blues/ideamarket/internal/metrics"
	"github.com/blues/ideamarket/internal/model"
	"github.com/blues/ideamarket/internal/repository"
	"github.com/blues/ideamarket/internal/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// 挂单数据来源
const (
	SourceDatastore = "datastore"
	SourceGraphQL   = "graphql"
	SourceChain     = "chain"
)

// maxChainScan 链上回退时最多扫描的挂单数
const maxChainScan = 200

// IdeaView 挂单的统一视图，price 为USDC最小单位
type IdeaView struct {
	IdeaId      int64     `json:"ideaId"`
	Creator     string    `json:"creator"`
	Title       string    `json:"title"`
	Categories  []string  `json:"categories"`
	IpfsHash    string    `json:"ipfsHash"`
	Price       string    `json:"price"`
	PriceUSDC   string    `json:"priceUsdc"`
	RatingTotal int64     `json:"ratingTotal"`
	NumRaters   int64     `json:"numRaters"`
	IsPurchased bool      `json:"isPurchased"`
	Buyer       string    `json:"buyer,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	TxHash      string    `json:"transactionHash,omitempty"`
}

// IdeaPage 分页结果
type IdeaPage struct {
	Items  []IdeaView `json:"items"`
	Total  int64      `json:"total"`
	Source string     `json:"source"`
}

// IdeaLogic 创意挂单业务逻辑
type IdeaLogic struct {
	store   *repository.Store
	chain   ChainGateway
	graph   *graphql.Client
	pinner  storage.Pinner
	sealer  *content.Sealer
	gateway string
}

// NewIdeaLogic sealer 为 nil 时无法创建挂单和读取正文
func NewIdeaLogic(store *repository.Store, chain ChainGateway, graph *graphql.Client, pinner storage.Pinner, sealer *content.Sealer, gateway string) *IdeaLogic {
	return &IdeaLogic{store: store, chain: chain, graph: graph, pinner: pinner, sealer: sealer, gateway: gateway}
}

// List 数据库优先，依次回退到 GraphQL 和链上
func (l *IdeaLogic) List(ctx context.Context, availableOnly bool, page repository.Page) (*IdeaPage, error) {
	page = page.Normalize()

	rows, total, err := l.store.Ideas.List(ctx, repository.IdeaFilter{Available: availableOnly}, page)
	if err == nil && total > 0 {
		items := make([]IdeaView, 0, len(rows))
		for i := range rows {
			items = append(items, ideaFromModel(&rows[i]))
		}
		return &IdeaPage{Items: items, Total: total, Source: SourceDatastore}, nil
	}
	if err != nil {
		logger.Warn("Datastore idea list failed, falling back: %v", err)
	}

	if l.graph.Configured() {
		result, err := l.listFromGraphQL(ctx, availableOnly, page)
		if err == nil && result.Total > 0 {
			return result, nil
		}
		if err != nil {
			logger.Warn("Indexer GraphQL not available, using blockchain fallback: %v", err)
		}
	}

	result, err := l.listFromChain(ctx, availableOnly, page)
	if err != nil {
		// 所有来源都不可用时返回空页
		logger.Error("Failed to fetch ideas from blockchain, returning empty page: %v", err)
		metrics.GracefulDegradations.WithLabelValues("ideas/list").Inc()
		return &IdeaPage{Items: []IdeaView{}, Total: 0, Source: SourceChain}, nil
	}
	return result, nil
}

func (l *IdeaLogic) listFromGraphQL(ctx context.Context, availableOnly bool, page repository.Page) (*IdeaPage, error) {
	ideas, err := l.graph.Ideas(ctx, page.Offset()+page.Limit)
	if err != nil {
		return nil, err
	}
	var filtered []IdeaView
	for _, idea := range ideas {
		if availableOnly && idea.IsPurchased {
			continue
		}
		filtered = append(filtered, ideaFromGraphQL(idea))
	}
	return &IdeaPage{Items: paginate(filtered, page), Total: int64(len(filtered)), Source: SourceGraphQL}, nil
}

// listFromChain 从最新的挂单开始扫描
func (l *IdeaLogic) listFromChain(ctx context.Context, availableOnly bool, page repository.Page) (*IdeaPage, error) {
	total, err := l.chain.TotalIdeas(ctx)
	if err != nil {
		return nil, err
	}

	var items []IdeaView
	scanned := 0
	for id := total; id >= 1 && scanned < maxChainScan; id-- {
		scanned++
		idea, err := l.chain.GetIdea(ctx, id)
		if err != nil {
			logger.Warn("Skipping idea %d from chain: %v", id, err)
			continue
		}
		if idea.IdeaId == 0 || (availableOnly && idea.IsPurchased) {
			continue
		}
		items = append(items, ideaFromChain(idea))
	}
	logger.Info("Fetched %d ideas from blockchain directly", len(items))
	return &IdeaPage{Items: paginate(items, page), Total: int64(len(items)), Source: SourceChain}, nil
}

// Get 先查数据库，再查链上
func (l *IdeaLogic) Get(ctx context.Context, id int64) (*IdeaView, error) {
	if id <= 0 {
		return nil, invalid("id", "must be a positive integer")
	}
	row, err := l.store.Ideas.Get(ctx, id)
	if err == nil && row.Title != "" {
		view := ideaFromModel(row)
		return &view, nil
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		logger.Warn("Datastore lookup for idea %d failed, trying chain: %v", id, err)
	}

	idea, err := l.chain.GetIdea(ctx, uint64(id))
	if err != nil {
		return nil, err
	}
	if idea.IdeaId == 0 {
		return nil, fmt.Errorf("idea %d: %w", id, ErrNotFound)
	}
	view := ideaFromChain(idea)
	return &view, nil
}

// CreateIdeaInput 创建挂单请求，price 为USDC十进制字符串
type CreateIdeaInput struct {
	Title          string   `json:"title" binding:"required,bytes32"`
	Description    string   `json:"description" binding:"max=2000"`
	Content        string   `json:"content" binding:"notblank"`
	Categories     []string `json:"categories" binding:"required,min=1,max=10,dive,bytes32"`
	Price          string   `json:"price" binding:"required"`
	CreatorAddress string   `json:"creatorAddress" binding:"required,evm_address"`
}

// Validate 校验请求，返回USDC最小单位价格
func (in *CreateIdeaInput) Validate() (*big.Int, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	price, err := chain.ParseUSDC(strings.TrimSpace(in.Price))
	if err != nil || price.Sign() <= 0 {
		return nil, invalid("price", "must be a positive USDC amount with at most 6 decimals")
	}
	return price, nil
}

// IdeaMetadata 固定到IPFS的挂单元数据，正文加密存放
type IdeaMetadata struct {
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Categories    []string  `json:"categories"`
	Creator       string    `json:"creator"`
	Price         string    `json:"price"`
	ContentRef    string    `json:"contentRef"`
	SealedContent string    `json:"sealedContent"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreateIdeaResult 创建结果
type CreateIdeaResult struct {
	Idea            *IdeaView     `json:"idea,omitempty"`
	TransactionHash string        `json:"transactionHash,omitempty"`
	BlockNumber     uint64        `json:"blockNumber,omitempty"`
	IpfsHash        string        `json:"ipfsHash"`
	Metadata        *IdeaMetadata `json:"metadata,omitempty"`
	MetadataUrl     string        `json:"metadataUrl"`
	Pending         bool          `json:"pending"`
	Message         string        `json:"message"`
}

// Create 加密正文、固定元数据并在链上铸造挂单
func (l *IdeaLogic) Create(ctx context.Context, in CreateIdeaInput) (*CreateIdeaResult, error) {
	price, err := in.Validate()
	if err != nil {
		return nil, err
	}
	if l.sealer == nil {
		return nil, content.ErrNoKey
	}

	ref := uuid.NewString()
	sealed, err := l.sealer.Seal([]byte(in.Content), ref)
	if err != nil {
		return nil, fmt.Errorf("failed to seal idea content: %w", err)
	}
	metadata := &IdeaMetadata{
		Name:          in.Title,
		Description:   in.Description,
		Categories:    in.Categories,
		Creator:       strings.ToLower(in.CreatorAddress),
		Price:         price.String(),
		ContentRef:    ref,
		SealedContent: sealed,
		CreatedAt:     time.Now().UTC(),
	}
	pinned, err := l.pinner.PinJSON(ctx, "idea-"+ref, metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to upload idea metadata: %w", err)
	}

	result := &CreateIdeaResult{IpfsHash: pinned.IpfsHash, MetadataUrl: pinned.URL}

	tx, err := l.chain.CreateIdea(ctx, chain.IdeaParams{
		Title:      in.Title,
		Categories: in.Categories,
		IpfsHash:   pinned.IpfsHash,
		Price:      price,
	})
	if err != nil && !chain.IsTransient(err) {
		return nil, fmt.Errorf("failed to create idea on chain: %w", err)
	}
	if err != nil {
		logger.Warn("Idea chain write failed for %s, returning metadata only: %v", in.CreatorAddress, err)
		metrics.GracefulDegradations.WithLabelValues("ideas/create").Inc()
		metadata.SealedContent = ""
		result.Metadata = metadata
		result.Pending = true
		result.Message = "Idea metadata created successfully. Blockchain transaction will be processed when network is available."
		return result, nil
	}

	result.TransactionHash = tx.Hash.Hex()
	result.BlockNumber = tx.BlockNumber
	result.Message = "Idea created successfully."

	for _, event := range l.chain.DecodeEvents(tx.Receipt) {
		created, ok := event.(*chain.IdeaCreated)
		if !ok {
			continue
		}
		row := &model.IdeaModel{
			IdeaId:       created.IdeaId.Int64(),
			Creator:      created.Creator.Hex(),
			Title:        in.Title,
			Categories:   datatypes.NewJSONSlice(in.Categories),
			IpfsHash:     pinned.IpfsHash,
			Price:        decimal.NewFromBigInt(price, 0),
			CreatedBlock: int64(tx.BlockNumber),
			CreatedTime:  time.Now().UTC(),
			TxHash:       tx.Hash.Hex(),
		}
		if err := l.store.Ideas.Upsert(ctx, row); err != nil {
			logger.Warn("Idea %d created on chain but datastore write failed: %v", row.IdeaId, err)
		}
		view := ideaFromModel(row)
		result.Idea = &view
	}
	return result, nil
}

// IdeaContent 解密后的正文
type IdeaContent struct {
	IdeaId  int64  `json:"ideaId"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// RetrieveContent 校验链上持有人后解密正文
func (l *IdeaLogic) RetrieveContent(ctx context.Context, id int64, buyerAddress string) (*IdeaContent, error) {
	if id <= 0 {
		return nil, invalid("id", "must be a positive integer")
	}
	if err := requireAddress("buyerAddress", buyerAddress); err != nil {
		return nil, err
	}
	if l.sealer == nil {
		return nil, content.ErrNoKey
	}

	owner, err := l.chain.OwnerOf(ctx, uint64(id))
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(owner.Hex(), buyerAddress) {
		return nil, fmt.Errorf("idea %d owned by %s: %w", id, owner.Hex(), ErrNotOwner)
	}

	idea, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	raw, err := l.pinner.Fetch(ctx, storage.HashFromURI(idea.IpfsHash))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch idea metadata: %w", err)
	}
	var metadata IdeaMetadata
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil, fmt.Errorf("invalid idea metadata: %w", err)
	}
	plain, err := l.sealer.Open(metadata.SealedContent, metadata.ContentRef)
	if err != nil {
		return nil, err
	}
	return &IdeaContent{IdeaId: id, Title: idea.Title, Content: string(plain)}, nil
}

func ideaFromModel(m *model.IdeaModel) IdeaView {
	price := m.Price.BigInt()
	return IdeaView{
		IdeaId:      m.IdeaId,
		Creator:     m.Creator,
		Title:       m.Title,
		Categories:  nonNil(m.Categories),
		IpfsHash:    m.IpfsHash,
		Price:       price.String(),
		PriceUSDC:   chain.FormatUSDC(price),
		RatingTotal: m.RatingTotal,
		NumRaters:   m.NumRaters,
		IsPurchased: m.IsPurchased,
		Buyer:       m.Buyer,
		CreatedAt:   m.CreatedTime,
		TxHash:      m.TxHash,
	}
}

func ideaFromChain(d *chain.IdeaDetails) IdeaView {
	return IdeaView{
		IdeaId:      int64(d.IdeaId),
		Creator:     strings.ToLower(d.Creator.Hex()),
		Title:       d.Title,
		Categories:  nonNil(d.Categories),
		IpfsHash:    d.IpfsHash,
		Price:       bigString(d.Price),
		PriceUSDC:   chain.FormatUSDC(d.Price),
		RatingTotal: int64(d.RatingTotal),
		NumRaters:   int64(d.NumRaters),
		IsPurchased: d.IsPurchased,
		CreatedAt:   d.CreatedAt,
	}
}

func ideaFromGraphQL(g graphql.Idea) IdeaView {
	price, _ := new(big.Int).SetString(g.Price.String(), 10)
	id, _ := strconv.ParseInt(g.IdeaId.String(), 10, 64)
	rating, _ := strconv.ParseInt(g.RatingTotal.String(), 10, 64)
	raters, _ := strconv.ParseInt(g.NumRaters.String(), 10, 64)
	created, _ := strconv.ParseInt(g.CreatedAt.String(), 10, 64)
	view := IdeaView{
		IdeaId:      id,
		Creator:     strings.ToLower(g.Creator),
		Title:       g.Title,
		Categories:  nonNil(g.Categories),
		IpfsHash:    g.IpfsHash,
		Price:       bigString(price),
		PriceUSDC:   chain.FormatUSDC(price),
		RatingTotal: rating,
		NumRaters:   raters,
		IsPurchased: g.IsPurchased,
		TxHash:      g.TransactionHash,
	}
	if created > 0 {
		view.CreatedAt = time.Unix(created, 0).UTC()
	}
	return view
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func paginate(items []IdeaView, page repository.Page) []IdeaView {
	start := page.Offset()
	if start >= len(items) {
		return []IdeaView{}
	}
	end := start + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
