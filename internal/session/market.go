package session

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/blues/ideamarket/internal/apiclient"
	"github.com/blues/ideamarket/internal/chain"
)

// Listing 本地缓存的挂单
type Listing struct {
	apiclient.Idea
	IsOwned   bool      `json:"isOwned"`
	IsSold    bool      `json:"isSold"`
	SoldPrice string    `json:"soldPrice,omitempty"`
	SoldAt    time.Time `json:"soldAt,omitempty"`
}

// PriceUnits 价格，USDC最小单位
func (l Listing) PriceUnits() *big.Int {
	v, ok := new(big.Int).SetString(l.Price, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}

// IdeaSource 挂单数据来源
type IdeaSource interface {
	ListIdeas(ctx context.Context, available bool, limit int) ([]apiclient.Idea, error)
}

// Market 挂单状态
type Market struct {
	source IdeaSource

	mu       sync.RWMutex
	listings map[int64]*Listing
}

func NewMarket(source IdeaSource) *Market {
	return &Market{source: source, listings: make(map[int64]*Listing)}
}

// Load 从接口重新加载，保留本地已标记的购买状态
func (m *Market) Load(ctx context.Context) error {
	ideas, err := m.source.ListIdeas(ctx, false, 100)
	if err != nil {
		return err
	}
	m.Replace(ideas)
	return nil
}

// Replace 用给定挂单替换缓存
func (m *Market) Replace(ideas []apiclient.Idea) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := make(map[int64]*Listing, len(ideas))
	for _, idea := range ideas {
		l := &Listing{Idea: idea, IsSold: idea.IsPurchased}
		if prev, ok := m.listings[idea.IdeaId]; ok && prev.IsOwned {
			l.IsOwned, l.IsSold, l.SoldPrice, l.SoldAt = true, true, prev.SoldPrice, prev.SoldAt
		}
		next[idea.IdeaId] = l
	}
	m.listings = next
}

// Get 按链上ID查找
func (m *Market) Get(id int64) (Listing, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.listings[id]
	if !ok {
		return Listing{}, false
	}
	return *l, true
}

// IDs 已知挂单ID，升序
func (m *Market) IDs() []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int64, 0, len(m.listings))
	for id := range m.listings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// All 全部挂单，ID倒序
func (m *Market) All() []Listing {
	return m.filter(func(*Listing) bool { return true })
}

// Purchasable 未售出的挂单
func (m *Market) Purchasable() []Listing {
	return m.filter(func(l *Listing) bool { return !l.IsSold })
}

func (m *Market) filter(keep func(*Listing) bool) []Listing {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Listing, 0, len(m.listings))
	for _, l := range m.listings {
		if keep(l) {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IdeaId > out[j].IdeaId })
	return out
}

// MarkPurchased 标记为已购买，重复调用结果相同
func (m *Market) MarkPurchased(id int64, price *big.Int, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		l = &Listing{Idea: apiclient.Idea{IdeaId: id}}
		m.listings[id] = l
	}
	l.IsOwned = true
	l.IsSold = true
	l.IsPurchased = true
	l.SoldPrice = chain.USDCLabel(price)
	l.SoldAt = at
}
