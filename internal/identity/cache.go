package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/blues/ideamarket/internal/apiclient"
	"github.com/blues/ideamarket/internal/logger"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL 身份缓存有效期
const DefaultTTL = 30 * time.Second

// resolveTimeout 共享解析的超时，不随任一调用方取消
const resolveTimeout = 30 * time.Second

// Identity 地址对应的超级英雄身份
type Identity struct {
	Address     string `json:"address"`
	SuperheroId int64  `json:"superheroId"`
	Name        string `json:"name"`
	AvatarUrl   string `json:"avatarUrl"`
}

// Resolver 解析地址的身份，没有身份时返回 nil, nil
type Resolver interface {
	Resolve(ctx context.Context, address string) (*Identity, error)
}

type entry struct {
	identity *Identity
	expires  time.Time
}

// Cache 地址到身份的缓存，"没有身份"同样会被缓存
type Cache struct {
	resolver Resolver
	ttl      time.Duration
	nowFn    func() time.Time

	mu         sync.Mutex
	entries    map[string]entry
	generation uint64
	group      singleflight.Group
}

// NewCache ttl 不大于0时使用 DefaultTTL
func NewCache(resolver Resolver, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		resolver: resolver,
		ttl:      ttl,
		nowFn:    time.Now,
		entries:  make(map[string]entry),
	}
}

// Lookup 有效期内直接返回缓存，同一地址的并发查询共享一次解析
func (c *Cache) Lookup(ctx context.Context, address string) (*Identity, error) {
	key := strings.ToLower(address)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.nowFn().Before(e.expires) {
		c.mu.Unlock()
		return e.identity, nil
	}
	gen := c.generation
	c.mu.Unlock()

	ch := c.group.DoChan(fmt.Sprintf("%d:%s", gen, key), func() (interface{}, error) {
		// 解析由多个调用方共享，不能使用首个调用方的 ctx
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
		defer cancel()
		id, err := c.resolver.Resolve(rctx, key)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		// 解析期间发生过失效的结果不写入
		if c.generation == gen {
			c.entries[key] = entry{identity: id, expires: c.nowFn().Add(c.ttl)}
		}
		c.mu.Unlock()
		return id, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Identity), nil
	}
}

// Invalidate 清空缓存，断开钱包或切换账户时调用
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.generation++
	c.mu.Unlock()
	logger.Debug("Identity cache invalidated")
}

// Len 缓存条目数
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// APIResolver 先查身份接口，再在身份列表中查找
type APIResolver struct {
	client   *apiclient.Client
	maxPages int
}

func NewAPIResolver(client *apiclient.Client) *APIResolver {
	return &APIResolver{client: client, maxPages: 5}
}

func (r *APIResolver) Resolve(ctx context.Context, address string) (*Identity, error) {
	hero, err := r.client.GetSuperhero(ctx, address)
	if err == nil && hero.SuperheroId != 0 {
		return fromHero(hero), nil
	}
	if err != nil && !apiclient.IsNotFound(err) {
		logger.Warn("Superhero lookup for %s failed, scanning list: %v", address, err)
	}

	for page := 1; page <= r.maxPages; page++ {
		heroes, pagination, err := r.client.ListSuperheroes(ctx, page, 100)
		if err != nil {
			return nil, err
		}
		for i := range heroes {
			if strings.EqualFold(heroes[i].Address, address) {
				return fromHero(&heroes[i]), nil
			}
		}
		if pagination == nil || !pagination.HasMore {
			break
		}
	}
	return nil, nil
}

func fromHero(h *apiclient.Superhero) *Identity {
	return &Identity{
		Address:     strings.ToLower(h.Address),
		SuperheroId: h.SuperheroId,
		Name:        h.Name,
		AvatarUrl:   h.AvatarUrl,
	}
}
