package logic

import (
	"context"

	"github.com/blues/ideamarket/internal/chain"
	"github.com/blues/ideamarket/internal/logger"
	"github.com/blues/ideamarket/internal/repository"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Stats 平台汇总
type Stats struct {
	Superheroes    int64  `json:"superheroes"`
	Ideas          int64  `json:"ideas"`
	PurchasedIdeas int64  `json:"purchasedIdeas"`
	Teams          int64  `json:"teams"`
	Volume         string `json:"volume"`
	VolumeUSDC     string `json:"volumeUsdc"`
	ChainHead      uint64 `json:"chainHead,omitempty"`
}

type StatsLogic struct {
	store *repository.Store
	chain ChainGateway
}

func NewStatsLogic(store *repository.Store, chain ChainGateway) *StatsLogic {
	return &StatsLogic{store: store, chain: chain}
}

// Get 并行统计，链上区块高度读取失败不影响结果
func (l *StatsLogic) Get(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	var volume decimal.Decimal

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.Superheroes, err = l.store.Superheroes.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.Ideas, stats.PurchasedIdeas, err = l.store.Ideas.Counts(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.Teams, err = l.store.Teams.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		volume, err = l.store.Purchases.Volume(gctx)
		return err
	})
	g.Go(func() error {
		head, err := l.chain.BlockNumber(gctx)
		if err != nil {
			logger.Warn("Chain head unavailable for stats: %v", err)
			return nil
		}
		stats.ChainHead = head
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.Volume = volume.String()
	stats.VolumeUSDC = chain.FormatUSDC(volume.BigInt())
	return stats, nil
}

// Health 数据库连通性和链客户端状态，数据库不可用时 healthy 为 false
func (l *StatsLogic) Health(ctx context.Context) (map[string]interface{}, bool) {
	health := map[string]interface{}{"database": "connected"}
	healthy := true

	sqlDB, err := l.store.DB().DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		health["database"] = "disconnected"
		health["database_error"] = err.Error()
		healthy = false
	}
	health["blockchain"] = l.chain.HealthStatus(ctx)
	return health, healthy
}
