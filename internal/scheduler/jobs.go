package scheduler

import (
	"context"
	"time"

	"github.com/blues/ideamarket/internal/logger"
	"github.com/blues/ideamarket/internal/metrics"
	"github.com/go-co-op/gocron/v2"
)

// Poller 索引器的一轮处理
type Poller interface {
	Poll(ctx context.Context) error
}

// IndexerJob 定时拉取链上日志
type IndexerJob struct {
	poller   Poller
	interval time.Duration
}

// NewIndexerJob interval 不大于0时使用15秒
func NewIndexerJob(poller Poller, interval time.Duration) *IndexerJob {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &IndexerJob{poller: poller, interval: interval}
}

func (j *IndexerJob) GetName() string {
	return "indexer_poll"
}

func (j *IndexerJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 错误只记录，游标未推进，下一轮重试
func (j *IndexerJob) Execute(ctx context.Context) {
	if err := j.poller.Poll(ctx); err != nil {
		logger.Error("Indexer poll failed: %v", err)
	}
}

// HeadReader 读取链上最新区块
type HeadReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// ChainHeadJob 刷新链上区块高度指标
type ChainHeadJob struct {
	reader   HeadReader
	interval time.Duration
}

func NewChainHeadJob(reader HeadReader, interval time.Duration) *ChainHeadJob {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ChainHeadJob{reader: reader, interval: interval}
}

func (j *ChainHeadJob) GetName() string {
	return "chain_head_refresh"
}

func (j *ChainHeadJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

func (j *ChainHeadJob) Execute(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	head, err := j.reader.BlockNumber(ctx)
	if err != nil {
		logger.Warn("Failed to refresh chain head: %v", err)
		return
	}
	metrics.ChainHeadBlock.Set(float64(head))
}
