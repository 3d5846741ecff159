package indexer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/blues/ideamarket/internal/chain"
	"github.com/blues/ideamarket/internal/config"
	"github.com/blues/ideamarket/internal/logger"
	"github.com/blues/ideamarket/internal/metrics"
	"github.com/blues/ideamarket/internal/repository"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"
)

// DefaultCursorName 索引进度记录名
const DefaultCursorName = "lisk-sepolia"

// ChainSource 索引器需要的链读取能力，*chain.Manager 实现了它
type ChainSource interface {
	GetContracts() map[string]*chain.Contract
	HeadBlockNumber(ctx context.Context) (int64, error)
	FilterLogs(ctx context.Context, addresses []common.Address, fromBlock, toBlock int64) ([]types.Log, error)
	BlockTime(ctx context.Context, number uint64) (time.Time, error)
}

// Monitor 区块链事件索引器
type Monitor struct {
	source        ChainSource
	store         *repository.Store
	registry      *Registry
	limiter       *rate.Limiter
	batchSize     int64
	confirmations int64
	cursorName    string

	mu              sync.Mutex // 同一时间只运行一轮
	backoffUntil    time.Time  // 退避截止时间
	backoffDuration time.Duration
	nowFn           func() time.Time

	// statusMu 保护 Status 读取的字段，Poll 期间 Status 不阻塞
	statusMu   sync.RWMutex
	retryCount int // 连续失败次数
	lastBlock  int64
}

// NewMonitor 创建索引器
func NewMonitor(source ChainSource, store *repository.Store, cfg config.IndexerConfig, confirmations int64) *Monitor {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if confirmations < 0 {
		confirmations = 0
	}

	return &Monitor{
		source:        source,
		store:         store,
		registry:      NewRegistry(),
		limiter:       rate.NewLimiter(limit, 1),
		batchSize:     batchSize,
		confirmations: confirmations,
		cursorName:    DefaultCursorName,
		nowFn:         time.Now,
	}
}

// Registry 事件处理器
func (m *Monitor) Registry() *Registry {
	return m.registry
}

// Poll 执行一轮索引：从游标处理到 head-confirmations
func (m *Monitor) Poll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if now := m.nowFn(); now.Before(m.backoffUntil) {
		logger.Debug("Indexer backing off until %s", m.backoffUntil.Format(time.RFC3339))
		return nil
	}

	metrics.IndexerTicksTotal.Inc()
	if err := m.poll(ctx); err != nil {
		metrics.IndexerTickErrors.Inc()
		m.handleError(err)
		return err
	}
	m.statusMu.Lock()
	m.retryCount = 0
	m.statusMu.Unlock()
	m.backoffDuration = 0
	return nil
}

func (m *Monitor) poll(ctx context.Context) error {
	contracts := m.indexedContracts()
	if len(contracts) == 0 {
		return errors.New("no contracts available for indexing")
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}
	head, err := m.source.HeadBlockNumber(ctx)
	if err != nil {
		return err
	}
	safeHead := head - m.confirmations

	start, err := m.startBlock(ctx, contracts)
	if err != nil {
		return err
	}
	if start > safeHead {
		logger.Debug("Indexer up to date (next %d, safe head %d)", start, safeHead)
		return nil
	}

	logger.Debug("Indexing blocks %d to %d", start, safeHead)
	for from := start; from <= safeHead; from += m.batchSize {
		to := from + m.batchSize - 1
		if to > safeHead {
			to = safeHead
		}

		batchStart := time.Now()
		if err := m.processBatch(ctx, contracts, from, to); err != nil {
			return fmt.Errorf("blocks %d-%d: %w", from, to, err)
		}
		metrics.IndexerBatchLatency.Observe(time.Since(batchStart).Seconds())

		if err := m.store.Cursors.Save(ctx, m.cursorName, to); err != nil {
			return err
		}
		m.statusMu.Lock()
		m.lastBlock = to
		m.statusMu.Unlock()
		metrics.IndexerCursorBlock.Set(float64(to))
	}
	return nil
}

// indexedContracts 参与索引的合约
func (m *Monitor) indexedContracts() map[string]*chain.Contract {
	out := make(map[string]*chain.Contract)
	for name, c := range m.source.GetContracts() {
		if c.Enabled() {
			out[name] = c
		}
	}
	return out
}

// startBlock max(最小部署区块, 游标+1)
func (m *Monitor) startBlock(ctx context.Context, contracts map[string]*chain.Contract) (int64, error) {
	minDeployBlock := int64(-1)
	for _, c := range contracts {
		if minDeployBlock < 0 || c.GetBlockNum() < minDeployBlock {
			minDeployBlock = c.GetBlockNum()
		}
	}
	if minDeployBlock < 0 {
		minDeployBlock = 0
	}

	cursor, err := m.store.Cursors.Get(ctx, m.cursorName)
	if err != nil {
		return 0, err
	}
	if cursor+1 > minDeployBlock {
		return cursor + 1, nil
	}
	return minDeployBlock, nil
}

// processBatch 获取一批区块的日志，按合约并发处理
func (m *Monitor) processBatch(ctx context.Context, contracts map[string]*chain.Contract, fromBlock, toBlock int64) error {
	addresses, byAddress := deployedContracts(contracts, toBlock)
	if len(addresses) == 0 {
		return nil
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}
	logs, err := m.source.FilterLogs(ctx, addresses, fromBlock, toBlock)
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		return nil
	}
	logger.Debug("Found %d logs in blocks %d-%d", len(logs), fromBlock, toBlock)

	blockTimes, err := m.blockTimes(ctx, logs)
	if err != nil {
		return err
	}

	groups := groupLogsByContract(logs)

	// 临时协程池，大小等于分组数量
	pool, err := ants.NewPool(len(groups))
	if err != nil {
		return fmt.Errorf("failed to create pool for %d groups: %w", len(groups), err)
	}
	defer pool.Release()

	var (
		wg      sync.WaitGroup
		errMu   sync.Mutex
		errList []error
	)
	for address, contractLogs := range groups {
		contract := byAddress[address]
		if contract == nil {
			logger.Warn("Unknown contract address: %s", address.Hex())
			continue
		}
		contractLogs := contractLogs

		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			if err := m.processContractLogs(ctx, contract, contractLogs, blockTimes); err != nil {
				errMu.Lock()
				errList = append(errList, err)
				errMu.Unlock()
			}
		}); err != nil {
			wg.Done()
			return fmt.Errorf("failed to submit %s logs: %w", contract.GetName(), err)
		}
	}
	wg.Wait()

	return errors.Join(errList...)
}

// processContractLogs 按顺序处理单个合约的日志。
// 无法解码的日志记录后跳过，写库失败则中止，本批次下一轮重试。
func (m *Monitor) processContractLogs(ctx context.Context, contract *chain.Contract, logs []types.Log, blockTimes map[uint64]time.Time) error {
	for _, log := range logs {
		if log.Removed {
			continue
		}

		event, err := contract.DecodeLog(log)
		if err != nil {
			logger.Warn("Rejected log %s-%d from %s: %v", log.TxHash.Hex(), log.Index, contract.GetName(), err)
			metrics.IndexerEventsRejected.WithLabelValues(contract.GetName(), "decode").Inc()
			continue
		}

		inserted, err := m.registry.Apply(ctx, m.store, event, blockTimes[log.BlockNumber])
		if err != nil {
			if errors.Is(err, chain.ErrUnknownEvent) {
				logger.Warn("No handler for %s.%s", contract.GetName(), event.EventName())
				metrics.IndexerEventsRejected.WithLabelValues(contract.GetName(), "unhandled").Inc()
				continue
			}
			metrics.IndexerEventsRejected.WithLabelValues(contract.GetName(), "persist").Inc()
			return err
		}
		if !inserted {
			metrics.IndexerEventsDuplicate.WithLabelValues(contract.GetName(), event.EventName()).Inc()
			continue
		}
		metrics.IndexerEventsProcessed.WithLabelValues(contract.GetName(), event.EventName()).Inc()
		logger.Debug("Indexed %s.%s at block %d", contract.GetName(), event.EventName(), log.BlockNumber)
	}
	return nil
}

// blockTimes 查询日志涉及区块的时间戳
func (m *Monitor) blockTimes(ctx context.Context, logs []types.Log) (map[uint64]time.Time, error) {
	times := make(map[uint64]time.Time)
	for _, log := range logs {
		if _, ok := times[log.BlockNumber]; ok {
			continue
		}
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		t, err := m.source.BlockTime(ctx, log.BlockNumber)
		if err != nil {
			return nil, err
		}
		times[log.BlockNumber] = t
	}
	return times, nil
}

// handleError 指数退避，限流错误退避更久
func (m *Monitor) handleError(err error) {
	m.statusMu.Lock()
	m.retryCount++
	retries := m.retryCount
	m.statusMu.Unlock()

	if chain.IsRateLimitError(err) {
		metrics.IndexerRateLimited.Inc()
		if retries > 5 {
			m.backoffDuration = 5 * time.Minute
		} else {
			m.backoffDuration = time.Duration(retries) * 10 * time.Second
		}
		m.backoffUntil = m.nowFn().Add(m.backoffDuration)
		logger.Error("Indexer rate limited (retry %d), backing off %s: %v", retries, m.backoffDuration, err)
		return
	}

	logger.Error("Indexer encountered error (retry %d): %v", retries, err)
}

// Status 索引器状态
func (m *Monitor) Status(ctx context.Context) map[string]interface{} {
	m.statusMu.RLock()
	lastBlock, retries := m.lastBlock, m.retryCount
	m.statusMu.RUnlock()

	cursor, err := m.store.Cursors.Get(ctx, m.cursorName)
	status := map[string]interface{}{
		"cursor":         cursor,
		"contract_count": len(m.indexedContracts()),
		"confirmations":  m.confirmations,
		"batch_size":     m.batchSize,
		"last_block":     lastBlock,
		"retry_count":    retries,
	}
	if err != nil {
		status["cursor_error"] = err.Error()
	}
	return status
}

// deployedContracts 在 toBlock 之前已部署的合约
func deployedContracts(contracts map[string]*chain.Contract, toBlock int64) ([]common.Address, map[common.Address]*chain.Contract) {
	var addresses []common.Address
	byAddress := make(map[common.Address]*chain.Contract)

	for _, contract := range contracts {
		if toBlock < contract.GetBlockNum() {
			continue
		}
		addresses = append(addresses, contract.GetAddress())
		byAddress[contract.GetAddress()] = contract
	}
	sort.Slice(addresses, func(i, j int) bool {
		return addresses[i].Hex() < addresses[j].Hex()
	})
	return addresses, byAddress
}

// groupLogsByContract 按合约地址分组，组内保持区块和日志顺序
func groupLogsByContract(logs []types.Log) map[common.Address][]types.Log {
	groups := make(map[common.Address][]types.Log)
	for _, log := range logs {
		groups[log.Address] = append(groups[log.Address], log)
	}
	for _, group := range groups {
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].BlockNumber != group[j].BlockNumber {
				return group[i].BlockNumber < group[j].BlockNumber
			}
			return group[i].Index < group[j].Index
		})
	}
	return groups
}
