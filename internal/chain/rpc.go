package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blues/ideamarket/internal/logger"
	"github.com/ethereum/go-ethereum/ethclient"
)

// DefaultRpcTimeout 单个节点的尝试超时
const DefaultRpcTimeout = 2 * time.Second

// FallbackReader 按优先级依次尝试多个RPC节点的只读查询
type FallbackReader struct {
	urls    []string
	timeout time.Duration

	mu      sync.Mutex
	clients map[string]*ethclient.Client
}

func NewFallbackReader(urls []string, timeout time.Duration) *FallbackReader {
	if timeout <= 0 {
		timeout = DefaultRpcTimeout
	}
	return &FallbackReader{urls: urls, timeout: timeout, clients: make(map[string]*ethclient.Client)}
}

// BlockNumber 返回第一个成功节点的区块号
func (f *FallbackReader) BlockNumber(ctx context.Context) (uint64, error) {
	if len(f.urls) == 0 {
		return 0, errors.New("no RPC URL configured")
	}

	var errs []error
	for _, url := range f.urls {
		head, err := f.blockNumberFrom(ctx, url)
		if err == nil {
			return head, nil
		}
		logger.Warn("RPC %s failed to return block number: %v", url, err)
		errs = append(errs, fmt.Errorf("%s: %w", url, err))

		if ctx.Err() != nil {
			break
		}
	}
	return 0, wrap("get block number from any RPC", errors.Join(errs...))
}

func (f *FallbackReader) blockNumberFrom(ctx context.Context, url string) (uint64, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	client, err := f.client(attemptCtx, url)
	if err != nil {
		return 0, err
	}
	head, err := client.BlockNumber(attemptCtx)
	if err != nil {
		f.drop(url)
		return 0, err
	}
	return head, nil
}

func (f *FallbackReader) client(ctx context.Context, url string) (*ethclient.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients[url]; ok {
		return c, nil
	}
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	f.clients[url] = c
	return c, nil
}

func (f *FallbackReader) drop(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients[url]; ok {
		c.Close()
		delete(f.clients, url)
	}
}

// Close 关闭所有连接
func (f *FallbackReader) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for url, c := range f.clients {
		c.Close()
		delete(f.clients, url)
	}
}
