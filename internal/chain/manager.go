package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/blues/ideamarket/internal/config"
	"github.com/blues/ideamarket/internal/logger"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Manager 链适配器：RPC客户端、签名钱包和合约
type Manager struct {
	mu        sync.RWMutex
	client    *ethclient.Client
	contracts map[string]*Contract // 合约映射: "contractName" -> Contract
	config    config.ChainConfig

	key     *ecdsa.PrivateKey
	account common.Address
	sendMu  sync.Mutex // 串行发送交易，避免 nonce 冲突

	fallback *FallbackReader
}

// NewManager 创建链适配器，privateKey 为空时只读
func NewManager(cfg config.ChainConfig) (*Manager, error) {
	m := &Manager{
		contracts: make(map[string]*Contract),
		config:    cfg,
		fallback:  NewFallbackReader(cfg.AllRpcUrls(), cfg.RpcTimeout),
	}

	if pk := strings.TrimSpace(cfg.PrivateKey); pk != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(pk, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		m.key = key
		m.account = crypto.PubkeyToAddress(key.PublicKey)
	}

	// 未连接时合约只能用于事件解码
	if err := m.initContracts(nil); err != nil {
		return nil, err
	}
	return m, nil
}

// Connect 连接主RPC节点并校验链ID
func (m *Manager) Connect(ctx context.Context) error {
	if m.config.RpcUrl == "" {
		return fmt.Errorf("no RPC URL configured")
	}

	logger.Info("Connecting to chain %d (RPC: %s)", m.config.ChainId, m.config.RpcUrl)
	client, err := ethclient.DialContext(ctx, m.config.RpcUrl)
	if err != nil {
		return wrap("connect to RPC", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return wrap("read chain id", err)
	}
	if m.config.ChainId != 0 && chainID.Int64() != m.config.ChainId {
		client.Close()
		return fmt.Errorf("chain id mismatch: RPC reports %d, configured %d", chainID.Int64(), m.config.ChainId)
	}

	m.mu.Lock()
	old := m.client
	m.client = client
	m.mu.Unlock()
	if old != nil {
		old.Close()
	}

	if err := m.initContracts(client); err != nil {
		return err
	}
	logger.Info("Connected to chain %d with %d contracts", chainID.Int64(), len(m.GetContracts()))
	return nil
}

// initContracts 初始化所有配置的合约
func (m *Manager) initContracts(client *ethclient.Client) error {
	var backend bind.ContractBackend
	if client != nil {
		backend = client
	}

	contracts := make(map[string]*Contract)
	for name, contractCfg := range m.config.Contracts {
		canonical := canonicalName(name)
		if _, ok := builtinABI[canonical]; !ok && contractCfg.ABIPath == "" {
			logger.Debug("Skipping contract without ABI: %s", canonical)
			continue
		}
		contract, err := NewContract(backend, canonical, contractCfg)
		if err != nil {
			return fmt.Errorf("failed to create contract %s: %w", canonical, err)
		}
		contracts[canonical] = contract
	}

	m.mu.Lock()
	m.contracts = contracts
	m.mu.Unlock()
	return nil
}

// canonicalName viper 会把 map 键转为小写，这里还原为标准合约名
func canonicalName(name string) string {
	for _, known := range []string{
		config.ContractSuperheroNFT, config.ContractIdeaRegistry, config.ContractTeamCore,
		config.ContractMarketplace, config.ContractMockUSDC, config.ContractTeamMilestones,
	} {
		if strings.EqualFold(known, name) {
			return known
		}
	}
	return name
}

// GetClient 获取客户端，未连接时返回 ErrProviderNotInitialized
func (m *Manager) GetClient() (*ethclient.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.client == nil {
		return nil, ErrProviderNotInitialized
	}
	return m.client, nil
}

// IsConnected 是否已连接
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

// GetContract 获取指定合约
func (m *Manager) GetContract(name string) (*Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	contract, exists := m.contracts[name]
	if !exists {
		return nil, fmt.Errorf("contract %s not found", name)
	}
	return contract, nil
}

// GetContracts 获取所有合约的副本
func (m *Manager) GetContracts() map[string]*Contract {
	m.mu.RLock()
	defer m.mu.RUnlock()

	contracts := make(map[string]*Contract, len(m.contracts))
	for name, contract := range m.contracts {
		contracts[name] = contract
	}
	return contracts
}

// Account 签名钱包地址
func (m *Manager) Account() (common.Address, bool) {
	return m.account, m.key != nil
}

// ChainId 配置的链ID
func (m *Manager) ChainId() int64 {
	return m.config.ChainId
}

// ContractAddress 合约地址
func (m *Manager) ContractAddress(name string) common.Address {
	c, err := m.GetContract(name)
	if err != nil {
		return common.Address{}
	}
	return c.GetAddress()
}

// callOpts 只读调用参数
func (m *Manager) callOpts(ctx context.Context) *bind.CallOpts {
	opts := &bind.CallOpts{Context: ctx}
	if m.key != nil {
		opts.From = m.account
	}
	return opts
}

// bound 获取已连接的合约
func (m *Manager) bound(name string) (*Contract, error) {
	if !m.IsConnected() {
		return nil, ErrProviderNotInitialized
	}
	return m.GetContract(name)
}

// BlockNumber 最新区块号，按顺序尝试主节点和备用节点
func (m *Manager) BlockNumber(ctx context.Context) (uint64, error) {
	return m.fallback.BlockNumber(ctx)
}

// GasPrice 建议的 gas 价格
func (m *Manager) GasPrice(ctx context.Context) (*big.Int, error) {
	client, err := m.GetClient()
	if err != nil {
		return nil, err
	}
	price, err := client.SuggestGasPrice(ctx)
	return price, wrap("get gas price", err)
}

// NativeBalance 原生币余额（wei）
func (m *Manager) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	client, err := m.GetClient()
	if err != nil {
		return nil, err
	}
	balance, err := client.BalanceAt(ctx, account, nil)
	return balance, wrap("get balance", err)
}

// HealthStatus 获取健康状态
func (m *Manager) HealthStatus(ctx context.Context) map[string]interface{} {
	health := map[string]interface{}{
		"chain_id":      m.config.ChainId,
		"client_status": "connected",
		"signer":        "",
	}
	if m.key != nil {
		health["signer"] = m.account.Hex()
	}

	client, err := m.GetClient()
	if err != nil {
		health["client_status"] = "not_initialized"
	} else {
		ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if head, err := client.BlockNumber(ctx); err != nil {
			health["client_status"] = "disconnected"
		} else {
			health["block_number"] = head
		}
	}

	contracts := make(map[string]interface{})
	for name, contract := range m.GetContracts() {
		contracts[name] = map[string]interface{}{
			"address":   contract.GetAddress().Hex(),
			"block_num": contract.GetBlockNum(),
			"indexed":   contract.Enabled(),
		}
	}
	health["contracts"] = contracts
	return health
}

// Close 关闭客户端
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		m.client.Close()
		m.client = nil
	}
	m.fallback.Close()
	logger.Info("Chain manager closed")
}
