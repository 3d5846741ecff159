package chain

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/blues/ideamarket/internal/config"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

//go:embed abi/*.json
var abiFS embed.FS

// 内置ABI文件
var builtinABI = map[string]string{
	config.ContractSuperheroNFT: "abi/superhero_nft.json",
	config.ContractIdeaRegistry: "abi/idea_registry.json",
	config.ContractTeamCore:     "abi/team_core.json",
	config.ContractMarketplace:  "abi/marketplace.json",
	config.ContractMockUSDC:     "abi/mock_usdc.json",
}

// Contract 合约工具类
type Contract struct {
	address  common.Address // 合约地址
	abi      abi.ABI        // 合约ABI
	name     string         // 合约名称
	blockNum int64          // 合约部署的区块号
	enabled  bool           // 是否参与索引
	bound    *bind.BoundContract
}

// NewContract 创建合约实例，backend 为 nil 时只能用于事件解码
func NewContract(backend bind.ContractBackend, name string, cfg config.ContractConfig) (*Contract, error) {
	if !common.IsHexAddress(cfg.Address) {
		return nil, fmt.Errorf("invalid address %q for contract %s", cfg.Address, name)
	}

	parsedABI, err := loadABI(name, cfg.ABIPath)
	if err != nil {
		return nil, err
	}

	c := &Contract{
		address:  common.HexToAddress(cfg.Address),
		abi:      parsedABI,
		name:     name,
		blockNum: cfg.BlockNum,
		enabled:  cfg.Enabled,
	}
	if backend != nil {
		c.bound = bind.NewBoundContract(c.address, parsedABI, backend, backend, backend)
	}
	return c, nil
}

// loadABI 优先读取配置的ABI文件，否则使用内置ABI
func loadABI(name, path string) (abi.ABI, error) {
	var (
		data []byte
		err  error
	)
	if path != "" {
		data, err = os.ReadFile(path)
	} else if file, ok := builtinABI[name]; ok {
		data, err = abiFS.ReadFile(file)
	} else {
		return abi.ABI{}, fmt.Errorf("no ABI available for contract %s", name)
	}
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to load ABI for %s: %w", name, err)
	}
	return ParseABI(data)
}

// ParseABI 解析ABI，兼容完整编译输出（带 abi 字段）和纯ABI数组
func ParseABI(data []byte) (abi.ABI, error) {
	var compiledOutput struct {
		ABI json.RawMessage `json:"abi"`
	}
	if err := json.Unmarshal(data, &compiledOutput); err == nil && compiledOutput.ABI != nil {
		parsed, err := abi.JSON(bytes.NewReader(compiledOutput.ABI))
		if err != nil {
			return abi.ABI{}, fmt.Errorf("failed to parse ABI from compiled output: %w", err)
		}
		return parsed, nil
	}

	parsed, err := abi.JSON(bytes.NewReader(data))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse ABI: %w", err)
	}
	return parsed, nil
}

func (c *Contract) GetAddress() common.Address {
	return c.address
}

func (c *Contract) GetABI() abi.ABI {
	return c.abi
}

func (c *Contract) GetName() string {
	return c.name
}

func (c *Contract) GetBlockNum() int64 {
	return c.blockNum
}

func (c *Contract) Enabled() bool {
	return c.enabled
}

// call 只读调用
func (c *Contract) call(opts *bind.CallOpts, method string, params ...interface{}) ([]interface{}, error) {
	if c.bound == nil {
		return nil, ErrProviderNotInitialized
	}
	var out []interface{}
	if err := c.bound.Call(opts, &out, method, params...); err != nil {
		return nil, err
	}
	return out, nil
}
