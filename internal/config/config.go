package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blues/ideamarket/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 合约名称
const (
	ContractSuperheroNFT   = "SuperheroNFT"
	ContractIdeaRegistry   = "IdeaRegistry"
	ContractTeamCore       = "TeamCore"
	ContractMarketplace    = "OptimizedMarketplace"
	ContractMockUSDC       = "MockUSDC"
	ContractTeamMilestones = "TeamMilestones"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Chain    ChainConfig    `mapstructure:"chain"`
	IPFS     IPFSConfig     `mapstructure:"ipfs"`
	Content  ContentConfig  `mapstructure:"content"`
	Indexer  IndexerConfig  `mapstructure:"indexer"`
	Purchase PurchaseConfig `mapstructure:"purchase"`
	Identity IdentityConfig `mapstructure:"identity"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port       string `mapstructure:"port"`
	Mode       string `mapstructure:"mode"`
	AdminToken string `mapstructure:"admin_token"` // 管理接口令牌，为空时不校验
}

type DatabaseConfig struct {
	URL      string `mapstructure:"url"` // 完整连接串，优先于分项配置
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN 返回 postgres 连接串
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// ChainConfig 链配置
type ChainConfig struct {
	ChainId         int64                     `mapstructure:"chain_id"`          // 链ID
	RpcUrl          string                    `mapstructure:"rpc_url"`           // 主RPC节点，写操作只用它
	FallbackRpcUrls []string                  `mapstructure:"fallback_rpc_urls"` // 只读区块号查询的备用节点
	PrivateKey      string                    `mapstructure:"private_key"`       // 签名私钥
	Confirmations   int64                     `mapstructure:"confirmations"`     // 索引延迟确认数
	RpcTimeout      time.Duration             `mapstructure:"rpc_timeout"`       // 单次备用节点尝试超时
	ReceiptTimeout  time.Duration             `mapstructure:"receipt_timeout"`   // 等待交易上链超时
	Contracts       map[string]ContractConfig `mapstructure:"contracts"`
}

// ContractConfig 单个合约配置
type ContractConfig struct {
	Address  string `mapstructure:"address"`   // 合约地址
	ABIPath  string `mapstructure:"abi_path"`  // ABI文件路径，为空使用内置ABI
	Enabled  bool   `mapstructure:"enabled"`   // 是否索引此合约
	BlockNum int64  `mapstructure:"block_num"` // 合约部署区块号
}

// IPFSConfig 兼容S3协议的IPFS固定服务
type IPFSConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	Region     string `mapstructure:"region"`
	Bucket     string `mapstructure:"bucket"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	GatewayURL string `mapstructure:"gateway_url"`
}

type ContentConfig struct {
	EncryptionKey string `mapstructure:"encryption_key"` // hex编码的32字节密钥
}

type IndexerConfig struct {
	Interval          time.Duration `mapstructure:"interval"`
	BatchSize         int64         `mapstructure:"batch_size"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	GraphQLURL        string        `mapstructure:"graphql_url"`
}

// PurchaseConfig 购买流程配置
type PurchaseConfig struct {
	APIURL                string        `mapstructure:"api_url"`
	AutoMintTestUSDC      bool          `mapstructure:"auto_mint_test_usdc"` // 余额为0时自动铸造测试币，仅限测试网
	TestMintAmount        string        `mapstructure:"test_mint_amount"`
	MaxBalanceAttempts    int           `mapstructure:"max_balance_attempts"`
	AllowancePollInterval time.Duration `mapstructure:"allowance_poll_interval"`
	AllowancePollTimeout  time.Duration `mapstructure:"allowance_poll_timeout"`
}

type IdentityConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // stdout, stderr, file
	File   string `mapstructure:"file"`
}

func (l LogConfig) GetLevel() string  { return l.Level }
func (l LogConfig) GetOutput() string { return l.Output }
func (l LogConfig) GetFile() string   { return l.File }

// envAliases 常用环境变量名到配置键的映射
var envAliases = map[string]string{
	"chain.rpc_url":          "RPC_URL",
	"chain.private_key":      "PRIVATE_KEY",
	"database.url":           "DATABASE_URL",
	"ipfs.access_key":        "IPFS_ACCESS_KEY",
	"ipfs.secret_key":        "IPFS_SECRET_KEY",
	"ipfs.bucket":            "IPFS_BUCKET",
	"ipfs.endpoint":          "IPFS_ENDPOINT",
	"content.encryption_key": "CONTENT_KEY",
	"server.admin_token":     "ADMIN_TOKEN",
}

// Load 加载配置，失败时退出进程
func Load() *Config {
	cfg, err := LoadDefault()
	if err != nil {
		logger.Fatal("Unable to load config: %v", err)
	}
	return cfg
}

// LoadDefault 从默认搜索路径加载配置
func LoadDefault() (*Config, error) {
	return LoadFrom(viper.New(), ".", "./config", "/etc/ideamarket")
}

// LoadFrom 使用给定的 viper 实例和搜索路径加载配置
func LoadFrom(v *viper.Viper, paths ...string) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		logger.Info("Loaded environment from .env")
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envAliases {
		if err := v.BindEnv(key, env, strings.ToUpper(strings.ReplaceAll(key, ".", "_"))); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		logger.Warn("Could not find config file, using defaults and environment")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate 校验启动必需项，签名进程缺少私钥为致命错误
func (c *Config) Validate(requireSigner bool) error {
	if c.Chain.RpcUrl == "" {
		return errors.New("chain.rpc_url (RPC_URL) is required")
	}
	if requireSigner && strings.TrimSpace(c.Chain.PrivateKey) == "" {
		return errors.New("chain.private_key (PRIVATE_KEY) is required for signing")
	}
	for _, name := range []string{ContractSuperheroNFT, ContractIdeaRegistry, ContractTeamCore, ContractMarketplace, ContractMockUSDC} {
		if _, ok := c.Chain.Contract(name); !ok {
			return fmt.Errorf("contract %s is not configured", name)
		}
	}
	return nil
}

// Contract 按名称获取合约配置，viper 会把 map 键转为小写
func (c ChainConfig) Contract(name string) (ContractConfig, bool) {
	if cc, ok := c.Contracts[name]; ok {
		return cc, true
	}
	cc, ok := c.Contracts[strings.ToLower(name)]
	return cc, ok
}

// AllRpcUrls 主节点在前的有序节点列表
func (c ChainConfig) AllRpcUrls() []string {
	urls := make([]string, 0, len(c.FallbackRpcUrls)+1)
	seen := make(map[string]bool)
	for _, u := range append([]string{c.RpcUrl}, c.FallbackRpcUrls...) {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	return urls
}
