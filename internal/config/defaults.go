package config

import (
	"strings"

	"github.com/spf13/viper"
)

// LiskSepoliaChainID Lisk Sepolia 测试网
const LiskSepoliaChainID = 4202

// DefaultGatewayURL 默认的IPFS HTTP网关
const DefaultGatewayURL = "https://gateway.pinata.cloud/ipfs/"

// DefaultFallbackRpcUrls 区块号查询的备用节点，按优先级排列
var DefaultFallbackRpcUrls = []string{
	"https://lisk-sepolia.drpc.org",
	"https://endpoints.omniatech.io/v1/lisk/sepolia/public",
	"https://rpc.sepolia-api.lisk.com",
}

// DefaultContracts Lisk Sepolia 上已部署的合约
var DefaultContracts = map[string]ContractConfig{
	ContractSuperheroNFT:   {Address: "0xd8EcF5D6D77bF2852c5e9313F87f31cc99c38dE9", Enabled: true, BlockNum: 23451474},
	ContractIdeaRegistry:   {Address: "0xecB93f03515DE67EA43272797Ea8eDa059985894", Enabled: true, BlockNum: 23451494},
	ContractTeamCore:       {Address: "0xed852d3Ef6a5B57005acDf1054d15af1CF09489c", Enabled: true, BlockNum: 23451547},
	ContractMarketplace:    {Address: "0xEEEdca533402B75dDF338ECF3EF1E1136C8f20cF", Enabled: true, BlockNum: 23451166},
	ContractMockUSDC:       {Address: "0x47B320A4ED999989AE3065Be28B208f177a7546D", Enabled: false, BlockNum: 23453138},
	ContractTeamMilestones: {Address: "0xf31e7B8E0a820DCd1a283315DB0aD641dFe7Db84", Enabled: false},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3002")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.admin_token", "")

	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "ideamarket")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("chain.chain_id", LiskSepoliaChainID)
	v.SetDefault("chain.rpc_url", "https://rpc.sepolia-api.lisk.com")
	v.SetDefault("chain.fallback_rpc_urls", DefaultFallbackRpcUrls)
	v.SetDefault("chain.private_key", "")
	v.SetDefault("chain.confirmations", 2)
	v.SetDefault("chain.rpc_timeout", "2s")
	v.SetDefault("chain.receipt_timeout", "2m")
	for name, c := range DefaultContracts {
		prefix := "chain.contracts." + strings.ToLower(name)
		v.SetDefault(prefix+".address", c.Address)
		v.SetDefault(prefix+".abi_path", c.ABIPath)
		v.SetDefault(prefix+".enabled", c.Enabled)
		v.SetDefault(prefix+".block_num", c.BlockNum)
	}

	v.SetDefault("ipfs.endpoint", "https://s3.filebase.com")
	v.SetDefault("ipfs.region", "us-east-1")
	v.SetDefault("ipfs.bucket", "")
	v.SetDefault("ipfs.access_key", "")
	v.SetDefault("ipfs.secret_key", "")
	v.SetDefault("ipfs.gateway_url", DefaultGatewayURL)

	v.SetDefault("content.encryption_key", "")

	v.SetDefault("indexer.interval", "15s")
	v.SetDefault("indexer.batch_size", 500)
	v.SetDefault("indexer.requests_per_second", 5)
	v.SetDefault("indexer.graphql_url", "")

	v.SetDefault("purchase.api_url", "http://localhost:3002/api")
	v.SetDefault("purchase.auto_mint_test_usdc", false)
	v.SetDefault("purchase.test_mint_amount", "10000")
	v.SetDefault("purchase.max_balance_attempts", 3)
	v.SetDefault("purchase.allowance_poll_interval", "500ms")
	v.SetDefault("purchase.allowance_poll_timeout", "30s")

	v.SetDefault("identity.ttl", "30s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/app.log")
}
