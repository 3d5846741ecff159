package chain

import (
	"github.com/blues/ideamarket/internal/config"
)

// 测试专用私钥
const testPrivateKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func testChainConfig() config.ChainConfig {
	contracts := make(map[string]config.ContractConfig)
	for name, c := range config.DefaultContracts {
		contracts[name] = c
	}
	return config.ChainConfig{
		ChainId:    config.LiskSepoliaChainID,
		RpcUrl:     "http://127.0.0.1:1",
		PrivateKey: testPrivateKey,
		Contracts:  contracts,
	}
}
