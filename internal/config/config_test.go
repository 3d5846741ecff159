package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(viper.New(), t.TempDir())
	require.NoError(t, err)

	assert.EqualValues(t, LiskSepoliaChainID, cfg.Chain.ChainId)
	assert.Equal(t, 2*time.Second, cfg.Chain.RpcTimeout)
	assert.Equal(t, 30*time.Second, cfg.Identity.TTL)
	assert.False(t, cfg.Purchase.AutoMintTestUSDC)
	assert.Equal(t, 3, cfg.Purchase.MaxBalanceAttempts)

	nft, ok := cfg.Chain.Contract(ContractSuperheroNFT)
	require.True(t, ok)
	assert.Equal(t, "0xd8EcF5D6D77bF2852c5e9313F87f31cc99c38dE9", nft.Address)
	assert.EqualValues(t, 23451474, nft.BlockNum)
}

func TestLoadFrom_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
server:
  port: "9000"
purchase:
  auto_mint_test_usdc: true
chain:
  fallback_rpc_urls:
    - https://a.example
    - https://b.example
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))
	t.Setenv("PRIVATE_KEY", "0xabc")
	t.Setenv("RPC_URL", "https://primary.example")

	cfg, err := LoadFrom(viper.New(), dir)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.True(t, cfg.Purchase.AutoMintTestUSDC)
	assert.Equal(t, "0xabc", cfg.Chain.PrivateKey)
	assert.Equal(t,
		[]string{"https://primary.example", "https://a.example", "https://b.example"},
		cfg.Chain.AllRpcUrls())
}

func TestValidate_MissingSigner(t *testing.T) {
	cfg, err := LoadFrom(viper.New(), t.TempDir())
	require.NoError(t, err)
	cfg.Chain.PrivateKey = ""

	assert.Error(t, cfg.Validate(true))
	assert.NoError(t, cfg.Validate(false))
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "ideas", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=ideas sslmode=disable", d.DSN())

	d.URL = "postgres://u:p@db/ideas"
	assert.Equal(t, "postgres://u:p@db/ideas", d.DSN())
}
