package main

import (
	"flag"
	"testing"

	"github.com/blues/ideamarket/internal/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const testPrivateKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func testBuyer(t *testing.T, privateKey string) *buyer {
	return &buyer{loadConfig: func() (*config.Config, error) {
		cfg, err := config.LoadFrom(viper.New(), t.TempDir())
		if err != nil {
			return nil, err
		}
		cfg.Chain.PrivateKey = privateKey
		return cfg, nil
	}}
}

func TestRun_FailsWithoutSigner(t *testing.T) {
	b := testBuyer(t, "")
	err := newBuyerApp(b).Run([]string{"ideamarket-buyer", "whoami"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRIVATE_KEY")
	assert.Nil(t, b.chain)
	assert.Nil(t, b.wallet)
}

func TestLoad_WithSigner(t *testing.T) {
	b := testBuyer(t, testPrivateKey)
	app := newBuyerApp(b)
	c := cli.NewContext(app, flag.NewFlagSet("test", flag.ContinueOnError), nil)

	require.NoError(t, b.load(c))
	account, ok := b.chain.Account()
	assert.True(t, ok)
	assert.NotEqual(t, "0x0000000000000000000000000000000000000000", account.Hex())
	assert.NotNil(t, b.wallet)
	assert.NotNil(t, b.market)
}
