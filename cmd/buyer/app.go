package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/blues/ideamarket/internal/apiclient"
	"github.com/blues/ideamarket/internal/chain"
	"github.com/blues/ideamarket/internal/config"
	"github.com/blues/ideamarket/internal/identity"
	"github.com/blues/ideamarket/internal/logger"
	"github.com/blues/ideamarket/internal/purchase"
	"github.com/blues/ideamarket/internal/session"
	"github.com/urfave/cli/v2"
)

// buyer 命令行买家客户端
type buyer struct {
	loadConfig func() (*config.Config, error)

	cfg    *config.Config
	api    *apiclient.Client
	chain  *chain.Manager
	market *session.Market
	wallet *session.Wallet
}

func newApp() *cli.App {
	return newBuyerApp(&buyer{loadConfig: config.LoadDefault})
}

func newBuyerApp(b *buyer) *cli.App {
	app := cli.NewApp()
	app.Name = "ideamarket-buyer"
	app.Usage = "Browse and buy ideas on the marketplace"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "api",
			Usage:   "marketplace API base URL",
			EnvVars: []string{"IDEAMARKET_API_URL"},
		},
		&cli.BoolFlag{
			Name:  "auto-mint",
			Usage: "mint test USDC when the wallet balance is zero (testnet only)",
		},
	}
	app.Before = b.load
	app.Commands = []*cli.Command{
		{
			Action: b.listings,
			Name:   "listings",
			Usage:  "List marketplace ideas",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "available", Usage: "only unsold ideas"},
			},
			Category: "Market",
		},
		{
			Action:      b.buy,
			Name:        "buy",
			Usage:       "Buy an idea and print its content",
			ArgsUsage:   "<ideaId>",
			Category:    "Market",
			Description: `Checks balance and allowance, approves USDC when needed, buys the idea and retrieves its content.`,
		},
		{
			Action:   b.whoami,
			Name:     "whoami",
			Usage:    "Show the connected account, balances and superhero identity",
			Category: "Wallet",
		},
	}
	return app
}

// load 买家需要签名，缺少私钥时直接失败
func (b *buyer) load(c *cli.Context) error {
	cfg, err := b.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	b.cfg = cfg
	logger.Init(b.cfg.Log)
	if err := b.cfg.Validate(true); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	apiURL := b.cfg.Purchase.APIURL
	if v := c.String("api"); v != "" {
		apiURL = v
	}
	if c.Bool("auto-mint") {
		b.cfg.Purchase.AutoMintTestUSDC = true
	}

	b.chain, err = chain.NewManager(b.cfg.Chain)
	if err != nil {
		return fmt.Errorf("init chain: %w", err)
	}
	b.api = apiclient.New(apiURL, &http.Client{Timeout: 30 * time.Second})
	b.market = session.NewMarket(b.api)
	identities := identity.NewCache(identity.NewAPIResolver(b.api), b.cfg.Identity.TTL)
	b.wallet = session.NewWallet(b.chain, identities)
	return nil
}

func (b *buyer) listings(c *cli.Context) error {
	ctx := c.Context
	if err := b.market.Load(ctx); err != nil {
		return fmt.Errorf("load listings: %w", err)
	}
	items := b.market.All()
	if c.Bool("available") {
		items = b.market.Purchasable()
	}
	return printJSON(items)
}

func (b *buyer) buy(c *cli.Context) error {
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("usage: buy <ideaId>")
	}

	ctx := c.Context
	if err := b.wallet.Connect(ctx); err != nil {
		return fmt.Errorf("connect wallet: %w", err)
	}
	if err := b.market.Load(ctx); err != nil {
		return fmt.Errorf("load listings: %w", err)
	}

	orchestrator := purchase.NewOrchestrator(b.chain, b.api, b.market, b.wallet, b.cfg.Purchase)
	result, err := orchestrator.Buy(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func (b *buyer) whoami(c *cli.Context) error {
	ctx, cancel := context.WithTimeout(c.Context, 30*time.Second)
	defer cancel()

	if err := b.wallet.Connect(ctx); err != nil {
		return fmt.Errorf("connect wallet: %w", err)
	}
	address, _ := b.wallet.Address()
	balances := b.wallet.Balances()
	out := map[string]interface{}{
		"address": address.Hex(),
		"native":  chain.FormatEther(balances.Native),
		"usdc":    chain.FormatUSDC(balances.USDC),
	}
	id, err := b.wallet.Identity(ctx)
	if err != nil {
		logger.Warn("Identity lookup failed: %v", err)
	}
	if id != nil {
		out["superhero"] = id
	}
	return printJSON(out)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
