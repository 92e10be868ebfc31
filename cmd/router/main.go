package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"liquidityRouter/internal/alloc"
	"liquidityRouter/internal/chain"
	"liquidityRouter/internal/config"
	"liquidityRouter/internal/journal"
	"liquidityRouter/internal/journal/postgres"
	"liquidityRouter/internal/oracle"
	"liquidityRouter/internal/position"
	"liquidityRouter/internal/route"
	"liquidityRouter/internal/swap"
	"liquidityRouter/internal/venue"
)

func main() {
	root := &cobra.Command{
		Use:          "router",
		Short:        "Open and close concentrated-liquidity positions from base-asset funding",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	openCmd := &cobra.Command{
		Use:   "open",
		Short: "Open a position over a tick range",
		RunE:  runOpen,
	}
	addCommonFlags(openCmd)
	openCmd.Flags().String("pool", "", "pool address")
	openCmd.Flags().Int32("tick-lower", 0, "lower tick of the range")
	openCmd.Flags().Int32("tick-upper", 0, "upper tick of the range")
	openCmd.Flags().String("funding", "", "funding amount in base asset units")
	root.AddCommand(openCmd)

	closeCmd := &cobra.Command{
		Use:   "close",
		Short: "Unwind a position back to the base asset",
		RunE:  runClose,
	}
	addCommonFlags(closeCmd)
	closeCmd.Flags().String("pool", "", "pool address")
	closeCmd.Flags().String("position-id", "", "position id to close")
	closeCmd.Flags().String("liquidity", "", "liquidity to withdraw")
	closeCmd.Flags().String("min-out", "0", "minimum acceptable base asset proceeds")
	root.AddCommand(closeCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "RPC URL")
	cmd.Flags().String("factory", "", "pool factory address")
	cmd.Flags().String("quoter", "", "quoter address")
	cmd.Flags().String("swap-router", "", "swap router address")
	cmd.Flags().String("position-manager", "", "position manager address")
	cmd.Flags().String("rate-oracle", "", "rate oracle address")
	cmd.Flags().String("access-registry", "", "access registry address")
	cmd.Flags().String("base-asset", "", "base asset address")
	cmd.Flags().Uint("base-decimals", 6, "base asset decimal precision")
	cmd.Flags().StringSlice("bridges", nil, "bridge asset addresses (comma-separated)")
	cmd.Flags().StringSlice("feeds", nil, "price feeds as asset=feed (comma-separated)")
	cmd.Flags().StringSlice("tick-spacings", []string{"10", "60", "200"}, "pool tick spacings to probe, in order")
	cmd.Flags().Duration("pool-cache-ttl", time.Hour, "pool discovery cache TTL")
	cmd.Flags().Duration("oracle-staleness", time.Hour, "maximum accepted feed age")
	cmd.Flags().Uint("slippage-bps", 100, "slippage tolerance in basis points")
	cmd.Flags().Duration("deadline", 5*time.Minute, "operation deadline")
	cmd.Flags().String("journal", "./data/operations.jsonl", "operation journal JSONL path")
	cmd.Flags().String("pg-dsn", "", "optional Postgres DSN for the journal")
	cmd.Flags().String("operator-key", "", "operator private key (hex)")
	cmd.Flags().String("on-behalf-of", "", "position owner, defaults to the operator")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts for read calls")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func runOpen(cmd *cobra.Command, _ []string) error {
	ctx, coord, logger, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	pool, err := parseAddress(cmd, "pool")
	if err != nil {
		return err
	}
	funding, err := parseBig(cmd, "funding")
	if err != nil {
		return err
	}
	tickLower, _ := cmd.Flags().GetInt32("tick-lower")
	tickUpper, _ := cmd.Flags().GetInt32("tick-upper")
	slippage, _ := cmd.Flags().GetUint("slippage-bps")
	deadline, _ := cmd.Flags().GetDuration("deadline")
	owner, err := optionalAddress(cmd, "on-behalf-of")
	if err != nil {
		return err
	}

	result, err := coord.Open(ctx, position.OpenRequest{
		Pool:        pool,
		TickLower:   tickLower,
		TickUpper:   tickUpper,
		Funding:     funding,
		SlippageBps: uint32(slippage),
		Deadline:    time.Now().Add(deadline),
		OnBehalfOf:  owner,
	})
	if err != nil {
		return err
	}

	logger.Info("open complete",
		zap.String("position_id", result.PositionID.String()),
		zap.String("liquidity", result.Liquidity.String()),
		zap.String("amount0", result.Amount0.String()),
		zap.String("amount1", result.Amount1.String()),
	)
	fmt.Printf("position %s opened with liquidity %s\n", result.PositionID, result.Liquidity)
	return nil
}

func runClose(cmd *cobra.Command, _ []string) error {
	ctx, coord, logger, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	pool, err := parseAddress(cmd, "pool")
	if err != nil {
		return err
	}
	positionID, err := parseBig(cmd, "position-id")
	if err != nil {
		return err
	}
	liquidity, err := parseBig(cmd, "liquidity")
	if err != nil {
		return err
	}
	minOut, err := parseBig(cmd, "min-out")
	if err != nil {
		return err
	}
	slippage, _ := cmd.Flags().GetUint("slippage-bps")
	deadline, _ := cmd.Flags().GetDuration("deadline")
	owner, err := optionalAddress(cmd, "on-behalf-of")
	if err != nil {
		return err
	}

	result, err := coord.Close(ctx, position.CloseRequest{
		PositionID:  positionID,
		Pool:        pool,
		Liquidity:   liquidity,
		MinOut:      minOut,
		SlippageBps: uint32(slippage),
		Deadline:    time.Now().Add(deadline),
		OnBehalfOf:  owner,
	})
	if err != nil {
		return err
	}

	logger.Info("close complete",
		zap.String("position_id", positionID.String()),
		zap.String("amount_out", result.AmountOut.String()),
	)
	fmt.Printf("position %s closed for %s base asset units\n", positionID, result.AmountOut)
	return nil
}

// setup loads config, connects the chain client and wires the coordinator.
func setup(cmd *cobra.Command) (context.Context, *position.Coordinator, *zap.Logger, func(), error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cleanups := []func(){stop, func() { logger.Sync() }}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	client, err := chain.NewClient(ctx, cfg.RPCURL, cfg.MaxRetries, cfg.RetryBackoff)
	if err != nil {
		cleanup()
		return nil, nil, nil, nil, fmt.Errorf("connect rpc: %w", err)
	}
	cleanups = append(cleanups, client.Close)

	chainID, err := client.GetChainID(ctx)
	if err != nil {
		cleanup()
		return nil, nil, nil, nil, fmt.Errorf("chain id: %w", err)
	}

	key, err := crypto.HexToECDSA(cfg.OperatorKey)
	if err != nil {
		cleanup()
		return nil, nil, nil, nil, fmt.Errorf("operator key: %w", err)
	}
	transactor, err := venue.NewTransactor(client, key, chainID)
	if err != nil {
		cleanup()
		return nil, nil, nil, nil, err
	}

	baseAsset := common.HexToAddress(cfg.BaseAsset)
	bridges := make([]common.Address, 0, len(cfg.Bridges))
	for _, bridge := range cfg.Bridges {
		bridges = append(bridges, common.HexToAddress(bridge))
	}

	pools := venue.NewOnChainPoolReader(client)
	tokens := venue.NewTokenReader(client)
	factory := venue.NewOnChainFactory(client, common.HexToAddress(cfg.Factory))
	quoter := venue.NewOnChainQuoter(client, common.HexToAddress(cfg.Quoter))
	router := venue.NewOnChainRouter(transactor, common.HexToAddress(cfg.SwapRouter))
	positions := venue.NewOnChainPositionManager(transactor, common.HexToAddress(cfg.PositionManager))

	feedPairs, err := cfg.FeedPairs()
	if err != nil {
		cleanup()
		return nil, nil, nil, nil, err
	}
	feeds := make(map[common.Address]common.Address, len(feedPairs))
	for _, pair := range feedPairs {
		feeds[common.HexToAddress(pair[0])] = common.HexToAddress(pair[1])
	}

	sources := make([]oracle.PriceSource, 0, 2)
	if len(feeds) > 0 {
		sources = append(sources, oracle.NewFeedSource(feeds, venue.NewOnChainPriceFeed(client), cfg.OracleStaleness))
	}
	if cfg.RateOracle != "" {
		rates := venue.NewOnChainRateOracle(client, common.HexToAddress(cfg.RateOracle))
		sources = append(sources, oracle.NewBridgeSource(rates, tokens, baseAsset, cfg.BaseDecimals, bridges, logger))
	}
	aggregator := oracle.NewAggregator(baseAsset, sources, logger)

	locator := route.NewLocator(factory, pools, route.LocatorConfig{
		TickSpacings: cfg.TickSpacings,
		CacheTTL:     cfg.PoolCacheTTL,
	}, logger)
	finder := route.NewFinder(locator, bridges, logger)
	calculator := alloc.NewCalculator(aggregator, tokens, cfg.BaseDecimals, logger)
	executor := swap.NewExecutor(quoter, router, tokens, transactor.Sender(), logger)

	var recorder journal.Recorder = journal.NewJsonlRecorder(cfg.JournalPath)
	if cfg.PostgresDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			cleanup()
			return nil, nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		cleanups = append(cleanups, store.Close)
		recorder = store
	}

	var access venue.AccessRegistry
	if cfg.AccessRegistry != "" {
		access = venue.NewOnChainAccessRegistry(client, common.HexToAddress(cfg.AccessRegistry))
	}

	coord := position.NewCoordinator(position.Config{
		Pools:     pools,
		Access:    access,
		Positions: positions,
		Finder:    finder,
		Alloc:     calculator,
		Swapper:   executor,
		Journal:   recorder,
		BaseAsset: baseAsset,
		Operator:  transactor.Sender(),
		Deadline:  cfg.Deadline,
	}, logger)

	return ctx, coord, logger, cleanup, nil
}

func parseAddress(cmd *cobra.Command, flag string) (common.Address, error) {
	value, _ := cmd.Flags().GetString(flag)
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s: %q is not a valid address", flag, value)
	}
	return common.HexToAddress(value), nil
}

func optionalAddress(cmd *cobra.Command, flag string) (common.Address, error) {
	value, _ := cmd.Flags().GetString(flag)
	if value == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s: %q is not a valid address", flag, value)
	}
	return common.HexToAddress(value), nil
}

func parseBig(cmd *cobra.Command, flag string) (*big.Int, error) {
	value, _ := cmd.Flags().GetString(flag)
	if value == "" {
		return nil, fmt.Errorf("%s is required", flag)
	}
	n, ok := new(big.Int).SetString(value, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("%s: %q is not a valid amount", flag, value)
	}
	return n, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
