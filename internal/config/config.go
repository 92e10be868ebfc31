package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL string

	Factory         string
	Quoter          string
	SwapRouter      string
	PositionManager string
	RateOracle      string
	AccessRegistry  string

	BaseAsset    string
	BaseDecimals uint8
	Bridges      []string
	// Feeds maps assets to trusted price feeds, entries as "asset=feed".
	Feeds []string

	TickSpacings    []int32
	PoolCacheTTL    time.Duration
	OracleStaleness time.Duration
	SlippageBps     uint32
	Deadline        time.Duration

	JournalPath string
	PostgresDSN string

	OperatorKey  string
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ROUTER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("base-decimals", 6)
	v.SetDefault("tick-spacings", []string{"10", "60", "200"})
	v.SetDefault("pool-cache-ttl", time.Hour)
	v.SetDefault("oracle-staleness", time.Hour)
	v.SetDefault("slippage-bps", 100)
	v.SetDefault("deadline", 5*time.Minute)
	v.SetDefault("journal", "./data/operations.jsonl")
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	spacings, err := parseTickSpacings(getStringSlice(v, "tick-spacings"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		RPCURL:          v.GetString("rpc"),
		Factory:         v.GetString("factory"),
		Quoter:          v.GetString("quoter"),
		SwapRouter:      v.GetString("swap-router"),
		PositionManager: v.GetString("position-manager"),
		RateOracle:      v.GetString("rate-oracle"),
		AccessRegistry:  v.GetString("access-registry"),
		BaseAsset:       v.GetString("base-asset"),
		BaseDecimals:    uint8(v.GetUint("base-decimals")),
		Bridges:         getStringSlice(v, "bridges"),
		Feeds:           getStringSlice(v, "feeds"),
		TickSpacings:    spacings,
		PoolCacheTTL:    v.GetDuration("pool-cache-ttl"),
		OracleStaleness: v.GetDuration("oracle-staleness"),
		SlippageBps:     uint32(v.GetUint("slippage-bps")),
		Deadline:        v.GetDuration("deadline"),
		JournalPath:     v.GetString("journal"),
		PostgresDSN:     v.GetString("pg-dsn"),
		OperatorKey:     v.GetString("operator-key"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate checks the fields every command needs.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if c.BaseAsset == "" {
		return fmt.Errorf("base asset address is required")
	}
	if c.Factory == "" || c.SwapRouter == "" || c.PositionManager == "" {
		return fmt.Errorf("factory, swap-router and position-manager addresses are required")
	}
	if len(c.TickSpacings) == 0 {
		return fmt.Errorf("at least one tick spacing is required")
	}
	return nil
}

// FeedPairs splits "asset=feed" entries into pairs.
func (c Config) FeedPairs() ([][2]string, error) {
	pairs := make([][2]string, 0, len(c.Feeds))
	for _, entry := range c.Feeds {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("feed entry %q: want asset=feed", entry)
		}
		pairs = append(pairs, [2]string{strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])})
	}
	return pairs, nil
}

func parseTickSpacings(items []string) ([]int32, error) {
	spacings := make([]int32, 0, len(items))
	for _, item := range items {
		n, err := strconv.ParseInt(item, 10, 32)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("tick spacing %q: want a positive integer", item)
		}
		spacings = append(spacings, int32(n))
	}
	return spacings, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
