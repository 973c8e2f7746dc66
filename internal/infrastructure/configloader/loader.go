package configloader

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. KAIADEFI_SERVER_PORT.
const EnvPrefix = "KAIADEFI"

// ServerConfig holds server-specific configurations.
type ServerConfig struct {
	Port                string   `yaml:"port" envconfig:"PORT"`
	ReadTimeoutSeconds  int      `yaml:"readTimeoutSeconds" envconfig:"READ_TIMEOUT_SECONDS"`
	WriteTimeoutSeconds int      `yaml:"writeTimeoutSeconds" envconfig:"WRITE_TIMEOUT_SECONDS"`
	CORSAllowOrigins    []string `yaml:"corsAllowOrigins" envconfig:"CORS_ALLOW_ORIGINS"`
	SwaggerSpecPath     string   `yaml:"swaggerSpecPath" envconfig:"SWAGGER_SPEC_PATH"`
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// PerformanceConfig holds performance-related configurations.
type PerformanceConfig struct {
	MaxConcurrentRoutines int `yaml:"max_concurrent_routines" envconfig:"MAX_CONCURRENT_ROUTINES"`
	RPCCallTimeoutSeconds int `yaml:"rpc_call_timeout_seconds" envconfig:"RPC_CALL_TIMEOUT_SECONDS"`
}

// RPCConfig throttles node access per chain.
type RPCConfig struct {
	ConnectTimeoutSeconds int     `yaml:"connectTimeoutSeconds" envconfig:"CONNECT_TIMEOUT_SECONDS"`
	RateLimit             float64 `yaml:"rateLimit" envconfig:"RATE_LIMIT"`
	BurstLimit            int     `yaml:"burstLimit" envconfig:"BURST_LIMIT"`
}

// TxConfig controls transaction submission and confirmation.
type TxConfig struct {
	GasHeadroomPercent    int `yaml:"gasHeadroomPercent" envconfig:"GAS_HEADROOM_PERCENT"`
	ReceiptPollMillis     int `yaml:"receiptPollMillis" envconfig:"RECEIPT_POLL_MILLIS"`
	ConfirmTimeoutSeconds int `yaml:"confirmTimeoutSeconds" envconfig:"CONFIRM_TIMEOUT_SECONDS"`
}

// HistoryConfig bounds event log queries.
type HistoryConfig struct {
	BlockRange uint64 `yaml:"blockRange" envconfig:"BLOCK_RANGE"`
}

// WalletConfig describes where signing keys come from.
type WalletConfig struct {
	KeyFile        string   `yaml:"keyFile" envconfig:"KEY_FILE"`
	KeystoreDir    string   `yaml:"keystoreDir" envconfig:"KEYSTORE_DIR"`
	PassphraseEnv  string   `yaml:"passphraseEnv" envconfig:"PASSPHRASE_ENV"`
	PrivateKeys    []string `yaml:"-" envconfig:"PRIVATE_KEYS"`
	DefaultChainID uint64   `yaml:"defaultChainId" envconfig:"DEFAULT_CHAIN_ID"`
	PreAuthorized  bool     `yaml:"preAuthorized" envconfig:"PRE_AUTHORIZED"`
}

// DeploymentsConfig points at per-network JSON address overrides.
type DeploymentsConfig struct {
	Dir string `yaml:"dir" envconfig:"DIR"`
}

// SwapConfig holds swap form defaults.
type SwapConfig struct {
	DefaultFrom     string  `yaml:"defaultFrom" envconfig:"DEFAULT_FROM"`
	DefaultTo       string  `yaml:"defaultTo" envconfig:"DEFAULT_TO"`
	DefaultSlippage float64 `yaml:"defaultSlippage" envconfig:"DEFAULT_SLIPPAGE"`
	GasLimit        uint64  `yaml:"gasLimit" envconfig:"GAS_LIMIT"`
}

// LendingConfig holds borrow form defaults.
type LendingConfig struct {
	BorrowAPR             float64  `yaml:"borrowApr" envconfig:"BORROW_APR"`
	DefaultLiquidationLTV float64  `yaml:"defaultLiquidationLtv" envconfig:"DEFAULT_LIQUIDATION_LTV"`
	CollateralTokens      []string `yaml:"collateralTokens" envconfig:"COLLATERAL_TOKENS"`
	DefaultCollateral     string   `yaml:"defaultCollateral" envconfig:"DEFAULT_COLLATERAL"`
	DefaultBorrow         string   `yaml:"defaultBorrow" envconfig:"DEFAULT_BORROW"`
}

// DEXScreenerConfig holds DEXScreener API specific configurations.
type DEXScreenerConfig struct {
	BaseURL              string `yaml:"baseURL" envconfig:"BASE_URL"`
	RequestTimeoutMillis int64  `yaml:"requestTimeoutMillis" envconfig:"REQUEST_TIMEOUT_MILLIS"`
	Enabled              bool   `yaml:"enabled" envconfig:"ENABLED"`
}

// PriceSource maps a symbol to the address DEXScreener prices it under.
type PriceSource struct {
	Symbol  string `yaml:"symbol"`
	ChainID string `yaml:"dexScreenerChainId"`
	Address string `yaml:"address"`
}

// TokenPriceServiceConfig holds configuration for the price service.
type TokenPriceServiceConfig struct {
	MaxTokensPerBatchRequest int                `yaml:"maxTokensPerBatchRequest" envconfig:"MAX_TOKENS_PER_BATCH_REQUEST"`
	CacheTTLMinutes          int                `yaml:"cacheTTLMinutes" envconfig:"CACHE_TTL_MINUTES"`
	RefreshIntervalMinutes   int                `yaml:"refreshIntervalMinutes" envconfig:"REFRESH_INTERVAL_MINUTES"`
	Stablecoins              []string           `yaml:"stablecoins" envconfig:"STABLECOINS"`
	StaticPrices             map[string]float64 `yaml:"staticPrices" envconfig:"STATIC_PRICES"`
	Sources                  []PriceSource      `yaml:"sources" ignored:"true"`
}

// NetworkNodeConfig overrides the RPC endpoints of a built-in network.
type NetworkNodeConfig struct {
	Identifier      string   `yaml:"identifier"`
	RPCURL          string   `yaml:"rpcURL"`
	FallbackRPCURLs []string `yaml:"fallbackRpcURLs"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server        ServerConfig            `yaml:"server" envconfig:"SERVER"`
	Logging       LoggingConfig           `yaml:"logging" envconfig:"LOGGING"`
	Performance   PerformanceConfig       `yaml:"performance" envconfig:"PERFORMANCE"`
	RPC           RPCConfig               `yaml:"rpc" envconfig:"RPC"`
	Tx            TxConfig                `yaml:"tx" envconfig:"TX"`
	History       HistoryConfig           `yaml:"history" envconfig:"HISTORY"`
	Wallet        WalletConfig            `yaml:"wallet" envconfig:"WALLET"`
	Deployments   DeploymentsConfig       `yaml:"deployments" envconfig:"DEPLOYMENTS"`
	Swap          SwapConfig              `yaml:"swap" envconfig:"SWAP"`
	Lending       LendingConfig           `yaml:"lending" envconfig:"LENDING"`
	DisplayTokens []string                `yaml:"displayTokens" envconfig:"DISPLAY_TOKENS"`
	DEXScreener   DEXScreenerConfig       `yaml:"dexScreener" envconfig:"DEXSCREENER"`
	TokenPriceSvc TokenPriceServiceConfig `yaml:"tokenPriceService" envconfig:"TOKEN_PRICE_SERVICE"`
	Networks      []NetworkNodeConfig     `yaml:"networks" ignored:"true"`
}

// Load reads the YAML configuration file, overlays KAIADEFI_* environment
// variables and fills defaults. A missing file is not an error: the
// defaults describe a usable Kairos setup.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		logrus.Infof("Loading configuration from path: %s", path)
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
		}
	case os.IsNotExist(err):
		logrus.Warnf("Config file %s not found, using defaults", path)
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply %s_* environment overrides: %w", EnvPrefix, err)
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}

	logrus.Info("Configuration loaded successfully.")
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.ReadTimeoutSeconds <= 0 {
		cfg.Server.ReadTimeoutSeconds = 15
	}
	if cfg.Server.WriteTimeoutSeconds <= 0 {
		// Writes include waiting for two receipts.
		cfg.Server.WriteTimeoutSeconds = 180
	}
	if cfg.Server.SwaggerSpecPath == "" {
		cfg.Server.SwaggerSpecPath = "./docs/swagger.yaml"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.Performance.MaxConcurrentRoutines <= 0 {
		cfg.Performance.MaxConcurrentRoutines = 10
	}
	if cfg.Performance.RPCCallTimeoutSeconds <= 0 {
		cfg.Performance.RPCCallTimeoutSeconds = 10
	}
	if cfg.RPC.ConnectTimeoutSeconds <= 0 {
		cfg.RPC.ConnectTimeoutSeconds = 10
	}
	if cfg.RPC.RateLimit <= 0 {
		cfg.RPC.RateLimit = 20
	}
	if cfg.RPC.BurstLimit <= 0 {
		cfg.RPC.BurstLimit = 40
	}

	if cfg.Tx.GasHeadroomPercent <= 0 {
		cfg.Tx.GasHeadroomPercent = 20
	}
	if cfg.Tx.ReceiptPollMillis <= 0 {
		cfg.Tx.ReceiptPollMillis = 1000
	}
	if cfg.Tx.ConfirmTimeoutSeconds <= 0 {
		cfg.Tx.ConfirmTimeoutSeconds = 120
	}
	if cfg.History.BlockRange == 0 {
		cfg.History.BlockRange = 10000
	}

	if cfg.Wallet.DefaultChainID == 0 {
		cfg.Wallet.DefaultChainID = 1001
	}
	if cfg.Wallet.PassphraseEnv == "" {
		cfg.Wallet.PassphraseEnv = EnvPrefix + "_KEYSTORE_PASSPHRASE"
	}
	if cfg.Deployments.Dir == "" {
		cfg.Deployments.Dir = "data/deployments"
	}

	if cfg.Swap.DefaultFrom == "" {
		cfg.Swap.DefaultFrom = "KAIA"
	}
	if cfg.Swap.DefaultTo == "" {
		cfg.Swap.DefaultTo = "KUSD"
	}
	if cfg.Swap.DefaultSlippage <= 0 {
		cfg.Swap.DefaultSlippage = 0.5
	}
	if cfg.Swap.GasLimit == 0 {
		cfg.Swap.GasLimit = 250000
	}

	if cfg.Lending.BorrowAPR <= 0 {
		cfg.Lending.BorrowAPR = 3.2
	}
	if cfg.Lending.DefaultLiquidationLTV <= 0 {
		cfg.Lending.DefaultLiquidationLTV = 90
	}
	if len(cfg.Lending.CollateralTokens) == 0 {
		cfg.Lending.CollateralTokens = []string{"KAIA", "WKAIA", "KUSD", "stKAIA"}
	}
	if cfg.Lending.DefaultCollateral == "" {
		cfg.Lending.DefaultCollateral = "KAIA"
	}
	if cfg.Lending.DefaultBorrow == "" {
		cfg.Lending.DefaultBorrow = "KUSD"
	}
	if len(cfg.DisplayTokens) == 0 {
		cfg.DisplayTokens = []string{"KAIA", "KUSD", "WKAIA"}
	}

	if cfg.DEXScreener.BaseURL == "" {
		cfg.DEXScreener.BaseURL = "https://api.dexscreener.com"
		logrus.Infof("DEXScreener.BaseURL not set, defaulting to %s", cfg.DEXScreener.BaseURL)
	}
	if cfg.DEXScreener.RequestTimeoutMillis <= 0 {
		cfg.DEXScreener.RequestTimeoutMillis = 10000
	}
	if cfg.TokenPriceSvc.MaxTokensPerBatchRequest <= 0 {
		cfg.TokenPriceSvc.MaxTokensPerBatchRequest = 30
	}
	if cfg.TokenPriceSvc.CacheTTLMinutes <= 0 {
		cfg.TokenPriceSvc.CacheTTLMinutes = 60
	}
	if cfg.TokenPriceSvc.RefreshIntervalMinutes <= 0 {
		cfg.TokenPriceSvc.RefreshIntervalMinutes = 15
	}
	if len(cfg.TokenPriceSvc.Stablecoins) == 0 {
		cfg.TokenPriceSvc.Stablecoins = []string{"KUSD", "USDT", "USDC"}
	}
	if cfg.TokenPriceSvc.StaticPrices == nil {
		cfg.TokenPriceSvc.StaticPrices = map[string]float64{}
	}
}

func validate(cfg *Config) error {
	if cfg.Swap.DefaultSlippage > 50 {
		return fmt.Errorf("swap.defaultSlippage %.2f is above 50%%", cfg.Swap.DefaultSlippage)
	}
	if cfg.Lending.DefaultLiquidationLTV > 100 {
		return fmt.Errorf("lending.defaultLiquidationLtv %.2f is above 100", cfg.Lending.DefaultLiquidationLTV)
	}
	for i, n := range cfg.Networks {
		if strings.TrimSpace(n.Identifier) == "" {
			return fmt.Errorf("networks[%d]: identifier is required", i)
		}
	}
	for i, src := range cfg.TokenPriceSvc.Sources {
		if src.Symbol == "" || src.ChainID == "" || src.Address == "" {
			logrus.Warnf("tokenPriceService.sources[%d] is incomplete and will be ignored", i)
		}
	}
	return nil
}
