package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// USDCMainnetMint is the canonical USDC mint on mainnet-beta.
const USDCMainnetMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

// Simulation policies for the pre-flight simulation run by the checkout builder.
const (
	SimulationPermissive = "permissive"
	SimulationStrict     = "strict"
	SimulationOff        = "off"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr    string
	LogLevel      string
	PublicBaseURL string

	// Solana configuration
	RPCURL         string
	ShopPrivateKey string
	USDCMint       string

	// NFT pass configuration
	NFTPrice       decimal.Decimal
	NFTMetadataURI string
	NFTName        string
	NFTSymbol      string

	// Wallet UI description returned by GET /api/nft-pass/checkout
	CheckoutLabel string
	CheckoutIcon  string

	SimulationPolicy string
	RequestTimeout   time.Duration

	// Optional collaborators. Empty means disabled.
	DatabaseURL string
	NATSURL     string

	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string

	// Confirmation tracking
	ConfirmPollInterval time.Duration
	ConfirmMaxPolls     int
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
// The error never includes the value of SHOP_PRIVATE_KEY.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.PublicBaseURL = strings.TrimRight(getEnvOrDefault("PUBLIC_BASE_URL", "http://localhost:8080"), "/")

	// Solana configuration
	cfg.RPCURL = os.Getenv("HELIUS_URL")
	if cfg.RPCURL == "" {
		errs = append(errs, fmt.Errorf("HELIUS_URL is required"))
	}

	cfg.ShopPrivateKey = os.Getenv("SHOP_PRIVATE_KEY")
	if cfg.ShopPrivateKey == "" {
		errs = append(errs, fmt.Errorf("SHOP_PRIVATE_KEY is required"))
	}

	cfg.USDCMint = getEnvOrDefault("USDC_MINT_ADDRESS", USDCMainnetMint)

	// NFT pass configuration
	price, err := parseDecimal("NEXT_PUBLIC_NFT_PRICE", "1")
	if err != nil {
		errs = append(errs, err)
	} else if !price.IsPositive() {
		errs = append(errs, fmt.Errorf("NEXT_PUBLIC_NFT_PRICE must be positive, got %s", price))
	} else {
		cfg.NFTPrice = price
	}

	cfg.NFTMetadataURI = os.Getenv("NEXT_PUBLIC_NFT_METADATA_URI")
	if cfg.NFTMetadataURI == "" {
		errs = append(errs, fmt.Errorf("NEXT_PUBLIC_NFT_METADATA_URI is required"))
	}
	cfg.NFTName = getEnvOrDefault("NFT_NAME", "NFT Pass")
	cfg.NFTSymbol = getEnvOrDefault("NFT_SYMBOL", "PASS")

	cfg.CheckoutLabel = getEnvOrDefault("CHECKOUT_LABEL", "NFT Pass")
	cfg.CheckoutIcon = getEnvOrDefault("CHECKOUT_ICON", cfg.PublicBaseURL+"/icon.png")

	cfg.SimulationPolicy = getEnvOrDefault("SIMULATION_POLICY", SimulationPermissive)
	if err := validateSimulationPolicy(cfg.SimulationPolicy); err != nil {
		errs = append(errs, err)
	}

	timeout, err := parseDuration("REQUEST_TIMEOUT", "20s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RequestTimeout = timeout
	}

	// Optional collaborators
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")

	// Temporal configuration
	cfg.TemporalHost = os.Getenv("TEMPORAL_HOST")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "nftpass-purchases")

	pollInterval, err := parseDuration("CONFIRM_POLL_INTERVAL", "5s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmPollInterval = pollInterval
	}

	maxPolls, err := parseInt("CONFIRM_MAX_POLLS", 60)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmMaxPolls = maxPolls
	}

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.RPCURL == "" {
		errs = append(errs, fmt.Errorf("RPCURL is required"))
	}

	if c.ShopPrivateKey == "" {
		errs = append(errs, fmt.Errorf("ShopPrivateKey is required"))
	}

	if c.USDCMint == "" {
		errs = append(errs, fmt.Errorf("USDCMint is required"))
	}

	if !c.NFTPrice.IsPositive() {
		errs = append(errs, fmt.Errorf("NFTPrice must be positive"))
	}

	if c.NFTMetadataURI == "" {
		errs = append(errs, fmt.Errorf("NFTMetadataURI is required"))
	}

	if err := validateSimulationPolicy(c.SimulationPolicy); err != nil {
		errs = append(errs, err)
	}

	if c.TemporalHost != "" && c.TemporalTaskQueue == "" {
		errs = append(errs, fmt.Errorf("TemporalTaskQueue is required when TemporalHost is set"))
	}

	if c.ConfirmPollInterval < time.Second {
		errs = append(errs, fmt.Errorf("ConfirmPollInterval must be at least 1 second"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// CheckoutURL is the absolute URL of the checkout endpoint, used in payment request links.
func (c *Config) CheckoutURL() string {
	return c.PublicBaseURL + "/api/nft-pass/checkout"
}

func validateSimulationPolicy(policy string) error {
	switch policy {
	case SimulationPermissive, SimulationStrict, SimulationOff:
		return nil
	default:
		return fmt.Errorf("SIMULATION_POLICY: invalid value %q: must be one of %s, %s, %s",
			policy, SimulationPermissive, SimulationStrict, SimulationOff)
	}
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

// parseDecimal parses a decimal amount from an environment variable or uses a default.
func parseDecimal(key, defaultValue string) (decimal.Decimal, error) {
	value := getEnvOrDefault(key, defaultValue)
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid decimal %q: %w", key, value, err)
	}
	return d, nil
}
