package config

import (
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testShopKey = "4Z7cXSyeFR8wNGMVXUE1TwtKn5D5Vu7FzEv69dokLv7KrQk7h6pu4LF8ZRR9yQBhc7uSM6RTTZtU1fmaxiNrxXrs"

func setRequiredEnv() {
	os.Setenv("HELIUS_URL", "https://mainnet.helius-rpc.com/?api-key=test")
	os.Setenv("SHOP_PRIVATE_KEY", testShopKey)
	os.Setenv("NEXT_PUBLIC_NFT_METADATA_URI", "https://example.com/pass.json")
}

func TestLoad_ValidConfig(t *testing.T) {
	setRequiredEnv()
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "https://mainnet.helius-rpc.com/?api-key=test", cfg.RPCURL)
	assert.Equal(t, ":8080", cfg.ServerAddr) // Default
	assert.Equal(t, "info", cfg.LogLevel)    // Default
	assert.Equal(t, USDCMainnetMint, cfg.USDCMint)
	assert.True(t, decimal.NewFromInt(1).Equal(cfg.NFTPrice))
	assert.Equal(t, SimulationPermissive, cfg.SimulationPolicy)
	assert.Equal(t, 5*time.Second, cfg.ConfirmPollInterval)
	assert.Equal(t, 60, cfg.ConfirmMaxPolls)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.TemporalHost)
}

func TestLoad_MissingShopPrivateKey(t *testing.T) {
	os.Setenv("HELIUS_URL", "https://mainnet.helius-rpc.com")
	os.Setenv("NEXT_PUBLIC_NFT_METADATA_URI", "https://example.com/pass.json")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "SHOP_PRIVATE_KEY is required")
}

func TestLoad_MissingRPCURL(t *testing.T) {
	os.Setenv("SHOP_PRIVATE_KEY", testShopKey)
	os.Setenv("NEXT_PUBLIC_NFT_METADATA_URI", "https://example.com/pass.json")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "HELIUS_URL is required")
}

func TestLoad_ErrorDoesNotLeakKey(t *testing.T) {
	setRequiredEnv()
	os.Setenv("NEXT_PUBLIC_NFT_PRICE", "not-a-number")
	defer cleanupEnv()

	_, err := Load()
	require.Error(t, err)
	assert.NotContains(t, err.Error(), testShopKey)
}

func TestLoad_InvalidPrice(t *testing.T) {
	tests := []struct {
		name  string
		price string
		want  string
	}{
		{name: "not a number", price: "abc", want: "invalid decimal"},
		{name: "zero", price: "0", want: "must be positive"},
		{name: "negative", price: "-2.5", want: "must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv()
			os.Setenv("NEXT_PUBLIC_NFT_PRICE", tt.price)
			defer cleanupEnv()

			cfg, err := Load()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_InvalidSimulationPolicy(t *testing.T) {
	setRequiredEnv()
	os.Setenv("SIMULATION_POLICY", "sometimes")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "SIMULATION_POLICY")
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv()
	os.Setenv("SERVER_ADDR", ":9090")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("PUBLIC_BASE_URL", "https://shop.example.com/")
	os.Setenv("NEXT_PUBLIC_NFT_PRICE", "12.5")
	os.Setenv("NATS_URL", "nats://nats.example.com:4222")
	os.Setenv("TEMPORAL_HOST", "temporal.example.com:7233")
	os.Setenv("SIMULATION_POLICY", SimulationStrict)
	os.Setenv("CONFIRM_POLL_INTERVAL", "2s")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://shop.example.com", cfg.PublicBaseURL)
	assert.Equal(t, "https://shop.example.com/api/nft-pass/checkout", cfg.CheckoutURL())
	assert.Equal(t, "12.5", cfg.NFTPrice.String())
	assert.Equal(t, "nats://nats.example.com:4222", cfg.NATSURL)
	assert.Equal(t, "temporal.example.com:7233", cfg.TemporalHost)
	assert.Equal(t, SimulationStrict, cfg.SimulationPolicy)
	assert.Equal(t, 2*time.Second, cfg.ConfirmPollInterval)
}

func validConfig() *Config {
	return &Config{
		RPCURL:              "https://api.mainnet-beta.solana.com",
		ShopPrivateKey:      testShopKey,
		USDCMint:            USDCMainnetMint,
		NFTPrice:            decimal.NewFromInt(1),
		NFTMetadataURI:      "https://example.com/pass.json",
		SimulationPolicy:    SimulationPermissive,
		ConfirmPollInterval: 5 * time.Second,
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_MissingShopKey(t *testing.T) {
	cfg := validConfig()
	cfg.ShopPrivateKey = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ShopPrivateKey is required")
}

func TestValidate_TooShortPollInterval(t *testing.T) {
	cfg := validConfig()
	cfg.ConfirmPollInterval = 100 * time.Millisecond

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be at least 1 second")
}

func TestMustLoad_Panics(t *testing.T) {
	// Don't set required env vars
	defer cleanupEnv()

	assert.Panics(t, func() {
		MustLoad()
	})
}

func TestMustLoad_Success(t *testing.T) {
	setRequiredEnv()
	defer cleanupEnv()

	assert.NotPanics(t, func() {
		cfg := MustLoad()
		assert.NotNil(t, cfg)
	})
}

// cleanupEnv clears all environment variables used in tests
func cleanupEnv() {
	for _, key := range []string{
		"HELIUS_URL",
		"SHOP_PRIVATE_KEY",
		"NEXT_PUBLIC_NFT_METADATA_URI",
		"NEXT_PUBLIC_NFT_PRICE",
		"SERVER_ADDR",
		"LOG_LEVEL",
		"PUBLIC_BASE_URL",
		"NATS_URL",
		"TEMPORAL_HOST",
		"SIMULATION_POLICY",
		"CONFIRM_POLL_INTERVAL",
		"DATABASE_URL",
	} {
		os.Unsetenv(key)
	}
}
