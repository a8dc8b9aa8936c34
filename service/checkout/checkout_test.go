package checkout

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/brojonat/nftpass/service/config"
	solanasvc "github.com/brojonat/nftpass/service/solana"
)

const usdcDecimals = 6

// fixture is a builder wired to an in-memory chain with a USDC-like mint.
type fixture struct {
	rpc     *solanasvc.MockRPCClient
	shop    solana.PrivateKey
	usdc    solana.PublicKey
	builder *Builder
	relay   *Relay
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, policy string) *fixture {
	t.Helper()

	rpc := solanasvc.NewMockRPCClient()
	chain := solanasvc.NewClient(rpc, "test", nil, testLogger()).
		WithRetryPolicy(1, func() backoff.BackOff { return &backoff.ZeroBackOff{} })

	shop := solana.NewWallet().PrivateKey
	usdc := solana.NewWallet().PublicKey()
	rpc.SetMint(usdc, usdcDecimals)

	builder, err := NewBuilder(Config{
		ShopKey:        shop,
		StablecoinMint: usdc,
		Price:          decimal.NewFromInt(1),
		Metadata: NFTMetadata{
			Name:   "NFT Pass",
			Symbol: "PASS",
			URI:    "https://example.com/pass.json",
		},
		SimulationPolicy: policy,
	}, chain, nil, testLogger())
	require.NoError(t, err)

	return &fixture{
		rpc:     rpc,
		shop:    shop,
		usdc:    usdc,
		builder: builder,
		relay:   NewRelay(nil, testLogger()),
	}
}

// fundBuyer gives buyer a USDC token account holding amount base units.
func (f *fixture) fundBuyer(t *testing.T, buyer solana.PublicKey, amount uint64) {
	t.Helper()
	ata, _, err := solana.FindAssociatedTokenAddress(buyer, f.usdc)
	require.NoError(t, err)
	f.rpc.SetTokenAccount(ata, f.usdc, buyer, amount)
}

// openSellerATA makes the shop's USDC token account exist.
func (f *fixture) openSellerATA(t *testing.T) {
	t.Helper()
	seller := f.shop.PublicKey()
	ata, _, err := solana.FindAssociatedTokenAddress(seller, f.usdc)
	require.NoError(t, err)
	f.rpc.SetTokenAccount(ata, f.usdc, seller, 0)
}

func (f *fixture) build(t *testing.T, buyer solana.PublicKey) *Checkout {
	t.Helper()
	co, err := f.builder.Build(context.Background(), buyer.String())
	require.NoError(t, err)
	return co
}

func TestNewBuilder_DefaultPolicy(t *testing.T) {
	f := newFixture(t, "")
	require.Equal(t, config.SimulationPermissive, f.builder.cfg.SimulationPolicy)
}
