package checkout

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brojonat/nftpass/service/config"
	solanasvc "github.com/brojonat/nftpass/service/solana"
)

func TestDeriveMintKeypair_Deterministic(t *testing.T) {
	for i := 0; i < 20; i++ {
		buyer := solana.NewWallet().PublicKey()

		first := DeriveMintKeypair(buyer)
		second := DeriveMintKeypair(buyer)

		assert.Equal(t, first, second)
		assert.Equal(t, first.PublicKey(), second.PublicKey())
		assert.NotEqual(t, buyer, first.PublicKey())
	}

	a := DeriveMintKeypair(solana.NewWallet().PublicKey())
	b := DeriveMintKeypair(solana.NewWallet().PublicKey())
	assert.NotEqual(t, a.PublicKey(), b.PublicKey())
}

func TestBuild_NoTokenAccount(t *testing.T) {
	f := newFixture(t, config.SimulationPermissive)
	buyer := solana.NewWallet().PublicKey()

	_, err := f.builder.Build(context.Background(), buyer.String())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoTokenAccount)
	assert.Equal(t, KindBusiness, KindOf(err))
	assert.Contains(t, err.Error(), "No USDC token account found")
	assert.Equal(t, 0, f.rpc.SimulateCalls())
}

func TestBuild_InsufficientFundsRejectedBeforeBuilding(t *testing.T) {
	f := newFixture(t, config.SimulationPermissive)
	buyer := solana.NewWallet().PublicKey()
	f.fundBuyer(t, buyer, 999_999)

	co, err := f.builder.Build(context.Background(), buyer.String())
	require.Error(t, err)
	assert.Nil(t, co)

	var funds *InsufficientFundsError
	require.ErrorAs(t, err, &funds)
	assert.Equal(t, uint64(1_000_000), funds.Required)
	assert.Equal(t, uint64(999_999), funds.Available)
	assert.Contains(t, err.Error(), "required 1, available 0.999999")
	assert.Equal(t, KindBusiness, KindOf(err))
	assert.Equal(t, 0, f.rpc.SimulateCalls())
}

func TestBuild_InvalidAccount(t *testing.T) {
	f := newFixture(t, config.SimulationPermissive)

	for _, account := range []string{"", "not-a-key", "0x1234"} {
		_, err := f.builder.Build(context.Background(), account)
		require.Error(t, err, account)
		assert.Equal(t, KindInput, KindOf(err), account)
	}
}

func TestBuild_ExactBalanceExistingSellerATA(t *testing.T) {
	f := newFixture(t, config.SimulationPermissive)
	buyer := solana.NewWallet().PublicKey()
	f.fundBuyer(t, buyer, 1_000_000)
	f.openSellerATA(t)

	co := f.build(t, buyer)

	require.Len(t, co.Groups, 2)
	assert.Equal(t, GroupPayment, co.Groups[0].Name)
	assert.Equal(t, GroupMint, co.Groups[1].Name)
	assert.Equal(t, 1, co.Groups[0].Count)
	assert.Equal(t, 6, co.Groups[1].Count)
	assert.Len(t, co.Tx.Message.Instructions, 7)

	summary, err := solanasvc.Summarize(co.Tx)
	require.NoError(t, err)

	sellerATA, _, err := solana.FindAssociatedTokenAddress(f.shop.PublicKey(), f.usdc)
	require.NoError(t, err)
	for _, ix := range summary.Instructions {
		if ix.Program == "associated-token-account" {
			assert.NotContains(t, ix.Accounts, sellerATA.String(), "seller ATA must not be created twice")
		}
	}

	transfer := summary.Instructions[0]
	assert.Equal(t, "transferChecked", transfer.Kind)
	require.NotNil(t, transfer.Amount)
	assert.Equal(t, uint64(1_000_000), *transfer.Amount)
	assert.Equal(t, uint8(usdcDecimals), *transfer.Decimals)
	assert.Equal(t, buyer.String(), transfer.Authority)

	kinds := make([]string, 0, 6)
	for _, ix := range summary.Instructions[1:] {
		kinds = append(kinds, ix.Kind)
	}
	assert.Equal(t, []string{
		"createAccount",
		"initializeMint2",
		"createIdempotent",
		"createMetadataAccountV3",
		"mintTo",
		"createMasterEditionV3",
	}, kinds)
}

func TestBuild_CreatesSellerATAWhenMissing(t *testing.T) {
	f := newFixture(t, config.SimulationPermissive)
	buyer := solana.NewWallet().PublicKey()
	f.fundBuyer(t, buyer, 5_000_000)

	co := f.build(t, buyer)

	require.Len(t, co.Groups, 3)
	assert.Equal(t, GroupSellerATA, co.Groups[0].Name)

	summary, err := solanasvc.Summarize(co.Tx)
	require.NoError(t, err)
	create := summary.Instructions[0]
	assert.Equal(t, "createIdempotent", create.Kind)
	assert.Equal(t, f.shop.PublicKey().String(), create.Authority)
	assert.Equal(t, f.usdc.String(), create.Mint)
	assert.Equal(t, buyer.String(), create.Accounts[0], "buyer pays for the seller ATA")
}

func TestBuild_SignatureSlots(t *testing.T) {
	f := newFixture(t, config.SimulationPermissive)
	buyer := solana.NewWallet().PublicKey()
	f.fundBuyer(t, buyer, 1_000_000)
	f.openSellerATA(t)

	co := f.build(t, buyer)
	tx := co.Tx

	assert.Equal(t, buyer, tx.Message.AccountKeys[0], "buyer is fee payer")
	require.Equal(t, uint8(3), tx.Message.Header.NumRequiredSignatures)
	require.Len(t, tx.Signatures, 3)
	assert.True(t, tx.Signatures[0].IsZero(), "buyer slot stays empty")
	assert.Equal(t, 2, FilledSlots(tx))

	msg, err := tx.Message.MarshalBinary()
	require.NoError(t, err)
	for _, signer := range []solana.PublicKey{f.shop.PublicKey(), co.Mint} {
		idx := signerIndex(tx, signer)
		require.GreaterOrEqual(t, idx, 1, signer.String())
		assert.True(t, tx.Signatures[idx].Verify(signer, msg), signer.String())
	}
	assert.Equal(t, DeriveMintKeypair(buyer).PublicKey(), co.Mint)
}

func TestBuild_RoundTrip(t *testing.T) {
	f := newFixture(t, config.SimulationPermissive)
	buyer := solana.NewWallet().PublicKey()
	f.fundBuyer(t, buyer, 1_000_000)

	co := f.build(t, buyer)

	decoded, err := DecodeTransaction(co.Transaction)
	require.NoError(t, err)

	assert.Equal(t, co.Tx.Signatures, decoded.Signatures)
	assert.Equal(t, co.Tx.Message.AccountKeys, decoded.Message.AccountKeys)
	assert.Equal(t, co.Tx.Message.Header, decoded.Message.Header)
	assert.Equal(t, co.Tx.Message.RecentBlockhash, decoded.Message.RecentBlockhash)
	require.Len(t, decoded.Message.Instructions, len(co.Tx.Message.Instructions))
	for i := range decoded.Message.Instructions {
		assert.Equal(t, co.Tx.Message.Instructions[i].ProgramIDIndex, decoded.Message.Instructions[i].ProgramIDIndex)
		assert.Equal(t, []byte(co.Tx.Message.Instructions[i].Data), []byte(decoded.Message.Instructions[i].Data))
	}

	again, err := EncodeTransaction(decoded)
	require.NoError(t, err)
	assert.Equal(t, co.Transaction, again)
}

func TestBuild_RepeatedRequestsAreIdentical(t *testing.T) {
	f := newFixture(t, config.SimulationPermissive)
	buyer := solana.NewWallet().PublicKey()
	f.fundBuyer(t, buyer, 1_000_000)

	first := f.build(t, buyer)
	second := f.build(t, buyer)

	assert.Equal(t, first.Mint, second.Mint)
	assert.Equal(t, first.Transaction, second.Transaction)
}

func TestBuild_PassAlreadyMinted(t *testing.T) {
	f := newFixture(t, config.SimulationPermissive)
	buyer := solana.NewWallet().PublicKey()
	f.fundBuyer(t, buyer, 1_000_000)
	f.rpc.SetMint(DeriveMintKeypair(buyer).PublicKey(), 0)

	_, err := f.builder.Build(context.Background(), buyer.String())
	assert.ErrorIs(t, err, ErrPassAlreadyMinted)
	assert.Equal(t, KindBusiness, KindOf(err))
}

func TestBuild_SimulationPolicies(t *testing.T) {
	simErr := map[string]any{"InstructionError": []any{0, "InvalidAccountData"}}

	t.Run("permissive swallows failures", func(t *testing.T) {
		f := newFixture(t, config.SimulationPermissive)
		f.rpc.SetSimulationError(simErr)
		buyer := solana.NewWallet().PublicKey()
		f.fundBuyer(t, buyer, 1_000_000)

		co := f.build(t, buyer)
		require.NotNil(t, co.Simulation)
		assert.True(t, co.Simulation.Failed())
		assert.NotEmpty(t, co.Transaction)
	})

	t.Run("permissive swallows rpc errors", func(t *testing.T) {
		f := newFixture(t, config.SimulationPermissive)
		f.rpc.SetSimulateCallError(assert.AnError)
		buyer := solana.NewWallet().PublicKey()
		f.fundBuyer(t, buyer, 1_000_000)

		co := f.build(t, buyer)
		assert.Nil(t, co.Simulation)
	})

	t.Run("strict rejects failures", func(t *testing.T) {
		f := newFixture(t, config.SimulationStrict)
		f.rpc.SetSimulationError(simErr)
		buyer := solana.NewWallet().PublicKey()
		f.fundBuyer(t, buyer, 1_000_000)

		_, err := f.builder.Build(context.Background(), buyer.String())
		assert.ErrorIs(t, err, ErrSimulationFailed)
		assert.Equal(t, KindBusiness, KindOf(err))
	})

	t.Run("off skips simulation", func(t *testing.T) {
		f := newFixture(t, config.SimulationOff)
		f.rpc.SetSimulationError(simErr)
		buyer := solana.NewWallet().PublicKey()
		f.fundBuyer(t, buyer, 1_000_000)

		co := f.build(t, buyer)
		assert.Nil(t, co.Simulation)
		assert.Equal(t, 0, f.rpc.SimulateCalls())
	})
}

func TestBaseUnits(t *testing.T) {
	tests := []struct {
		price    string
		decimals uint8
		want     uint64
		wantErr  bool
	}{
		{price: "1", decimals: 6, want: 1_000_000},
		{price: "12.5", decimals: 6, want: 12_500_000},
		{price: "1.2345678", decimals: 6, want: 1_234_567},
		{price: "3", decimals: 0, want: 3},
		{price: "0.0000001", decimals: 6, wantErr: true},
		{price: "100000000000000", decimals: 9, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			got, err := baseUnits(decimal.RequireFromString(tt.price), tt.decimals)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewBuilder_MissingKey(t *testing.T) {
	_, err := NewBuilder(Config{Price: decimal.NewFromInt(1), Metadata: NFTMetadata{URI: "x"}}, nil, nil, testLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingServerKey)
	assert.Equal(t, KindConfig, KindOf(err))
	assert.Equal(t, "server configuration error", UserMessage(err))
}

func TestNewConfig(t *testing.T) {
	shop := solana.NewWallet().PrivateKey
	cfg := &config.Config{
		ShopPrivateKey:   shop.String(),
		USDCMint:         config.USDCMainnetMint,
		NFTPrice:         decimal.RequireFromString("2.5"),
		NFTMetadataURI:   "https://example.com/pass.json",
		NFTName:          "NFT Pass",
		NFTSymbol:        "PASS",
		SimulationPolicy: config.SimulationStrict,
	}

	c, err := NewConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, shop.PublicKey(), c.ShopKey.PublicKey())
	assert.Equal(t, config.USDCMainnetMint, c.StablecoinMint.String())
	assert.Equal(t, "PASS", c.Metadata.Symbol)

	cfg.ShopPrivateKey = "garbage"
	_, err = NewConfig(cfg)
	require.Error(t, err)
	assert.Equal(t, KindConfig, KindOf(err))
	assert.NotContains(t, UserMessage(err), "garbage")
}
