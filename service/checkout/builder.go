package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/shopspring/decimal"

	"github.com/brojonat/nftpass/service/config"
	"github.com/brojonat/nftpass/service/metrics"
	solanasvc "github.com/brojonat/nftpass/service/solana"
)

// Instruction group names, in transaction order.
const (
	GroupSellerATA = "seller-ata"
	GroupPayment   = "payment"
	GroupMint      = "mint"
)

// Chain is the on-chain state the builder reads.
type Chain interface {
	GetMintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error)
	GetTokenAccount(ctx context.Context, address solana.PublicKey) (*solanasvc.TokenAccount, error)
	AccountExists(ctx context.Context, account solana.PublicKey) (bool, error)
	LatestBlockhash(ctx context.Context) (solanasvc.Blockhash, error)
	MinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)
	Simulate(ctx context.Context, tx *solana.Transaction) (*solanasvc.SimulationResult, error)
}

// Config is everything the builder needs to price, pay and mint a pass.
type Config struct {
	ShopKey          solana.PrivateKey
	StablecoinMint   solana.PublicKey
	Price            decimal.Decimal
	Metadata         NFTMetadata
	SimulationPolicy string
}

// NewConfig converts application configuration into builder configuration.
// Errors are KindConfig and never echo the secret key.
func NewConfig(cfg *config.Config) (Config, error) {
	if cfg.ShopPrivateKey == "" {
		return Config{}, &Error{Kind: KindConfig, Err: ErrMissingServerKey}
	}
	key, err := solanasvc.ParseSecretKey(cfg.ShopPrivateKey)
	if err != nil {
		return Config{}, newError(KindConfig, err, "SHOP_PRIVATE_KEY")
	}

	mint, err := solanasvc.ParsePublicKey(cfg.USDCMint)
	if err != nil {
		return Config{}, newError(KindConfig, err, "USDC_MINT_ADDRESS")
	}

	c := Config{
		ShopKey:        key,
		StablecoinMint: mint,
		Price:          cfg.NFTPrice,
		Metadata: NFTMetadata{
			Name:   cfg.NFTName,
			Symbol: cfg.NFTSymbol,
			URI:    cfg.NFTMetadataURI,
		},
		SimulationPolicy: cfg.SimulationPolicy,
	}
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) validate() error {
	if len(c.ShopKey) == 0 {
		return &Error{Kind: KindConfig, Err: ErrMissingServerKey}
	}
	if !c.Price.IsPositive() {
		return newError(KindConfig, nil, "price must be positive")
	}
	if err := c.Metadata.validate(); err != nil {
		return newError(KindConfig, err, "nft metadata")
	}
	switch c.SimulationPolicy {
	case "", config.SimulationPermissive, config.SimulationStrict, config.SimulationOff:
	default:
		return newError(KindConfig, nil, "unknown simulation policy %q", c.SimulationPolicy)
	}
	return nil
}

// InstructionGroup is a contiguous run of instructions in a checkout transaction.
type InstructionGroup struct {
	Name  string `json:"name"`
	Start int    `json:"start"`
	Count int    `json:"count"`
}

// Checkout is a built, partially signed checkout transaction.
type Checkout struct {
	Transaction          string
	Tx                   *solana.Transaction
	Buyer                solana.PublicKey
	Seller               solana.PublicKey
	Mint                 solana.PublicKey
	Amount               uint64
	Decimals             uint8
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
	Groups               []InstructionGroup
	Simulation           *solanasvc.SimulationResult
}

// Builder assembles checkout transactions.
type Builder struct {
	cfg     Config
	seller  solana.PublicKey
	chain   Chain
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewBuilder validates cfg and returns a Builder. A missing shop key is a
// KindConfig error so the server refuses to start.
func NewBuilder(cfg Config, chain Chain, m *metrics.Metrics, logger *slog.Logger) (*Builder, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.SimulationPolicy == "" {
		cfg.SimulationPolicy = config.SimulationPermissive
	}
	return &Builder{
		cfg:     cfg,
		seller:  cfg.ShopKey.PublicKey(),
		chain:   chain,
		metrics: m,
		logger:  logger,
	}, nil
}

// Seller returns the shop public key that receives payment.
func (b *Builder) Seller() solana.PublicKey { return b.seller }

// Price returns the configured pass price in whole stablecoin units.
func (b *Builder) Price() decimal.Decimal { return b.cfg.Price }

// Build assembles, pre-signs and serializes the checkout transaction for account.
// Balance checks run before any instruction is built.
func (b *Builder) Build(ctx context.Context, account string) (co *Checkout, err error) {
	start := time.Now()
	defer func() {
		if b.metrics != nil {
			result := "ok"
			if err != nil {
				result = KindOf(err).String()
			}
			b.metrics.RecordCheckoutBuild(result, time.Since(start).Seconds())
		}
	}()

	if account == "" {
		return nil, &Error{Kind: KindInput, Err: ErrMissingAccount}
	}
	buyer, err := solana.PublicKeyFromBase58(account)
	if err != nil {
		return nil, &Error{Kind: KindInput, Err: fmt.Errorf("%w %q: %v", ErrInvalidAccount, account, err)}
	}

	mintKey := DeriveMintKeypair(buyer)
	mint := mintKey.PublicKey()
	logger := b.logger.With("buyer", buyer.String(), "mint", mint.String())

	decimals, err := b.chain.GetMintDecimals(ctx, b.cfg.StablecoinMint)
	if err != nil {
		return nil, newError(KindInternal, err, "read stablecoin mint")
	}
	amount, err := baseUnits(b.cfg.Price, decimals)
	if err != nil {
		return nil, newError(KindConfig, err, "price")
	}

	buyerATA, _, err := solana.FindAssociatedTokenAddress(buyer, b.cfg.StablecoinMint)
	if err != nil {
		return nil, newError(KindInternal, err, "derive buyer token account")
	}
	buyerAccount, err := b.chain.GetTokenAccount(ctx, buyerATA)
	if errors.Is(err, solanasvc.ErrAccountNotFound) {
		return nil, &Error{Kind: KindBusiness, Err: ErrNoTokenAccount}
	}
	if err != nil {
		return nil, newError(KindInternal, err, "read buyer token account")
	}
	if buyerAccount.Amount < amount {
		return nil, &InsufficientFundsError{
			Required:  amount,
			Available: buyerAccount.Amount,
			Decimals:  decimals,
		}
	}

	minted, err := b.chain.AccountExists(ctx, mint)
	if err != nil {
		return nil, newError(KindInternal, err, "check pass mint")
	}
	if minted {
		return nil, &Error{Kind: KindBusiness, Err: ErrPassAlreadyMinted}
	}

	sellerATA, _, err := solana.FindAssociatedTokenAddress(b.seller, b.cfg.StablecoinMint)
	if err != nil {
		return nil, newError(KindInternal, err, "derive seller token account")
	}
	sellerATAExists, err := b.chain.AccountExists(ctx, sellerATA)
	if err != nil {
		return nil, newError(KindInternal, err, "check seller token account")
	}

	rent, err := b.chain.MinimumBalanceForRentExemption(ctx, mintAccountSize)
	if err != nil {
		return nil, newError(KindInternal, err, "read mint rent")
	}

	var (
		instructions []solana.Instruction
		groups       []InstructionGroup
	)
	addGroup := func(name string, ixs ...solana.Instruction) {
		groups = append(groups, InstructionGroup{Name: name, Start: len(instructions), Count: len(ixs)})
		instructions = append(instructions, ixs...)
	}

	if !sellerATAExists {
		createSellerATA, _, err := createATAIdempotent(buyer, b.seller, b.cfg.StablecoinMint)
		if err != nil {
			return nil, newError(KindInternal, err, "seller token account instruction")
		}
		addGroup(GroupSellerATA, createSellerATA)
		if b.metrics != nil {
			b.metrics.RecordSellerATACreate()
		}
	}

	addGroup(GroupPayment, token.NewTransferCheckedInstruction(
		amount,
		decimals,
		buyerATA,
		b.cfg.StablecoinMint,
		sellerATA,
		buyer,
		nil,
	).Build())

	mintIxs, err := mintGroup(mintGroupParams{
		buyer:        buyer,
		seller:       b.seller,
		mint:         mint,
		rentLamports: rent,
		metadata:     b.cfg.Metadata,
	})
	if err != nil {
		return nil, newError(KindInternal, err, "mint instructions")
	}
	addGroup(GroupMint, mintIxs...)

	blockhash, err := b.chain.LatestBlockhash(ctx)
	if err != nil {
		return nil, newError(KindInternal, err, "fetch blockhash")
	}

	tx, err := solana.NewTransaction(instructions, blockhash.Hash, solana.TransactionPayer(buyer))
	if err != nil {
		return nil, newError(KindInternal, err, "assemble transaction")
	}

	if err := PartialSign(tx, b.cfg.ShopKey, mintKey); err != nil {
		return nil, newError(KindInternal, err, "pre-sign transaction")
	}

	encoded, err := EncodeTransaction(tx)
	if err != nil {
		return nil, newError(KindInternal, err, "encode transaction")
	}

	co = &Checkout{
		Transaction:          encoded,
		Tx:                   tx,
		Buyer:                buyer,
		Seller:               b.seller,
		Mint:                 mint,
		Amount:               amount,
		Decimals:             decimals,
		Blockhash:            blockhash.Hash,
		LastValidBlockHeight: blockhash.LastValidBlockHeight,
		Groups:               groups,
	}

	sim, err := b.simulate(ctx, tx, logger)
	if err != nil {
		return nil, err
	}
	co.Simulation = sim

	logger.InfoContext(ctx, "built checkout transaction",
		"amount", amount,
		"decimals", decimals,
		"seller_ata_created", !sellerATAExists,
		"instructions", len(instructions),
	)
	return co, nil
}

// simulate runs the pre-flight simulation according to the configured policy.
// Only the strict policy turns a failure into an error.
func (b *Builder) simulate(ctx context.Context, tx *solana.Transaction, logger *slog.Logger) (*solanasvc.SimulationResult, error) {
	policy := b.cfg.SimulationPolicy
	if policy == config.SimulationOff {
		return nil, nil
	}

	record := func(result string) {
		if b.metrics != nil {
			b.metrics.RecordSimulation(policy, result)
		}
	}

	sim, err := b.chain.Simulate(ctx, tx)
	if err != nil {
		record("error")
		logger.WarnContext(ctx, "simulation unavailable", "error", err, "policy", policy)
		if policy == config.SimulationStrict {
			return nil, newError(KindInternal, err, "simulate transaction")
		}
		return nil, nil
	}

	if sim.Failed() {
		record("failed")
		logger.WarnContext(ctx, "simulation failed",
			"error", fmt.Sprintf("%v", sim.Err),
			"logs", sim.Logs,
			"policy", policy,
		)
		if policy == config.SimulationStrict {
			return sim, &Error{Kind: KindBusiness, Err: fmt.Errorf("%w: %v", ErrSimulationFailed, sim.Err)}
		}
		return sim, nil
	}

	record("ok")
	return sim, nil
}

// baseUnits converts a whole-unit price to token base units, truncating.
func baseUnits(price decimal.Decimal, decimals uint8) (uint64, error) {
	scaled := price.Shift(int32(decimals)).Truncate(0)
	if !scaled.IsPositive() {
		return 0, fmt.Errorf("%s rounds to zero at %d decimals", price, decimals)
	}
	n := scaled.BigInt()
	if !n.IsUint64() {
		return 0, fmt.Errorf("%s overflows at %d decimals", price, decimals)
	}
	return n.Uint64(), nil
}
