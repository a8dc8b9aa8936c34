package checkout

import (
	"crypto/ed25519"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
)

// DeriveMintKeypair returns the mint keypair for buyer's pass. The buyer's
// 32 public key bytes are the ed25519 seed, so a buyer always maps to the
// same mint address.
func DeriveMintKeypair(buyer solana.PublicKey) solana.PrivateKey {
	return solana.PrivateKey(ed25519.NewKeyFromSeed(buyer[:]))
}

// mintGroupParams describes one NFT pass mint.
type mintGroupParams struct {
	buyer        solana.PublicKey
	seller       solana.PublicKey
	mint         solana.PublicKey
	rentLamports uint64
	metadata     NFTMetadata
}

// mintGroup returns the instructions that create the pass mint, give the
// buyer one token and attach Metaplex metadata and a master edition.
// The buyer funds every new account; the seller is mint and update authority.
func mintGroup(p mintGroupParams) ([]solana.Instruction, error) {
	metadataAddr, err := metadataAddress(p.mint)
	if err != nil {
		return nil, fmt.Errorf("derive metadata address: %w", err)
	}
	editionAddr, err := masterEditionAddress(p.mint)
	if err != nil {
		return nil, fmt.Errorf("derive master edition address: %w", err)
	}

	createATA, buyerNFTAccount, err := createATAIdempotent(p.buyer, p.buyer, p.mint)
	if err != nil {
		return nil, err
	}

	createMetadata, err := createMetadataAccountV3(metadataAddr, p.mint, p.seller, p.buyer, p.metadata)
	if err != nil {
		return nil, err
	}

	createEdition, err := createMasterEditionV3(editionAddr, p.mint, p.seller, p.buyer, metadataAddr, 0)
	if err != nil {
		return nil, err
	}

	return []solana.Instruction{
		system.NewCreateAccountInstruction(
			p.rentLamports,
			mintAccountSize,
			solana.TokenProgramID,
			p.buyer,
			p.mint,
		).Build(),
		token.NewInitializeMint2Instruction(
			0,
			p.seller,
			p.seller,
			p.mint,
		).Build(),
		createATA,
		createMetadata,
		token.NewMintToInstruction(
			1,
			p.mint,
			buyerNFTAccount,
			p.seller,
			nil,
		).Build(),
		createEdition,
	}, nil
}
