package checkout

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	solanasvc "github.com/brojonat/nftpass/service/solana"
)

// mintAccountSize is the size of an SPL token mint account.
const mintAccountSize = 82

const (
	ataCreateIdempotent = uint8(1)

	metadataCreateMetadataAccountV3 = uint8(33)
	metadataCreateMasterEditionV3   = uint8(17)
)

// instruction is a raw program instruction with precomputed data.
type instruction struct {
	programID solana.PublicKey
	accounts  []*solana.AccountMeta
	data      []byte
}

func (i *instruction) ProgramID() solana.PublicKey     { return i.programID }
func (i *instruction) Accounts() []*solana.AccountMeta { return i.accounts }
func (i *instruction) Data() ([]byte, error)           { return i.data, nil }

// createATAIdempotent creates owner's associated token account for mint,
// succeeding without changes if it already exists.
func createATAIdempotent(payer, owner, mint solana.PublicKey) (solana.Instruction, solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("derive associated token address: %w", err)
	}

	return &instruction{
		programID: solana.SPLAssociatedTokenAccountProgramID,
		accounts: []*solana.AccountMeta{
			solana.Meta(payer).WRITE().SIGNER(),
			solana.Meta(ata).WRITE(),
			solana.Meta(owner),
			solana.Meta(mint),
			solana.Meta(solana.SystemProgramID),
			solana.Meta(solana.TokenProgramID),
		},
		data: []byte{ataCreateIdempotent},
	}, ata, nil
}

// NFTMetadata is the Metaplex metadata attached to every minted pass.
type NFTMetadata struct {
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
}

// Metaplex field limits.
const (
	maxNameLength   = 32
	maxSymbolLength = 10
	maxURILength    = 200
)

func (m NFTMetadata) validate() error {
	switch {
	case len(m.Name) > maxNameLength:
		return fmt.Errorf("name exceeds %d bytes", maxNameLength)
	case len(m.Symbol) > maxSymbolLength:
		return fmt.Errorf("symbol exceeds %d bytes", maxSymbolLength)
	case len(m.URI) > maxURILength:
		return fmt.Errorf("uri exceeds %d bytes", maxURILength)
	case m.URI == "":
		return fmt.Errorf("uri is required")
	}
	return nil
}

func metadataAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{
		[]byte("metadata"),
		solanasvc.TokenMetadataProgramID[:],
		mint[:],
	}, solanasvc.TokenMetadataProgramID)
	return addr, err
}

func masterEditionAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{
		[]byte("metadata"),
		solanasvc.TokenMetadataProgramID[:],
		mint[:],
		[]byte("edition"),
	}, solanasvc.TokenMetadataProgramID)
	return addr, err
}

// createMetadataAccountV3 attaches metadata to mint. The authority is
// recorded as the single verified creator and must sign.
func createMetadataAccountV3(metadata, mint, authority, payer solana.PublicKey, meta NFTMetadata) (solana.Instruction, error) {
	var buf bytes.Buffer
	enc := bin.NewBorshEncoder(&buf)

	steps := []func() error{
		func() error { return enc.WriteUint8(metadataCreateMetadataAccountV3) },
		// DataV2
		func() error { return writeBorshString(enc, meta.Name) },
		func() error { return writeBorshString(enc, meta.Symbol) },
		func() error { return writeBorshString(enc, meta.URI) },
		func() error { return enc.WriteUint16(meta.SellerFeeBasisPoints, binary.LittleEndian) },
		// creators: Some(vec![Creator{authority, verified, 100}])
		func() error { return enc.WriteUint8(1) },
		func() error { return enc.WriteUint32(1, binary.LittleEndian) },
		func() error { return enc.WriteBytes(authority[:], false) },
		func() error { return enc.WriteBool(true) },
		func() error { return enc.WriteUint8(100) },
		// collection: None, uses: None
		func() error { return enc.WriteUint8(0) },
		func() error { return enc.WriteUint8(0) },
		// is_mutable
		func() error { return enc.WriteBool(true) },
		// collection_details: None
		func() error { return enc.WriteUint8(0) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, fmt.Errorf("encode metadata instruction: %w", err)
		}
	}

	return &instruction{
		programID: solanasvc.TokenMetadataProgramID,
		accounts: []*solana.AccountMeta{
			solana.Meta(metadata).WRITE(),
			solana.Meta(mint),
			solana.Meta(authority).SIGNER(),
			solana.Meta(payer).WRITE().SIGNER(),
			solana.Meta(authority).SIGNER(),
			solana.Meta(solana.SystemProgramID),
		},
		data: buf.Bytes(),
	}, nil
}

// createMasterEditionV3 turns mint into a one-of-one master edition.
// A max supply of 0 forbids printing further editions.
func createMasterEditionV3(edition, mint, authority, payer, metadata solana.PublicKey, maxSupply uint64) (solana.Instruction, error) {
	var buf bytes.Buffer
	enc := bin.NewBorshEncoder(&buf)

	if err := enc.WriteUint8(metadataCreateMasterEditionV3); err != nil {
		return nil, err
	}
	// max_supply: Some(maxSupply)
	if err := enc.WriteUint8(1); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(maxSupply, binary.LittleEndian); err != nil {
		return nil, err
	}

	return &instruction{
		programID: solanasvc.TokenMetadataProgramID,
		accounts: []*solana.AccountMeta{
			solana.Meta(edition).WRITE(),
			solana.Meta(mint).WRITE(),
			solana.Meta(authority).SIGNER(),
			solana.Meta(authority).SIGNER(),
			solana.Meta(payer).WRITE().SIGNER(),
			solana.Meta(metadata).WRITE(),
			solana.Meta(solana.TokenProgramID),
			solana.Meta(solana.SystemProgramID),
		},
		data: buf.Bytes(),
	}, nil
}

func writeBorshString(enc *bin.Encoder, s string) error {
	if err := enc.WriteUint32(uint32(len(s)), binary.LittleEndian); err != nil {
		return err
	}
	return enc.WriteBytes([]byte(s), false)
}
