package solana

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/gagliardetto/solana-go"
)

// Well-known program IDs that appear in checkout transactions.
var (
	// TokenMetadataProgramID is the Metaplex Token Metadata program.
	TokenMetadataProgramID = solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")

	// MemoProgramID is the SPL Memo program.
	MemoProgramID = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")
)

// System program instruction indexes (u32 little endian).
const (
	systemCreateAccount = uint32(0)
	systemTransfer      = uint32(2)
)

// Token program instruction indexes (u8).
const (
	tokenTransfer        = uint8(3)
	tokenMintTo          = uint8(7)
	tokenTransferChecked = uint8(12)
	tokenInitializeMint2 = uint8(20)
)

// Metaplex token metadata instruction discriminators (u8).
const (
	metadataCreateMasterEditionV3   = uint8(17)
	metadataCreateMetadataAccountV3 = uint8(33)
)

// InstructionSummary is a human-readable decoding of one instruction.
// Amount, Decimals and Mint are set only for instructions that carry them.
type InstructionSummary struct {
	Index     int      `json:"index"`
	Program   string   `json:"program"`
	Kind      string   `json:"kind"`
	Accounts  []string `json:"accounts"`
	Amount    *uint64  `json:"amount,omitempty"`
	Decimals  *uint8   `json:"decimals,omitempty"`
	Mint      string   `json:"mint,omitempty"`
	Authority string   `json:"authority,omitempty"`
	Memo      string   `json:"memo,omitempty"`
}

// SignerSlot is one required signature of a transaction.
type SignerSlot struct {
	Index  int    `json:"index"`
	Signer string `json:"signer"`
	Signed bool   `json:"signed"`
}

// TransactionSummary describes a transaction before it is signed or sent.
type TransactionSummary struct {
	FeePayer     string               `json:"fee_payer"`
	Blockhash    string               `json:"recent_blockhash"`
	Signers      []SignerSlot         `json:"signers"`
	Instructions []InstructionSummary `json:"instructions"`
}

// Summarize decodes the signer slots and instructions of a legacy transaction.
// Unknown instructions are kept with Kind "unknown".
func Summarize(tx *solana.Transaction) (*TransactionSummary, error) {
	keys := tx.Message.AccountKeys
	if len(keys) == 0 {
		return nil, fmt.Errorf("transaction has no account keys")
	}

	summary := &TransactionSummary{
		FeePayer:  keys[0].String(),
		Blockhash: tx.Message.RecentBlockhash.String(),
	}

	required := int(tx.Message.Header.NumRequiredSignatures)
	for i := 0; i < required && i < len(keys); i++ {
		signed := false
		if i < len(tx.Signatures) {
			signed = !tx.Signatures[i].IsZero()
		}
		summary.Signers = append(summary.Signers, SignerSlot{
			Index:  i,
			Signer: keys[i].String(),
			Signed: signed,
		})
	}

	for i, inst := range tx.Message.Instructions {
		if int(inst.ProgramIDIndex) >= len(keys) {
			return nil, fmt.Errorf("instruction %d: program index %d out of bounds", i, inst.ProgramIDIndex)
		}
		accounts := make([]solana.PublicKey, 0, len(inst.Accounts))
		for _, idx := range inst.Accounts {
			if int(idx) >= len(keys) {
				return nil, fmt.Errorf("instruction %d: account index %d out of bounds", i, idx)
			}
			accounts = append(accounts, keys[idx])
		}

		s := describeInstruction(keys[inst.ProgramIDIndex], accounts, inst.Data)
		s.Index = i
		summary.Instructions = append(summary.Instructions, s)
	}

	return summary, nil
}

func describeInstruction(program solana.PublicKey, accounts []solana.PublicKey, data []byte) InstructionSummary {
	s := InstructionSummary{Kind: "unknown"}
	for _, a := range accounts {
		s.Accounts = append(s.Accounts, a.String())
	}

	switch {
	case program.Equals(solana.SystemProgramID):
		s.Program = "system"
		describeSystem(&s, data)
	case program.Equals(solana.TokenProgramID):
		s.Program = "spl-token"
		describeToken(&s, accounts, data)
	case program.Equals(solana.SPLAssociatedTokenAccountProgramID):
		s.Program = "associated-token-account"
		switch {
		case len(data) == 0 || data[0] == 0:
			s.Kind = "create"
		case data[0] == 1:
			s.Kind = "createIdempotent"
		}
		if len(accounts) >= 4 {
			s.Authority = accounts[2].String()
			s.Mint = accounts[3].String()
		}
	case program.Equals(TokenMetadataProgramID):
		s.Program = "token-metadata"
		if len(data) > 0 {
			switch data[0] {
			case metadataCreateMetadataAccountV3:
				s.Kind = "createMetadataAccountV3"
			case metadataCreateMasterEditionV3:
				s.Kind = "createMasterEditionV3"
			}
		}
	case program.Equals(MemoProgramID):
		s.Program = "memo"
		s.Kind = "memo"
		if utf8.Valid(data) {
			s.Memo = string(data)
		}
	default:
		s.Program = program.String()
	}
	return s
}

func describeSystem(s *InstructionSummary, data []byte) {
	if len(data) < 4 {
		return
	}
	switch binary.LittleEndian.Uint32(data[0:4]) {
	case systemCreateAccount:
		// [u32 index][u64 lamports][u64 space][32 owner]
		s.Kind = "createAccount"
		if len(data) >= 12 {
			lamports := binary.LittleEndian.Uint64(data[4:12])
			s.Amount = &lamports
		}
	case systemTransfer:
		s.Kind = "transfer"
		if len(data) >= 12 {
			lamports := binary.LittleEndian.Uint64(data[4:12])
			s.Amount = &lamports
		}
	}
}

func describeToken(s *InstructionSummary, accounts []solana.PublicKey, data []byte) {
	if len(data) == 0 {
		return
	}

	switch data[0] {
	case tokenTransfer:
		s.Kind = "transfer"
		if len(data) >= 9 {
			amount := binary.LittleEndian.Uint64(data[1:9])
			s.Amount = &amount
		}
		if len(accounts) >= 3 {
			s.Authority = accounts[2].String()
		}

	case tokenTransferChecked:
		// accounts: [source, mint, destination, authority]
		s.Kind = "transferChecked"
		if len(data) >= 10 {
			amount := binary.LittleEndian.Uint64(data[1:9])
			decimals := data[9]
			s.Amount = &amount
			s.Decimals = &decimals
		}
		if len(accounts) >= 4 {
			s.Mint = accounts[1].String()
			s.Authority = accounts[3].String()
		}

	case tokenMintTo:
		// accounts: [mint, destination, authority]
		s.Kind = "mintTo"
		if len(data) >= 9 {
			amount := binary.LittleEndian.Uint64(data[1:9])
			s.Amount = &amount
		}
		if len(accounts) >= 3 {
			s.Mint = accounts[0].String()
			s.Authority = accounts[2].String()
		}

	case tokenInitializeMint2:
		// [u8 index][u8 decimals][32 mint authority][COption freeze authority]
		s.Kind = "initializeMint2"
		if len(data) >= 34 {
			decimals := data[1]
			s.Decimals = &decimals
			s.Authority = solana.PublicKeyFromBytes(data[2:34]).String()
		}
		if len(accounts) >= 1 {
			s.Mint = accounts[0].String()
		}
	}
}
