package solana

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

const (
	tokenAccountSize = 165
	mintSize         = 82
)

// MockRPCClient is an in-memory RPCClient for tests. Accounts are keyed by
// address; anything not set is reported as not found.
type MockRPCClient struct {
	mu sync.RWMutex

	accounts       map[solana.PublicKey]*rpc.Account
	blockhash      Blockhash
	blockhashValid bool
	rentLamports   uint64
	simulationErr  any
	statuses       map[solana.Signature]*rpc.SignatureStatusesResult

	accountErr error
	sendErr    error
	simCallErr error

	sent          []*solana.Transaction
	simulateCalls int
}

// NewMockRPCClient creates a mock with a fixed blockhash and rent value.
func NewMockRPCClient() *MockRPCClient {
	return &MockRPCClient{
		accounts: make(map[solana.PublicKey]*rpc.Account),
		blockhash: Blockhash{
			Hash:                 solana.MustHashFromBase58("EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N"),
			LastValidBlockHeight: 1_000,
		},
		blockhashValid: true,
		rentLamports:   1_461_600,
		statuses:       make(map[solana.Signature]*rpc.SignatureStatusesResult),
	}
}

// SetAccount registers an opaque account owned by owner.
func (m *MockRPCClient) SetAccount(address, owner solana.PublicKey, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[address] = &rpc.Account{
		Lamports: 2_039_280,
		Owner:    owner,
		Data:     rpc.DataBytesOrJSONFromBytes(data),
	}
}

// SetMint registers an initialized SPL mint with the given decimals.
func (m *MockRPCClient) SetMint(mint solana.PublicKey, decimals uint8) {
	data := make([]byte, mintSize)
	binary.LittleEndian.PutUint32(data[0:4], 1) // mint authority present
	copy(data[4:36], mint[:])
	binary.LittleEndian.PutUint64(data[36:44], 1_000_000_000_000)
	data[44] = decimals
	data[45] = 1
	m.SetAccount(mint, solana.TokenProgramID, data)
}

// SetTokenAccount registers an initialized SPL token account holding amount.
func (m *MockRPCClient) SetTokenAccount(address, mint, owner solana.PublicKey, amount uint64) {
	data := make([]byte, tokenAccountSize)
	copy(data[0:32], mint[:])
	copy(data[32:64], owner[:])
	binary.LittleEndian.PutUint64(data[64:72], amount)
	data[108] = 1 // initialized
	m.SetAccount(address, solana.TokenProgramID, data)
}

// DeleteAccount removes an account.
func (m *MockRPCClient) DeleteAccount(address solana.PublicKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, address)
}

// SetBlockhash overrides the blockhash returned by GetLatestBlockhash.
func (m *MockRPCClient) SetBlockhash(b Blockhash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockhash = b
}

// SetBlockhashValid controls the IsBlockhashValid answer.
func (m *MockRPCClient) SetBlockhashValid(valid bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockhashValid = valid
}

// SetSimulationError makes SimulateTransaction report a failed execution.
func (m *MockRPCClient) SetSimulationError(err any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.simulationErr = err
}

// SetSimulateCallError makes SimulateTransaction fail at the transport level.
func (m *MockRPCClient) SetSimulateCallError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.simCallErr = err
}

// SetAccountError makes every GetAccountInfo call fail.
func (m *MockRPCClient) SetAccountError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accountErr = err
}

// SetSendError makes SendTransaction fail.
func (m *MockRPCClient) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// SetSignatureStatus sets the status reported for sig. An empty status with
// a nil txErr means the signature is unknown.
func (m *MockRPCClient) SetSignatureStatus(sig solana.Signature, status rpc.ConfirmationStatusType, txErr any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status == "" && txErr == nil {
		delete(m.statuses, sig)
		return
	}
	m.statuses[sig] = &rpc.SignatureStatusesResult{
		Slot:               42,
		Err:                txErr,
		ConfirmationStatus: status,
	}
}

// SentTransactions returns every transaction passed to SendTransaction.
func (m *MockRPCClient) SentTransactions() []*solana.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*solana.Transaction, len(m.sent))
	copy(out, m.sent)
	return out
}

// SimulateCalls returns how many times SimulateTransaction was called.
func (m *MockRPCClient) SimulateCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.simulateCalls
}

func (m *MockRPCClient) GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.accountErr != nil {
		return nil, m.accountErr
	}
	acct, ok := m.accounts[account]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{Value: acct}, nil
}

func (m *MockRPCClient) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{
			Blockhash:            m.blockhash.Hash,
			LastValidBlockHeight: m.blockhash.LastValidBlockHeight,
		},
	}, nil
}

func (m *MockRPCClient) GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64, commitment rpc.CommitmentType) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rentLamports, nil
}

func (m *MockRPCClient) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*rpc.SimulateTransactionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.simulateCalls++
	if m.simCallErr != nil {
		return nil, m.simCallErr
	}
	units := uint64(120_000)
	return &rpc.SimulateTransactionResponse{
		Value: &rpc.SimulateTransactionResult{
			Err:           m.simulationErr,
			Logs:          []string{"Program log: mock"},
			UnitsConsumed: &units,
		},
	}, nil
}

func (m *MockRPCClient) SendTransaction(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return solana.Signature{}, m.sendErr
	}
	m.sent = append(m.sent, tx)
	return tx.Signatures[0], nil
}

func (m *MockRPCClient) GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := &rpc.GetSignatureStatusesResult{
		Value: make([]*rpc.SignatureStatusesResult, len(signatures)),
	}
	for i, sig := range signatures {
		out.Value[i] = m.statuses[sig]
	}
	return out, nil
}

func (m *MockRPCClient) IsBlockhashValid(ctx context.Context, hash solana.Hash, commitment rpc.CommitmentType) (*rpc.IsValidBlockhashResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &rpc.IsValidBlockhashResult{Value: m.blockhashValid}, nil
}
