package solana

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfirmer(mock *MockRPCClient, timeout time.Duration) *Confirmer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewConfirmer(newTestClient(mock), 10*time.Millisecond, timeout, logger)
}

func TestConfirmerCheck(t *testing.T) {
	sig := solana.Signature{7}
	hash := solana.Hash{1}

	tests := []struct {
		name           string
		status         rpc.ConfirmationStatusType
		txErr          any
		blockhashValid bool
		want           string
	}{
		{name: "unseen with live blockhash", blockhashValid: true, want: OutcomePending},
		{name: "unseen with dead blockhash", blockhashValid: false, want: OutcomeExpired},
		{name: "processed", status: rpc.ConfirmationStatusProcessed, blockhashValid: false, want: OutcomePending},
		{name: "confirmed", status: rpc.ConfirmationStatusConfirmed, want: OutcomeConfirmed},
		{name: "failed", status: rpc.ConfirmationStatusConfirmed, txErr: "custom program error: 0x1", want: OutcomeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockRPCClient()
			mock.SetSignatureStatus(sig, tt.status, tt.txErr)
			mock.SetBlockhashValid(tt.blockhashValid)

			conf, err := newTestConfirmer(mock, time.Second).Check(context.Background(), sig, hash)
			require.NoError(t, err)
			assert.Equal(t, tt.want, conf.Outcome)
		})
	}
}

func TestConfirmerWait_Confirmed(t *testing.T) {
	mock := NewMockRPCClient()
	sig := solana.Signature{8}
	mock.SetSignatureStatus(sig, rpc.ConfirmationStatusFinalized, nil)

	st, err := newTestConfirmer(mock, time.Second).Wait(context.Background(), sig, solana.Hash{1})
	require.NoError(t, err)
	assert.Equal(t, StatusFinalized, st.Status)
}

func TestConfirmerWait_BecomesConfirmed(t *testing.T) {
	mock := NewMockRPCClient()
	sig := solana.Signature{9}

	go func() {
		time.Sleep(30 * time.Millisecond)
		mock.SetSignatureStatus(sig, rpc.ConfirmationStatusConfirmed, nil)
	}()

	st, err := newTestConfirmer(mock, 2*time.Second).Wait(context.Background(), sig, solana.Hash{1})
	require.NoError(t, err)
	assert.True(t, st.Landed())
}

func TestConfirmerWait_Failed(t *testing.T) {
	mock := NewMockRPCClient()
	sig := solana.Signature{10}
	mock.SetSignatureStatus(sig, rpc.ConfirmationStatusConfirmed, "custom program error: 0x1")

	_, err := newTestConfirmer(mock, time.Second).Wait(context.Background(), sig, solana.Hash{1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransactionFailed)
	assert.Contains(t, err.Error(), "0x1")
}

func TestConfirmerWait_Expired(t *testing.T) {
	mock := NewMockRPCClient()
	mock.SetBlockhashValid(false)

	_, err := newTestConfirmer(mock, time.Second).Wait(context.Background(), solana.Signature{11}, solana.Hash{1})
	assert.ErrorIs(t, err, ErrBlockhashExpired)
}

func TestConfirmerWait_Timeout(t *testing.T) {
	mock := NewMockRPCClient()

	_, err := newTestConfirmer(mock, 50*time.Millisecond).Wait(context.Background(), solana.Signature{12}, solana.Hash{1})
	assert.ErrorIs(t, err, ErrConfirmationTimeout)
}
