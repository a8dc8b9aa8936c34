package temporal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/brojonat/nftpass/service/db"
	natspkg "github.com/brojonat/nftpass/service/nats"
	solanasvc "github.com/brojonat/nftpass/service/solana"
)

// Mock Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) UpdateStatus(ctx context.Context, signature, status string, txErr *string) (*db.Purchase, error) {
	args := m.Called(ctx, signature, status, txErr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.Purchase), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newChecker(rpcClient solanasvc.RPCClient) *solanasvc.Confirmer {
	client := solanasvc.NewClient(rpcClient, "test", nil, testLogger()).
		WithRetryPolicy(1, func() backoff.BackOff { return &backoff.ZeroBackOff{} })
	return solanasvc.NewConfirmer(client, time.Millisecond, time.Second, testLogger())
}

func TestCheckPurchaseStatus(t *testing.T) {
	sig := solanago.MustSignatureFromBase58(testSignature)

	tests := []struct {
		name           string
		setup          func(*solanasvc.MockRPCClient)
		blockhash      string
		wantOutcome    string
		wantStatus     string
		wantErrMessage bool
	}{
		{
			name:        "unseen with valid blockhash",
			setup:       func(m *solanasvc.MockRPCClient) {},
			blockhash:   testBlockhash,
			wantOutcome: solanasvc.OutcomePending,
			wantStatus:  solanasvc.StatusUnknown,
		},
		{
			name:        "unseen with expired blockhash",
			setup:       func(m *solanasvc.MockRPCClient) { m.SetBlockhashValid(false) },
			blockhash:   testBlockhash,
			wantOutcome: solanasvc.OutcomeExpired,
			wantStatus:  solanasvc.StatusUnknown,
		},
		{
			name:        "unseen without blockhash",
			setup:       func(m *solanasvc.MockRPCClient) { m.SetBlockhashValid(false) },
			wantOutcome: solanasvc.OutcomePending,
			wantStatus:  solanasvc.StatusUnknown,
		},
		{
			name: "confirmed",
			setup: func(m *solanasvc.MockRPCClient) {
				m.SetSignatureStatus(sig, rpc.ConfirmationStatusConfirmed, nil)
			},
			blockhash:   testBlockhash,
			wantOutcome: solanasvc.OutcomeConfirmed,
			wantStatus:  solanasvc.StatusConfirmed,
		},
		{
			name: "failed",
			setup: func(m *solanasvc.MockRPCClient) {
				m.SetSignatureStatus(sig, rpc.ConfirmationStatusConfirmed, map[string]any{"InstructionError": []any{1, "Custom"}})
			},
			blockhash:      testBlockhash,
			wantOutcome:    solanasvc.OutcomeFailed,
			wantStatus:     solanasvc.StatusFailed,
			wantErrMessage: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rpcMock := solanasvc.NewMockRPCClient()
			tt.setup(rpcMock)
			activities := NewActivities(nil, newChecker(rpcMock), nil, nil, testLogger())

			result, err := activities.CheckPurchaseStatus(context.Background(), CheckPurchaseStatusInput{
				Signature: testSignature,
				Blockhash: tt.blockhash,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, result.Outcome)
			assert.Equal(t, tt.wantStatus, result.Status)
			assert.Equal(t, tt.wantErrMessage, result.Error != nil)
		})
	}
}

func TestCheckPurchaseStatus_InvalidInput(t *testing.T) {
	activities := NewActivities(nil, newChecker(solanasvc.NewMockRPCClient()), nil, nil, testLogger())

	_, err := activities.CheckPurchaseStatus(context.Background(), CheckPurchaseStatusInput{Signature: "not-a-signature"})
	assert.Error(t, err)

	_, err = activities.CheckPurchaseStatus(context.Background(), CheckPurchaseStatusInput{Signature: testSignature, Blockhash: "bad!"})
	assert.Error(t, err)
}

func TestRecordPurchaseOutcome(t *testing.T) {
	ctx := context.Background()

	t.Run("updates journal", func(t *testing.T) {
		store := new(MockStore)
		store.On("UpdateStatus", mock.Anything, testSignature, db.StatusConfirmed, (*string)(nil)).
			Return(&db.Purchase{Signature: testSignature, Status: db.StatusConfirmed}, nil)

		activities := NewActivities(store, nil, nil, nil, testLogger())
		err := activities.RecordPurchaseOutcome(ctx, RecordPurchaseOutcomeInput{Signature: testSignature, Status: db.StatusConfirmed})
		require.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("missing row is not an error", func(t *testing.T) {
		store := new(MockStore)
		store.On("UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, db.ErrPurchaseNotFound)

		activities := NewActivities(store, nil, nil, nil, testLogger())
		assert.NoError(t, activities.RecordPurchaseOutcome(ctx, RecordPurchaseOutcomeInput{Signature: testSignature, Status: db.StatusExpired}))
	})

	t.Run("database error is returned", func(t *testing.T) {
		store := new(MockStore)
		store.On("UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("connection refused"))

		activities := NewActivities(store, nil, nil, nil, testLogger())
		assert.Error(t, activities.RecordPurchaseOutcome(ctx, RecordPurchaseOutcomeInput{Signature: testSignature, Status: db.StatusFailed}))
	})

	t.Run("journal disabled", func(t *testing.T) {
		activities := NewActivities(nil, nil, nil, nil, testLogger())
		assert.NoError(t, activities.RecordPurchaseOutcome(ctx, RecordPurchaseOutcomeInput{Signature: testSignature}))
	})
}

func TestPublishPurchaseEvent(t *testing.T) {
	ctx := context.Background()
	input := PublishPurchaseEventInput{
		Signature: testSignature,
		Buyer:     "buyer111",
		Mint:      "mint111",
		Seller:    "seller111",
		Amount:    1_000_000,
		Decimals:  6,
		Status:    db.StatusConfirmed,
	}

	t.Run("publishes event", func(t *testing.T) {
		publisher := natspkg.NewMockPublisher()
		activities := NewActivities(nil, nil, publisher, nil, testLogger())

		require.NoError(t, activities.PublishPurchaseEvent(ctx, input))

		events := publisher.GetPublishedEventsForBuyer("buyer111")
		require.Len(t, events, 1)
		assert.Equal(t, testSignature, events[0].Signature)
		assert.Equal(t, db.StatusConfirmed, events[0].Status)
		assert.Equal(t, int64(1_000_000), events[0].Amount)
	})

	t.Run("publish error", func(t *testing.T) {
		publisher := natspkg.NewMockPublisher()
		publisher.SetPublishError(errors.New("nats down"))
		activities := NewActivities(nil, nil, publisher, nil, testLogger())

		assert.Error(t, activities.PublishPurchaseEvent(ctx, input))
	})

	t.Run("publisher disabled", func(t *testing.T) {
		activities := NewActivities(nil, nil, nil, nil, testLogger())
		assert.NoError(t, activities.PublishPurchaseEvent(ctx, input))
	})
}

func TestMockStarter(t *testing.T) {
	starter := NewMockStarter()

	id, err := starter.StartPurchaseConfirmation(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, WorkflowID(testSignature), id)

	_, err = starter.StartPurchaseConfirmation(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, 1, starter.Count())

	input, ok := starter.Started(testSignature)
	require.True(t, ok)
	assert.Equal(t, "buyer111", input.Buyer)

	starter.SetStartError(errors.New("temporal down"))
	_, err = starter.StartPurchaseConfirmation(context.Background(), PurchaseConfirmationInput{Signature: "other"})
	assert.Error(t, err)
}

var _ Starter = (*Client)(nil)
var _ Starter = (*MockStarter)(nil)
var _ StatusChecker = (*solanasvc.Confirmer)(nil)
