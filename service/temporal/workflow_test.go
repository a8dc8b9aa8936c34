package temporal

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/brojonat/nftpass/service/db"
	solanasvc "github.com/brojonat/nftpass/service/solana"
)

const (
	testSignature = "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW"
	testBlockhash = "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N"
)

func testInput() PurchaseConfirmationInput {
	return PurchaseConfirmationInput{
		Signature:    testSignature,
		Buyer:        "buyer111",
		Mint:         "mint111",
		Seller:       "seller111",
		Amount:       1_000_000,
		Decimals:     6,
		Blockhash:    testBlockhash,
		PollInterval: 2 * time.Second,
		MaxPolls:     5,
	}
}

func newWorkflowEnv(t *testing.T) (*testsuite.TestWorkflowEnvironment, *Activities) {
	t.Helper()
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	activities := &Activities{}
	env.RegisterActivity(activities.CheckPurchaseStatus)
	env.RegisterActivity(activities.RecordPurchaseOutcome)
	env.RegisterActivity(activities.PublishPurchaseEvent)
	return env, activities
}

func TestPurchaseConfirmationWorkflow(t *testing.T) {
	txErr := `{"InstructionError":[1,{"Custom":1}]}`

	tests := []struct {
		name        string
		checks      []*CheckPurchaseStatusResult
		wantStatus  string
		wantPolls   int
		wantErrText bool
	}{
		{
			name:       "confirmed on first poll",
			checks:     []*CheckPurchaseStatusResult{{Outcome: solanasvc.OutcomeConfirmed, Status: solanasvc.StatusConfirmed, Slot: 42}},
			wantStatus: db.StatusConfirmed,
			wantPolls:  1,
		},
		{
			name: "pending then confirmed",
			checks: []*CheckPurchaseStatusResult{
				{Outcome: solanasvc.OutcomePending, Status: solanasvc.StatusUnknown},
				{Outcome: solanasvc.OutcomePending, Status: solanasvc.StatusProcessed},
				{Outcome: solanasvc.OutcomeConfirmed, Status: solanasvc.StatusConfirmed, Slot: 43},
			},
			wantStatus: db.StatusConfirmed,
			wantPolls:  3,
		},
		{
			name:        "failed on chain",
			checks:      []*CheckPurchaseStatusResult{{Outcome: solanasvc.OutcomeFailed, Status: solanasvc.StatusFailed, Error: &txErr}},
			wantStatus:  db.StatusFailed,
			wantPolls:   1,
			wantErrText: true,
		},
		{
			name: "blockhash expired",
			checks: []*CheckPurchaseStatusResult{
				{Outcome: solanasvc.OutcomePending, Status: solanasvc.StatusUnknown},
				{Outcome: solanasvc.OutcomeExpired, Status: solanasvc.StatusUnknown},
			},
			wantStatus: db.StatusExpired,
			wantPolls:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, activities := newWorkflowEnv(t)

			for _, check := range tt.checks {
				env.OnActivity(activities.CheckPurchaseStatus, mock.Anything, mock.Anything).Return(check, nil).Once()
			}

			var recorded RecordPurchaseOutcomeInput
			env.OnActivity(activities.RecordPurchaseOutcome, mock.Anything, mock.Anything).
				Run(func(args mock.Arguments) { recorded = args.Get(1).(RecordPurchaseOutcomeInput) }).
				Return(nil).Once()

			var published PublishPurchaseEventInput
			env.OnActivity(activities.PublishPurchaseEvent, mock.Anything, mock.Anything).
				Run(func(args mock.Arguments) { published = args.Get(1).(PublishPurchaseEventInput) }).
				Return(nil).Once()

			env.ExecuteWorkflow(PurchaseConfirmationWorkflow, testInput())

			require.True(t, env.IsWorkflowCompleted())
			require.NoError(t, env.GetWorkflowError())

			var result PurchaseConfirmationResult
			require.NoError(t, env.GetWorkflowResult(&result))
			assert.Equal(t, tt.wantStatus, result.Status)
			assert.Equal(t, tt.wantPolls, result.Polls)
			assert.Equal(t, tt.wantErrText, result.Error != nil)

			assert.Equal(t, testSignature, recorded.Signature)
			assert.Equal(t, tt.wantStatus, recorded.Status)

			assert.Equal(t, tt.wantStatus, published.Status)
			assert.Equal(t, "buyer111", published.Buyer)
			assert.Equal(t, int64(1_000_000), published.Amount)

			env.AssertExpectations(t)
		})
	}
}

func TestPurchaseConfirmationWorkflow_GivesUpAfterMaxPolls(t *testing.T) {
	env, activities := newWorkflowEnv(t)

	pending := &CheckPurchaseStatusResult{Outcome: solanasvc.OutcomePending, Status: solanasvc.StatusProcessed}
	env.OnActivity(activities.CheckPurchaseStatus, mock.Anything, mock.Anything).Return(pending, nil).Times(5)
	env.OnActivity(activities.RecordPurchaseOutcome, mock.Anything, mock.Anything).Return(nil).Once()
	env.OnActivity(activities.PublishPurchaseEvent, mock.Anything, mock.Anything).Return(nil).Once()

	start := env.Now()
	env.ExecuteWorkflow(PurchaseConfirmationWorkflow, testInput())

	require.NoError(t, env.GetWorkflowError())

	var result PurchaseConfirmationResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, db.StatusExpired, result.Status)
	assert.Equal(t, 5, result.Polls)
	require.NotNil(t, result.Error)
	assert.Contains(t, *result.Error, "after 5 polls")

	// Five polls with a sleep after each one.
	assert.GreaterOrEqual(t, env.Now().Sub(start), 10*time.Second)
}

func TestPurchaseConfirmationWorkflow_CheckError(t *testing.T) {
	env, activities := newWorkflowEnv(t)

	env.OnActivity(activities.CheckPurchaseStatus, mock.Anything, mock.Anything).Return(nil, errors.New("rpc down"))

	env.ExecuteWorkflow(PurchaseConfirmationWorkflow, testInput())

	require.True(t, env.IsWorkflowCompleted())
	assert.Error(t, env.GetWorkflowError())
}

func TestPurchaseConfirmationWorkflow_PublishFailureIsNotFatal(t *testing.T) {
	env, activities := newWorkflowEnv(t)

	confirmed := &CheckPurchaseStatusResult{Outcome: solanasvc.OutcomeConfirmed, Status: solanasvc.StatusFinalized}
	env.OnActivity(activities.CheckPurchaseStatus, mock.Anything, mock.Anything).Return(confirmed, nil)
	env.OnActivity(activities.RecordPurchaseOutcome, mock.Anything, mock.Anything).Return(nil)
	env.OnActivity(activities.PublishPurchaseEvent, mock.Anything, mock.Anything).Return(errors.New("nats down"))

	env.ExecuteWorkflow(PurchaseConfirmationWorkflow, testInput())

	require.NoError(t, env.GetWorkflowError())
	var result PurchaseConfirmationResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, db.StatusConfirmed, result.Status)
}

func TestPurchaseConfirmationWorkflow_Defaults(t *testing.T) {
	env, activities := newWorkflowEnv(t)

	pending := &CheckPurchaseStatusResult{Outcome: solanasvc.OutcomePending}
	env.OnActivity(activities.CheckPurchaseStatus, mock.Anything, mock.Anything).Return(pending, nil).Times(defaultMaxPolls)
	env.OnActivity(activities.RecordPurchaseOutcome, mock.Anything, mock.Anything).Return(nil)
	env.OnActivity(activities.PublishPurchaseEvent, mock.Anything, mock.Anything).Return(nil)

	input := testInput()
	input.PollInterval = 0
	input.MaxPolls = 0
	env.ExecuteWorkflow(PurchaseConfirmationWorkflow, input)

	require.NoError(t, env.GetWorkflowError())
	var result PurchaseConfirmationResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, defaultMaxPolls, result.Polls)
}

func TestWorkflowID(t *testing.T) {
	assert.Equal(t, "purchase-confirmation-abc", WorkflowID("abc"))
}
