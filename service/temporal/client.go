package temporal

import (
	"context"
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/client"
)

// Client is a production implementation of Starter that talks to Temporal.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}, nil
}

// StartPurchaseConfirmation starts PurchaseConfirmationWorkflow and returns its workflow ID.
func (c *Client) StartPurchaseConfirmation(ctx context.Context, input PurchaseConfirmationInput) (string, error) {
	id := WorkflowID(input.Signature)

	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        id,
		TaskQueue: c.taskQueue,
		Memo: map[string]interface{}{
			"buyer":      input.Buyer,
			"mint":       input.Mint,
			"created_by": "nftpass",
		},
	}, PurchaseConfirmationWorkflow, input)
	if err != nil {
		c.logger.Error("failed to start purchase confirmation",
			"signature", input.Signature,
			"workflow_id", id,
			"error", err,
		)
		return "", fmt.Errorf("failed to start workflow %q: %w", id, err)
	}

	c.logger.Info("purchase confirmation started",
		"signature", input.Signature,
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
	)
	return run.GetID(), nil
}

// PurchaseConfirmationStatus describes a confirmation workflow execution.
type PurchaseConfirmationStatus struct {
	WorkflowID string                      `json:"workflow_id"`
	RunID      string                      `json:"run_id"`
	Status     string                      `json:"status"`
	Result     *PurchaseConfirmationResult `json:"result,omitempty"`
}

// DescribePurchaseConfirmation reports the execution status of the workflow
// for signature, including its result once completed.
func (c *Client) DescribePurchaseConfirmation(ctx context.Context, signature string) (*PurchaseConfirmationStatus, error) {
	id := WorkflowID(signature)

	desc, err := c.client.DescribeWorkflowExecution(ctx, id, "")
	if err != nil {
		return nil, fmt.Errorf("failed to describe workflow %q: %w", id, err)
	}

	info := desc.GetWorkflowExecutionInfo()
	status := &PurchaseConfirmationStatus{
		WorkflowID: id,
		RunID:      info.GetExecution().GetRunId(),
		Status:     info.GetStatus().String(),
	}

	if info.GetCloseTime() != nil {
		var result PurchaseConfirmationResult
		if err := c.client.GetWorkflow(ctx, id, status.RunID).Get(ctx, &result); err == nil {
			status.Result = &result
		}
	}

	return status, nil
}

// SDKClient returns the underlying Temporal SDK client for direct workflow operations.
func (c *Client) SDKClient() client.Client {
	return c.client
}

// TaskQueue returns the configured task queue for this client.
func (c *Client) TaskQueue() string {
	return c.taskQueue
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
