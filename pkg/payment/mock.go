package payment

import (
	"context"
	"sync"
)

// MockGateway is a configurable in-memory Gateway for tests and local
// development. Initiated transactions verify as completed unless a different
// status is set.
type MockGateway struct {
	mu       sync.Mutex
	statuses map[string]Status
	amounts  map[string]int64
	failNext error
}

// NewMockGateway creates a mock gateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		statuses: make(map[string]Status),
		amounts:  make(map[string]int64),
	}
}

func (g *MockGateway) Name() string { return "mock" }

// SetStatus overrides the verify outcome for a transaction.
func (g *MockGateway) SetStatus(transactionID string, status Status) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[transactionID] = status
}

// FailNext makes the next Initiate or Verify call return err.
func (g *MockGateway) FailNext(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failNext = err
}

func (g *MockGateway) Initiate(ctx context.Context, req Request) (*InitiateResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.takeFailure(); err != nil {
		return nil, err
	}

	if _, ok := g.statuses[req.TransactionID]; !ok {
		g.statuses[req.TransactionID] = StatusCompleted
	}
	g.amounts[req.TransactionID] = req.Amount

	return &InitiateResult{
		Success:       true,
		PaymentURL:    "https://pay.example.test/" + req.TransactionID,
		TransactionID: req.TransactionID,
	}, nil
}

func (g *MockGateway) Verify(ctx context.Context, transactionID string, extra map[string]string) (*VerifyResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.takeFailure(); err != nil {
		return nil, err
	}

	status, ok := g.statuses[transactionID]
	if !ok {
		status = StatusFailed
	}

	return &VerifyResult{
		Success:       status == StatusCompleted,
		Status:        status,
		TransactionID: transactionID,
		Amount:        g.amounts[transactionID],
	}, nil
}

func (g *MockGateway) takeFailure() error {
	err := g.failNext
	g.failNext = nil
	return err
}
