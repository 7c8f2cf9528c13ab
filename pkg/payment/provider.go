package payment

import "context"

// Status is the normalized payment state across gateways. Each adapter maps
// its provider-specific status strings to these values.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusPending   Status = "pending"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
	StatusCanceled  Status = "canceled"
)

// Request contains the data needed to start a payment.
type Request struct {
	TransactionID string // Merchant-side reference, unique per purchase
	Amount        int64  // Smallest currency unit (paisa for NPR)
	Currency      string
	ProductName   string
	ReturnURL     string // Redirect after the customer completes payment
	CancelURL     string // Redirect if the customer backs out
}

// InitiateResult is the normalized outcome of starting a payment.
type InitiateResult struct {
	Success       bool
	PaymentURL    string            // Where to send the customer
	TransactionID string            // Gateway-side reference for verification
	FormFields    map[string]string // Non-empty for gateways requiring a client-side form POST
}

// VerifyResult is the normalized outcome of verifying a payment. The billing
// service attaches a plan only when Success is true and Status is completed.
type VerifyResult struct {
	Success       bool
	Status        Status
	TransactionID string
	Amount        int64 // Smallest currency unit as confirmed by the gateway
}

// Gateway is a payment provider adapter. Implementations handle
// provider-specific signing and status mapping internally; callers only see
// the normalized request and result types.
type Gateway interface {
	// Name returns the gateway identifier (esewa, khalti, fonepay, mock).
	Name() string

	// Initiate starts a payment and returns where to send the customer.
	Initiate(ctx context.Context, req Request) (*InitiateResult, error)

	// Verify confirms a payment's final state with the gateway. extra holds
	// provider-specific callback parameters (e.g. Khalti's pidx).
	Verify(ctx context.Context, transactionID string, extra map[string]string) (*VerifyResult, error)
}
