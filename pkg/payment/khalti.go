package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// KhaltiConfig holds configuration for the Khalti ePayment gateway.
type KhaltiConfig struct {
	SecretKey  string `env:"KHALTI_SECRET_KEY,required"`
	BaseURL    string `env:"KHALTI_BASE_URL" envDefault:"https://khalti.com/api/v2"`
	WebsiteURL string `env:"KHALTI_WEBSITE_URL,required"`
}

// KhaltiGateway implements Gateway for Khalti's ePayment API: a JSON initiate
// call returning a hosted payment URL, then a lookup call keyed by pidx.
type KhaltiGateway struct {
	config KhaltiConfig
	client *http.Client
}

// NewKhaltiGateway creates a Khalti gateway adapter.
func NewKhaltiGateway(config KhaltiConfig, opts ...GatewayOption) (*KhaltiGateway, error) {
	if config.SecretKey == "" {
		return nil, errors.New("khalti secret key is required")
	}

	return &KhaltiGateway{
		config: config,
		client: applyGatewayOptions(opts),
	}, nil
}

func (g *KhaltiGateway) Name() string { return "khalti" }

// Initiate creates an ePayment session. The returned TransactionID is
// Khalti's pidx, which Verify needs back.
func (g *KhaltiGateway) Initiate(ctx context.Context, req Request) (*InitiateResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	payload := map[string]any{
		"return_url":          req.ReturnURL,
		"website_url":         g.config.WebsiteURL,
		"amount":              req.Amount,
		"purchase_order_id":   req.TransactionID,
		"purchase_order_name": req.ProductName,
	}

	var body struct {
		Pidx       string `json:"pidx"`
		PaymentURL string `json:"payment_url"`
	}
	if err := g.post(ctx, "/epayment/initiate/", payload, &body); err != nil {
		return nil, errors.Join(ErrInitiationFailed, err)
	}
	if body.Pidx == "" || body.PaymentURL == "" {
		return nil, errors.Join(ErrInitiationFailed, errors.New("incomplete initiate response"))
	}

	return &InitiateResult{
		Success:       true,
		PaymentURL:    body.PaymentURL,
		TransactionID: body.Pidx,
	}, nil
}

// Verify looks up the payment state by pidx. transactionID is the pidx
// returned from Initiate; extra is unused.
func (g *KhaltiGateway) Verify(ctx context.Context, transactionID string, extra map[string]string) (*VerifyResult, error) {
	var body struct {
		Pidx        string `json:"pidx"`
		TotalAmount int64  `json:"total_amount"`
		Status      string `json:"status"`
	}
	if err := g.post(ctx, "/epayment/lookup/", map[string]any{"pidx": transactionID}, &body); err != nil {
		return nil, errors.Join(ErrVerifyFailed, err)
	}

	status := mapKhaltiStatus(body.Status)
	return &VerifyResult{
		Success:       status == StatusCompleted,
		Status:        status,
		TransactionID: body.Pidx,
		Amount:        body.TotalAmount,
	}, nil
}

func (g *KhaltiGateway) post(ctx context.Context, path string, payload any, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(g.config.BaseURL, "/")+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "key "+g.config.SecretKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("khalti returned %d for %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func mapKhaltiStatus(s string) Status {
	switch strings.ToLower(s) {
	case "completed":
		return StatusCompleted
	case "pending", "initiated":
		return StatusPending
	case "refunded", "partially refunded":
		return StatusRefunded
	case "user canceled":
		return StatusCanceled
	default:
		return StatusFailed
	}
}
