package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ESewaConfig holds configuration for the eSewa ePay v2 gateway.
type ESewaConfig struct {
	ProductCode string `env:"ESEWA_PRODUCT_CODE,required"`
	SecretKey   string `env:"ESEWA_SECRET_KEY,required"`
	FormURL     string `env:"ESEWA_FORM_URL" envDefault:"https://epay.esewa.com.np/api/epay/main/v2/form"`
	StatusURL   string `env:"ESEWA_STATUS_URL" envDefault:"https://epay.esewa.com.np/api/epay/transaction/status/"`
}

// ESewaGateway implements Gateway for eSewa. eSewa has no hosted redirect
// API; Initiate returns signed form fields the frontend POSTs to the form
// URL, and Verify polls the transaction status endpoint.
type ESewaGateway struct {
	config ESewaConfig
	client *http.Client
}

// NewESewaGateway creates an eSewa gateway adapter.
func NewESewaGateway(config ESewaConfig, opts ...GatewayOption) (*ESewaGateway, error) {
	if config.ProductCode == "" {
		return nil, errors.New("esewa product code is required")
	}
	if config.SecretKey == "" {
		return nil, errors.New("esewa secret key is required")
	}

	return &ESewaGateway{
		config: config,
		client: applyGatewayOptions(opts),
	}, nil
}

func (g *ESewaGateway) Name() string { return "esewa" }

// Initiate builds the signed form payload. The signature is an HMAC-SHA256
// over the comma-joined signed fields, base64 encoded, per the ePay v2 spec.
func (g *ESewaGateway) Initiate(ctx context.Context, req Request) (*InitiateResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	total := formatAmount(req.Amount)
	signedFields := "total_amount,transaction_uuid,product_code"
	payload := fmt.Sprintf("total_amount=%s,transaction_uuid=%s,product_code=%s",
		total, req.TransactionID, g.config.ProductCode)

	fields := map[string]string{
		"amount":                  total,
		"tax_amount":              "0",
		"total_amount":            total,
		"transaction_uuid":        req.TransactionID,
		"product_code":            g.config.ProductCode,
		"product_service_charge":  "0",
		"product_delivery_charge": "0",
		"success_url":             req.ReturnURL,
		"failure_url":             req.CancelURL,
		"signed_field_names":      signedFields,
		"signature":               g.sign(payload),
	}

	return &InitiateResult{
		Success:       true,
		PaymentURL:    g.config.FormURL,
		TransactionID: req.TransactionID,
		FormFields:    fields,
	}, nil
}

// Verify checks the transaction status endpoint. extra must carry the
// total_amount the transaction was initiated with.
func (g *ESewaGateway) Verify(ctx context.Context, transactionID string, extra map[string]string) (*VerifyResult, error) {
	query := url.Values{}
	query.Set("product_code", g.config.ProductCode)
	query.Set("transaction_uuid", transactionID)
	query.Set("total_amount", extra["total_amount"])

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.config.StatusURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, errors.Join(ErrVerifyFailed, err)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, errors.Join(ErrVerifyFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Join(ErrVerifyFailed, fmt.Errorf("status endpoint returned %d", resp.StatusCode))
	}

	var body struct {
		Status      string `json:"status"`
		RefID       string `json:"ref_id"`
		TotalAmount any    `json:"total_amount"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Join(ErrVerifyFailed, err)
	}

	status := mapESewaStatus(body.Status)
	return &VerifyResult{
		Success:       status == StatusCompleted,
		Status:        status,
		TransactionID: transactionID,
		Amount:        decodeAmount(body.TotalAmount),
	}, nil
}

func (g *ESewaGateway) sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(g.config.SecretKey))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func mapESewaStatus(s string) Status {
	switch strings.ToUpper(s) {
	case "COMPLETE":
		return StatusCompleted
	case "PENDING", "AMBIGUOUS", "NOT_FOUND":
		return StatusPending
	case "FULL_REFUND", "PARTIAL_REFUND":
		return StatusRefunded
	case "CANCELED":
		return StatusCanceled
	default:
		return StatusFailed
	}
}

// decodeAmount tolerates the status API returning total_amount as
// either a JSON number or a string with thousand separators.
func decodeAmount(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n * 100)
	case string:
		cleaned := strings.ReplaceAll(n, ",", "")
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0
		}
		return int64(f * 100)
	default:
		return 0
	}
}

// formatAmount renders a paisa amount as rupees for the form payload.
func formatAmount(paisa int64) string {
	if paisa%100 == 0 {
		return strconv.FormatInt(paisa/100, 10)
	}
	return fmt.Sprintf("%d.%02d", paisa/100, paisa%100)
}

func validateRequest(req Request) error {
	if req.TransactionID == "" {
		return errors.Join(ErrInvalidRequest, errors.New("transaction ID is required"))
	}
	if req.Amount <= 0 {
		return errors.Join(ErrInvalidRequest, errors.New("amount must be positive"))
	}
	return nil
}
