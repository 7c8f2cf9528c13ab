package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// FonepayConfig holds configuration for the Fonepay redirect gateway.
type FonepayConfig struct {
	MerchantCode string `env:"FONEPAY_MERCHANT_CODE,required"`
	SecretKey    string `env:"FONEPAY_SECRET_KEY,required"`
	PaymentURL   string `env:"FONEPAY_PAYMENT_URL" envDefault:"https://clientapi.fonepay.com/api/merchantRequest"`
	VerifyURL    string `env:"FONEPAY_VERIFY_URL" envDefault:"https://clientapi.fonepay.com/api/merchantRequest/verificationMerchant"`
}

// FonepayGateway implements Gateway for Fonepay. The redirect URL carries the
// request parameters plus a DV checksum (HMAC-SHA512 over the comma-joined
// values); verification replays the PRN against the merchant API.
type FonepayGateway struct {
	config FonepayConfig
	client *http.Client
	now    func() time.Time
}

// NewFonepayGateway creates a Fonepay gateway adapter.
func NewFonepayGateway(config FonepayConfig, opts ...GatewayOption) (*FonepayGateway, error) {
	if config.MerchantCode == "" {
		return nil, errors.New("fonepay merchant code is required")
	}
	if config.SecretKey == "" {
		return nil, errors.New("fonepay secret key is required")
	}

	return &FonepayGateway{
		config: config,
		client: applyGatewayOptions(opts),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (g *FonepayGateway) Name() string { return "fonepay" }

// Initiate builds the signed redirect URL.
func (g *FonepayGateway) Initiate(ctx context.Context, req Request) (*InitiateResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	amount := formatAmount(req.Amount)
	date := g.now().Format("01/02/2006")

	params := url.Values{}
	params.Set("PID", g.config.MerchantCode)
	params.Set("MD", "P")
	params.Set("PRN", req.TransactionID)
	params.Set("AMT", amount)
	params.Set("CRN", req.Currency)
	params.Set("DT", date)
	params.Set("R1", req.ProductName)
	params.Set("R2", "N/A")
	params.Set("RU", req.ReturnURL)

	// DV covers the fields in protocol order.
	dv := g.sign(strings.Join([]string{
		g.config.MerchantCode, "P", req.TransactionID, amount, req.Currency,
		date, req.ProductName, "N/A", req.ReturnURL,
	}, ","))
	params.Set("DV", dv)

	return &InitiateResult{
		Success:       true,
		PaymentURL:    g.config.PaymentURL + "?" + params.Encode(),
		TransactionID: req.TransactionID,
	}, nil
}

// Verify replays the PRN against the merchant verification API. extra must
// carry the bank reference (BID) and amount from the redirect callback.
func (g *FonepayGateway) Verify(ctx context.Context, transactionID string, extra map[string]string) (*VerifyResult, error) {
	params := url.Values{}
	params.Set("PRN", transactionID)
	params.Set("PID", g.config.MerchantCode)
	params.Set("BID", extra["BID"])
	params.Set("AMT", extra["AMT"])
	params.Set("DV", g.sign(strings.Join([]string{
		g.config.MerchantCode, extra["AMT"], transactionID, extra["BID"],
	}, ",")))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.config.VerifyURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Join(ErrVerifyFailed, err)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, errors.Join(ErrVerifyFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Join(ErrVerifyFailed, fmt.Errorf("verification endpoint returned %d", resp.StatusCode))
	}

	var body struct {
		PaymentStatus string `json:"paymentStatus"`
		Prn           string `json:"prn"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Join(ErrVerifyFailed, err)
	}

	status := mapFonepayStatus(body.PaymentStatus)
	return &VerifyResult{
		Success:       status == StatusCompleted,
		Status:        status,
		TransactionID: transactionID,
		Amount:        decodeAmount(extra["AMT"]),
	}, nil
}

func (g *FonepayGateway) sign(payload string) string {
	mac := hmac.New(sha512.New, []byte(g.config.SecretKey))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func mapFonepayStatus(s string) Status {
	switch strings.ToLower(s) {
	case "success":
		return StatusCompleted
	case "pending":
		return StatusPending
	default:
		return StatusFailed
	}
}
