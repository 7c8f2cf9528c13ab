package payment_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paisakit/paisakit/pkg/payment"
)

func TestMockGateway(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("initiate then verify completes", func(t *testing.T) {
		t.Parallel()
		g := payment.NewMockGateway()

		res, err := g.Initiate(ctx, payment.Request{
			TransactionID: "txn-1",
			Amount:        99900,
			Currency:      "NPR",
			ProductName:   "Pro plan",
		})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.NotEmpty(t, res.PaymentURL)

		verified, err := g.Verify(ctx, "txn-1", nil)
		require.NoError(t, err)
		assert.True(t, verified.Success)
		assert.Equal(t, payment.StatusCompleted, verified.Status)
		assert.EqualValues(t, 99900, verified.Amount)
	})

	t.Run("configured failure status", func(t *testing.T) {
		t.Parallel()
		g := payment.NewMockGateway()
		g.SetStatus("txn-2", payment.StatusFailed)

		_, err := g.Initiate(ctx, payment.Request{TransactionID: "txn-2", Amount: 100})
		require.NoError(t, err)

		verified, err := g.Verify(ctx, "txn-2", nil)
		require.NoError(t, err)
		assert.False(t, verified.Success)
		assert.Equal(t, payment.StatusFailed, verified.Status)
	})

	t.Run("unknown transaction fails", func(t *testing.T) {
		t.Parallel()
		g := payment.NewMockGateway()
		verified, err := g.Verify(ctx, "never-initiated", nil)
		require.NoError(t, err)
		assert.False(t, verified.Success)
	})

	t.Run("injected error", func(t *testing.T) {
		t.Parallel()
		g := payment.NewMockGateway()
		boom := errors.New("gateway down")
		g.FailNext(boom)
		_, err := g.Initiate(ctx, payment.Request{TransactionID: "txn-3", Amount: 100})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("invalid request", func(t *testing.T) {
		t.Parallel()
		g := payment.NewMockGateway()
		_, err := g.Initiate(ctx, payment.Request{Amount: 100})
		assert.ErrorIs(t, err, payment.ErrInvalidRequest)
	})
}

func TestESewaGateway(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("initiate signs form fields", func(t *testing.T) {
		t.Parallel()
		g, err := payment.NewESewaGateway(payment.ESewaConfig{
			ProductCode: "EPAYTEST",
			SecretKey:   "8gBm/:&EnhH.1/q",
			FormURL:     "https://rc-epay.esewa.com.np/api/epay/main/v2/form",
		})
		require.NoError(t, err)

		res, err := g.Initiate(ctx, payment.Request{
			TransactionID: "11-201-13",
			Amount:        10000,
			Currency:      "NPR",
			ReturnURL:     "https://example.test/success",
			CancelURL:     "https://example.test/failure",
		})
		require.NoError(t, err)
		require.True(t, res.Success)
		assert.Equal(t, "100", res.FormFields["total_amount"])
		assert.Equal(t, "EPAYTEST", res.FormFields["product_code"])

		mac := hmac.New(sha256.New, []byte("8gBm/:&EnhH.1/q"))
		mac.Write([]byte("total_amount=100,transaction_uuid=11-201-13,product_code=EPAYTEST"))
		want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
		assert.Equal(t, want, res.FormFields["signature"])
	})

	t.Run("verify maps COMPLETE", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "EPAYTEST", r.URL.Query().Get("product_code"))
			assert.Equal(t, "11-201-13", r.URL.Query().Get("transaction_uuid"))
			json.NewEncoder(w).Encode(map[string]any{
				"status":       "COMPLETE",
				"ref_id":       "0001TXN",
				"total_amount": 100.0,
			})
		}))
		defer srv.Close()

		g, err := payment.NewESewaGateway(payment.ESewaConfig{
			ProductCode: "EPAYTEST",
			SecretKey:   "secret",
			StatusURL:   srv.URL,
		}, payment.WithHTTPClient(srv.Client()))
		require.NoError(t, err)

		verified, err := g.Verify(ctx, "11-201-13", map[string]string{"total_amount": "100"})
		require.NoError(t, err)
		assert.True(t, verified.Success)
		assert.Equal(t, payment.StatusCompleted, verified.Status)
		assert.EqualValues(t, 10000, verified.Amount)
	})

	t.Run("missing config rejected", func(t *testing.T) {
		t.Parallel()
		_, err := payment.NewESewaGateway(payment.ESewaConfig{ProductCode: "EPAYTEST"})
		assert.Error(t, err)
	})
}

func TestKhaltiGateway(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("initiate and lookup", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "key test-secret", r.Header.Get("Authorization"))
			switch r.URL.Path {
			case "/epayment/initiate/":
				var payload map[string]any
				require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
				assert.EqualValues(t, 99900, payload["amount"])
				json.NewEncoder(w).Encode(map[string]string{
					"pidx":        "bZQLD9wRVWo4CdESSfuSsB",
					"payment_url": "https://test-pay.khalti.com/?pidx=bZQLD9wRVWo4CdESSfuSsB",
				})
			case "/epayment/lookup/":
				json.NewEncoder(w).Encode(map[string]any{
					"pidx":         "bZQLD9wRVWo4CdESSfuSsB",
					"total_amount": 99900,
					"status":       "Completed",
				})
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		defer srv.Close()

		g, err := payment.NewKhaltiGateway(payment.KhaltiConfig{
			SecretKey:  "test-secret",
			BaseURL:    srv.URL,
			WebsiteURL: "https://example.test",
		}, payment.WithHTTPClient(srv.Client()))
		require.NoError(t, err)

		res, err := g.Initiate(ctx, payment.Request{
			TransactionID: "order-42",
			Amount:        99900,
			Currency:      "NPR",
			ProductName:   "Pro plan",
			ReturnURL:     "https://example.test/return",
		})
		require.NoError(t, err)
		assert.Equal(t, "bZQLD9wRVWo4CdESSfuSsB", res.TransactionID)
		assert.NotEmpty(t, res.PaymentURL)

		verified, err := g.Verify(ctx, res.TransactionID, nil)
		require.NoError(t, err)
		assert.True(t, verified.Success)
		assert.EqualValues(t, 99900, verified.Amount)
	})

	t.Run("pending lookup is not success", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"pidx":         "p1",
				"total_amount": 500,
				"status":       "Pending",
			})
		}))
		defer srv.Close()

		g, err := payment.NewKhaltiGateway(payment.KhaltiConfig{
			SecretKey: "test-secret",
			BaseURL:   srv.URL,
		}, payment.WithHTTPClient(srv.Client()))
		require.NoError(t, err)

		verified, err := g.Verify(ctx, "p1", nil)
		require.NoError(t, err)
		assert.False(t, verified.Success)
		assert.Equal(t, payment.StatusPending, verified.Status)
	})

	t.Run("http error wrapped", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		g, err := payment.NewKhaltiGateway(payment.KhaltiConfig{
			SecretKey: "bad-secret",
			BaseURL:   srv.URL,
		}, payment.WithHTTPClient(srv.Client()))
		require.NoError(t, err)

		_, err = g.Verify(ctx, "p1", nil)
		assert.ErrorIs(t, err, payment.ErrVerifyFailed)
	})
}

func TestFonepayGateway(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("initiate builds signed redirect", func(t *testing.T) {
		t.Parallel()
		g, err := payment.NewFonepayGateway(payment.FonepayConfig{
			MerchantCode: "NBQM",
			SecretKey:    "a7e3512f5032480a83137793cb2021dc",
			PaymentURL:   "https://dev-clientapi.fonepay.com/api/merchantRequest",
		})
		require.NoError(t, err)

		res, err := g.Initiate(ctx, payment.Request{
			TransactionID: "prn-77",
			Amount:        50000,
			Currency:      "NPR",
			ProductName:   "Pro plan",
			ReturnURL:     "https://example.test/return",
		})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Contains(t, res.PaymentURL, "PRN=prn-77")
		assert.Contains(t, res.PaymentURL, "DV=")
	})

	t.Run("verify maps success", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "prn-77", r.URL.Query().Get("PRN"))
			json.NewEncoder(w).Encode(map[string]string{
				"paymentStatus": "success",
				"prn":           "prn-77",
			})
		}))
		defer srv.Close()

		g, err := payment.NewFonepayGateway(payment.FonepayConfig{
			MerchantCode: "NBQM",
			SecretKey:    "secret",
			VerifyURL:    srv.URL,
		}, payment.WithHTTPClient(srv.Client()))
		require.NoError(t, err)

		verified, err := g.Verify(ctx, "prn-77", map[string]string{"BID": "bank-1", "AMT": "500"})
		require.NoError(t, err)
		assert.True(t, verified.Success)
		assert.EqualValues(t, 50000, verified.Amount)
	})
}
