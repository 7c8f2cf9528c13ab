package payment

import (
	"net/http"
	"time"
)

type gatewayOptions struct {
	client *http.Client
}

// GatewayOption configures a gateway adapter.
type GatewayOption func(*gatewayOptions)

// WithHTTPClient overrides the HTTP client used for gateway calls.
// Intended for tests and custom transport setups.
func WithHTTPClient(client *http.Client) GatewayOption {
	return func(o *gatewayOptions) {
		if client != nil {
			o.client = client
		}
	}
}

func applyGatewayOptions(opts []GatewayOption) *http.Client {
	o := gatewayOptions{client: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(&o)
	}
	return o.client
}
