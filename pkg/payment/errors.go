package payment

import "errors"

// Domain errors for payment gateway adapters.
var (
	ErrInvalidRequest   = errors.New("payment: invalid payment request")
	ErrInitiationFailed = errors.New("payment: failed to initiate payment")
	ErrVerifyFailed     = errors.New("payment: failed to verify payment")
	ErrUnexpectedStatus = errors.New("payment: unexpected gateway status")
)
