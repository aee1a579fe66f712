package domain

import (
	"context"

	"github.com/relaygate/relaygate/internal/gateway"
)

// Payment capability names.
const (
	CapabilityAuthorize = "authorize"
	CapabilityCapture   = "capture"
	CapabilityRefund    = "refund"
	CapabilityValidate  = "validate-card"
)

// Payment wraps a gateway configured for the payment domain.
type Payment struct {
	gw *gateway.Gateway
}

// NewPayment creates the payment wrapper.
func NewPayment(gw *gateway.Gateway) *Payment { return &Payment{gw: gw} }

// Gateway exposes the underlying gateway for management surfaces.
func (p *Payment) Gateway() *gateway.Gateway { return p.gw }

// Authorize dispatches a payment authorization. Amount is in minor units.
func (p *Payment) Authorize(ctx context.Context, amount int64, currency, method string, providerHint string) (*gateway.Result, error) {
	return p.gw.Dispatch(ctx, CapabilityAuthorize, map[string]any{
		"amount":   amount,
		"currency": currency,
		"method":   method,
	}, providerHint)
}

// Capture dispatches a capture of a prior authorization.
func (p *Payment) Capture(ctx context.Context, authorizationID string, amount int64, providerHint string) (*gateway.Result, error) {
	return p.gw.Dispatch(ctx, CapabilityCapture, map[string]any{
		"authorization_id": authorizationID,
		"amount":           amount,
	}, providerHint)
}

// Refund dispatches a refund against a captured payment.
func (p *Payment) Refund(ctx context.Context, captureID string, amount int64, providerHint string) (*gateway.Result, error) {
	return p.gw.Dispatch(ctx, CapabilityRefund, map[string]any{
		"capture_id": captureID,
		"amount":     amount,
	}, providerHint)
}

// ValidateCard dispatches a card validation. Validation is read-like and may
// be cached.
func (p *Payment) ValidateCard(ctx context.Context, pan, expiry string, providerHint string) (*gateway.Result, error) {
	return p.gw.Dispatch(ctx, CapabilityValidate, map[string]any{
		"pan":    pan,
		"expiry": expiry,
	}, providerHint)
}
