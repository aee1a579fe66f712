package domain

import (
	"context"

	"github.com/relaygate/relaygate/internal/gateway"
)

// Messaging capability names.
const (
	CapabilitySendEmail      = "send-email"
	CapabilitySendSMS        = "send-sms"
	CapabilitySendPush       = "send-push"
	CapabilityRenderTemplate = "render-template"
)

// Messaging wraps a gateway configured for the messaging domain.
type Messaging struct {
	gw *gateway.Gateway
}

// NewMessaging creates the messaging wrapper.
func NewMessaging(gw *gateway.Gateway) *Messaging { return &Messaging{gw: gw} }

// Gateway exposes the underlying gateway for management surfaces.
func (m *Messaging) Gateway() *gateway.Gateway { return m.gw }

// SendEmail dispatches an email send. Sends are side-effecting and must
// never be listed as cacheable.
func (m *Messaging) SendEmail(ctx context.Context, to, subject, body string, providerHint string) (*gateway.Result, error) {
	return m.gw.Dispatch(ctx, CapabilitySendEmail, map[string]any{
		"to":      to,
		"subject": subject,
		"body":    body,
	}, providerHint)
}

// SendSMS dispatches an SMS send.
func (m *Messaging) SendSMS(ctx context.Context, to, text string, providerHint string) (*gateway.Result, error) {
	return m.gw.Dispatch(ctx, CapabilitySendSMS, map[string]any{
		"to":   to,
		"text": text,
	}, providerHint)
}

// SendPush dispatches a push notification.
func (m *Messaging) SendPush(ctx context.Context, deviceToken, title, body string, providerHint string) (*gateway.Result, error) {
	return m.gw.Dispatch(ctx, CapabilitySendPush, map[string]any{
		"device_token": deviceToken,
		"title":        title,
		"body":         body,
	}, providerHint)
}

// RenderTemplate dispatches a template render. Rendering is read-like and
// deterministic, so its results are typically cacheable.
func (m *Messaging) RenderTemplate(ctx context.Context, template string, vars map[string]any, providerHint string) (*gateway.Result, error) {
	return m.gw.Dispatch(ctx, CapabilityRenderTemplate, map[string]any{
		"template": template,
		"vars":     vars,
	}, providerHint)
}
