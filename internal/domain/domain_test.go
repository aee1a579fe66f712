package domain

import (
	"context"
	"testing"

	"github.com/relaygate/relaygate/internal/gateway"
	"github.com/relaygate/relaygate/internal/provider"
	"github.com/relaygate/relaygate/internal/store"
)

// captureExecutor records the capability and payload of each call.
type captureExecutor struct {
	capability string
	payload    map[string]any
}

func (c *captureExecutor) Execute(_ context.Context, capability string, payload map[string]any) (*provider.Result, error) {
	c.capability = capability
	c.payload = payload
	return &provider.Result{Output: map[string]any{"ok": true}}, nil
}

func newFlavorGateway(t *testing.T, dom provider.Domain, code string, capabilities []string, exec provider.Executor) *gateway.Gateway {
	t.Helper()
	registry := provider.NewStaticRegistry()
	registry.MustRegister(provider.Metadata{
		Code: code, Domain: dom, Capabilities: capabilities, Priority: 1,
	}, exec)

	gw, err := gateway.New(gateway.Config{Domain: dom, MaxRetries: 1}, registry, store.NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	return gw
}

func TestAI_ChatShapesPayload(t *testing.T) {
	exec := &captureExecutor{}
	ai := NewAI(newFlavorGateway(t, provider.DomainAI, "openai",
		[]string{CapabilityChat, CapabilityComplete, CapabilityEmbedding}, exec))

	res, err := ai.Chat(context.Background(), "gpt-4o", []ChatMessage{
		{Role: "user", Content: "hello"},
	}, "")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !res.Success || res.Provider != "openai" {
		t.Fatalf("result: %+v", res)
	}

	if exec.capability != CapabilityChat {
		t.Errorf("capability = %s", exec.capability)
	}
	if exec.payload["model"] != "gpt-4o" {
		t.Errorf("model = %v", exec.payload["model"])
	}
	msgs, ok := exec.payload["messages"].([]map[string]any)
	if !ok || len(msgs) != 1 || msgs[0]["content"] != "hello" {
		t.Errorf("messages = %v", exec.payload["messages"])
	}
}

func TestAI_ChatOmitsEmptyModel(t *testing.T) {
	exec := &captureExecutor{}
	ai := NewAI(newFlavorGateway(t, provider.DomainAI, "openai",
		[]string{CapabilityChat}, exec))

	if _, err := ai.Chat(context.Background(), "", []ChatMessage{{Role: "user", Content: "hi"}}, ""); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if _, present := exec.payload["model"]; present {
		t.Error("empty model must not appear in the payload")
	}
}

func TestMessaging_SendEmailShapesPayload(t *testing.T) {
	exec := &captureExecutor{}
	m := NewMessaging(newFlavorGateway(t, provider.DomainMessaging, "sendgrid",
		[]string{CapabilitySendEmail, CapabilitySendSMS}, exec))

	if _, err := m.SendEmail(context.Background(), "a@b.example", "subject", "body", ""); err != nil {
		t.Fatalf("send email: %v", err)
	}
	if exec.capability != CapabilitySendEmail {
		t.Errorf("capability = %s", exec.capability)
	}
	if exec.payload["to"] != "a@b.example" || exec.payload["subject"] != "subject" {
		t.Errorf("payload = %v", exec.payload)
	}
}

func TestPayment_AuthorizeShapesPayload(t *testing.T) {
	exec := &captureExecutor{}
	p := NewPayment(newFlavorGateway(t, provider.DomainPayment, "stripe",
		[]string{CapabilityAuthorize, CapabilityCapture}, exec))

	if _, err := p.Authorize(context.Background(), 2500, "EUR", "card", ""); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if exec.capability != CapabilityAuthorize {
		t.Errorf("capability = %s", exec.capability)
	}
	if exec.payload["amount"] != int64(2500) || exec.payload["currency"] != "EUR" {
		t.Errorf("payload = %v", exec.payload)
	}
}
