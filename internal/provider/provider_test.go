// Copyright 2026 The relaygate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func chatExec() Executor {
	return ExecFunc(func(_ context.Context, _ string, _ map[string]any) (*Result, error) {
		return &Result{Output: map[string]any{"ok": true}}, nil
	})
}

func TestStaticRegistry_RegisterAndLookup(t *testing.T) {
	r := NewStaticRegistry()
	meta := Metadata{Code: "openai", Domain: DomainAI, Capabilities: []string{"chat"}, Priority: 2}
	if err := r.Register(meta, chatExec()); err != nil {
		t.Fatalf("register: %v", err)
	}

	exec, ok := r.Get("openai")
	if !ok || exec == nil {
		t.Fatal("registered provider not found")
	}
	if _, ok := r.Get("missing"); ok {
		t.Fatal("unregistered code must not resolve")
	}
}

func TestStaticRegistry_RejectsInvalidRegistrations(t *testing.T) {
	r := NewStaticRegistry()
	valid := Metadata{Code: "openai", Domain: DomainAI, Capabilities: []string{"chat"}}

	if err := r.Register(Metadata{Domain: DomainAI, Capabilities: []string{"chat"}}, chatExec()); err == nil {
		t.Error("empty code accepted")
	}
	if err := r.Register(valid, nil); err == nil {
		t.Error("nil executor accepted")
	}
	if err := r.Register(Metadata{Code: "x", Domain: DomainAI}, chatExec()); err == nil {
		t.Error("empty capability list accepted")
	}

	if err := r.Register(valid, chatExec()); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(valid, chatExec()); err == nil {
		t.Error("duplicate code accepted")
	}
}

func TestStaticRegistry_ListOrdersByPriority(t *testing.T) {
	r := NewStaticRegistry()
	for code, prio := range map[string]int{"mistral": 3, "openai": 1, "anthropic": 2} {
		r.MustRegister(Metadata{
			Code: code, Domain: DomainAI, Capabilities: []string{"chat"}, Priority: prio,
		}, chatExec())
	}

	list := r.List()
	want := []string{"openai", "anthropic", "mistral"}
	for i, code := range want {
		if list[i].Code != code {
			t.Fatalf("list order: got %v", list)
		}
	}
}

func TestMetadata_Supports(t *testing.T) {
	m := Metadata{Code: "sendgrid", Domain: DomainMessaging, Capabilities: []string{"send-email", "render-template"}}
	if !m.Supports("send-email") {
		t.Error("advertised capability not supported")
	}
	if m.Supports("send-sms") {
		t.Error("unadvertised capability supported")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"typed auth", NewError(KindAuth, "openai", "bad key", nil), KindAuth},
		{"typed quota", NewError(KindQuota, "openai", "exhausted", nil), KindQuota},
		{"typed timeout", NewError(KindTimeout, "openai", "slow", nil), KindTimeout},
		{"wrapped typed", fmt.Errorf("dispatch: %w", NewError(KindAuth, "openai", "bad key", nil)), KindAuth},
		{"context deadline", context.DeadlineExceeded, KindTimeout},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), KindTimeout},
		{"plain error", errors.New("boom"), KindGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(NewError(KindAuth, "p", "denied", nil)) {
		t.Error("auth failures must not be retried")
	}
	if IsRetryable(NewError(KindQuota, "p", "exhausted", nil)) {
		t.Error("quota failures must not be retried")
	}
	if !IsRetryable(NewError(KindTimeout, "p", "slow", nil)) {
		t.Error("timeouts should be retried")
	}
	if !IsRetryable(errors.New("boom")) {
		t.Error("generic failures should be retried")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("tcp reset")
	err := NewError(KindGeneric, "stripe", "gateway unreachable", cause)
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}
}
