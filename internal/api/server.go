// Copyright 2026 The relaygate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package api exposes the gateway over HTTP: a generic dispatch endpoint,
// capability-specific convenience endpoints per flavor, and management
// endpoints for provider health and metrics.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/relaygate/relaygate/internal/domain"
	"github.com/relaygate/relaygate/internal/gateway"
	"github.com/relaygate/relaygate/internal/provider"
)

// Server holds the per-flavor gateways behind the HTTP surface.
type Server struct {
	gateways  map[provider.Domain]*gateway.Gateway
	ai        *domain.AI
	messaging *domain.Messaging
	payment   *domain.Payment
}

// NewServer creates the HTTP surface over the three flavor gateways.
func NewServer(ai *domain.AI, messaging *domain.Messaging, payment *domain.Payment) *Server {
	return &Server{
		gateways: map[provider.Domain]*gateway.Gateway{
			provider.DomainAI:        ai.Gateway(),
			provider.DomainMessaging: messaging.Gateway(),
			provider.DomainPayment:   payment.Gateway(),
		},
		ai:        ai,
		messaging: messaging,
		payment:   payment,
	}
}

// Register attaches all routes to the engine.
func (s *Server) Register(r *gin.Engine) {
	v1 := r.Group("/v1")
	v1.POST("/dispatch", s.handleDispatch)
	v1.POST("/ai/chat", s.handleChat)
	v1.POST("/messaging/email", s.handleEmail)
	v1.POST("/payment/authorize", s.handleAuthorize)
	v1.GET("/providers", s.handleProviders)
	v1.GET("/metrics", s.handleMetrics)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

type dispatchRequest struct {
	Domain     string         `json:"domain" binding:"required"`
	Capability string         `json:"capability" binding:"required"`
	Payload    map[string]any `json:"payload"`
	Provider   string         `json:"provider"`
}

func (s *Server) handleDispatch(c *gin.Context) {
	var req dispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	gw, ok := s.gateways[provider.Domain(req.Domain)]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown domain: " + req.Domain})
		return
	}
	if req.Payload == nil {
		req.Payload = make(map[string]any)
	}
	res, err := gw.Dispatch(c.Request.Context(), req.Capability, req.Payload, req.Provider)
	s.respond(c, res, err)
}

type chatRequest struct {
	Model    string               `json:"model"`
	Messages []domain.ChatMessage `json:"messages" binding:"required"`
	Provider string               `json:"provider"`
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.ai.Chat(c.Request.Context(), req.Model, req.Messages, req.Provider)
	s.respond(c, res, err)
}

type emailRequest struct {
	To       string `json:"to" binding:"required"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Provider string `json:"provider"`
}

func (s *Server) handleEmail(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.messaging.SendEmail(c.Request.Context(), req.To, req.Subject, req.Body, req.Provider)
	s.respond(c, res, err)
}

type authorizeRequest struct {
	Amount   int64  `json:"amount" binding:"required"`
	Currency string `json:"currency" binding:"required"`
	Method   string `json:"method" binding:"required"`
	Provider string `json:"provider"`
}

func (s *Server) handleAuthorize(c *gin.Context) {
	var req authorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.payment.Authorize(c.Request.Context(), req.Amount, req.Currency, req.Method, req.Provider)
	s.respond(c, res, err)
}

// respond maps gateway outcomes to HTTP: selection exhaustion is 503, an
// exhausted fallback walk is 502, anything else unexpected is 500.
func (s *Server) respond(c *gin.Context, res *gateway.Result, err error) {
	if err == nil {
		c.JSON(http.StatusOK, res)
		return
	}
	var de *gateway.DispatchError
	switch {
	case errors.Is(err, gateway.ErrNoHealthyProvider):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.As(err, &de):
		c.JSON(http.StatusBadGateway, gin.H{"error": de.Error(), "tried": de.Tried})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

type providerStatus struct {
	provider.Metadata
	Status       gateway.BreakerState `json:"status"`
	FailureCount int                  `json:"failure_count"`
}

func (s *Server) handleProviders(c *gin.Context) {
	out := make(map[string][]providerStatus, len(s.gateways))
	for dom, gw := range s.gateways {
		var list []providerStatus
		for _, m := range gw.Providers() {
			h, err := gw.ProviderHealth(c.Request.Context(), m.Code)
			if err != nil {
				h.Status = gateway.StateClosed
			}
			list = append(list, providerStatus{
				Metadata:     m,
				Status:       h.Status,
				FailureCount: h.FailureCount,
			})
		}
		out[string(dom)] = list
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleMetrics(c *gin.Context) {
	out := make(map[string]gateway.MetricsSnapshot, len(s.gateways))
	for dom, gw := range s.gateways {
		out[string(dom)] = gw.Metrics()
	}
	c.JSON(http.StatusOK, out)
}
