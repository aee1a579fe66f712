package gateway

// Result is the outcome of one gateway dispatch. It is transient and never
// persisted as a business record, though successful results for cacheable
// capabilities are stored in the response cache.
type Result struct {
	// Success is true when a provider answered. Dispatch never returns a
	// Result with Success false together with a nil error.
	Success bool `json:"success"`

	// Provider is the code of the provider that produced the result.
	Provider string `json:"provider"`

	// Capability is the logical operation that was dispatched.
	Capability string `json:"capability"`

	// Attempt is the attempt number (1-based) that succeeded.
	Attempt int `json:"attempt"`

	// Output is the provider's response payload.
	Output any `json:"output"`

	// Meta carries gateway and provider metadata: dispatch_id, source
	// ("api" or "cache"), latency_ms, plus anything the executor added.
	Meta map[string]any `json:"meta,omitempty"`

	// FallbackFrom is set when this result came from a fallback candidate;
	// it names the provider that failed first.
	FallbackFrom string `json:"fallback_from,omitempty"`
}

// Source reports where the result came from: "cache" or "api".
func (r *Result) Source() string {
	if r == nil || r.Meta == nil {
		return ""
	}
	if s, ok := r.Meta["source"].(string); ok {
		return s
	}
	return ""
}
