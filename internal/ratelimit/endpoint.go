package ratelimit

import "github.com/danielgtaylor/huma/v2"

// MetadataKey is the key used to store rate limit config in operation metadata.
const MetadataKey = "rateLimit"

// EndpointConfig defines per-endpoint rate limit configuration.
// This can be attached to Huma operations via the Metadata field.
type EndpointConfig struct {
	// Action is the fixed tag the endpoint is budgeted under. Endpoints sharing
	// an action share a budget.
	Action string

	// Policy overrides the configured policy for Action when set.
	Policy *Policy

	// Disabled skips rate limiting entirely for this endpoint.
	Disabled bool
}

// Protect returns operation metadata that budgets an endpoint under action.
func Protect(action string) map[string]any {
	return map[string]any{
		MetadataKey: EndpointConfig{Action: action},
	}
}

// GetEndpointConfig extracts the EndpointConfig from operation metadata, if present.
func GetEndpointConfig(ctx huma.Context) *EndpointConfig {
	op := ctx.Operation()
	if op == nil || op.Metadata == nil {
		return nil
	}

	cfg, ok := op.Metadata[MetadataKey].(EndpointConfig)
	if !ok {
		return nil
	}

	return &cfg
}
