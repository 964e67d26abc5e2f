package ratelimit

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Well-known action tags for protected endpoints.
const (
	ActionLike                = "like"
	ActionComment             = "comment"
	ActionAISummarize         = "ai-summarize"
	ActionWhiteboardBroadcast = "whiteboard-broadcast"
)

// Policy is the budget for one action: at most Limit attempts per fixed window.
type Policy struct {
	Limit         int64 `json:"limit"         yaml:"limit"`
	WindowSeconds int64 `json:"windowSeconds" yaml:"windowSeconds"`
}

// Validate reports ErrInvalidPolicy unless both fields are positive.
func (p Policy) Validate() error {
	if p.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidPolicy, p.Limit)
	}

	if p.WindowSeconds <= 0 {
		return fmt.Errorf("%w: windowSeconds must be positive, got %d", ErrInvalidPolicy, p.WindowSeconds)
	}

	return nil
}

// Window returns the window size as a duration.
func (p Policy) Window() time.Duration {
	return time.Duration(p.WindowSeconds) * time.Second
}

// Policies maps action tags to their policy.
type Policies map[string]Policy

// DefaultPolicies returns the built-in budgets used when no policy file is given.
func DefaultPolicies() Policies {
	return Policies{
		ActionLike:                {Limit: 10, WindowSeconds: 60},
		ActionComment:             {Limit: 5, WindowSeconds: 60},
		ActionAISummarize:         {Limit: 3, WindowSeconds: 3600},
		ActionWhiteboardBroadcast: {Limit: 120, WindowSeconds: 10},
	}
}

// Lookup returns the policy for action, or ErrUnknownAction.
func (p Policies) Lookup(action string) (Policy, error) {
	policy, ok := p[action]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	return policy, nil
}

// MaxWindow returns the longest configured window.
func (p Policies) MaxWindow() time.Duration {
	var longest time.Duration

	for _, policy := range p {
		longest = max(longest, policy.Window())
	}

	return longest
}

// Validate checks every configured policy. Action names must be non-empty and
// free of colons, which separate the parts of a window key.
func (p Policies) Validate() error {
	for action, policy := range p {
		if action == "" {
			return fmt.Errorf("%w: empty action name", ErrInvalidPolicy)
		}

		if strings.Contains(action, ":") {
			return fmt.Errorf("%w: action %q contains ':'", ErrInvalidPolicy, action)
		}

		if err := policy.Validate(); err != nil {
			return fmt.Errorf("action %q: %w", action, err)
		}
	}

	return nil
}

type policyFile struct {
	Actions Policies `yaml:"actions"`
}

// ParsePolicies decodes a YAML policy document of the form:
//
//	actions:
//	  like: {limit: 10, windowSeconds: 60}
//	  comment: {limit: 5, windowSeconds: 60}
func ParsePolicies(data []byte) (Policies, error) {
	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode policies: %w", err)
	}

	if len(file.Actions) == 0 {
		return nil, fmt.Errorf("%w: no actions configured", ErrInvalidPolicy)
	}

	if err := file.Actions.Validate(); err != nil {
		return nil, err
	}

	return file.Actions, nil
}

// LoadPolicies reads policies from path. An empty path yields DefaultPolicies.
func LoadPolicies(path string) (Policies, error) {
	if path == "" {
		return DefaultPolicies(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	return ParsePolicies(data)
}
