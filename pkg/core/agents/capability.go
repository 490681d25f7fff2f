package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"agentic_diligence/pkg/core/agent"
	"agentic_diligence/pkg/core/pipeline"
	"agentic_diligence/pkg/core/registry"
	"agentic_diligence/pkg/core/utils"
)

// LLMCapability executes agents against the configured LLM providers. The
// reply is pushed through the lenient JSON parsing chain before it reaches
// the state store, so common model formatting faults never surface as shape
// violations.
type LLMCapability struct {
	manager *agent.Manager
}

// NewLLMCapability wraps a provider manager as an agent capability.
func NewLLMCapability(mgr *agent.Manager) *LLMCapability {
	return &LLMCapability{manager: mgr}
}

var _ pipeline.Capability = (*LLMCapability)(nil)

// Invoke builds the agent's prompt from its validated inputs, calls the
// configured provider, and parses the reply into the output mapping.
func (c *LLMCapability) Invoke(ctx context.Context, spec registry.AgentSpec, inputs map[string]any) (any, error) {
	systemPrompt := GetSystemPrompt(spec.Name)
	if systemPrompt == "" {
		return nil, &pipeline.CapabilityError{
			Agent: spec.Name,
			Err:   fmt.Errorf("no prompt defined for agent"),
		}
	}

	userPrompt, err := buildUserPrompt(spec, inputs)
	if err != nil {
		return nil, &pipeline.CapabilityError{Agent: spec.Name, Err: err}
	}

	options := map[string]interface{}{
		"response_format": map[string]interface{}{"type": "json_object"},
	}
	reply, err := c.manager.ExecutePrompt(ctx, spec.Name, userPrompt, systemPrompt, options)
	if err != nil {
		return nil, &pipeline.CapabilityError{Agent: spec.Name, Err: err}
	}

	var out map[string]any
	if _, err := utils.SmartParse(reply, &out); err != nil {
		return nil, &pipeline.CapabilityError{
			Agent: spec.Name,
			Err:   fmt.Errorf("unparseable model reply: %w", err),
		}
	}
	return out, nil
}

// buildUserPrompt serializes the policy-selected inputs for the model. The
// financial_data alias duplicates a concrete path, so it is dropped here.
func buildUserPrompt(spec registry.AgentSpec, inputs map[string]any) (string, error) {
	trimmed := make(map[string]any, len(inputs))
	for path, v := range inputs {
		if path == registry.FinancialData {
			continue
		}
		trimmed[path] = v
	}

	encoded, err := json.MarshalIndent(trimmed, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode inputs: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("Analysis inputs for the ")
	sb.WriteString(spec.Name)
	sb.WriteString(" workstream follow as JSON keyed by state field path.\n\n")
	sb.Write(encoded)
	return sb.String(), nil
}
