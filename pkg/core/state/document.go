package state

import (
	"encoding/json"
	"fmt"
)

// MarshalDocument serializes the state as the single structured document the
// job store persists. agent_outputs keeps execution order.
func (s *Store) MarshalDocument() ([]byte, error) {
	snap := s.Snapshot()
	raw, err := json.Marshal(&snap)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis state: %w", err)
	}
	return raw, nil
}

// LoadDocument reconstructs a store from a persisted document. The loaded
// store is sealed: reloaded jobs are read-only for consumers.
func LoadDocument(doc []byte) (*Store, error) {
	var st AnalysisState
	if err := json.Unmarshal(doc, &st); err != nil {
		return nil, fmt.Errorf("unmarshal analysis state: %w", err)
	}
	if st.AgentOutputs == nil {
		st.AgentOutputs = []AgentResult{}
	}
	for i := range st.AgentOutputs {
		if st.AgentOutputs[i].Data == nil {
			st.AgentOutputs[i].Data = map[string]any{}
		}
	}
	return &Store{
		state:       &st,
		projections: make(map[string][]string),
		sealed:      true,
	}, nil
}
