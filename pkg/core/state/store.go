package state

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
)

// Canonical field paths into the analysis state. Agent specs reference these;
// agent outputs live under "agent_outputs.<name>".
const (
	FieldTargetIdentity       = "target_identity"
	FieldFilings              = "filings"
	FieldRawFinancials        = "raw_financial_data"
	FieldNormalizedFinancials = "normalized_financial_data"
	FieldDealParameters       = "deal_parameters"
	FieldAgentOutputs         = "agent_outputs"
	FieldAnomalyLog           = "anomaly_log"
	FieldQualityMetadata      = "quality_metadata"
)

// AgentOutputPath builds the field path for an agent's output mapping.
func AgentOutputPath(agentName string) string {
	return FieldAgentOutputs + "." + agentName
}

// Store exclusively owns one AnalysisState. All writes are serialized; reads
// return consistent pre- or post-merge snapshots, never a half-written state.
type Store struct {
	mu          sync.RWMutex
	state       *AnalysisState
	projections map[string][]string // agent name -> produced fields to project
	sealed      bool
}

// NewStore creates a store for a fresh analysis of the given target.
func NewStore(target TargetIdentity) *Store {
	return &Store{
		state: &AnalysisState{
			Target:       target,
			AgentOutputs: []AgentResult{},
		},
		projections: make(map[string][]string),
	}
}

// SetProjection declares which produced fields of an agent are projected to
// their documented top-level locations during Merge. Wired from the agent's
// spec before execution starts.
func (s *Store) SetProjection(agentName string, producedFields []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projections[agentName] = append([]string(nil), producedFields...)
}

// =============================================================================
// INGESTION WRITES (pre-run population, not agent merges)
// =============================================================================

// SetRawFinancials populates the raw statement sequences from ingestion.
func (s *Store) SetRawFinancials(f *FinancialStatements) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return ErrStateSealed
	}
	s.state.RawFinancials = f
	return nil
}

// SetFilings records the source filings the quality gate evaluates.
func (s *Store) SetFilings(filings []FilingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return ErrStateSealed
	}
	s.state.Filings = append([]FilingRecord(nil), filings...)
	return nil
}

// SetDealParameters attaches M&A deal terms. Optional.
func (s *Store) SetDealParameters(d *DealParameters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return ErrStateSealed
	}
	s.state.Deal = d
	return nil
}

// SetQuality replaces the quality metadata block. Only the quality gate calls this.
func (s *Store) SetQuality(q QualityMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return ErrStateSealed
	}
	s.state.Quality = q
	return nil
}

// AppendAnomaly adds a flag to the permanent audit trail. Anomalies are never
// deleted or rewritten.
func (s *Store) AppendAnomaly(a Anomaly) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return ErrStateSealed
	}
	if a.DetectedAt.IsZero() {
		a.DetectedAt = time.Now()
	}
	s.state.AnomalyLog = append(s.state.AnomalyLog, a)
	return nil
}

// =============================================================================
// MERGE
// =============================================================================

// AsMapping validates that a decoded agent output is a mapping. This is the
// first line of defense against the list-instead-of-dict defect class: every
// consumer performs key lookups on agent data, so a sequence here would break
// all of them.
func AsMapping(path string, v any) (map[string]any, error) {
	switch m := v.(type) {
	case map[string]any:
		return m, nil
	case nil:
		return map[string]any{}, nil
	default:
		return nil, &ShapeViolationError{Path: path, Expected: "mapping", Actual: kindOf(v)}
	}
}

// Merge appends an agent result to the output log and projects its declared
// produced fields into their documented top-level locations. The write is
// atomic: any shape violation rejects the whole merge and leaves prior state
// untouched. A second merge for the same agent name is rejected.
func (s *Store) Merge(res AgentResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return ErrStateSealed
	}
	if _, exists := s.state.Output(res.AgentName); exists {
		return &DuplicateMergeError{Agent: res.AgentName}
	}
	if res.Data == nil {
		res.Data = map[string]any{}
	}
	if res.Timestamp.IsZero() {
		res.Timestamp = time.Now()
	}

	// Stage all projections before touching state.
	var staged []func()
	for _, field := range s.projections[res.AgentName] {
		v, ok := res.Data[field]
		if !ok {
			continue
		}
		apply, err := s.stageProjection(field, v)
		if err != nil {
			return err
		}
		if apply != nil {
			staged = append(staged, apply)
		}
	}

	s.state.AgentOutputs = append(s.state.AgentOutputs, res)
	for _, apply := range staged {
		apply()
	}
	return nil
}

// MergeData is the plain merge contract: wraps data into a successful result.
// Rejects non-mapping data with ShapeViolation before anything is written.
func (s *Store) MergeData(agentName string, data any) error {
	m, err := AsMapping(AgentOutputPath(agentName), data)
	if err != nil {
		return err
	}
	return s.Merge(AgentResult{
		AgentName: agentName,
		Success:   true,
		Data:      m,
		Timestamp: time.Now(),
	})
}

// stageProjection validates one produced field against its documented
// top-level schema and returns the deferred apply. Produced fields without a
// documented top-level location stay in agent_outputs only.
func (s *Store) stageProjection(field string, v any) (func(), error) {
	switch field {
	case FieldNormalizedFinancials:
		fs, err := decodeProjected[FinancialStatements](field, v)
		if err != nil {
			return nil, err
		}
		return func() { s.state.NormalizedFinancials = fs }, nil
	case FieldDealParameters:
		d, err := decodeProjected[DealParameters](field, v)
		if err != nil {
			return nil, err
		}
		return func() { s.state.Deal = d }, nil
	default:
		return nil, nil
	}
}

// decodeProjected enforces the mapping shape, then decodes via a JSON round
// trip so both typed structs and generic maps from LLM output are accepted.
func decodeProjected[T any](field string, v any) (*T, error) {
	if k := kindOf(v); k != "mapping" {
		return nil, &ShapeViolationError{Path: field, Expected: "mapping", Actual: k}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode projected field %s: %w", field, err)
	}
	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, &ShapeViolationError{Path: field, Expected: "mapping", Actual: "incompatible mapping"}
	}
	return out, nil
}

func kindOf(v any) string {
	if v == nil {
		return "null"
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Map, reflect.Struct:
		return "mapping"
	case reflect.Slice, reflect.Array:
		return "sequence"
	case reflect.Ptr:
		rv := reflect.ValueOf(v)
		if rv.IsNil() {
			return "null"
		}
		return kindOf(rv.Elem().Interface())
	default:
		return "scalar"
	}
}

// =============================================================================
// READS
// =============================================================================

// Get resolves a field path. Missing paths return *MissingFieldError, which is
// distinguishable from a present-but-empty value.
func (s *Store) Get(path string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	head, rest, _ := strings.Cut(path, ".")
	switch head {
	case FieldTargetIdentity:
		return s.state.Target, nil
	case FieldFilings:
		if s.state.Filings == nil {
			return nil, &MissingFieldError{Path: path}
		}
		return append([]FilingRecord(nil), s.state.Filings...), nil
	case FieldRawFinancials:
		if s.state.RawFinancials == nil {
			return nil, &MissingFieldError{Path: path}
		}
		return s.state.RawFinancials.Clone(), nil
	case FieldNormalizedFinancials:
		if s.state.NormalizedFinancials == nil {
			return nil, &MissingFieldError{Path: path}
		}
		return s.state.NormalizedFinancials.Clone(), nil
	case FieldDealParameters:
		if s.state.Deal == nil {
			return nil, &MissingFieldError{Path: path}
		}
		return s.state.Deal.Clone(), nil
	case FieldQualityMetadata:
		return s.state.Quality, nil
	case FieldAnomalyLog:
		return append([]Anomaly(nil), s.state.AnomalyLog...), nil
	case FieldAgentOutputs:
		if rest == "" {
			out := append([]AgentResult(nil), s.state.AgentOutputs...)
			for i := range out {
				out[i].Data = copyMapping(out[i].Data)
			}
			return out, nil
		}
		return s.getAgentOutput(path, rest)
	default:
		return nil, &MissingFieldError{Path: path}
	}
}

func (s *Store) getAgentOutput(fullPath, rest string) (any, error) {
	name, key, hasKey := strings.Cut(rest, ".")
	res, ok := s.state.Output(name)
	if !ok {
		return nil, &MissingFieldError{Path: fullPath}
	}
	if !hasKey {
		return copyMapping(res.Data), nil
	}
	v, ok := res.Data[key]
	if !ok {
		return nil, &MissingFieldError{Path: fullPath}
	}
	return copyValue(v), nil
}

// copyMapping deep-copies an output mapping through its JSON form. Readers
// get their own containers; the merged record stays untouched.
func copyMapping(m map[string]any) map[string]any {
	if len(m) == 0 {
		return map[string]any{}
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return m
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return m
	}
	return out
}

// copyValue deep-copies container values from an output mapping. Scalars
// pass through unchanged.
func copyValue(v any) any {
	switch v.(type) {
	case nil, bool, string, float64, int, int64:
		return v
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

// GetOr resolves a path, substituting def when the field is missing.
func (s *Store) GetOr(path string, def any) any {
	v, err := s.Get(path)
	if err != nil {
		return def
	}
	return v
}

// AgentOutput returns the merged result for an agent, if any. The result's
// data mapping is a copy.
func (s *Store) AgentOutput(agentName string) (AgentResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.state.Output(agentName)
	if ok {
		res.Data = copyMapping(res.Data)
	}
	return res, ok
}

// Snapshot returns a deep copy of the current state. Safe to read while merges
// continue on the store.
func (s *Store) Snapshot() AnalysisState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := json.Marshal(s.state)
	if err != nil {
		// State is always JSON-serializable; a failure here is a programming error.
		panic(fmt.Sprintf("state snapshot: %v", err))
	}
	var copy AnalysisState
	if err := json.Unmarshal(raw, &copy); err != nil {
		panic(fmt.Sprintf("state snapshot decode: %v", err))
	}
	if copy.AgentOutputs == nil {
		copy.AgentOutputs = []AgentResult{}
	}
	return copy
}

// Seal marks the state immutable. Called once the job reaches a terminal
// state, just before the final persist.
func (s *Store) Seal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sealed = true
}

// Sealed reports whether the state accepts further writes.
func (s *Store) Sealed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sealed
}
