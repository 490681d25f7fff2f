package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"agentic_diligence/pkg/core/state"
)

// MissingRequiredInput is one unmet input contract, reported without
// executing the agent. Used by the orchestrator as a pre-flight gate and by
// audit tooling on its own.
type MissingRequiredInput struct {
	Agent  string `json:"agent"`
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

func (m MissingRequiredInput) String() string {
	return fmt.Sprintf("missing required input: %s", m.Path)
}

// CyclicDependencyError aborts the pipeline before any agent executes.
type CyclicDependencyError struct {
	Agents []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic dependency among agents: %s", strings.Join(e.Agents, ", "))
}

// Dependency is one producer edge feeding an agent. Hard dependencies block
// the consumer when the producer fails; soft ones only order execution (the
// consumer has a raw fallback).
type Dependency struct {
	Agent string
	Path  string
	Hard  bool
}

// Registry holds the declared agent specs and computes execution order over
// the required-input -> produced-field edges.
type Registry struct {
	mu        sync.RWMutex
	specs     []AgentSpec
	byName    map[string]int
	producers map[string]string // field path -> producing agent
	frozen    bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		byName:    make(map[string]int),
		producers: make(map[string]string),
	}
}

// Register adds an agent spec. Declaration order is significant: it breaks
// ordering ties, keeping runs reproducible.
func (r *Registry) Register(spec AgentSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("registry is frozen, cannot register %q", spec.Name)
	}
	if spec.Name == "" {
		return fmt.Errorf("agent spec has empty name")
	}
	if _, exists := r.byName[spec.Name]; exists {
		return fmt.Errorf("agent %q already registered", spec.Name)
	}
	for _, field := range spec.ProducedFields {
		if owner, taken := r.producers[field]; taken {
			return fmt.Errorf("field %q already produced by %q", field, owner)
		}
	}

	r.byName[spec.Name] = len(r.specs)
	for _, field := range spec.ProducedFields {
		r.producers[field] = spec.Name
	}
	// Every agent implicitly produces its own output mapping.
	r.producers[state.AgentOutputPath(spec.Name)] = spec.Name
	r.specs = append(r.specs, spec)
	return nil
}

// Spec returns a registered spec by name.
func (r *Registry) Spec(name string) (AgentSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.byName[name]
	if !ok {
		return AgentSpec{}, false
	}
	return r.specs[idx], true
}

// Names returns all agent names in declaration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.specs))
	for i, s := range r.specs {
		names[i] = s.Name
	}
	return names
}

// Producer returns the agent producing a field path, if any. Fields populated
// by ingestion (raw statements, filings, deal terms) have no producer.
func (r *Registry) Producer(path string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.producers[path]
	return agent, ok
}

// DependenciesOf returns the producer edges feeding an agent, given the
// configured source preference for "either" inputs.
func (r *Registry) DependenciesOf(name string, preferRaw bool) []Dependency {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.byName[name]
	if !ok {
		return nil
	}
	spec := r.specs[idx]

	var deps []Dependency
	seen := make(map[string]bool)
	for _, ref := range spec.RequiredInputs {
		dep, ok := r.dependencyFor(ref, spec.Policy, preferRaw)
		if ok && !seen[dep.Agent] {
			seen[dep.Agent] = true
			deps = append(deps, dep)
		}
	}
	return deps
}

// dependencyFor maps one required input to its producer edge. Callers hold the
// read lock.
func (r *Registry) dependencyFor(ref InputRef, policy NormalizationPolicy, preferRaw bool) (Dependency, bool) {
	path := ref.Path
	hard := true
	if IsFinancialPath(path) {
		src := ResolveSource(ref, policy, preferRaw)
		path = financialPath(src)
		// Either-policy consumers can fall back to raw data from ingestion,
		// so the normalized producer only orders them, never blocks them.
		hard = policy != EitherAcceptable
	}
	producer, ok := r.producers[path]
	if !ok {
		return Dependency{}, false
	}
	return Dependency{Agent: producer, Path: path, Hard: hard}, true
}

// ResolveOrder computes a deterministic topological order over the
// required-input -> produced-field edges (Kahn's algorithm, declaration order
// breaking ties). Fails with CyclicDependencyError before anything runs.
// The registry is frozen afterwards.
func (r *Registry) ResolveOrder() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inDegree := make(map[string]int, len(r.specs))
	dependents := make(map[string][]string, len(r.specs))
	for _, spec := range r.specs {
		inDegree[spec.Name] = 0
	}
	for _, spec := range r.specs {
		seen := make(map[string]bool)
		for _, ref := range spec.RequiredInputs {
			dep, ok := r.dependencyFor(ref, spec.Policy, false)
			if !ok || dep.Agent == spec.Name || seen[dep.Agent] {
				continue
			}
			seen[dep.Agent] = true
			inDegree[spec.Name]++
			dependents[dep.Agent] = append(dependents[dep.Agent], spec.Name)
		}
	}

	// Ready set kept in declaration order for reproducible runs.
	var ready []string
	for _, spec := range r.specs {
		if inDegree[spec.Name] == 0 {
			ready = append(ready, spec.Name)
		}
	}

	order := make([]string, 0, len(r.specs))
	for len(ready) > 0 {
		current := ready[0]
		ready = ready[1:]
		order = append(order, current)

		for _, dependent := range dependents[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = insertByDeclaration(ready, dependent, r.byName)
			}
		}
	}

	if len(order) != len(r.specs) {
		var remaining []string
		for _, spec := range r.specs {
			if inDegree[spec.Name] > 0 {
				remaining = append(remaining, spec.Name)
			}
		}
		sort.Slice(remaining, func(i, j int) bool {
			return r.byName[remaining[i]] < r.byName[remaining[j]]
		})
		return nil, &CyclicDependencyError{Agents: remaining}
	}

	r.frozen = true
	return order, nil
}

func insertByDeclaration(ready []string, name string, byName map[string]int) []string {
	pos := sort.Search(len(ready), func(i int) bool {
		return byName[ready[i]] > byName[name]
	})
	ready = append(ready, "")
	copy(ready[pos+1:], ready[pos:])
	ready[pos] = name
	return ready
}

// ValidateInputs checks an agent's required inputs against the current state
// without executing it. Either-policy financial inputs are satisfied by
// whichever source is present, preferring the configured default.
func (r *Registry) ValidateInputs(name string, st *state.Store, preferRaw bool) []MissingRequiredInput {
	spec, ok := r.Spec(name)
	if !ok {
		return []MissingRequiredInput{{Agent: name, Path: name, Reason: "agent not registered"}}
	}

	var missing []MissingRequiredInput
	for _, ref := range spec.RequiredInputs {
		if _, m := resolveOne(spec, ref, st, preferRaw); m != nil {
			missing = append(missing, *m)
		}
	}
	return missing
}

// ResolveInputs gathers the validated, policy-selected input values for an
// agent. Financial inputs are keyed both by their concrete path and by the
// "financial_data" alias so capabilities stay source-agnostic.
func (r *Registry) ResolveInputs(name string, st *state.Store, preferRaw bool) (map[string]any, []MissingRequiredInput) {
	spec, ok := r.Spec(name)
	if !ok {
		return nil, []MissingRequiredInput{{Agent: name, Path: name, Reason: "agent not registered"}}
	}

	inputs := make(map[string]any)
	var missing []MissingRequiredInput
	for _, ref := range spec.RequiredInputs {
		resolved, m := resolveOne(spec, ref, st, preferRaw)
		if m != nil {
			missing = append(missing, *m)
			continue
		}
		addInput(inputs, ref, resolved, st)
	}
	for _, ref := range spec.OptionalInputs {
		resolved, m := resolveOne(spec, ref, st, preferRaw)
		if m != nil {
			continue // optional: skip silently when absent
		}
		addInput(inputs, ref, resolved, st)
	}
	if len(missing) > 0 {
		return nil, missing
	}
	return inputs, nil
}

func addInput(inputs map[string]any, ref InputRef, resolvedPath string, st *state.Store) {
	v, err := st.Get(resolvedPath)
	if err != nil {
		return
	}
	inputs[resolvedPath] = v
	if IsFinancialPath(ref.Path) {
		inputs[FinancialData] = v
	}
}

// resolveOne maps a declared input to the concrete path present in state,
// or reports it missing.
func resolveOne(spec AgentSpec, ref InputRef, st *state.Store, preferRaw bool) (string, *MissingRequiredInput) {
	if !IsFinancialPath(ref.Path) {
		if _, err := st.Get(ref.Path); err != nil {
			return "", &MissingRequiredInput{
				Agent:  spec.Name,
				Path:   ref.Path,
				Reason: fmt.Sprintf("field %s not present in state", ref.Path),
			}
		}
		return ref.Path, nil
	}

	src := ResolveSource(ref, spec.Policy, preferRaw)
	primary := financialPath(src)
	if _, err := st.Get(primary); err == nil {
		return primary, nil
	}

	// Fixed-source policies never fall back: operating on the wrong data
	// source is worse than skipping.
	if spec.Policy != EitherAcceptable || ref.Source == SourceRaw || ref.Source == SourceNormalized {
		return "", &MissingRequiredInput{
			Agent:  spec.Name,
			Path:   primary,
			Reason: fmt.Sprintf("policy %s requires %s, which is not present", spec.Policy, primary),
		}
	}

	fallback := financialPath(otherSource(src))
	if _, err := st.Get(fallback); err == nil {
		return fallback, nil
	}
	return "", &MissingRequiredInput{
		Agent:  spec.Name,
		Path:   primary,
		Reason: "neither normalized nor raw financial data present",
	}
}

func otherSource(src DataSource) DataSource {
	if src == SourceRaw {
		return SourceNormalized
	}
	return SourceRaw
}
