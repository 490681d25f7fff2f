package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"agentic_diligence/pkg/core/state"
)

// JobArchive is a file-based fallback for persisting job states when no
// database is configured. One JSON document per job id.
type JobArchive struct {
	dir string
}

// NewJobArchive creates an archive rooted at dir. An empty dir defaults to
// a local cache directory.
func NewJobArchive(dir string) *JobArchive {
	if dir == "" {
		dir = filepath.Join(".cache", "diligence_jobs")
	}
	return &JobArchive{dir: dir}
}

func (a *JobArchive) path(jobID string) string {
	// Job ids are UUIDs; sanitize anyway so a bad id cannot escape the dir.
	safe := strings.ReplaceAll(jobID, string(os.PathSeparator), "_")
	return filepath.Join(a.dir, safe+".json")
}

// Save writes the sealed job state document to disk.
func (a *JobArchive) Save(jobID string, st *state.Store) error {
	doc, err := st.MarshalDocument()
	if err != nil {
		return fmt.Errorf("failed to marshal job state: %w", err)
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create archive dir: %w", err)
	}
	if err := os.WriteFile(a.path(jobID), doc, 0o644); err != nil {
		return fmt.Errorf("failed to write job state: %w", err)
	}
	return nil
}

// Load reads a persisted job state. The returned store is sealed.
func (a *JobArchive) Load(jobID string) (*state.Store, error) {
	doc, err := os.ReadFile(a.path(jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no job state found for id %s", jobID)
		}
		return nil, fmt.Errorf("failed to read job state: %w", err)
	}
	st, err := state.LoadDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode job state: %w", err)
	}
	return st, nil
}
