package change

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ChangesDir is the directory under the project root that holds one
// subdirectory per change.
const ChangesDir = "changes"

// StateFileName is the per-change state file.
const StateFileName = "change.json"

// State is the persisted record for one change. It is owned exclusively by
// the state machine; callers mutate it only through Machine operations.
type State struct {
	// ID is the stable change identifier, immutable after creation.
	ID string `json:"id"`

	// Phase is the current lifecycle phase.
	Phase Phase `json:"phase"`

	// Specs lists the declared dependent specification names, in the
	// order their artifacts must be generated.
	Specs []string `json:"specs,omitempty"`

	// Iteration counts review/fix cycles within the current phase.
	Iteration int `json:"iteration"`

	// SessionID is the opaque reviewer session identifier, empty until
	// the first critique call captures one.
	SessionID string `json:"session_id,omitempty"`

	// LastAction names the last executed workflow step, for diagnostics.
	LastAction string `json:"last_action,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Dir returns the on-disk directory for a change.
func Dir(root, id string) string {
	return filepath.Join(root, ChangesDir, id)
}

// Create scaffolds a new change in the proposed phase and persists it.
func Create(root, id string, specs []string) (*State, error) {
	dir := Dir(root, id)
	if _, err := os.Stat(filepath.Join(dir, StateFileName)); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, id)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create change dir: %w", err)
	}

	now := time.Now().UTC()
	st := &State{
		ID:        id,
		Phase:     PhaseProposed,
		Specs:     specs,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := save(root, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Load reads the persisted state for a change.
func Load(root, id string) (*State, error) {
	data, err := os.ReadFile(filepath.Join(Dir(root, id), StateFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("read change state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode change state: %w", err)
	}
	if !st.Phase.Valid() {
		return nil, fmt.Errorf("change %s: unknown phase %q", id, st.Phase)
	}
	return &st, nil
}

// List returns all change ids under the project root, sorted.
func List(root string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(root, ChangesDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list changes: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, ChangesDir, entry.Name(), StateFileName)); err != nil {
			continue
		}
		ids = append(ids, entry.Name())
	}
	sort.Strings(ids)
	return ids, nil
}

// save writes the state file atomically: temp file, fsync, rename. An
// interrupted write never leaves a torn state file behind.
func save(root string, st *State) error {
	st.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal change state: %w", err)
	}
	data = append(data, '\n')

	dir := Dir(root, st.ID)
	tempFile, err := os.CreateTemp(dir, ".tmp-state-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tempPath := tempFile.Name()
	cleanup := true
	defer func() {
		_ = tempFile.Close()
		if cleanup {
			_ = os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tempFile.Chmod(0644); err != nil {
		return fmt.Errorf("chmod temp state file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("fsync temp state file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tempPath, filepath.Join(dir, StateFileName)); err != nil {
		return fmt.Errorf("rename state file: %w", err)
	}
	cleanup = false
	return nil
}
