package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

// DefaultStatePath is used when no state path is configured.
const DefaultStatePath = "~/.chatstats/batch-state.json"

// State tracks progress for resumable batch runs. It is safe for concurrent use.
type State struct {
	mu sync.Mutex

	StartedAt        time.Time `json:"started_at"`
	LastProcessedAt  time.Time `json:"last_processed_at"`
	FoldersProcessed []string  `json:"folders_processed"`
	FoldersRemaining int       `json:"folders_remaining"`
	MessagesAnalyzed int       `json:"messages_analyzed"`
	Errors           []string  `json:"errors"`

	path string // not serialized
}

// LoadState loads the batch state from path, or creates a new one.
func LoadState(path string) (*State, error) {
	if path == "" {
		path = DefaultStatePath
	}
	p := expandHome(path)

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{
				StartedAt: time.Now().UTC(),
				path:      p,
			}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	s.path = p
	return &s, nil
}

// Save persists the state to disk.
func (s *State) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastProcessedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	return os.WriteFile(s.path, data, 0o644)
}

// Path returns the file the state is saved to.
func (s *State) Path() string {
	return s.path
}

// IsProcessed returns true if the given folder has already been processed.
func (s *State) IsProcessed(folder string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.FoldersProcessed, folder)
}

// MarkProcessed records a folder as processed along with its message count.
func (s *State) MarkProcessed(folder string, messages int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.FoldersProcessed, folder) {
		s.FoldersProcessed = append(s.FoldersProcessed, folder)
	}
	s.MessagesAnalyzed += messages
	if s.FoldersRemaining > 0 {
		s.FoldersRemaining--
	}
}

// AddError records a processing error.
func (s *State) AddError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors = append(s.Errors, msg)
}

// SetRemaining records how many folders are left to process.
func (s *State) SetRemaining(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FoldersRemaining = n
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
