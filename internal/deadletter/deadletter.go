// Package deadletter records finalizing calls the relayer could not submit.
// Failed submissions are never retried automatically; each one is written
// here for an operator to inspect and replay by hand.
package deadletter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Letter is one failed finalizing call.
type Letter struct {
	Timestamp time.Time `json:"timestamp"`
	VaultID   string    `json:"vaultId"`
	Action    string    `json:"action"`
	Kind      string    `json:"kind"`
	Error     string    `json:"error"`
}

// Queue stores letters as one JSON file each under a directory. An empty
// path disables it.
type Queue struct {
	path string
	mu   sync.Mutex
}

func NewQueue(path string) *Queue {
	return &Queue{path: path}
}

func (q *Queue) Write(l Letter) error {
	if q == nil || q.path == "" {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("dead letter marshal: %w", err)
	}
	if err := os.MkdirAll(q.path, 0o755); err != nil {
		return fmt.Errorf("dead letter mkdir: %w", err)
	}
	name := fmt.Sprintf("%d-%s.json", l.Timestamp.UnixNano(), strings.ToLower(l.VaultID))
	if err := os.WriteFile(filepath.Join(q.path, name), data, 0o600); err != nil {
		return fmt.Errorf("dead letter write: %w", err)
	}
	return nil
}

// Depth counts stored letters. A missing directory is an empty queue.
func (q *Queue) Depth() (int, error) {
	names, err := q.names()
	return len(names), err
}

// List returns stored letters oldest first.
func (q *Queue) List() ([]Letter, error) {
	names, err := q.names()
	if err != nil {
		return nil, err
	}
	letters := make([]Letter, 0, len(names))
	for _, name := range names {
		blob, err := os.ReadFile(filepath.Join(q.path, name))
		if err != nil {
			return nil, err
		}
		var l Letter
		if err := json.Unmarshal(blob, &l); err != nil {
			return nil, fmt.Errorf("dead letter %s: %w", name, err)
		}
		letters = append(letters, l)
	}
	return letters, nil
}

func (q *Queue) names() ([]string, error) {
	if q == nil || q.path == "" {
		return nil, nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := os.ReadDir(q.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
