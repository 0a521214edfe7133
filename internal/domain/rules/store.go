package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Document is the on-disk shape of the config file (spec.md §6):
//
//	{ "rules": [...], "port": <int> }
type Document struct {
	Rules []Rule `json:"rules"`
	Port  int    `json:"port"`
}

// Store is the Config Store (spec.md §4.1): an in-memory rule list and
// listen port, persisted atomically on every mutation. It follows the
// teacher's FileStateStore write sequence — marshal, write to a ".tmp"
// sibling, fsync, rename over the real path — so a crash mid-write never
// corrupts the existing file.
type Store struct {
	mu     sync.Mutex
	path   string
	rules  []Rule
	port   int
	paused bool
}

const defaultPort = 9507

// NewStore creates a Store backed by path. If the file does not exist, it
// starts from an empty rule list and the default port and does not write
// anything until the first mutation.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path, port: defaultPort}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	s.rules = doc.Rules
	if doc.Port != 0 {
		s.port = doc.Port
	}
	return s, nil
}

// persistLocked writes the current in-memory state to disk atomically.
// Caller must hold s.mu.
func (s *Store) persistLocked() error {
	doc := Document{Rules: s.rules, Port: s.port}
	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync temp config: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// AddRule trims all string fields, rejects an empty host, param name or
// value, appends the rule, and persists. An empty path is accepted and
// matches every path. On persistence failure the in-memory append is
// rolled back so state never drifts from what's on disk.
func (s *Store) AddRule(host, path, param, value string) (bool, string) {
	host = strings.TrimSpace(host)
	path = strings.TrimSpace(path)
	param = strings.TrimSpace(param)
	value = strings.TrimSpace(value)

	if host == "" || param == "" || value == "" {
		return false, "host, param name, and value must not be empty"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.rules
	s.rules = append(append([]Rule{}, s.rules...), Rule{
		Host: host, Path: path, Param: param, Value: value, Enabled: true,
	})
	if err := s.persistLocked(); err != nil {
		s.rules = snapshot
		return false, err.Error()
	}
	return true, "rule added"
}

// RemoveRule deletes the rule at the given 0-based index.
func (s *Store) RemoveRule(index int) (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.rules) {
		return false, "index out of range"
	}
	snapshot := s.rules
	next := append([]Rule{}, s.rules[:index]...)
	next = append(next, s.rules[index+1:]...)
	s.rules = next
	if err := s.persistLocked(); err != nil {
		s.rules = snapshot
		return false, err.Error()
	}
	return true, "rule removed"
}

// ToggleRule flips the Enabled flag of the rule at the given 0-based
// index. Calling it twice in a row is the identity on that flag.
func (s *Store) ToggleRule(index int) (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.rules) {
		return false, "index out of range"
	}
	snapshot := append([]Rule{}, s.rules...)
	s.rules[index].Enabled = !s.rules[index].Enabled
	if err := s.persistLocked(); err != nil {
		s.rules = snapshot
		return false, err.Error()
	}
	return true, "rule toggled"
}

// Rules returns a copy-on-read snapshot of the current rule set; callers
// must not mutate the returned slice's rules in place.
func (s *Store) Rules() []Rule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// SetPort validates and persists a new listen port. Accepts an integer or
// a numeric string; the valid range is 1..65535.
func (s *Store) SetPort(p any) (bool, string) {
	var port int
	switch v := p.(type) {
	case int:
		port = v
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return false, "port must be numeric"
		}
		port = n
	default:
		return false, "unsupported port type"
	}
	if port < 1 || port > 65535 {
		return false, "port must be between 1 and 65535"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.port
	s.port = port
	if err := s.persistLocked(); err != nil {
		s.port = prev
		return false, err.Error()
	}
	return true, "port updated"
}

// Port returns the current listen port.
func (s *Store) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// IsPaused reports the process-wide soft-mute flag (spec.md §4.6 step 2):
// while paused, the Proxy Engine forwards every request verbatim,
// bypassing intercept/rules/history/scan.
func (s *Store) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// TogglePause flips the pause flag and returns the new value. Pause state
// is not persisted — it resets to false on restart.
func (s *Store) TogglePause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = !s.paused
	return s.paused
}
