package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/vitos/signal_copier/internal/domain"
)

// JSONStore keeps correlations in a single file using the legacy layout
// {"<messageId>": ["<id>", ...]}. The whole file is rewritten on each Record.
type JSONStore struct {
	mu      sync.Mutex
	path    string
	entries map[int64][]string
}

func NewJSONStore(path string) (*JSONStore, error) {
	entries, err := ReadLegacyFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if entries == nil {
		entries = make(map[int64][]string)
	}
	return &JSONStore{path: path, entries: entries}, nil
}

// ReadLegacyFile decodes a correlation file. Non-numeric keys are rejected.
func ReadLegacyFile(path string) (map[int64][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	out := make(map[int64][]string, len(raw))
	for k, ids := range raw {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode %s: message id %q: %w", path, k, err)
		}
		out[id] = ids
	}
	return out, nil
}

func (s *JSONStore) Record(ctx context.Context, messageID int64, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.entries[messageID]
	next := append(append([]string(nil), prev...), ids...)
	s.entries[messageID] = next
	if err := s.flush(); err != nil {
		if prev == nil {
			delete(s.entries, messageID)
		} else {
			s.entries[messageID] = prev
		}
		return err
	}
	return nil
}

func (s *JSONStore) flush() error {
	raw := make(map[string][]string, len(s.entries))
	for k, v := range s.entries {
		raw[strconv.FormatInt(k, 10)] = v
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *JSONStore) Lookup(ctx context.Context, messageID int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids, ok := s.entries[messageID]
	if !ok || len(ids) == 0 {
		return nil, domain.ErrCorrelationNotFound
	}
	return append([]string(nil), ids...), nil
}

func (s *JSONStore) List(ctx context.Context) (map[int64][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64][]string, len(s.entries))
	for k, v := range s.entries {
		out[k] = append([]string(nil), v...)
	}
	return out, nil
}

func (s *JSONStore) Close() error { return nil }
