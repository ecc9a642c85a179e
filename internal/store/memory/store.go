package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"resto/internal/models"
)

// Store keeps every record in process memory. When opened with a path the
// full state is rewritten to that file after each mutation. A mutation whose
// write fails is rolled back, so memory never runs ahead of the file.
type Store struct {
	mu     sync.Mutex
	path   string
	closed bool
	state  state
	// undo holds the reversals for writes staged since the last commit.
	undo []func()
}

type state struct {
	Tenants         map[string]models.Tenant           `json:"tenants"`
	Zones           map[string]models.Zone             `json:"zones"`
	Tables          map[string]models.Table            `json:"tables"`
	Layouts         map[string]models.Layout           `json:"layouts"`
	History         []models.HistoryEntry              `json:"history"`
	Menu            map[string]models.MenuItem         `json:"menu"`
	Orders          map[string]models.Order            `json:"orders"`
	Alerts          map[string]models.Alert            `json:"alerts"`
	Users           map[string]models.User             `json:"users"`
	Sessions        map[string]models.Session          `json:"sessions"`
	Push            map[string]models.PushSubscription `json:"push"`
	WebhookFailures []models.WebhookFailure            `json:"webhookFailures"`
}

var ErrClosed = errors.New("memory store closed")

func New() *Store {
	return &Store{state: emptyState()}
}

// Open loads path when it exists and persists to it afterwards.
func Open(path string) (*Store, error) {
	s := &Store{path: path, state: emptyState()}
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read store file: %w", err)
	}
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.state); err != nil {
		return nil, fmt.Errorf("decode store file: %w", err)
	}
	s.state.fill()
	return s, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.persistLocked()
}

func (s *Store) lock() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.undo = s.undo[:0]
	return nil
}

// commitLocked persists the staged writes. On failure they are reverted in
// reverse order before the error is returned.
func (s *Store) commitLocked() error {
	err := s.persistLocked()
	if err != nil {
		for i := len(s.undo) - 1; i >= 0; i-- {
			s.undo[i]()
		}
	}
	s.undo = s.undo[:0]
	return err
}

func put[V any](s *Store, m map[string]V, k string, v V) {
	prev, had := m[k]
	s.undo = append(s.undo, func() {
		if had {
			m[k] = prev
		} else {
			delete(m, k)
		}
	})
	m[k] = v
}

func remove[V any](s *Store, m map[string]V, k string) {
	prev, had := m[k]
	if !had {
		return
	}
	s.undo = append(s.undo, func() { m[k] = prev })
	delete(m, k)
}

func (s *Store) appendHistory(entry models.HistoryEntry) {
	n := len(s.state.History)
	s.undo = append(s.undo, func() { s.state.History = s.state.History[:n] })
	s.state.History = append(s.state.History, entry)
}

func (s *Store) appendWebhookFailure(failure models.WebhookFailure) {
	n := len(s.state.WebhookFailures)
	s.undo = append(s.undo, func() { s.state.WebhookFailures = s.state.WebhookFailures[:n] })
	s.state.WebhookFailures = append(s.state.WebhookFailures, failure)
}

func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}
	raw, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".store-*.json")
	if err != nil {
		return fmt.Errorf("persist store: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("persist store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("persist store: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("persist store: %w", err)
	}
	return nil
}

func emptyState() state {
	var st state
	st.fill()
	return st
}

func (st *state) fill() {
	if st.Tenants == nil {
		st.Tenants = make(map[string]models.Tenant)
	}
	if st.Zones == nil {
		st.Zones = make(map[string]models.Zone)
	}
	if st.Tables == nil {
		st.Tables = make(map[string]models.Table)
	}
	if st.Layouts == nil {
		st.Layouts = make(map[string]models.Layout)
	}
	if st.Menu == nil {
		st.Menu = make(map[string]models.MenuItem)
	}
	if st.Orders == nil {
		st.Orders = make(map[string]models.Order)
	}
	if st.Alerts == nil {
		st.Alerts = make(map[string]models.Alert)
	}
	if st.Users == nil {
		st.Users = make(map[string]models.User)
	}
	if st.Sessions == nil {
		st.Sessions = make(map[string]models.Session)
	}
	if st.Push == nil {
		st.Push = make(map[string]models.PushSubscription)
	}
}

func key(tenantID, id string) string {
	return tenantID + "/" + id
}
