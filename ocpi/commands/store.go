// Package commands correlates commands sent to a CPO with the results the
// CPO posts back later on the command's response url.
package commands

import (
	"context"
	"emsp/entity"
	"errors"
	"sync"
	"time"
)

var (
	ErrUnknownCommand   = errors.New("unknown command")
	ErrDuplicateCommand = errors.New("command id already registered")
)

type State string

const (
	Pending   State = "PENDING"
	Completed State = "COMPLETED"
)

// Command is what was sent, kept for correlating the result.
type Command struct {
	Id        string                `json:"id"`
	Type      entity.CommandType    `json:"type"`
	Request   entity.CommandRequest `json:"request,omitempty"`
	Requester string                `json:"requester,omitempty"`
}

// Entry is a snapshot of a registered command.
type Entry struct {
	Command
	State        State                   `json:"state"`
	Result       *entity.CommandResponse `json:"result,omitempty"`
	RegisteredAt time.Time               `json:"registered_at"`
	CompletedAt  *time.Time              `json:"completed_at,omitempty"`
}

type record struct {
	entry       Entry
	subscribers []chan *entity.CommandResponse
}

// Store is safe for concurrent use. Entries live for ttl from registration,
// whether or not a result arrived.
type Store struct {
	mu      sync.Mutex
	records map[string]*record
	ttl     time.Duration
	now     func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		records: make(map[string]*record),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *Store) Register(cmd Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[cmd.Id]; ok {
		return ErrDuplicateCommand
	}
	s.records[cmd.Id] = &record{
		entry: Entry{
			Command:      cmd,
			State:        Pending,
			RegisteredAt: s.now(),
		},
	}
	return nil
}

// Deliver records the result of a registered command, a repeated delivery
// replaces the earlier result. It never blocks on subscribers.
func (s *Store) Deliver(id string, result *entity.CommandResponse) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, ErrUnknownCommand
	}
	completedAt := s.now()
	r.entry.State = Completed
	r.entry.Result = result
	r.entry.CompletedAt = &completedAt
	for _, ch := range r.subscribers {
		ch <- result
		close(ch)
	}
	r.subscribers = nil
	entry := r.entry
	return &entry, nil
}

func (s *Store) Lookup(id string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, ErrUnknownCommand
	}
	entry := r.entry
	return &entry, nil
}

// Subscribe returns a channel that yields the result once and is then closed. It is
// closed without a value when the entry expires first. cancel releases the subscription.
func (s *Store) Subscribe(id string) (<-chan *entity.CommandResponse, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, nil, ErrUnknownCommand
	}
	ch := make(chan *entity.CommandResponse, 1)
	if r.entry.State == Completed {
		ch <- r.entry.Result
		close(ch)
		return ch, func() {}, nil
	}
	r.subscribers = append(r.subscribers, ch)
	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		r, ok := s.records[id]
		if !ok {
			return
		}
		for i, sub := range r.subscribers {
			if sub == ch {
				r.subscribers = append(r.subscribers[:i], r.subscribers[i+1:]...)
				return
			}
		}
	}
	return ch, cancel, nil
}

func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[id]; ok {
		s.drop(id, r)
	}
}

func (s *Store) drop(id string, r *record) {
	for _, ch := range r.subscribers {
		close(ch)
	}
	delete(s.records, id)
}

// Sweep removes expired entries and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline := s.now().Add(-s.ttl)
	removed := 0
	for id, r := range s.records {
		if !r.entry.RegisteredAt.After(deadline) {
			s.drop(id, r)
			removed++
		}
	}
	return removed
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Run sweeps on every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := s.Sweep()
			if onSweep != nil {
				onSweep(removed)
			}
		}
	}
}
