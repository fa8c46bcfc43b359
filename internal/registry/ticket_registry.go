package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/natefinch/atomic"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

const (
	dirPerms = 0o750
)

// TicketRegistry is the authoritative persisted map of ticket id to ticket
// record. A ticket is present here if and only if its channel is expected to
// exist and be open.
//
// The snapshot is a single JSON object keyed by ticket id, loaded once at
// construction and rewritten atomically on every mutation. A mutex serializes
// read-modify-write cycles; concurrent lifecycle operations therefore cannot
// clobber each other's updates.
type TicketRegistry struct {
	mu      sync.Mutex
	path    string
	tickets map[string]domain.Ticket
}

// NewTicketRegistry loads (or initializes) the registry snapshot at path.
func NewTicketRegistry(path string) (*TicketRegistry, error) {
	r := &TicketRegistry{path: path, tickets: make(map[string]domain.Ticket)}
	if err := loadSnapshot(path, &r.tickets); err != nil {
		return nil, fmt.Errorf("load ticket registry: %w", err)
	}
	return r, nil
}

// Get returns the ticket with the given id.
func (r *TicketRegistry) Get(id string) (domain.Ticket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	return ticket, ok
}

// GetByChannel returns the ticket owning the given channel.
func (r *TicketRegistry) GetByChannel(channelID string) (domain.Ticket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ticket := range r.tickets {
		if ticket.ChannelID == channelID {
			return ticket, true
		}
	}
	return domain.Ticket{}, false
}

// Exists reports whether a ticket id is taken.
func (r *TicketRegistry) Exists(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tickets[id]
	return ok
}

// Put inserts or replaces a ticket record and persists the snapshot.
func (r *TicketRegistry) Put(ticket domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous, existed := r.tickets[ticket.ID]
	r.tickets[ticket.ID] = ticket
	if err := r.save(); err != nil {
		// Roll the in-memory map back so memory and disk stay in agreement.
		if existed {
			r.tickets[ticket.ID] = previous
		} else {
			delete(r.tickets, ticket.ID)
		}
		return err
	}
	return nil
}

// Remove deletes a ticket record and persists the snapshot. Removing an
// absent id is a no-op.
func (r *TicketRegistry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous, existed := r.tickets[id]
	if !existed {
		return nil
	}
	delete(r.tickets, id)
	if err := r.save(); err != nil {
		r.tickets[id] = previous
		return err
	}
	return nil
}

// List returns all tickets ordered by creation time, oldest first.
func (r *TicketRegistry) List() []domain.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	tickets := make([]domain.Ticket, 0, len(r.tickets))
	for _, ticket := range r.tickets {
		tickets = append(tickets, ticket)
	}
	sort.Slice(tickets, func(i, j int) bool {
		if tickets[i].CreatedAt.Equal(tickets[j].CreatedAt) {
			return tickets[i].ID < tickets[j].ID
		}
		return tickets[i].CreatedAt.Before(tickets[j].CreatedAt)
	})
	return tickets
}

// ListByOwner returns the tickets owned by a user, oldest first.
func (r *TicketRegistry) ListByOwner(userID string) []domain.Ticket {
	all := r.List()
	owned := make([]domain.Ticket, 0, len(all))
	for _, ticket := range all {
		if ticket.OwnerUserID == userID {
			owned = append(owned, ticket)
		}
	}
	return owned
}

// Len returns the number of registered tickets.
func (r *TicketRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tickets)
}

func (r *TicketRegistry) save() error {
	return writeSnapshot(r.path, r.tickets)
}

// loadSnapshot reads a JSON snapshot into dst, treating a missing file as an
// empty store.
func loadSnapshot(path string, dst any) error {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// writeSnapshot rewrites the whole snapshot through an atomic rename so a
// crash mid-write cannot leave a torn file behind.
func writeSnapshot(path string, src any) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerms); err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(src, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(encoded))
}
