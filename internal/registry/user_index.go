package registry

import (
	"fmt"
	"sync"
)

// UserTicketIndex is the persisted map of user id to owned ticket channel
// ids. It exists solely for quota enforcement; the ticket registry remains
// the source of truth for ticket state.
//
// Snapshot format: a JSON object keyed by user id, each value an array of
// channel id strings.
type UserTicketIndex struct {
	mu       sync.Mutex
	path     string
	channels map[string][]string
}

// NewUserTicketIndex loads (or initializes) the index snapshot at path.
func NewUserTicketIndex(path string) (*UserTicketIndex, error) {
	idx := &UserTicketIndex{path: path, channels: make(map[string][]string)}
	if err := loadSnapshot(path, &idx.channels); err != nil {
		return nil, fmt.Errorf("load user ticket index: %w", err)
	}
	return idx, nil
}

// Count returns the number of channels currently held by a user.
func (idx *UserTicketIndex) Count(userID string) uint {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return uint(len(idx.channels[userID]))
}

// Channels returns a copy of the channel ids held by a user.
func (idx *UserTicketIndex) Channels(userID string) []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return append([]string(nil), idx.channels[userID]...)
}

// AppendChannel records channel ownership for a user and persists the
// snapshot. Appending a channel the user already holds is a no-op.
func (idx *UserTicketIndex) AppendChannel(userID, channelID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, existing := range idx.channels[userID] {
		if existing == channelID {
			return nil
		}
	}
	idx.channels[userID] = append(idx.channels[userID], channelID)
	if err := idx.save(); err != nil {
		idx.channels[userID] = idx.channels[userID][:len(idx.channels[userID])-1]
		if len(idx.channels[userID]) == 0 {
			delete(idx.channels, userID)
		}
		return err
	}
	return nil
}

// RemoveChannel drops channel ownership for a user and persists the
// snapshot. Removing an unknown channel is a no-op.
func (idx *UserTicketIndex) RemoveChannel(userID, channelID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	current, ok := idx.channels[userID]
	if !ok {
		return nil
	}
	filtered := make([]string, 0, len(current))
	for _, existing := range current {
		if existing != channelID {
			filtered = append(filtered, existing)
		}
	}
	if len(filtered) == len(current) {
		return nil
	}
	if len(filtered) == 0 {
		delete(idx.channels, userID)
	} else {
		idx.channels[userID] = filtered
	}
	if err := idx.save(); err != nil {
		idx.channels[userID] = current
		return err
	}
	return nil
}

func (idx *UserTicketIndex) save() error {
	return writeSnapshot(idx.path, idx.channels)
}
