package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
//
// PENDING_CLOSE exists only while a close confirmation prompt is outstanding
// and is never written to the registry. CLOSED is terminal; a closed ticket is
// evicted from the registry inside the close operation, so the value is only
// observable transiently.
type TicketStatus string

const (
	TicketStatusOpen         TicketStatus = "OPEN"
	TicketStatusPendingClose TicketStatus = "PENDING_CLOSE"
	TicketStatusClosed       TicketStatus = "CLOSED"
)

// Ticket is the aggregate for a single support request and the private
// channel provisioned for it. A ticket owns its channel for its lifetime.
type Ticket struct {
	ID          string       `json:"id"`
	ChannelID   string       `json:"channel_id"`
	OwnerUserID string       `json:"owner_user_id"`
	TicketType  string       `json:"ticket_type,omitempty"`
	Status      TicketStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`

	// AutoCloseAt is the first-stage auto-close due time. Persisting it lets
	// the scheduler re-arm timers after a restart.
	AutoCloseAt *time.Time `json:"auto_close_at,omitempty"`

	// CustomFieldAnswers mirrors TicketConfig.CustomFields. No interactive
	// collection flow exists, so this stays empty in practice.
	CustomFieldAnswers map[string]string `json:"custom_field_answers,omitempty"`
}
