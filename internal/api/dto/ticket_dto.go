package dto

import (
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// LoginRequest payload for POST /admin/login.
type LoginRequest struct {
	AdminKey string `json:"admin_key"`
}

// LoginResponse carries the issued admin token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TicketSummary response.
type TicketSummary struct {
	ID          string              `json:"id"`
	ChannelID   string              `json:"channel_id"`
	OwnerUserID string              `json:"owner_user_id"`
	TicketType  string              `json:"ticket_type,omitempty"`
	Status      domain.TicketStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	AutoCloseAt *time.Time          `json:"auto_close_at,omitempty"`
}

// CloseTicketRequest payload for POST /tickets/:id/close.
type CloseTicketRequest struct {
	Reason string `json:"reason"`
}

// TicketUserRequest payload for POST /tickets/:id/users.
type TicketUserRequest struct {
	UserID string `json:"user_id"`
}

// ClosedTicketSummary response for archived closures.
type ClosedTicketSummary struct {
	TicketID     string    `json:"ticket_id"`
	OwnerUserID  string    `json:"owner_user_id"`
	TicketType   string    `json:"ticket_type,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	ClosedAt     time.Time `json:"closed_at"`
	ClosedBy     string    `json:"closed_by,omitempty"`
	CloseReason  string    `json:"close_reason,omitempty"`
	MessageCount int       `json:"message_count"`
}
