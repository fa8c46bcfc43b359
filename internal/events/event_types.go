package events

import (
	"time"
)

// EventType enumerates supported lifecycle event identifiers.
type EventType string

const (
	EventTicketCreated        EventType = "ticket_created"
	EventCloseRequested       EventType = "close_requested"
	EventCloseCancelled       EventType = "close_cancelled"
	EventTicketClosed         EventType = "ticket_closed"
	EventAutoCloseWarned      EventType = "autoclose_warned"
	EventUserAdded            EventType = "user_added"
	EventUserRemoved          EventType = "user_removed"
	EventTranscriptGenerated  EventType = "transcript_generated"
	EventOrphanCleaned        EventType = "orphan_cleaned"
	EventPanelPublished       EventType = "panel_published"
)

// SystemActor marks events triggered by the bot itself (timers, cleanup).
const SystemActor = "system"

// Event represents a lifecycle event emitted by the ticket manager.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	ChannelID string      `json:"channel_id,omitempty"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	OwnerUserID string     `json:"owner_user_id"`
	TicketType  string     `json:"ticket_type,omitempty"`
	AutoCloseAt *time.Time `json:"auto_close_at,omitempty"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	OwnerUserID    string `json:"owner_user_id"`
	Reason         string `json:"reason,omitempty"`
	TranscriptPath string `json:"transcript_path,omitempty"`
}

// CloseRequestedPayload payload.
type CloseRequestedPayload struct {
	Reason       string `json:"reason,omitempty"`
	AwaitConfirm bool   `json:"await_confirm"`
}

// AutoCloseWarnedPayload payload.
type AutoCloseWarnedPayload struct {
	GraceSeconds int `json:"grace_seconds"`
}

// UserAccessPayload payload for user_added / user_removed.
type UserAccessPayload struct {
	UserID string `json:"user_id"`
}

// TranscriptGeneratedPayload payload.
type TranscriptGeneratedPayload struct {
	Path         string `json:"path"`
	MessageCount int    `json:"message_count"`
}

// OrphanCleanedPayload payload.
type OrphanCleanedPayload struct {
	ChannelID string `json:"channel_id"`
}

// PanelPublishedPayload payload.
type PanelPublishedPayload struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}
