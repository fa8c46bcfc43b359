package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/configstore"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/gateway"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/registry"
	"github.com/spec-kit/ticket-bot/internal/repository"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const (
	// graceDelay is the fixed warning window between the auto-close warning
	// and the actual close.
	graceDelay = 60 * time.Second

	autoCloseReason = "auto-close: inactivity"

	ticketIDAttempts = 5
)

// Capabilities granted inside a ticket channel.
const (
	ticketOwnerCapabilities = domain.CapabilityViewChannel | domain.CapabilitySendMessages |
		domain.CapabilityReadHistory | domain.CapabilityAttachFiles | domain.CapabilityEmbedLinks
	ticketBotCapabilities = ticketOwnerCapabilities | domain.CapabilityManageChannel |
		domain.CapabilityManagePermissions
	ticketSupportCapabilities = domain.CapabilityViewChannel | domain.CapabilitySendMessages |
		domain.CapabilityReadHistory
	addedUserCapabilities = domain.CapabilityViewChannel | domain.CapabilitySendMessages |
		domain.CapabilityReadHistory
)

// TicketLifecycle is the ticket state machine: creation, manual and
// automatic closing, and the registries that carry ticket state across
// restarts. A single mutex serializes whole operations, so the
// read-modify-write cycles over the snapshot stores cannot race each other.
type TicketLifecycle struct {
	mu sync.Mutex

	gw          gateway.Gateway
	store       configstore.Store
	tickets     *registry.TicketRegistry
	index       *registry.UserTicketIndex
	timers      *TimerRegistry
	transcripts *TranscriptGenerator
	archive     repository.ArchiveRepository
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	clock       Clock

	deleteDelay time.Duration

	// pendingCloses tracks outstanding close confirmations by ticket id. A
	// ticket in this map is still OPEN in the registry; PENDING_CLOSE state
	// lives only here, while the prompt is outstanding.
	pendingCloses map[string]pendingClose
}

type pendingClose struct {
	closerID string
	reason   string
}

// LifecycleDependencies bundles collaborators for the lifecycle manager.
type LifecycleDependencies struct {
	Gateway     gateway.Gateway
	ConfigStore configstore.Store
	Tickets     *registry.TicketRegistry
	Index       *registry.UserTicketIndex
	Timers      *TimerRegistry
	Transcripts *TranscriptGenerator
	Archive     repository.ArchiveRepository
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	Clock       Clock
	DeleteDelay time.Duration
}

// NewTicketLifecycle constructs the lifecycle manager.
func NewTicketLifecycle(deps LifecycleDependencies) *TicketLifecycle {
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock()
	}
	return &TicketLifecycle{
		gw:            deps.Gateway,
		store:         deps.ConfigStore,
		tickets:       deps.Tickets,
		index:         deps.Index,
		timers:        deps.Timers,
		transcripts:   deps.Transcripts,
		archive:       deps.Archive,
		dispatcher:    deps.Dispatcher,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		clock:         clock,
		deleteDelay:   deps.DeleteDelay,
		pendingCloses: make(map[string]pendingClose),
	}
}

// Create provisions a new ticket for the requester: quota and permission
// checks, private channel creation, registry insertion, welcome message and
// optional auto-close scheduling. No registry entry is written unless channel
// provisioning succeeded.
func (s *TicketLifecycle) Create(ctx context.Context, requesterID, ticketType string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.store.Get(ctx)
	if err != nil {
		return nil, s.opError("create", apperrors.NewPersistenceError(err))
	}
	if !cfg.Enabled {
		return nil, s.opError("create", apperrors.NewConfigInvalid([]string{"ticket system is not enabled"}))
	}

	count := s.index.Count(requesterID)
	limit := cfg.TicketLimit
	if limit == 0 {
		limit = 1
	}
	if count >= limit {
		return nil, s.opError("create", apperrors.NewQuotaExceeded(count, limit))
	}

	if result := ValidateConfig(cfg); !result.Valid {
		return nil, s.opError("create", apperrors.NewConfigInvalid(result.Errors))
	}
	if result := ValidatePermissions(ctx, s.gw, cfg); !result.Valid {
		return nil, s.opError("create", apperrors.NewPermissionDenied(result.Errors))
	}

	id, err := s.newTicketID()
	if err != nil {
		return nil, s.opError("create", err)
	}

	channelID, err := s.gw.CreateChannel(ctx, gateway.ChannelCreate{
		Name:       ticketChannelName(requesterID, id),
		ParentID:   cfg.CategoryID,
		Topic:      fmt.Sprintf("Support ticket %s", id),
		Overwrites: buildTicketOverwrites(requesterID, s.gw.BotUserID(), cfg.SupportRoleID),
	})
	if err != nil {
		s.logger.Error("channel provisioning failed",
			zap.String("ticket_id", id),
			zap.String("requester", requesterID),
			zap.Error(err))
		return nil, s.opError("create", apperrors.NewPlatformError(err))
	}

	now := s.clock.Now().UTC()
	ticket := domain.Ticket{
		ID:          id,
		ChannelID:   channelID,
		OwnerUserID: requesterID,
		TicketType:  ticketType,
		Status:      domain.TicketStatusOpen,
		CreatedAt:   now,
	}
	if cfg.AutoClose && cfg.AutoCloseDelaySeconds > 0 {
		due := now.Add(time.Duration(cfg.AutoCloseDelaySeconds) * time.Second)
		ticket.AutoCloseAt = &due
	}

	if err := s.tickets.Put(ticket); err != nil {
		// Undo the platform side so no channel survives without a registry
		// entry. Best effort; a failure here is logged for operators.
		if delErr := s.gw.DeleteChannel(ctx, channelID); delErr != nil {
			s.logger.Error("orphaned channel could not be removed",
				zap.String("channel_id", channelID), zap.Error(delErr))
		}
		return nil, s.opError("create", apperrors.NewPersistenceError(err))
	}
	if err := s.index.AppendChannel(requesterID, channelID); err != nil {
		if remErr := s.tickets.Remove(id); remErr != nil {
			s.logger.Error("registry rollback failed", zap.String("ticket_id", id), zap.Error(remErr))
		}
		if delErr := s.gw.DeleteChannel(ctx, channelID); delErr != nil {
			s.logger.Error("orphaned channel could not be removed",
				zap.String("channel_id", channelID), zap.Error(delErr))
		}
		return nil, s.opError("create", apperrors.NewPersistenceError(err))
	}

	s.sendWelcome(ctx, cfg, ticket)

	if ticket.AutoCloseAt != nil {
		s.scheduleWarning(ticket.ID, ticket.AutoCloseAt.Sub(now))
	}

	if cfg.LogAllActions {
		s.publishEvent(ctx, events.Event{
			Type:      events.EventTicketCreated,
			TicketID:  ticket.ID,
			ChannelID: ticket.ChannelID,
			ActorID:   requesterID,
			Payload: events.TicketCreatedPayload{
				OwnerUserID: requesterID,
				TicketType:  ticketType,
				AutoCloseAt: ticket.AutoCloseAt,
			},
		})
	}

	s.metrics.RecordOp("create")
	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("channel_id", ticket.ChannelID),
		zap.String("owner", requesterID))
	return &ticket, nil
}

// RequestClose starts closing a ticket. When close confirmation is
// configured, a confirm/cancel prompt is posted and the registry stays
// untouched until ConfirmClose; otherwise the close executes directly.
func (s *TicketLifecycle) RequestClose(ctx context.Context, ticketID, closerID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets.Get(ticketID)
	if !ok {
		return s.opError("request_close", apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID}))
	}

	cfg, err := s.store.Get(ctx)
	if err != nil {
		return s.opError("request_close", apperrors.NewPersistenceError(err))
	}

	if cfg.Panel.ConfirmBeforeDelete {
		s.pendingCloses[ticketID] = pendingClose{closerID: closerID, reason: reason}
		if _, err := s.gw.SendMessage(ctx, ticket.ChannelID, gateway.OutboundMessage{
			Content: "Are you sure you want to close this ticket?",
			Buttons: gateway.ConfirmControls(),
		}); err != nil {
			delete(s.pendingCloses, ticketID)
			s.logger.Error("close prompt failed", zap.String("ticket_id", ticketID), zap.Error(err))
			return s.opError("request_close", apperrors.NewPlatformError(err))
		}
		if cfg.LogAllActions {
			s.publishEvent(ctx, events.Event{
				Type:      events.EventCloseRequested,
				TicketID:  ticketID,
				ChannelID: ticket.ChannelID,
				ActorID:   closerID,
				Payload:   events.CloseRequestedPayload{Reason: reason, AwaitConfirm: true},
			})
		}
		s.metrics.RecordOp("request_close")
		return nil
	}

	return s.executeClose(ctx, cfg, ticket, closerID, reason)
}

// ConfirmClose completes a close that is awaiting confirmation.
func (s *TicketLifecycle) ConfirmClose(ctx context.Context, ticketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.pendingCloses[ticketID]
	if !ok {
		return s.opError("confirm_close", apperrors.NewNotFound("pending close", map[string]any{"ticket_id": ticketID}))
	}
	ticket, ok := s.tickets.Get(ticketID)
	if !ok {
		delete(s.pendingCloses, ticketID)
		return s.opError("confirm_close", apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID}))
	}
	cfg, err := s.store.Get(ctx)
	if err != nil {
		return s.opError("confirm_close", apperrors.NewPersistenceError(err))
	}
	return s.executeClose(ctx, cfg, ticket, pending.closerID, pending.reason)
}

// CancelClose abandons an outstanding close confirmation, leaving the ticket
// open. Cancelling a ticket with no pending close is a no-op.
func (s *TicketLifecycle) CancelClose(ctx context.Context, ticketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pendingCloses[ticketID]; !ok {
		return nil
	}
	delete(s.pendingCloses, ticketID)

	if ticket, ok := s.tickets.Get(ticketID); ok {
		if _, err := s.gw.SendMessage(ctx, ticket.ChannelID, gateway.OutboundMessage{
			Content: "Close cancelled. This ticket stays open.",
		}); err != nil {
			s.logger.Warn("cancel notice failed", zap.String("ticket_id", ticketID), zap.Error(err))
		}
		cfg, err := s.store.Get(ctx)
		if err == nil && cfg.LogAllActions {
			s.publishEvent(ctx, events.Event{
				Type:      events.EventCloseCancelled,
				TicketID:  ticketID,
				ChannelID: ticket.ChannelID,
				ActorID:   ticket.OwnerUserID,
			})
		}
	}
	s.metrics.RecordOp("cancel_close")
	return nil
}

// ForceClose closes a ticket immediately, bypassing any confirmation
// prompt. Used by the admin surface and the auto-close scheduler.
func (s *TicketLifecycle) ForceClose(ctx context.Context, ticketID, closerID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets.Get(ticketID)
	if !ok {
		return s.opError("force_close", apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID}))
	}
	cfg, err := s.store.Get(ctx)
	if err != nil {
		return s.opError("force_close", apperrors.NewPersistenceError(err))
	}
	return s.executeClose(ctx, cfg, ticket, closerID, reason)
}

// executeClose runs the terminal transition: closing message, transcript,
// timer cancellation, registry removal and deferred channel deletion.
// Callers hold s.mu.
func (s *TicketLifecycle) executeClose(ctx context.Context, cfg domain.TicketConfig, ticket domain.Ticket, closerID, reason string) error {
	closedAt := s.clock.Now().UTC()
	// CLOSED is terminal and observed only on this local copy; the registry
	// record is evicted below, never rewritten.
	ticket.Status = domain.TicketStatusClosed

	closing := "This ticket is now closed."
	if cfg.CloseMessage != "" {
		closing = cfg.CloseMessage
	}
	if closerID != "" && closerID != events.SystemActor {
		closing = fmt.Sprintf("%s\nClosed by <@%s>.", closing, closerID)
	}
	if reason != "" {
		closing = fmt.Sprintf("%s\nReason: %s", closing, reason)
	}
	if _, err := s.gw.SendMessage(ctx, ticket.ChannelID, gateway.OutboundMessage{Content: closing}); err != nil {
		// The channel may already be gone; the close proceeds regardless.
		s.logger.Warn("closing message failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	// The transcript runs synchronously so it captures the close
	// announcement before the channel disappears.
	var transcript *TranscriptResult
	if cfg.LogTranscripts {
		result, err := s.transcripts.GenerateWithRetry(ctx, ticket)
		if err != nil {
			s.logger.Error("transcript generation failed",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
		} else {
			transcript = result
			if err := s.transcripts.Upload(ctx, cfg, ticket, result, closedAt, closerID, reason); err != nil {
				s.logger.Error("transcript upload failed",
					zap.String("ticket_id", ticket.ID), zap.Error(err))
			}
		}
	}

	// Cancel both stages; a manual close during the warning window must
	// prevent the scheduled auto-close from firing later.
	s.timers.Cancel(ticket.ID)

	if err := s.tickets.Remove(ticket.ID); err != nil {
		// Abort before touching the channel: ticket and channel both still
		// exist, so state stays consistent and the close can be retried.
		return s.opError("close", apperrors.NewPersistenceError(err))
	}
	if err := s.index.RemoveChannel(ticket.OwnerUserID, ticket.ChannelID); err != nil {
		s.logger.Error("user index removal failed",
			zap.String("ticket_id", ticket.ID),
			zap.String("owner", ticket.OwnerUserID),
			zap.Error(err))
	}
	delete(s.pendingCloses, ticket.ID)

	if cfg.LogAllActions {
		payload := events.TicketClosedPayload{OwnerUserID: ticket.OwnerUserID, Reason: reason}
		if transcript != nil {
			payload.TranscriptPath = transcript.Path
		}
		s.publishEvent(ctx, events.Event{
			Type:      events.EventTicketClosed,
			TicketID:  ticket.ID,
			ChannelID: ticket.ChannelID,
			ActorID:   closerID,
			Payload:   payload,
		})
	}

	s.archiveClosed(ctx, ticket, closedAt, closerID, reason, transcript)

	// Deletion is deferred so the closing message stays visible for a
	// moment. Failure is logged, never retried, and cannot reopen the
	// ticket.
	channelID := ticket.ChannelID
	s.clock.AfterFunc(s.deleteDelay, func() {
		if err := s.gw.DeleteChannel(context.Background(), channelID); err != nil {
			s.logger.Error("channel deletion failed",
				zap.String("channel_id", channelID), zap.Error(err))
		}
	})

	s.metrics.RecordOp("close")
	s.logger.Info("ticket closed",
		zap.String("ticket_id", ticket.ID),
		zap.String("closed_by", closerID),
		zap.String("reason", reason))
	return nil
}

// AddUser grants another user access to a ticket channel.
func (s *TicketLifecycle) AddUser(ctx context.Context, ticketID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets.Get(ticketID)
	if !ok {
		return s.opError("add_user", apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID}))
	}
	if err := s.gw.SetMemberOverwrite(ctx, ticket.ChannelID, userID, addedUserCapabilities); err != nil {
		return s.opError("add_user", apperrors.NewPlatformError(err))
	}

	cfg, err := s.store.Get(ctx)
	if err == nil && cfg.LogAllActions {
		s.publishEvent(ctx, events.Event{
			Type:      events.EventUserAdded,
			TicketID:  ticketID,
			ChannelID: ticket.ChannelID,
			ActorID:   userID,
			Payload:   events.UserAccessPayload{UserID: userID},
		})
	}
	s.metrics.RecordOp("add_user")
	return nil
}

// RemoveUser revokes a user's access to a ticket channel. The owner cannot
// be removed from their own ticket.
func (s *TicketLifecycle) RemoveUser(ctx context.Context, ticketID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets.Get(ticketID)
	if !ok {
		return s.opError("remove_user", apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID}))
	}
	if userID == ticket.OwnerUserID {
		return s.opError("remove_user", apperrors.NewValidationError("cannot remove the ticket owner", nil))
	}
	if err := s.gw.DeleteMemberOverwrite(ctx, ticket.ChannelID, userID); err != nil {
		return s.opError("remove_user", apperrors.NewPlatformError(err))
	}

	cfg, err := s.store.Get(ctx)
	if err == nil && cfg.LogAllActions {
		s.publishEvent(ctx, events.Event{
			Type:      events.EventUserRemoved,
			TicketID:  ticketID,
			ChannelID: ticket.ChannelID,
			ActorID:   userID,
			Payload:   events.UserAccessPayload{UserID: userID},
		})
	}
	s.metrics.RecordOp("remove_user")
	return nil
}

// GenerateTranscript renders and persists a transcript for an open ticket
// on demand, uploading it when a transcript channel is configured.
func (s *TicketLifecycle) GenerateTranscript(ctx context.Context, ticketID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets.Get(ticketID)
	if !ok {
		return "", s.opError("transcript", apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID}))
	}

	result, err := s.transcripts.GenerateWithRetry(ctx, ticket)
	if err != nil {
		return "", s.opError("transcript", apperrors.NewPersistenceError(err))
	}

	cfg, cfgErr := s.store.Get(ctx)
	if cfgErr == nil {
		if err := s.transcripts.Upload(ctx, cfg, ticket, result, s.clock.Now().UTC(), "", ""); err != nil {
			s.logger.Warn("transcript upload failed", zap.String("ticket_id", ticketID), zap.Error(err))
		}
		if cfg.LogAllActions {
			s.publishEvent(ctx, events.Event{
				Type:      events.EventTranscriptGenerated,
				TicketID:  ticketID,
				ChannelID: ticket.ChannelID,
				ActorID:   events.SystemActor,
				Payload:   events.TranscriptGeneratedPayload{Path: result.Path, MessageCount: result.MessageCount},
			})
		}
	}
	s.metrics.RecordOp("transcript")
	return result.Path, nil
}

// ListActive returns all open tickets, oldest first. Tickets awaiting a
// close confirmation are reported with PENDING_CLOSE status; the registry
// itself only ever holds OPEN records.
func (s *TicketLifecycle) ListActive() []domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()

	tickets := s.tickets.List()
	for i := range tickets {
		if _, ok := s.pendingCloses[tickets[i].ID]; ok {
			tickets[i].Status = domain.TicketStatusPendingClose
		}
	}
	return tickets
}

// CleanupOrphans removes registry entries whose channel no longer resolves,
// returning how many were removed. Channels deleted out-of-band otherwise
// hold the owner's quota forever.
func (s *TicketLifecycle) CleanupOrphans(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, ticket := range s.tickets.List() {
		channel, err := s.gw.ResolveChannel(ctx, ticket.ChannelID)
		if err != nil {
			s.logger.Warn("orphan check failed",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
			continue
		}
		if channel != nil {
			continue
		}

		s.timers.Cancel(ticket.ID)
		delete(s.pendingCloses, ticket.ID)
		if err := s.tickets.Remove(ticket.ID); err != nil {
			return removed, s.opError("cleanup", apperrors.NewPersistenceError(err))
		}
		if err := s.index.RemoveChannel(ticket.OwnerUserID, ticket.ChannelID); err != nil {
			s.logger.Error("user index removal failed",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
		removed++

		s.publishEvent(ctx, events.Event{
			Type:     events.EventOrphanCleaned,
			TicketID: ticket.ID,
			ActorID:  events.SystemActor,
			Payload:  events.OrphanCleanedPayload{ChannelID: ticket.ChannelID},
		})
		s.logger.Info("orphaned ticket removed",
			zap.String("ticket_id", ticket.ID),
			zap.String("channel_id", ticket.ChannelID))
	}
	s.metrics.RecordOp("cleanup")
	return removed, nil
}

// PublishPanel posts (or reposts) the ticket panel message to the configured
// panel channel after validating configuration and permissions.
func (s *TicketLifecycle) PublishPanel(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.store.Get(ctx)
	if err != nil {
		return "", s.opError("publish_panel", apperrors.NewPersistenceError(err))
	}
	if result := ValidateConfig(cfg); !result.Valid {
		return "", s.opError("publish_panel", apperrors.NewConfigInvalid(result.Errors))
	}
	if result := ValidatePermissions(ctx, s.gw, cfg); !result.Valid {
		return "", s.opError("publish_panel", apperrors.NewPermissionDenied(result.Errors))
	}

	msg := gateway.OutboundMessage{
		Embed: &gateway.Embed{
			Title:       "Support",
			Description: cfg.Panel.WelcomeMessage,
		},
	}
	if cfg.Panel.SelectionType == domain.PanelSelectionDropdown && len(cfg.Panel.DropdownOptions) > 0 {
		msg.Select = gateway.PanelSelectMenu(cfg.Panel.DropdownOptions)
	} else {
		msg.Buttons = []gateway.Button{gateway.PanelOpenButton(cfg.Panel.ButtonLabel)}
	}

	messageID, err := s.gw.SendMessage(ctx, cfg.Panel.ChannelID, msg)
	if err != nil {
		return "", s.opError("publish_panel", apperrors.NewPlatformError(err))
	}

	if cfg.LogAllActions {
		s.publishEvent(ctx, events.Event{
			Type:    events.EventPanelPublished,
			ActorID: events.SystemActor,
			Payload: events.PanelPublishedPayload{ChannelID: cfg.Panel.ChannelID, MessageID: messageID},
		})
	}
	s.metrics.RecordOp("publish_panel")
	return messageID, nil
}

// RearmTimers reconstructs auto-close schedules from the registry after a
// restart. Overdue tickets go straight to the warning stage. Returns the
// number of schedules re-armed.
func (s *TicketLifecycle) RearmTimers(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.store.Get(ctx)
	if err != nil {
		s.logger.Error("config read failed during timer rearm", zap.Error(err))
		return 0
	}
	if !cfg.AutoClose {
		return 0
	}

	now := s.clock.Now().UTC()
	rearmed := 0
	for _, ticket := range s.tickets.List() {
		if ticket.AutoCloseAt == nil {
			continue
		}
		delay := ticket.AutoCloseAt.Sub(now)
		if delay < 0 {
			delay = 0
		}
		s.scheduleWarning(ticket.ID, delay)
		rearmed++
	}
	if rearmed > 0 {
		s.logger.Info("auto-close timers re-armed", zap.Int("count", rearmed))
	}
	return rearmed
}

// Shutdown cancels all pending timers.
func (s *TicketLifecycle) Shutdown() {
	s.timers.Stop()
}

// scheduleWarning arms the first-stage timer. Callers hold s.mu; only one
// first-stage timer may be live per ticket, which the timer registry
// enforces by replacement.
func (s *TicketLifecycle) scheduleWarning(ticketID string, delay time.Duration) {
	s.timers.Schedule(ticketID, StageWarn, delay, func() {
		s.autoCloseWarn(ticketID)
	})
}

// autoCloseWarn is the first-stage firing: post the warning and arm the
// grace timer. Runs on the timer goroutine.
func (s *TicketLifecycle) autoCloseWarn(ticketID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets.Get(ticketID)
	if !ok {
		return
	}

	ctx := context.Background()
	if _, err := s.gw.SendMessage(ctx, ticket.ChannelID, gateway.OutboundMessage{
		Content: fmt.Sprintf("This ticket has been inactive and will close in %d seconds.", int(graceDelay.Seconds())),
	}); err != nil {
		s.logger.Warn("auto-close warning failed", zap.String("ticket_id", ticketID), zap.Error(err))
	}

	cfg, err := s.store.Get(ctx)
	if err == nil && cfg.LogAllActions {
		s.publishEvent(ctx, events.Event{
			Type:      events.EventAutoCloseWarned,
			TicketID:  ticketID,
			ChannelID: ticket.ChannelID,
			ActorID:   events.SystemActor,
			Payload:   events.AutoCloseWarnedPayload{GraceSeconds: int(graceDelay.Seconds())},
		})
	}

	s.timers.Schedule(ticketID, StageGrace, graceDelay, func() {
		s.autoCloseFire(ticketID)
	})
}

// autoCloseFire is the second-stage firing: close the ticket if it is still
// open. Runs on the timer goroutine.
func (s *TicketLifecycle) autoCloseFire(ticketID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets.Get(ticketID)
	if !ok {
		return
	}
	ctx := context.Background()
	cfg, err := s.store.Get(ctx)
	if err != nil {
		s.logger.Error("config read failed during auto-close", zap.String("ticket_id", ticketID), zap.Error(err))
		return
	}
	if err := s.executeClose(ctx, cfg, ticket, events.SystemActor, autoCloseReason); err != nil {
		s.logger.Error("auto-close failed", zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

// newTicketID generates a short random token and retries until it does not
// collide with a registered ticket.
func (s *TicketLifecycle) newTicketID() (string, error) {
	for attempt := 0; attempt < ticketIDAttempts; attempt++ {
		id := "TKT-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
		if !s.tickets.Exists(id) {
			return id, nil
		}
	}
	return "", apperrors.NewPersistenceError(fmt.Errorf("could not allocate a unique ticket id in %d attempts", ticketIDAttempts))
}

func (s *TicketLifecycle) sendWelcome(ctx context.Context, cfg domain.TicketConfig, ticket domain.Ticket) {
	welcome := cfg.Panel.WelcomeMessage
	if welcome == "" {
		welcome = "A member of the support team will be with you shortly."
	}
	content := fmt.Sprintf("<@%s> %s", ticket.OwnerUserID, cfg.OpenMessage)
	if cfg.OpenMessage == "" {
		content = fmt.Sprintf("<@%s>", ticket.OwnerUserID)
	}

	msg := gateway.OutboundMessage{
		Content: content,
		Embed: &gateway.Embed{
			Title:       fmt.Sprintf("Ticket %s", ticket.ID),
			Description: welcome,
		},
		Buttons: gateway.TicketControls(),
		Select:  gateway.AddUserSelect(),
	}
	if _, err := s.gw.SendMessage(ctx, ticket.ChannelID, msg); err != nil {
		// The ticket stays valid without its welcome message.
		s.logger.Warn("welcome message failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
}

func (s *TicketLifecycle) archiveClosed(ctx context.Context, ticket domain.Ticket, closedAt time.Time, closerID, reason string, transcript *TranscriptResult) {
	if s.archive == nil {
		return
	}
	record := &repository.ClosedTicket{
		TicketID:    ticket.ID,
		ChannelID:   ticket.ChannelID,
		OwnerUserID: ticket.OwnerUserID,
		TicketType:  ticket.TicketType,
		CreatedAt:   ticket.CreatedAt,
		ClosedAt:    closedAt,
		ClosedBy:    closerID,
		CloseReason: reason,
	}
	if transcript != nil {
		record.MessageCount = transcript.MessageCount
		path := transcript.Path
		record.TranscriptPath = &path
	}
	if err := s.archive.Insert(ctx, record); err != nil {
		// Archiving never blocks a close.
		s.logger.Warn("closed-ticket archive insert failed",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
}

func (s *TicketLifecycle) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now().UTC()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func (s *TicketLifecycle) opError(op string, err error) error {
	s.metrics.RecordOpError(op, apperrors.ToDomainError(err).Code)
	return err
}

func ticketChannelName(requesterID, ticketID string) string {
	suffix := strings.ToLower(strings.TrimPrefix(ticketID, "TKT-"))
	return fmt.Sprintf("ticket-%s-%s", requesterID, suffix)
}

func buildTicketOverwrites(requesterID, botID, supportRoleID string) []gateway.AccessOverwrite {
	overwrites := []gateway.AccessOverwrite{
		{
			PrincipalID: gateway.EveryonePrincipal,
			Kind:        gateway.OverwriteRole,
			Deny:        domain.CapabilityViewChannel,
		},
		{
			PrincipalID: requesterID,
			Kind:        gateway.OverwriteMember,
			Allow:       ticketOwnerCapabilities,
		},
	}
	if botID != "" {
		overwrites = append(overwrites, gateway.AccessOverwrite{
			PrincipalID: botID,
			Kind:        gateway.OverwriteMember,
			Allow:       ticketBotCapabilities,
		})
	}
	if supportRoleID != "" {
		overwrites = append(overwrites, gateway.AccessOverwrite{
			PrincipalID: supportRoleID,
			Kind:        gateway.OverwriteRole,
			Allow:       ticketSupportCapabilities,
		})
	}
	return overwrites
}
