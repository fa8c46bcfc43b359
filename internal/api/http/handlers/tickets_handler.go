package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/dto"
	"github.com/spec-kit/ticket-bot/internal/configstore"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/service"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const defaultClosedListLimit = 50

// adminActor attributes administrative API closes in events and archives.
const adminActor = "admin"

// TicketsHandler manages admin ticket endpoints.
type TicketsHandler struct {
	lifecycle *service.TicketLifecycle
	store     configstore.Store
	archive   repository.ArchiveRepository
	metrics   *observability.Metrics
}

// NewTicketsHandler constructs handler. archive may be nil when no archive
// database is configured.
func NewTicketsHandler(lifecycle *service.TicketLifecycle, store configstore.Store, archive repository.ArchiveRepository, metrics *observability.Metrics) *TicketsHandler {
	return &TicketsHandler{lifecycle: lifecycle, store: store, archive: archive, metrics: metrics}
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	tickets := h.lifecycle.ListActive()
	items := make([]dto.TicketSummary, 0, len(tickets))
	for _, ticket := range tickets {
		items = append(items, ticketSummary(ticket))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CloseTicket POST /tickets/:id/close. Admin closes bypass the confirmation
// prompt.
func (h *TicketsHandler) CloseTicket(c *fiber.Ctx) error {
	var req dto.CloseTicketRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.lifecycle.ForceClose(c.UserContext(), c.Params("id"), adminActor, req.Reason); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"closed": true}})
}

// AddUser POST /tickets/:id/users. Grants a member access to the ticket
// channel.
func (h *TicketsHandler) AddUser(c *fiber.Ctx) error {
	var req dto.TicketUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.UserID == "" {
		return apperrors.NewValidationError("user_id is required", nil)
	}
	if err := h.lifecycle.AddUser(c.UserContext(), c.Params("id"), req.UserID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"added": true}})
}

// RemoveUser DELETE /tickets/:id/users/:userId.
func (h *TicketsHandler) RemoveUser(c *fiber.Ctx) error {
	if err := h.lifecycle.RemoveUser(c.UserContext(), c.Params("id"), c.Params("userId")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"removed": true}})
}

// GenerateTranscript POST /tickets/:id/transcript.
func (h *TicketsHandler) GenerateTranscript(c *fiber.Ctx) error {
	path, err := h.lifecycle.GenerateTranscript(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"path": path}})
}

// Cleanup POST /tickets/cleanup. Removes registry entries whose channels no
// longer exist.
func (h *TicketsHandler) Cleanup(c *fiber.Ctx) error {
	removed, err := h.lifecycle.CleanupOrphans(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"removed": removed}})
}

// ListClosed GET /tickets/closed.
func (h *TicketsHandler) ListClosed(c *fiber.Ctx) error {
	if h.archive == nil {
		return apperrors.NewValidationError("closed-ticket archive is not configured", nil)
	}
	limit := defaultClosedListLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return apperrors.NewValidationError("limit must be a positive integer", nil)
		}
		limit = parsed
	}

	records, err := h.archive.ListRecent(c.UserContext(), limit)
	if err != nil {
		return apperrors.NewPersistenceError(err)
	}
	items := make([]dto.ClosedTicketSummary, 0, len(records))
	for _, record := range records {
		items = append(items, dto.ClosedTicketSummary{
			TicketID:     record.TicketID,
			OwnerUserID:  record.OwnerUserID,
			TicketType:   record.TicketType,
			CreatedAt:    record.CreatedAt,
			ClosedAt:     record.ClosedAt,
			ClosedBy:     record.ClosedBy,
			CloseReason:  record.CloseReason,
			MessageCount: record.MessageCount,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetConfig GET /config.
func (h *TicketsHandler) GetConfig(c *fiber.Ctx) error {
	cfg, err := h.store.Get(c.UserContext())
	if err != nil {
		return apperrors.NewPersistenceError(err)
	}
	return c.JSON(fiber.Map{"data": cfg})
}

// UpdateConfig PATCH /config. Accepts a partial configuration document and
// merges it into the stored one.
func (h *TicketsHandler) UpdateConfig(c *fiber.Ctx) error {
	var partial map[string]any
	if err := c.BodyParser(&partial); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if len(partial) == 0 {
		return apperrors.NewValidationError("empty update", nil)
	}
	cfg, err := h.store.Update(c.UserContext(), partial)
	if err != nil {
		return apperrors.NewPersistenceError(err)
	}
	return c.JSON(fiber.Map{"data": cfg})
}

// PublishPanel POST /panel.
func (h *TicketsHandler) PublishPanel(c *fiber.Ctx) error {
	messageID, err := h.lifecycle.PublishPanel(c.UserContext())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{"message_id": messageID}})
}

// Metrics GET /metrics.
func (h *TicketsHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}

func ticketSummary(ticket domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:          ticket.ID,
		ChannelID:   ticket.ChannelID,
		OwnerUserID: ticket.OwnerUserID,
		TicketType:  ticket.TicketType,
		Status:      ticket.Status,
		CreatedAt:   ticket.CreatedAt,
		AutoCloseAt: ticket.AutoCloseAt,
	}
}
