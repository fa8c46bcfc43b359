package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/gateway"
	"github.com/spec-kit/ticket-bot/internal/registry"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

type lifecycleFixture struct {
	lifecycle *TicketLifecycle
	gw        *fakeGateway
	store     *fakeConfigStore
	clock     *fakeClock
	timers    *TimerRegistry
	tickets   *registry.TicketRegistry
	index     *registry.UserTicketIndex
}

func validTestConfig() domain.TicketConfig {
	cfg := domain.DefaultTicketConfig()
	cfg.Enabled = true
	cfg.CategoryID = "cat-1"
	cfg.SupportRoleID = "role-1"
	cfg.TranscriptChannelID = "log-1"
	cfg.Panel.ChannelID = "panel-1"
	return cfg
}

func newLifecycleFixture(t *testing.T, cfg domain.TicketConfig) *lifecycleFixture {
	t.Helper()

	gw := newFakeGateway()
	gw.addCategory("cat-1")
	gw.addRole("role-1")
	gw.addChannel("log-1")
	gw.addChannel("panel-1")

	dir := t.TempDir()
	tickets, err := registry.NewTicketRegistry(filepath.Join(dir, "tickets.json"))
	require.NoError(t, err)
	index, err := registry.NewUserTicketIndex(filepath.Join(dir, "user_index.json"))
	require.NoError(t, err)

	clock := newFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	timers := NewTimerRegistry(clock)
	store := &fakeConfigStore{cfg: cfg}
	logger := zap.NewNop()

	lifecycle := NewTicketLifecycle(LifecycleDependencies{
		Gateway:     gw,
		ConfigStore: store,
		Tickets:     tickets,
		Index:       index,
		Timers:      timers,
		Transcripts: NewTranscriptGenerator(gw, clock, filepath.Join(dir, "transcripts"), logger),
		Logger:      logger,
		Clock:       clock,
		DeleteDelay: 5 * time.Second,
	})

	return &lifecycleFixture{
		lifecycle: lifecycle,
		gw:        gw,
		store:     store,
		clock:     clock,
		timers:    timers,
		tickets:   tickets,
		index:     index,
	}
}

func TestCreateRegistersTicket(t *testing.T) {
	fx := newLifecycleFixture(t, validTestConfig())

	ticket, err := fx.lifecycle.Create(context.Background(), "user-1", "billing")
	require.NoError(t, err)
	require.NotNil(t, ticket)
	require.Equal(t, domain.TicketStatusOpen, ticket.Status)
	require.Equal(t, "user-1", ticket.OwnerUserID)
	require.Equal(t, "billing", ticket.TicketType)

	stored, ok := fx.tickets.Get(ticket.ID)
	require.True(t, ok)
	require.Equal(t, ticket.ChannelID, stored.ChannelID)
	require.Equal(t, uint(1), fx.index.Count("user-1"))

	welcome := fx.gw.sentTo(ticket.ChannelID)
	require.Len(t, welcome, 1)
	require.NotEmpty(t, welcome[0].Buttons)
}

func TestWelcomeCarriesManagementControls(t *testing.T) {
	fx := newLifecycleFixture(t, validTestConfig())

	ticket, err := fx.lifecycle.Create(context.Background(), "user-1", "")
	require.NoError(t, err)

	welcome := fx.gw.sentTo(ticket.ChannelID)
	require.Len(t, welcome, 1)

	kinds := make([]gateway.InteractionKind, 0, len(welcome[0].Buttons))
	for _, button := range welcome[0].Buttons {
		kinds = append(kinds, gateway.KindForCustomID(button.CustomID))
	}
	require.Contains(t, kinds, gateway.InteractionClose)
	require.Contains(t, kinds, gateway.InteractionTranscript)

	require.NotNil(t, welcome[0].Select)
	require.True(t, welcome[0].Select.UserSelect)
	require.Equal(t, gateway.InteractionAddUser, gateway.KindForCustomID(welcome[0].Select.CustomID))
}

func TestCreateEnforcesQuota(t *testing.T) {
	cfg := validTestConfig()
	cfg.TicketLimit = 1
	fx := newLifecycleFixture(t, cfg)

	_, err := fx.lifecycle.Create(context.Background(), "user-1", "")
	require.NoError(t, err)

	_, err = fx.lifecycle.Create(context.Background(), "user-1", "")
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "QUOTA_EXCEEDED"))
	require.Equal(t, uint(1), fx.index.Count("user-1"))
	require.Equal(t, 1, fx.tickets.Len())

	// Another user is unaffected.
	_, err = fx.lifecycle.Create(context.Background(), "user-2", "")
	require.NoError(t, err)
}

func TestCreateRejectsDisabledSystem(t *testing.T) {
	cfg := validTestConfig()
	cfg.Enabled = false
	fx := newLifecycleFixture(t, cfg)

	_, err := fx.lifecycle.Create(context.Background(), "user-1", "")
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "CONFIG_INVALID"))
	require.Equal(t, 0, fx.tickets.Len())
}

func TestCreateRejectsUnresolvedCategory(t *testing.T) {
	cfg := validTestConfig()
	cfg.CategoryID = "cat-missing"
	fx := newLifecycleFixture(t, cfg)

	_, err := fx.lifecycle.Create(context.Background(), "user-1", "")
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "PERMISSION_DENIED"))
	require.Equal(t, 0, fx.tickets.Len())
	require.Equal(t, uint(0), fx.index.Count("user-1"))
}

func TestCreateRollsBackOnChannelFailure(t *testing.T) {
	fx := newLifecycleFixture(t, validTestConfig())
	fx.gw.createErr = errors.New("api down")

	_, err := fx.lifecycle.Create(context.Background(), "user-1", "")
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "PLATFORM_ERROR"))
	require.Equal(t, 0, fx.tickets.Len())
	require.Equal(t, uint(0), fx.index.Count("user-1"))
}

func TestRequestCloseWithoutConfirmation(t *testing.T) {
	fx := newLifecycleFixture(t, validTestConfig())
	ticket, err := fx.lifecycle.Create(context.Background(), "user-1", "")
	require.NoError(t, err)

	require.NoError(t, fx.lifecycle.RequestClose(context.Background(), ticket.ID, "user-1", "resolved"))

	require.Equal(t, 0, fx.tickets.Len())
	require.Equal(t, uint(0), fx.index.Count("user-1"))

	// Channel deletion is deferred past the close.
	require.Empty(t, fx.gw.deletedChannels())
	fx.clock.Advance(5 * time.Second)
	require.Contains(t, fx.gw.deletedChannels(), ticket.ChannelID)
}

func TestRequestCloseUnknownTicket(t *testing.T) {
	fx := newLifecycleFixture(t, validTestConfig())
	err := fx.lifecycle.RequestClose(context.Background(), "TKT-NOPE", "user-1", "")
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestConfirmCloseFlow(t *testing.T) {
	cfg := validTestConfig()
	cfg.Panel.ConfirmBeforeDelete = true
	fx := newLifecycleFixture(t, cfg)

	ticket, err := fx.lifecycle.Create(context.Background(), "user-1", "")
	require.NoError(t, err)

	require.NoError(t, fx.lifecycle.RequestClose(context.Background(), ticket.ID, "user-1", "done"))

	// The ticket is still open while the prompt is outstanding.
	require.Equal(t, 1, fx.tickets.Len())
	messages := fx.gw.sentTo(ticket.ChannelID)
	require.Len(t, messages, 2)
	require.NotEmpty(t, messages[1].Buttons)

	require.NoError(t, fx.lifecycle.ConfirmClose(context.Background(), ticket.ID))
	require.Equal(t, 0, fx.tickets.Len())
	require.Equal(t, uint(0), fx.index.Count("user-1"))
}

func TestCancelCloseKeepsTicketOpen(t *testing.T) {
	cfg := validTestConfig()
	cfg.Panel.ConfirmBeforeDelete = true
	fx := newLifecycleFixture(t, cfg)

	ticket, err := fx.lifecycle.Create(context.Background(), "user-1", "")
	require.NoError(t, err)
	require.NoError(t, fx.lifecycle.RequestClose(context.Background(), ticket.ID, "user-1", ""))

	require.NoError(t, fx.lifecycle.CancelClose(context.Background(), ticket.ID))
	require.Equal(t, 1, fx.tickets.Len())

	// The confirmation is gone; confirming now fails.
	err = fx.lifecycle.ConfirmClose(context.Background(), ticket.ID)
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestListActiveReportsPendingClose(t *testing.T) {
	cfg := validTestConfig()
	cfg.Panel.ConfirmBeforeDelete = true
	fx := newLifecycleFixture(t, cfg)

	ticket, err := fx.lifecycle.Create(context.Background(), "user-1", "")
	require.NoError(t, err)
	require.NoError(t, fx.lifecycle.RequestClose(context.Background(), ticket.ID, "user-1", ""))

	active := fx.lifecycle.ListActive()
	require.Len(t, active, 1)
	require.Equal(t, domain.TicketStatusPendingClose, active[0].Status)

	// The registry record stays OPEN; only the view reflects the prompt.
	stored, ok := fx.tickets.Get(ticket.ID)
	require.True(t, ok)
	require.Equal(t, domain.TicketStatusOpen, stored.Status)

	require.NoError(t, fx.lifecycle.CancelClose(context.Background(), ticket.ID))
	active = fx.lifecycle.ListActive()
	require.Len(t, active, 1)
	require.Equal(t, domain.TicketStatusOpen, active[0].Status)
}

func TestCancelCloseWithoutPendingIsNoop(t *testing.T) {
	fx := newLifecycleFixture(t, validTestConfig())
	ticket, err := fx.lifecycle.Create(context.Background(), "user-1", "")
	require.NoError(t, err)

	require.NoError(t, fx.lifecycle.CancelClose(context.Background(), ticket.ID))
	require.NoError(t, fx.lifecycle.CancelClose(context.Background(), "TKT-NOPE"))
	require.Equal(t, 1, fx.tickets.Len())
}

func TestAutoCloseTwoPhase(t *testing.T) {
	cfg := validTestConfig()
	cfg.AutoClose = true
	cfg.AutoCloseDelaySeconds = 300
	fx := newLifecycleFixture(t, cfg)

	ticket, err := fx.lifecycle.Create(context.Background(), "user-1", "")
	require.NoError(t, err)
	require.NotNil(t, ticket.AutoCloseAt)
	require.True(t, fx.timers.Pending(ticket.ID))

	// First stage: warning only, ticket stays open.
	fx.clock.Advance(300 * time.Second)
	require.Equal(t, 1, fx.tickets.Len())
	messages := fx.gw.sentTo(ticket.ChannelID)
	require.Len(t, messages, 2)
	require.Contains(t, messages[1].Content, "60 seconds")

	// Second stage: the grace period elapses and the ticket closes.
	fx.clock.Advance(60 * time.Second)
	require.Equal(t, 0, fx.tickets.Len())
	require.Equal(t, uint(0), fx.index.Count("user-1"))
	require.False(t, fx.timers.Pending(ticket.ID))
}

func TestManualCloseDuringGraceCancelsAutoClose(t *testing.T) {
	cfg := validTestConfig()
	cfg.AutoClose = true
	cfg.AutoCloseDelaySeconds = 300
	fx := newLifecycleFixture(t, cfg)

	ticket, err := fx.lifecycle.Create(context.Background(), "user-1", "")
	require.NoError(t, err)

	fx.clock.Advance(300 * time.Second)
	require.True(t, fx.timers.Pending(ticket.ID))

	require.NoError(t, fx.lifecycle.RequestClose(context.Background(), ticket.ID, "user-1", "closing myself"))
	require.False(t, fx.timers.Pending(ticket.ID))

	// The grace timer must not fire a second close.
	fx.clock.Advance(60 * time.Second)
	deleted := fx.gw.deletedChannels()
	require.Equal(t, []string{ticket.ChannelID}, deleted)
}

func TestCleanupOrphans(t *testing.T) {
	fx := newLifecycleFixture(t, validTestConfig())
	ticket, err := fx.lifecycle.Create(context.Background(), "user-1", "")
	require.NoError(t, err)
	kept, err := fx.lifecycle.Create(context.Background(), "user-2", "")
	require.NoError(t, err)

	// Simulate an out-of-band channel deletion.
	fx.gw.mu.Lock()
	delete(fx.gw.channels, ticket.ChannelID)
	fx.gw.mu.Unlock()

	removed, err := fx.lifecycle.CleanupOrphans(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	require.Equal(t, uint(0), fx.index.Count("user-1"))

	_, ok := fx.tickets.Get(kept.ID)
	require.True(t, ok)
	require.Equal(t, uint(1), fx.index.Count("user-2"))
}

func TestRearmTimersAfterRestart(t *testing.T) {
	cfg := validTestConfig()
	cfg.AutoClose = true
	cfg.AutoCloseDelaySeconds = 300
	fx := newLifecycleFixture(t, cfg)

	ticket, err := fx.lifecycle.Create(context.Background(), "user-1", "")
	require.NoError(t, err)
	require.NotNil(t, ticket.AutoCloseAt)
	fx.lifecycle.Shutdown()

	// Replace the lifecycle, as after a restart, over the same registry.
	restarted := NewTicketLifecycle(LifecycleDependencies{
		Gateway:     fx.gw,
		ConfigStore: fx.store,
		Tickets:     fx.tickets,
		Index:       fx.index,
		Timers:      NewTimerRegistry(fx.clock),
		Transcripts: NewTranscriptGenerator(fx.gw, fx.clock, t.TempDir(), zap.NewNop()),
		Logger:      zap.NewNop(),
		Clock:       fx.clock,
		DeleteDelay: 5 * time.Second,
	})

	require.Equal(t, 1, restarted.RearmTimers(context.Background()))

	fx.clock.Advance(300 * time.Second)
	fx.clock.Advance(60 * time.Second)
	require.Equal(t, 0, fx.tickets.Len())
}

func TestRearmTimersOverdueTicket(t *testing.T) {
	cfg := validTestConfig()
	cfg.AutoClose = true
	cfg.AutoCloseDelaySeconds = 300
	fx := newLifecycleFixture(t, cfg)

	ticket, err := fx.lifecycle.Create(context.Background(), "user-1", "")
	require.NoError(t, err)
	require.NotNil(t, ticket.AutoCloseAt)
	fx.lifecycle.Shutdown()

	// Simulate downtime past the due time before the restart.
	fx.clock.mu.Lock()
	fx.clock.now = fx.clock.now.Add(time.Hour)
	fx.clock.mu.Unlock()

	restarted := NewTicketLifecycle(LifecycleDependencies{
		Gateway:     fx.gw,
		ConfigStore: fx.store,
		Tickets:     fx.tickets,
		Index:       fx.index,
		Timers:      NewTimerRegistry(fx.clock),
		Transcripts: NewTranscriptGenerator(fx.gw, fx.clock, t.TempDir(), zap.NewNop()),
		Logger:      zap.NewNop(),
		Clock:       fx.clock,
		DeleteDelay: 5 * time.Second,
	})
	require.Equal(t, 1, restarted.RearmTimers(context.Background()))

	// The overdue ticket goes straight to the warning, then closes after the
	// grace period.
	fx.clock.Advance(0)
	require.Equal(t, 1, fx.tickets.Len())
	fx.clock.Advance(60 * time.Second)
	require.Equal(t, 0, fx.tickets.Len())
}

func TestRemoveUserGuardsOwner(t *testing.T) {
	fx := newLifecycleFixture(t, validTestConfig())
	ticket, err := fx.lifecycle.Create(context.Background(), "user-1", "")
	require.NoError(t, err)

	err = fx.lifecycle.RemoveUser(context.Background(), ticket.ID, "user-1")
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	require.NoError(t, fx.lifecycle.AddUser(context.Background(), ticket.ID, "user-2"))
	require.NoError(t, fx.lifecycle.RemoveUser(context.Background(), ticket.ID, "user-2"))
}

func TestPublishPanelButton(t *testing.T) {
	fx := newLifecycleFixture(t, validTestConfig())

	messageID, err := fx.lifecycle.PublishPanel(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, messageID)

	messages := fx.gw.sentTo("panel-1")
	require.Len(t, messages, 1)
	require.Len(t, messages[0].Buttons, 1)
	require.Nil(t, messages[0].Select)
}

func TestPublishPanelDropdown(t *testing.T) {
	cfg := validTestConfig()
	cfg.Panel.SelectionType = domain.PanelSelectionDropdown
	cfg.Panel.DropdownOptions = []string{"billing", "technical"}
	fx := newLifecycleFixture(t, cfg)

	_, err := fx.lifecycle.PublishPanel(context.Background())
	require.NoError(t, err)

	messages := fx.gw.sentTo("panel-1")
	require.Len(t, messages, 1)
	require.NotNil(t, messages[0].Select)
	require.Len(t, messages[0].Select.Options, 2)
}

func TestTicketIDsAreUnique(t *testing.T) {
	cfg := validTestConfig()
	cfg.TicketLimit = 100
	fx := newLifecycleFixture(t, cfg)

	seen := make(map[string]struct{})
	for i := 0; i < 25; i++ {
		ticket, err := fx.lifecycle.Create(context.Background(), "user-1", "")
		require.NoError(t, err)
		_, dup := seen[ticket.ID]
		require.False(t, dup)
		seen[ticket.ID] = struct{}{}
	}
}
