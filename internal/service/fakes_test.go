package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/gateway"
)

// fakeClock is a manually advanced clock. Advance moves time forward and
// runs every timer that comes due, including timers armed by the callbacks
// themselves.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
	slept  []time.Duration
}

type fakeTimer struct {
	clock   *fakeClock
	due     time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	timer := &fakeTimer{clock: c, due: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, timer)
	return timer
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
}

// Advance moves the clock forward and fires due timers in due order, one at
// a time, so callbacks can schedule followup timers inside the window.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, timer := range c.timers {
			if timer.fired || timer.stopped || timer.due.After(c.now) {
				continue
			}
			if next == nil || timer.due.Before(next.due) {
				next = timer
			}
		}
		if next != nil {
			next.fired = true
		}
		c.mu.Unlock()

		if next == nil {
			return
		}
		next.fn()
	}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// fakeGateway is an in-memory platform double. Channels created through it
// resolve; channels removed from the maps behave like externally deleted
// ones.
type fakeGateway struct {
	mu sync.Mutex

	channels   map[string]*gateway.ChannelInfo
	categories map[string]*gateway.ChannelInfo
	roles      map[string]*gateway.RoleInfo
	caps       map[string]domain.Capability

	history map[string][]gateway.Message
	sent    map[string][]gateway.OutboundMessage
	deleted []string

	memberGrants map[string][]string

	createErr  error
	sendErr    error
	historyErr error

	historyCalls int
	nextChannel  int
}

const allCapabilities = domain.CapabilityViewChannel | domain.CapabilityManageChannel |
	domain.CapabilitySendMessages | domain.CapabilityEmbedLinks | domain.CapabilityAttachFiles |
	domain.CapabilityReadHistory | domain.CapabilityManagePermissions

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		channels:     make(map[string]*gateway.ChannelInfo),
		categories:   make(map[string]*gateway.ChannelInfo),
		roles:        make(map[string]*gateway.RoleInfo),
		caps:         make(map[string]domain.Capability),
		history:      make(map[string][]gateway.Message),
		sent:         make(map[string][]gateway.OutboundMessage),
		memberGrants: make(map[string][]string),
	}
}

func (g *fakeGateway) addChannel(id string) {
	g.channels[id] = &gateway.ChannelInfo{ID: id, Name: id}
}

func (g *fakeGateway) addCategory(id string) {
	g.categories[id] = &gateway.ChannelInfo{ID: id, Name: id, IsCategory: true}
}

func (g *fakeGateway) addRole(id string) {
	g.roles[id] = &gateway.RoleInfo{ID: id, Name: id}
}

func (g *fakeGateway) CreateChannel(ctx context.Context, create gateway.ChannelCreate) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return "", g.createErr
	}
	g.nextChannel++
	id := fmt.Sprintf("chan-%d", g.nextChannel)
	g.channels[id] = &gateway.ChannelInfo{ID: id, Name: create.Name, ParentID: create.ParentID}
	return id, nil
}

func (g *fakeGateway) DeleteChannel(ctx context.Context, channelID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.channels, channelID)
	g.deleted = append(g.deleted, channelID)
	return nil
}

func (g *fakeGateway) SendMessage(ctx context.Context, channelID string, msg gateway.OutboundMessage) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return "", g.sendErr
	}
	g.sent[channelID] = append(g.sent[channelID], msg)
	return fmt.Sprintf("msg-%d", len(g.sent[channelID])), nil
}

func (g *fakeGateway) RecentMessages(ctx context.Context, channelID string, limit int) ([]gateway.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.historyCalls++
	if g.historyErr != nil {
		return nil, g.historyErr
	}
	messages := g.history[channelID]
	if len(messages) > limit {
		messages = messages[:limit]
	}
	return append([]gateway.Message(nil), messages...), nil
}

func (g *fakeGateway) ResolveChannel(ctx context.Context, channelID string) (*gateway.ChannelInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.channels[channelID], nil
}

func (g *fakeGateway) ResolveCategory(ctx context.Context, categoryID string) (*gateway.ChannelInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.categories[categoryID], nil
}

func (g *fakeGateway) ResolveRole(ctx context.Context, roleID string) (*gateway.RoleInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.roles[roleID], nil
}

func (g *fakeGateway) BotCapabilities(ctx context.Context, channelID string) (domain.Capability, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if caps, ok := g.caps[channelID]; ok {
		return caps, nil
	}
	return allCapabilities, nil
}

func (g *fakeGateway) SetMemberOverwrite(ctx context.Context, channelID, userID string, allow domain.Capability) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.memberGrants[channelID] = append(g.memberGrants[channelID], userID)
	return nil
}

func (g *fakeGateway) DeleteMemberOverwrite(ctx context.Context, channelID, userID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	grants := g.memberGrants[channelID]
	filtered := grants[:0]
	for _, grant := range grants {
		if grant != userID {
			filtered = append(filtered, grant)
		}
	}
	g.memberGrants[channelID] = filtered
	return nil
}

func (g *fakeGateway) BotUserID() string {
	return "bot-user"
}

func (g *fakeGateway) sentTo(channelID string) []gateway.OutboundMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gateway.OutboundMessage(nil), g.sent[channelID]...)
}

func (g *fakeGateway) deletedChannels() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.deleted...)
}

// fakeConfigStore serves a fixed configuration.
type fakeConfigStore struct {
	mu  sync.Mutex
	cfg domain.TicketConfig
	err error
}

func (s *fakeConfigStore) Get(ctx context.Context) (domain.TicketConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return domain.TicketConfig{}, s.err
	}
	return s.cfg, nil
}

func (s *fakeConfigStore) Update(ctx context.Context, partial map[string]any) (domain.TicketConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, s.err
}
