package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/gateway"
)

const (
	transcriptMessageLimit = 100

	transcriptRetryAttempts = 3
	transcriptRetryDelay    = time.Second

	transcriptDirPerms = 0o750
)

// TranscriptGenerator renders a ticket channel's recent history into a
// static HTML document and persists it under the transcript directory, one
// file per ticket id.
type TranscriptGenerator struct {
	gw     gateway.Gateway
	clock  Clock
	dir    string
	logger *zap.Logger
}

// TranscriptResult describes a generated transcript.
type TranscriptResult struct {
	Path         string
	MessageCount int
}

// NewTranscriptGenerator constructs the generator.
func NewTranscriptGenerator(gw gateway.Gateway, clock Clock, dir string, logger *zap.Logger) *TranscriptGenerator {
	return &TranscriptGenerator{gw: gw, clock: clock, dir: dir, logger: logger}
}

// Generate fetches up to 100 recent messages from the ticket channel and
// writes the rendered transcript. The render itself is a pure function of
// the message set; repeated calls over identical history produce
// byte-identical output.
func (g *TranscriptGenerator) Generate(ctx context.Context, ticket domain.Ticket) (*TranscriptResult, error) {
	messages, err := g.gw.RecentMessages(ctx, ticket.ChannelID, transcriptMessageLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch ticket history: %w", err)
	}

	document := RenderTranscript(ticket, messages)
	path, err := g.write(ticket.ID, document)
	if err != nil {
		return nil, err
	}
	return &TranscriptResult{Path: path, MessageCount: len(messages)}, nil
}

// GenerateWithRetry wraps Generate with a bounded retry: up to 3 attempts
// with a fixed one second delay, directory creation included in each
// attempt. The channel is usually deleted right after this call, so a
// transient filesystem error must not silently lose the transcript; the last
// error is propagated if every attempt fails.
func (g *TranscriptGenerator) GenerateWithRetry(ctx context.Context, ticket domain.Ticket) (*TranscriptResult, error) {
	var lastErr error
	for attempt := 1; attempt <= transcriptRetryAttempts; attempt++ {
		result, err := g.Generate(ctx, ticket)
		if err == nil {
			return result, nil
		}
		lastErr = err
		g.logger.Warn("transcript attempt failed",
			zap.String("ticket_id", ticket.ID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < transcriptRetryAttempts {
			g.clock.Sleep(transcriptRetryDelay)
		}
	}
	return nil, lastErr
}

// Upload posts the transcript file to the configured transcript channel with
// a metadata summary.
func (g *TranscriptGenerator) Upload(ctx context.Context, cfg domain.TicketConfig, ticket domain.Ticket, result *TranscriptResult, closedAt time.Time, closerID, reason string) error {
	if cfg.TranscriptChannelID == "" {
		return nil
	}

	embed := &gateway.Embed{
		Title: fmt.Sprintf("Transcript for ticket %s", ticket.ID),
		Fields: []gateway.EmbedField{
			{Name: "Ticket", Value: ticket.ID},
			{Name: "Owner", Value: ticket.OwnerUserID},
			{Name: "Opened", Value: ticket.CreatedAt.UTC().Format(time.RFC3339)},
			{Name: "Closed", Value: closedAt.UTC().Format(time.RFC3339)},
			{Name: "Messages", Value: fmt.Sprintf("%d", result.MessageCount)},
		},
	}
	if ticket.TicketType != "" {
		embed.Fields = append(embed.Fields, gateway.EmbedField{Name: "Type", Value: ticket.TicketType})
	}
	if closerID != "" {
		embed.Fields = append(embed.Fields, gateway.EmbedField{Name: "Closed by", Value: closerID})
	}
	if reason != "" {
		embed.Fields = append(embed.Fields, gateway.EmbedField{Name: "Reason", Value: reason})
	}

	_, err := g.gw.SendMessage(ctx, cfg.TranscriptChannelID, gateway.OutboundMessage{
		Embed:    embed,
		FilePath: result.Path,
		FileName: filepath.Base(result.Path),
	})
	if err != nil {
		return fmt.Errorf("upload transcript: %w", err)
	}
	return nil
}

func (g *TranscriptGenerator) write(ticketID, document string) (string, error) {
	if err := os.MkdirAll(g.dir, transcriptDirPerms); err != nil {
		return "", fmt.Errorf("create transcript directory: %w", err)
	}
	path := filepath.Join(g.dir, ticketID+".html")
	if err := atomic.WriteFile(path, strings.NewReader(document)); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}
	return path, nil
}

// escapeHTML escapes interpolated text. Message content is user controlled,
// so everything rendered into the document goes through here.
var escapeHTML = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
).Replace

// RenderTranscript renders the HTML document for a ticket from an arbitrary
// message window. Messages are sorted ascending by creation time (delivery
// order from the platform is not guaranteed), with the message id as a
// deterministic tie-breaker.
func RenderTranscript(ticket domain.Ticket, messages []gateway.Message) string {
	ordered := append([]gateway.Message(nil), messages...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>Ticket %s</title>\n", escapeHTML(ticket.ID))
	b.WriteString("<style>body{font-family:sans-serif;background:#36393f;color:#dcddde;margin:2em}" +
		".msg{margin-bottom:1em;padding:0.5em;background:#2f3136;border-radius:4px}" +
		".author{font-weight:bold;color:#fff}" +
		".ts{color:#72767d;font-size:0.8em;margin-left:0.5em}" +
		".embed{border-left:4px solid #4f545c;padding-left:0.5em;margin-top:0.3em}" +
		".attachment{display:block;color:#00aff4}</style>\n")
	b.WriteString("</head>\n<body>\n")

	fmt.Fprintf(&b, "<h1>Ticket %s</h1>\n", escapeHTML(ticket.ID))
	fmt.Fprintf(&b, "<p>Owner: %s", escapeHTML(ticket.OwnerUserID))
	if ticket.TicketType != "" {
		fmt.Fprintf(&b, " &middot; Type: %s", escapeHTML(ticket.TicketType))
	}
	fmt.Fprintf(&b, " &middot; Opened: %s</p>\n", ticket.CreatedAt.UTC().Format(time.RFC3339))

	for _, msg := range ordered {
		b.WriteString("<div class=\"msg\">\n")
		fmt.Fprintf(&b, "<span class=\"author\">%s</span><span class=\"ts\">%s</span>\n",
			escapeHTML(msg.AuthorTag),
			msg.CreatedAt.UTC().Format(time.RFC3339))
		if msg.Content != "" {
			fmt.Fprintf(&b, "<p>%s</p>\n", escapeHTML(msg.Content))
		}
		for _, embed := range msg.Embeds {
			b.WriteString("<div class=\"embed\">\n")
			if embed.Title != "" {
				fmt.Fprintf(&b, "<strong>%s</strong>\n", escapeHTML(embed.Title))
			}
			if embed.Description != "" {
				fmt.Fprintf(&b, "<p>%s</p>\n", escapeHTML(embed.Description))
			}
			for _, field := range embed.Fields {
				fmt.Fprintf(&b, "<p><strong>%s</strong>: %s</p>\n", escapeHTML(field.Name), escapeHTML(field.Value))
			}
			b.WriteString("</div>\n")
		}
		for _, att := range msg.Attachments {
			fmt.Fprintf(&b, "<a class=\"attachment\" href=\"%s\">%s</a>\n",
				escapeHTML(att.URL), escapeHTML(att.Name))
		}
		b.WriteString("</div>\n")
	}

	b.WriteString("</body>\n</html>\n")
	return b.String()
}
