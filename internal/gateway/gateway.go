package gateway

import (
	"context"
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// EveryonePrincipal is the sentinel principal id for the default ("everyone")
// role. Adapters translate it to the platform's own identifier.
const EveryonePrincipal = "@everyone"

// OverwriteKind distinguishes member and role access overwrites.
type OverwriteKind string

const (
	OverwriteMember OverwriteKind = "member"
	OverwriteRole   OverwriteKind = "role"
)

// AccessOverwrite grants or denies capabilities to a principal on a channel.
type AccessOverwrite struct {
	PrincipalID string
	Kind        OverwriteKind
	Allow       domain.Capability
	Deny        domain.Capability
}

// ChannelCreate describes a private channel to provision.
type ChannelCreate struct {
	Name       string
	ParentID   string
	Topic      string
	Overwrites []AccessOverwrite
}

// ChannelInfo is the resolved view of a channel or category.
type ChannelInfo struct {
	ID         string
	Name       string
	ParentID   string
	IsCategory bool
}

// RoleInfo is the resolved view of a role.
type RoleInfo struct {
	ID   string
	Name string
}

// Attachment is an uploaded file referenced by a message.
type Attachment struct {
	Name string
	URL  string
	Size int
}

// EmbedField is one name/value pair inside an embed.
type EmbedField struct {
	Name  string
	Value string
}

// Embed is a minimal view of embedded rich content, enough for transcripts.
type Embed struct {
	Title       string
	Description string
	Fields      []EmbedField
}

// Message is an inbound channel message. AuthorTag is the human-readable
// author handle used in transcripts.
type Message struct {
	ID          string
	ChannelID   string
	AuthorID    string
	AuthorTag   string
	Content     string
	Attachments []Attachment
	Embeds      []Embed
	CreatedAt   time.Time
}

// Button is a clickable control attached to an outbound message. CustomID is
// the interaction identifier echoed back when the button is pressed.
type Button struct {
	CustomID string
	Label    string
	Style    ButtonStyle
}

// ButtonStyle matches the platform's button appearance options.
type ButtonStyle string

const (
	ButtonPrimary   ButtonStyle = "primary"
	ButtonSecondary ButtonStyle = "secondary"
	ButtonDanger    ButtonStyle = "danger"
)

// SelectOption is one entry of a dropdown control.
type SelectOption struct {
	Label string
	Value string
}

// OutboundMessage is a message the bot sends. FilePath attaches a local file.
type OutboundMessage struct {
	Content  string
	Embed    *Embed
	Buttons  []Button
	Select   *SelectMenu
	FilePath string
	FileName string
}

// SelectMenu is a dropdown control attached to an outbound message. When
// UserSelect is set the platform renders a member picker and Options is
// ignored; the picked member ids come back in Interaction.Values.
type SelectMenu struct {
	CustomID    string
	Placeholder string
	Options     []SelectOption
	UserSelect  bool
}

// Gateway abstracts the messaging platform's channel and message primitives.
// All calls are network calls and may fail or stall; callers treat every
// error as transient and user-visible only in generic form.
type Gateway interface {
	CreateChannel(ctx context.Context, create ChannelCreate) (string, error)
	DeleteChannel(ctx context.Context, channelID string) error

	SendMessage(ctx context.Context, channelID string, msg OutboundMessage) (string, error)
	RecentMessages(ctx context.Context, channelID string, limit int) ([]Message, error)

	ResolveChannel(ctx context.Context, channelID string) (*ChannelInfo, error)
	ResolveCategory(ctx context.Context, categoryID string) (*ChannelInfo, error)
	ResolveRole(ctx context.Context, roleID string) (*RoleInfo, error)

	// BotCapabilities returns the bot's effective capability set on a channel
	// or category.
	BotCapabilities(ctx context.Context, channelID string) (domain.Capability, error)

	// SetMemberOverwrite grants a member the given capabilities on a channel;
	// DeleteMemberOverwrite removes the member's overwrite entirely.
	SetMemberOverwrite(ctx context.Context, channelID, userID string, allow domain.Capability) error
	DeleteMemberOverwrite(ctx context.Context, channelID, userID string) error

	BotUserID() string
}
