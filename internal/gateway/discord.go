package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// capabilityBits maps platform-neutral capabilities onto Discord permission bits.
var capabilityBits = []struct {
	capability domain.Capability
	bit        int64
}{
	{domain.CapabilityViewChannel, discordgo.PermissionViewChannel},
	{domain.CapabilityManageChannel, discordgo.PermissionManageChannels},
	{domain.CapabilitySendMessages, discordgo.PermissionSendMessages},
	{domain.CapabilityEmbedLinks, discordgo.PermissionEmbedLinks},
	{domain.CapabilityAttachFiles, discordgo.PermissionAttachFiles},
	{domain.CapabilityReadHistory, discordgo.PermissionReadMessageHistory},
	{domain.CapabilityManagePermissions, discordgo.PermissionManageRoles},
}

func toDiscordPermissions(c domain.Capability) int64 {
	var bits int64
	for _, entry := range capabilityBits {
		if c.Has(entry.capability) {
			bits |= entry.bit
		}
	}
	return bits
}

func fromDiscordPermissions(bits int64) domain.Capability {
	var c domain.Capability
	if bits&discordgo.PermissionAdministrator != 0 {
		for _, entry := range capabilityBits {
			c |= entry.capability
		}
		return c
	}
	for _, entry := range capabilityBits {
		if bits&entry.bit != 0 {
			c |= entry.capability
		}
	}
	return c
}

// Discord implements Gateway on top of a discordgo session scoped to a
// single guild.
type Discord struct {
	session *discordgo.Session
	guildID string
	logger  *zap.Logger
}

// NewDiscord wraps an opened discordgo session.
func NewDiscord(session *discordgo.Session, guildID string, logger *zap.Logger) *Discord {
	return &Discord{session: session, guildID: guildID, logger: logger}
}

// OnInteraction registers a handler for ticket component interactions. The
// adapter acknowledges the interaction and dispatches the typed variant on a
// separate goroutine so slow lifecycle work never hits the platform's
// response deadline.
func (d *Discord) OnInteraction(handler InteractionHandler) {
	d.session.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic.Type != discordgo.InteractionMessageComponent {
			return
		}
		if ic.GuildID != d.guildID {
			return
		}
		data := ic.MessageComponentData()
		kind := KindForCustomID(data.CustomID)
		if kind == InteractionUnknown {
			return
		}

		if err := s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredMessageUpdate,
		}); err != nil {
			d.logger.Warn("interaction ack failed", zap.Error(err))
		}

		interaction := Interaction{
			Kind:      kind,
			ChannelID: ic.ChannelID,
			Values:    data.Values,
		}
		if ic.Member != nil && ic.Member.User != nil {
			interaction.UserID = ic.Member.User.ID
		} else if ic.User != nil {
			interaction.UserID = ic.User.ID
		}

		go handler(interaction)
	})
}

func (d *Discord) CreateChannel(ctx context.Context, create ChannelCreate) (string, error) {
	overwrites := make([]*discordgo.PermissionOverwrite, 0, len(create.Overwrites))
	for _, ow := range create.Overwrites {
		principalID := ow.PrincipalID
		if principalID == EveryonePrincipal {
			// The default role shares its id with the guild.
			principalID = d.guildID
		}
		kind := discordgo.PermissionOverwriteTypeMember
		if ow.Kind == OverwriteRole || ow.PrincipalID == EveryonePrincipal {
			kind = discordgo.PermissionOverwriteTypeRole
		}
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    principalID,
			Type:  kind,
			Allow: toDiscordPermissions(ow.Allow),
			Deny:  toDiscordPermissions(ow.Deny),
		})
	}

	channel, err := d.session.GuildChannelCreateComplex(d.guildID, discordgo.GuildChannelCreateData{
		Name:                 create.Name,
		Type:                 discordgo.ChannelTypeGuildText,
		Topic:                create.Topic,
		ParentID:             create.ParentID,
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("create channel %q: %w", create.Name, err)
	}
	return channel.ID, nil
}

func (d *Discord) DeleteChannel(ctx context.Context, channelID string) error {
	if _, err := d.session.ChannelDelete(channelID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete channel %s: %w", channelID, err)
	}
	return nil
}

func (d *Discord) SendMessage(ctx context.Context, channelID string, msg OutboundMessage) (string, error) {
	send := &discordgo.MessageSend{Content: msg.Content}

	if msg.Embed != nil {
		send.Embeds = []*discordgo.MessageEmbed{toDiscordEmbed(msg.Embed)}
	}
	if components := toDiscordComponents(msg); components != nil {
		send.Components = components
	}

	var file *os.File
	if msg.FilePath != "" {
		f, err := os.Open(msg.FilePath)
		if err != nil {
			return "", fmt.Errorf("open attachment %s: %w", msg.FilePath, err)
		}
		file = f
		name := msg.FileName
		if name == "" {
			name = f.Name()
		}
		send.Files = []*discordgo.File{{Name: name, Reader: f}}
	}

	sent, err := d.session.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx))
	if file != nil {
		_ = file.Close()
	}
	if err != nil {
		return "", fmt.Errorf("send message to %s: %w", channelID, err)
	}
	return sent.ID, nil
}

func (d *Discord) RecentMessages(ctx context.Context, channelID string, limit int) ([]Message, error) {
	raw, err := d.session.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch messages from %s: %w", channelID, err)
	}

	messages := make([]Message, 0, len(raw))
	for _, m := range raw {
		msg := Message{
			ID:        m.ID,
			ChannelID: m.ChannelID,
			Content:   m.Content,
			CreatedAt: m.Timestamp,
		}
		if m.Author != nil {
			msg.AuthorID = m.Author.ID
			msg.AuthorTag = m.Author.String()
		}
		for _, att := range m.Attachments {
			msg.Attachments = append(msg.Attachments, Attachment{
				Name: att.Filename,
				URL:  att.URL,
				Size: att.Size,
			})
		}
		for _, embed := range m.Embeds {
			msg.Embeds = append(msg.Embeds, fromDiscordEmbed(embed))
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (d *Discord) ResolveChannel(ctx context.Context, channelID string) (*ChannelInfo, error) {
	channel, err := d.channel(ctx, channelID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &ChannelInfo{
		ID:         channel.ID,
		Name:       channel.Name,
		ParentID:   channel.ParentID,
		IsCategory: channel.Type == discordgo.ChannelTypeGuildCategory,
	}, nil
}

func (d *Discord) ResolveCategory(ctx context.Context, categoryID string) (*ChannelInfo, error) {
	info, err := d.ResolveChannel(ctx, categoryID)
	if err != nil || info == nil {
		return nil, err
	}
	if !info.IsCategory {
		return nil, nil
	}
	return info, nil
}

func (d *Discord) ResolveRole(ctx context.Context, roleID string) (*RoleInfo, error) {
	role, err := d.session.State.Role(d.guildID, roleID)
	if err == nil {
		return &RoleInfo{ID: role.ID, Name: role.Name}, nil
	}

	roles, err := d.session.GuildRoles(d.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch roles: %w", err)
	}
	for _, r := range roles {
		if r.ID == roleID {
			return &RoleInfo{ID: r.ID, Name: r.Name}, nil
		}
	}
	return nil, nil
}

func (d *Discord) BotCapabilities(ctx context.Context, channelID string) (domain.Capability, error) {
	bits, err := d.session.UserChannelPermissions(d.BotUserID(), channelID)
	if err != nil {
		return 0, fmt.Errorf("resolve bot permissions on %s: %w", channelID, err)
	}
	return fromDiscordPermissions(bits), nil
}

func (d *Discord) SetMemberOverwrite(ctx context.Context, channelID, userID string, allow domain.Capability) error {
	err := d.session.ChannelPermissionSet(channelID, userID,
		discordgo.PermissionOverwriteTypeMember,
		toDiscordPermissions(allow), 0,
		discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("set overwrite for %s on %s: %w", userID, channelID, err)
	}
	return nil
}

func (d *Discord) DeleteMemberOverwrite(ctx context.Context, channelID, userID string) error {
	if err := d.session.ChannelPermissionDelete(channelID, userID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete overwrite for %s on %s: %w", userID, channelID, err)
	}
	return nil
}

func (d *Discord) BotUserID() string {
	if d.session.State != nil && d.session.State.User != nil {
		return d.session.State.User.ID
	}
	return ""
}

func (d *Discord) channel(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	if channel, err := d.session.State.Channel(channelID); err == nil {
		return channel, nil
	}
	return d.session.Channel(channelID, discordgo.WithContext(ctx))
}

func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		return restErr.Response.StatusCode == http.StatusNotFound
	}
	return errors.Is(err, discordgo.ErrStateNotFound)
}

func toDiscordEmbed(embed *Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       embed.Title,
		Description: embed.Description,
	}
	for _, field := range embed.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{
			Name:  field.Name,
			Value: field.Value,
		})
	}
	return out
}

func fromDiscordEmbed(embed *discordgo.MessageEmbed) Embed {
	out := Embed{
		Title:       embed.Title,
		Description: embed.Description,
	}
	for _, field := range embed.Fields {
		if field == nil {
			continue
		}
		out.Fields = append(out.Fields, EmbedField{Name: field.Name, Value: field.Value})
	}
	return out
}

func toDiscordComponents(msg OutboundMessage) []discordgo.MessageComponent {
	// A select menu occupies a full action row, so buttons and menu go in
	// separate rows.
	var rows []discordgo.MessageComponent
	if len(msg.Buttons) > 0 {
		var row []discordgo.MessageComponent
		for _, button := range msg.Buttons {
			row = append(row, discordgo.Button{
				Label:    button.Label,
				CustomID: button.CustomID,
				Style:    toDiscordButtonStyle(button.Style),
			})
		}
		rows = append(rows, discordgo.ActionsRow{Components: row})
	}
	if msg.Select != nil {
		menu := discordgo.SelectMenu{
			CustomID:    msg.Select.CustomID,
			Placeholder: msg.Select.Placeholder,
		}
		if msg.Select.UserSelect {
			menu.MenuType = discordgo.UserSelectMenu
		} else {
			for _, opt := range msg.Select.Options {
				menu.Options = append(menu.Options, discordgo.SelectMenuOption{Label: opt.Label, Value: opt.Value})
			}
		}
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{menu}})
	}
	if len(rows) == 0 {
		return nil
	}
	return rows
}

func toDiscordButtonStyle(style ButtonStyle) discordgo.ButtonStyle {
	switch style {
	case ButtonDanger:
		return discordgo.DangerButton
	case ButtonSecondary:
		return discordgo.SecondaryButton
	default:
		return discordgo.PrimaryButton
	}
}
