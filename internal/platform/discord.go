package platform

import (
	"context"
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// Discord implements Client on a discordgo session.
type Discord struct {
	session *discordgo.Session
}

// NewDiscord wraps an opened or unopened session.
func NewDiscord(session *discordgo.Session) *Discord {
	return &Discord{session: session}
}

func (d *Discord) Channel(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	if ch, err := d.session.State.Channel(channelID); err == nil {
		return ch, nil
	}
	ch, err := d.session.Channel(channelID, discordgo.WithContext(ctx))
	return ch, translate(err)
}

func (d *Discord) GuildChannels(ctx context.Context, guildID string) ([]*discordgo.Channel, error) {
	channels, err := d.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	return channels, translate(err)
}

func (d *Discord) CreateChannel(ctx context.Context, guildID string, data discordgo.GuildChannelCreateData) (*discordgo.Channel, error) {
	ch, err := d.session.GuildChannelCreateComplex(guildID, data, discordgo.WithContext(ctx))
	return ch, translate(err)
}

func (d *Discord) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := d.session.ChannelDelete(channelID, discordgo.WithContext(ctx))
	return translate(err)
}

func (d *Discord) SetPermission(ctx context.Context, channelID string, overwrite *discordgo.PermissionOverwrite) error {
	err := d.session.ChannelPermissionSet(channelID, overwrite.ID, overwrite.Type, overwrite.Allow, overwrite.Deny, discordgo.WithContext(ctx))
	return translate(err)
}

func (d *Discord) SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	m, err := d.session.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx))
	return m, translate(err)
}

func (d *Discord) EditMessage(ctx context.Context, edit *discordgo.MessageEdit) (*discordgo.Message, error) {
	m, err := d.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	return m, translate(err)
}

func (d *Discord) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return translate(d.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)))
}

func (d *Discord) Message(ctx context.Context, channelID, messageID string) (*discordgo.Message, error) {
	m, err := d.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	return m, translate(err)
}

func (d *Discord) Messages(ctx context.Context, channelID string, limit int, beforeID string) ([]*discordgo.Message, error) {
	msgs, err := d.session.ChannelMessages(channelID, limit, beforeID, "", "", discordgo.WithContext(ctx))
	return msgs, translate(err)
}

func (d *Discord) SendDirectMessage(ctx context.Context, userID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	dm, err := d.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, translate(err)
	}
	return d.SendMessage(ctx, dm.ID, msg)
}

func (d *Discord) Role(ctx context.Context, guildID, roleID string) (*discordgo.Role, error) {
	if role, err := d.session.State.Role(guildID, roleID); err == nil {
		return role, nil
	}
	roles, err := d.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, translate(err)
	}
	for _, role := range roles {
		if role.ID == roleID {
			return role, nil
		}
	}
	return nil, ErrNotFound
}

func (d *Discord) BotUserID() string {
	if d.session.State != nil && d.session.State.User != nil {
		return d.session.State.User.ID
	}
	return ""
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return errors.Join(ErrNotFound, err)
	}
	return err
}
