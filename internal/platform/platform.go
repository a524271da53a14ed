// Package platform defines the chat-platform operations the ticket lifecycle needs and
// implements them on a discordgo session.
package platform

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"
)

// ErrNotFound is returned when the addressed channel, message, role or member does not exist.
var ErrNotFound = errors.New("platform entity not found")

// ChannelOperations manages guild channels.
type ChannelOperations interface {
	Channel(ctx context.Context, channelID string) (*discordgo.Channel, error)
	GuildChannels(ctx context.Context, guildID string) ([]*discordgo.Channel, error)
	CreateChannel(ctx context.Context, guildID string, data discordgo.GuildChannelCreateData) (*discordgo.Channel, error)
	DeleteChannel(ctx context.Context, channelID string) error
	SetPermission(ctx context.Context, channelID string, overwrite *discordgo.PermissionOverwrite) error
}

// MessageOperations sends, edits and reads channel messages.
type MessageOperations interface {
	SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error)
	EditMessage(ctx context.Context, edit *discordgo.MessageEdit) (*discordgo.Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	Message(ctx context.Context, channelID, messageID string) (*discordgo.Message, error)
	// Messages returns up to limit messages older than beforeID, newest first.
	// An empty beforeID starts from the latest message.
	Messages(ctx context.Context, channelID string, limit int, beforeID string) ([]*discordgo.Message, error)
	SendDirectMessage(ctx context.Context, userID string, msg *discordgo.MessageSend) (*discordgo.Message, error)
}

// GuildOperations resolves roles and the bot's own identity.
type GuildOperations interface {
	Role(ctx context.Context, guildID, roleID string) (*discordgo.Role, error)
	BotUserID() string
}

// Client is the full set of operations used by the bot.
type Client interface {
	ChannelOperations
	MessageOperations
	GuildOperations
}
