package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/ticket-bot/internal/service"
)

const (
	commandTicket = "ticket"
	commandPing   = "ping"

	optionTicketType = "ticket-type"
	optionEdit       = "edit"
)

var adminPermission int64 = discordgo.PermissionAdministrator

// Commands returns the slash commands the bot registers.
func Commands() []*discordgo.ApplicationCommand {
	dmAllowed := false
	typeOption := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        optionTicketType,
		Description: "The ticket type",
		Required:    true,
	}

	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(service.EditChoices()))
	for _, choice := range service.EditChoices() {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: choice, Value: choice})
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:                     commandTicket,
			Description:              "Manage tickets",
			DefaultMemberPermissions: &adminPermission,
			DMPermission:             &dmAllowed,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "add", Description: "Add a ticket to the server"},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "edit",
					Description: "Edit a ticket",
					Options: []*discordgo.ApplicationCommandOption{
						typeOption,
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        optionEdit,
							Description: "The part of the ticket to edit",
							Required:    true,
							Choices:     choices,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "Remove a ticket from the server",
					Options:     []*discordgo.ApplicationCommandOption{typeOption},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "post",
					Description: "Post the submission message of a ticket",
					Options:     []*discordgo.ApplicationCommandOption{typeOption},
				},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "list", Description: "List all tickets in the server"},
			},
		},
		{
			Name:        commandPing,
			Description: "Check that the bot is responsive",
		},
	}
}

// RegisterCommands overwrites the application's commands, on guildID only when it is set.
func RegisterCommands(session *discordgo.Session, appID, guildID string) error {
	_, err := session.ApplicationCommandBulkOverwrite(appID, guildID, Commands())
	return err
}

func optionString(options []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, opt := range options {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionString {
			return opt.StringValue()
		}
	}
	return ""
}
