package service

import (
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// ControlAction is the verb encoded in a ticket control id.
type ControlAction string

const (
	ControlClaim       ControlAction = "claim"
	ControlUnclaim     ControlAction = "unclaim"
	ControlLock        ControlAction = "lock"
	ControlUnlock      ControlAction = "unlock"
	ControlClose       ControlAction = "close"
	ControlReasonClose ControlAction = "reason-close"
	ControlSubmit      ControlAction = "submit"
)

// ReasonInputID is the custom id of the close-reason modal text input.
const ReasonInputID = "reason"

// Control is a parsed ticket control id.
type Control struct {
	Action ControlAction
	Key    domain.TicketKey
	// TicketType is set for submit controls only.
	TicketType string
}

// ControlID encodes action-channelId-ownerId.
func ControlID(action ControlAction, key domain.TicketKey) string {
	return string(action) + "-" + key.ChannelID + "-" + key.OwnerUserID
}

// SubmitControlID encodes the submission button id for a ticket type.
func SubmitControlID(ticketType string) string {
	return string(ControlSubmit) + "-" + ticketType
}

// ParseControlID decodes a control id produced by ControlID or SubmitControlID.
func ParseControlID(id string) (Control, bool) {
	if rest, ok := strings.CutPrefix(id, string(ControlSubmit)+"-"); ok {
		if rest == "" {
			return Control{}, false
		}
		return Control{Action: ControlSubmit, TicketType: rest}, true
	}

	action := ControlReasonClose
	rest, ok := strings.CutPrefix(id, string(ControlReasonClose)+"-")
	if !ok {
		head, tail, found := strings.Cut(id, "-")
		if !found {
			return Control{}, false
		}
		action, rest = ControlAction(head), tail
	}
	switch action {
	case ControlClaim, ControlUnclaim, ControlLock, ControlUnlock, ControlClose, ControlReasonClose:
	default:
		return Control{}, false
	}

	channelID, ownerID, found := strings.Cut(rest, "-")
	if !found || channelID == "" || ownerID == "" || strings.Contains(ownerID, "-") {
		return Control{}, false
	}
	return Control{Action: action, Key: domain.TicketKey{ChannelID: channelID, OwnerUserID: ownerID}}, true
}

func button(label string, style discordgo.ButtonStyle, id string) discordgo.Button {
	return discordgo.Button{Label: label, Style: style, CustomID: id}
}

func row(buttons ...discordgo.Button) []discordgo.MessageComponent {
	components := make([]discordgo.MessageComponent, len(buttons))
	for i, b := range buttons {
		components[i] = b
	}
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: components}}
}

// UnclaimedControls is shown while nobody has claimed the ticket.
func UnclaimedControls(key domain.TicketKey) []discordgo.MessageComponent {
	return row(button("Claim", discordgo.SuccessButton, ControlID(ControlClaim, key)))
}

// ClaimedControls is shown on a claimed, unlocked ticket.
func ClaimedControls(key domain.TicketKey) []discordgo.MessageComponent {
	return row(
		button("Unclaim", discordgo.PrimaryButton, ControlID(ControlUnclaim, key)),
		button("Lock", discordgo.DangerButton, ControlID(ControlLock, key)),
		button("Close", discordgo.DangerButton, ControlID(ControlClose, key)),
		button("Close with reason", discordgo.DangerButton, ControlID(ControlReasonClose, key)),
	)
}

// LockedControls is shown on a locked ticket.
func LockedControls(key domain.TicketKey) []discordgo.MessageComponent {
	return row(button("Unlock", discordgo.SuccessButton, ControlID(ControlUnlock, key)))
}

// SubmissionControls is the button posted in a ticket type's submission channel.
func SubmissionControls(def *domain.TicketType) []discordgo.MessageComponent {
	return row(button(def.SubmissionButtonLabel, discordgo.PrimaryButton, SubmitControlID(def.Type)))
}

// ReasonModal asks for a close reason before closing the ticket.
func ReasonModal(key domain.TicketKey) *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		CustomID: ControlID(ControlReasonClose, key),
		Title:    "Close ticket",
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.TextInput{
					CustomID:  ReasonInputID,
					Label:     "Reason",
					Style:     discordgo.TextInputParagraph,
					Required:  true,
					MaxLength: 1000,
				},
			}},
		},
	}
}
