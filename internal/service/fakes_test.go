package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/ticket-bot/internal/platform"
)

const (
	testGuildID    = "100000000000000001"
	testCategoryID = "200000000000000001"
	testArchiveID  = "200000000000000002"
	testSubmitID   = "200000000000000003"
	testRoleID     = "300000000000000001"
	testBotID      = "400000000000000000"
	testOwnerID    = "400000000000000001"
	testStaffID    = "400000000000000002"
	testOtherID    = "400000000000000003"
)

type sentMessage struct {
	ChannelID string
	Send      *discordgo.MessageSend
	Files     map[string]string
}

// fakePlatform is an in-memory chat platform that records every call.
type fakePlatform struct {
	mu       sync.Mutex
	nextID   int64
	clock    time.Time
	channels map[string]*discordgo.Channel
	roles    map[string]*discordgo.Role
	// history holds each channel's messages, newest first.
	history     map[string][]*discordgo.Message
	created     []discordgo.GuildChannelCreateData
	sent        []sentMessage
	dms         map[string][]sentMessage
	edits       []*discordgo.MessageEdit
	deleted     []string
	permissions []*discordgo.PermissionOverwrite
	historyGets int

	failCreate     bool
	failDelete     bool
	failDM         bool
	failEdit       bool
	failPermission bool
}

func newFakePlatform() *fakePlatform {
	p := &fakePlatform{
		nextID:   900000000000000000,
		clock:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		channels: map[string]*discordgo.Channel{},
		roles:    map[string]*discordgo.Role{},
		history:  map[string][]*discordgo.Message{},
		dms:      map[string][]sentMessage{},
	}
	p.addChannel(testCategoryID, "Tickets", discordgo.ChannelTypeGuildCategory)
	p.addChannel(testArchiveID, "archive", discordgo.ChannelTypeGuildText)
	p.addChannel(testSubmitID, "support", discordgo.ChannelTypeGuildText)
	p.roles[testRoleID] = &discordgo.Role{ID: testRoleID, Name: "Staff"}
	return p
}

func (p *fakePlatform) id() string {
	p.nextID++
	return fmt.Sprintf("%d", p.nextID)
}

func (p *fakePlatform) addChannel(id, name string, kind discordgo.ChannelType) *discordgo.Channel {
	ch := &discordgo.Channel{ID: id, GuildID: testGuildID, Name: name, Type: kind}
	p.channels[id] = ch
	return ch
}

// say posts a message as a user.
func (p *fakePlatform) say(channelID string, user *discordgo.User, content string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clock = p.clock.Add(time.Minute)
	msg := &discordgo.Message{ID: p.id(), ChannelID: channelID, Content: content, Author: user, Timestamp: p.clock}
	p.history[channelID] = append([]*discordgo.Message{msg}, p.history[channelID]...)
}

func (p *fakePlatform) Channel(_ context.Context, channelID string) (*discordgo.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.channels[channelID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	return ch, nil
}

func (p *fakePlatform) GuildChannels(_ context.Context, guildID string) ([]*discordgo.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*discordgo.Channel
	for _, ch := range p.channels {
		if ch.GuildID == guildID {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (p *fakePlatform) CreateChannel(_ context.Context, guildID string, data discordgo.GuildChannelCreateData) (*discordgo.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failCreate {
		return nil, errors.New("missing access")
	}
	p.created = append(p.created, data)
	ch := &discordgo.Channel{
		ID:                   p.id(),
		GuildID:              guildID,
		Name:                 data.Name,
		Type:                 data.Type,
		ParentID:             data.ParentID,
		PermissionOverwrites: data.PermissionOverwrites,
	}
	p.channels[ch.ID] = ch
	return ch, nil
}

func (p *fakePlatform) DeleteChannel(_ context.Context, channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failDelete {
		return errors.New("missing permissions")
	}
	if _, ok := p.channels[channelID]; !ok {
		return platform.ErrNotFound
	}
	p.deleted = append(p.deleted, channelID)
	delete(p.channels, channelID)
	delete(p.history, channelID)
	return nil
}

func (p *fakePlatform) SetPermission(_ context.Context, _ string, overwrite *discordgo.PermissionOverwrite) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failPermission {
		return errors.New("missing permissions")
	}
	p.permissions = append(p.permissions, overwrite)
	return nil
}

func (p *fakePlatform) SendMessage(_ context.Context, channelID string, send *discordgo.MessageSend) (*discordgo.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.channels[channelID]; !ok {
		return nil, platform.ErrNotFound
	}
	p.sent = append(p.sent, record(channelID, send))
	p.clock = p.clock.Add(time.Minute)
	msg := &discordgo.Message{
		ID:         p.id(),
		ChannelID:  channelID,
		Content:    send.Content,
		Embeds:     send.Embeds,
		Components: send.Components,
		Author:     &discordgo.User{ID: testBotID, Username: "ticketbot", Bot: true},
		Timestamp:  p.clock,
	}
	p.history[channelID] = append([]*discordgo.Message{msg}, p.history[channelID]...)
	return msg, nil
}

func (p *fakePlatform) EditMessage(_ context.Context, edit *discordgo.MessageEdit) (*discordgo.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failEdit {
		return nil, errors.New("service unavailable")
	}
	p.edits = append(p.edits, edit)
	msg := p.find(edit.Channel, edit.ID)
	if msg == nil {
		return nil, platform.ErrNotFound
	}
	if edit.Components != nil {
		msg.Components = *edit.Components
	}
	if edit.Embeds != nil {
		msg.Embeds = *edit.Embeds
	}
	return msg, nil
}

func (p *fakePlatform) DeleteMessage(_ context.Context, channelID, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history[channelID] = slices.DeleteFunc(p.history[channelID], func(m *discordgo.Message) bool {
		return m.ID == messageID
	})
	return nil
}

func (p *fakePlatform) Message(_ context.Context, channelID, messageID string) (*discordgo.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg := p.find(channelID, messageID)
	if msg == nil {
		return nil, platform.ErrNotFound
	}
	return msg, nil
}

func (p *fakePlatform) Messages(_ context.Context, channelID string, limit int, beforeID string) ([]*discordgo.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.historyGets++
	if _, ok := p.channels[channelID]; !ok {
		return nil, platform.ErrNotFound
	}
	msgs := p.history[channelID]
	start := 0
	if beforeID != "" {
		start = slices.IndexFunc(msgs, func(m *discordgo.Message) bool { return m.ID == beforeID }) + 1
	}
	end := min(start+limit, len(msgs))
	return slices.Clone(msgs[start:end]), nil
}

func (p *fakePlatform) SendDirectMessage(_ context.Context, userID string, send *discordgo.MessageSend) (*discordgo.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failDM {
		return nil, errors.New("cannot send messages to this user")
	}
	p.dms[userID] = append(p.dms[userID], record(userID, send))
	return &discordgo.Message{ID: p.id()}, nil
}

func (p *fakePlatform) Role(_ context.Context, _ string, roleID string) (*discordgo.Role, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	role, ok := p.roles[roleID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	return role, nil
}

func (p *fakePlatform) BotUserID() string {
	return testBotID
}

func (p *fakePlatform) find(channelID, messageID string) *discordgo.Message {
	for _, msg := range p.history[channelID] {
		if msg.ID == messageID {
			return msg
		}
	}
	return nil
}

func (p *fakePlatform) sentTo(channelID string) []sentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []sentMessage
	for _, m := range p.sent {
		if m.ChannelID == channelID {
			out = append(out, m)
		}
	}
	return out
}

func record(channelID string, send *discordgo.MessageSend) sentMessage {
	files := map[string]string{}
	for _, f := range send.Files {
		body, _ := io.ReadAll(f.Reader)
		files[f.Name] = string(body)
	}
	return sentMessage{ChannelID: channelID, Send: send, Files: files}
}
