package transcript

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// pagedHistory serves a fixed history newest first, like the platform does.
type pagedHistory struct {
	oldestFirst []*discordgo.Message
	calls       int
	failOnCall  int
}

func (p *pagedHistory) Messages(_ context.Context, _ string, limit int, beforeID string) ([]*discordgo.Message, error) {
	p.calls++
	if p.failOnCall == p.calls {
		return nil, errors.New("gateway timeout")
	}
	end := len(p.oldestFirst)
	if beforeID != "" {
		for i, m := range p.oldestFirst {
			if m.ID == beforeID {
				end = i
				break
			}
		}
	}
	var page []*discordgo.Message
	for i := end - 1; i >= 0 && len(page) < limit; i-- {
		page = append(page, p.oldestFirst[i])
	}
	return page, nil
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func history(n int, botEvery int) []*discordgo.Message {
	msgs := make([]*discordgo.Message, 0, n)
	for i := 0; i < n; i++ {
		author := &discordgo.User{ID: "400000000000000001", Username: "bob"}
		if botEvery > 0 && i%botEvery == 0 {
			author = &discordgo.User{ID: "900000000000000001", Username: "ticketbot", Bot: true}
		}
		msgs = append(msgs, &discordgo.Message{
			ID:        strconv.Itoa(1000 + i),
			Content:   "message " + strconv.Itoa(i),
			Author:    author,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
	}
	return msgs
}

func TestCapture_PaginatesOldestFirst(t *testing.T) {
	reader := &pagedHistory{oldestFirst: history(250, 0)}
	builder := NewBuilder(reader, 100)

	entries, err := builder.Capture(context.Background(), "c1")
	require.NoError(t, err)

	assert.Equal(t, 3, reader.calls)
	require.Len(t, entries, 250)
	for i := 1; i < len(entries); i++ {
		assert.True(t, entries[i].TimeStamp.After(entries[i-1].TimeStamp), "entry %d out of order", i)
	}
	assert.Equal(t, "message 0", entries[0].Message)
	assert.Equal(t, "message 249", entries[249].Message)
}

func TestCapture_ExactPageMultipleStopsOnEmptyPage(t *testing.T) {
	reader := &pagedHistory{oldestFirst: history(200, 0)}
	entries, err := NewBuilder(reader, 100).Capture(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, reader.calls)
	assert.Len(t, entries, 200)
}

func TestCapture_SkipsBotMessages(t *testing.T) {
	reader := &pagedHistory{oldestFirst: history(10, 5)}
	entries, err := NewBuilder(reader, 100).Capture(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, entries, 8)
	for _, e := range entries {
		assert.NotContains(t, e.UserID, "ticketbot")
	}
}

func TestCapture_EmptyChannel(t *testing.T) {
	reader := &pagedHistory{}
	entries, err := NewBuilder(reader, 100).Capture(context.Background(), "c1")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
	assert.Equal(t, 1, reader.calls)
}

func TestCapture_FetchFailureAborts(t *testing.T) {
	reader := &pagedHistory{oldestFirst: history(250, 0), failOnCall: 2}
	_, err := NewBuilder(reader, 100).Capture(context.Background(), "c1")
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	author := &discordgo.User{ID: "400000000000000001", Username: "bob"}
	tests := []struct {
		name string
		msg  *discordgo.Message
		want string
	}{
		{name: "text", msg: &discordgo.Message{Content: "hello", Author: author}, want: "hello"},
		{name: "empty", msg: &discordgo.Message{Author: author}, want: domain.EmptyMessageMarker},
		{
			name: "attachment only",
			msg:  &discordgo.Message{Author: author, Attachments: []*discordgo.MessageAttachment{{ID: "a1", Filename: "log.txt"}}},
			want: domain.AttachmentMessageMarker,
		},
		{
			name: "mention replaced",
			msg: &discordgo.Message{
				Content:  "ping <@500000000000000001>",
				Author:   author,
				Mentions: []*discordgo.User{{ID: "500000000000000001", Username: "vera"}},
			},
			want: "ping @vera",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.msg)
			assert.Equal(t, tt.want, got.Message)
			assert.Equal(t, "bob (400000000000000001)", got.UserID)
		})
	}
}

func TestRender(t *testing.T) {
	assert.Equal(t, "Empty", string(Render(nil, time.UTC)))

	entries := []domain.IndividualMessage{
		{TimeStamp: base, Message: "hi", UserID: "bob (1)"},
		{TimeStamp: base.Add(90 * time.Second), Message: "[Attachment]", UserID: "vera (2)"},
	}
	want := "[01.03.2026. 12:00:00] bob (1): hi\n[01.03.2026. 12:01:30] vera (2): [Attachment]"
	assert.Equal(t, want, string(Render(entries, time.UTC)))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "transcript-42.txt", FileName("42"))
}
