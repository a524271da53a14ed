// Package transcript drains a ticket channel's history into normalized entries.
package transcript

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// DefaultPageSize is the largest page the platform serves per request.
const DefaultPageSize = 100

const lineTimeLayout = "02.01.2006. 15:04:05"

// HistoryReader pages through channel history, newest first.
type HistoryReader interface {
	Messages(ctx context.Context, channelID string, limit int, beforeID string) ([]*discordgo.Message, error)
}

// Builder captures transcripts.
type Builder struct {
	reader   HistoryReader
	pageSize int
}

// NewBuilder returns a Builder requesting pageSize messages per round trip.
func NewBuilder(reader HistoryReader, pageSize int) *Builder {
	if pageSize <= 0 || pageSize > DefaultPageSize {
		pageSize = DefaultPageSize
	}
	return &Builder{reader: reader, pageSize: pageSize}
}

// Capture returns the channel's non-bot messages oldest first. A failed page fetch aborts
// the capture; nothing is retried.
func (b *Builder) Capture(ctx context.Context, channelID string) ([]domain.IndividualMessage, error) {
	var entries []domain.IndividualMessage
	before := ""
	for {
		page, err := b.reader.Messages(ctx, channelID, b.pageSize, before)
		if err != nil {
			return nil, fmt.Errorf("fetch history of %s: %w", channelID, err)
		}
		if len(page) == 0 {
			break
		}
		for _, msg := range page {
			if msg.Author != nil && msg.Author.Bot {
				continue
			}
			entries = append(entries, Normalize(msg))
		}
		before = page[len(page)-1].ID
		if len(page) < b.pageSize {
			break
		}
	}
	slices.Reverse(entries)
	if entries == nil {
		entries = []domain.IndividualMessage{}
	}
	return entries, nil
}

// Normalize converts a platform message into a transcript entry.
func Normalize(msg *discordgo.Message) domain.IndividualMessage {
	text := msg.ContentWithMentionsReplaced()
	if text == "" {
		if len(msg.Attachments) > 0 {
			text = domain.AttachmentMessageMarker
		} else {
			text = domain.EmptyMessageMarker
		}
	}
	user := "unknown"
	if msg.Author != nil {
		user = fmt.Sprintf("%s (%s)", msg.Author.Username, msg.Author.ID)
	}
	return domain.IndividualMessage{
		TimeStamp: msg.Timestamp.UTC(),
		Message:   text,
		UserID:    user,
	}
}

// Render formats entries as the plain-text transcript file attached to archive records.
func Render(entries []domain.IndividualMessage, loc *time.Location) []byte {
	if len(entries) == 0 {
		return []byte("Empty")
	}
	if loc == nil {
		loc = time.UTC
	}
	var buf bytes.Buffer
	for i, entry := range entries {
		if i > 0 {
			buf.WriteByte('\n')
		}
		fmt.Fprintf(&buf, "[%s] %s: %s", entry.TimeStamp.In(loc).Format(lineTimeLayout), entry.UserID, entry.Message)
	}
	return buf.Bytes()
}

// FileName names the transcript attachment for a channel.
func FileName(channelID string) string {
	return fmt.Sprintf("transcript-%s.txt", channelID)
}
