package persistence

import (
	"context"
	"errors"
	"strings"
)

// Collections used by the bot.
const (
	CollectionGuilds  = "guilds"
	CollectionTickets = "tickets"
)

var (
	// ErrNoDocument is returned when the addressed document does not exist.
	ErrNoDocument = errors.New("document not found")
	// ErrDuplicateKey is returned by Insert when the key is already taken.
	ErrDuplicateKey = errors.New("document key already exists")
)

// Documents is a keyed document store with dotted-path partial updates.
// Paths use "." separators; numeric segments address array positions, e.g. "tickets.2.roleAccess".
type Documents interface {
	Get(ctx context.Context, collection, key string, out any) error
	FindOne(ctx context.Context, collection, field, value string, out any) error
	Insert(ctx context.Context, collection, key string, doc any) error
	Upsert(ctx context.Context, collection, key string, doc any) error
	Delete(ctx context.Context, collection, key string) error
	Set(ctx context.Context, collection, key, path string, value any) error
	Unset(ctx context.Context, collection, key, path string) error
	Push(ctx context.Context, collection, key, path string, value any) error
	Pull(ctx context.Context, collection, key, path string, value any) error
	Ping(ctx context.Context) error
}

func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "."), ".")
}
