package repository

import (
	"context"
	"errors"

	"github.com/spec-kit/ticket-bot/internal/persistence"
)

const (
	guildID = "100000000000000001"
	roleA   = "200000000000000001"
	roleB   = "200000000000000002"
	chanA   = "300000000000000001"
	ownerA  = "400000000000000001"
)

// failingDocuments wraps a store and fails every write once armed.
type failingDocuments struct {
	persistence.Documents
	failWrites bool
}

var errWriteFailed = errors.New("write failed")

func (f *failingDocuments) Set(ctx context.Context, collection, key, path string, value any) error {
	if f.failWrites {
		return errWriteFailed
	}
	return f.Documents.Set(ctx, collection, key, path, value)
}

func (f *failingDocuments) Insert(ctx context.Context, collection, key string, doc any) error {
	if f.failWrites {
		return errWriteFailed
	}
	return f.Documents.Insert(ctx, collection, key, doc)
}
