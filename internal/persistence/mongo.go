package persistence

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/config"
)

// Mongo wraps a connected MongoDB client.
type Mongo struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// NewMongo connects and pings MongoDB.
func NewMongo(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	logger.Info("connected to mongodb", zap.String("database", cfg.Database))
	return &Mongo{Client: client, Database: client.Database(cfg.Database)}, nil
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) {
	if m != nil && m.Client != nil {
		_ = m.Client.Disconnect(ctx)
	}
}

// Documents exposes the database as a document store.
func (m *Mongo) Documents() *MongoDocuments {
	return &MongoDocuments{db: m.Database}
}

// MongoDocuments maps each collection onto a MongoDB collection keyed by _id.
type MongoDocuments struct {
	db *mongo.Database
}

func (d *MongoDocuments) Get(ctx context.Context, collection, key string, out any) error {
	return d.findOne(ctx, collection, bson.M{"_id": key}, out)
}

func (d *MongoDocuments) FindOne(ctx context.Context, collection, field, value string, out any) error {
	return d.findOne(ctx, collection, bson.M{field: value}, out)
}

func (d *MongoDocuments) Insert(ctx context.Context, collection, key string, doc any) error {
	body, err := withID(key, doc)
	if err != nil {
		return err
	}
	if _, err := d.db.Collection(collection).InsertOne(ctx, body); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

func (d *MongoDocuments) Upsert(ctx context.Context, collection, key string, doc any) error {
	body, err := withID(key, doc)
	if err != nil {
		return err
	}
	_, err = d.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": key}, body, options.Replace().SetUpsert(true))
	return err
}

func (d *MongoDocuments) Delete(ctx context.Context, collection, key string) error {
	res, err := d.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": key})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNoDocument
	}
	return nil
}

func (d *MongoDocuments) Set(ctx context.Context, collection, key, path string, value any) error {
	return d.update(ctx, collection, key, bson.M{"$set": bson.M{path: value}})
}

func (d *MongoDocuments) Unset(ctx context.Context, collection, key, path string) error {
	return d.update(ctx, collection, key, bson.M{"$unset": bson.M{path: ""}})
}

func (d *MongoDocuments) Push(ctx context.Context, collection, key, path string, value any) error {
	return d.update(ctx, collection, key, bson.M{"$push": bson.M{path: value}})
}

func (d *MongoDocuments) Pull(ctx context.Context, collection, key, path string, value any) error {
	return d.update(ctx, collection, key, bson.M{"$pull": bson.M{path: value}})
}

func (d *MongoDocuments) Ping(ctx context.Context) error {
	if d.db == nil {
		return errors.New("mongodb not configured")
	}
	return d.db.Client().Ping(ctx, readpref.Primary())
}

func (d *MongoDocuments) findOne(ctx context.Context, collection string, filter bson.M, out any) error {
	err := d.db.Collection(collection).FindOne(ctx, filter).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNoDocument
	}
	return err
}

func (d *MongoDocuments) update(ctx context.Context, collection, key string, update bson.M) error {
	res, err := d.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": key}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNoDocument
	}
	return nil
}

func withID(key string, doc any) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var body bson.M
	if err := bson.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	body["_id"] = key
	return body, nil
}
