// Package mongo stores keyed documents in MongoDB collections, one document
// per key with the key as _id.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// updatedField records the last write; it is stripped on read.
const updatedField = "_updated_at"

// Store is a document store backed by one MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to uri and selects the named database.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}
	return &Store{client: client, db: client.Database(database)}, nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// UpsertByKey replaces the document whose _id is key, inserting it if absent.
func (s *Store) UpsertByKey(ctx context.Context, collection, key string, doc any) error {
	fields, err := toBSON(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	replacement := bson.D{{Key: "_id", Value: key}}
	for _, e := range fields {
		if e.Key == "_id" || e.Key == updatedField {
			continue
		}
		replacement = append(replacement, e)
	}
	replacement = append(replacement, bson.E{Key: updatedField, Value: primitive.NewDateTimeFromTime(time.Now())})

	_, err = s.db.Collection(collection).ReplaceOne(ctx,
		bson.M{"_id": key},
		replacement,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upserting %s/%s: %w", collection, key, err)
	}
	return nil
}

// FindByKey decodes the document whose _id is key into out.
func (s *Store) FindByKey(ctx context.Context, collection, key string, out any) (bool, error) {
	var stored bson.D
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": key}).Decode(&stored)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s/%s: %w", collection, key, err)
	}

	fields := make(bson.D, 0, len(stored))
	for _, e := range stored {
		if e.Key == "_id" || e.Key == updatedField {
			continue
		}
		fields = append(fields, e)
	}
	if err := fromBSON(fields, out); err != nil {
		return false, fmt.Errorf("decoding %s/%s: %w", collection, key, err)
	}
	return true, nil
}

// Count returns the number of documents in a collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	n, err := s.db.Collection(collection).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", collection, err)
	}
	return int(n), nil
}

// Keys lists _id values in a collection, most recently written first.
func (s *Store) Keys(ctx context.Context, collection string, limit int) ([]string, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: updatedField, Value: -1}, {Key: "_id", Value: 1}}).
		SetProjection(bson.M{"_id": 1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.db.Collection(collection).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", collection, err)
	}
	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("listing %s: %w", collection, err)
	}

	keys := make([]string, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, r.ID)
	}
	return keys, nil
}

// toBSON converts doc through its JSON encoding so the stored field names
// match the json tags used by every other backend.
func toBSON(doc any) (bson.D, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var d bson.D
	if err := bson.UnmarshalExtJSON(data, false, &d); err != nil {
		return nil, err
	}
	return d, nil
}

func fromBSON(d bson.D, out any) error {
	data, err := bson.MarshalExtJSON(d, false, false)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
