// Package mongostore is the MongoDB implementation of store.Backend.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pavelanni/resultportal/internal/model"
	"github.com/pavelanni/resultportal/internal/store"
)

const opTimeout = 10 * time.Second

var _ store.Backend = (*Store)(nil)

// Store keeps each record type in its own collection, keyed by _id.
type Store struct {
	client      *mongo.Client
	db          *mongo.Database
	students    *mongo.Collection
	answerKeys  *mongo.Collection
	flags       *mongo.Collection
	users       *mongo.Collection
	authSession *mongo.Collection
}

// Open connects to uri and prepares the collections in database.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	cctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(cctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:      client,
		db:          db,
		students:    db.Collection("students"),
		answerKeys:  db.Collection("answer_keys"),
		flags:       db.Collection("config"),
		users:       db.Collection("admins"),
		authSession: db.Collection("auth_sessions"),
	}
	if err := s.ensureSchema(cctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	if err := s.ensureIndexes(cctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}
	return s, nil
}

// codeNamespaceExists is returned by create for an existing collection.
const codeNamespaceExists = 48

// ensureSchema installs $jsonSchema validators matching the SQLite CHECK
// constraints, creating the collections or updating existing ones.
func (s *Store) ensureSchema(ctx context.Context) error {
	validators := []struct {
		coll   string
		schema bson.M
	}{
		{"students", bson.M{
			"bsonType": "object",
			"required": bson.A{"_id", "name", "mobile", "post"},
			"properties": bson.M{
				"mobile": bson.M{"bsonType": "string", "pattern": "^[0-9]{10}$"},
				"post":   bson.M{"enum": postValues(model.StudentPosts)},
			},
		}},
		{"answer_keys", bson.M{
			"bsonType": "object",
			"required": bson.A{"_id", "file_path"},
			"properties": bson.M{
				"_id": bson.M{"enum": postValues(model.AnswerKeyPosts)},
			},
		}},
	}
	for _, v := range validators {
		validator := bson.M{"$jsonSchema": v.schema}
		err := s.db.CreateCollection(ctx, v.coll, options.CreateCollection().SetValidator(validator))
		var ce mongo.CommandError
		if errors.As(err, &ce) && ce.HasErrorCode(codeNamespaceExists) {
			err = s.db.RunCommand(ctx, bson.D{
				{Key: "collMod", Value: v.coll},
				{Key: "validator", Value: validator},
			}).Err()
		}
		if err != nil {
			return fmt.Errorf("%s validator: %w", v.coll, err)
		}
	}
	return nil
}

func postValues(posts []model.Post) bson.A {
	out := make(bson.A, 0, len(posts))
	for _, p := range posts {
		out = append(out, string(p))
	}
	return out
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.students.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "post", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return err
	}
	_, err = s.authSession.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	return err
}

// Drop removes the whole database. Used by tests.
func (s *Store) Drop(ctx context.Context) error {
	return s.db.Drop(ctx)
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func matched(res *mongo.UpdateResult, kind, key string) error {
	if res.MatchedCount == 0 {
		return model.NotFound(kind, key)
	}
	return nil
}

func deleted(res *mongo.DeleteResult, kind, key string) error {
	if res.DeletedCount == 0 {
		return model.NotFound(kind, key)
	}
	return nil
}
