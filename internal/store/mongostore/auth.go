package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pavelanni/resultportal/internal/model"
	"github.com/pavelanni/resultportal/internal/store"
)

type flagDoc struct {
	Key       string    `bson:"_id"`
	Value     bool      `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// GetFlag returns the value of a config flag. Missing flags are false.
func (s *Store) GetFlag(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var d flagDoc
	err := s.flags.FindOne(ctx, bson.M{"_id": key}).Decode(&d)
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	return d.Value, err
}

// SetFlag upserts a boolean config flag.
func (s *Store) SetFlag(ctx context.Context, key string, value bool) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	d := flagDoc{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	_, err := s.flags.ReplaceOne(ctx, bson.M{"_id": key}, d, options.Replace().SetUpsert(true))
	return err
}

type userDoc struct {
	Username     string    `bson:"_id"`
	DisplayName  string    `bson:"display_name"`
	PasswordHash string    `bson:"password_hash"`
	Active       bool      `bson:"active"`
	CreatedAt    time.Time `bson:"created_at"`
}

func (d userDoc) model() model.User {
	return model.User{
		Username:     d.Username,
		DisplayName:  d.DisplayName,
		PasswordHash: d.PasswordHash,
		Active:       d.Active,
		CreatedAt:    d.CreatedAt,
	}
}

// CreateUser inserts a new administrator.
func (s *Store) CreateUser(ctx context.Context, u model.User) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.users.InsertOne(ctx, userDoc{
		Username:     u.Username,
		DisplayName:  u.DisplayName,
		PasswordHash: u.PasswordHash,
		Active:       u.Active,
		CreatedAt:    time.Now().UTC(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return model.Duplicate("user", u.Username)
	}
	return err
}

// GetUser returns a user by username.
func (s *Store) GetUser(ctx context.Context, username string) (*model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var d userDoc
	err := s.users.FindOne(ctx, bson.M{"_id": username}).Decode(&d)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u := d.model()
	return &u, nil
}

// ListUsers returns all users.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	cur, err := s.users.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	users := make([]model.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.model())
	}
	return users, nil
}

// ToggleUserActive flips the active flag on a user.
func (s *Store) ToggleUserActive(ctx context.Context, username string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	update := mongo.Pipeline{{{Key: "$set", Value: bson.D{{Key: "active", Value: bson.D{{Key: "$not", Value: "$active"}}}}}}}
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": username}, update)
	if err != nil {
		return err
	}
	return matched(res, "user", username)
}

// DeleteUser removes a user and its sessions.
func (s *Store) DeleteUser(ctx context.Context, username string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := s.authSession.DeleteMany(ctx, bson.M{"username": username}); err != nil {
		return err
	}
	res, err := s.users.DeleteOne(ctx, bson.M{"_id": username})
	if err != nil {
		return err
	}
	return deleted(res, "user", username)
}

// UserCount returns the total number of users.
func (s *Store) UserCount(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	n, err := s.users.CountDocuments(ctx, bson.M{})
	return int(n), err
}

type authSessionDoc struct {
	ID        string    `bson:"_id"`
	Username  string    `bson:"username"`
	CreatedAt time.Time `bson:"created_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// CreateAuthSession creates a new auth session token for a user.
func (s *Store) CreateAuthSession(ctx context.Context, username string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	token, err := store.GenerateToken()
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	_, err = s.authSession.InsertOne(ctx, authSessionDoc{
		ID:        token,
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(store.AuthSessionTTL),
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// GetAuthSession returns the auth session for the given token, or nil if
// not found or expired. The TTL index reaps expired documents lazily.
func (s *Store) GetAuthSession(ctx context.Context, token string) (*model.AuthSession, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var d authSessionDoc
	err := s.authSession.FindOne(ctx, bson.M{"_id": token}).Decode(&d)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if time.Now().After(d.ExpiresAt) {
		return nil, nil
	}
	return &model.AuthSession{ID: d.ID, Username: d.Username, CreatedAt: d.CreatedAt, ExpiresAt: d.ExpiresAt}, nil
}

// DeleteAuthSession removes a session token.
func (s *Store) DeleteAuthSession(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.authSession.DeleteOne(ctx, bson.M{"_id": token})
	return err
}

// CleanupExpiredSessions removes all expired auth sessions.
func (s *Store) CleanupExpiredSessions(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.authSession.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": time.Now().UTC()}})
	return err
}
