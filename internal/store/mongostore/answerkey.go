package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pavelanni/resultportal/internal/model"
)

type answerKeyDoc struct {
	Post       string    `bson:"_id"`
	FilePath   string    `bson:"file_path"`
	FileName   string    `bson:"file_name"`
	Published  bool      `bson:"is_published"`
	UploadedAt time.Time `bson:"uploaded_at"`
}

func (d answerKeyDoc) model() model.AnswerKey {
	return model.AnswerKey{
		Post:       model.Post(d.Post),
		FilePath:   d.FilePath,
		FileName:   d.FileName,
		Published:  d.Published,
		UploadedAt: d.UploadedAt,
	}
}

// GetAnswerKey returns the answer key for post, or nil.
func (s *Store) GetAnswerKey(ctx context.Context, post model.Post) (*model.AnswerKey, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var d answerKeyDoc
	err := s.answerKeys.FindOne(ctx, bson.M{"_id": string(post)}).Decode(&d)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	k := d.model()
	return &k, nil
}

// ListAnswerKeys returns answer keys ordered by post.
func (s *Store) ListAnswerKeys(ctx context.Context, publishedOnly bool) ([]model.AnswerKey, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{}
	if publishedOnly {
		filter["is_published"] = true
	}
	cur, err := s.answerKeys.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []answerKeyDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	keys := make([]model.AnswerKey, 0, len(docs))
	for _, d := range docs {
		keys = append(keys, d.model())
	}
	return keys, nil
}

// UpsertAnswerKey stores the answer key for k.Post, replacing any prior one.
func (s *Store) UpsertAnswerKey(ctx context.Context, k model.AnswerKey) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	uploadedAt := k.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now()
	}
	d := answerKeyDoc{
		Post:       string(k.Post),
		FilePath:   k.FilePath,
		FileName:   k.FileName,
		Published:  k.Published,
		UploadedAt: uploadedAt.UTC(),
	}
	_, err := s.answerKeys.ReplaceOne(ctx, bson.M{"_id": d.Post}, d, options.Replace().SetUpsert(true))
	return err
}

// SetAnswerKeyPublished toggles publication of one answer key.
func (s *Store) SetAnswerKeyPublished(ctx context.Context, post model.Post, published bool) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.answerKeys.UpdateOne(ctx, bson.M{"_id": string(post)},
		bson.M{"$set": bson.M{"is_published": published}})
	if err != nil {
		return err
	}
	return matched(res, "answer key", string(post))
}

// SetAllAnswerKeysPublished toggles publication of every answer key.
func (s *Store) SetAllAnswerKeysPublished(ctx context.Context, published bool) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.answerKeys.UpdateMany(ctx, bson.M{}, bson.M{"$set": bson.M{"is_published": published}})
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

// DeleteAnswerKey removes the answer key record for post.
func (s *Store) DeleteAnswerKey(ctx context.Context, post model.Post) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.answerKeys.DeleteOne(ctx, bson.M{"_id": string(post)})
	if err != nil {
		return err
	}
	return deleted(res, "answer key", string(post))
}
