package vocab

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/lexicam/lexicam/utils"
)

// Default MongoDB namespace for words.
const (
	DefaultDatabase   = "lexicam"
	DefaultCollection = "words"
)

type wordDocument struct {
	ID            string    `bson:"_id"`
	Term          string    `bson:"term"`
	Meaning       string    `bson:"meaning"`
	Pronunciation string    `bson:"pronunciation,omitempty"`
	Example       string    `bson:"example,omitempty"`
	Learned       bool      `bson:"learned"`
	CreatedAt     time.Time `bson:"created_at"`
}

func toDocument(w Word) wordDocument {
	return wordDocument{
		ID:            w.ID.String(),
		Term:          w.Term,
		Meaning:       w.Meaning,
		Pronunciation: w.Pronunciation,
		Example:       w.Example,
		Learned:       w.Learned,
		CreatedAt:     w.CreatedAt,
	}
}

func (doc wordDocument) word() (Word, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return Word{}, errors.Wrapf(err, "stored word has a bad id %q", doc.ID)
	}
	return Word{
		ID:            id,
		Term:          doc.Term,
		Meaning:       doc.Meaning,
		Pronunciation: doc.Pronunciation,
		Example:       doc.Example,
		Learned:       doc.Learned,
		CreatedAt:     doc.CreatedAt.UTC(),
	}, nil
}

// MongoStore is a Store backed by a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	owned  bool
	now    func() time.Time
}

// NewMongoStore connects to uri and returns a store over database.collection. Empty names fall
// back to the defaults.
func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	client, err := mongo.NewClient(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, multierr.Combine(errors.Wrap(err, "cannot reach MongoDB"), client.Disconnect(ctx))
	}
	guard := utils.NewGuard(func() { goutils.UncheckedError(client.Disconnect(ctx)) })
	defer guard.OnFail()

	store := NewMongoStoreFromClient(client, database, collection)
	store.owned = true
	if err := store.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	guard.Success()
	return store, nil
}

// NewMongoStoreFromClient returns a store over an existing client. Close does not disconnect it.
func NewMongoStoreFromClient(client *mongo.Client, database, collection string) *MongoStore {
	if database == "" {
		database = DefaultDatabase
	}
	if collection == "" {
		collection = DefaultCollection
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(collection),
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

func (ms *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := ms.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: 1}},
	})
	return errors.Wrap(err, "cannot create word index")
}

// Add inserts w.
func (ms *MongoStore) Add(ctx context.Context, w Word) (Word, error) {
	w, err := prepare(w, ms.now())
	if err != nil {
		return Word{}, err
	}
	// BSON dates carry milliseconds
	w.CreatedAt = w.CreatedAt.UTC().Truncate(time.Millisecond)
	if _, err := ms.coll.InsertOne(ctx, toDocument(w)); err != nil {
		return Word{}, errors.Wrapf(err, "cannot add word %q", w.Term)
	}
	return w, nil
}

// Get returns the word with the given ID.
func (ms *MongoStore) Get(ctx context.Context, id uuid.UUID) (Word, error) {
	var doc wordDocument
	err := ms.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Word{}, ErrNotFound
	}
	if err != nil {
		return Word{}, err
	}
	return doc.word()
}

// Update replaces the stored word, keeping its creation time.
func (ms *MongoStore) Update(ctx context.Context, w Word) error {
	existing, err := ms.Get(ctx, w.ID)
	if err != nil {
		return err
	}
	w, err = prepare(w, existing.CreatedAt)
	if err != nil {
		return err
	}
	w.CreatedAt = existing.CreatedAt
	res, err := ms.coll.ReplaceOne(ctx, bson.M{"_id": w.ID.String()}, toDocument(w))
	if err != nil {
		return errors.Wrapf(err, "cannot update word %s", w.ID)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the word with the given ID.
func (ms *MongoStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := ms.coll.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return errors.Wrapf(err, "cannot delete word %s", id)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns every word.
func (ms *MongoStore) List(ctx context.Context) ([]Word, error) {
	return ms.find(ctx, bson.M{})
}

// Search returns the words whose term or meaning contains query.
func (ms *MongoStore) Search(ctx context.Context, query string) ([]Word, error) {
	query = normalizeQuery(query)
	if query == "" {
		return ms.List(ctx)
	}
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	return ms.find(ctx, bson.M{"$or": bson.A{
		bson.M{"term": pattern},
		bson.M{"meaning": pattern},
	}})
}

func (ms *MongoStore) find(ctx context.Context, filter interface{}) ([]Word, error) {
	cursor, err := ms.coll.Find(ctx, filter, options.Find().SetSort(bson.D{
		{Key: "created_at", Value: 1},
		{Key: "_id", Value: 1},
	}))
	if err != nil {
		return nil, err
	}
	var docs []wordDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	words := make([]Word, 0, len(docs))
	for _, doc := range docs {
		w, err := doc.word()
		if err != nil {
			return nil, err
		}
		words = append(words, w)
	}
	return words, nil
}

// ToggleLearned flips the learned flag in a single update and returns the updated word.
func (ms *MongoStore) ToggleLearned(ctx context.Context, id uuid.UUID) (Word, error) {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: "learned", Value: bson.D{{Key: "$not", Value: "$learned"}}}}}},
	}
	var doc wordDocument
	err := ms.coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id.String()},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Word{}, ErrNotFound
	}
	if err != nil {
		return Word{}, err
	}
	return doc.word()
}

// Close disconnects the client if the store created it.
func (ms *MongoStore) Close(ctx context.Context) error {
	if !ms.owned {
		return nil
	}
	return ms.client.Disconnect(ctx)
}
