package store

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/depscout/pkg/errors"
	"github.com/matzehuels/depscout/pkg/export"
)

const (
	DefaultMongoDatabase   = "depscout"
	DefaultMongoCollection = "scans"
)

// MongoStore keeps manifests in a MongoDB collection, one document per
// scan. The manifest is stored as JSON next to the summary fields so that
// listing never loads graphs.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type scanDocument struct {
	ID         string    `bson:"_id"`
	Root       string    `bson:"root"`
	StartedAt  time.Time `bson:"startedAt"`
	DurationNS int64     `bson:"durationNs"`
	Components int       `bson:"components"`
	Edges      int       `bson:"edges"`
	Failures   int       `bson:"failures"`
	Manifest   string    `bson:"manifest,omitempty"`
}

// NewMongoStore connects to uri and ensures the listing index exists.
// Empty database or collection names select the defaults.
func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	if database == "" {
		database = DefaultMongoDatabase
	}
	if collection == "" {
		collection = DefaultMongoCollection
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "connect to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "ping mongodb")
	}
	s := NewMongoStoreFromClient(client, database, collection)
	_, err = s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "startedAt", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "create index")
	}
	return s, nil
}

// NewMongoStoreFromClient wraps an existing client. Close disconnects it.
func NewMongoStoreFromClient(client *mongo.Client, database, collection string) *MongoStore {
	return &MongoStore{client: client, coll: client.Database(database).Collection(collection)}
}

func (s *MongoStore) Save(ctx context.Context, m *export.Manifest) error {
	if err := validate(m); err != nil {
		return err
	}
	doc, err := toDocument(m)
	if err != nil {
		return err
	}
	_, err = s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "save scan %s", m.ScanID)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*export.Manifest, error) {
	var doc scanDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "get scan %s", id)
	}
	return doc.manifest()
}

func (s *MongoStore) List(ctx context.Context, limit int) ([]Summary, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "startedAt", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limitOrDefault(limit))).
		SetProjection(bson.M{"manifest": 0})
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "list scans")
	}
	var docs []scanDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "list scans")
	}
	out := make([]Summary, len(docs))
	for i, d := range docs {
		out[i] = d.summary()
	}
	return out, nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "delete scan %s", id)
	}
	return nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func toDocument(m *export.Manifest) (scanDocument, error) {
	var buf bytes.Buffer
	if err := export.WriteJSON(m, &buf); err != nil {
		return scanDocument{}, err
	}
	sum := Summarize(m)
	return scanDocument{
		ID:         sum.ID,
		Root:       sum.Root,
		StartedAt:  sum.StartedAt,
		DurationNS: int64(sum.Duration),
		Components: sum.Components,
		Edges:      sum.Edges,
		Failures:   sum.Failures,
		Manifest:   buf.String(),
	}, nil
}

func (d scanDocument) summary() Summary {
	return Summary{
		ID:         d.ID,
		Root:       d.Root,
		StartedAt:  d.StartedAt.UTC(),
		Duration:   time.Duration(d.DurationNS),
		Components: d.Components,
		Edges:      d.Edges,
		Failures:   d.Failures,
	}
}

func (d scanDocument) manifest() (*export.Manifest, error) {
	var m export.Manifest
	if err := json.Unmarshal([]byte(d.Manifest), &m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "decode scan %s", d.ID)
	}
	return &m, nil
}
