package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps sessions as documents in a MongoDB collection. A TTL
// index on expires_at lets the server drop expired sessions.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	owned  bool
}

// MongoConfig configures [NewMongoStore].
type MongoConfig struct {
	URI        string
	Database   string
	Collection string // defaults to "sessions"
}

// mongoDoc is the stored form. Props are kept as their JSON encoding so the
// ordered node map of the dataset survives unchanged.
type mongoDoc struct {
	ID        string    `bson:"_id"`
	Props     string    `bson:"props"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// NewMongoStore connects, pings and ensures the TTL index.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	s := NewMongoStoreFromClient(client, cfg.Database, cfg.Collection)
	s.owned = true
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// NewMongoStoreFromClient wraps an existing client. Close leaves it
// connected.
func NewMongoStoreFromClient(client *mongo.Client, database, collection string) *MongoStore {
	if database == "" {
		database = "stripesankey"
	}
	if collection == "" {
		collection = "sessions"
	}
	return &MongoStore{client: client, coll: client.Database(database).Collection(collection)}
}

// EnsureIndexes creates the expiry index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return fmt.Errorf("mongo create index: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*Session, error) {
	var doc mongoDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	sess, err := doc.session()
	if err != nil {
		return nil, err
	}
	if sess.IsExpired() {
		return nil, ErrNotFound
	}
	return sess, nil
}

func (s *MongoStore) Set(ctx context.Context, sess *Session) error {
	doc, err := newMongoDoc(sess)
	if err != nil {
		return err
	}
	_, err = s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo replace: %w", err)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("mongo delete: %w", err)
	}
	return nil
}

// Cleanup deletes expired documents without waiting for the TTL monitor.
func (s *MongoStore) Cleanup(ctx context.Context) error {
	_, err := s.coll.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": time.Now()}})
	if err != nil {
		return fmt.Errorf("mongo cleanup: %w", err)
	}
	return nil
}

func (s *MongoStore) Close() error {
	if !s.owned {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func newMongoDoc(sess *Session) (mongoDoc, error) {
	props, err := json.Marshal(sess.Props)
	if err != nil {
		return mongoDoc{}, fmt.Errorf("marshal props: %w", err)
	}
	return mongoDoc{
		ID:        sess.ID,
		Props:     string(props),
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

func (d mongoDoc) session() (*Session, error) {
	sess := &Session{
		ID:        d.ID,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
		ExpiresAt: d.ExpiresAt,
	}
	if err := json.Unmarshal([]byte(d.Props), &sess.Props); err != nil {
		return nil, fmt.Errorf("parse props: %w", err)
	}
	return sess, nil
}

var _ Store = (*MongoStore)(nil)
