package sink

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	errs "github.com/matzehuels/ossinventory/pkg/errors"
	"github.com/matzehuels/ossinventory/pkg/inventory"
)

const (
	DefaultMongoDatabase   = "ossinventory"
	DefaultMongoCollection = "packages"
)

// MongoConfig configures a [MongoSink].
type MongoConfig struct {
	URI        string
	Database   string // defaults to DefaultMongoDatabase
	Collection string // defaults to DefaultMongoCollection
}

// inserter is the subset of *mongo.Collection used by MongoSink.
type inserter interface {
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
}

// MongoSink inserts one document per inventory record.
type MongoSink struct {
	client *mongo.Client
	coll   inserter
	now    func() time.Time
}

// record is the stored document: the inventory columns plus run metadata.
type record struct {
	RunID            string    `bson:"run_id"`
	CollectedAt      time.Time `bson:"collected_at"`
	inventory.Record `bson:",inline"`
}

// NewMongoSink connects to MongoDB and verifies the connection.
func NewMongoSink(ctx context.Context, cfg MongoConfig) (*MongoSink, error) {
	if cfg.URI == "" {
		return nil, errs.New(errs.ErrCodeInvalidConfig, "mongo URI is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeOutput, err, "connect to mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errs.Wrap(errs.ErrCodeOutput, err, "ping mongo")
	}

	db := cfg.Database
	if db == "" {
		db = DefaultMongoDatabase
	}
	coll := cfg.Collection
	if coll == "" {
		coll = DefaultMongoCollection
	}
	return &MongoSink{
		client: client,
		coll:   client.Database(db).Collection(coll),
		now:    time.Now,
	}, nil
}

// Write inserts the outcome's records. An outcome without records is a no-op.
func (s *MongoSink) Write(ctx context.Context, o *inventory.Outcome) error {
	docs := s.documents(o)
	if len(docs) == 0 {
		return nil
	}
	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return errs.Wrap(errs.ErrCodeOutput, err, "insert %d records", len(docs))
	}
	return nil
}

func (s *MongoSink) documents(o *inventory.Outcome) []interface{} {
	if o == nil {
		return nil
	}
	at := s.now().UTC()
	docs := make([]interface{}, len(o.Records))
	for i, r := range o.Records {
		docs[i] = record{RunID: o.RunID, CollectedAt: at, Record: r}
	}
	return docs
}

// Close disconnects the client.
func (s *MongoSink) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

var _ Sink = (*MongoSink)(nil)
