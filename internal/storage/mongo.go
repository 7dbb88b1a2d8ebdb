package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jkh-code/nhl-win-factors-analysis/internal/types"
)

// archiveDoc is the stored shape of a rendered page.
type archiveDoc struct {
	Season    int       `bson:"season"`
	Page      int       `bson:"page"`
	URL       string    `bson:"url"`
	HTML      string    `bson:"html"`
	FetchedAt time.Time `bson:"fetched_at"`
}

// MongoArchive writes rendered pages to a MongoDB collection.
type MongoArchive struct {
	client     *mongo.Client
	collection *mongo.Collection
	mu         sync.Mutex
	count      int
	logger     *slog.Logger
}

// NewMongoArchive connects to MongoDB and makes sure the collection has a
// unique (season, page) index, which is what keeps documents immutable.
func NewMongoArchive(ctx context.Context, uri, database, collection string, logger *slog.Logger) (*MongoArchive, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "season", Value: 1}, {Key: "page", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("season_page"),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb create index: %w", err)
	}

	return &MongoArchive{
		client:     client,
		collection: coll,
		logger:     logger.With("component", "mongo_archive"),
	}, nil
}

func (s *MongoArchive) Name() string { return "mongodb" }

func (s *MongoArchive) Insert(ctx context.Context, doc *types.RenderedPage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.collection.InsertOne(ctx, archiveDoc{
		Season:    doc.Season,
		Page:      doc.Page,
		URL:       doc.URL,
		HTML:      doc.HTML,
		FetchedAt: doc.FetchedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return types.ErrAlreadyArchived
	}
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("insert season %d page %d: %w", doc.Season, doc.Page, err)}
	}

	s.count++
	s.logger.Debug("page archived", "season", doc.Season, "page", doc.Page, "bytes", len(doc.HTML))
	return nil
}

func (s *MongoArchive) Close() error {
	s.logger.Info("mongodb archive closing", "total_documents", s.count)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
