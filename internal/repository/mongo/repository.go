package mongo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"videostream/internal/domain"
	"videostream/internal/library"
)

// Repository stores one document per media record, keyed by media id.
type Repository struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

type mediaDoc struct {
	ID            string `bson:"_id"`
	Path          string `bson:"path"`
	OptimizedPath string `bson:"optimizedPath,omitempty"`
	MimeType      string `bson:"mime"`
	CreatedAt     int64  `bson:"createdAt"`
	ModifiedAt    int64  `bson:"modifiedAt"`
}

type RepositoryOption func(*Repository)

func WithLogger(logger *slog.Logger) RepositoryOption {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRepository(client *mongo.Client, dbName, collectionName string, opts ...RepositoryOption) *Repository {
	r := &Repository{
		collection: client.Database(dbName).Collection(collectionName),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (r *Repository) EnsureIndexes(ctx context.Context) error {
	if r == nil || r.collection == nil {
		return nil
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "path", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

func (r *Repository) Lookup(ctx context.Context, id domain.MediaID) (domain.MediaRecord, error) {
	var doc mediaDoc
	if err := r.collection.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.MediaRecord{}, domain.ErrNotFound
		}
		return domain.MediaRecord{}, err
	}
	return fromDoc(doc), nil
}

func (r *Repository) ListAll(ctx context.Context) ([]domain.MediaRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "path", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []mediaDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return fromDocs(docs), nil
}

// Save replaces the document with the same id or inserts a new one.
func (r *Repository) Save(ctx context.Context, record domain.MediaRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	_, err := r.collection.ReplaceOne(
		ctx,
		bson.M{"_id": string(record.ID)},
		toDoc(record),
		options.Replace().SetUpsert(true),
	)
	return err
}

func (r *Repository) Remove(ctx context.Context, id domain.MediaID) (bool, error) {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *Repository) Exists(ctx context.Context, id domain.MediaID) (bool, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": string(id)}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repository) ScanDirectory(ctx context.Context, root string, onFound func(domain.MediaRecord)) (int, error) {
	return library.Scan(ctx, root, r.logger, r.Save, onFound)
}

func toDoc(record domain.MediaRecord) mediaDoc {
	return mediaDoc{
		ID:            string(record.ID),
		Path:          record.Path,
		OptimizedPath: record.OptimizedPath,
		MimeType:      record.MimeType,
		CreatedAt:     unixNano(record.CreatedAt),
		ModifiedAt:    unixNano(record.ModifiedAt),
	}
}

func fromDoc(doc mediaDoc) domain.MediaRecord {
	return domain.MediaRecord{
		ID:            domain.MediaID(doc.ID),
		Path:          doc.Path,
		OptimizedPath: doc.OptimizedPath,
		MimeType:      doc.MimeType,
		CreatedAt:     fromUnixNano(doc.CreatedAt),
		ModifiedAt:    fromUnixNano(doc.ModifiedAt),
	}
}

func fromDocs(docs []mediaDoc) []domain.MediaRecord {
	out := make([]domain.MediaRecord, 0, len(docs))
	for _, doc := range docs {
		out = append(out, fromDoc(doc))
	}
	return out
}

// Zero times are stored as 0 so a missing mtime survives the round trip.
func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v).UTC()
}
