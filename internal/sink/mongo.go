package sink

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/marketpulse/scrape-cli/internal/model"
)

// Mongo upserts records into a collection, keyed by the content hash.
// Re-running a scrape updates existing documents instead of duplicating
// them; the bulk write is unordered so one bad document does not block the
// rest of its batch.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

// NewMongo connects to the MongoDB deployment at uri and targets
// database/collection. The connection is verified with a ping before any
// writes happen.
func NewMongo(ctx context.Context, uri, database, collection string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, eris.Wrap(err, "sink: mongo: connect")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		disconnectQuietly(ctx, client)
		return nil, eris.Wrap(err, "sink: mongo: ping")
	}

	m := &Mongo{
		client: client,
		coll:   client.Database(database).Collection(collection),
		now:    time.Now,
	}
	if err := m.ensureIndexes(ctx); err != nil {
		disconnectQuietly(ctx, client)
		return nil, err
	}
	return m, nil
}

func (m *Mongo) Name() string { return "mongo:" + m.coll.Name() }

// WriteBatch upserts the records. Records without a hash or url are counted
// as failed and skipped; there is nothing to key the upsert on.
func (m *Mongo) WriteBatch(ctx context.Context, records []model.Record) (Result, error) {
	models, failed := m.buildModels(records)
	if len(models) == 0 {
		return Result{Failed: failed}, nil
	}

	res, err := m.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return Result{Failed: failed}, eris.Wrap(err, "sink: mongo: bulk write")
	}

	out := Result{
		Inserted: int(res.UpsertedCount),
		Updated:  int(res.ModifiedCount),
		Failed:   failed,
	}
	zap.L().Debug("mongo batch written",
		zap.Int("inserted", out.Inserted),
		zap.Int("updated", out.Updated),
		zap.Int("failed", out.Failed),
	)
	return out, nil
}

func (m *Mongo) buildModels(records []model.Record) ([]mongo.WriteModel, int) {
	var failed int
	models := make([]mongo.WriteModel, 0, len(records))
	uploadedAt := m.now().UTC().Format(time.RFC3339)

	for _, rec := range records {
		key := model.FieldHash
		if _, ok := rec[key]; !ok {
			key = model.FieldURL
		}
		id, _ := rec[key].(string)
		if id == "" {
			failed++
			continue
		}

		doc := rec.Clone()
		doc[model.FieldUploadedAt] = uploadedAt

		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{key: id}).
			SetUpdate(bson.M{"$set": doc}).
			SetUpsert(true))
	}
	return models, failed
}

// Close disconnects from the deployment.
func (m *Mongo) Close(ctx context.Context) error {
	if err := m.client.Disconnect(ctx); err != nil {
		return eris.Wrap(err, "sink: mongo: disconnect")
	}
	return nil
}

// ensureIndexes creates the upsert-filter and query indexes. The hash index
// is unique but sparse: documents keyed by url carry no hash field.
func (m *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := m.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: model.FieldHash, Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{Keys: bson.D{{Key: model.FieldURL, Value: 1}}},
		{Keys: bson.D{{Key: "date", Value: 1}}},
		{Keys: bson.D{{Key: model.FieldScrapedAt, Value: -1}}},
	})
	if err != nil {
		return eris.Wrap(err, "sink: mongo: create indexes")
	}
	return nil
}

// Count returns the collection's document count.
func (m *Mongo) Count(ctx context.Context) (int64, error) {
	n, err := m.coll.EstimatedDocumentCount(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "sink: mongo: count documents")
	}
	return n, nil
}

func disconnectQuietly(ctx context.Context, client *mongo.Client) {
	if err := client.Disconnect(ctx); err != nil {
		zap.L().Warn("mongo disconnect failed", zap.Error(err))
	}
}
