package ledger

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/ridoystarlord/mongrato/validator"
)

// Mongo keeps the ledger next to the collections it tracks.
type Mongo struct {
	records *mongo.Collection
	logs    *mongo.Collection
}

var _ Ledger = (*Mongo)(nil)

type recordDoc struct {
	ID         bson.ObjectID `bson:"_id,omitempty"`
	File       string        `bson:"file"`
	Collection string        `bson:"collection"`
	Namespace  string        `bson:"namespace"`
	Status     string        `bson:"status"`
	Error      string        `bson:"error_message,omitempty"`
	Checksum   string        `bson:"checksum"`
	ExecutedBy string        `bson:"executed_by"`
	RunID      string        `bson:"run_id"`
	AppliedAt  time.Time     `bson:"applied_at"`
	DurationMS int64         `bson:"execution_ms"`
}

func (d recordDoc) record() Record {
	return Record{
		ID:         d.ID.Hex(),
		File:       d.File,
		Collection: d.Collection,
		Namespace:  d.Namespace,
		Status:     d.Status,
		Error:      d.Error,
		Checksum:   d.Checksum,
		ExecutedBy: d.ExecutedBy,
		RunID:      d.RunID,
		AppliedAt:  d.AppliedAt,
		Duration:   time.Duration(d.DurationMS) * time.Millisecond,
	}
}

type entryDoc struct {
	Timestamp time.Time `bson:"timestamp"`
	Level     string    `bson:"level"`
	Message   string    `bson:"message"`
	File      string    `bson:"migration_name,omitempty"`
	Details   string    `bson:"details,omitempty"`
	User      string    `bson:"user_name,omitempty"`
}

// NewMongo stores records in the named collection of db and the activity
// log in migration_logs.
func NewMongo(db *mongo.Database, collection string) *Mongo {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Mongo{
		records: db.Collection(collection),
		logs:    db.Collection(LogsCollection),
	}
}

func (m *Mongo) Ensure(ctx context.Context) error {
	_, err := m.records.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "file", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to index %s: %v", m.records.Name(), err)
	}
	_, err = m.logs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "timestamp", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to index %s: %v", m.logs.Name(), err)
	}
	return nil
}

func (m *Mongo) find(ctx context.Context, filter bson.D, limit int) ([]Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "applied_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := m.records.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []recordDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.record())
	}
	return out, nil
}

func (m *Mongo) Applied(ctx context.Context) (map[string]Record, error) {
	recs, err := m.find(ctx, bson.D{{Key: "status", Value: bson.D{{Key: "$in", Value: bson.A{StatusCreated, StatusExists}}}}}, 0)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %v", err)
	}
	applied := make(map[string]Record, len(recs))
	for _, r := range recs {
		applied[r.File] = r
	}
	return applied, nil
}

func (m *Mongo) Record(ctx context.Context, rec Record) error {
	if rec.AppliedAt.IsZero() {
		rec.AppliedAt = time.Now().UTC()
	}
	doc := recordDoc{
		File:       rec.File,
		Collection: rec.Collection,
		Namespace:  rec.Namespace,
		Status:     rec.Status,
		Error:      rec.Error,
		Checksum:   rec.Checksum,
		ExecutedBy: rec.ExecutedBy,
		RunID:      rec.RunID,
		AppliedAt:  rec.AppliedAt,
		DurationMS: rec.Duration.Milliseconds(),
	}
	_, err := m.records.ReplaceOne(ctx, bson.D{{Key: "file", Value: rec.File}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("recording migration %s: %v", rec.File, err)
	}
	return nil
}

func (m *Mongo) Get(ctx context.Context, id string) (Record, error) {
	if !validator.IsValidObjectID(id) {
		return Record{}, ErrNotFound
	}
	oid, _ := bson.ObjectIDFromHex(id)
	var doc recordDoc
	err := m.records.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("query migration %s: %v", id, err)
	}
	return doc.record(), nil
}

func (m *Mongo) Remove(ctx context.Context, file string) error {
	res, err := m.records.DeleteOne(ctx, bson.D{{Key: "file", Value: file}})
	if err != nil {
		return fmt.Errorf("removing migration record for %s: %v", file, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) History(ctx context.Context, filter Filter) ([]Record, error) {
	q := bson.D{}
	if filter.Collection != "" {
		q = append(q, bson.E{Key: "collection", Value: bson.D{
			{Key: "$regex", Value: regexp.QuoteMeta(filter.Collection)},
			{Key: "$options", Value: "i"},
		}})
	}
	if filter.Status != "" {
		q = append(q, bson.E{Key: "status", Value: filter.Status})
	}
	recs, err := m.find(ctx, q, filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("query migration history: %v", err)
	}
	return recs, nil
}

func (m *Mongo) Count(ctx context.Context) (int, error) {
	n, err := m.records.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count migrations: %v", err)
	}
	return int(n), nil
}

func (m *Mongo) Log(ctx context.Context, entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	_, err := m.logs.InsertOne(ctx, entryDoc(entry))
	return err
}

func (m *Mongo) Logs(ctx context.Context, limit int) ([]Entry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := m.logs.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("query migration logs: %v", err)
	}
	var docs []entryDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode migration logs: %v", err)
	}
	out := make([]Entry, 0, len(docs))
	for _, d := range docs {
		out = append(out, Entry(d))
	}
	return out, nil
}

// Close is a no-op; the client belongs to the database gateway.
func (m *Mongo) Close(ctx context.Context) error { return nil }
