package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoCloseTimeout = 5 * time.Second

// MongoStore persists history as one document per record.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if database == "" {
		return nil, errors.New("mongo database name is required")
	}
	if collection == "" {
		return nil, errors.New("mongo collection name is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

type mongoHistoryDocument struct {
	ID        string    `bson:"_id"`
	TabID     string    `bson:"tab_id"`
	Kind      string    `bson:"kind"`
	Mode      string    `bson:"mode"`
	Prompt    string    `bson:"prompt"`
	ParentID  string    `bson:"parent_id,omitempty"`
	Variant   int       `bson:"variant"`
	MIME      string    `bson:"mime"`
	Image     []byte    `bson:"image,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

func toMongoDocument(rec Record) mongoHistoryDocument {
	return mongoHistoryDocument{
		ID:        rec.ID,
		TabID:     rec.TabID,
		Kind:      rec.Kind,
		Mode:      rec.Mode,
		Prompt:    rec.Prompt,
		ParentID:  rec.ParentID,
		Variant:   rec.Variant,
		MIME:      rec.MIME,
		Image:     rec.Image,
		CreatedAt: rec.CreatedAt.UTC(),
	}
}

func (doc mongoHistoryDocument) toRecord() Record {
	return Record{
		ID:        doc.ID,
		TabID:     doc.TabID,
		Kind:      doc.Kind,
		Mode:      doc.Mode,
		Prompt:    doc.Prompt,
		ParentID:  doc.ParentID,
		Variant:   doc.Variant,
		MIME:      doc.MIME,
		Image:     doc.Image,
		CreatedAt: doc.CreatedAt,
	}
}

// mongoFilter mirrors Query.matches.
func mongoFilter(q Query) bson.M {
	filter := bson.M{}
	if q.TabID != "" {
		filter["tab_id"] = q.TabID
	}
	if q.Kind != "" {
		filter["kind"] = q.Kind
	}
	return filter
}

func (ms *MongoStore) Append(ctx context.Context, rec Record) error {
	if ms == nil || ms.collection == nil {
		return nil
	}
	_, err := ms.collection.InsertOne(ctx, toMongoDocument(rec))
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

func (ms *MongoStore) List(ctx context.Context, q Query) ([]Record, error) {
	if ms == nil || ms.collection == nil {
		return nil, nil
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(q.limit()))
	cursor, err := ms.collection.Find(ctx, mongoFilter(q), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []Record
	for cursor.Next(ctx) {
		var doc mongoHistoryDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		records = append(records, doc.toRecord())
	}
	return records, cursor.Err()
}

// EnsureSchema creates the tab/time index used by List.
func (ms *MongoStore) EnsureSchema(ctx context.Context) error {
	if ms == nil || ms.collection == nil {
		return nil
	}
	_, err := ms.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tab_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("tab_created_at"),
		},
		{
			Keys:    bson.D{{Key: "kind", Value: 1}},
			Options: options.Index().SetName("kind"),
		},
	})
	return err
}

func (ms *MongoStore) Close(ctx context.Context) error {
	if ms == nil || ms.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mongoCloseTimeout)
	defer cancel()
	return ms.client.Disconnect(ctx)
}

var (
	_ HistoryStore      = (*MongoStore)(nil)
	_ SchemaInitializer = (*MongoStore)(nil)
)
