package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const mongoRecordCollection = "medical_records"

// MongoDocumentStore persists records as MongoDB documents, one per
// ingestion. Fields live at the top level so filters query them
// directly; write metadata sits under "meta".
type MongoDocumentStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

var _ DocumentStore = (*MongoDocumentStore)(nil)

// NewMongoDocumentStore connects to the mongodb:// URL and pings the
// primary. The database name comes from the URL path, defaulting to
// "medrag".
func NewMongoDocumentStore(ctx context.Context, url string) (*MongoDocumentStore, error) {
	opts := options.Client().
		ApplyURI(url).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("store: connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("store: ping mongodb: %w", err)
	}

	db := client.Database(databaseNameFromURL(url))
	return &MongoDocumentStore{
		client:     client,
		collection: db.Collection(mongoRecordCollection),
	}, nil
}

// Insert writes one document. The patient key is stored alongside the
// fields so duplicate ingestions remain distinct documents.
func (s *MongoDocumentStore) Insert(ctx context.Context, key string, fields map[string]any, meta map[string]any) error {
	doc := bson.M{}
	for k, v := range fields {
		doc[k] = v
	}
	doc["record_key"] = key
	doc["meta"] = meta

	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("store: insert document for %s: %w", key, err)
	}
	return nil
}

// Find queries by exact field match with an optional projection.
func (s *MongoDocumentStore) Find(ctx context.Context, filter map[string]any, projection []string) ([]Document, error) {
	query := bson.M{}
	for k, v := range filter {
		query[k] = v
	}

	findOpts := options.Find()
	if len(projection) > 0 {
		proj := bson.M{"record_key": 1, "meta": 1}
		for _, name := range projection {
			proj[name] = 1
		}
		findOpts.SetProjection(proj)
	}

	cursor, err := s.collection.Find(ctx, query, findOpts)
	if err != nil {
		return nil, fmt.Errorf("store: query documents: %w", err)
	}
	defer cursor.Close(ctx)

	var out []Document
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("store: decode document: %w", err)
		}
		out = append(out, mongoToDocument(raw))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate documents: %w", err)
	}
	return out, nil
}

func mongoToDocument(raw bson.M) Document {
	doc := Document{Fields: map[string]any{}}
	for k, v := range raw {
		switch k {
		case "_id":
		case "record_key":
			doc.Key, _ = v.(string)
		case "meta":
			if m, ok := v.(bson.M); ok {
				doc.Metadata = map[string]any(m)
			}
		default:
			doc.Fields[k] = normalizeBSON(v)
		}
	}
	return doc
}

// normalizeBSON converts bson container types back to plain maps and
// slices so callers see the same shapes they inserted.
func normalizeBSON(v any) any {
	switch vv := v.(type) {
	case bson.M:
		out := make(map[string]any, len(vv))
		for k, e := range vv {
			out[k] = normalizeBSON(e)
		}
		return out
	case bson.A:
		out := make([]any, len(vv))
		for i, e := range vv {
			out[i] = normalizeBSON(e)
		}
		return out
	case int32:
		return int(vv)
	case int64:
		return int(vv)
	default:
		return v
	}
}

// Clear drops every document in the collection.
func (s *MongoDocumentStore) Clear(ctx context.Context) error {
	if _, err := s.collection.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("store: clear documents: %w", err)
	}
	return nil
}

// Stats reports the collection count.
func (s *MongoDocumentStore) Stats(ctx context.Context) (*Stats, error) {
	n, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("store: count documents: %w", err)
	}
	return &Stats{Backend: "mongodb", Entries: int(n), LastUpdated: time.Now()}, nil
}

// Close disconnects the client.
func (s *MongoDocumentStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// databaseNameFromURL pulls the database from the URL path, e.g.
// mongodb://host:27017/clinic -> clinic.
func databaseNameFromURL(url string) string {
	trimmed := url
	if i := strings.Index(trimmed, "://"); i >= 0 {
		trimmed = trimmed[i+3:]
	}
	if i := strings.Index(trimmed, "/"); i >= 0 {
		name := trimmed[i+1:]
		if j := strings.IndexAny(name, "?"); j >= 0 {
			name = name[:j]
		}
		if name != "" {
			return name
		}
	}
	return "medrag"
}
