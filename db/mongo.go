package db

import (
	"context"
	"time"

	extErrors "github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// MongoOptions configures NewMongo
type MongoOptions struct {
	URI      string
	Database string
	Logger   *zap.Logger
}

// MongoStore is a Store over a single MongoDB database
type MongoStore struct {
	client   *mongo.Client
	database *mongo.Database
	logger   *zap.Logger
}

var _ Store = &MongoStore{}

// NewMongo connects to MongoDB and verifies the deployment answers a ping
func NewMongo(ctx context.Context, option MongoOptions) (*MongoStore, error) {
	if option.Logger == nil {
		return nil, extErrors.New("nil Logger is invalid")
	}
	if option.Database == "" {
		return nil, extErrors.New("Empty Database is invalid")
	}
	clientOpts := options.Client().
		ApplyURI(option.URI).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1))
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot connect to database")
	}
	pingCtx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, extErrors.Wrap(err, "Cannot ping database")
	}
	return &MongoStore{
		client:   client,
		database: client.Database(option.Database),
		logger:   option.Logger,
	}, nil
}

func (m *MongoStore) Collection(name string) Collection {
	return &mongoCollection{
		coll:   m.database.Collection(name),
		logger: m.logger.With(zap.String("collection", name)),
	}
}

func (m *MongoStore) EnsureUnique(ctx context.Context, collection, field string) error {
	_, err := m.database.Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return extErrors.Wrapf(err, "Cannot create unique index on %s.%s", collection, field)
	}
	return nil
}

func (m *MongoStore) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

type mongoCollection struct {
	coll   *mongo.Collection
	logger *zap.Logger
}

// filter builds the equality filter for field. Identifiers travel as hex
// strings and are stored as ObjectIDs.
func filter(field string, value interface{}) (bson.M, error) {
	if field != IDField {
		return bson.M{field: value}, nil
	}
	hex, ok := value.(string)
	if !ok {
		return nil, ErrInvalidID
	}
	oid, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return nil, ErrInvalidID
	}
	return bson.M{IDField: oid}, nil
}

func (c *mongoCollection) All(ctx context.Context) ([]Document, error) {
	cursor, err := c.coll.Find(ctx, bson.M{})
	if err != nil {
		c.logger.Error("Database returned error",
			zap.Error(err),
		)
		return nil, extErrors.Wrap(err, "Cannot list documents")
	}
	defer cursor.Close(ctx)

	raw := make([]bson.M, 0)
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, extErrors.Wrap(err, "Cannot decode documents")
	}
	docs := make([]Document, 0, len(raw))
	for _, m := range raw {
		docs = append(docs, fromBSON(m))
	}
	return docs, nil
}

func (c *mongoCollection) ByID(ctx context.Context, id string) (Document, error) {
	return c.FindOne(ctx, IDField, id)
}

func (c *mongoCollection) FindOne(ctx context.Context, field string, value interface{}) (Document, error) {
	f, err := filter(field, value)
	if err != nil {
		return nil, err
	}
	var m bson.M
	err = c.coll.FindOne(ctx, f).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		c.logger.Error("Database returned error",
			zap.Error(err),
		)
		return nil, extErrors.Wrapf(err, "Cannot find document by %s", field)
	}
	return fromBSON(m), nil
}

func (c *mongoCollection) Insert(ctx context.Context, doc Document) (*InsertResult, error) {
	res, err := c.coll.InsertOne(ctx, bson.M(doc.WithoutID()))
	if mongo.IsDuplicateKeyError(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		c.logger.Error("Unable to insert document",
			zap.Error(err),
		)
		return nil, extErrors.Wrap(err, "Cannot insert document")
	}
	result := &InsertResult{Acknowledged: true}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		result.InsertedID = oid.Hex()
	}
	return result, nil
}

func (c *mongoCollection) Merge(ctx context.Context, field string, value interface{}, patch Document) (*MergeResult, error) {
	f, err := filter(field, value)
	if err != nil {
		return nil, err
	}
	res, err := c.coll.UpdateOne(ctx, f, bson.M{"$set": bson.M(patch.WithoutID())})
	if err != nil {
		c.logger.Error("Unable to merge document",
			zap.Error(err),
		)
		return nil, extErrors.Wrap(err, "Cannot merge document")
	}
	return &MergeResult{
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
	}, nil
}

// fromBSON converts driver types into plain values that encode cleanly as JSON
func fromBSON(m bson.M) Document {
	doc := make(Document, len(m))
	for k, v := range m {
		doc[k] = plain(v)
	}
	return doc
}

func plain(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Timestamp:
		return time.Unix(int64(t.T), 0).UTC()
	case primitive.Decimal128:
		return t.String()
	case bson.M:
		return map[string]interface{}(fromBSON(t))
	case bson.D:
		return map[string]interface{}(fromBSON(t.Map()))
	case bson.A:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = plain(t[i])
		}
		return out
	}
	return v
}
