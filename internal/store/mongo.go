package store

import (
	"context"
	"emsp/internal"
	"emsp/internal/config"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionLog    = "sys_log"
	collectionPrefix = "ocpi_"
	maxUpdateRetries = 5
)

type mongoResource struct {
	CountryCode string         `bson:"country_code"`
	PartyId     string         `bson:"party_id"`
	Id          string         `bson:"id"`
	Data        map[string]any `bson:"data"`
	LastUpdated time.Time      `bson:"last_updated"`
	ETag        string         `bson:"etag"`
}

// MongoDB stores each resource kind in its own collection; updates are
// optimistic, guarded by the previous ETag.
type MongoDB struct {
	client   *mongo.Client
	database string
}

func NewMongoClient(ctx context.Context, conf *config.Config) (*MongoDB, error) {
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	m := &MongoDB{
		client:   client,
		database: conf.Mongo.Database,
	}
	for _, kind := range []Kind{KindLocation, KindSession, KindTariff, KindCdr, KindToken} {
		if err = m.ensureIndex(ctx, kind); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
	}
	return m, nil
}

func (m *MongoDB) collection(kind Kind) *mongo.Collection {
	return m.client.Database(m.database).Collection(collectionPrefix + string(kind))
}

func (m *MongoDB) ensureIndex(ctx context.Context, kind Kind) error {
	_, err := m.collection(kind).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "country_code", Value: 1},
			{Key: "party_id", Value: 1},
			{Key: "id", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create index on %s: %w", kind, err)
	}
	return nil
}

func keyFilter(key Key) bson.D {
	return bson.D{
		{Key: "country_code", Value: key.CountryCode},
		{Key: "party_id", Value: key.PartyId},
		{Key: "id", Value: key.Id},
	}
}

func (m *MongoDB) Get(ctx context.Context, kind Kind, key Key) (*Resource, error) {
	var doc mongoResource
	err := m.collection(kind).FindOne(ctx, keyFilter(key)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc.resource(kind), nil
}

func (m *MongoDB) Update(ctx context.Context, kind Kind, key Key, fn MutateFunc) (*Resource, error) {
	collection := m.collection(kind)
	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		current, err := m.Get(ctx, kind, key)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		next, err := fn(current.Clone())
		if err != nil {
			return nil, err
		}
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		if next == nil {
			return current, nil
		}
		doc := toMongoResource(key, next)

		if current == nil {
			_, err = collection.InsertOne(ctx, doc)
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			if err != nil {
				return nil, err
			}
			return doc.resource(kind), nil
		}

		filter := append(keyFilter(key), bson.E{Key: "etag", Value: current.ETag})
		result, err := collection.ReplaceOne(ctx, filter, doc)
		if err != nil {
			return nil, err
		}
		if result.MatchedCount == 0 {
			continue
		}
		return doc.resource(kind), nil
	}
	return nil, ErrConflict
}

func (m *MongoDB) Remove(ctx context.Context, kind Kind, key Key) error {
	result, err := m.collection(kind).DeleteOne(ctx, keyFilter(key))
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoDB) List(ctx context.Context, kind Kind, opts ListOptions) ([]*Resource, int, error) {
	filter := bson.D{}
	if opts.CountryCode != "" {
		filter = append(filter, bson.E{Key: "country_code", Value: opts.CountryCode})
	}
	if opts.PartyId != "" {
		filter = append(filter, bson.E{Key: "party_id", Value: opts.PartyId})
	}
	period := bson.D{}
	if !opts.DateFrom.IsZero() {
		period = append(period, bson.E{Key: "$gte", Value: opts.DateFrom})
	}
	if !opts.DateTo.IsZero() {
		period = append(period, bson.E{Key: "$lt", Value: opts.DateTo})
	}
	if len(period) > 0 {
		filter = append(filter, bson.E{Key: "last_updated", Value: period})
	}

	collection := m.collection(kind)
	total, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "last_updated", Value: 1}, {Key: "id", Value: 1}})
	if opts.Offset > 0 {
		findOptions.SetSkip(int64(opts.Offset))
	}
	if opts.Limit > 0 {
		findOptions.SetLimit(int64(opts.Limit))
	}
	cursor, err := collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, err
	}
	var docs []mongoResource
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	items := make([]*Resource, 0, len(docs))
	for i := range docs {
		items = append(items, docs[i].resource(kind))
	}
	return items, int(total), nil
}

// WriteLogMessage makes the store usable as the logger's database sink.
func (m *MongoDB) WriteLogMessage(data internal.Data) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := m.client.Database(m.database).Collection(collectionLog).InsertOne(ctx, data)
	return err
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func toMongoResource(key Key, r *Resource) *mongoResource {
	return &mongoResource{
		CountryCode: key.CountryCode,
		PartyId:     key.PartyId,
		Id:          key.Id,
		Data:        r.Data,
		LastUpdated: r.LastUpdated.UTC(),
		ETag:        r.ETag,
	}
}

func (doc *mongoResource) resource(kind Kind) *Resource {
	data, _ := fromBson(doc.Data).(map[string]any)
	return &Resource{
		Kind:        kind,
		Key:         Key{CountryCode: doc.CountryCode, PartyId: doc.PartyId, Id: doc.Id},
		Data:        data,
		LastUpdated: doc.LastUpdated.UTC(),
		ETag:        doc.ETag,
	}
}

// fromBson converts driver container types back to plain maps and slices.
func fromBson(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = fromBson(item)
		}
		return out
	case primitive.M:
		return fromBson(map[string]any(t))
	case primitive.D:
		return fromBson(map[string]any(t.Map()))
	case primitive.A:
		return fromBson([]any(t))
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = fromBson(item)
		}
		return out
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return v
	}
}
