package registry

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Mongo is the production registry: stores live in one collection, score
// history is appended to another.
type Mongo struct {
	client *mongo.Client
	stores *mongo.Collection
	scores *mongo.Collection
}

// mongoStore mirrors the fields of a store document the audit reads.
type mongoStore struct {
	ID         any    `bson:"_id"`
	Store      string `bson:"store"`
	Plan       string `bson:"plan"`
	AppVersion string `bson:"app_version"`
}

// OpenMongo connects to uri and pings the primary.
func OpenMongo(ctx context.Context, uri string, opts Options) (*Mongo, error) {
	opts.defaults()
	client, err := mongo.Connect(options.Client().
		ApplyURI(uri).
		SetConnectTimeout(opts.ConnectTimeout))
	if err != nil {
		return nil, fmt.Errorf("registry: mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("registry: mongo ping: %w", err)
	}

	db := client.Database(opts.DBName)
	return &Mongo{
		client: client,
		stores: db.Collection(opts.StoresCollection),
		scores: db.Collection(opts.ScoresCollection),
	}, nil
}

// eligibleFilter selects premium stores. $nin also matches documents with no
// plan field, which Eligible mirrors.
func eligibleFilter() bson.D {
	return bson.D{
		{Key: "plan", Value: bson.D{{Key: "$nin", Value: bson.A{ExcludedPlans[0], ExcludedPlans[1]}}}},
		{Key: "app_version", Value: EligibleAppVersion},
	}
}

// EligibleStores drains the cursor for every premium store.
func (m *Mongo) EligibleStores(ctx context.Context) ([]Store, error) {
	cur, err := m.stores.Find(ctx, eligibleFilter())
	if err != nil {
		return nil, fmt.Errorf("registry: mongo find: %w", err)
	}
	var docs []mongoStore
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("registry: mongo decode stores: %w", err)
	}

	out := make([]Store, 0, len(docs))
	for _, d := range docs {
		out = append(out, Store{
			ID:         idString(d.ID),
			Hostname:   d.Store,
			Plan:       d.Plan,
			AppVersion: d.AppVersion,
		})
	}
	slog.Info("registry: eligible stores loaded", "backend", "mongo", "count", len(out))
	return out, nil
}

// InsertScore appends one speed score document. The store id is written back
// as an ObjectID when it round-trips as one, so it still joins with stores._id.
func (m *Mongo) InsertScore(ctx context.Context, rec ScoreRecord) (string, error) {
	res, err := m.scores.InsertOne(ctx, scoreDocument(rec))
	if err != nil {
		return "", fmt.Errorf("registry: mongo insert score: %w", err)
	}
	if !res.Acknowledged {
		return "", fmt.Errorf("registry: mongo insert score for %s not acknowledged", rec.StoreID)
	}
	return idString(res.InsertedID), nil
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func scoreDocument(rec ScoreRecord) bson.D {
	var storeID any = rec.StoreID
	if oid, err := bson.ObjectIDFromHex(rec.StoreID); err == nil {
		storeID = oid
	}
	return bson.D{
		{Key: "storeId", Value: storeID},
		{Key: "scores", Value: bson.D{
			{Key: "home", Value: bson.D{
				{Key: "desktop", Value: rec.Desktop},
			}},
		}},
		{Key: "requestedAt", Value: rec.RequestedAt},
	}
}

func idString(id any) string {
	switch v := id.(type) {
	case bson.ObjectID:
		return v.Hex()
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
