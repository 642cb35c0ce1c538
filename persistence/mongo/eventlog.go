// Package mongo persists the bridge event log and decklist cache to
// MongoDB, grounded on the corpus's Mongo client/store split (one package
// wraps the driver behind a narrow interface, a thin Store delegates to it).
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"goa.design/clue/health"
)

// EventEntry mirrors one line of the bridge event log (spec §6): a
// timestamp, the callback or response method name, and an optional
// compact data summary.
type EventEntry struct {
	Timestamp time.Time
	Method    string
	Data      string
}

type eventDocument struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	GameID    string        `bson:"game_id"`
	Timestamp time.Time     `bson:"ts"`
	Method    string        `bson:"method"`
	Data      string        `bson:"data,omitempty"`
}

// EventLogStoreOptions configures EventLogStore.
type EventLogStoreOptions struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
	// Retention is how long an event document survives before the TTL
	// index reaps it. Zero selects the seven-day default.
	Retention time.Duration
}

const (
	defaultEventCollection = "bridge_events"
	defaultClientTimeout   = 5 * time.Second
	defaultRetention       = 7 * 24 * time.Hour
	eventStoreName         = "bridge-eventlog-mongo"
)

// EventLogStore persists the bridge event log as one document per line,
// implementing health.Pinger so it can be wired into a process health
// check alongside any other collaborator.
type EventLogStore struct {
	client  *mongodriver.Client
	coll    *mongodriver.Collection
	timeout time.Duration
}

var _ health.Pinger = (*EventLogStore)(nil)

// NewEventLogStore connects the store to its collection and ensures the TTL
// index exists.
func NewEventLogStore(ctx context.Context, opts EventLogStoreOptions) (*EventLogStore, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultEventCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	retention := opts.Retention
	if retention == 0 {
		retention = defaultRetention
	}

	coll := opts.Client.Database(opts.Database).Collection(collName)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	index := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "ts", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(retention.Seconds())),
	}
	if _, err := coll.Indexes().CreateOne(ctx, index); err != nil {
		return nil, fmt.Errorf("ensure ttl index: %w", err)
	}
	byGame := mongodriver.IndexModel{Keys: bson.D{{Key: "game_id", Value: 1}, {Key: "ts", Value: 1}}}
	if _, err := coll.Indexes().CreateOne(ctx, byGame); err != nil {
		return nil, fmt.Errorf("ensure game_id index: %w", err)
	}

	return &EventLogStore{client: opts.Client, coll: coll, timeout: timeout}, nil
}

// Name implements health.Pinger.
func (s *EventLogStore) Name() string { return eventStoreName }

// Ping implements health.Pinger.
func (s *EventLogStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Append persists one bridge event line.
func (s *EventLogStore) Append(ctx context.Context, gameID string, e EventEntry) error {
	if e.Method == "" {
		return errors.New("method is required")
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.coll.InsertOne(ctx, eventDocument{
		GameID:    gameID,
		Timestamp: e.Timestamp.UTC(),
		Method:    e.Method,
		Data:      e.Data,
	})
	return err
}

// Tail returns the most recent limit events for gameID, oldest first.
func (s *EventLogStore) Tail(ctx context.Context, gameID string, limit int) ([]EventEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cur, err := s.coll.Find(ctx, bson.M{"game_id": gameID}, options.Find().
		SetSort(bson.D{{Key: "ts", Value: -1}}).
		SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []eventDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]EventEntry, len(docs))
	for i, d := range docs {
		// Reverse into chronological order; docs arrived newest-first.
		out[len(docs)-1-i] = EventEntry{Timestamp: d.Timestamp, Method: d.Method, Data: d.Data}
	}
	return out, nil
}
