package mongo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/GregorStocks/commander-bench-sub000/config"
)

type deckDocument struct {
	Key           string               `bson:"_id"`
	Player        string               `bson:"player"`
	Maindeck      []config.CardQuantity `bson:"maindeck"`
	Sideboard     []config.CardQuantity `bson:"sideboard,omitempty"`
	CreatureTypes []string             `bson:"creature_types,omitempty"`
	CachedAt      time.Time            `bson:"cached_at"`
}

// DeckStoreOptions configures DeckStore.
type DeckStoreOptions struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

const defaultDeckCollection = "deck_cache"

// DeckStore caches a player's resolved decklist and creature-type set keyed
// by player name plus a content hash of the deck, so a creature-type set
// resolved once can be reused across process restarts with an unchanged deck
// (for example as the WithDeckCreatureTypes override). get_decklist does not
// read this store; it serves the configured decklist directly.
type DeckStore struct {
	coll    *mongodriver.Collection
	timeout time.Duration
}

// NewDeckStore connects the store to its collection.
func NewDeckStore(opts DeckStoreOptions) (*DeckStore, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultDeckCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	coll := opts.Client.Database(opts.Database).Collection(collName)
	return &DeckStore{coll: coll, timeout: timeout}, nil
}

// DeckKey hashes a player's deck contents into the cache key, so an edited
// deck file naturally misses the cache instead of serving a stale entry.
func DeckKey(player string, deck config.DeckList) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s", player)
	for _, c := range deck.Maindeck {
		fmt.Fprintf(h, "|%s:%d", c.Name, c.Quantity)
	}
	fmt.Fprintf(h, "||")
	for _, c := range deck.Sideboard {
		fmt.Fprintf(h, "|%s:%d", c.Name, c.Quantity)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Load returns the cached creature-type set for a deck key, if present.
func (s *DeckStore) Load(ctx context.Context, key string) ([]string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var doc deckDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return doc.CreatureTypes, true, nil
}

// Store upserts the resolved deck and its creature-type set under key.
func (s *DeckStore) Store(ctx context.Context, key, player string, deck config.DeckList, creatureTypes []string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	filter := bson.M{"_id": key}
	update := bson.M{"$set": deckDocument{
		Key:           key,
		Player:        player,
		Maindeck:      deck.Maindeck,
		Sideboard:     deck.Sideboard,
		CreatureTypes: creatureTypes,
		CachedAt:      time.Now().UTC(),
	}}
	_, err := s.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}
