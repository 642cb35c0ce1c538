package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/GregorStocks/commander-bench-sub000/config"
)

func TestDeckKey_StableForSameDeck(t *testing.T) {
	t.Parallel()
	deck := config.DeckList{
		Maindeck:  []config.CardQuantity{{Name: "Sol Ring", Quantity: 1}, {Name: "Forest", Quantity: 20}},
		Sideboard: []config.CardQuantity{{Name: "Swords to Plowshares", Quantity: 1}},
	}
	assert.Equal(t, DeckKey("Alice", deck), DeckKey("Alice", deck))
}

func TestDeckKey_DiffersByPlayer(t *testing.T) {
	t.Parallel()
	deck := config.DeckList{Maindeck: []config.CardQuantity{{Name: "Sol Ring", Quantity: 1}}}
	assert.NotEqual(t, DeckKey("Alice", deck), DeckKey("Bob", deck))
}

func TestDeckKey_DiffersWhenDeckEdited(t *testing.T) {
	t.Parallel()
	original := config.DeckList{Maindeck: []config.CardQuantity{{Name: "Sol Ring", Quantity: 1}}}
	edited := config.DeckList{Maindeck: []config.CardQuantity{{Name: "Sol Ring", Quantity: 1}, {Name: "Forest", Quantity: 1}}}
	assert.NotEqual(t, DeckKey("Alice", original), DeckKey("Alice", edited))
}

func TestNewDeckStore_RequiresClient(t *testing.T) {
	t.Parallel()
	_, err := NewDeckStore(DeckStoreOptions{Database: "test"})
	assert.Error(t, err)
}

func TestNewDeckStore_RequiresDatabase(t *testing.T) {
	t.Parallel()
	_, err := NewDeckStore(DeckStoreOptions{Client: &mongodriver.Client{}})
	assert.Error(t, err)
}
