package mongo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
)

func TestNewEventLogStore_RequiresClient(t *testing.T) {
	t.Parallel()
	_, err := NewEventLogStore(context.Background(), EventLogStoreOptions{Database: "test"})
	assert.Error(t, err)
}

func TestNewEventLogStore_RequiresDatabase(t *testing.T) {
	t.Parallel()
	_, err := NewEventLogStore(context.Background(), EventLogStoreOptions{Client: &mongodriver.Client{}})
	assert.Error(t, err)
}
