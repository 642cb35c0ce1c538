package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/GregorStocks/commander-bench-sub000/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResponder struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeResponder) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeResponder) SendUUID(ctx context.Context, gameID, value string) error {
	f.record("uuid:" + value)
	return nil
}
func (f *fakeResponder) SendBool(ctx context.Context, gameID string, value bool) error {
	f.record("bool")
	return nil
}
func (f *fakeResponder) SendString(ctx context.Context, gameID, value string) error {
	f.record("string:" + value)
	return nil
}
func (f *fakeResponder) SendInt(ctx context.Context, gameID string, value int) error {
	f.record("int")
	return nil
}
func (f *fakeResponder) SendManaType(ctx context.Context, gameID, playerID string, value engine.ManaType) error {
	f.record("mana:" + string(value))
	return nil
}
func (f *fakeResponder) PlayerAction(ctx context.Context, gameID, action string) error { return nil }
func (f *fakeResponder) SendChat(ctx context.Context, gameID, message string) error    { return nil }
func (f *fakeResponder) JoinChat(ctx context.Context, gameID string) error             { return nil }

func (f *fakeResponder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestSendTracksResponse(t *testing.T) {
	t.Parallel()
	fr := &fakeResponder{}
	d := New(fr, nil, nil)
	require.NoError(t, d.SendUUID(context.Background(), "g1", "obj-1"))

	tracked, ok := d.TrackedFor("g1")
	require.True(t, ok)
	assert.Equal(t, "obj-1", tracked.UUID)
	assert.False(t, tracked.Retried)
}

func TestMaybeRetryResendsOnceAfterWindow(t *testing.T) {
	t.Parallel()
	fr := &fakeResponder{}
	d := New(fr, nil, nil)
	require.NoError(t, d.SendBool(context.Background(), "g1", true))

	sentAt := time.Now().Add(-30 * time.Second)
	d.mu.Lock()
	d.tracked["g1"].SentAt = sentAt
	d.mu.Unlock()

	retried, err := d.MaybeRetry(context.Background(), "g1", time.Now(), DefaultRetryWindow)
	require.NoError(t, err)
	assert.True(t, retried)
	assert.Equal(t, 2, fr.count())

	retried, err = d.MaybeRetry(context.Background(), "g1", time.Now(), DefaultRetryWindow)
	require.NoError(t, err)
	assert.False(t, retried)
	assert.Equal(t, 2, fr.count())
}

func TestMaybeRetryNoopBeforeWindow(t *testing.T) {
	t.Parallel()
	fr := &fakeResponder{}
	d := New(fr, nil, nil)
	require.NoError(t, d.SendInt(context.Background(), "g1", 3))

	retried, err := d.MaybeRetry(context.Background(), "g1", time.Now(), DefaultRetryWindow)
	require.NoError(t, err)
	assert.False(t, retried)
	assert.Equal(t, 1, fr.count())
}

func TestClearForActionableCallbackPreventsRetry(t *testing.T) {
	t.Parallel()
	fr := &fakeResponder{}
	d := New(fr, nil, nil)
	require.NoError(t, d.SendInt(context.Background(), "g1", 3))
	d.ClearForActionableCallback("g1")

	retried, err := d.MaybeRetry(context.Background(), "g1", time.Now().Add(30*time.Second), DefaultRetryWindow)
	require.NoError(t, err)
	assert.False(t, retried)
}
