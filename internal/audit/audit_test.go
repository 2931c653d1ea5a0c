package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entrylog/internal/queue"
)

func TestRecorderPublishesRecord(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewInMemory(4)
	rec := NewRecorder(q)

	rec.Log(ctx, Record{
		AdminID:     "admin-1",
		ActionType:  ActionEdit,
		TargetTable: "users",
		TargetID:    "user-9",
		Description: "updated department",
		IPAddress:   "10.0.0.5",
	})

	messages, err := q.Consume(ctx)
	require.NoError(t, err)

	select {
	case msg := <-messages:
		assert.Equal(t, MessageType, msg.Type)
		var got Record
		require.NoError(t, json.Unmarshal(msg.Body, &got))
		assert.Equal(t, "admin-1", got.AdminID)
		assert.Equal(t, ActionEdit, got.ActionType)
		assert.Equal(t, "users", got.TargetTable)
		assert.False(t, got.Timestamp.IsZero(), "timestamp is stamped when omitted")
	case <-time.After(time.Second):
		t.Fatal("no audit message published")
	}
}

// brokenQueue fails every publish.
type brokenQueue struct{}

func (brokenQueue) Publish(ctx context.Context, msg queue.Message) error {
	return errors.New("queue unavailable")
}

func (brokenQueue) Consume(ctx context.Context) (<-chan queue.Message, error) {
	return nil, errors.New("queue unavailable")
}

func TestRecorderSwallowsPublishFailure(t *testing.T) {
	rec := NewRecorder(brokenQueue{})

	// Log must return normally; a broken audit pipeline cannot be
	// allowed to break the operation being audited.
	rec.Log(context.Background(), Record{AdminID: "admin-1", ActionType: ActionDelete})
}

func TestRecorderPreservesExplicitTimestamp(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewInMemory(1)
	rec := NewRecorder(q)

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	rec.Log(ctx, Record{AdminID: "admin-1", ActionType: ActionLogin, Timestamp: at})

	messages, err := q.Consume(ctx)
	require.NoError(t, err)
	msg := <-messages

	var got Record
	require.NoError(t, json.Unmarshal(msg.Body, &got))
	assert.True(t, at.Equal(got.Timestamp))
}
