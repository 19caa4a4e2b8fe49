package eventx

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAssignsIDAndTimestamp(t *testing.T) {
	ev := New(TypeTokenReused, map[string]interface{}{"principal_id": "p-1"})

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, TypeTokenReused, ev.Type)
	assert.False(t, ev.OccurredAt.IsZero())

	other := New(TypeTokenReused, nil)
	assert.NotEqual(t, ev.ID, other.ID)
}

func TestRedisPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	sub := client.Subscribe(context.Background(), "events.security")
	defer sub.Close()
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	pub := NewRedisPublisher(client, "events.security")
	require.NoError(t, pub.Publish(context.Background(), New(TypeLoginSucceeded, map[string]interface{}{"tenant_id": "org-1"})))

	msg, err := sub.ReceiveMessage(context.Background())
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, TypeLoginSucceeded, got.Type)
	assert.Equal(t, "org-1", got.Payload["tenant_id"])
}
