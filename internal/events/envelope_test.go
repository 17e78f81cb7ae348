package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope_TaskReminder(t *testing.T) {
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.FixedZone("BRT", -3*3600))
	due := time.Date(2025, 3, 10, 17, 30, 0, 0, time.UTC)

	env := NewEnvelope(TypeTaskReminder, TaskReminder{
		TaskID:   "t1",
		Channels: []string{"whatsapp", "email"},
		DueDate:  due,
	}, at, "")

	body, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))

	assert.Equal(t, TypeTaskReminder, decoded["meta"]["type"])
	assert.Equal(t, Producer, decoded["meta"]["producer"])
	assert.Equal(t, "2025-03-10T12:00:00Z", decoded["meta"]["time"])
	assert.NotEmpty(t, decoded["meta"]["id"])
	assert.NotContains(t, decoded["meta"], "correlation_id")
	assert.Equal(t, "t1", decoded["data"]["task_id"])
	assert.Equal(t, []any{"whatsapp", "email"}, decoded["data"]["channels"])
}

func TestNewEnvelope_CorrelationID(t *testing.T) {
	env := NewEnvelope(TypeTaskReminder, nil, time.Now(), "req-9")
	require.NotNil(t, env.Meta.CorrelationID)
	assert.Equal(t, "req-9", *env.Meta.CorrelationID)

	other := NewEnvelope(TypeTaskReminder, nil, time.Now(), "")
	assert.NotEqual(t, env.Meta.ID, other.Meta.ID)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), TypeTaskReminder, Envelope{}))
	assert.NoError(t, p.Close())
}
