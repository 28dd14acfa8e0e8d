package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/rxstock/internal/core"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestPublishCommit(t *testing.T) {
	w := &recordingWriter{}
	p := newPublisher(w, "inventory.import.committed", nil)

	evt := core.CommitEvent{
		SessionID:   uuid.New(),
		Mode:        "existing",
		FileName:    "stock.csv",
		Committed:   20,
		Failed:      5,
		CompletedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.PublishCommit(context.Background(), evt))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, evt.SessionID.String(), string(msg.Key))
	assert.Equal(t, EventType, header(msg, "event_type"))
	assert.Equal(t, "existing", header(msg, "mode"))
	assert.Equal(t, SchemaVersion, header(msg, "schema_version"))

	var got core.CommitEvent
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, evt, got)
}

func TestPublishCommit_StampsCompletion(t *testing.T) {
	w := &recordingWriter{}
	p := newPublisher(w, "t", nil)

	require.NoError(t, p.PublishCommit(context.Background(), core.CommitEvent{SessionID: uuid.New()}))

	var got core.CommitEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.False(t, got.CompletedAt.IsZero())
}

func TestPublishCommit_WriteError(t *testing.T) {
	w := &recordingWriter{err: errors.New("leader not available")}
	p := newPublisher(w, "inventory.import.committed", nil)

	err := p.PublishCommit(context.Background(), core.CommitEvent{SessionID: uuid.New()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inventory.import.committed")

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}
