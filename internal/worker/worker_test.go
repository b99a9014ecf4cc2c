package worker

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalogsync/internal/events"
	"catalogsync/internal/logger"
	"catalogsync/internal/syncer"
)

type fakeReader struct {
	messages []kafka.Message
	closed   bool
}

// ReadMessage hands out queued messages, then reports a closed reader.
func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}
	if len(r.messages) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

type runRecorder struct {
	modes []syncer.Mode
	err   error
}

func (r *runRecorder) run(_ context.Context, mode syncer.Mode) (*syncer.Summary, error) {
	r.modes = append(r.modes, mode)
	return &syncer.Summary{Mode: mode}, r.err
}

func message(t *testing.T, event events.Event) kafka.Message {
	t.Helper()
	msg, err := events.NewMessage(event)
	require.NoError(t, err)
	return msg
}

func TestWorker_RunsRequestedSyncs(t *testing.T) {
	runs := &runRecorder{}
	reader := &fakeReader{messages: []kafka.Message{
		message(t, events.Event{Type: events.TypeSyncRequested}),
		message(t, events.Event{Type: events.TypeProductCreated, Number: "ABC-100"}),
		{Value: []byte("not json")},
		message(t, events.Event{Type: events.TypeSyncRequested, Data: map[string]string{"mode": "skip-existing"}}),
		message(t, events.Event{Type: events.TypeSyncRequested, Data: map[string]string{"mode": "mirror"}}),
	}}
	w := newWorker(reader, runs.run, logger.Nop())

	err := w.Start(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []syncer.Mode{"", syncer.ModeSkipExisting}, runs.modes)

	require.NoError(t, w.Stop())
	assert.True(t, reader.closed)
}

func TestWorker_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := newWorker(&fakeReader{}, (&runRecorder{}).run, logger.Nop())
	assert.NoError(t, w.Start(ctx))
}

func TestWorker_HandleReportsRunFailure(t *testing.T) {
	runs := &runRecorder{err: errors.New("source down")}
	w := newWorker(&fakeReader{}, runs.run, logger.Nop())

	err := w.Handle(context.Background(), message(t, events.Event{Type: events.TypeSyncRequested}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source down")
}

func TestWorker_HandleRejectsUnknownMode(t *testing.T) {
	runs := &runRecorder{}
	w := newWorker(&fakeReader{}, runs.run, logger.Nop())

	err := w.Handle(context.Background(), message(t, events.Event{Type: events.TypeSyncRequested, Data: map[string]string{"mode": "mirror"}}))
	assert.ErrorIs(t, err, syncer.ErrInvalidMode)
	assert.Empty(t, runs.modes)
}
