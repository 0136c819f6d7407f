package stream

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/canonical"
)

type appendCall struct {
	key     string
	batchID string
	count   int
	maxLen  int
}

type fakeBackend struct {
	calls    []appendCall
	failKeys map[string]bool
}

func (b *fakeBackend) AppendBatch(_ context.Context, key, batchID string, events []canonical.Event, maxLen int) error {
	if b.failKeys[key] {
		return errors.New("stream unavailable")
	}
	b.calls = append(b.calls, appendCall{key: key, batchID: batchID, count: len(events), maxLen: maxLen})
	return nil
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("batch-%d", n)
	}
}

func makeEvents(tenant, source string, n int) []canonical.Event {
	events := make([]canonical.Event, n)
	for i := range events {
		id := fmt.Sprintf("c-%d", i)
		events[i] = canonical.Event{
			Meta: canonical.Meta{
				SchemaVersion: canonical.SchemaVersion,
				TenantID:      tenant,
				TraceID:       "trace-" + id,
				EmittedAt:     time.Now(),
			},
			Source: canonical.Source{System: source, ConnectionID: source + "-1"},
			Entity: canonical.KindContact,
			Op:     canonical.OpUpsert,
			Data:   map[string]any{"id": id},
		}
	}
	return events
}

func TestPublishChunksIntoBatches(t *testing.T) {
	backend := &fakeBackend{}
	p := NewPublisher(backend, WithBatchIDFunc(sequentialIDs()))

	result, err := p.Publish(context.Background(), makeEvents("acme", "crm", 250))
	require.NoError(t, err)

	assert.Equal(t, 2, result.BatchesPublished)
	assert.Equal(t, 250, result.TotalRecords)
	assert.Equal(t, []string{"batch-1", "batch-2"}, result.BatchIDs)
	assert.Empty(t, result.Errors)

	require.Len(t, backend.calls, 2)
	assert.Equal(t, 200, backend.calls[0].count)
	assert.Equal(t, 50, backend.calls[1].count)
	assert.Equal(t, "acme:crm", backend.calls[0].key)
	assert.Equal(t, DefaultMaxStreamLength, backend.calls[0].maxLen)
}

func TestPublishGroupsByTenantAndSource(t *testing.T) {
	backend := &fakeBackend{}
	p := NewPublisher(backend, WithBatchIDFunc(sequentialIDs()))

	events := append(makeEvents("acme", "crm", 3), makeEvents("acme", "erp", 2)...)
	events = append(events, makeEvents("globex", "crm", 1)...)

	result, err := p.Publish(context.Background(), events)
	require.NoError(t, err)

	assert.Equal(t, 3, result.BatchesPublished)
	assert.Equal(t, 6, result.TotalRecords)

	require.Len(t, backend.calls, 3)
	assert.Equal(t, "acme:crm", backend.calls[0].key)
	assert.Equal(t, "acme:erp", backend.calls[1].key)
	assert.Equal(t, "globex:crm", backend.calls[2].key)
}

func TestPublishFailedBatchIsIsolated(t *testing.T) {
	backend := &fakeBackend{failKeys: map[string]bool{"acme:erp": true}}
	p := NewPublisher(backend, WithBatchIDFunc(sequentialIDs()))

	events := append(makeEvents("acme", "crm", 2), makeEvents("acme", "erp", 2)...)
	events = append(events, makeEvents("globex", "crm", 2)...)

	result, err := p.Publish(context.Background(), events)
	require.NoError(t, err, "batch failures surface in the result, not the error")

	assert.Equal(t, 2, result.BatchesPublished)
	assert.Equal(t, 4, result.TotalRecords)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "stream unavailable")

	// The failing group does not stop the one after it.
	require.Len(t, backend.calls, 2)
	assert.Equal(t, "globex:crm", backend.calls[1].key)
}

func TestPublishCustomBatchSize(t *testing.T) {
	backend := &fakeBackend{}
	p := NewPublisher(backend, WithBatchSize(2), WithMaxStreamLength(10), WithBatchIDFunc(sequentialIDs()))

	result, err := p.Publish(context.Background(), makeEvents("acme", "crm", 5))
	require.NoError(t, err)

	assert.Equal(t, 3, result.BatchesPublished)
	require.Len(t, backend.calls, 3)
	assert.Equal(t, []int{2, 2, 1}, []int{backend.calls[0].count, backend.calls[1].count, backend.calls[2].count})
	assert.Equal(t, 10, backend.calls[0].maxLen)
}

func TestPublishEmpty(t *testing.T) {
	backend := &fakeBackend{}
	p := NewPublisher(backend)

	result, err := p.Publish(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, result.BatchesPublished)
	assert.Empty(t, backend.calls)
}
