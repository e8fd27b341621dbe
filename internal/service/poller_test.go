package service

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"tweetgram/internal/models"
	"tweetgram/internal/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu       sync.Mutex
	pages    [][]models.InboundMessage
	err      error
	fetches  int
}

func (f *fakeSource) FetchInbound(_ context.Context, _ int) ([]models.InboundMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.pages) == 0 {
		return nil, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func (f *fakeSource) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

type memStore struct {
	mu        sync.Mutex
	processed map[string]bool
	markErr   error
}

func newMemStore() *memStore {
	return &memStore{processed: make(map[string]bool)}
}

func (s *memStore) IsProcessed(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed[id], nil
}

func (s *memStore) MarkProcessed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return s.markErr
	}
	s.processed[id] = true
	return nil
}

func (s *memStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processed), nil
}

func (s *memStore) Cleanup(_ context.Context) error { return nil }

func (s *memStore) Stats(_ context.Context) models.DedupStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.DedupStats{TotalProcessed: len(s.processed), Backend: "memory"}
}

type recordingForwarder struct {
	mu      sync.Mutex
	ids     []string
	failIDs map[string]bool
}

func (f *recordingForwarder) Forward(_ context.Context, msg models.InboundMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[msg.ID] {
		return stderrors.New("delivery failed")
	}
	f.ids = append(f.ids, msg.ID)
	return nil
}

func (f *recordingForwarder) forwarded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ids...)
}

func newTestCaller() *resilience.Caller {
	return resilience.NewCaller(models.RateLimitConfig{
		MaxRetries:    0,
		BackoffFactor: 2.0,
		CacheTTLSec:   60,
	}, testLogger(), nil)
}

func pollerConfig() models.InboundConfig {
	return models.InboundConfig{
		Enabled:         true,
		PollIntervalSec: 60,
		BackoffCapSec:   300,
		FetchPageSize:   50,
		FetchTimeoutSec: 5,
	}
}

func TestInboundPoller_FiltersProcessedMessages(t *testing.T) {
	source := &fakeSource{pages: [][]models.InboundMessage{{
		{ID: "1", Text: "old"},
		{ID: "2", Text: "new"},
	}}}
	store := newMemStore()
	require.NoError(t, store.MarkProcessed(context.Background(), "1"))
	fwd := &recordingForwarder{}

	poller := NewInboundPoller(source, newTestCaller(), store, fwd, pollerConfig(), testLogger(), nil)
	require.NoError(t, poller.checkNewMessages(context.Background()))

	assert.Equal(t, []string{"2"}, fwd.forwarded())

	processed, err := store.IsProcessed(context.Background(), "2")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestInboundPoller_ForwardsInFetchOrder(t *testing.T) {
	source := &fakeSource{pages: [][]models.InboundMessage{{
		{ID: "a"}, {ID: "b"}, {ID: "c"},
	}}}
	fwd := &recordingForwarder{}

	poller := NewInboundPoller(source, newTestCaller(), newMemStore(), fwd, pollerConfig(), testLogger(), nil)
	require.NoError(t, poller.checkNewMessages(context.Background()))

	assert.Equal(t, []string{"a", "b", "c"}, fwd.forwarded())
}

func TestInboundPoller_FailedForwardNotMarkedProcessed(t *testing.T) {
	source := &fakeSource{pages: [][]models.InboundMessage{{
		{ID: "bad"}, {ID: "good"},
	}}}
	store := newMemStore()
	fwd := &recordingForwarder{failIDs: map[string]bool{"bad": true}}

	poller := NewInboundPoller(source, newTestCaller(), store, fwd, pollerConfig(), testLogger(), nil)
	require.NoError(t, poller.checkNewMessages(context.Background()))

	// The poison message does not block the rest of the batch
	assert.Equal(t, []string{"good"}, fwd.forwarded())

	processed, err := store.IsProcessed(context.Background(), "bad")
	require.NoError(t, err)
	assert.False(t, processed, "a failed forward must stay unmarked so it can be retried")

	processed, err = store.IsProcessed(context.Background(), "good")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestInboundPoller_MarkFailureDoesNotAbortBatch(t *testing.T) {
	source := &fakeSource{pages: [][]models.InboundMessage{{
		{ID: "a"}, {ID: "b"},
	}}}
	store := newMemStore()
	store.markErr = stderrors.New("disk full")
	fwd := &recordingForwarder{}

	poller := NewInboundPoller(source, newTestCaller(), store, fwd, pollerConfig(), testLogger(), nil)
	require.NoError(t, poller.checkNewMessages(context.Background()))

	// Both messages still go out; only the durable record is missing
	assert.Equal(t, []string{"a", "b"}, fwd.forwarded())
}

func TestInboundPoller_SkipsMessagesWithoutID(t *testing.T) {
	source := &fakeSource{pages: [][]models.InboundMessage{{
		{ID: "", Text: "no id"}, {ID: "x"},
	}}}
	fwd := &recordingForwarder{}

	poller := NewInboundPoller(source, newTestCaller(), newMemStore(), fwd, pollerConfig(), testLogger(), nil)
	require.NoError(t, poller.checkNewMessages(context.Background()))

	assert.Equal(t, []string{"x"}, fwd.forwarded())
}

func TestInboundPoller_FetchErrorPropagates(t *testing.T) {
	source := &fakeSource{err: stderrors.New("network down")}
	fwd := &recordingForwarder{}

	poller := NewInboundPoller(source, newTestCaller(), newMemStore(), fwd, pollerConfig(), testLogger(), nil)
	err := poller.checkNewMessages(context.Background())

	require.Error(t, err)
	assert.Equal(t, 1, source.fetchCount())
	assert.Empty(t, fwd.forwarded())
}

func TestInboundPoller_StartStop(t *testing.T) {
	cfg := pollerConfig()
	cfg.PollIntervalSec = 3600 // first cycle runs immediately, then sleeps
	source := &fakeSource{pages: [][]models.InboundMessage{{{ID: "m1"}}}}
	fwd := &recordingForwarder{}

	poller := NewInboundPoller(source, newTestCaller(), newMemStore(), fwd, cfg, testLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller.Start(ctx)
	require.True(t, poller.IsRunning())

	// Starting again is a no-op
	poller.Start(ctx)

	require.Eventually(t, func() bool {
		return len(fwd.forwarded()) == 1
	}, time.Second, 10*time.Millisecond)

	poller.Stop()
	assert.False(t, poller.IsRunning())

	// Stopping again is harmless
	poller.Stop()
}

type slowSource struct {
	delay time.Duration
}

func (s *slowSource) FetchInbound(_ context.Context, _ int) ([]models.InboundMessage, error) {
	time.Sleep(s.delay)
	return nil, nil
}

func TestInboundPoller_StopDuringFetchReturnsPromptly(t *testing.T) {
	source := &slowSource{delay: 300 * time.Millisecond}
	poller := NewInboundPoller(source, newTestCaller(), newMemStore(), &recordingForwarder{}, pollerConfig(), testLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller.Start(ctx)
	time.Sleep(50 * time.Millisecond) // the first fetch is now in flight

	done := make(chan struct{})
	go func() {
		poller.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while a fetch was in flight")
	}
	assert.False(t, poller.IsRunning())
}

func TestInboundPoller_DisabledStartIsNoOp(t *testing.T) {
	cfg := pollerConfig()
	cfg.Enabled = false

	poller := NewInboundPoller(&fakeSource{}, newTestCaller(), newMemStore(), &recordingForwarder{}, cfg, testLogger(), nil)
	poller.Start(context.Background())

	assert.False(t, poller.IsRunning())
}

func TestInboundPoller_Status(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.MarkProcessed(context.Background(), "1"))

	cfg := pollerConfig()
	poller := NewInboundPoller(&fakeSource{}, newTestCaller(), store, &recordingForwarder{}, cfg, testLogger(), nil)

	status := poller.Status(context.Background())
	assert.False(t, status.Running)
	assert.True(t, status.Enabled)
	assert.Equal(t, 60, status.PollIntervalSec)
	assert.Equal(t, 1, status.ProcessedCount)
}
