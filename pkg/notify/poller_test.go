package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tmshq/tms-go-api/pkg/notify"
)

type stubFetcher struct {
	mu     sync.Mutex
	latest time.Time
	ok     bool
	err    error
}

func (f *stubFetcher) LatestEventTime(context.Context) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest, f.ok, f.err
}

func (f *stubFetcher) set(latest time.Time, ok bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest, f.ok, f.err = latest, ok, err
}

func newTestPoller(fetcher notify.Fetcher, store notify.Store) *notify.Poller {
	return notify.NewPoller(fetcher, store, 1, "bell", time.Minute, zerolog.New(io.Discard))
}

func TestPollRaisesBadgeOnNewerEvent(t *testing.T) {
	store := notify.NewMemoryStore()
	fetcher := &stubFetcher{}
	poller := newTestPoller(fetcher, store)
	ctx := context.Background()

	// Empty feed keeps the badge idle.
	poller.Poll(ctx)
	require.Equal(t, notify.BadgeIdle, poller.Badge())

	fetcher.set(time.Now().Add(time.Minute), true, nil)
	poller.Poll(ctx)
	require.Equal(t, notify.BadgePending, poller.Badge())
}

func TestPollIgnoresEventsBeforeLastCheck(t *testing.T) {
	store := notify.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, 1, "bell", notify.ReadState{LastCheck: time.Now()}))

	fetcher := &stubFetcher{}
	fetcher.set(time.Now().Add(-time.Hour), true, nil)
	poller := newTestPoller(fetcher, store)

	poller.Poll(ctx)
	require.Equal(t, notify.BadgeIdle, poller.Badge())
}

func TestPollFailuresLeaveBadgeUnchanged(t *testing.T) {
	store := notify.NewMemoryStore()
	fetcher := &stubFetcher{}
	poller := newTestPoller(fetcher, store)
	ctx := context.Background()

	fetcher.set(time.Now().Add(time.Minute), true, nil)
	poller.Poll(ctx)
	require.Equal(t, notify.BadgePending, poller.Badge())

	// A failing poll neither clears nor raises the badge.
	fetcher.set(time.Time{}, false, errors.New("gateway timeout"))
	poller.Poll(ctx)
	require.Equal(t, notify.BadgePending, poller.Badge())
}

func TestAckClearsBadgeAndAdvancesPosition(t *testing.T) {
	store := notify.NewMemoryStore()
	fetcher := &stubFetcher{}
	poller := newTestPoller(fetcher, store)
	ctx := context.Background()

	eventTime := time.Now().Add(-time.Minute)
	fetcher.set(eventTime, true, nil)
	poller.Poll(ctx)
	require.Equal(t, notify.BadgePending, poller.Badge())

	require.NoError(t, poller.Ack(ctx))
	require.Equal(t, notify.BadgeIdle, poller.Badge())

	// The same event no longer raises the badge after the ack.
	poller.Poll(ctx)
	require.Equal(t, notify.BadgeIdle, poller.Badge())

	state, err := store.Load(ctx, 1, "bell")
	require.NoError(t, err)
	require.True(t, state.LastCheck.After(eventTime))
}

func TestAPIClientLatestEventTime(t *testing.T) {
	eventTime := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/activity/latest", r.URL.Path)
		require.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"message": "latest activity",
			"data":    map[string]interface{}{"created_at": eventTime},
		}))
	}))
	defer server.Close()

	client := notify.NewAPIClient(server.URL, "token-123", nil)

	latest, ok, err := client.LatestEventTime(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, latest.Equal(eventTime))
}

func TestAPIClientEmptyFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"message":"latest activity","data":null}`))
	}))
	defer server.Close()

	client := notify.NewAPIClient(server.URL, "token-123", nil)

	_, ok, err := client.LatestEventTime(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAPIClientErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := notify.NewAPIClient(server.URL, "token-123", nil)

	_, _, err := client.LatestEventTime(context.Background())
	require.Error(t, err)
}
