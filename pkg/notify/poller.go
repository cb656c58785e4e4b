package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Badge is the two-state notification indicator.
type Badge int

const (
	BadgeIdle Badge = iota
	BadgePending
)

// Fetcher returns the creation time of the newest event visible to the
// polling user. ok is false when the feed is empty.
type Fetcher interface {
	LatestEventTime(ctx context.Context) (latest time.Time, ok bool, err error)
}

// Poller keeps the badge state current by periodically comparing the newest
// visible event against the stored read position. Fetch and store errors
// leave the badge unchanged; the next tick retries.
type Poller struct {
	fetcher  Fetcher
	store    Store
	userID   uint
	panel    string
	interval time.Duration
	logger   zerolog.Logger

	mu    sync.RWMutex
	badge Badge
}

// DefaultPollInterval matches the panel refresh cadence.
const DefaultPollInterval = 30 * time.Second

// NewPoller constructs a poller for one user and panel.
func NewPoller(fetcher Fetcher, store Store, userID uint, panel string, interval time.Duration, logger zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	return &Poller{
		fetcher:  fetcher,
		store:    store,
		userID:   userID,
		panel:    panel,
		interval: interval,
		logger:   logger.With().Str("component", "notify_poller").Logger(),
	}
}

// Badge returns the current badge state.
func (p *Poller) Badge() Badge {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.badge
}

// Run polls until the context is cancelled. An immediate poll runs before
// the first tick.
func (p *Poller) Run(ctx context.Context) {
	p.Poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll performs one comparison cycle.
func (p *Poller) Poll(ctx context.Context) {
	latest, ok, err := p.fetcher.LatestEventTime(ctx)
	if err != nil {
		p.logger.Debug().Err(err).Msg("badge poll failed")
		return
	}

	state, err := p.store.Load(ctx, p.userID, p.panel)
	if err != nil {
		p.logger.Debug().Err(err).Msg("read state load failed")
		return
	}

	badge := BadgeIdle
	if ok && latest.After(state.LastCheck) {
		badge = BadgePending
	}

	p.mu.Lock()
	p.badge = badge
	p.mu.Unlock()
}

// Ack clears the badge and advances the stored read position to now. Called
// when the panel opens.
func (p *Poller) Ack(ctx context.Context) error {
	state, err := p.store.Load(ctx, p.userID, p.panel)
	if err != nil {
		return err
	}

	state.LastCheck = time.Now()
	if err := p.store.Save(ctx, p.userID, p.panel, state); err != nil {
		return err
	}

	p.mu.Lock()
	p.badge = BadgeIdle
	p.mu.Unlock()

	return nil
}

// APIClient fetches the newest visible event over the HTTP API.
type APIClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewAPIClient constructs an APIClient for the given API base URL and
// bearer token.
func NewAPIClient(baseURL, token string, client *http.Client) *APIClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &APIClient{baseURL: baseURL, token: token, client: client}
}

type latestEnvelope struct {
	Success bool `json:"success"`
	Data    *struct {
		CreatedAt time.Time `json:"created_at"`
	} `json:"data"`
}

// LatestEventTime calls GET /api/activity/latest.
func (c *APIClient) LatestEventTime(ctx context.Context) (time.Time, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/activity/latest", nil)
	if err != nil {
		return time.Time{}, false, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return time.Time{}, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return time.Time{}, false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var envelope latestEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return time.Time{}, false, err
	}

	if envelope.Data == nil {
		return time.Time{}, false, nil
	}

	return envelope.Data.CreatedAt, true, nil
}
