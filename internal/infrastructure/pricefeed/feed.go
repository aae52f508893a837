package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/vitos/predictbet/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// staleAfter: cached values older than this fall through to the persisted
// snapshot series.
const staleAfter = 30 * time.Second

// Feed polls an index-price HTTP endpoint for a set of categories, keeps
// the latest value per category in memory and persists every sample as a
// snapshot. Latest serves the monitor and manual closes.
type Feed struct {
	endpoint   string
	categories []string
	client     *http.Client
	limiter    *rate.Limiter
	snapshots  domain.SnapshotRepository
	logger     *zap.Logger

	mu         sync.RWMutex
	lastPrices map[string]domain.PriceSnapshot
}

func NewFeed(endpoint string, categories []string, rps float64, snapshots domain.SnapshotRepository, logger *zap.Logger) *Feed {
	if rps <= 0 {
		rps = 5
	}
	return &Feed{
		endpoint:   endpoint,
		categories: categories,
		client:     &http.Client{Timeout: 5 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		snapshots:  snapshots,
		logger:     logger,
		lastPrices: make(map[string]domain.PriceSnapshot),
	}
}

func (f *Feed) Start(ctx context.Context, interval time.Duration) {
	f.logger.Info("starting price feed", zap.Duration("interval", interval), zap.Strings("categories", f.categories))

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		f.poll(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				f.poll(ctx)
			}
		}
	}()
}

func (f *Feed) poll(ctx context.Context) {
	for _, category := range f.categories {
		if err := f.limiter.Wait(ctx); err != nil {
			return
		}

		snap, err := f.fetch(ctx, category)
		if err != nil {
			f.logger.Warn("price fetch failed", zap.String("category", category), zap.Error(err))
			continue
		}

		f.mu.Lock()
		f.lastPrices[category] = *snap
		f.mu.Unlock()

		if f.snapshots != nil {
			if err := f.snapshots.SavePriceSnapshot(ctx, snap); err != nil {
				f.logger.Warn("failed to persist price snapshot", zap.String("category", category), zap.Error(err))
			}
		}
	}
}

type priceResponse struct {
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
}

func (f *Feed) fetch(ctx context.Context, category string) (*domain.PriceSnapshot, error) {
	u := fmt.Sprintf("%s/price?category=%s", f.endpoint, url.QueryEscape(category))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: price endpoint returned %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var pr priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode price response: %w", err)
	}

	ts := time.Now()
	if pr.Timestamp > 0 {
		ts = time.UnixMilli(pr.Timestamp)
	}
	return &domain.PriceSnapshot{Category: category, Value: pr.Value, Timestamp: ts}, nil
}

// Latest returns the most recent known value for a category: the in-memory
// cache when fresh, otherwise the persisted series.
func (f *Feed) Latest(ctx context.Context, category string) (*domain.PriceSnapshot, error) {
	f.mu.RLock()
	snap, ok := f.lastPrices[category]
	f.mu.RUnlock()

	if ok && time.Since(snap.Timestamp) < staleAfter {
		s := snap
		return &s, nil
	}

	if f.snapshots != nil {
		stored, err := f.snapshots.LatestPriceSnapshot(ctx, category)
		if err == nil {
			return stored, nil
		}
	}

	if ok {
		// Stale is better than nothing for a manual close.
		s := snap
		return &s, nil
	}
	return nil, fmt.Errorf("%w: no price for category %s", domain.ErrUpstreamUnavailable, category)
}
