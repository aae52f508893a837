package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/vitos/predictbet/internal/domain"
)

// ConfigCache resolves the combo and payout configuration from the keyed
// store with timed invalidation. When the store is unset or fails, the
// compiled-in defaults apply.
type ConfigCache struct {
	store domain.ConfigStore
	ttl   time.Duration

	mu        sync.Mutex
	combo     domain.ComboConfig
	payout    domain.PayoutConfig
	fetchedAt time.Time
}

func NewConfigCache(store domain.ConfigStore, ttl time.Duration) *ConfigCache {
	return &ConfigCache{
		store:  store,
		ttl:    ttl,
		combo:  domain.DefaultComboConfig(),
		payout: domain.DefaultPayoutConfig(),
	}
}

func (c *ConfigCache) Combo(ctx context.Context) domain.ComboConfig {
	c.refresh(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.combo
}

func (c *ConfigCache) Payout(ctx context.Context) domain.PayoutConfig {
	c.refresh(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payout
}

func (c *ConfigCache) refresh(ctx context.Context) {
	if c.store == nil {
		return
	}

	c.mu.Lock()
	fresh := time.Since(c.fetchedAt) < c.ttl
	c.mu.Unlock()
	if fresh {
		return
	}

	combo, err := c.store.CurrentComboConfig(ctx)
	if err != nil {
		combo = domain.DefaultComboConfig()
	}
	payout, err := c.store.CurrentPayoutConfig(ctx)
	if err != nil {
		payout = domain.DefaultPayoutConfig()
	}

	c.mu.Lock()
	c.combo = combo
	c.payout = payout
	c.fetchedAt = time.Now()
	c.mu.Unlock()
}
