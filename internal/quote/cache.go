package quote

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedProvider caches quotes in redis with a TTL. Cache misses and
// unreadable payloads fall through to the inner provider; a failed cache
// write is logged and the fresh quote is still returned.
type CachedProvider struct {
	inner Provider
	rdb   *redis.Client
	ttl   time.Duration
	log   *slog.Logger
}

func NewCachedProvider(inner Provider, rdb *redis.Client, ttl time.Duration, log *slog.Logger) *CachedProvider {
	return &CachedProvider{
		inner: inner,
		rdb:   rdb,
		ttl:   ttl,
		log:   log,
	}
}

func (p *CachedProvider) Lookup(ctx context.Context, symbol string) (*Quote, error) {
	key := "quote:" + strings.ToUpper(strings.TrimSpace(symbol))

	if payload, err := p.rdb.Get(ctx, key).Result(); err == nil {
		var q Quote
		if err := json.Unmarshal([]byte(payload), &q); err == nil {
			return &q, nil
		}
	}

	q, err := p.inner.Lookup(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(q); err == nil {
		if err := p.rdb.Set(ctx, key, payload, p.ttl).Err(); err != nil {
			p.log.Warn("failed to cache quote", "symbol", q.Symbol, "error", err)
		}
	}

	return q, nil
}
