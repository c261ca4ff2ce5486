package roles

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const partnerDomainsKey = "roles:partner-domains"

// CachedDirectory caches the upstream domain snapshot in Redis so every
// resolver instance shares one snapshot and the partner API is hit at most
// once per TTL. Cache faults fall through to the upstream directory.
type CachedDirectory struct {
	upstream Directory
	client   *redis.Client
	ttl      time.Duration
}

func NewCachedDirectory(upstream Directory, client *redis.Client, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{upstream: upstream, client: client, ttl: ttl}
}

func (d *CachedDirectory) PartnerDomains(ctx context.Context) ([]string, error) {
	cached, err := d.client.Get(ctx, partnerDomainsKey).Bytes()
	if err == nil {
		var domains []string
		if err := json.Unmarshal(cached, &domains); err == nil {
			return domains, nil
		}
		// Corrupt cache entry; refetch and overwrite.
	}
	// A miss and a cache fault read the same: go to the upstream.

	domains, err := d.upstream.PartnerDomains(ctx)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(domains)
	if err == nil {
		// Best effort; a failed write just means a refetch next call.
		d.client.Set(ctx, partnerDomainsKey, encoded, d.ttl)
	}
	return domains, nil
}
