// Package redis keeps the latest report of every site in Redis so other
// services, and this one after a restart, can read the last known state.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/couchcryptid/coastal-erosion-etl/internal/domain"
)

const (
	siteKeyPrefix = "coastwatch:site:"
	sitesKey      = "coastwatch:sites"
)

// SiteKey is the key holding the latest report JSON of a site.
func SiteKey(site string) string { return siteKeyPrefix + site }

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	// TTL expires stored reports. Zero keeps them forever.
	TTL time.Duration
}

// Store implements pipeline.ReportLoader over Redis.
type Store struct {
	client goredis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: 10,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", opts.Addr, err)
	}
	return NewStore(client, opts.TTL, logger), nil
}

// NewStore wraps an existing client.
func NewStore(client goredis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Store {
	return &Store{client: client, ttl: ttl, logger: logger}
}

// LoadBatch stores every attempted report and records its site in the site
// set, all in one transaction.
func (s *Store) LoadBatch(ctx context.Context, reports []domain.SiteReport) error {
	type entry struct {
		site string
		data []byte
	}
	entries := make([]entry, 0, len(reports))
	for _, r := range reports {
		if !r.Attempted() {
			continue
		}
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("serialize report %s: %w", r.Site, err)
		}
		entries = append(entries, entry{site: r.Site, data: data})
	}
	if len(entries) == 0 {
		return nil
	}

	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, e := range entries {
			pipe.Set(ctx, SiteKey(e.site), e.data, s.ttl)
			pipe.SAdd(ctx, sitesKey, e.site)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store reports: %w", err)
	}
	s.logger.Debug("reports stored", "count", len(entries))
	return nil
}

// Get returns the stored report of a site. ok is false when none is stored
// or it has expired.
func (s *Store) Get(ctx context.Context, site string) (domain.SiteReport, bool, error) {
	data, err := s.client.Get(ctx, SiteKey(site)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.SiteReport{}, false, nil
	}
	if err != nil {
		return domain.SiteReport{}, false, fmt.Errorf("get report %s: %w", site, err)
	}
	var r domain.SiteReport
	if err := json.Unmarshal(data, &r); err != nil {
		return domain.SiteReport{}, false, fmt.Errorf("decode report %s: %w", site, err)
	}
	return r, true, nil
}

// All returns every stored report sorted by site. Sites whose report expired
// are skipped.
func (s *Store) All(ctx context.Context) ([]domain.SiteReport, error) {
	sites, err := s.client.SMembers(ctx, sitesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	slices.Sort(sites)

	reports := make([]domain.SiteReport, 0, len(sites))
	for _, site := range sites {
		r, ok, err := s.Get(ctx, site)
		if err != nil {
			return nil, err
		}
		if ok {
			reports = append(reports, r)
		}
	}
	return reports, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
