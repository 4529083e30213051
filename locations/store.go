package locations

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Update is one accepted position report, as handed off by the realtime
// core for caching.
type Update struct {
	UserID  string
	RaceID  string
	Lat     float64
	Lng     float64
	Speed   float64
	Heading float64
	TS      int64
}

// Store is the persistence target for position reports. The production
// implementation is Redis; tests substitute an in-memory fake.
type Store interface {
	SaveLocation(ctx context.Context, upd Update) error
	Close() error
}

// RedisStore caches each user's last known position in Redis so that REST
// handlers can answer "where is everyone" without holding a socket open.
// Entries expire after a TTL; this is a cache, not a movement history.
type RedisStore struct {
	rdb       *goredis.Client
	ttl       time.Duration
	opTimeout time.Duration
}

// NewRedisStore connects to Redis. Positions expire after ttl.
func NewRedisStore(addr, password string, db int, ttl time.Duration) *RedisStore {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,

		MaxRetries:      1,
		MinRetryBackoff: 25 * time.Millisecond,
		MaxRetryBackoff: 250 * time.Millisecond,
	})

	return &RedisStore{
		rdb:       rdb,
		ttl:       ttl,
		opTimeout: 5 * time.Second,
	}
}

// Close releases the Redis connection pool.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// SaveLocation writes the user's last position hash and refreshes its TTL.
func (s *RedisStore) SaveLocation(ctx context.Context, upd Update) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.opTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opTimeout)
		defer cancel()
	}

	userKey := fmt.Sprintf("loc:user:%s", upd.UserID)

	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, userKey,
		"lat", upd.Lat,
		"lng", upd.Lng,
		"speed", upd.Speed,
		"heading", upd.Heading,
		"raceId", upd.RaceID,
		"ts", upd.TS,
	)
	if s.ttl > 0 {
		pipe.PExpire(ctx, userKey, s.ttl)
	}
	if upd.RaceID != "" {
		raceKey := fmt.Sprintf("loc:race:%s", upd.RaceID)
		pipe.GeoAdd(ctx, raceKey, &goredis.GeoLocation{
			Name:      upd.UserID,
			Longitude: upd.Lng,
			Latitude:  upd.Lat,
		})
		if s.ttl > 0 {
			pipe.PExpire(ctx, raceKey, s.ttl)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis SaveLocation failed: %w", err)
	}
	return nil
}
