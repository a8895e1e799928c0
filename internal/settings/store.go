package settings

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rpi-gardener/greenhouse/internal/database"
)

const (
	redisVersionKey = "rpi:settings:version"
	defaultTTL      = 30 * time.Second
)

// Store implements the freshness protocol of spec.md §4.2: a broker-held
// version counter lets every process know, on each GetAll, whether its local
// cache is still valid.
type Store struct {
	db    *database.DB
	redis *redis.Client
	log   zerolog.Logger
	ttl   time.Duration

	mu           sync.Mutex
	cache        map[Key]string
	cacheVersion int64
	cacheTime    time.Time
	haveCache    bool
}

// New wires a Store to db for values and to a Redis client (addr is a
// redis:// URL) for the version counter. Redis connectivity is not verified
// here — a broker outage is a normal, handled runtime condition (spec.md
// §4.2 "Failure semantics"), not a construction-time error.
func New(db *database.DB, redisAddr string, log zerolog.Logger) (*Store, error) {
	opts, err := redis.ParseURL(redisAddr)
	if err != nil {
		return nil, err
	}
	return &Store{
		db:    db,
		redis: redis.NewClient(opts),
		log:   log.With().Str("component", "settings").Logger(),
		ttl:   defaultTTL,
	}, nil
}

// Close releases the Redis client.
func (s *Store) Close() error {
	return s.redis.Close()
}

// version returns the current broker-held version, and false if the broker
// is unreachable (spec.md §4.2 step 1: "If broker is unreachable, return
// null version — do not trust cache").
func (s *Store) version(ctx context.Context) (int64, bool) {
	v, err := s.redis.Get(ctx, redisVersionKey).Int64()
	if err == redis.Nil {
		return 0, true
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("settings version broker unreachable, bypassing cache")
		return 0, false
	}
	return v, true
}

// GetAll returns every settings row, consulting the local cache first when
// the broker confirms it is still current (spec.md §4.2 step 1).
func (s *Store) GetAll(ctx context.Context) (map[Key]string, error) {
	version, ok := s.version(ctx)

	s.mu.Lock()
	if ok && s.haveCache && s.cacheVersion == version && time.Since(s.cacheTime) < s.ttl {
		cached := cloneMap(s.cache)
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	result := make(map[Key]string)
	err := s.db.FetchAll(ctx, "SELECT key, value FROM settings", nil, func(rows *sql.Rows) error {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		result[Key(k)] = v
		return nil
	})
	if err != nil {
		s.invalidate()
		return nil, err
	}

	if ok {
		s.store(result, version)
	}
	return result, nil
}

// SetBatch validates, then atomically bumps the version before writing
// (spec.md §4.2 step 2 and "Why bump first?"): a crash after commit but
// before bump would leave other processes serving stale cache forever.
func (s *Store) SetBatch(ctx context.Context, updates map[Key]string) (map[Key]string, error) {
	for k := range updates {
		if err := Validate(k); err != nil {
			return nil, err
		}
	}

	newVersion, verErr := s.redis.Incr(ctx, redisVersionKey).Result()
	if verErr != nil {
		s.log.Warn().Err(verErr).Msg("failed to increment settings version in broker")
	}

	result := make(map[Key]string)
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		for k, v := range updates {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO settings (key, value, updated_at)
				VALUES (?, ?, ?)
				ON CONFLICT(key) DO UPDATE SET
					value = excluded.value,
					updated_at = excluded.updated_at`,
				string(k), v, now); err != nil {
				return err
			}
		}

		rows, err := tx.QueryContext(ctx, "SELECT key, value FROM settings")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var k, v string
			if err := rows.Scan(&k, &v); err != nil {
				return err
			}
			result[Key(k)] = v
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	if verErr == nil {
		s.store(result, newVersion)
	}
	return result, nil
}

func (s *Store) store(values map[Key]string, version int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = cloneMap(values)
	s.cacheVersion = version
	s.cacheTime = time.Now()
	s.haveCache = true
}

func (s *Store) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = nil
	s.haveCache = false
	s.cacheVersion = 0
}

func cloneMap(m map[Key]string) map[Key]string {
	out := make(map[Key]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
