package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"blockforge/api/internal/notify"
)

// PostgresStore implements Adapter on a single kv_records table with JSONB
// values. It exists for deployments that already run Postgres and do not
// want a Redis instance for this service alone.
type PostgresStore struct {
	pool     *pgxpool.Pool
	prefix   string
	log      *zap.Logger
	notifier notify.Notifier
}

func NewPostgresStore(databaseURL, prefix string, log *zap.Logger, notifier notify.Notifier) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS kv_records (
			k TEXT PRIMARY KEY,
			v JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure kv_records table: %w", err)
	}

	if log == nil {
		log = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &PostgresStore{pool: pool, prefix: prefix, log: log, notifier: notifier}, nil
}

func (s *PostgresStore) key(key string) string {
	return s.prefix + key
}

func (s *PostgresStore) Save(ctx context.Context, key string, value any) bool {
	payload, err := json.Marshal(value)
	if err != nil {
		s.log.Error("marshal record", zap.String("key", key), zap.Error(err))
		s.notifier.Notify(notify.LevelError, msgSaveFailed)
		return false
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO kv_records (k, v, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v, updated_at = now()`,
		s.key(key), payload)
	if err != nil {
		s.log.Error("save record", zap.String("key", key), zap.Error(err))
		var pgErr *pgconn.PgError
		// 53100 is disk_full.
		if errors.As(err, &pgErr) && pgErr.Code == "53100" {
			s.notifier.Notify(notify.LevelError, msgStorageFull)
		} else {
			s.notifier.Notify(notify.LevelError, msgSaveFailed)
		}
		return false
	}
	return true
}

func (s *PostgresStore) Load(ctx context.Context, key string, dest any) bool {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT v FROM kv_records WHERE k = $1`, s.key(key)).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return false
	}
	if err != nil {
		s.log.Error("load record", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		s.log.Error("corrupt record, treating as absent", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *PostgresStore) Remove(ctx context.Context, key string) {
	if _, err := s.pool.Exec(ctx, `DELETE FROM kv_records WHERE k = $1`, s.key(key)); err != nil {
		s.log.Error("remove record", zap.String("key", key), zap.Error(err))
	}
}

func (s *PostgresStore) ListKeys(ctx context.Context) []string {
	keys := []string{}
	rows, err := s.pool.Query(ctx, `SELECT k FROM kv_records WHERE k LIKE $1 || '%'`, s.prefix)
	if err != nil {
		s.log.Error("list keys", zap.Error(err))
		return keys
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			s.log.Error("scan key", zap.Error(err))
			continue
		}
		keys = append(keys, k[len(s.prefix):])
	}
	if err := rows.Err(); err != nil {
		s.log.Error("list keys", zap.Error(err))
	}
	return keys
}

func (s *PostgresStore) ClearAll(ctx context.Context) {
	if _, err := s.pool.Exec(ctx, `DELETE FROM kv_records WHERE k LIKE $1 || '%'`, s.prefix); err != nil {
		s.log.Error("clear records", zap.Error(err))
	}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
