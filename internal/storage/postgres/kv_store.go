package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// KVStoreFactory хранит снимки корзин в таблице session_kv.
// Чтение и запись обновляют updated_at, по нему чистятся брошенные сессии.
type KVStoreFactory struct {
	store *Store
}

// NewKVStoreFactory создаёт фабрику хранилищ сессий.
func NewKVStoreFactory(store *Store) *KVStoreFactory {
	return &KVStoreFactory{store: store}
}

// ForSession возвращает хранилище одной сессии.
func (f *KVStoreFactory) ForSession(sessionID string) domain.KVStore {
	return &sessionKV{db: f.store.DB(), sessionID: sessionID}
}

// DeleteStale удаляет до limit записей, не менявшихся с before.
func (f *KVStoreFactory) DeleteStale(ctx context.Context, before time.Time, limit int) (int, error) {
	if limit <= 0 {
		return 0, nil
	}
	res, err := f.store.DB().ExecContext(ctx, `
		DELETE FROM session_kv
		WHERE ctid IN (
			SELECT ctid FROM session_kv
			WHERE updated_at <= $1
			LIMIT $2
		)
	`, before, limit)
	if err != nil {
		return 0, fmt.Errorf("delete stale session keys: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale session keys rows affected: %w", err)
	}
	return int(affected), nil
}

type sessionKV struct {
	db        *sql.DB
	sessionID string
}

func (s *sessionKV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `
		UPDATE session_kv
		SET updated_at = NOW()
		WHERE session_id = $1 AND key = $2
		RETURNING value
	`, s.sessionID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session key %q: %w", key, err)
	}
	return value, nil
}

func (s *sessionKV) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO session_kv (session_id, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (session_id, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, s.sessionID, key, value); err != nil {
		return fmt.Errorf("set session key %q: %w", key, err)
	}
	return nil
}

func (s *sessionKV) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM session_kv WHERE session_id = $1 AND key = $2
	`, s.sessionID, key); err != nil {
		return fmt.Errorf("delete session key %q: %w", key, err)
	}
	return nil
}

var (
	_ domain.KVStoreFactory = (*KVStoreFactory)(nil)
	_ domain.KVStore        = (*sessionKV)(nil)
)
