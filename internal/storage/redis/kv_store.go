// Package redis хранит снимки корзины в Redis с TTL, который продлевается
// при каждом чтении и записи.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	// DefaultTTL — сколько живёт брошенная корзина.
	DefaultTTL = 7 * 24 * time.Hour
	// DefaultPrefix — префикс ключей сессий.
	DefaultPrefix = "storefront:session"
)

// Config задаёт подключение к Redis.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

// KVStoreFactory выдаёт хранилища сессий поверх одного клиента Redis.
type KVStoreFactory struct {
	client goredis.UniversalClient
	ttl    time.Duration
	prefix string
}

// NewKVStoreFactory создаёт фабрику поверх готового клиента.
func NewKVStoreFactory(client goredis.UniversalClient, ttl time.Duration, prefix string) *KVStoreFactory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &KVStoreFactory{client: client, ttl: ttl, prefix: prefix}
}

// Open подключается к Redis и проверяет соединение.
func Open(ctx context.Context, cfg Config) (*KVStoreFactory, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewKVStoreFactory(client, cfg.TTL, cfg.Prefix), nil
}

// ForSession возвращает хранилище одной сессии.
func (f *KVStoreFactory) ForSession(sessionID string) domain.KVStore {
	return &sessionKV{factory: f, sessionID: sessionID}
}

// Ping проверяет доступность Redis (для readiness).
func (f *KVStoreFactory) Ping(ctx context.Context) error {
	return f.client.Ping(ctx).Err()
}

// Close закрывает клиента.
func (f *KVStoreFactory) Close() error {
	return f.client.Close()
}

func (f *KVStoreFactory) key(sessionID, key string) string {
	return fmt.Sprintf("%s:%s:%s", f.prefix, sessionID, key)
}

type sessionKV struct {
	factory   *KVStoreFactory
	sessionID string
}

// Get читает значение и продлевает TTL.
func (s *sessionKV) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.factory.client.GetEx(ctx, s.factory.key(s.sessionID, key), s.factory.ttl).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (s *sessionKV) Set(ctx context.Context, key string, value []byte) error {
	if err := s.factory.client.Set(ctx, s.factory.key(s.sessionID, key), value, s.factory.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *sessionKV) Delete(ctx context.Context, key string) error {
	if err := s.factory.client.Del(ctx, s.factory.key(s.sessionID, key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

var (
	_ domain.KVStoreFactory = (*KVStoreFactory)(nil)
	_ domain.KVStore        = (*sessionKV)(nil)
)
