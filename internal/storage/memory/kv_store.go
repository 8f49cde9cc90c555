package memory

import (
	"bytes"
	"context"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// KVStoreFactory хранит значения всех сессий в одной карте под общим мьютексом.
type KVStoreFactory struct {
	mu       sync.RWMutex
	sessions map[string]map[string][]byte
}

// NewKVStoreFactory возвращает пустое in-memory хранилище.
func NewKVStoreFactory() *KVStoreFactory {
	return &KVStoreFactory{
		sessions: make(map[string]map[string][]byte),
	}
}

// ForSession возвращает хранилище, ограниченное одной сессией.
func (f *KVStoreFactory) ForSession(sessionID string) domain.KVStore {
	return &sessionKV{factory: f, sessionID: sessionID}
}

// Keys возвращает количество ключей сессии (для тестов и отладки).
func (f *KVStoreFactory) Keys(sessionID string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.sessions[sessionID])
}

type sessionKV struct {
	factory   *KVStoreFactory
	sessionID string
}

func (s *sessionKV) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.factory.mu.RLock()
	defer s.factory.mu.RUnlock()

	value, ok := s.factory.sessions[s.sessionID][key]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return bytes.Clone(value), nil
}

func (s *sessionKV) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.factory.mu.Lock()
	defer s.factory.mu.Unlock()

	bucket, ok := s.factory.sessions[s.sessionID]
	if !ok {
		bucket = make(map[string][]byte)
		s.factory.sessions[s.sessionID] = bucket
	}
	bucket[key] = bytes.Clone(value)
	return nil
}

func (s *sessionKV) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.factory.mu.Lock()
	defer s.factory.mu.Unlock()

	bucket, ok := s.factory.sessions[s.sessionID]
	if !ok {
		return nil
	}
	delete(bucket, key)
	if len(bucket) == 0 {
		delete(s.factory.sessions, s.sessionID)
	}
	return nil
}

var (
	_ domain.KVStoreFactory = (*KVStoreFactory)(nil)
	_ domain.KVStore        = (*sessionKV)(nil)
)
