package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

const defaultMaxCost = 32 << 20 // 32 MiB of cached bytes

// Memory is an in-process Cache. Cost is the value length in bytes.
type Memory struct {
	inner *ristretto.Cache[string, []byte]
}

func NewMemory(maxCost int64) (*Memory, error) {
	if maxCost <= 0 {
		maxCost = defaultMaxCost
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 1e5,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: creating memory cache: %w", err)
	}
	return &Memory{inner: c}, nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.inner.Get(key)
	return v, ok, nil
}

// Set waits for the write to be applied so a following Get observes it.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.inner.SetWithTTL(key, value, int64(len(value)), ttl)
	m.inner.Wait()
	return nil
}

func (m *Memory) Close() error {
	m.inner.Close()
	return nil
}
