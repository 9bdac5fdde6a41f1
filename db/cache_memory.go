package db

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-gorm/caches/v4"
)

var _ caches.Cacher = (*memoryCacher)(nil)

type memoryCacher struct {
	mu    sync.RWMutex
	store map[string][]byte
}

func newMemoryCacher() *memoryCacher {
	return &memoryCacher{store: make(map[string][]byte)}
}

// memoryCachers holds one cacher per sqlite database, so a write through any
// store in this process invalidates the cache of every other store opened on
// the same file.
var memoryCachers = struct {
	sync.Mutex
	byDatabase map[string]*memoryCacher
}{byDatabase: make(map[string]*memoryCacher)}

func sharedMemoryCacher(file string) *memoryCacher {
	key := file
	if !strings.HasPrefix(file, "file:") && file != ":memory:" {
		if abs, err := filepath.Abs(file); err == nil {
			key = abs
		}
	}

	memoryCachers.Lock()
	defer memoryCachers.Unlock()

	cacher, ok := memoryCachers.byDatabase[key]
	if !ok {
		cacher = newMemoryCacher()
		memoryCachers.byDatabase[key] = cacher
	}
	return cacher
}

func (c *memoryCacher) Get(ctx context.Context, key string, q *caches.Query[any]) (*caches.Query[any], error) {
	c.mu.RLock()
	val, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return nil, nil
	}

	if err := q.Unmarshal(val); err != nil {
		return nil, err
	}

	return q, nil
}

func (c *memoryCacher) Store(ctx context.Context, key string, val *caches.Query[any]) error {
	res, err := val.Marshal()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.store[key] = res
	c.mu.Unlock()

	return nil
}

func (c *memoryCacher) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = make(map[string][]byte)
	return nil
}
