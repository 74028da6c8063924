// Package cache is a read-through cache of fetched collections. Writers
// invalidate whole entities; readers reload on the next miss.
package cache

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"healthcare-appointment-server/internal/logger"
)

// Entity names a group of cached collections invalidated together.
type Entity string

const (
	Appointments Entity = "appointments"
	Patients     Entity = "patients"
	Doctors      Entity = "doctors"
	Admins       Entity = "admins"
	Dashboard    Entity = "dashboard"
)

var entities = []Entity{Appointments, Patients, Doctors, Admins, Dashboard}

type partition struct {
	entries    *lru.Cache[string, any]
	generation uint64
}

// Cache holds one LRU partition per entity. A nil *Cache is valid and
// disables caching.
type Cache struct {
	mu         sync.Mutex
	partitions map[Entity]*partition
	log        *logger.Logger
}

// New creates a cache holding up to size entries per entity.
func New(size int, log *logger.Logger) (*Cache, error) {
	c := &Cache{partitions: make(map[Entity]*partition, len(entities)), log: log}
	for _, e := range entities {
		entries, err := lru.New[string, any](size)
		if err != nil {
			return nil, fmt.Errorf("cache %s: %w", e, err)
		}
		c.partitions[e] = &partition{entries: entries}
	}
	return c, nil
}

// Fetch returns the cached value for key, calling load on a miss. A value
// loaded while the entity was invalidated is returned but not stored.
func Fetch[T any](c *Cache, entity Entity, key string, load func() (T, error)) (T, error) {
	if c == nil {
		return load()
	}
	p, ok := c.partitions[entity]
	if !ok {
		return load()
	}

	c.mu.Lock()
	if v, ok := p.entries.Get(key); ok {
		c.mu.Unlock()
		if typed, ok := v.(T); ok {
			return typed, nil
		}
		return load()
	}
	gen := p.generation
	c.mu.Unlock()

	v, err := load()
	if err != nil {
		return v, err
	}

	c.mu.Lock()
	if p.generation == gen {
		p.entries.Add(key, v)
	}
	c.mu.Unlock()
	return v, nil
}

// Invalidate drops every cached collection of the given entities.
func (c *Cache) Invalidate(targets ...Entity) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range targets {
		p, ok := c.partitions[e]
		if !ok {
			continue
		}
		p.generation++
		p.entries.Purge()
	}
	if c.log != nil {
		c.log.WithComponent("cache").WithField("entities", targets).Debug("cache invalidated")
	}
}

// Len returns the number of cached entries of entity.
func (c *Cache) Len(entity Entity) int {
	if c == nil {
		return 0
	}
	p, ok := c.partitions[entity]
	if !ok {
		return 0
	}
	return p.entries.Len()
}
