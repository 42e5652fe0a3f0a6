package ephem

import (
	"container/list"
	"sync"

	"github.com/sssm0ulder/astrobot-sub000/internal/astro"
)

const defaultCacheSize = 16384

// posKey identifies a memoized lookup. Julian days are quantized to about
// a tenth of a second and observer coordinates to about a hundred meters,
// which is far below anything the engines can resolve.
type posKey struct {
	planet astro.Planet
	jdQ    int64
	topo   bool
	latQ   int32
	lonQ   int32
}

func makeKey(p astro.Planet, jd float64, observer *astro.Location) posKey {
	k := posKey{planet: p, jdQ: int64(jd * 1e6)}
	if observer != nil {
		k.topo = true
		k.latQ = int32(observer.Latitude * 1e3)
		k.lonQ = int32(observer.Longitude * 1e3)
	}
	return k
}

type posEntry struct {
	key   posKey
	lon   float64
	speed float64
}

// positionCache is a size-bounded LRU memoizing (jd, planet, observer) to
// (longitude, speed). Read-mostly, safe for concurrent workers.
type positionCache struct {
	mu      sync.Mutex
	maxSize int
	order   *list.List // front = most recently used
	entries map[posKey]*list.Element
}

func newPositionCache(maxSize int) *positionCache {
	return &positionCache{
		maxSize: maxSize,
		order:   list.New(),
		entries: make(map[posKey]*list.Element),
	}
}

func (c *positionCache) get(p astro.Planet, jd float64, observer *astro.Location) (lon, speed float64, ok bool) {
	key := makeKey(p, jd, observer)

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return 0, 0, false
	}
	c.order.MoveToFront(el)
	entry := el.Value.(*posEntry)
	return entry.lon, entry.speed, true
}

func (c *positionCache) put(p astro.Planet, jd float64, observer *astro.Location, lon, speed float64) {
	key := makeKey(p, jd, observer)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		entry := el.Value.(*posEntry)
		entry.lon, entry.speed = lon, speed
		return
	}

	el := c.order.PushFront(&posEntry{key: key, lon: lon, speed: speed})
	c.entries[key] = el

	if c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*posEntry).key)
	}
}

func (c *positionCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
