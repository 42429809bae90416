package badger

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lsp-research/lspmarket/storage"
)

func withLimit[K comparable, V any](limit uint) func(*Cache[K, V]) {
	return func(c *Cache[K, V]) {
		c.limit = limit
	}
}

type storeFunc[K comparable, V any] func(key K, val V) func(*badger.Txn) error

func withStore[K comparable, V any](store storeFunc[K, V]) func(*Cache[K, V]) {
	return func(c *Cache[K, V]) {
		c.store = store
	}
}

func noStore[K comparable, V any](_ K, _ V) func(*badger.Txn) error {
	return func(*badger.Txn) error {
		return fmt.Errorf("no store function for cache put available")
	}
}

type retrieveFunc[K comparable, V any] func(key K) func(*badger.Txn) (V, error)

func withRetrieve[K comparable, V any](retrieve retrieveFunc[K, V]) func(*Cache[K, V]) {
	return func(c *Cache[K, V]) {
		c.retrieve = retrieve
	}
}

func noRetrieve[K comparable, V any](_ K) func(*badger.Txn) (V, error) {
	return func(*badger.Txn) (V, error) {
		var nullV V
		return nullV, fmt.Errorf("no retrieve function for cache get available")
	}
}

// Cache is a read-through LRU cache in front of badger operations. Entries are only
// cached after they were read or written successfully.
type Cache[K comparable, V any] struct {
	limit    uint
	store    storeFunc[K, V]
	retrieve retrieveFunc[K, V]
	cache    *lru.Cache[K, V]
}

func newCache[K comparable, V any](options ...func(*Cache[K, V])) *Cache[K, V] {
	c := Cache[K, V]{
		limit:    1000,
		store:    noStore[K, V],
		retrieve: noRetrieve[K, V],
	}
	for _, option := range options {
		option(&c)
	}
	c.cache, _ = lru.New[K, V](int(c.limit))
	return &c
}

// IsCached returns true if the key exists in the cache.
// It DOES NOT check whether the key exists in the underlying data store.
func (c *Cache[K, V]) IsCached(key K) bool {
	return c.cache.Contains(key)
}

// Get will try to retrieve the resource from cache first, and then from the
// injected retrieve function. During normal operations, the following error returns are expected:
//   - `storage.ErrNotFound` if key is unknown.
func (c *Cache[K, V]) Get(key K) func(*badger.Txn) (V, error) {
	return func(tx *badger.Txn) (V, error) {

		// check if we have it in the cache
		resource, cached := c.cache.Get(key)
		if cached {
			return resource, nil
		}

		// get it from the database
		resource, err := c.retrieve(key)(tx)
		if err != nil {
			var nullV V
			if errors.Is(err, storage.ErrNotFound) {
				return nullV, err
			}
			return nullV, fmt.Errorf("could not retrieve resource: %w", err)
		}

		// cache the resource and eject least recently used one if we reached limit
		c.cache.Add(key, resource)

		return resource, nil
	}
}

// PutTx returns a function that stores the resource, to be run in a read-write
// transaction. The resource is not cached: the transaction may still be aborted or
// fail to commit. Callers that know the commit succeeded cache it with Insert.
func (c *Cache[K, V]) PutTx(key K, resource V) func(*badger.Txn) error {
	storeOps := c.store(key, resource)
	return func(tx *badger.Txn) error {
		err := storeOps(tx)
		if err != nil {
			return fmt.Errorf("could not store resource: %w", err)
		}
		return nil
	}
}

// Insert caches a resource that is known to be persisted, evicting the least recently
// used one if the limit is reached.
func (c *Cache[K, V]) Insert(key K, resource V) {
	c.cache.Add(key, resource)
}
