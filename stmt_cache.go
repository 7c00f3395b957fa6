package zorm

import (
	"container/list"
	"context"
	"database/sql"
	"sync"
)

// StmtCache is an LRU cache of prepared statements, keyed by database and
// SQL text. Relation queries have a fixed shape per declaration, so a
// connection resolving the same relation repeatedly prepares it once.
//
// Evicted statements stay open until their last user releases them.
type StmtCache struct {
	mu       sync.Mutex
	capacity int
	items    map[stmtKey]*stmtEntry
	lru      *list.List
}

type stmtKey struct {
	db    *sql.DB
	query string
}

type stmtEntry struct {
	key     stmtKey
	stmt    *sql.Stmt
	element *list.Element
	users   int
	evicted bool
}

// NewStmtCache creates a cache holding at most capacity statements.
// A capacity of 0 or less defaults to 100.
func NewStmtCache(capacity int) *StmtCache {
	if capacity <= 0 {
		capacity = 100
	}
	return &StmtCache{
		capacity: capacity,
		items:    make(map[stmtKey]*stmtEntry),
		lru:      list.New(),
	}
}

// Prepare returns a prepared statement for query on db and a release function
// the caller must call once done with the statement.
func (c *StmtCache) Prepare(ctx context.Context, db *sql.DB, query string) (*sql.Stmt, func(), error) {
	key := stmtKey{db: db, query: query}

	c.mu.Lock()
	if entry, ok := c.items[key]; ok {
		c.lru.MoveToFront(entry.element)
		entry.users++
		c.mu.Unlock()
		return entry.stmt, func() { c.release(entry) }, nil
	}
	c.mu.Unlock()

	stmt, err := db.PrepareContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// another goroutine may have prepared the same statement meanwhile
	if entry, ok := c.items[key]; ok {
		_ = stmt.Close()
		c.lru.MoveToFront(entry.element)
		entry.users++
		return entry.stmt, func() { c.release(entry) }, nil
	}

	if len(c.items) >= c.capacity {
		if back := c.lru.Back(); back != nil {
			c.evict(back.Value.(*stmtEntry))
		}
	}

	entry := &stmtEntry{key: key, stmt: stmt, users: 1}
	entry.element = c.lru.PushFront(entry)
	c.items[key] = entry

	return stmt, func() { c.release(entry) }, nil
}

// evict assumes c.mu is held.
func (c *StmtCache) evict(entry *stmtEntry) {
	c.lru.Remove(entry.element)
	delete(c.items, entry.key)
	entry.evicted = true
	if entry.users == 0 {
		_ = entry.stmt.Close()
	}
}

func (c *StmtCache) release(entry *stmtEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry.users--
	if entry.evicted && entry.users == 0 {
		_ = entry.stmt.Close()
	}
}

// Len returns the current number of cached statements.
func (c *StmtCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Close closes every statement not in use; the rest close on release.
func (c *StmtCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range c.items {
		entry.evicted = true
		if entry.users == 0 {
			_ = entry.stmt.Close()
		}
	}
	c.items = make(map[stmtKey]*stmtEntry)
	c.lru.Init()

	return nil
}
