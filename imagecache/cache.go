// Package imagecache is an in-memory LRU byte cache for page images, keyed
// by book and page index. It backs the reader's residency predicate: the
// prefetcher only needs to know whether a page's bytes are already here.
package imagecache

import (
	"log"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultSize = 32

// Cache holds decoded-ready image bytes for recently touched pages.
// Safe for concurrent use.
type Cache struct {
	lru *lru.Cache[string, []byte]
}

// New creates a cache holding up to size page images. Invalid sizes fall
// back to the default.
func New(size int) *Cache {
	if size < 1 {
		size = defaultSize
	}
	c, err := lru.New[string, []byte](size)
	if err != nil {
		log.Printf("Error: Failed to create LRU cache: %v", err)
		c, _ = lru.New[string, []byte](defaultSize)
	}
	return &Cache{lru: c}
}

func key(bookID string, pageIndex int) string {
	return bookID + ":" + strconv.Itoa(pageIndex)
}

// Has reports whether the page's bytes are resident.
func (c *Cache) Has(bookID string, pageIndex int) bool {
	return c.lru.Contains(key(bookID, pageIndex))
}

// Add stores the page's bytes, evicting the least recently used entry when
// full.
func (c *Cache) Add(bookID string, pageIndex int, data []byte) {
	c.lru.Add(key(bookID, pageIndex), data)
}

// Get returns the page's bytes and marks the entry recently used.
func (c *Cache) Get(bookID string, pageIndex int) ([]byte, bool) {
	return c.lru.Get(key(bookID, pageIndex))
}

// Len returns the number of resident pages.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Purge drops everything, typically on a memory warning.
func (c *Cache) Purge() {
	c.lru.Purge()
}
