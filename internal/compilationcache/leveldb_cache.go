package compilationcache

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// LevelDBCache is a Cache in a LevelDB database. LevelDB handles its own
// synchronization.
type LevelDBCache struct {
	db *leveldb.DB
}

// NewLevelDBCache opens or creates a LevelDB database at path. An empty path
// keeps the database in memory.
func NewLevelDBCache(path string) (*LevelDBCache, error) {
	var db *leveldb.DB
	var err error
	if path == "" {
		db, err = leveldb.Open(storage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}
	return &LevelDBCache{db: db}, nil
}

// Get implements Cache.Get.
func (c *LevelDBCache) Get(key Key) (content io.ReadCloser, ok bool, err error) {
	data, err := c.db.Get(key[:], nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("get %x: %w", key, err)
	}
	return io.NopCloser(bytes.NewReader(data)), true, nil
}

// Add implements Cache.Add.
func (c *LevelDBCache) Add(key Key, content io.Reader) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	return c.db.Put(key[:], data, nil)
}

// Delete implements Cache.Delete.
func (c *LevelDBCache) Delete(key Key) error {
	return c.db.Delete(key[:], nil)
}

// Len returns the number of entries.
func (c *LevelDBCache) Len() (int, error) {
	it := c.db.NewIterator(nil, nil)
	defer it.Release()
	n := 0
	for it.Next() {
		n++
	}
	return n, it.Error()
}

// Close closes the database.
func (c *LevelDBCache) Close() error {
	return c.db.Close()
}
