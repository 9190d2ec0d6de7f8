package exprjit

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	goruntime "runtime"

	"github.com/exprjit/exprjit/internal/compilationcache"
	"github.com/exprjit/exprjit/internal/version"
)

// CompilationCache persists compiled cells, so compiling the same expression
// with the same Config again skips code generation. Pass it to
// Config.WithCompilationCache.
//
// A cache may be shared by any number of Compilers and is safe for concurrent
// use. Entries written by another version of exprjit are discarded on read.
type CompilationCache interface {
	// Close releases the resources of the cache. Compilers using it must not be
	// used afterwards.
	Close() error
}

// NewCompilationCache returns a CompilationCache held in memory.
func NewCompilationCache() CompilationCache {
	db, err := compilationcache.NewLevelDBCache("")
	if err != nil {
		// An in-memory database only fails to open on a bug.
		panic(fmt.Errorf("BUG: %w", err))
	}
	return &cache{store: db, closer: db.Close}
}

// NewCompilationCacheWithDir returns a CompilationCache keeping one file per
// cell under dir. If dir doesn't exist, this creates it. Entries go into a
// subdirectory named after the version, architecture and OS.
//
// Note: The embedder must safeguard this directory from external changes.
func NewCompilationCacheWithDir(dir string) (CompilationCache, error) {
	return newCompilationCacheWithDir(dir, version.GetVersion())
}

func newCompilationCacheWithDir(dir, exprjitVersion string) (*cache, error) {
	// Resolve a potentially relative directory into an absolute one.
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err = mkdir(dir); err != nil {
		return nil, err
	}

	dirname := path.Join(dir, "exprjit-"+exprjitVersion+"-"+goruntime.GOARCH+"-"+goruntime.GOOS)
	if err = mkdir(dirname); err != nil {
		return nil, err
	}
	return &cache{store: compilationcache.NewFileCache(dirname)}, nil
}

// NewCompilationCacheWithLevelDB returns a CompilationCache in the LevelDB
// database at path, which is created if missing. Only one process may open
// the database at a time.
func NewCompilationCacheWithLevelDB(path string) (CompilationCache, error) {
	if path == "" {
		return nil, errors.New("empty database path")
	}
	db, err := compilationcache.NewLevelDBCache(path)
	if err != nil {
		return nil, err
	}
	return &cache{store: db, closer: db.Close}, nil
}

// cache implements CompilationCache.
type cache struct {
	store compilationcache.Cache
	// closer is nil when the store holds no resources.
	closer func() error
}

// Close implements the same method on the CompilationCache interface.
func (c *cache) Close() (err error) {
	if c.closer != nil {
		err = c.closer()
	}
	return
}

// get returns the cached cell of key, or nil if there is none. A stale entry is
// deleted.
func (c *cache) get(key compilationcache.Key) (*CompiledCell, error) {
	content, ok, err := c.store.Get(key)
	if err != nil || !ok {
		return nil, err
	}
	e, staleCache, err := compilationcache.Deserialize(version.GetVersion(), content)
	// Close before Delete, which waits for readers.
	if closeErr := content.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, err
	}
	if staleCache {
		return nil, c.store.Delete(key)
	}
	return &CompiledCell{
		Variant:   e.Variant,
		Lanes:     int(e.Lanes),
		Code:      e.Code,
		ConstPool: e.ConstPool,
		Listing:   e.Listing,
		Registers: e.Registers,
	}, nil
}

func (c *cache) add(key compilationcache.Key, cell *CompiledCell) error {
	return c.store.Add(key, compilationcache.Serialize(version.GetVersion(), &compilationcache.Entry{
		Variant:   cell.Variant,
		Lanes:     uint32(cell.Lanes),
		Code:      cell.Code,
		ConstPool: cell.ConstPool,
		Listing:   cell.Listing,
		Registers: cell.Registers,
	}))
}

func mkdir(dirname string) error {
	if st, err := os.Stat(dirname); errors.Is(err, os.ErrNotExist) {
		// If the directory not found, create the cache dir.
		if err = os.MkdirAll(dirname, 0o700); err != nil {
			return fmt.Errorf("create directory %s: %v", dirname, err)
		}
	} else if err != nil {
		return err
	} else if !st.IsDir() {
		return fmt.Errorf("%s is not dir", dirname)
	}
	return nil
}
