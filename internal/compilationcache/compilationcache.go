// Package compilationcache stores compiled cells across processes, keyed by a
// digest of everything that determines the machine code.
package compilationcache

import (
	"crypto/sha256"
	"encoding/binary"
	"io"
)

// Cache is the interface of the compiled cell stores.
//
// Since these methods are concurrently accessed, the implementations must be Goroutine-safe.
type Cache interface {
	// Get returns the content passed to Add for key. Returns ok=false with
	// err=nil when key is not in the cache. The caller closes content.
	Get(key Key) (content io.ReadCloser, ok bool, err error)
	// Add stores content for key, replacing any previous content.
	Add(key Key, content io.Reader) (err error)
	// Delete purges key. It is called when the content returned by Get was
	// written by another version and cannot be read.
	Delete(key Key) (err error)
}

// Key is the 256-bit identifier of each cache content.
type Key = [sha256.Size]byte

// NewKey digests the parts in order. Parts are length-prefixed, so moving bytes
// from one part to the next changes the key.
func NewKey(parts ...string) Key {
	h := sha256.New()
	var n [8]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		io.WriteString(h, p)
	}
	var k Key
	h.Sum(k[:0])
	return k
}
