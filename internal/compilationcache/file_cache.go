package compilationcache

import (
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path"
	"sync"
)

// NewFileCache returns a Cache which keeps one file per key in dir. dir must exist.
func NewFileCache(dir string) Cache {
	return newFileCache(dir)
}

func newFileCache(dir string) *fileCache {
	return &fileCache{dirPath: dir}
}

// fileCache writes/reads cache into/from the fileCache.dirPath.
type fileCache struct {
	dirPath string
	// mux serializes Add with Delete so a reader never sees a partial file.
	mux sync.RWMutex
}

type fileReadCloser struct {
	*os.File
	fc *fileCache
}

func (f *fileCache) path(key Key) string {
	return path.Join(f.dirPath, hex.EncodeToString(key[:]))
}

func (f *fileCache) Get(key Key) (content io.ReadCloser, ok bool, err error) {
	// TODO: take a file lock as well, for directories shared between processes.
	f.mux.RLock()
	file, err := os.Open(f.path(key))
	if err != nil {
		f.mux.RUnlock()
		if errors.Is(err, os.ErrNotExist) {
			err = nil
		}
		return nil, false, err
	}
	// The read lock is released by Close.
	return &fileReadCloser{File: file, fc: f}, true, nil
}

// Close releases the read lock taken by Get.
func (f *fileReadCloser) Close() (err error) {
	defer f.fc.mux.RUnlock()
	return f.File.Close()
}

func (f *fileCache) Add(key Key, content io.Reader) (err error) {
	f.mux.Lock()
	defer f.mux.Unlock()

	// Write to a temporary file first so a failed copy leaves no entry.
	final := f.path(key)
	file, err := os.CreateTemp(f.dirPath, path.Base(final)+".*.tmp")
	if err != nil {
		return
	}
	defer func() {
		if err != nil {
			_ = os.Remove(file.Name())
		}
	}()
	if _, err = io.Copy(file, content); err != nil {
		_ = file.Close()
		return
	}
	if err = file.Close(); err != nil {
		return
	}
	return os.Rename(file.Name(), final)
}

func (f *fileCache) Delete(key Key) (err error) {
	f.mux.Lock()
	defer f.mux.Unlock()

	err = os.Remove(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		err = nil
	}
	return
}
