package tabula

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"go.etcd.io/bbolt"
)

// The reserved store lives in a bucket whose name no user table can take
// (table names must not start with a NUL byte).
var reservedStoreName = []byte("\x00reserved")

// engine is the thin adapter between the codec layer and Bolt. Every
// operation opens its own scoped transaction and releases it on all exit
// paths; errors from Bolt propagate unchanged apart from wrapping.
type engine struct {
	bdb  *bbolt.DB
	path string
}

type engineOptions struct {
	readOnly bool
	create   bool
	noSync   bool
	mmapSize int
}

func openEngine(path string, o engineOptions) (*engine, error) {
	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	bopt.ReadOnly = o.readOnly
	if o.mmapSize != 0 {
		bopt.InitialMmapSize = o.mmapSize
	}
	if o.noSync {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.NoGrowSync = true
	}

	if o.create {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("tabula: %w", err)
		}
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("tabula: %w", err)
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("tabula: %w", err)
	}
	return &engine{bdb: bdb, path: path}, nil
}

func (e *engine) close() error {
	return e.bdb.Close()
}

func (e *engine) sync() error {
	return e.bdb.Sync()
}

// createStore ensures the named sub-store exists.
func (e *engine) createStore(name []byte) error {
	return e.bdb.Update(func(btx *bbolt.Tx) error {
		_, err := btx.CreateBucketIfNotExists(name)
		return err
	})
}

func (e *engine) hasStore(name []byte) bool {
	var found bool
	_ = e.bdb.View(func(btx *bbolt.Tx) error {
		found = btx.Bucket(name) != nil
		return nil
	})
	return found
}

// get returns a copy of the stored value, or (nil, false) if the key or the
// whole store is absent.
func (e *engine) get(store, key []byte) ([]byte, bool, error) {
	var value []byte
	var found bool
	err := e.bdb.View(func(btx *bbolt.Tx) error {
		b := btx.Bucket(store)
		if b == nil {
			return nil
		}
		if v := b.Get(key); v != nil {
			value = bytes.Clone(v)
			found = true
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("tabula: get: %w", err)
	}
	return value, found, nil
}

func (e *engine) put(store, key, value []byte) error {
	err := e.bdb.Update(func(btx *bbolt.Tx) error {
		b, err := btx.CreateBucketIfNotExists(store)
		if err != nil {
			return err
		}
		return b.Put(key, value)
	})
	if err != nil {
		return fmt.Errorf("tabula: put: %w", err)
	}
	return nil
}

// delete removes the key; a missing key or store is not an error.
func (e *engine) delete(store, key []byte) error {
	err := e.bdb.Update(func(btx *bbolt.Tx) error {
		b := btx.Bucket(store)
		if b == nil {
			return nil
		}
		return b.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("tabula: delete: %w", err)
	}
	return nil
}

// dropStore removes the sub-store and everything in it.
func (e *engine) dropStore(name []byte) error {
	err := e.bdb.Update(func(btx *bbolt.Tx) error {
		err := btx.DeleteBucket(name)
		if err == bbolt.ErrBucketNotFound {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("tabula: drop: %w", err)
	}
	return nil
}

// truncateStore removes the contents of the sub-store but keeps it.
func (e *engine) truncateStore(name []byte) error {
	err := e.bdb.Update(func(btx *bbolt.Tx) error {
		err := btx.DeleteBucket(name)
		if err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		_, err = btx.CreateBucket(name)
		return err
	})
	if err != nil {
		return fmt.Errorf("tabula: truncate: %w", err)
	}
	return nil
}

// compactCopy writes a size-compacted copy of a closed database file at
// srcPath to dstPath.
func compactCopy(srcPath, dstPath string) error {
	src, err := bbolt.Open(srcPath, 0666, &bbolt.Options{ReadOnly: true, Timeout: 10 * time.Second})
	if err != nil {
		return fmt.Errorf("tabula: repack: %w", err)
	}
	defer src.Close()

	dst, err := bbolt.Open(dstPath, 0666, &bbolt.Options{Timeout: 10 * time.Second})
	if err != nil {
		return fmt.Errorf("tabula: repack: %w", err)
	}
	err = bbolt.Compact(dst, src, 1<<20)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dstPath)
		return fmt.Errorf("tabula: repack: %w", err)
	}
	return nil
}
