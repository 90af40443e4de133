package tabula

import (
	"bytes"
	"errors"
	"fmt"
	"iter"
)

// Table is the per-table facade. It binds a metadata entry to live
// operations closed over the engine and the resolved codec pipeline.
// Handles are created when the database is opened (one per metadata entry)
// and by NewTable; a dropped table's handle becomes unusable.
type Table struct {
	db      *DB
	meta    TableMeta
	pipe    *pipeline
	store   []byte
	dropped bool
}

func newTable(db *DB, meta TableMeta) (*Table, error) {
	pipe, err := newPipeline(meta.KeyCodec, meta.ValueCodec, meta.Compression)
	if err != nil {
		return nil, err
	}
	return &Table{
		db:    db,
		meta:  meta,
		pipe:  pipe,
		store: []byte(meta.Name),
	}, nil
}

func (t *Table) Name() string {
	return t.meta.Name
}

// Meta returns the table's immutable codec configuration.
func (t *Table) Meta() TableMeta {
	return t.meta
}

func (t *Table) usable() error {
	if t.dropped {
		return fmt.Errorf("%w: table %q has been dropped", ErrInvalidState, t.meta.Name)
	}
	if t.db.closed {
		return ErrClosed
	}
	return nil
}

func (t *Table) writable() error {
	if err := t.usable(); err != nil {
		return err
	}
	if t.db.readOnly {
		return ErrReadOnly
	}
	return nil
}

// Get returns the decoded value for a logical key, or ErrKeyNotFound.
func (t *Table) Get(key any) (any, error) {
	if err := t.usable(); err != nil {
		return nil, err
	}
	rawKey, err := t.pipe.encodeKey(key)
	if err != nil {
		return nil, err
	}
	raw, found, err := t.db.eng.get(t.store, rawKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %v", ErrKeyNotFound, key)
	}
	v, err := t.pipe.decodeValue(raw)
	if err != nil {
		return nil, tableErrf(t.meta.Name, rawKey, err, "decoding value")
	}
	return v, nil
}

// GetOr is Get with a caller-supplied default for missing keys. A nil
// default is legal and is returned as nil.
func (t *Table) GetOr(key, def any) (any, error) {
	v, err := t.Get(key)
	if errors.Is(err, ErrKeyNotFound) {
		return def, nil
	}
	return v, err
}

// Put is an idempotent upsert.
func (t *Table) Put(key, value any) error {
	if err := t.writable(); err != nil {
		return err
	}
	rawKey, err := t.pipe.encodeKey(key)
	if err != nil {
		return err
	}
	rawValue, err := t.pipe.encodeValue(value)
	if err != nil {
		return tableErrf(t.meta.Name, rawKey, err, "encoding value")
	}
	return t.db.eng.put(t.store, rawKey, rawValue)
}

// Delete removes the key if present; a missing key is a no-op.
func (t *Table) Delete(key any) error {
	if err := t.writable(); err != nil {
		return err
	}
	rawKey, err := t.pipe.encodeKey(key)
	if err != nil {
		return err
	}
	return t.db.eng.delete(t.store, rawKey)
}

func (t *Table) bounds(start, stop any) (rawBounds, error) {
	var r rawBounds
	var err error
	if r.start, err = t.pipe.encodeBound(start); err != nil {
		return r, err
	}
	if r.stop, err = t.pipe.encodeBound(stop); err != nil {
		return r, err
	}
	return r, nil
}

// Keys iterates logical keys in ascending encoded-byte order, from start
// (inclusive) to stop (exclusive); nil bounds are open. Each returned
// sequence opens its own read transaction per iteration and releases it on
// every exit path, including an early break.
func (t *Table) Keys(start, stop any) (iter.Seq[any], error) {
	r, err := t.prepareScan(start, stop)
	if err != nil {
		return nil, err
	}
	return func(yield func(any) bool) {
		ensure(t.db.eng.scan(t.store, r, func(k, v []byte) bool {
			key, err := t.pipe.decodeKey(k)
			if err != nil {
				panic(tableErrf(t.meta.Name, k, err, "decoding key"))
			}
			return yield(key)
		}))
	}, nil
}

// Items iterates (key, value) pairs under the same contract as Keys.
func (t *Table) Items(start, stop any) (iter.Seq2[any, any], error) {
	r, err := t.prepareScan(start, stop)
	if err != nil {
		return nil, err
	}
	return func(yield func(any, any) bool) {
		ensure(t.db.eng.scan(t.store, r, func(k, v []byte) bool {
			key, err := t.pipe.decodeKey(k)
			if err != nil {
				panic(tableErrf(t.meta.Name, k, err, "decoding key"))
			}
			value, err := t.pipe.decodeValue(v)
			if err != nil {
				panic(tableErrf(t.meta.Name, k, err, "decoding value"))
			}
			return yield(key, value)
		}))
	}, nil
}

// Values iterates decoded values under the same contract as Keys.
func (t *Table) Values(start, stop any) (iter.Seq[any], error) {
	r, err := t.prepareScan(start, stop)
	if err != nil {
		return nil, err
	}
	return func(yield func(any) bool) {
		ensure(t.db.eng.scan(t.store, r, func(k, v []byte) bool {
			value, err := t.pipe.decodeValue(v)
			if err != nil {
				panic(tableErrf(t.meta.Name, k, err, "decoding value"))
			}
			return yield(value)
		}))
	}, nil
}

func (t *Table) prepareScan(start, stop any) (rawBounds, error) {
	if err := t.usable(); err != nil {
		return rawBounds{}, err
	}
	return t.bounds(start, stop)
}

// RawGet bypasses the codec pipeline entirely and returns stored bytes.
func (t *Table) RawGet(key []byte) ([]byte, error) {
	if err := t.usable(); err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	raw, found, err := t.db.eng.get(t.store, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	return raw, nil
}

// RawGetOr is RawGet with a default; a nil default is legal.
func (t *Table) RawGetOr(key, def []byte) ([]byte, error) {
	v, err := t.RawGet(key)
	if errors.Is(err, ErrKeyNotFound) {
		return def, nil
	}
	return v, err
}

// RawPut stores bytes as-is, bypassing value codecs.
func (t *Table) RawPut(key, value []byte) error {
	if err := t.writable(); err != nil {
		return err
	}
	if len(key) == 0 {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	return t.db.eng.put(t.store, key, value)
}

func (t *Table) RawDelete(key []byte) error {
	if err := t.writable(); err != nil {
		return err
	}
	if len(key) == 0 {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	return t.db.eng.delete(t.store, key)
}

func (t *Table) prepareRawScan(start, stop []byte) (rawBounds, error) {
	if err := t.usable(); err != nil {
		return rawBounds{}, err
	}
	r := rawBounds{start: start, stop: stop}
	return r, r.validate()
}

// RawKeys iterates stored keys as byte strings. The yielded slices are
// copies and safe to retain.
func (t *Table) RawKeys(start, stop []byte) (iter.Seq[[]byte], error) {
	r, err := t.prepareRawScan(start, stop)
	if err != nil {
		return nil, err
	}
	return func(yield func([]byte) bool) {
		ensure(t.db.eng.scan(t.store, r, func(k, v []byte) bool {
			return yield(bytes.Clone(k))
		}))
	}, nil
}

func (t *Table) RawItems(start, stop []byte) (iter.Seq2[[]byte, []byte], error) {
	r, err := t.prepareRawScan(start, stop)
	if err != nil {
		return nil, err
	}
	return func(yield func([]byte, []byte) bool) {
		ensure(t.db.eng.scan(t.store, r, func(k, v []byte) bool {
			return yield(bytes.Clone(k), bytes.Clone(v))
		}))
	}, nil
}

func (t *Table) RawValues(start, stop []byte) (iter.Seq[[]byte], error) {
	r, err := t.prepareRawScan(start, stop)
	if err != nil {
		return nil, err
	}
	return func(yield func([]byte) bool) {
		ensure(t.db.eng.scan(t.store, r, func(k, v []byte) bool {
			return yield(bytes.Clone(v))
		}))
	}, nil
}

// Drop removes the table and all its contents, unregisters it from the
// database metadata, and makes this handle unusable.
func (t *Table) Drop() error {
	if err := t.writable(); err != nil {
		return err
	}
	if err := t.db.eng.dropStore(t.store); err != nil {
		return err
	}
	t.dropped = true
	return t.db.forgetTable(t.meta.Name)
}

// Truncate deletes every entry but keeps the table registered.
func (t *Table) Truncate() error {
	if err := t.writable(); err != nil {
		return err
	}
	return t.db.eng.truncateStore(t.store)
}
