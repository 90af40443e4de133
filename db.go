package tabula

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// FileExtension is the conventional extension of tabula database files.
// Open probes for it when the given path does not exist.
const FileExtension = ".tdb"

// Durability selects how aggressively the store flushes to disk.
type Durability int

const (
	// DurabilitySafe keeps the engine's strongest flush-on-commit
	// guarantees. This is the default.
	DurabilitySafe Durability = iota
	// DurabilityUnsafe disables write-ahead flushing for maximum
	// throughput. Only suitable for write-once/read-many artifacts.
	DurabilityUnsafe
)

type Options struct {
	// Name and Version, when set, are recorded at creation and validated
	// against the stored metadata on open.
	Name    string
	Version int

	ReadOnly   bool
	Create     bool
	Durability Durability

	// MaxTables bounds the number of user tables (0 means the default).
	MaxTables int
	// MaxSize hints the initial mmap size of the store (0 means the
	// engine default).
	MaxSize int

	Logf func(format string, args ...any)
}

const defaultMaxTables = 100

// DB is the top-level lifecycle object for one database file.
type DB struct {
	eng      *engine
	path     string
	readOnly bool
	logf     func(format string, args ...any)

	maxTables int

	mu       sync.Mutex
	meta     *databaseMeta
	tables   map[string]*Table
	reserved *ReservedTable
	dirty    bool
	closed   bool
}

// Open opens or creates a database at path. With Create set the file is
// replaced and a fresh metadata record is built; otherwise the file must
// already hold a valid record, whose name/version are validated when the
// options request it. Every table listed in the metadata gets a live
// handle, so codec resolution failures surface here rather than on first
// use.
func Open(path string, o Options) (*DB, error) {
	if o.Durability != DurabilitySafe && o.Durability != DurabilityUnsafe {
		return nil, fmt.Errorf("%w: durability %d", ErrInvalidConfig, o.Durability)
	}
	if o.Create {
		o.ReadOnly = false
	} else if _, err := os.Stat(path); os.IsNotExist(err) && !strings.HasSuffix(path, FileExtension) {
		if _, err := os.Stat(path + FileExtension); err == nil {
			path += FileExtension
		}
	}

	eng, err := openEngine(path, engineOptions{
		readOnly: o.ReadOnly,
		create:   o.Create,
		noSync:   o.Durability == DurabilityUnsafe,
		mmapSize: o.MaxSize,
	})
	if err != nil {
		return nil, err
	}

	db := &DB{
		eng:       eng,
		path:      path,
		readOnly:  o.ReadOnly,
		logf:      o.Logf,
		maxTables: o.MaxTables,
		tables:    make(map[string]*Table),
	}
	if db.maxTables <= 0 {
		db.maxTables = defaultMaxTables
	}

	if o.Create {
		if err := eng.createStore(reservedStoreName); err != nil {
			eng.close()
			return nil, err
		}
		db.meta = newDatabaseMeta(o.Name, o.Version)
		// A fresh record has never been persisted; make sure it lands no
		// later than the first Sync or Close.
		db.dirty = true
		if err := db.flushMeta(); err != nil {
			eng.close()
			return nil, err
		}
	} else {
		meta, err := loadDatabaseMeta(eng, o.Name, o.Version)
		if err != nil {
			eng.close()
			return nil, err
		}
		db.meta = meta
		for name, tm := range meta.Tables {
			tbl, err := newTable(db, tm)
			if err != nil {
				eng.close()
				return nil, fmt.Errorf("table %q: %w", name, err)
			}
			if !o.ReadOnly {
				if err := eng.createStore(tbl.store); err != nil {
					eng.close()
					return nil, err
				}
			}
			db.tables[name] = tbl
		}
	}

	db.reserved = newReservedTable(db)
	db.logprintf("opened %s (%d tables, read-only: %v)", path, len(db.tables), o.ReadOnly)
	return db, nil
}

// OpenReadOnly opens an existing database for reading only, with flushing
// disabled since nothing will be written.
func OpenReadOnly(path string, name string, version int) (*DB, error) {
	return Open(path, Options{
		Name:       name,
		Version:    version,
		ReadOnly:   true,
		Durability: DurabilitySafe,
	})
}

func (db *DB) logprintf(format string, args ...any) {
	if db.logf != nil {
		db.logf("tabula: "+format, args...)
	}
}

// Path returns the resolved path of the database file.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) IsReadOnly() bool {
	return db.readOnly
}

// TableOptions is the codec configuration for a new table. Empty tags mean
// identity: no key codec (raw []byte keys), no value serializer, no
// compression.
type TableOptions struct {
	KeyCodec    string
	ValueCodec  string
	Compression string
}

func validTableName(name string) error {
	if name == "" || name[0] == 0 {
		return fmt.Errorf("%w: invalid table name %q", ErrInvalidConfig, name)
	}
	return nil
}

// NewTable creates a table. The engine sub-store is created before the
// metadata entry is added; the entry is then persisted immediately when
// possible, and in any case no later than the next Sync or Close. A failed
// creation registers nothing, so retrying with the same name is safe.
// Creating a name that is already open fails with ErrDuplicateTable even
// when the codec configuration matches; use OpenTable for that.
func (db *DB) NewTable(name string, o TableOptions) (*Table, error) {
	if err := validTableName(name); err != nil {
		return nil, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.writableLocked(); err != nil {
		return nil, err
	}
	if _, ok := db.tables[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateTable, name)
	}
	if _, ok := db.meta.Tables[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateTable, name)
	}
	if len(db.tables) >= db.maxTables {
		return nil, fmt.Errorf("%w: table limit %d reached", ErrInvalidConfig, db.maxTables)
	}

	tm := TableMeta{Name: name, KeyCodec: o.KeyCodec, ValueCodec: o.ValueCodec, Compression: o.Compression}
	tbl, err := newTable(db, tm)
	if err != nil {
		return nil, err
	}
	if err := db.eng.createStore(tbl.store); err != nil {
		return nil, err
	}
	db.meta.Tables[name] = tm
	db.dirty = true
	if err := db.flushMeta(); err != nil {
		delete(db.meta.Tables, name)
		return nil, err
	}
	db.tables[name] = tbl
	db.logprintf("created table %q (key=%q value=%q compression=%q)", name, o.KeyCodec, o.ValueCodec, o.Compression)
	return tbl, nil
}

// NewTableLike creates a table with the codec configuration of an existing
// one.
func (db *DB) NewTableLike(existing *Table, name string) (*Table, error) {
	m := existing.Meta()
	return db.NewTable(name, TableOptions{
		KeyCodec:    m.KeyCodec,
		ValueCodec:  m.ValueCodec,
		Compression: m.Compression,
	})
}

// OpenTable returns the handle of a table recorded in the metadata,
// verifying that the requested codec configuration exactly matches the
// stored one. A mismatch fails with ErrSchemaMismatch; reinterpreting
// stored bytes with different codecs would silently corrupt reads.
func (db *DB) OpenTable(name string, o TableOptions) (*Table, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, ErrClosed
	}
	tm, ok := db.meta.Tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTableNotFound, name)
	}
	want := TableMeta{Name: name, KeyCodec: o.KeyCodec, ValueCodec: o.ValueCodec, Compression: o.Compression}
	if !tm.equalConfig(want) {
		return nil, fmt.Errorf("%w: table %q is (key=%q value=%q compression=%q), requested (key=%q value=%q compression=%q)",
			ErrSchemaMismatch, name,
			tm.KeyCodec, tm.ValueCodec, tm.Compression,
			o.KeyCodec, o.ValueCodec, o.Compression)
	}
	if tbl := db.tables[name]; tbl != nil {
		return tbl, nil
	}
	tbl, err := newTable(db, tm)
	if err != nil {
		return nil, err
	}
	db.tables[name] = tbl
	return tbl, nil
}

// Table returns the open handle for name, or nil.
func (db *DB) Table(name string) *Table {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.tables[name]
}

// TableNames returns a sorted snapshot of the open table names.
func (db *DB) TableNames() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	names := make([]string, 0, len(db.tables))
	for name := range db.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reserved returns the reserved table.
func (db *DB) Reserved() *ReservedTable {
	return db.reserved
}

func (db *DB) writableLocked() error {
	if db.closed {
		return ErrClosed
	}
	if db.readOnly {
		return ErrReadOnly
	}
	return nil
}

// forgetTable removes a dropped table from the registry and the metadata.
func (db *DB) forgetTable(name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.tables, name)
	delete(db.meta.Tables, name)
	db.dirty = true
	err := db.flushMeta()
	if err == nil {
		db.logprintf("dropped table %q", name)
	}
	return err
}

// flushMeta persists the metadata record if it is dirty and the database
// is writable. Callers must hold db.mu (or be the only owner, as in Open).
func (db *DB) flushMeta() error {
	if !db.dirty || db.readOnly {
		return nil
	}
	if err := saveDatabaseMeta(db.eng, db.meta); err != nil {
		return err
	}
	db.dirty = false
	return nil
}

// Sync flushes pending metadata and forces the engine to sync to disk.
// Useful when the database was opened with DurabilityUnsafe.
func (db *DB) Sync() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}
	if err := db.flushMeta(); err != nil {
		return err
	}
	if db.readOnly {
		return nil
	}
	return db.eng.sync()
}

// Close flushes pending metadata and closes the database. Calling Close
// again is a no-op.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	if err := db.flushMeta(); err != nil {
		return err
	}
	db.closed = true
	db.logprintf("closed %s", db.path)
	return db.eng.close()
}

// Repack writes a size-compacted copy of the database and atomically
// replaces the original file. The database must be closed first;
// otherwise Repack fails with ErrInvalidState.
func (db *DB) Repack() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if !db.closed {
		return fmt.Errorf("%w: repack requires a closed database", ErrInvalidState)
	}
	tmp := db.path + ".repack"
	if err := compactCopy(db.path, tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, db.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("tabula: repack: %w", err)
	}
	db.logprintf("repacked %s", db.path)
	return nil
}
