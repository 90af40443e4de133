package tabula

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestOpenCreateAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db"+FileExtension)

	db, err := Open(path, Options{Create: true, Name: "inventory", Version: 3})
	if err != nil {
		t.Fatalf("Open(create): %v", err)
	}
	opts := TableOptions{KeyCodec: CodecStr, ValueCodec: CodecJSON, Compression: CodecZstd}
	if _, err := db.NewTable("items", opts); err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err = Open(path, Options{Name: "inventory", Version: 3})
	if err != nil {
		t.Fatalf("Open(reopen): %v", err)
	}
	defer db.Close()

	tbl := db.Table("items")
	if tbl == nil {
		t.Fatalf("reopened database lost table %q", "items")
	}
	m := tbl.Meta()
	if m.KeyCodec != CodecStr || m.ValueCodec != CodecJSON || m.Compression != CodecZstd {
		t.Fatalf("reopened table meta = %+v", m)
	}

	// Same configuration reopens; a different one is a schema mismatch.
	if _, err := db.OpenTable("items", opts); err != nil {
		t.Fatalf("OpenTable(same config): %v", err)
	}
	_, err = db.OpenTable("items", TableOptions{KeyCodec: CodecStr, ValueCodec: CodecMsgpack})
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("OpenTable(different config) err = %v, wanted ErrSchemaMismatch", err)
	}
}

func TestOpenValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db"+FileExtension)
	db, err := Open(path, Options{Create: true, Name: "right", Version: 1})
	if err != nil {
		t.Fatalf("Open(create): %v", err)
	}
	ensure(db.Close())

	t.Run("name mismatch", func(t *testing.T) {
		_, err := Open(path, Options{Name: "wrong"})
		if !errors.Is(err, ErrInvalidDatabase) {
			t.Fatalf("err = %v, wanted ErrInvalidDatabase", err)
		}
	})
	t.Run("version mismatch", func(t *testing.T) {
		_, err := Open(path, Options{Version: 9})
		if !errors.Is(err, ErrInvalidDatabase) {
			t.Fatalf("err = %v, wanted ErrInvalidDatabase", err)
		}
	})
	t.Run("no validation when unset", func(t *testing.T) {
		db, err := Open(path, Options{})
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		ensure(db.Close())
	})
	t.Run("bad durability", func(t *testing.T) {
		_, err := Open(path, Options{Durability: Durability(42)})
		if !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("err = %v, wanted ErrInvalidConfig", err)
		}
	})
}

func TestOpenNotADatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty"+FileExtension)
	// A Bolt file with no metadata record is not a tabula database.
	eng, err := openEngine(path, engineOptions{create: true})
	if err != nil {
		t.Fatalf("openEngine: %v", err)
	}
	ensure(eng.close())

	_, err = Open(path, Options{})
	if !errors.Is(err, ErrInvalidDatabase) {
		t.Fatalf("err = %v, wanted ErrInvalidDatabase", err)
	}
}

func TestOpenCorruptMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db"+FileExtension)
	db, err := Open(path, Options{Create: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ensure(db.Reserved().RawPut([]byte(MetaKey), []byte("not json")))
	ensure(db.Close())

	_, err = Open(path, Options{})
	if !errors.Is(err, ErrInvalidDatabase) {
		t.Fatalf("err = %v, wanted ErrInvalidDatabase", err)
	}
}

func TestOpenExtensionProbe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db")

	db, err := Open(path+FileExtension, Options{Create: true})
	if err != nil {
		t.Fatalf("Open(create): %v", err)
	}
	ensure(db.Close())

	// Opening without the extension probes for path + extension.
	db, err = Open(path, Options{})
	if err != nil {
		t.Fatalf("Open(probe): %v", err)
	}
	if db.Path() != path+FileExtension {
		t.Fatalf("Path = %q, wanted %q", db.Path(), path+FileExtension)
	}
	ensure(db.Close())
}

func TestNewTableErrors(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.NewTable("t", TableOptions{KeyCodec: CodecStr}); err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	if _, err := db.NewTable("t", TableOptions{KeyCodec: CodecStr}); !errors.Is(err, ErrDuplicateTable) {
		t.Fatalf("duplicate err = %v, wanted ErrDuplicateTable", err)
	}
	if _, err := db.NewTable("u", TableOptions{ValueCodec: "nope"}); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("unknown codec err = %v, wanted ErrUnknownFormat", err)
	}
	if _, err := db.NewTable("", TableOptions{}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("empty name err = %v, wanted ErrInvalidConfig", err)
	}
	if _, err := db.OpenTable("ghost", TableOptions{}); !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("OpenTable(ghost) err = %v, wanted ErrTableNotFound", err)
	}
}

// A failed NewTable must leave no trace: no open handle, no metadata
// entry, and no phantom table for the next Sync or Close to persist.
func TestNewTableFailureRegistersNothing(t *testing.T) {
	db := openTestDB(t)
	// Close the underlying store out from under the facade so every
	// engine write fails.
	ensure(db.eng.close())

	if _, err := db.NewTable("t", TableOptions{}); err == nil {
		t.Fatalf("NewTable on a closed engine succeeded")
	}
	if db.Table("t") != nil {
		t.Fatalf("failed NewTable left an open handle")
	}
	if _, ok := db.meta.Tables["t"]; ok {
		t.Fatalf("failed NewTable left a metadata entry")
	}
}

func TestNewTableLike(t *testing.T) {
	db := openTestDB(t)
	orig, err := db.NewTable("a", TableOptions{KeyCodec: CodecStr, ValueCodec: CodecCBOR, Compression: CodecLZ4})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	clone, err := db.NewTableLike(orig, "b")
	if err != nil {
		t.Fatalf("NewTableLike: %v", err)
	}
	om, cm := orig.Meta(), clone.Meta()
	if cm.KeyCodec != om.KeyCodec || cm.ValueCodec != om.ValueCodec || cm.Compression != om.Compression {
		t.Fatalf("clone meta = %+v, wanted codec config of %+v", cm, om)
	}
	if cm.Name != "b" {
		t.Fatalf("clone name = %q", cm.Name)
	}
}

func TestTableCountLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db"+FileExtension)
	db, err := Open(path, Options{Create: true, MaxTables: 2})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	for _, name := range []string{"a", "b"} {
		if _, err := db.NewTable(name, TableOptions{}); err != nil {
			t.Fatalf("NewTable(%q): %v", name, err)
		}
	}
	if _, err := db.NewTable("c", TableOptions{}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("over-limit err = %v, wanted ErrInvalidConfig", err)
	}
}

func TestReadOnlyEnforcement(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db"+FileExtension)
	db, err := Open(path, Options{Create: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	tbl := newStrJSONTable(t, db, "t")
	ensure(tbl.Put("k", "v"))
	ensure(db.Close())

	db, err = OpenReadOnly(path, "", 0)
	if err != nil {
		t.Fatalf("OpenReadOnly: %v", err)
	}
	defer db.Close()
	tbl = db.Table("t")

	if _, err := db.NewTable("u", TableOptions{}); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("NewTable err = %v, wanted ErrReadOnly", err)
	}
	if err := tbl.Put("k", "w"); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("Put err = %v, wanted ErrReadOnly", err)
	}
	if err := tbl.Delete("k"); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("Delete err = %v, wanted ErrReadOnly", err)
	}
	if err := tbl.Drop(); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("Drop err = %v, wanted ErrReadOnly", err)
	}
	if err := tbl.Truncate(); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("Truncate err = %v, wanted ErrReadOnly", err)
	}

	v, err := tbl.Get("k")
	if err != nil {
		t.Fatalf("Get on read-only: %v", err)
	}
	if v != "v" {
		t.Fatalf("Get = %v", v)
	}
	if got := collectKeys(t, tbl, nil, nil); !reflect.DeepEqual(got, []string{"k"}) {
		t.Fatalf("Keys on read-only = %v", got)
	}
}

func TestReservedIsolation(t *testing.T) {
	db := openTestDB(t)
	tbl := newStrJSONTable(t, db, "t")

	ensure(tbl.Put("shared", "table value"))
	ensure(db.Reserved().Put("shared", "reserved value"))

	v, err := tbl.Get("shared")
	if err != nil || v != "table value" {
		t.Fatalf("table Get = %v, %v", v, err)
	}
	rv, err := db.Reserved().Get("shared")
	if err != nil || rv != "reserved value" {
		t.Fatalf("reserved Get = %v, %v", rv, err)
	}

	ensure(db.Reserved().Delete("shared"))
	if _, err := tbl.Get("shared"); err != nil {
		t.Fatalf("table key vanished with reserved delete: %v", err)
	}
}

func TestReservedSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db"+FileExtension)
	db, err := Open(path, Options{Create: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ensure(db.Reserved().Put("build", map[string]any{"num": 17}))
	ensure(db.Close())

	db, err = Open(path, Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	v, err := db.Reserved().Get("build")
	if err != nil {
		t.Fatalf("reserved Get: %v", err)
	}
	m := v.(map[string]any)
	if m["num"] != float64(17) {
		t.Fatalf("reserved value = %#v", v)
	}
}

func TestCloseIdempotent(t *testing.T) {
	db := openTestDB(t)
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := db.Sync(); !errors.Is(err, ErrClosed) {
		t.Fatalf("Sync after close err = %v, wanted ErrClosed", err)
	}
}

func TestRepack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db"+FileExtension)
	db, err := Open(path, Options{Create: true, Durability: DurabilityUnsafe})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	tbl := newStrJSONTable(t, db, "t")
	for i := 0; i < 100; i++ {
		ensure(tbl.Put(string(rune('a'+i%26))+"x", map[string]any{"i": i}))
	}

	if err := db.Repack(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Repack before close err = %v, wanted ErrInvalidState", err)
	}
	ensure(db.Close())
	if err := db.Repack(); err != nil {
		t.Fatalf("Repack: %v", err)
	}

	db, err = Open(path, Options{})
	if err != nil {
		t.Fatalf("reopen after repack: %v", err)
	}
	defer db.Close()
	if got := db.TableNames(); !reflect.DeepEqual(got, []string{"t"}) {
		t.Fatalf("TableNames after repack = %v", got)
	}
	if _, err := db.Table("t").Get("ax"); err != nil {
		t.Fatalf("Get after repack: %v", err)
	}
}

func TestDropSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db"+FileExtension)
	db, err := Open(path, Options{Create: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	keep := newStrJSONTable(t, db, "keep")
	gone := newStrJSONTable(t, db, "gone")
	ensure(keep.Put("k", "v"))
	ensure(gone.Drop())
	ensure(db.Close())

	db, err = Open(path, Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	if got := db.TableNames(); !reflect.DeepEqual(got, []string{"keep"}) {
		t.Fatalf("TableNames = %v, wanted [keep]", got)
	}
}

func TestSyncFlushesDirtyMetadata(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.NewTable("t", TableOptions{KeyCodec: CodecStr}); err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	if err := db.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	// The record must already be on disk: read it back through the engine.
	raw, found, err := db.eng.get(reservedStoreName, []byte(MetaKey))
	if err != nil || !found {
		t.Fatalf("metadata record missing after Sync: %v", err)
	}
	if len(raw) == 0 {
		t.Fatalf("metadata record empty after Sync")
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent"+FileExtension), Options{})
	if err == nil || !os.IsNotExist(errors.Unwrap(err)) {
		t.Fatalf("err = %v, wanted wrapped not-exist", err)
	}
}
