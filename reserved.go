package tabula

import "iter"

// ReservedTable exposes the reserved (unnamed) store of the database. Its
// codec configuration is fixed: string keys, JSON values. Anything that
// needs a different serialization belongs in a regular table.
//
// The reserved store also holds the database metadata record under MetaKey.
// The raw operations do not guard against overwriting it; doing so
// corrupts the database.
type ReservedTable struct {
	t *Table
}

func newReservedTable(db *DB) *ReservedTable {
	pipe := must(newPipeline(CodecStr, CodecJSON, ""))
	return &ReservedTable{t: &Table{
		db:    db,
		meta:  TableMeta{Name: "(reserved)", KeyCodec: CodecStr, ValueCodec: CodecJSON},
		pipe:  pipe,
		store: reservedStoreName,
	}}
}

func (r *ReservedTable) Get(key string) (any, error) {
	return r.t.Get(key)
}

// GetOr returns def when the key is absent; a nil default is legal.
func (r *ReservedTable) GetOr(key string, def any) (any, error) {
	return r.t.GetOr(key, def)
}

func (r *ReservedTable) Put(key string, value any) error {
	return r.t.Put(key, value)
}

func (r *ReservedTable) Delete(key string) error {
	return r.t.Delete(key)
}

// Keys iterates string keys in ascending byte order; nil bounds are open.
func (r *ReservedTable) Keys(start, stop any) (iter.Seq[any], error) {
	return r.t.Keys(start, stop)
}

func (r *ReservedTable) Items(start, stop any) (iter.Seq2[any, any], error) {
	return r.t.Items(start, stop)
}

func (r *ReservedTable) Values(start, stop any) (iter.Seq[any], error) {
	return r.t.Values(start, stop)
}

func (r *ReservedTable) RawGet(key []byte) ([]byte, error) {
	return r.t.RawGet(key)
}

func (r *ReservedTable) RawGetOr(key, def []byte) ([]byte, error) {
	return r.t.RawGetOr(key, def)
}

func (r *ReservedTable) RawPut(key, value []byte) error {
	return r.t.RawPut(key, value)
}

func (r *ReservedTable) RawDelete(key []byte) error {
	return r.t.RawDelete(key)
}

func (r *ReservedTable) RawKeys(start, stop []byte) (iter.Seq[[]byte], error) {
	return r.t.RawKeys(start, stop)
}

func (r *ReservedTable) RawItems(start, stop []byte) (iter.Seq2[[]byte, []byte], error) {
	return r.t.RawItems(start, stop)
}

func (r *ReservedTable) RawValues(start, stop []byte) (iter.Seq[[]byte], error) {
	return r.t.RawValues(start, stop)
}
