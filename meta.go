package tabula

import (
	"encoding/json"
	"fmt"
)

// MetaKey is the reserved sentinel key inside the reserved store that holds
// the JSON-encoded database metadata record. Overwriting it through the raw
// reserved-table operations corrupts the database.
const MetaKey = "__TABULA_META__"

const currentSchemaVersion = 1

// TableMeta is the immutable codec configuration of one table. Once a
// table is created its metadata never changes; reopening must resolve to a
// configuration equal to the stored one.
type TableMeta struct {
	Name        string `json:"name"`
	KeyCodec    string `json:"key_codec,omitempty"`
	ValueCodec  string `json:"value_codec,omitempty"`
	Compression string `json:"compression,omitempty"`
}

func (m TableMeta) equalConfig(o TableMeta) bool {
	return m.KeyCodec == o.KeyCodec && m.ValueCodec == o.ValueCodec && m.Compression == o.Compression
}

// databaseMeta is the database-level schema record. It lives in memory for
// the lifetime of an open DB; the dirty flag on DB tracks whether it has
// diverged from the persisted copy.
type databaseMeta struct {
	Name          string               `json:"name,omitempty"`
	Version       int                  `json:"version,omitempty"`
	SchemaVersion int                  `json:"schema_version"`
	Tables        map[string]TableMeta `json:"tables"`
}

func newDatabaseMeta(name string, version int) *databaseMeta {
	return &databaseMeta{
		Name:          name,
		Version:       version,
		SchemaVersion: currentSchemaVersion,
		Tables:        make(map[string]TableMeta),
	}
}

// loadDatabaseMeta reads and validates the metadata record of an existing
// database. wantName and wantVersion are checked only when non-zero.
func loadDatabaseMeta(eng *engine, wantName string, wantVersion int) (*databaseMeta, error) {
	raw, found, err := eng.get(reservedStoreName, []byte(MetaKey))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: not a tabula database: %s", ErrInvalidDatabase, eng.path)
	}
	var m databaseMeta
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: corrupted metadata: %v", ErrInvalidDatabase, err)
	}
	if m.Tables == nil {
		m.Tables = make(map[string]TableMeta)
	}
	if wantName != "" && m.Name != wantName {
		return nil, fmt.Errorf("%w: name mismatch: expected %q, got %q", ErrInvalidDatabase, wantName, m.Name)
	}
	if wantVersion != 0 && m.Version != wantVersion {
		return nil, fmt.Errorf("%w: version mismatch: expected %d, got %d", ErrInvalidDatabase, wantVersion, m.Version)
	}
	return &m, nil
}

// saveDatabaseMeta persists the record under the sentinel key. The record
// is always JSON regardless of any table's codec configuration.
func saveDatabaseMeta(eng *engine, m *databaseMeta) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("tabula: encoding metadata: %w", err)
	}
	return eng.put(reservedStoreName, []byte(MetaKey), raw)
}
