/*
Package tabula implements typed, dict-like tables on top of an embedded
ordered key-value store (in this case, on top of Bolt).

Each table pairs an ordered byte-string namespace with a codec pipeline:
an optional key serializer, an optional value serializer, and an optional
value compressor. The pipeline is resolved once when the table is opened
and is applied transparently by Get/Put/Delete and the range iterators,
so callers work with logical keys and values while the store only ever
sees byte strings.

# Metadata

A database remembers its tables. The schema record (database name,
version, and the codec configuration of every table) is stored as a JSON
document under a reserved sentinel key in the reserved namespace, and is
reconciled with the in-memory table set every time the database is
opened. The record is rewritten only when it has actually changed: table
creation and removal mark it dirty, and the next flush (table creation,
Sync, or Close) persists it. A table handle returned to the caller is
therefore durably recorded no later than the next successful Sync or
Close.

# Codecs

Serializers and compressors are identified by short string tags ("json",
"msgpack", "cbor", "yaml", "str"; "zlib", "gzip", "zstd", "lz4") and are
loaded lazily, once per process, the first time a tag is resolved. A tag
with no registered loader fails with ErrUnknownFormat; a loader that
cannot initialize its codec fails with ErrPluginUnavailable, so callers
can tell "format not recognized" apart from "format not supported by
this build". Custom codecs can be added with RegisterSerializer and
RegisterCompressor.

# Ordering

Range iteration is in ascending byte-lexicographic order of the encoded
key. When a key serializer does not preserve logical ordering, the
iteration order follows the encoded form, not the logical one.

# Concurrency

Every operation, including each individual range scan, runs inside its
own scoped storage transaction that is released on all exit paths.
Codec plugins are pure function pairs shared process-wide. A DB or Table
handle is not safe for concurrent mutation; concurrent readers are
bounded only by the store's own transaction model.
*/
package tabula
