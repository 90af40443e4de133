package tabula

import (
	"fmt"
	"sync"
)

// The codec registry is process-wide: plugins are stateless function pairs,
// so sharing them across every open database is intentional and safe.
// Loaders run at most once per tag; a failed load is retried on the next
// resolution rather than cached.
var (
	codecMu sync.Mutex

	serializers = make(map[string]*Serializer)
	compressors = make(map[string]*Compressor)

	serializerLoaders = map[string]func() (*Serializer, error){
		CodecJSON:    loadJSON,
		CodecMsgpack: loadMsgpack,
		CodecCBOR:    loadCBOR,
		CodecYAML:    loadYAML,
		CodecStr:     loadStr,
	}
	compressorLoaders = map[string]func() (*Compressor, error){
		CodecZlib: loadZlib,
		CodecGzip: loadGzip,
		CodecZstd: loadZstd,
		CodecLZ4:  loadLZ4,
	}
)

// RegisterSerializer makes a custom serializer resolvable under its tag,
// replacing any previous registration.
func RegisterSerializer(s *Serializer) {
	if s.Tag == "" || s.Serialize == nil || s.Deserialize == nil {
		panic("tabula: RegisterSerializer: incomplete serializer")
	}
	codecMu.Lock()
	defer codecMu.Unlock()
	serializers[s.Tag] = s
}

// RegisterCompressor makes a custom compressor resolvable under its tag,
// replacing any previous registration.
func RegisterCompressor(c *Compressor) {
	if c.Tag == "" || c.Compress == nil || c.Decompress == nil {
		panic("tabula: RegisterCompressor: incomplete compressor")
	}
	codecMu.Lock()
	defer codecMu.Unlock()
	compressors[c.Tag] = c
}

// resolveSerializer resolves a non-empty tag, loading the plugin on first
// use. The empty tag means identity and must be handled by the caller.
func resolveSerializer(tag string) (*Serializer, error) {
	codecMu.Lock()
	defer codecMu.Unlock()
	if s := serializers[tag]; s != nil {
		return s, nil
	}
	load := serializerLoaders[tag]
	if load == nil {
		return nil, fmt.Errorf("%w: serializer %q", ErrUnknownFormat, tag)
	}
	s, err := load()
	if err != nil {
		return nil, fmt.Errorf("%w: serializer %q: %v", ErrPluginUnavailable, tag, err)
	}
	serializers[tag] = s
	return s, nil
}

func resolveCompressor(tag string) (*Compressor, error) {
	codecMu.Lock()
	defer codecMu.Unlock()
	if c := compressors[tag]; c != nil {
		return c, nil
	}
	load := compressorLoaders[tag]
	if load == nil {
		return nil, fmt.Errorf("%w: compressor %q", ErrUnknownFormat, tag)
	}
	c, err := load()
	if err != nil {
		return nil, fmt.Errorf("%w: compressor %q: %v", ErrPluginUnavailable, tag, err)
	}
	compressors[tag] = c
	return c, nil
}
