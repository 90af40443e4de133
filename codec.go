package tabula

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/goccy/go-yaml"
	kgzip "github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// Tags of the built-in codecs.
const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
	CodecCBOR    = "cbor"
	CodecYAML    = "yaml"
	CodecStr     = "str"

	CodecZlib = "zlib"
	CodecGzip = "gzip"
	CodecZstd = "zstd"
	CodecLZ4  = "lz4"
)

// Serializer is a pure pair of functions turning logical values into byte
// strings and back. Serializers are shared by every table configured with
// the same tag and must be stateless.
type Serializer struct {
	Tag         string
	Serialize   func(v any) ([]byte, error)
	Deserialize func(data []byte) (any, error)
}

// Compressor is a pure pair of functions compressing and decompressing byte
// strings. Like serializers, compressors are shared and must be stateless.
type Compressor struct {
	Tag        string
	Compress   func(data []byte) ([]byte, error)
	Decompress func(data []byte) ([]byte, error)
}

func loadJSON() (*Serializer, error) {
	return &Serializer{
		Tag:       CodecJSON,
		Serialize: func(v any) ([]byte, error) { return json.Marshal(v) },
		Deserialize: func(data []byte) (any, error) {
			var v any
			err := json.Unmarshal(data, &v)
			return v, err
		},
	}, nil
}

func loadMsgpack() (*Serializer, error) {
	return &Serializer{
		Tag:       CodecMsgpack,
		Serialize: func(v any) ([]byte, error) { return msgpack.Marshal(v) },
		Deserialize: func(data []byte) (any, error) {
			var v any
			err := msgpack.Unmarshal(data, &v)
			return v, err
		},
	}, nil
}

func loadCBOR() (*Serializer, error) {
	// Core deterministic encoding so identical values always produce
	// identical bytes.
	enc, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	// String-keyed maps on decode, matching the other serializers.
	dec, err := cbor.DecOptions{DefaultMapType: reflect.TypeOf(map[string]any(nil))}.DecMode()
	if err != nil {
		return nil, err
	}
	return &Serializer{
		Tag:       CodecCBOR,
		Serialize: func(v any) ([]byte, error) { return enc.Marshal(v) },
		Deserialize: func(data []byte) (any, error) {
			var v any
			err := dec.Unmarshal(data, &v)
			return v, err
		},
	}, nil
}

func loadYAML() (*Serializer, error) {
	return &Serializer{
		Tag:       CodecYAML,
		Serialize: func(v any) ([]byte, error) { return yaml.Marshal(v) },
		Deserialize: func(data []byte) (any, error) {
			var v any
			err := yaml.Unmarshal(data, &v)
			return v, err
		},
	}, nil
}

func loadStr() (*Serializer, error) {
	return &Serializer{
		Tag: CodecStr,
		Serialize: func(v any) ([]byte, error) {
			switch s := v.(type) {
			case string:
				return []byte(s), nil
			case []byte:
				return s, nil
			default:
				return nil, fmt.Errorf("str codec: expected string, got %T", v)
			}
		},
		Deserialize: func(data []byte) (any, error) {
			return string(data), nil
		},
	}, nil
}

func loadZlib() (*Compressor, error) {
	return &Compressor{
		Tag: CodecZlib,
		Compress: func(data []byte) ([]byte, error) {
			var buf bytes.Buffer
			w := zlib.NewWriter(&buf)
			if _, err := w.Write(data); err != nil {
				return nil, err
			}
			if err := w.Close(); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
		Decompress: func(data []byte) ([]byte, error) {
			r, err := zlib.NewReader(bytes.NewReader(data))
			if err != nil {
				return nil, err
			}
			defer r.Close()
			return io.ReadAll(r)
		},
	}, nil
}

func loadGzip() (*Compressor, error) {
	return &Compressor{
		Tag: CodecGzip,
		Compress: func(data []byte) ([]byte, error) {
			var buf bytes.Buffer
			w := kgzip.NewWriter(&buf)
			if _, err := w.Write(data); err != nil {
				return nil, err
			}
			if err := w.Close(); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
		Decompress: func(data []byte) ([]byte, error) {
			r, err := kgzip.NewReader(bytes.NewReader(data))
			if err != nil {
				return nil, err
			}
			defer r.Close()
			return io.ReadAll(r)
		},
	}, nil
}

func loadZstd() (*Compressor, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return &Compressor{
		Tag: CodecZstd,
		Compress: func(data []byte) ([]byte, error) {
			return enc.EncodeAll(data, nil), nil
		},
		Decompress: func(data []byte) ([]byte, error) {
			return dec.DecodeAll(data, nil)
		},
	}, nil
}

func loadLZ4() (*Compressor, error) {
	return &Compressor{
		Tag: CodecLZ4,
		Compress: func(data []byte) ([]byte, error) {
			var buf bytes.Buffer
			w := lz4.NewWriter(&buf)
			if _, err := w.Write(data); err != nil {
				return nil, err
			}
			if err := w.Close(); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
		Decompress: func(data []byte) ([]byte, error) {
			r := lz4.NewReader(bytes.NewReader(data))
			return io.ReadAll(r)
		},
	}, nil
}
