package tabula

import (
	"bytes"
	"fmt"
)

// valueShape selects one of the four mutually exclusive value transforms.
type valueShape int

const (
	shapeRaw               valueShape = iota // passthrough bytes
	shapeCompress                            // compress only
	shapeSerialize                           // serialize only
	shapeSerializeCompress                   // serialize, then compress
)

// pipeline holds the codec functions resolved for one table. A nil key
// serializer means keys are raw byte strings. The value side is a switch
// over valueShape rather than composed closures, so the four cases stay
// explicit.
type pipeline struct {
	key   *Serializer
	shape valueShape
	ser   *Serializer
	comp  *Compressor
}

func newPipeline(keyTag, valueTag, compressTag string) (*pipeline, error) {
	p := &pipeline{}
	var err error
	if keyTag != "" {
		if p.key, err = resolveSerializer(keyTag); err != nil {
			return nil, err
		}
	}
	if valueTag != "" {
		if p.ser, err = resolveSerializer(valueTag); err != nil {
			return nil, err
		}
	}
	if compressTag != "" {
		if p.comp, err = resolveCompressor(compressTag); err != nil {
			return nil, err
		}
	}
	switch {
	case p.ser != nil && p.comp != nil:
		p.shape = shapeSerializeCompress
	case p.ser == nil && p.comp != nil:
		p.shape = shapeCompress
	case p.ser != nil && p.comp == nil:
		p.shape = shapeSerialize
	default:
		p.shape = shapeRaw
	}
	return p, nil
}

// encodeKey turns a logical key into the stored byte string. Empty encoded
// keys are rejected because the store cannot hold them.
func (p *pipeline) encodeKey(key any) ([]byte, error) {
	var raw []byte
	if p.key == nil {
		b, ok := key.([]byte)
		if !ok {
			return nil, fmt.Errorf("%w: table has raw keys, got %T", ErrInvalidKey, key)
		}
		raw = b
	} else {
		b, err := p.key.Serialize(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		raw = b
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	return raw, nil
}

// decodeKey recovers the logical key from a stored byte string during range
// scans. With no key serializer the bytes are copied: the input aliases
// cursor memory that is only valid inside the scan transaction.
func (p *pipeline) decodeKey(raw []byte) (any, error) {
	if p.key == nil {
		return bytes.Clone(raw), nil
	}
	return p.key.Deserialize(raw)
}

func (p *pipeline) encodeValue(v any) ([]byte, error) {
	switch p.shape {
	case shapeRaw:
		b, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("tabula: table stores raw values, got %T", v)
		}
		return b, nil
	case shapeCompress:
		b, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("tabula: table compresses raw values, got %T", v)
		}
		return p.comp.Compress(b)
	case shapeSerialize:
		return p.ser.Serialize(v)
	default: // shapeSerializeCompress
		b, err := p.ser.Serialize(v)
		if err != nil {
			return nil, err
		}
		return p.comp.Compress(b)
	}
}

// decodeValue turns stored bytes back into the logical value. The raw
// shape copies its input for the same reason decodeKey does.
func (p *pipeline) decodeValue(raw []byte) (any, error) {
	switch p.shape {
	case shapeRaw:
		return bytes.Clone(raw), nil
	case shapeCompress:
		return p.comp.Decompress(raw)
	case shapeSerialize:
		return p.ser.Deserialize(raw)
	default: // shapeSerializeCompress: decompress first, then deserialize
		b, err := p.comp.Decompress(raw)
		if err != nil {
			return nil, err
		}
		return p.ser.Deserialize(b)
	}
}

// encodeBound encodes an optional range bound: nil means unbounded
// (including a typed nil byte slice), an empty encoded bound is invalid.
func (p *pipeline) encodeBound(bound any) ([]byte, error) {
	if bound == nil {
		return nil, nil
	}
	if b, ok := bound.([]byte); ok && b == nil {
		return nil, nil
	}
	return p.encodeKey(bound)
}
