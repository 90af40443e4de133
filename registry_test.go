package tabula

import (
	"errors"
	"sync"
	"testing"
)

func TestResolveSerializer(t *testing.T) {
	for _, tag := range []string{CodecJSON, CodecMsgpack, CodecCBOR, CodecYAML, CodecStr} {
		s, err := resolveSerializer(tag)
		if err != nil {
			t.Fatalf("resolveSerializer(%q): %v", tag, err)
		}
		if s.Tag != tag {
			t.Fatalf("resolveSerializer(%q).Tag = %q", tag, s.Tag)
		}
	}

	s1, _ := resolveSerializer(CodecJSON)
	s2, _ := resolveSerializer(CodecJSON)
	if s1 != s2 {
		t.Fatalf("resolveSerializer is not memoized")
	}
}

func TestResolveCompressor(t *testing.T) {
	for _, tag := range []string{CodecZlib, CodecGzip, CodecZstd, CodecLZ4} {
		c, err := resolveCompressor(tag)
		if err != nil {
			t.Fatalf("resolveCompressor(%q): %v", tag, err)
		}
		if c.Tag != tag {
			t.Fatalf("resolveCompressor(%q).Tag = %q", tag, c.Tag)
		}
	}
}

func TestResolveUnknownFormat(t *testing.T) {
	_, err := resolveSerializer("bogus")
	if !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("err = %v, wanted ErrUnknownFormat", err)
	}
	if errors.Is(err, ErrPluginUnavailable) {
		t.Fatalf("unknown format must not be reported as unavailable")
	}
	_, err = resolveCompressor("bogus")
	if !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("err = %v, wanted ErrUnknownFormat", err)
	}
}

func TestResolvePluginUnavailable(t *testing.T) {
	tag := "broken-test-codec"
	codecMu.Lock()
	serializerLoaders[tag] = func() (*Serializer, error) {
		return nil, errors.New("dependency missing")
	}
	codecMu.Unlock()
	defer func() {
		codecMu.Lock()
		delete(serializerLoaders, tag)
		codecMu.Unlock()
	}()

	_, err := resolveSerializer(tag)
	if !errors.Is(err, ErrPluginUnavailable) {
		t.Fatalf("err = %v, wanted ErrPluginUnavailable", err)
	}
	if errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("unavailable plugin must not be reported as unknown")
	}
}

func TestRegisterSerializer(t *testing.T) {
	custom := &Serializer{
		Tag:         "test-upper",
		Serialize:   func(v any) ([]byte, error) { return []byte(v.(string)), nil },
		Deserialize: func(data []byte) (any, error) { return string(data), nil },
	}
	RegisterSerializer(custom)
	got, err := resolveSerializer("test-upper")
	if err != nil {
		t.Fatalf("resolveSerializer: %v", err)
	}
	if got != custom {
		t.Fatalf("resolveSerializer returned %v, wanted the registered plugin", got)
	}
}

func TestConcurrentResolution(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := resolveSerializer(CodecMsgpack); err != nil {
				t.Errorf("resolveSerializer: %v", err)
			}
			if _, err := resolveCompressor(CodecZstd); err != nil {
				t.Errorf("resolveCompressor: %v", err)
			}
		}()
	}
	wg.Wait()
}
