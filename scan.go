package tabula

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"go.etcd.io/bbolt"
)

const debugLogRawScans = false

// rawBounds is a half-open range over encoded keys: start is inclusive,
// stop is exclusive, nil means unbounded. Iteration is always in ascending
// byte-lexicographic order because that is the only order the store knows.
type rawBounds struct {
	start []byte
	stop  []byte
}

func checkRawBound(b []byte) error {
	if b != nil && len(b) == 0 {
		return fmt.Errorf("%w: empty range bound", ErrInvalidKey)
	}
	return nil
}

func (r rawBounds) validate() error {
	if err := checkRawBound(r.start); err != nil {
		return err
	}
	return checkRawBound(r.stop)
}

// scan walks the sub-store within bounds, calling yield for every pair
// until yield returns false or the range is exhausted. The walk runs in a
// single read transaction that is released on every exit path. The byte
// slices passed to yield are only valid during the call.
func (e *engine) scan(store []byte, r rawBounds, yield func(k, v []byte) bool) error {
	err := e.bdb.View(func(btx *bbolt.Tx) error {
		b := btx.Bucket(store)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		var k, v []byte
		if r.start != nil {
			k, v = c.Seek(r.start)
		} else {
			k, v = c.First()
		}
		for k != nil {
			if r.stop != nil && bytes.Compare(k, r.stop) >= 0 {
				break
			}
			if debugLogRawScans {
				slog.LogAttrs(context.Background(), slog.LevelDebug, "scan",
					hexAttr("key", k), hexAttr("val", v))
			}
			if !yield(k, v) {
				break
			}
			k, v = c.Next()
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tabula: scan: %w", err)
	}
	return nil
}
