package generators

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-datagen/pkg/finalize"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
	"github.com/ekaya-inc/ekaya-datagen/pkg/randstream"
)

// IDAllocator hands out unique "PREFIX_XXXXXXXX" identifiers built from
// reproducible UUIDs. A short-form collision is redrawn.
type IDAllocator struct {
	rng    *randstream.Stream
	prefix string
	width  int
	upper  bool
	seen   map[string]struct{}
}

// NewIDAllocator returns an allocator of 8 uppercase hex digits.
func NewIDAllocator(rng *randstream.Stream, prefix string) *IDAllocator {
	return &IDAllocator{rng: rng, prefix: prefix, width: 8, upper: true, seen: make(map[string]struct{})}
}

// NewHexIDAllocator returns an allocator of width lowercase hex digits, at
// most 32.
func NewHexIDAllocator(rng *randstream.Stream, prefix string, width int) *IDAllocator {
	return &IDAllocator{rng: rng, prefix: prefix, width: min(width, 32), seen: make(map[string]struct{})}
}

func (a *IDAllocator) Next() string {
	for {
		hex := strings.ReplaceAll(NewUUID(a.rng).String(), "-", "")[:a.width]
		if a.upper {
			hex = strings.ToUpper(hex)
		}
		id := a.prefix + "_" + hex
		if _, dup := a.seen[id]; !dup {
			a.seen[id] = struct{}{}
			return id
		}
	}
}

// NewUUID draws a version 4 UUID from the stream.
func NewUUID(rng *randstream.Stream) uuid.UUID {
	id, err := uuid.NewRandomFromReader(rng)
	if err != nil {
		// randstream.Stream.Read never fails
		panic(err)
	}
	return id
}

// Sequence produces zero-padded sequential identifiers such as "PROD0001".
type Sequence struct {
	Prefix string
	Width  int
	n      int
}

func (s *Sequence) Next() string {
	s.n++
	return fmt.Sprintf("%s%0*d", s.Prefix, s.Width, s.n)
}

// Finish finalizes every table in ds and returns it with the run error, so
// callers receive the tables completed before a failing stage.
func Finish(ds *models.Dataset, runErr error) (*models.Dataset, error) {
	if err := finalize.Dataset(ds); err != nil {
		return ds, errors.Join(runErr, fmt.Errorf("finalize %s: %w", ds.Generator, err))
	}
	return ds, runErr
}
