/*
Package container implements the collision-resilient "list at an address"
pattern used by every family's state containers: several
unrelated entities can share a single 70-character address, so every read
yields a sorted, length-delimited list of items from which callers select
by natural key, and every write merges into that list before re-sorting
and re-serializing.

The wire format is a simple length-delimited framing, hand-written rather
than generated by protoc (no protobuf toolchain is invoked in this repo),
but it is laid out the way a `{Entity}List { repeated Entity items }`
message would be: a big-endian uint32 item count, followed by that many
(uint32 length, payload) pairs. Per-entity payload encoding is left to the
entity type via encoding.BinaryMarshaler/Unmarshaler.

An absent address is not an error: it decodes to an empty list. A
container with zero items is equivalent to an absent address.
*/
package container

import (
	"bytes"
	"encoding"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// Item is any entity storable in a state container: it must encode to and
// from bytes, and expose the natural key containers sort and merge by.
type Item interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
	NaturalKey() string
}

// Encode serializes items as a sorted {Entity}List. It does not mutate the
// input slice; callers that want a merged write should use Merge first.
func Encode[T Item](items []T) ([]byte, error) {
	sorted := make([]T, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].NaturalKey() < sorted[j].NaturalKey() })

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(sorted))); err != nil {
		return nil, fmt.Errorf("container: write count: %w", err)
	}
	for _, item := range sorted {
		payload, err := item.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("container: marshal item %q: %w", item.NaturalKey(), err)
		}
		if err := binary.Write(&buf, binary.BigEndian, uint32(len(payload))); err != nil {
			return nil, fmt.Errorf("container: write item length: %w", err)
		}
		buf.Write(payload)
	}
	return buf.Bytes(), nil
}

// Decode deserializes a {Entity}List. An absent (nil or empty) address
// decodes to an empty, non-nil slice rather than an error. newItem must
// return a fresh zero-value T on each call; deserialization failure of any
// item is fatal (the caller should surface it as txerror.Internal).
func Decode[T Item](data []byte, newItem func() T) ([]T, error) {
	if len(data) == 0 {
		return []T{}, nil
	}
	r := bytes.NewReader(data)

	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("container: read count: %w", err)
	}

	items := make([]T, 0, count)
	for i := uint32(0); i < count; i++ {
		var itemLen uint32
		if err := binary.Read(r, binary.BigEndian, &itemLen); err != nil {
			return nil, fmt.Errorf("container: read item %d length: %w", i, err)
		}
		payload := make([]byte, itemLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("container: read item %d payload: %w", i, err)
		}
		item := newItem()
		if err := item.UnmarshalBinary(payload); err != nil {
			return nil, fmt.Errorf("container: unmarshal item %d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// Find returns the item with the given natural key, if present.
func Find[T Item](items []T, key string) (T, bool) {
	for _, item := range items {
		if item.NaturalKey() == key {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Merge returns a new list with updated inserted in sorted position,
// replacing any existing item sharing its natural key. The input slice is
// not mutated.
func Merge[T Item](items []T, updated T) []T {
	key := updated.NaturalKey()
	out := make([]T, 0, len(items)+1)
	inserted := false
	for _, item := range items {
		if item.NaturalKey() == key {
			out = append(out, updated)
			inserted = true
			continue
		}
		out = append(out, item)
	}
	if !inserted {
		out = append(out, updated)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NaturalKey() < out[j].NaturalKey() })
	return out
}

// Remove returns a new list with the item matching key removed, and
// whether a removal actually occurred.
func Remove[T Item](items []T, key string) ([]T, bool) {
	out := make([]T, 0, len(items))
	removed := false
	for _, item := range items {
		if item.NaturalKey() == key {
			removed = true
			continue
		}
		out = append(out, item)
	}
	return out, removed
}

// Unique reports whether every item's natural key appears exactly once and
// the list is sorted by natural key — the invariant every container read
// from state must satisfy.
func Unique[T Item](items []T) bool {
	for i := 1; i < len(items); i++ {
		if items[i-1].NaturalKey() >= items[i].NaturalKey() {
			return false
		}
	}
	return true
}
