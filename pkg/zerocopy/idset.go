package zerocopy

import (
	"encoding/binary"
	"iter"
	"math"
	"sort"
	"strings"
	"unsafe"
)

// ID set archive layout, little-endian:
//
//	count   u32
//	offsets (count+1) x u32, relative to the start of data
//	data    concatenated member bytes, sorted ascending, no duplicates
//
// Offsets are read with encoding/binary, so the archive has no alignment
// requirement beyond a byte.

// IDSet is the archive for sorted, deduplicated string sets.
type IDSet struct{}

// Align implements Archive.
func (IDSet) Align() int { return 1 }

// Access implements Archive.
func (IDSet) Access(payload []byte) (IDSetView, error) {
	if len(payload) < 4 {
		return IDSetView{}, accessErr("id set shorter than count")
	}
	count := int(binary.LittleEndian.Uint32(payload))
	tableEnd := 4 + 4*(count+1)
	if count < 0 || tableEnd > len(payload) || tableEnd < 4 {
		return IDSetView{}, accessErr("id set offset table out of bounds")
	}
	v := IDSetView{
		count:   count,
		offsets: payload[4:tableEnd],
		data:    payload[tableEnd:],
	}
	prev := uint32(0)
	for i := 0; i <= count; i++ {
		off := v.offset(i)
		if off < prev || int(off) > len(v.data) {
			return IDSetView{}, accessErr("id set offsets not monotonic")
		}
		prev = off
	}
	return v, nil
}

// IDSetView is a read-only view over an archived ID set. Strings returned by
// At and All alias the underlying bytes and are valid only while those bytes
// are.
type IDSetView struct {
	count   int
	offsets []byte
	data    []byte
}

func (v IDSetView) offset(i int) uint32 {
	return binary.LittleEndian.Uint32(v.offsets[4*i:])
}

// Len returns the number of members in O(1).
func (v IDSetView) Len() int {
	return v.count
}

// At returns member i without allocating.
func (v IDSetView) At(i int) string {
	start, end := v.offset(i), v.offset(i+1)
	if start == end {
		return ""
	}
	b := v.data[start:end]
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// Search returns the position of id, or its insertion point and false.
func (v IDSetView) Search(id string) (int, bool) {
	i := sort.Search(v.count, func(i int) bool { return v.At(i) >= id })
	return i, i < v.count && v.At(i) == id
}

// Contains reports membership by binary search.
func (v IDSetView) Contains(id string) bool {
	_, ok := v.Search(id)
	return ok
}

// All iterates members in order without allocating.
func (v IDSetView) All() iter.Seq[string] {
	return func(yield func(string) bool) {
		for i := 0; i < v.count; i++ {
			if !yield(v.At(i)) {
				return
			}
		}
	}
}

// ToOwned materializes the set into freshly allocated strings.
func (v IDSetView) ToOwned() []string {
	out := make([]string, v.count)
	for i := range out {
		out[i] = strings.Clone(v.At(i))
	}
	return out
}

// borrowed returns the members as aliasing strings.
func (v IDSetView) borrowed() []string {
	out := make([]string, v.count)
	for i := range out {
		out[i] = v.At(i)
	}
	return out
}

// WithInsert returns the encoding of v plus id. changed is false when id is
// already a member, in which case encoded is nil.
func (v IDSetView) WithInsert(id string) (encoded []byte, changed bool, err error) {
	i, ok := v.Search(id)
	if ok {
		return nil, false, nil
	}
	members := v.borrowed()
	members = append(members, "")
	copy(members[i+1:], members[i:])
	members[i] = id
	encoded, err = encodeSorted(members)
	return encoded, err == nil, err
}

// WithRemove returns the encoding of v minus id. When the result is empty,
// encoded is nil and empty is true. changed is false when id was absent.
func (v IDSetView) WithRemove(id string) (encoded []byte, changed, empty bool, err error) {
	i, ok := v.Search(id)
	if !ok {
		return nil, false, v.count == 0, nil
	}
	if v.count == 1 {
		return nil, true, true, nil
	}
	members := v.borrowed()
	members = append(members[:i], members[i+1:]...)
	encoded, err = encodeSorted(members)
	return encoded, err == nil, false, err
}

// EncodeIDSet sorts and deduplicates ids and encodes them as an ID set
// archive. ids is not modified.
func EncodeIDSet(ids []string) ([]byte, error) {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)
	out := sorted[:0]
	for i, id := range sorted {
		if i == 0 || id != sorted[i-1] {
			out = append(out, id)
		}
	}
	return encodeSorted(out)
}

func encodeSorted(members []string) ([]byte, error) {
	total := 0
	for _, m := range members {
		total += len(m)
	}
	if uint64(total) > math.MaxUint32 || uint64(len(members)) > math.MaxUint32-1 {
		return nil, serializationErr("id set too large", nil)
	}

	tableEnd := 4 + 4*(len(members)+1)
	buf := make([]byte, tableEnd+total)
	binary.LittleEndian.PutUint32(buf, uint32(len(members)))

	off := uint32(0)
	data := buf[tableEnd:]
	for i, m := range members {
		binary.LittleEndian.PutUint32(buf[4+4*i:], off)
		copy(data[off:], m)
		off += uint32(len(m))
	}
	binary.LittleEndian.PutUint32(buf[4+4*len(members):], off)
	return buf, nil
}
