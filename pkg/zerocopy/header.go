package zerocopy

import (
	"encoding/binary"
	"hash/crc32"
)

// Record header layout, little-endian:
//
//	offset 0  magic       u32 = 0x5A5AAA55
//	offset 4  version     u8  = 1
//	offset 5  pad_len     u8
//	offset 6  reserved    u16 = 0
//	offset 8  payload_len u32
//	offset 12 crc32c      u32
//
// The payload starts at HeaderSize+pad_len. pad_len bytes are zero.
const (
	Magic        uint32 = 0x5A5AAA55
	Version      uint8  = 1
	HeaderSize          = 16
	DefaultAlign        = 8
	maxPad              = 255
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Checksum returns the CRC32C of p.
func Checksum(p []byte) uint32 {
	return crc32.Checksum(p, castagnoli)
}

// Header is the decoded form of the 16-byte record header.
type Header struct {
	Magic      uint32
	Version    uint8
	PadLen     uint8
	Reserved   uint16
	PayloadLen uint32
	CRC32      uint32
}

func (h Header) put(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:4], h.Magic)
	dst[4] = h.Version
	dst[5] = h.PadLen
	binary.LittleEndian.PutUint16(dst[6:8], h.Reserved)
	binary.LittleEndian.PutUint32(dst[8:12], h.PayloadLen)
	binary.LittleEndian.PutUint32(dst[12:16], h.CRC32)
}

// ParseHeader decodes and validates the header at the start of value.
func ParseHeader(value []byte) (Header, error) {
	if len(value) < HeaderSize {
		return Header{}, invalid("value shorter than header")
	}
	h := Header{
		Magic:      binary.LittleEndian.Uint32(value[0:4]),
		Version:    value[4],
		PadLen:     value[5],
		Reserved:   binary.LittleEndian.Uint16(value[6:8]),
		PayloadLen: binary.LittleEndian.Uint32(value[8:12]),
		CRC32:      binary.LittleEndian.Uint32(value[12:16]),
	}
	if h.Magic != Magic {
		return Header{}, invalid("bad magic")
	}
	if h.Version != Version {
		return Header{}, invalid("unsupported version")
	}
	return h, nil
}

// padFor returns the number of bytes to insert after a header written at
// base so that the payload lands on an align-byte boundary.
func padFor(base uintptr, align int) int {
	if align <= 1 {
		return 0
	}
	a := uintptr(align)
	return int((a - (base+HeaderSize)%a) % a)
}

// ReserveSize is the number of bytes reserved for a payload of n bytes.
func ReserveSize(n int) int {
	return HeaderSize + (DefaultAlign - 1) + n
}
