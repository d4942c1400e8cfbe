// Package pool provides object pooling for tierdb to reduce allocations.
//
// The zero-copy codec and the index guards allocate a byte buffer for every
// write and for every guarded read. Pooling those buffers keeps the hot read
// path free of per-call allocations once the pools are warm.
//
// Pooled objects:
//   - Byte buffers (codec reservations, guard value copies)
//   - String slices (materialized ID sets)
//   - Key builders (index key construction)
//
// Usage:
//
//	buf := pool.GetByteBuffer(n)
//	defer pool.PutByteBuffer(buf)
//
//	// buf has len n and may be written freely
package pool

import (
	"sync"
)

// PoolConfig configures object pooling behavior.
type PoolConfig struct {
	// Enabled controls whether pooling is active
	Enabled bool

	// MaxSize limits the element count of pooled slices
	MaxSize int

	// MaxBufferSize limits the capacity of pooled byte buffers
	MaxBufferSize int
}

var globalConfig = PoolConfig{
	Enabled:       true,
	MaxSize:       1000,
	MaxBufferSize: 1 << 20,
}

// Configure sets global pool configuration.
// Should be called early during initialization.
func Configure(config PoolConfig) {
	if config.MaxBufferSize <= 0 {
		config.MaxBufferSize = 1 << 20
	}
	globalConfig = config
	initPools()
}

// IsEnabled returns whether pooling is active.
func IsEnabled() bool {
	return globalConfig.Enabled
}

func initPools() {
	byteBufferPool = sync.Pool{
		New: func() any {
			b := make([]byte, 0, 1024)
			return &b
		},
	}
	stringSlicePool = sync.Pool{
		New: func() any {
			return make([]string, 0, 16)
		},
	}
	keyBuilderPool = sync.Pool{
		New: func() any {
			return &KeyBuilder{buf: make([]byte, 0, 128)}
		},
	}
}

// =============================================================================
// Byte Buffer Pool
// =============================================================================

var byteBufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 1024)
		return &b
	},
}

// GetByteBuffer returns a buffer of length n from the pool.
// The contents are not zeroed. Call PutByteBuffer when done.
func GetByteBuffer(n int) []byte {
	if !globalConfig.Enabled || n > globalConfig.MaxBufferSize {
		return make([]byte, n)
	}
	bp := byteBufferPool.Get().(*[]byte)
	b := *bp
	if cap(b) < n {
		return make([]byte, n)
	}
	return b[:n]
}

// PutByteBuffer returns a buffer to the pool.
// The caller must not touch buf afterwards.
func PutByteBuffer(buf []byte) {
	if !globalConfig.Enabled || buf == nil {
		return
	}
	if cap(buf) > globalConfig.MaxBufferSize {
		return
	}
	buf = buf[:0]
	byteBufferPool.Put(&buf)
}

// =============================================================================
// String Slice Pool
// =============================================================================

var stringSlicePool = sync.Pool{
	New: func() any {
		return make([]string, 0, 16)
	},
}

// GetStringSlice returns an empty string slice from the pool.
func GetStringSlice() []string {
	if !globalConfig.Enabled {
		return make([]string, 0, 16)
	}
	return stringSlicePool.Get().([]string)[:0]
}

// PutStringSlice returns a string slice to the pool.
func PutStringSlice(s []string) {
	if !globalConfig.Enabled {
		return
	}
	if cap(s) > globalConfig.MaxSize {
		return
	}
	for i := range s {
		s[i] = ""
	}
	stringSlicePool.Put(s[:0])
}

// =============================================================================
// Key Builder Pool
// =============================================================================

// KeyBuilder assembles store keys like "prop:chat_id:chat_123" without
// intermediate string allocations.
type KeyBuilder struct {
	buf []byte
}

// WriteString appends s.
func (b *KeyBuilder) WriteString(s string) *KeyBuilder {
	b.buf = append(b.buf, s...)
	return b
}

// WriteByte appends c.
func (b *KeyBuilder) WriteByte(c byte) *KeyBuilder {
	b.buf = append(b.buf, c)
	return b
}

// Bytes returns a copy of the built key. The copy is safe to hand to badger,
// which retains keys until commit.
func (b *KeyBuilder) Bytes() []byte {
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}

// String returns the built key as a string.
func (b *KeyBuilder) String() string {
	return string(b.buf)
}

// Len returns the current length.
func (b *KeyBuilder) Len() int {
	return len(b.buf)
}

var keyBuilderPool = sync.Pool{
	New: func() any {
		return &KeyBuilder{buf: make([]byte, 0, 128)}
	},
}

// GetKeyBuilder returns an empty key builder from the pool.
func GetKeyBuilder() *KeyBuilder {
	if !globalConfig.Enabled {
		return &KeyBuilder{buf: make([]byte, 0, 128)}
	}
	b := keyBuilderPool.Get().(*KeyBuilder)
	b.buf = b.buf[:0]
	return b
}

// PutKeyBuilder returns a key builder to the pool.
func PutKeyBuilder(b *KeyBuilder) {
	if !globalConfig.Enabled || b == nil {
		return
	}
	if cap(b.buf) > 4096 {
		return
	}
	keyBuilderPool.Put(b)
}
