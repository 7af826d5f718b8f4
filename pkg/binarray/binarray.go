// Package binarray provides binary buffer operations for reading and writing
// compiled NWScript files.
//
// All integer operations use big-endian byte order, matching the NCS format
// as written by every known NWScript compiler.
package binarray

import (
	"crypto/md5"
	"encoding/binary"
	"math"
	"os"

	"github.com/pkg/errors"
)

// Buffer wraps a byte slice with convenient read/write methods for
// big-endian integers, floats and strings.
type Buffer struct {
	Data []byte
}

// New creates a zero-filled buffer of the given size.
func New(size int) *Buffer {
	return &Buffer{Data: make([]byte, size)}
}

// FromBytes wraps an existing byte slice (no copy).
func FromBytes(data []byte) *Buffer {
	return &Buffer{Data: data}
}

// Len returns the buffer length.
func (b *Buffer) Len() int {
	return len(b.Data)
}

// Sub returns a sub-slice view (shared memory).
func (b *Buffer) Sub(offset, length int) *Buffer {
	return &Buffer{Data: b.Data[offset : offset+length]}
}

// Has reports whether n bytes starting at idx lie inside the buffer.
func (b *Buffer) Has(idx, n int) bool {
	return idx >= 0 && n >= 0 && idx+n <= len(b.Data)
}

// --- Integer read/write (big-endian) ---

// GetU8 reads a single unsigned byte.
func (b *Buffer) GetU8(idx int) byte {
	return b.Data[idx]
}

// PutU8 writes a single byte.
func (b *Buffer) PutU8(idx int, val byte) {
	b.Data[idx] = val
}

// GetU16 reads a 16-bit unsigned integer.
func (b *Buffer) GetU16(idx int) uint16 {
	return binary.BigEndian.Uint16(b.Data[idx:])
}

// GetI16 reads a 16-bit signed integer.
func (b *Buffer) GetI16(idx int) int16 {
	return int16(binary.BigEndian.Uint16(b.Data[idx:]))
}

// PutU16 writes a 16-bit integer.
func (b *Buffer) PutU16(idx int, val uint16) {
	binary.BigEndian.PutUint16(b.Data[idx:], val)
}

// GetU32 reads a 32-bit unsigned integer.
func (b *Buffer) GetU32(idx int) uint32 {
	return binary.BigEndian.Uint32(b.Data[idx:])
}

// GetI32 reads a 32-bit signed integer.
func (b *Buffer) GetI32(idx int) int32 {
	return int32(binary.BigEndian.Uint32(b.Data[idx:]))
}

// PutU32 writes a 32-bit integer.
func (b *Buffer) PutU32(idx int, val uint32) {
	binary.BigEndian.PutUint32(b.Data[idx:], val)
}

// GetF32 reads an IEEE 754 single precision float.
func (b *Buffer) GetF32(idx int) float32 {
	return math.Float32frombits(b.GetU32(idx))
}

// PutF32 writes an IEEE 754 single precision float.
func (b *Buffer) PutF32(idx int, val float32) {
	b.PutU32(idx, math.Float32bits(val))
}

// --- String read/write ---

// Read returns a string of length bytes starting at idx.
func (b *Buffer) Read(idx, length int) string {
	return string(b.Data[idx : idx+length])
}

// Write copies string data into the buffer at idx.
func (b *Buffer) Write(idx int, s string) {
	copy(b.Data[idx:], []byte(s))
}

// --- File I/O ---

// ReadFile reads an entire file into a new Buffer.
func ReadFile(fname string) (*Buffer, error) {
	data, err := os.ReadFile(fname)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", fname)
	}
	return &Buffer{Data: data}, nil
}

// --- Hashing ---

// Digest returns the MD5 digest of the buffer contents.
func (b *Buffer) Digest() [16]byte {
	return md5.Sum(b.Data)
}
