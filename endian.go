// endian.go -- endian convertors and raw slice views
//
// (c) Sudhi Herle 2018
//
// License GPLv2
//
// If you need a commercial license for this work, please contact
// the author.
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package phf

import (
	"math/bits"
	"unsafe"
)

// true on little-endian hosts; the serialized formats are defined to
// be little-endian so conversions are no-ops in the common case.
var littleEndian = func() bool {
	var x uint16 = 1
	return *(*byte)(unsafe.Pointer(&x)) == 1
}()

func toLEUint16(v uint16) uint16 {
	if littleEndian {
		return v
	}
	return bits.ReverseBytes16(v)
}

func toLEUint32(v uint32) uint32 {
	if littleEndian {
		return v
	}
	return bits.ReverseBytes32(v)
}

func toLEUint64(v uint64) uint64 {
	if littleEndian {
		return v
	}
	return bits.ReverseBytes64(v)
}

func toBEUint16(v uint16) uint16 {
	if littleEndian {
		return bits.ReverseBytes16(v)
	}
	return v
}

func toBEUint32(v uint32) uint32 {
	if littleEndian {
		return bits.ReverseBytes32(v)
	}
	return v
}

func toBEUint64(v uint64) uint64 {
	if littleEndian {
		return bits.ReverseBytes64(v)
	}
	return v
}

// The views below alias the underlying array; the caller must keep
// the source alive and unmodified for the life of the view.

func u16sToByteSlice(v []uint16) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*2)
}

func u32sToByteSlice(v []uint32) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*4)
}

func u64sToByteSlice(v []uint64) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*8)
}

func bsToUint16Slice(b []byte) []uint16 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*uint16)(unsafe.Pointer(&b[0])), len(b)/2)
}

func bsToUint32Slice(b []byte) []uint32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), len(b)/4)
}

func bsToUint64Slice(b []byte) []uint64 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&b[0])), len(b)/8)
}

// zero-copy view of a string's bytes; the hash functions only ever
// read from it.
func stringBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
