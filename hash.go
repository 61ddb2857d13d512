// hash.go - universal hash family underlying the CHD construction
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
	"bytes"
	"math/bits"
)

// Key enumerates the key shapes a PHF can be built over. Integer keys
// are fed to the hash as little-endian 32-bit lanes; string and []byte
// keys are fed 4 bytes at a time.
type Key interface {
	uint32 | uint64 | string | []byte
}

// one round of MurmurHash3_x86_32
func round32(k1, h1 uint32) uint32 {
	k1 *= 0xcc9e2d51
	k1 = bits.RotateLeft32(k1, 15)
	k1 *= 0x1b873593

	h1 ^= k1
	h1 = bits.RotateLeft32(h1, 13)
	h1 = h1*5 + 0xe6546b64
	return h1
}

// final avalanche
func mix32(h1 uint32) uint32 {
	h1 ^= h1 >> 16
	h1 *= 0x85ebca6b
	h1 ^= h1 >> 13
	h1 *= 0xc2b2ae35
	h1 ^= h1 >> 16
	return h1
}

// byteRounds feeds 'p' into the accumulator 4 bytes at a time as a
// big-endian packed word. A tail of 1-3 bytes is packed into the high
// bytes of a single word (b0<<24 | b1<<16 | b2<<8) and fed as one last
// round; an empty tail is skipped. The tail packing is part of the
// hash definition - every previously built function depends on it.
func byteRounds(p []byte, h1 uint32) uint32 {
	for len(p) >= 4 {
		k1 := uint32(p[0])<<24 | uint32(p[1])<<16 | uint32(p[2])<<8 | uint32(p[3])
		h1 = round32(k1, h1)
		p = p[4:]
	}

	var k1 uint32
	switch len(p) {
	case 3:
		k1 |= uint32(p[2]) << 8
		fallthrough
	case 2:
		k1 |= uint32(p[1]) << 16
		fallthrough
	case 1:
		k1 |= uint32(p[0]) << 24
		h1 = round32(k1, h1)
	}
	return h1
}

// keyRounds feeds key 'k' into the accumulator as a sequence of 32-bit
// lanes; uint64 keys are fed low lane first.
func keyRounds[K Key](k K, h1 uint32) uint32 {
	switch k := any(k).(type) {
	case uint32:
		h1 = round32(k, h1)
	case uint64:
		h1 = round32(uint32(k), h1)
		h1 = round32(uint32(k>>32), h1)
	case string:
		h1 = byteRounds(stringBytes(k), h1)
	case []byte:
		h1 = byteRounds(k, h1)
	}
	return h1
}

// ghash is the first-level hash: it picks the bucket for key 'k'.
func ghash[K Key](k K, seed uint32) uint32 {
	return mix32(keyRounds(k, seed))
}

// fhash is the second-level hash: same construction as ghash, with the
// displacement 'd' fed as the first lane.
func fhash[K Key](d uint32, k K, seed uint32) uint32 {
	return mix32(keyRounds(k, round32(d, seed)))
}

// gmod reduces ghash modulo the bucket count 'r'. When the function
// was built in pow2 mode, 'r' is a power of two and the mask is exact.
func gmod[K Key](k K, seed, r uint32, pow2 bool) uint32 {
	if pow2 {
		return ghash(k, seed) & (r - 1)
	}
	return ghash(k, seed) % r
}

// fmod reduces fhash modulo the table size 'm'.
func fmod[K Key](d uint32, k K, seed, m uint32, pow2 bool) uint32 {
	if pow2 {
		return fhash(d, k, seed) & (m - 1)
	}
	return fhash(d, k, seed) % m
}

func keyLess[K Key](a, b K) bool {
	switch x := any(a).(type) {
	case uint32:
		return x < any(b).(uint32)
	case uint64:
		return x < any(b).(uint64)
	case string:
		return x < any(b).(string)
	case []byte:
		return bytes.Compare(x, any(b).([]byte)) < 0
	}
	return false
}

func keyEqual[K Key](a, b K) bool {
	switch x := any(a).(type) {
	case uint32:
		return x == any(b).(uint32)
	case uint64:
		return x == any(b).(uint64)
	case string:
		return x == any(b).(string)
	case []byte:
		return bytes.Equal(x, any(b).([]byte))
	}
	return false
}
