// utils_test.go -- test suite for the bit and prime helpers
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
	"testing"
)

func TestNextPow2(t *testing.T) {
	assert := newAsserter(t)

	cases := []struct {
		in, out uint64
	}{
		{1, 1},
		{2, 2},
		{3, 4},
		{5, 8},
		{127, 128},
		{128, 128},
		{129, 256},
		{1 << 31, 1 << 31},
		{(1 << 31) + 1, 1 << 32},
	}

	for _, c := range cases {
		v := nextpow2(c.in)
		assert(v == c.out, "nextpow2(%d): exp %d, saw %d", c.in, c.out, v)
	}
}

func TestPrimes(t *testing.T) {
	assert := newAsserter(t)

	primes := []uint64{2, 3, 5, 7, 11, 13, 101, 7919, 104729}
	for _, p := range primes {
		assert(IsPrime(p), "%d reported composite", p)
	}

	composites := []uint64{0, 1, 4, 9, 15, 100, 7917, 104730}
	for _, c := range composites {
		assert(!IsPrime(c), "%d reported prime", c)
	}

	cases := []struct {
		in, out uint64
	}{
		{0, 2},
		{2, 2},
		{3, 3},
		{4, 5},
		{90, 97},
		{7918, 7919},
	}
	for _, c := range cases {
		v := NextPrime(c.in)
		assert(v == c.out, "NextPrime(%d): exp %d, saw %d", c.in, c.out, v)
	}

	// prime-dimensioned tables are the intended use
	n := uint64(1000)
	m := NextPrime(n * 100 / 80)
	assert(m >= 1250, "prime table size %d too small", m)
	assert(IsPrime(m), "table size %d not prime", m)
}
