// helpers_test.go - helper routines for tests
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
	"fmt"
	"math/rand"
	"runtime"
	"testing"
)

func newAsserter(t *testing.T) func(cond bool, msg string, args ...interface{}) {
	return func(cond bool, msg string, args ...interface{}) {
		if cond {
			return
		}

		_, file, line, ok := runtime.Caller(1)
		if !ok {
			file = "???"
			line = 0
		}

		s := fmt.Sprintf(msg, args...)
		t.Fatalf("%s: %d: Assertion failed: %s\n", file, line, s)
	}
}

// randKeys returns 'n' distinct uint64 keys from a seeded PRNG.
func randKeys(n int, seed int64) []uint64 {
	rng := rand.New(rand.NewSource(seed))
	keys := make([]uint64, 0, n)
	seen := make(map[uint64]bool, n)
	for len(keys) < n {
		k := rng.Uint64()
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

var keyw = []string{
	"disestablishment",
	"mizzenmast",
	"pictorialness",
	"quicksandy",
	"villainous",
	"unquality",
	"sized",
	"endocrinotherapy",
	"heretics",
	"pediment",
	"spleen's",
	"paralyzed",
	"megahertzes",
	"mechanics's",
	"Springfield",
	"burlesques",
	"carousing",
	"wholemeal",
	"trapezoidal",
	"ossify",
}
