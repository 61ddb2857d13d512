// phf_test.go -- test suite for the CHD construction
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
	"math/rand"
	"testing"

	"github.com/opencoff/go-fasthash"
)

func mustFreeze[K Key](t *testing.T, keys []K, opts ...Option) *PHF[K] {
	t.Helper()

	b, err := NewBuilder[K](opts...)
	if err != nil {
		t.Fatalf("builder: %s", err)
	}
	b.AddKeys(keys)

	p, err := b.Freeze()
	if err != nil {
		t.Fatalf("freeze: %s", err)
	}
	return p
}

// verify injectivity and range over the key set
func checkPerfect[K Key](t *testing.T, p *PHF[K], keys []K) {
	t.Helper()
	assert := newAsserter(t)

	slots := make(map[uint32]int)
	for i, k := range keys {
		h := p.Hash(k)
		assert(h < p.Range(), "key %d: hash %d out of range %d", i, h, p.Range())

		if j, ok := slots[h]; ok {
			t.Fatalf("keys %d and %d collide at slot %d", j, i, h)
		}
		slots[h] = i
	}
}

func TestPHFSimple(t *testing.T) {
	assert := newAsserter(t)

	b, err := NewBuilder[uint64]()
	assert(err == nil, "construction failed: %s", err)

	hseed := rand64()
	keys := make([]uint64, 0, len(keyw))
	for _, s := range keyw {
		keys = append(keys, fasthash.Hash64(hseed, []byte(s)))
	}
	keys = Uniq(keys)

	for _, k := range keys {
		b.Add(k)
	}

	p, err := b.Freeze()
	assert(err == nil, "freeze: %s", err)
	assert(p.Len() == len(keys), "key count: exp %d, saw %d", len(keys), p.Len())
	assert(p.Range() >= uint32(len(keys)), "range %d < %d keys", p.Range(), len(keys))

	checkPerfect(t, p, keys)
}

func TestPHFSizes(t *testing.T) {
	assert := newAsserter(t)

	sizes := []int{0, 1, 2, 10, 1000, 100_000}
	for _, n := range sizes {
		for _, pow2 := range []bool{false, true} {
			keys := randKeys(n, int64(n)+1)

			opts := []Option{Seed(0x5eed + uint32(n))}
			if pow2 {
				opts = append(opts, Pow2())
			}
			p := mustFreeze(t, keys, opts...)

			assert(p.Buckets() >= 1, "n=%d: no buckets", n)
			assert(p.Range() >= uint32(n), "n=%d: range %d < n", n, p.Range())
			if pow2 {
				r, m := uint64(p.Buckets()), uint64(p.Range())
				assert(r&(r-1) == 0, "n=%d: r %d not a power of 2", n, r)
				assert(m&(m-1) == 0, "n=%d: m %d not a power of 2", n, m)
			}

			checkPerfect(t, p, keys)
		}
	}
}

func TestPHFSingleKey(t *testing.T) {
	assert := newAsserter(t)

	p := mustFreeze(t, []uint64{0xdeadbeef})
	assert(p.MaxDisplace() == 1, "single key d_max: exp 1, saw %d", p.MaxDisplace())
	assert(p.Hash(0xdeadbeef) < p.Range(), "hash out of range")
}

func TestPHFTinyInts(t *testing.T) {
	assert := newAsserter(t)

	keys := []uint32{1, 2, 3, 4, 5}

	p := mustFreeze(t, keys, Seed(0xdeadbeef), Lambda(4), Alpha(80))
	checkPerfect(t, p, keys)
	assert(p.Range() >= uint32(len(keys)), "range %d < %d", p.Range(), len(keys))

	p2 := mustFreeze(t, keys, Seed(0xdeadbeef), Lambda(4), Alpha(80), Pow2())
	checkPerfect(t, p2, keys)

	r, m := uint64(p2.Buckets()), uint64(p2.Range())
	assert(r&(r-1) == 0, "r %d not a power of 2", r)
	assert(m&(m-1) == 0, "m %d not a power of 2", m)
	assert(p2.Range() >= p.Range(), "pow2 range %d < plain range %d", p2.Range(), p.Range())
}

func TestPHFStrings(t *testing.T) {
	assert := newAsserter(t)

	keys := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta"}
	p := mustFreeze(t, keys, Seed(1))
	checkPerfect(t, p, keys)

	before := make([]uint32, len(keys))
	for i, k := range keys {
		before[i] = p.Hash(k)
	}

	p.Compact()
	for i, k := range keys {
		assert(p.Hash(k) == before[i], "%q: compacted hash %d != %d", k, p.Hash(k), before[i])
	}
}

func TestPHFBytes(t *testing.T) {
	keys := make([][]byte, len(keyw))
	for i, s := range keyw {
		keys[i] = []byte(s)
	}

	p := mustFreeze(t, keys, Seed(42))
	checkPerfect(t, p, keys)
}

// force every key into one bucket to stress the retry loop
func TestPHFOneBucket(t *testing.T) {
	assert := newAsserter(t)

	keys := randKeys(20, 7)
	p := mustFreeze(t, keys, Lambda(100), Seed(3))
	assert(p.Buckets() == 1, "exp 1 bucket, saw %d", p.Buckets())

	checkPerfect(t, p, keys)
}

func TestPHFDeterminism(t *testing.T) {
	assert := newAsserter(t)

	keys := randKeys(1000, 99)

	p1 := mustFreeze(t, keys, Seed(0xabcd))
	p2 := mustFreeze(t, keys, Seed(0xabcd))

	assert(p1.Buckets() == p2.Buckets(), "r differs: %d vs %d", p1.Buckets(), p2.Buckets())
	assert(p1.Range() == p2.Range(), "m differs: %d vs %d", p1.Range(), p2.Range())
	assert(p1.MaxDisplace() == p2.MaxDisplace(), "d_max differs: %d vs %d",
		p1.MaxDisplace(), p2.MaxDisplace())

	for _, k := range keys {
		assert(p1.Hash(k) == p2.Hash(k), "key %#x: %d vs %d", k, p1.Hash(k), p2.Hash(k))
	}
}

// construction is a function of the key set, not the input order
func TestPHFShuffled(t *testing.T) {
	assert := newAsserter(t)

	keys := randKeys(1000, 17)
	p1 := mustFreeze(t, keys, Seed(5))

	shuffled := make([]uint64, len(keys))
	copy(shuffled, keys)
	rng := rand.New(rand.NewSource(23))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	p2 := mustFreeze(t, shuffled, Seed(5))

	var b1, b2 bytes.Buffer
	_, err := p1.MarshalBinary(&b1)
	assert(err == nil, "marshal p1: %s", err)
	_, err = p2.MarshalBinary(&b2)
	assert(err == nil, "marshal p2: %s", err)

	assert(bytes.Equal(b1.Bytes(), b2.Bytes()),
		"shuffled input produced a different table")
}

func TestPHFSeedSensitivity(t *testing.T) {
	assert := newAsserter(t)

	keys := randKeys(1000, 31)
	p1 := mustFreeze(t, keys, Seed(1))
	p2 := mustFreeze(t, keys, Seed(2))

	var differs int
	for _, k := range keys {
		if p1.Hash(k) != p2.Hash(k) {
			differs++
		}
	}
	assert(differs > 0, "reseeding changed no hash")
}

func TestPHFCompact(t *testing.T) {
	assert := newAsserter(t)

	keys := randKeys(100_000, 3)
	p := mustFreeze(t, keys, Seed(0x1badd00d))
	assert(p.Width() == 4, "pre-compact width: exp 4, saw %d", p.Width())

	hashes := make([]uint32, len(keys))
	for i, k := range keys {
		hashes[i] = p.Hash(k)
	}

	p.Compact()
	assert(p.Width() <= 2, "compacted width %d for d_max %d", p.Width(), p.MaxDisplace())

	for i, k := range keys {
		assert(p.Hash(k) == hashes[i], "key %#x: hash changed after compact", k)
	}

	// compacting again is a no-op
	w := p.Width()
	p.Compact()
	assert(p.Width() == w, "second compact changed width")
}

func TestPHFDestroy(t *testing.T) {
	assert := newAsserter(t)

	p := mustFreeze(t, randKeys(10, 1))
	p.Destroy()
	p.Destroy()

	var z PHF[uint64]
	z.Destroy()
	assert(true, "unreachable")
}

func TestPHFDuplicates(t *testing.T) {
	assert := newAsserter(t)

	keys := []uint64{10, 20, 30, 20, 40}

	func() {
		defer func() {
			assert(recover() != nil, "duplicate keys did not abort construction")
		}()

		b, _ := NewBuilder[uint64](Seed(9))
		b.AddKeys(keys)
		b.Freeze()
	}()

	// the same set builds fine once deduplicated
	p := mustFreeze(t, Uniq(keys), Seed(9))
	checkPerfect(t, p, keys[:4])
}

func TestPHFLarge(t *testing.T) {
	if testing.Short() {
		t.Skip("large key set in -short mode")
	}
	assert := newAsserter(t)

	keys := randKeys(1_000_000, 0xfeed)
	p := mustFreeze(t, keys, Lambda(4), Alpha(80), Seed(0xfeed))
	checkPerfect(t, p, keys)

	p.Compact()
	assert(p.Width() <= 2, "compacted width %d for d_max %d", p.Width(), p.MaxDisplace())
}

func TestUniq(t *testing.T) {
	assert := newAsserter(t)

	keys := []uint32{5, 1, 5, 3, 1, 1, 9}
	u := Uniq(keys)
	assert(len(u) == 4, "exp 4 unique, saw %d", len(u))
	for i := 1; i < len(u); i++ {
		assert(u[i-1] < u[i], "not sorted at %d: %v", i, u)
	}

	s := Uniq([]string{"b", "a", "b"})
	assert(len(s) == 2, "exp 2 unique, saw %d", len(s))
	assert(s[0] == "a" && s[1] == "b", "bad order: %v", s)

	assert(len(Uniq([]uint64{})) == 0, "empty set grew")
}

func TestPHFMarshal(t *testing.T) {
	assert := newAsserter(t)

	keys := randKeys(1000, 77)
	p := mustFreeze(t, keys, Seed(0xc0ffee))

	var buf bytes.Buffer
	n, err := p.MarshalBinary(&buf)
	assert(err == nil, "marshal failed: %s", err)
	assert(n == buf.Len(), "marshal count: exp %d, saw %d", buf.Len(), n)

	q, err := UnmarshalPHF[uint64](buf.Bytes())
	assert(err == nil, "unmarshal failed: %s", err)
	assert(q.Len() == p.Len(), "n: exp %d, saw %d", p.Len(), q.Len())

	for _, k := range keys {
		assert(p.Hash(k) == q.Hash(k), "key %#x: %d vs %d", k, p.Hash(k), q.Hash(k))
	}

	// compacted tables round-trip too
	p.Compact()
	buf.Reset()
	_, err = p.MarshalBinary(&buf)
	assert(err == nil, "marshal failed: %s", err)

	q, err = UnmarshalPHF[uint64](buf.Bytes())
	assert(err == nil, "unmarshal failed: %s", err)
	assert(q.Width() == p.Width(), "width: exp %d, saw %d", p.Width(), q.Width())

	for _, k := range keys {
		assert(p.Hash(k) == q.Hash(k), "key %#x: %d vs %d after compact", k, p.Hash(k), q.Hash(k))
	}

	// truncated input must not unmarshal
	_, err = UnmarshalPHF[uint64](buf.Bytes()[:8])
	assert(err != nil, "truncated header unmarshalled")
	_, err = UnmarshalPHF[uint64](buf.Bytes()[:buf.Len()-1])
	assert(err != nil, "truncated table unmarshalled")
}

func BenchmarkFreeze(b *testing.B) {
	keys := randKeys(100_000, 1)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bld, _ := NewBuilder[uint64](Seed(1))
		bld.AddKeys(keys)
		p, err := bld.Freeze()
		if err != nil {
			b.Fatal(err)
		}
		p.Destroy()
	}
}

func BenchmarkHashU64(b *testing.B) {
	keys := randKeys(100_000, 2)
	bld, _ := NewBuilder[uint64](Seed(2))
	bld.AddKeys(keys)
	p, _ := bld.Freeze()
	p.Compact()

	b.ReportAllocs()
	b.ResetTimer()
	var x uint32
	for i := 0; i < b.N; i++ {
		x += p.Hash(keys[i%len(keys)])
	}
	_ = x
}

func BenchmarkHashString(b *testing.B) {
	bld, _ := NewBuilder[string](Seed(3))
	bld.AddKeys(keyw)
	p, _ := bld.Freeze()
	p.Compact()

	b.ReportAllocs()
	b.ResetTimer()
	var x uint32
	for i := 0; i < b.N; i++ {
		x += p.Hash(keyw[i%len(keyw)])
	}
	_ = x
}
