// phf.go - perfect hashing via Compress Hash Displace
//
// This is an implementation of CHD in http://cmph.sourceforge.net/papers/esa09.pdf -
// inspired by William Ahern's phf library (https://25thandclement.com/~william/projects/phf.html)
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
	"io"
	"sort"
)

const (
	// DefaultLambda is the default target mean bucket size.
	DefaultLambda uint32 = 4

	// DefaultAlpha is the default load factor in percent.
	DefaultAlpha uint32 = 80
)

// params capture the tunables for a construction. They are shared by
// every key shape, so the functional options below stay non-generic.
type params struct {
	lambda uint32
	alpha  uint32
	seed   uint32
	seeded bool
	pow2   bool
}

// Option customizes the construction of a PHF.
type Option func(*params)

// Lambda sets the target mean bucket size; it governs the number of
// first-level buckets r = ceil(n / lambda); under Pow2 r is instead
// n / min(lambda, n), rounded down, then up to a power of two. The
// default is 4.
func Lambda(l uint32) Option {
	return func(p *params) {
		p.lambda = l
	}
}

// Alpha sets the target load factor as a percent in [1, 100]; it
// governs the output table size m. Smaller values speed up
// construction at the cost of a sparser table. The default is 80.
func Alpha(pct uint32) Option {
	return func(p *params) {
		p.alpha = pct
	}
}

// Seed fixes the 32-bit seed threaded into every hash call. Two
// constructions with the same keys, parameters and seed are
// identical. If no seed is given, a random one is drawn from the OS.
func Seed(s uint32) Option {
	return func(p *params) {
		p.seed = s
		p.seeded = true
	}
}

// Pow2 rounds the bucket count and table size up to powers of two so
// every modular reduction becomes a bit mask instead of a division.
// The resulting table is somewhat larger.
func Pow2() Option {
	return func(p *params) {
		p.pow2 = true
	}
}

// Builder accumulates keys for constructing a PHF. Once all keys are
// added, call Freeze() to run the CHD construction.
type Builder[K Key] struct {
	keys []K
	p    params
}

// NewBuilder creates a PHF builder. The keys eventually given to Add
// must be distinct; use Uniq() to enforce the precondition on an
// arbitrary input array.
func NewBuilder[K Key](opts ...Option) (*Builder[K], error) {
	p := params{
		lambda: DefaultLambda,
		alpha:  DefaultAlpha,
	}

	for _, opt := range opts {
		opt(&p)
	}

	if p.alpha < 1 || p.alpha > 100 {
		return nil, fmt.Errorf("phf: invalid alpha %d (must be 1..100)", p.alpha)
	}
	if p.lambda < 1 {
		return nil, fmt.Errorf("phf: invalid lambda %d", p.lambda)
	}

	if !p.seeded {
		p.seed = rand32()
	}

	b := &Builder[K]{
		keys: make([]K, 0, 1024),
		p:    p,
	}
	return b, nil
}

// Add a new key to the builder.
func (b *Builder[K]) Add(key K) error {
	b.keys = append(b.keys, key)
	return nil
}

// AddKeys adds a batch of keys to the builder.
func (b *Builder[K]) AddKeys(keys []K) error {
	b.keys = append(b.keys, keys...)
	return nil
}

// Len returns the number of keys added so far.
func (b *Builder[K]) Len() int {
	return len(b.keys)
}

// entry is one key with its first-level bucket; the bucket occupancy
// lives in a separate per-bucket array indexed by 'g'.
type entry[K Key] struct {
	k K
	g uint32
}

// Freeze runs the CHD construction over the accumulated keys and
// returns the frozen function. The builder may be reused afterwards.
//
// Freeze panics if the key set contains a duplicate; distinct keys are
// a caller precondition (see Uniq).
func (b *Builder[K]) Freeze() (*PHF[K], error) {
	n := len(b.keys)

	// sizing; n1/l1/a1 keep the arithmetic sane for degenerate inputs
	n1 := uint64(max(n, 1))
	l1 := uint64(b.p.lambda)
	a1 := uint64(b.p.alpha)

	var r, m uint32
	if b.p.pow2 {
		r = uint32(nextpow2(n1 / min(l1, n1)))
		m = uint32(nextpow2(n1 * 100 / a1))
	} else {
		r = uint32((n1 + l1 - 1) / l1)
		m = uint32(n1 * 100 / a1)
	}

	seed := b.p.seed
	pow2 := b.p.pow2

	// first level: assign every key to its bucket and tally occupancy
	bk := make([]entry[K], n)
	bz := make([]uint32, r)
	for i, k := range b.keys {
		g := gmod(k, seed, r, pow2)
		bk[i] = entry[K]{k: k, g: g}
		bz[g]++
	}

	// Greedy discipline: place the biggest buckets while the table is
	// still empty. Sort by occupancy descending, bucket index
	// descending; the final key ordering makes the sort a total order
	// so equal keys land adjacent and construction is independent of
	// input order.
	sort.Slice(bk, func(i, j int) bool {
		a, c := &bk[i], &bk[j]
		if bz[a.g] != bz[c.g] {
			return bz[a.g] > bz[c.g]
		}
		if a.g != c.g {
			return a.g > c.g
		}
		return keyLess(a.k, c.k)
	})

	for i := 1; i < n; i++ {
		if bk[i].g == bk[i-1].g && keyEqual(bk[i].k, bk[i-1].k) {
			panic(fmt.Sprintf("phf: duplicate key at sorted index %d", i))
		}
	}

	// T tracks committed slots; Tb is the per-bucket trial map. Tb is
	// cleaned by recomputing the bucket's slots, never wholesale - any
	// bits left behind by a committed bucket are a subset of T and
	// thus harmless.
	T := newBitVector(uint64(m))
	Tb := newBitVector(uint64(m))
	g := make([]uint32, r)
	var dmax uint32

	for p := 0; p < n; p += int(bz[bk[p].g]) {
		bucket := bk[p : p+int(bz[bk[p].g])]
		d := uint32(0)

	retry:
		d++
		for _, e := range bucket {
			f := fmod(d, e.k, seed, m, pow2)
			if T.IsSet(uint64(f)) || Tb.IsSet(uint64(f)) {
				// reset Tb for this trial; recomputing keeps the
				// cost proportional to the bucket size
				for _, e := range bucket {
					Tb.Clr(uint64(fmod(d, e.k, seed, m, pow2)))
				}
				goto retry
			}
			Tb.Set(uint64(f))
		}

		// all keys landed on free slots; commit
		for _, e := range bucket {
			T.Set(uint64(fmod(d, e.k, seed, m, pow2)))
		}
		g[bucket[0].g] = d
		if d > dmax {
			dmax = d
		}
	}

	phf := &PHF[K]{
		d:    newU32Table(g),
		seed: seed,
		r:    r,
		m:    m,
		pow2: pow2,
		dmax: dmax,
		n:    n,
	}
	return phf, nil
}

// PHF is a frozen perfect hash function for a fixed key set. It is
// immutable and safe for concurrent readers; Compact and Destroy are
// not safe to call concurrently with Hash.
type PHF[K Key] struct {
	d    displacements
	seed uint32
	r    uint32 // number of first-level buckets
	m    uint32 // size of the output index space
	pow2 bool
	dmax uint32
	n    int
}

// Hash returns the index for key 'k' in [0, m). The return value is
// meaningful ONLY for keys in the original key set; for any other key
// it is an arbitrary index. Callers who need membership must verify
// the key at the returned index themselves.
func (p *PHF[K]) Hash(k K) uint32 {
	i := gmod(k, p.seed, p.r, p.pow2)
	d := p.d.at(i)
	return fmod(d, k, p.seed, p.m, p.pow2)
}

// Len returns the number of keys the function was built over.
func (p *PHF[K]) Len() int {
	return p.n
}

// Range returns m, the size of the output index space; every Hash()
// result is in [0, Range()).
func (p *PHF[K]) Range() uint32 {
	return p.m
}

// Buckets returns r, the number of first-level buckets.
func (p *PHF[K]) Buckets() uint32 {
	return p.r
}

// Seed returns the seed the function was built with.
func (p *PHF[K]) Seed() uint32 {
	return p.seed
}

// IsPow2 reports whether the function reduces hashes with bit masks
// against power-of-two table sizes.
func (p *PHF[K]) IsPow2() bool {
	return p.pow2
}

// MaxDisplace returns the largest displacement committed during
// construction; it governs the element width Compact() selects.
func (p *PHF[K]) MaxDisplace() uint32 {
	return p.dmax
}

// Width returns the element width of the displacement table in bytes
// (1, 2 or 4).
func (p *PHF[K]) Width() byte {
	return p.d.width()
}

// Compact narrows the displacement table to the smallest element
// width (8, 16 or 32 bits) that holds the maximum displacement.
// Hashes are unchanged. Calling it again is a no-op.
func (p *PHF[K]) Compact() {
	if p.d == nil {
		return
	}

	want := widthFor(p.dmax)
	if p.d.width() <= want {
		return
	}

	v := make([]uint32, p.d.length())
	for i := range v {
		v[i] = p.d.at(uint32(i))
	}
	p.d = makeDisplacements(v, p.dmax)
}

// Destroy releases the displacement table. It is idempotent and a
// no-op on a zero PHF. Hashing after Destroy is a caller error.
func (p *PHF[K]) Destroy() {
	p.d = nil
}

// Uniq sorts 'keys' in place and compacts runs of equal keys to the
// front, returning the prefix holding each distinct key once. It
// exists to establish Freeze()'s distinct-keys precondition.
func Uniq[K Key](keys []K) []K {
	if len(keys) < 2 {
		return keys
	}

	sort.Slice(keys, func(i, j int) bool {
		return keyLess(keys[i], keys[j])
	})

	w := 1
	for i := 1; i < len(keys); i++ {
		if !keyEqual(keys[i], keys[w-1]) {
			keys[w] = keys[i]
			w++
		}
	}
	return keys[:w]
}

// To compress the displacement table, we use the interface below to
// abstract tables of element size 1, 2 and 4 bytes.
type displacements interface {
	// given a bucket index, return the displacement at the index
	at(uint32) uint32

	// marshal to writer 'w'
	marshal(w io.Writer) (int, error)

	// unmarshal from mem-mapped byte slice 'b'
	unmarshal(b []byte) error

	// size of each element in bytes (1, 2, 4)
	width() byte

	// # of elements
	length() int
}

// ensure each of these types implement the displacements interface above.
var (
	_ displacements = &u8Table{}
	_ displacements = &u16Table{}
	_ displacements = &u32Table{}
)

func widthFor(dmax uint32) byte {
	switch {
	case dmax < 256:
		return 1
	case dmax < 65536:
		return 2
	default:
		return 4
	}
}

func makeDisplacements(v []uint32, dmax uint32) displacements {
	switch widthFor(dmax) {
	case 1:
		return newU8Table(v)
	case 2:
		return newU16Table(v)
	default:
		return newU32Table(v)
	}
}

// 8 bit displacements
type u8Table struct {
	d []uint8
}

func newU8Table(v []uint32) displacements {
	bs := make([]byte, len(v))
	for i, a := range v {
		bs[i] = byte(a & 0xff)
	}

	return &u8Table{
		d: bs,
	}
}

func (u *u8Table) at(i uint32) uint32 {
	return uint32(u.d[i])
}

func (u *u8Table) length() int {
	return len(u.d)
}

func (u *u8Table) width() byte {
	return 1
}

func (u *u8Table) marshal(w io.Writer) (int, error) {
	return writeAll(w, u.d)
}

func (u *u8Table) unmarshal(b []byte) error {
	u.d = b
	return nil
}

// 16 bit displacements
type u16Table struct {
	d []uint16
}

func newU16Table(v []uint32) displacements {
	us := make([]uint16, len(v))
	for i, a := range v {
		us[i] = uint16(a & 0xffff)
	}

	return &u16Table{
		d: us,
	}
}

func (u *u16Table) at(i uint32) uint32 {
	return uint32(u.d[i])
}

func (u *u16Table) length() int {
	return len(u.d)
}

func (u *u16Table) width() byte {
	return 2
}

func (u *u16Table) marshal(w io.Writer) (int, error) {
	bs := u16sToByteSlice(u.d)
	return writeAll(w, bs)
}

func (u *u16Table) unmarshal(b []byte) error {
	u.d = bsToUint16Slice(b)
	return nil
}

// 32 bit displacements
type u32Table struct {
	d []uint32
}

func newU32Table(v []uint32) displacements {
	return &u32Table{
		d: v,
	}
}

func (u *u32Table) at(i uint32) uint32 {
	return u.d[i]
}

func (u *u32Table) length() int {
	return len(u.d)
}

func (u *u32Table) width() byte {
	return 4
}

func (u *u32Table) marshal(w io.Writer) (int, error) {
	bs := u32sToByteSlice(u.d)
	return writeAll(w, bs)
}

func (u *u32Table) unmarshal(b []byte) error {
	u.d = bsToUint32Slice(b)
	return nil
}
