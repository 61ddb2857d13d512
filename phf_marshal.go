// phf_marshal.go -- marshal/unmarshal a frozen PHF
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
	"encoding/binary"
	"fmt"
	"io"
)

// PHF marshalled header - 3 x 64-bit words
const _phfHeaderSize = 24

// MarshalBinary encodes the hash into a binary form suitable for durable storage.
// A subsequent call to UnmarshalPHF() will reconstruct the PHF instance.
// All multi-byte values are little-endian.
func (p *PHF[K]) MarshalBinary(w io.Writer) (int, error) {
	// Header: 3 64-bit words:
	//   o version byte
	//   o element width byte (1, 2 or 4)
	//   o pow2 flag byte
	//   o resv byte
	//   o r      uint32
	//   o m      uint32
	//   o seed   uint32
	//   o d_max  uint32
	//   o nkeys  uint32
	//
	// Body:
	//   o <r> displacements laid out sequentially

	var x [_phfHeaderSize]byte

	le := binary.LittleEndian

	x[0] = 1
	x[1] = p.d.width()
	if p.pow2 {
		x[2] = 1
	}
	le.PutUint32(x[4:8], p.r)
	le.PutUint32(x[8:12], p.m)
	le.PutUint32(x[12:16], p.seed)
	le.PutUint32(x[16:20], p.dmax)
	le.PutUint32(x[20:24], uint32(p.n))

	wr := newErrWriter(w)
	nw, _ := wr.Write(x[:])
	m, _ := p.d.marshal(wr)
	return nw + m, wr.Error()
}

// UnmarshalPHF reads a previously marshalled PHF instance and returns
// a lookup table. It assumes that buf is memory-mapped and aligned at the
// right boundaries; the displacement table aliases 'buf'.
func UnmarshalPHF[K Key](buf []byte) (*PHF[K], error) {
	if len(buf) < _phfHeaderSize {
		return nil, ErrTooSmall
	}

	hdr := buf[:_phfHeaderSize]
	buf = buf[_phfHeaderSize:]
	if hdr[0] != 1 {
		return nil, fmt.Errorf("phf: no support to un-marshal version %d", hdr[0])
	}

	le := binary.LittleEndian

	width := uint32(hdr[1])
	pow2 := hdr[2] != 0
	r := le.Uint32(hdr[4:8])
	m := le.Uint32(hdr[8:12])
	seed := le.Uint32(hdr[12:16])
	dmax := le.Uint32(hdr[16:20])
	n := le.Uint32(hdr[20:24])

	if r == 0 {
		return nil, fmt.Errorf("phf: zero buckets in marshalled header")
	}

	want := uint64(r) * uint64(width)
	if uint64(len(buf)) < want {
		return nil, fmt.Errorf("phf: partial displacement table (exp %d bytes, saw %d)",
			want, len(buf))
	}
	vals := buf[:want]

	var d displacements

	switch width {
	case 1:
		u8 := &u8Table{}
		if err := u8.unmarshal(vals); err != nil {
			return nil, err
		}
		d = u8

	case 2:
		u16 := &u16Table{}
		if err := u16.unmarshal(vals); err != nil {
			return nil, err
		}
		d = u16

	case 4:
		u32 := &u32Table{}
		if err := u32.unmarshal(vals); err != nil {
			return nil, err
		}
		d = u32

	default:
		return nil, fmt.Errorf("phf: unknown element width %d", width)
	}

	if int(r) != d.length() {
		return nil, fmt.Errorf("phf: mismatch in table length: exp %d, saw %d", r, d.length())
	}

	p := &PHF[K]{
		d:    d,
		seed: seed,
		r:    r,
		m:    m,
		pow2: pow2,
		dmax: dmax,
		n:    int(n),
	}
	return p, nil
}
