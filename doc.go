// doc.go - top level documentation
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

// Package phf builds perfect hash functions over static key sets using
// the Compress-Hash-Displace algorithm:
// http://cmph.sourceforge.net/papers/esa09.pdf
//
// Given n distinct keys, Freeze() produces a function that maps every
// key to a unique integer in [0, m) where m is governed by a load
// factor; the keys themselves are not needed to evaluate the hash.
// Keys may be uint32, uint64, string or []byte values.
//
// A frozen PHF is immutable and safe for concurrent readers. The
// displacement table can be narrowed to 8 or 16 bit entries with
// Compact(), and serialized with MarshalBinary().
//
// phf also exposes a convenient way to serialize keys and values OR
// just keys into an on-disk single-file database keyed by the PHF.
// This serialized DB is useful in situations where reading from such a
// "constant" DB is much more frequent compared to updates to the DB.
// See DBWriter and DBReader.
package phf
