// keys.go -- key ingestion and synthetic key generation
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

package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spaolacci/murmur3"
	"golang.org/x/sync/errgroup"

	"github.com/opencoff/go-phf"
)

// loadKeys gathers keys from the command line args, the input files
// and the synthetic generator, in that order.
func loadKeys[K phf.Key](args []string, opt *options) ([]K, error) {
	words := args

	if len(opt.files) > 0 {
		fw, err := readFiles(opt.files)
		if err != nil {
			return nil, err
		}
		words = append(words, fw...)
	}

	keys := make([]K, 0, len(words)+int(opt.random))
	for _, w := range words {
		k, err := parseKey[K](w)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}

	if opt.random > 0 {
		keys = append(keys, genKeys[K](int(opt.random), opt.seed)...)
	}
	return keys, nil
}

// readFiles reads every input concurrently and returns the
// non-empty lines of each, in input order.
func readFiles(files []string) ([]string, error) {
	lines := make([][]string, len(files))

	var g errgroup.Group
	for i, fn := range files {
		i, fn := i, fn
		g.Go(func() error {
			var err error
			lines[i], err = readLines(fn)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []string
	for _, v := range lines {
		all = append(all, v...)
	}
	return all, nil
}

func readLines(fn string) ([]string, error) {
	var rd io.Reader = os.Stdin
	if fn != "-" {
		fd, err := os.Open(fn)
		if err != nil {
			return nil, err
		}
		defer fd.Close()
		rd = fd
	}

	var words []string
	sc := bufio.NewScanner(rd)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if len(s) > 0 {
			words = append(words, s)
		}
	}
	return words, sc.Err()
}

func parseKey[K phf.Key](s string) (K, error) {
	var k K

	switch any(k).(type) {
	case uint32:
		v, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return k, fmt.Errorf("%s: not a uint32: %w", s, err)
		}
		k = any(uint32(v)).(K)
	case uint64:
		v, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return k, fmt.Errorf("%s: not a uint64: %w", s, err)
		}
		k = any(v).(K)
	case string:
		k = any(s).(K)
	}
	return k, nil
}

// genKeys makes n synthetic keys by hashing a counter with
// murmur3; the same seed regenerates the same key set.
func genKeys[K phf.Key](n int, seed uint32) []K {
	var b [8]byte

	keys := make([]K, 0, n)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint64(b[:], uint64(i))

		var k K
		switch any(k).(type) {
		case uint32:
			k = any(murmur3.Sum32WithSeed(b[:], seed)).(K)
		case uint64:
			k = any(murmur3.Sum64WithSeed(b[:], seed)).(K)
		case string:
			k = any(fmt.Sprintf("key-%016x", murmur3.Sum64WithSeed(b[:], seed))).(K)
		}
		keys = append(keys, k)
	}
	return keys
}

// writeDB stores the key set as a keys-only constant DB. Integer keys
// are stored as-is; string keys go through the DB's string reduction.
func writeDB[K phf.Key](keys []K, opt *options) error {
	popts := []phf.Option{
		phf.Lambda(opt.lambda),
		phf.Alpha(opt.alpha),
	}
	if opt.seeded {
		popts = append(popts, phf.Seed(opt.seed))
	}
	if opt.pow2 {
		popts = append(popts, phf.Pow2())
	}

	w, err := phf.NewDBWriter(opt.dbfile, popts...)
	if err != nil {
		return err
	}

	for _, k := range keys {
		switch k := any(k).(type) {
		case uint32:
			err = w.Add(uint64(k), nil)
		case uint64:
			err = w.Add(k, nil)
		case string:
			err = w.AddString(k, nil)
		}
		if err != nil {
			return err
		}
	}

	return w.Freeze()
}
