// main.go -- demo driver for the CHD perfect hash library
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

// phf reads keys from files, the command line or a synthetic
// generator, builds a perfect hash function over them and prints the
// key to index mapping. With -o it also writes the key set as a
// constant on-disk DB.

package main

import (
	"fmt"
	"math/bits"
	"os"
	"time"

	flag "github.com/opencoff/pflag"

	"github.com/opencoff/go-phf"
)

type options struct {
	files   []string
	random  uint
	lambda  uint32
	alpha   uint32
	seed    uint32
	seeded  bool
	keytype string
	pow2    bool
	noprint bool
	verbose bool
	dbfile  string
}

func main() {
	var opt options
	var seed uint32

	usage := fmt.Sprintf(
		`%s - build a CHD perfect hash over a set of keys

Usage: %s [options] [key...]

Keys are read from the arguments, from --file inputs and from the
--random generator, in that order.

Options:
`, os.Args[0], os.Args[0])

	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.SetOutput(os.Stdout)
	fs.StringSliceVarP(&opt.files, "file", "f", nil, "read keys from `PATH` (- for stdin)")
	fs.UintVarP(&opt.random, "random", "R", 0, "generate `N` synthetic keys")
	fs.Uint32VarP(&opt.lambda, "lambda", "l", 4, "number of keys per bucket")
	fs.Uint32VarP(&opt.alpha, "alpha", "a", 80, "hash table load factor (1% - 100%)")
	fs.Uint32VarP(&seed, "seed", "s", 0, "random seed")
	fs.StringVarP(&opt.keytype, "type", "t", "uint32", "parse and hash keys as `uint32, uint64 or string`")
	fs.BoolVarP(&opt.pow2, "pow-2", "2", false, "avoid modular division by rounding r and m to powers of 2")
	fs.BoolVarP(&opt.noprint, "no-print", "n", false, "do not print key-hash pairs")
	fs.BoolVarP(&opt.verbose, "verbose", "v", false, "report hashing status")
	fs.StringVarP(&opt.dbfile, "db", "o", "", "also write the keys to constant DB `FILE`")
	fs.Usage = func() {
		fmt.Printf(usage)
		fs.PrintDefaults()
		os.Exit(0)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		die("%s", err)
	}

	opt.seeded = fs.Changed("seed")
	opt.seed = seed

	var err error

	switch opt.keytype {
	case "uint32":
		err = run[uint32](fs.Args(), &opt)
	case "uint64":
		err = run[uint64](fs.Args(), &opt)
	case "string":
		err = run[string](fs.Args(), &opt)
	default:
		die("%s: invalid key type", opt.keytype)
	}

	if err != nil {
		die("%s", err)
	}
}

func run[K phf.Key](args []string, opt *options) error {
	keys, err := loadKeys[K](args, opt)
	if err != nil {
		return err
	}

	nraw := len(keys)
	keys = phf.Uniq(keys)
	if opt.verbose {
		warn("loaded %d keys (%d distinct)", nraw, len(keys))
	}

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

	b, err := phf.NewBuilder[K](popts...)
	if err != nil {
		return err
	}
	b.AddKeys(keys)

	begin := time.Now()
	p, err := b.Freeze()
	if err != nil {
		return err
	}
	buildTime := time.Since(begin)
	p.Compact()

	if opt.verbose {
		n := len(keys)
		warn("found perfect hash for %d keys in %s", n, buildTime)

		dbits := bits.Len32(p.MaxDisplace())
		kbits := float64(p.Buckets()) * float64(p.Width()*8) / float64(max(n, 1))
		gload := float64(n) / float64(p.Buckets())
		warn("r:%d m:%d d_max:%d d_bits:%d k_bits:%.2f g_load:%.2f",
			p.Buckets(), p.Range(), p.MaxDisplace(), dbits, kbits, gload)

		var x uint64
		begin = time.Now()
		for _, k := range keys {
			x += uint64(p.Hash(k))
		}
		warn("hashed %d keys in %s (x:%d)", n, time.Since(begin), x)
	}

	if !opt.noprint {
		for _, k := range keys {
			printKey(k, p.Hash(k))
		}
	}

	if opt.dbfile != "" {
		if err := writeDB(keys, opt); err != nil {
			return err
		}
		if opt.verbose {
			warn("wrote %d keys to %s", len(keys), opt.dbfile)
		}
	}

	p.Destroy()
	return nil
}

func printKey[K phf.Key](k K, hash uint32) {
	switch k := any(k).(type) {
	case string:
		fmt.Printf("%-32s : %d\n", k, hash)
	default:
		fmt.Printf("%v : %d\n", k, hash)
	}
}

// die with error
func die(f string, v ...interface{}) {
	warn(f, v...)
	os.Exit(1)
}

func warn(f string, v ...interface{}) {
	z := fmt.Sprintf("%s: %s", os.Args[0], f)
	s := fmt.Sprintf(z, v...)
	if n := len(s); s[n-1] != '\n' {
		s += "\n"
	}

	os.Stderr.WriteString(s)
	os.Stderr.Sync()
}
