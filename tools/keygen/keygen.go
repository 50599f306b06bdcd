package main

// keygen.go generates deterministic key/value datasets for standalone
// benchmarking of sheetkv (outside `go test`). Unlike the prior
// dataset_gen (which emitted bare uint64 numbers, fit to a cache keyed
// by a generic comparable K), sheetkv keys and values are
// arbitrary byte slices, so this tool emits hex-encoded
// "key<TAB>value<NEWLINE>" records instead.
//
// Usage:
//   go run ./tools/keygen -n 1000000 -dist=zipf -seed=42 -out dataset.txt
//
// Flags:
//   -n        number of records to generate (default 1e6)
//   -dist     key distribution: "uniform" or "zipf" (default uniform)
//   -zipfs    Zipf s parameter (>1)  (default 1.2)
//   -zipfv    Zipf v parameter (>=1) (default 1.0)
//   -keylen   key length in bytes before hex encoding (default 8)
//   -vallen   value length in bytes before hex encoding (default 16)
//   -seed     RNG seed (default current time)
//   -out      output file (default stdout)
//
// The program is embarrassingly simple but kept under version control so
// any contributor can regenerate the exact dataset used in a performance
// regression hunt.
//
// © 2025 sheetkv authors. MIT License.

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"
)

func main() {
	var (
		n       = flag.Int("n", 1_000_000, "number of records to generate")
		dist    = flag.String("dist", "uniform", "key distribution: uniform or zipf")
		zipfS   = flag.Float64("zipfs", 1.2, "zipf s parameter (>1)")
		zipfV   = flag.Float64("zipfv", 1.0, "zipf v parameter (>=1)")
		keyLen  = flag.Int("keylen", 8, "key length in bytes before hex encoding")
		valLen  = flag.Int("vallen", 16, "value length in bytes before hex encoding")
		seedVal = flag.Int64("seed", time.Now().UnixNano(), "PRNG seed")
		outPath = flag.String("out", "", "output file (default stdout)")
	)
	flag.Parse()

	rnd := rand.New(rand.NewSource(*seedVal))

	var keyNum func() uint64
	switch *dist {
	case "uniform":
		keyNum = rnd.Uint64
	case "zipf":
		if *zipfS <= 1.0 || *zipfV < 1.0 {
			fmt.Fprintln(os.Stderr, "zipfs must be >1 and zipfv >=1")
			os.Exit(1)
		}
		z := rand.NewZipf(rnd, *zipfS, *zipfV, ^uint64(0))
		keyNum = z.Uint64
	default:
		fmt.Fprintln(os.Stderr, "unknown dist:", *dist)
		os.Exit(1)
	}

	var out *os.File
	var err error
	if *outPath == "" {
		out = os.Stdout
	} else {
		out, err = os.Create(*outPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "cannot create file:", err)
			os.Exit(1)
		}
		defer out.Close()
	}

	w := bufio.NewWriterSize(out, 1<<20)
	defer w.Flush()

	key := make([]byte, *keyLen)
	val := make([]byte, *valLen)
	for i := 0; i < *n; i++ {
		fillFromSeed(key, keyNum())
		if _, err := rnd.Read(val); err != nil {
			fmt.Fprintln(os.Stderr, "rng read:", err)
			os.Exit(1)
		}
		fmt.Fprintf(w, "%s\t%s\n", hex.EncodeToString(key), hex.EncodeToString(val))
	}
}

// fillFromSeed spreads a single uint64 distribution draw across a
// key buffer of arbitrary length, repeating the 8-byte pattern so
// -keylen values other than 8 still reflect the chosen distribution's
// skew in their low bytes.
func fillFromSeed(key []byte, seed uint64) {
	for i := range key {
		key[i] = byte(seed >> (8 * uint(i%8)))
	}
}
