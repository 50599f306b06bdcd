package main

// main.go implements the sheetkv inspector CLI: it builds a standalone
// Instance, replays a synthetic workload against it (put/increment), and
// prints a statistics snapshot either as pretty text or JSON. sheetkv is
// an embedded library with no network surface of its own, so this tool
// drives an in-process Instance directly rather than polling a remote
// server's debug endpoint.
//
// Build-time flag: `-ldflags "-X main.version=vX.Y.Z"` is set by GoReleaser.
// ---------------------------------------------------------------
// © 2025 sheetkv authors. MIT License.

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"

	sheetkv "github.com/Voskan/sheetkv/pkg"
)

var version = "dev"

type options struct {
	showVersion bool
	json        bool
	keys        int
	listID      int
	seed        int64
}

func parseFlags() *options {
	opts := &options{}
	flag.BoolVar(&opts.showVersion, "version", false, "print version and exit")
	flag.BoolVar(&opts.json, "json", false, "print the snapshot as JSON instead of text")
	flag.IntVar(&opts.keys, "keys", 100_000, "number of synthetic keys to insert before reporting")
	flag.IntVar(&opts.listID, "list", 0, "counter list id to increment a fraction of keys against")
	flag.Int64Var(&opts.seed, "seed", 1, "PRNG seed for synthetic key generation")
	flag.Parse()
	return opts
}

func main() {
	opts := parseFlags()
	if opts.showVersion {
		fmt.Println(version)
		return
	}

	snap, err := runWorkload(opts)
	if err != nil {
		fatal(err)
	}

	if opts.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			fatal(err)
		}
		return
	}
	prettyPrint(snap)
}

func runWorkload(opts *options) (map[string]any, error) {
	inst, err := sheetkv.New()
	if err != nil {
		return nil, fmt.Errorf("instance init: %w", err)
	}
	defer inst.Destroy()

	rnd := rand.New(rand.NewSource(opts.seed))
	for i := 0; i < opts.keys; i++ {
		key := []byte(fmt.Sprintf("k%d", rnd.Int63()))
		if i%10 == 0 {
			if _, _, err := inst.Increment(opts.listID, key); err != nil {
				return nil, fmt.Errorf("increment #%d: %w", i, err)
			}
			continue
		}
		if _, err := inst.Put(key, []byte("v")); err != nil {
			return nil, fmt.Errorf("put #%d: %w", i, err)
		}
	}

	keylenMisses, memcmpMisses, splits := inst.Stats()
	return map[string]any{
		"keys_requested": opts.keys,
		"sheet_count":    inst.SheetCount(),
		"arena_bytes":    inst.ArenaUsed(),
		"keylen_misses":  keylenMisses,
		"memcmp_misses":  memcmpMisses,
		"sheet_splits":   splits,
	}, nil
}

func prettyPrint(snap map[string]any) {
	fmt.Printf("Keys requested: %v\n", snap["keys_requested"])
	fmt.Printf("Sheet count:    %v\n", snap["sheet_count"])
	fmt.Printf("Arena bytes:    %v\n", snap["arena_bytes"])
	fmt.Printf("Keylen misses:  %v\n", snap["keylen_misses"])
	fmt.Printf("Memcmp misses:  %v\n", snap["memcmp_misses"])
	fmt.Printf("Sheet splits:   %v\n", snap["sheet_splits"])
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "sheetkv-inspect:", err)
	os.Exit(1)
}
