// Command cacheinspect prints what the ratings cache holds, per provider.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spotlightapp/spotlight-server/internal/cache"
)

type providerStats struct {
	entries int
	expired int
	bytes   int
}

func main() {
	path := flag.String("path", os.Getenv("CACHE_PATH"), "ratings cache directory")
	ttl := flag.Duration("ttl", cache.DefaultTTL, "entry time-to-live")
	cleanup := flag.Bool("cleanup", false, "delete expired and unparsable entries")
	flag.Parse()

	if *path == "" {
		log.Fatal("cache path required (-path or CACHE_PATH)")
	}

	backend, err := cache.OpenBadger(cache.BadgerOptions{Path: *path, ReadOnly: !*cleanup}, nil)
	if err != nil {
		log.Fatalf("Failed to open cache: %v", err)
	}
	defer backend.Close()

	fmt.Println("=== Ratings Cache Inspection ===")
	fmt.Println()

	now := time.Now()
	stats := make(map[string]*providerStats)
	unparsable := 0

	err = backend.Scan(cache.Namespace, func(key string, value []byte) error {
		provider, _, _ := strings.Cut(strings.TrimPrefix(key, cache.Namespace), ":")
		ps, ok := stats[provider]
		if !ok {
			ps = &providerStats{}
			stats[provider] = ps
		}
		ps.entries++
		ps.bytes += len(key) + len(value)

		var env struct {
			Timestamp int64 `json:"timestamp"`
		}
		if err := json.Unmarshal(value, &env); err != nil {
			unparsable++
			return nil
		}
		if now.Sub(time.UnixMilli(env.Timestamp)) > *ttl {
			ps.expired++
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Error scanning cache: %v", err)
	}

	total := providerStats{}
	for _, name := range slices.Sorted(maps.Keys(stats)) {
		ps := stats[name]
		fmt.Printf("%-16s entries=%-6d expired=%-6d bytes=%d\n", name, ps.entries, ps.expired, ps.bytes)
		total.entries += ps.entries
		total.expired += ps.expired
		total.bytes += ps.bytes
	}

	fmt.Println()
	fmt.Println("=== Summary ===")
	fmt.Printf("Total entries: %d\n", total.entries)
	fmt.Printf("Expired: %d\n", total.expired)
	fmt.Printf("Unparsable: %d\n", unparsable)
	fmt.Printf("Bytes in use: %d\n", backend.Usage())

	if !*cleanup {
		return
	}

	removed, err := cache.NewPersistent(backend, *ttl, nil).Cleanup(context.Background())
	if err != nil {
		log.Fatalf("Cleanup failed: %v", err)
	}
	fmt.Printf("Removed: %d\n", removed.Removed())
}
