package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/vusec/ramses/addr"
	"github.com/vusec/ramses/bufmap"
	"github.com/vusec/ramses/config"
	"github.com/vusec/ramses/translate"
)

func main() {
	cfgStr := flag.String("c", "map:naive:ddr3", "memory system configuration string")
	sizeStr := flag.String("size", "4m", "buffer size, accepts k/m/g suffixes")
	heuristicBase := flag.String("heuristic", "", "treat the buffer as physically contiguous from this base address (hex), skipping /proc/self/pagemap")
	pageShift := flag.Int("pageshift", 12, "log2 of the page size the translator assumes")
	noClobber := flag.Bool("noclobber", false, "don't reuse the buffer as scratch space while building the map")
	flag.Parse()

	size, err := parseSize(*sizeStr)
	if err != nil {
		fmt.Printf("Error parsing -size: %v\n", err)
		os.Exit(1)
	}

	ms, err := config.Load(*cfgStr)
	if err != nil {
		fmt.Printf("Error parsing -c: %v\n", err)
		os.Exit(1)
	}

	buf := make([]byte, size)
	trans, cleanup, err := buildTranslation(*heuristicBase, *pageShift, buf)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	bm, err := bufmap.Build(buf, trans, ms, bufmap.BuildOpts{NoClobber: *noClobber})
	if err != nil {
		fmt.Printf("Error building buffer map: %v\n", err)
		os.Exit(1)
	}

	printRanges(bm)
}

func buildTranslation(heuristicBase string, pageShift int, buf []byte) (translate.Translation, func(), error) {
	if heuristicBase != "" {
		base, err := strconv.ParseUint(strings.TrimPrefix(heuristicBase, "0x"), 16, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing -heuristic: %w", err)
		}
		return translate.NewHeuristic(pageShift, addr.PhysAddr(base)), nil, nil
	}

	pm, err := translate.OpenPagemap("self")
	if err != nil {
		return nil, nil, fmt.Errorf("opening pagemap (pass -heuristic to avoid this): %w", err)
	}
	return pm, func() { pm.Close() }, nil
}

func printRanges(bm *bufmap.BufferMap) {
	fmt.Printf("%d pages, %d bytes/entry, %d ranges\n", len(bm.PTEs), bm.EntryLen, len(bm.Ranges))
	fmt.Println("range  start                entries")
	for i, r := range bm.Ranges {
		fmt.Printf("%5d  %s  %d\n", i, r.Start, r.EntryCnt)
	}
}

func parseSize(s string) (int, error) {
	shift := 0
	switch s[len(s)-1] {
	case 'k', 'K':
		shift, s = 10, s[:len(s)-1]
	case 'm', 'M':
		shift, s = 20, s[:len(s)-1]
	case 'g', 'G':
		shift, s = 30, s[:len(s)-1]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, err)
	}
	return n << uint(shift), nil
}
