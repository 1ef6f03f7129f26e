// Command cuemap-snapshot-inspect prints a summary of a single engine
// snapshot file (a project's .bin, _lexicon.bin, or _aliases.bin), for
// operators diagnosing a project's on-disk state without standing up
// the full server.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/scrypster/cuemap/internal/config"
	"github.com/scrypster/cuemap/internal/engine"
	"github.com/scrypster/cuemap/internal/persistence"
	"github.com/scrypster/cuemap/pkg/cuetypes"
)

var previewChars = flag.Int("preview-chars", 50, "number of content characters to preview per memory")

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: cuemap-snapshot-inspect [-preview-chars=N] <path-to-snapshot.bin>")
		os.Exit(1)
	}
	path := args[0]

	cfg := config.Load()
	masterKey, err := cfg.Security.MasterKey()
	if err != nil {
		log.Fatalf("resolving master key: %v", err)
	}

	opts := []engine.Option{}
	if masterKey != nil {
		opts = append(opts, engine.WithMasterKey(masterKey))
	}
	e := engine.New(0, opts...)

	if err := persistence.LoadEngine(e, path); err != nil {
		log.Fatalf("loading snapshot: %v", err)
	}

	fmt.Printf("Snapshot Summary for %s\n", path)
	fmt.Println("----------------------------------------")
	fmt.Printf("Total Memories: %d\n", e.MemoryCount())
	fmt.Printf("Total Cues:     %d\n", e.CueCount())
	fmt.Println("----------------------------------------")
	fmt.Println()

	ids := make([]string, 0, e.MemoryCount())
	memories := make(map[string]*cuetypes.Memory, e.MemoryCount())
	e.RangeMemories(func(id string, mem *cuetypes.Memory) bool {
		ids = append(ids, id)
		memories[id] = mem
		return true
	})
	sort.Strings(ids)

	for _, id := range ids {
		mem := memories[id]
		fmt.Printf("ID: %s\n", id)
		fmt.Printf("  Cues:    %v\n", mem.Cues)

		content, err := e.Content(mem)
		if err != nil {
			fmt.Printf("  Content: <undecodable: %v>\n", err)
			fmt.Println()
			continue
		}
		preview := []rune(content)
		if len(preview) > *previewChars {
			preview = preview[:*previewChars]
		}
		fmt.Printf("  Content: %q...\n", string(preview))
		fmt.Println()
	}
}
