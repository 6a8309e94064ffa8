// internal/symbols/symbols.go
//
// Provides the symbol palette for the game engine.
//
// Responsibilities:
//   - Load the palette from an environment-provided file or fall back to the
//     embedded default.
//   - Normalize, deduplicate, and validate entries.
//   - Supply utility functions like Palette, Size, Contains, and Stats.
//
// Palette:
//   - One symbol per line; blank lines and "#" comments are ignored.
//   - Decks draw pairCount distinct symbols from here, each used twice.
//
// Initialization behavior (Init):
//   1. If SYMBOLS_FILE is set, load the palette from that file.
//   2. Otherwise fall back to the embedded default from `assets/palette.txt`.
//
// Environment variables:
//   SYMBOLS_FILE=/path/to/palette.txt
//
// Constraints:
//   • Duplicate lines collapse to one entry.
//   • Initialization is run once (sync.Once).
package symbols

import (
	"bufio"
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/StevenLuque2003/Memory-Game/assets"
)

var (
	initOnce   sync.Once
	palette    []string            // ordered, deduplicated symbols
	paletteSet map[string]struct{} // membership lookups
	initialErr error
)

// Init loads the palette exactly once.
// Returns an error if the palette ends up empty.
func Init() error {
	initOnce.Do(func() {
		var list []string

		if path := os.Getenv("SYMBOLS_FILE"); path != "" {
			var err error
			list, err = readPaletteFile(path)
			if err != nil {
				initialErr = err
				return
			}
		} else {
			var err error
			list, err = assets.PaletteList()
			if err != nil {
				initialErr = err
				return
			}
		}

		palette = dedupe(list)
		paletteSet = toSet(palette)

		if len(palette) == 0 {
			initialErr = errors.New("symbols: palette is empty")
		}
	})
	return initialErr
}

// readPaletteFile loads one symbol per line from a file,
// trims whitespace, and skips blanks and "#" comments.
func readPaletteFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		out = append(out, s)
	}
	return out, sc.Err()
}

// dedupe drops repeated entries while preserving first-seen order.
func dedupe(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, s := range list {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// toSet converts a list of strings into a lookup set.
func toSet(list []string) map[string]struct{} {
	m := make(map[string]struct{}, len(list))
	for _, s := range list {
		m[s] = struct{}{}
	}
	return m
}

// Palette returns a copy of the loaded palette.
// Callers may not mutate the palette through the returned slice.
func Palette() []string {
	out := make([]string, len(palette))
	copy(out, palette)
	return out
}

// Size reports the number of distinct symbols available.
func Size() int { return len(palette) }

// Contains reports whether s is a palette symbol.
func Contains(s string) bool {
	_, ok := paletteSet[s]
	return ok
}

// Stats returns the count of loaded symbols.
func Stats() (symbolCount int) {
	return len(palette)
}
