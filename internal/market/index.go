package market

import (
	"context"
	"encoding/json"
	"os"
	"regexp"
	"strconv"
	"strings"

	"memecoin-radar/internal/logger"
	"memecoin-radar/internal/types"
)

// rawEntry matches the snapshot scraper's wire format. Price, volume and
// change are free text and may carry currency symbols, commas, percent
// signs, or the "N/A" sentinel.
type rawEntry struct {
	Symbol    string `json:"symbol"`
	Price     string `json:"price"`
	Volume    string `json:"volume"`
	Change24h string `json:"change_24h"`
	Timestamp string `json:"timestamp"`
}

type snapshotFile struct {
	Data []rawEntry `json:"data"`
}

var nonNumericRe = regexp.MustCompile(`[^\d.\-]`)

// ParsePrice normalizes a textual price to a float. The normalization is
// total: any unparseable input resolves to 0.0, which downstream ranking
// treats as "no reliable data" rather than a real zero.
func ParsePrice(s string) float64 {
	cleaned := nonNumericRe.ReplaceAllString(strings.ReplaceAll(s, ",", ""), "")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0.0
	}
	return v
}

// ParseChange normalizes a textual 24h change ("+12.3%", "N/A") to a
// signed float. Total like ParsePrice; failures resolve to 0.0.
func ParseChange(s string) float64 {
	if s == "N/A" {
		return 0.0
	}
	cleaned := nonNumericRe.ReplaceAllString(s, "")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0.0
	}
	return v
}

// Index maps a base symbol to its normalized market entry.
type Index struct {
	entries map[string]types.MarketEntry
	order   []string
}

// BuildIndex normalizes raw entries into an index keyed by base symbol.
// The first entry wins when a base symbol repeats.
func BuildIndex(entries []types.MarketEntry) *Index {
	idx := &Index{entries: make(map[string]types.MarketEntry, len(entries))}
	for _, e := range entries {
		if e.Symbol == "" {
			continue
		}
		if _, dup := idx.entries[e.Symbol]; dup {
			continue
		}
		idx.entries[e.Symbol] = e
		idx.order = append(idx.order, e.Symbol)
	}
	return idx
}

// Lookup returns the market entry for a base symbol.
func (idx *Index) Lookup(symbol string) (types.MarketEntry, bool) {
	e, ok := idx.entries[symbol]
	return e, ok
}

// Symbols returns the indexed base symbols in snapshot order.
func (idx *Index) Symbols() []string {
	return idx.order
}

// Len returns the number of indexed symbols.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// FileSource loads a market snapshot from the JSON file written by the
// out-of-scope exchange scraper.
type FileSource struct {
	path string
}

// NewFileSource creates a snapshot source reading from path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Snapshot reads and normalizes the snapshot file. Pair symbols like
// "XYZ/INJ" are split into base and quote; numeric fields are parsed
// with the total normalization rules above.
func (s *FileSource) Snapshot(ctx context.Context) ([]types.MarketEntry, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}

	var file snapshotFile
	if err := json.Unmarshal(b, &file); err != nil {
		return nil, err
	}

	entries := make([]types.MarketEntry, 0, len(file.Data))
	for _, raw := range file.Data {
		base, quote := splitPair(raw.Symbol)
		if base == "" {
			continue
		}
		entries = append(entries, types.MarketEntry{
			Symbol:    base,
			Quote:     quote,
			Price:     ParsePrice(raw.Price),
			Change24h: ParseChange(raw.Change24h),
			Volume:    ParsePrice(raw.Volume),
			Timestamp: raw.Timestamp,
		})
	}

	logger.Info(ctx, "Market snapshot loaded", "path", s.path, "pairs", len(entries))
	return entries, nil
}

func splitPair(symbol string) (base, quote string) {
	parts := strings.SplitN(strings.ToUpper(strings.TrimSpace(symbol)), "/", 2)
	base = parts[0]
	if len(parts) == 2 {
		quote = parts[1]
	}
	return base, quote
}
