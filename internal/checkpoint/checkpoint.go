package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"memecoin-radar/internal/logger"
	"memecoin-radar/internal/types"
)

// Store persists pipeline progress across process restarts so a crash
// loses at most one batch of oracle work. Single-writer: concurrent
// pipeline runs against the same path are not supported.
type Store struct {
	path string
}

// fileFormat is the on-disk checkpoint shape. ProcessedSymbols is the
// list form of the processed-symbols set.
type fileFormat struct {
	AnalyzedCoins    []types.AnalyzedCoin `json:"analyzed_coins"`
	ProcessedSymbols []string             `json:"processed_symbols"`
}

// New creates a checkpoint store backed by the given file path.
func New(path string) *Store {
	return &Store{path: path}
}

// Load reads the checkpoint. A missing or corrupt file is logged and
// treated as an empty checkpoint, never as a fatal error.
func (s *Store) Load(ctx context.Context) ([]types.AnalyzedCoin, map[string]bool) {
	processed := make(map[string]bool)

	b, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn(ctx, "Checkpoint unreadable, starting fresh", "path", s.path, "error", err)
		}
		return nil, processed
	}

	var file fileFormat
	if err := json.Unmarshal(b, &file); err != nil {
		logger.Warn(ctx, "Checkpoint corrupt, starting fresh", "path", s.path, "error", err)
		return nil, processed
	}

	for _, sym := range file.ProcessedSymbols {
		processed[sym] = true
	}

	logger.Info(ctx, "Checkpoint loaded", "path", s.path,
		"results", len(file.AnalyzedCoins), "processed_symbols", len(processed))
	return file.AnalyzedCoins, processed
}

// Save atomically overwrites the checkpoint. Safe to call after every
// batch; the rename is the durability boundary.
func (s *Store) Save(ctx context.Context, results []types.AnalyzedCoin, processed map[string]bool) error {
	symbols := make([]string, 0, len(processed))
	for _, r := range results {
		if processed[r.Symbol] {
			symbols = append(symbols, r.Symbol)
		}
	}

	file := fileFormat{
		AnalyzedCoins:    results,
		ProcessedSymbols: symbols,
	}
	if file.AnalyzedCoins == nil {
		file.AnalyzedCoins = []types.AnalyzedCoin{}
	}

	b, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}

	return nil
}

// Clear removes the checkpoint after a successful run so the next
// invocation starts a fresh discovery cycle. Idempotent.
func (s *Store) Clear(ctx context.Context) error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	logger.Info(ctx, "Checkpoint cleared", "path", s.path)
	return nil
}
