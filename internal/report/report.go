// Package report writes the final investment report to disk.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"memecoin-radar/internal/logger"
	"memecoin-radar/internal/types"
)

// Writer persists the pipeline's final report as pretty-printed JSON.
type Writer struct {
	path string
	now  func() time.Time
}

// NewWriter creates a report writer targeting path.
func NewWriter(path string) *Writer {
	return &Writer{path: path, now: time.Now}
}

// Build assembles a report from the full analysis set and the ranked
// shortlist, stamping it with the current time.
func (w *Writer) Build(coins []types.AnalyzedCoin, top []types.RankedCoin) types.Report {
	if coins == nil {
		coins = []types.AnalyzedCoin{}
	}
	if top == nil {
		top = []types.RankedCoin{}
	}
	return types.Report{
		AnalysisTimestamp:  w.now().Format(time.RFC3339),
		TotalCoinsAnalyzed: len(coins),
		Coins:              coins,
		TopInvestmentCoins: top,
	}
}

// Write atomically replaces the report file. Readers polling the path
// never observe a half-written report.
func (w *Writer) Write(ctx context.Context, rpt types.Report) error {
	b, err := json.MarshalIndent(rpt, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}

	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		return fmt.Errorf("commit report: %w", err)
	}

	logger.Info(ctx, "Report written", "path", w.path,
		"coins", rpt.TotalCoinsAnalyzed, "top", len(rpt.TopInvestmentCoins))
	return nil
}
