package noop

import (
	"context"

	"memecoin-radar/internal/types"
)

// Oracle is a fallback scorer used when no oracle provider is
// configured. It always returns a neutral, degraded verdict.
type Oracle struct{}

// New returns a new neutral-verdict oracle.
func New() *Oracle {
	return &Oracle{}
}

// Analyze implements the Oracle interface with a neutral verdict.
func (o *Oracle) Analyze(ctx context.Context, symbol string, agg types.CoinAggregate) (types.OracleVerdict, error) {
	return types.OracleVerdict{
		Result: types.SentimentResult{
			SentimentScore: 0,
			Analysis:       "noop_oracle_fallback",
		},
		Degraded: true,
		Reason:   "noop oracle configured",
	}, nil
}
