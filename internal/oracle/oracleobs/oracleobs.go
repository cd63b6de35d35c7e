package oracleobs

import (
	"context"

	"memecoin-radar/internal/interfaces"
	"memecoin-radar/internal/logger"
	"memecoin-radar/internal/trace"
	"memecoin-radar/internal/types"
)

// observableOracle wraps an Oracle with observability (logging & tracing)
type observableOracle struct {
	oracle interfaces.Oracle
}

// Compile-time interface check
var _ interfaces.Oracle = (*observableOracle)(nil)

// Wrap wraps an oracle with observability middleware
func Wrap(oracle interfaces.Oracle) interfaces.Oracle {
	return &observableOracle{
		oracle: oracle,
	}
}

// Analyze scores a symbol's post batch with observability
func (oo *observableOracle) Analyze(ctx context.Context, symbol string, agg types.CoinAggregate) (types.OracleVerdict, error) {
	ctx, span := trace.StartSpan(ctx, "oracle.Analyze")
	defer span.End()

	// Use DebugSkip(1) to report the actual caller, not this middleware wrapper
	logger.DebugSkip(ctx, 1, "Requesting oracle verdict",
		"symbol", symbol,
		"posts", len(agg.Posts),
		"mentions", agg.MentionCount,
	)

	verdict, err := oo.oracle.Analyze(ctx, symbol, agg)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Oracle analysis aborted", err,
			"symbol", symbol,
		)
		return verdict, err
	}

	logger.Verdict(ctx, symbol, verdict.Result.SentimentScore, verdict.Degraded, verdict.Reason,
		"key_factors", len(verdict.Result.KeyFactors),
	)

	return verdict, nil
}
