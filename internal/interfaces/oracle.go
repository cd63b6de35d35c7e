package interfaces

import (
	"context"

	"memecoin-radar/internal/types"
)

// Oracle scores a symbol's post batch. Implementations never propagate
// transport failures past their boundary: on failure they return a
// degraded verdict with a neutral score.
type Oracle interface {
	Analyze(ctx context.Context, symbol string, agg types.CoinAggregate) (types.OracleVerdict, error)
}
