package interfaces

import (
	"context"

	"memecoin-radar/internal/types"
)

// MarketSource supplies the exchange trading-pair snapshot.
type MarketSource interface {
	Snapshot(ctx context.Context) ([]types.MarketEntry, error)
}
