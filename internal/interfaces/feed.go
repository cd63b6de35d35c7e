package interfaces

import (
	"context"

	"memecoin-radar/internal/types"
)

// FeedSource supplies the ordered, deduplicated post batch captured by
// the external social-feed scraper.
type FeedSource interface {
	Posts(ctx context.Context) ([]types.Post, error)
}
