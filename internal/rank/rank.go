// Package rank turns analyzed coins into the final investment ordering.
// Ranking is a pure function over checkpointed analysis records and the
// market index, so a resumed run ranks identically to an uninterrupted
// one.
package rank

import (
	"sort"

	"memecoin-radar/internal/market"
	"memecoin-radar/internal/store"
	"memecoin-radar/internal/types"
)

// Engine scores and orders analyzed coins using the configured weights.
type Engine struct {
	cfg *store.Config
}

func NewEngine(cfg *store.Config) *Engine {
	return &Engine{cfg: cfg}
}

// EngagementScore computes the weighted per-post engagement average.
// The divisor is floored at 1 so a record with zero posts scores 0
// instead of dividing by zero.
func (e *Engine) EngagementScore(coin types.AnalyzedCoin) float64 {
	s := e.cfg.Scoring
	weighted := s.WeightLike*float64(coin.TotalLikes) +
		s.WeightRetweet*float64(coin.TotalRetweets) +
		s.WeightReply*float64(coin.TotalReplies)

	n := coin.TweetCount
	if n < 1 {
		n = 1
	}
	return weighted / float64(n)
}

// InvestmentScore combines engagement, oracle sentiment and 24h price
// movement into one comparable number.
func (e *Engine) InvestmentScore(engagement, sentiment, priceChange float64) float64 {
	s := e.cfg.Scoring
	return s.WeightEngagement*engagement +
		s.WeightSentiment*sentiment +
		s.WeightPriceChange*priceChange
}

// Rank filters analyzed coins against the market index and orders the
// survivors by investment score, best first. Coins without a market
// listing or without a positive price are excluded: no price data means
// no tradeable opportunity. The sort is stable so equal scores keep
// their input order and repeated runs produce identical reports.
func (e *Engine) Rank(coins []types.AnalyzedCoin, idx *market.Index) []types.RankedCoin {
	ranked := make([]types.RankedCoin, 0, len(coins))
	for _, coin := range coins {
		entry, listed := idx.Lookup(coin.Symbol)
		if !listed || entry.Price <= 0 {
			continue
		}

		engagement := e.EngagementScore(coin)
		ranked = append(ranked, types.RankedCoin{
			Symbol:          coin.Symbol,
			Price:           entry.Price,
			PriceChange24h:  entry.Change24h,
			TweetCount:      coin.TweetCount,
			TotalLikes:      coin.TotalLikes,
			TotalRetweets:   coin.TotalRetweets,
			TotalReplies:    coin.TotalReplies,
			EngagementScore: engagement,
			SentimentScore:  coin.Verdict.Result.SentimentScore,
			Analysis:        coin.Verdict.Result.Analysis,
			KeyFactors:      coin.Verdict.Result.KeyFactors,
			InvestmentScore: e.InvestmentScore(engagement, coin.Verdict.Result.SentimentScore, entry.Change24h),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].InvestmentScore > ranked[j].InvestmentScore
	})

	if n := e.cfg.Pipeline.TopN; len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// SortAssessments orders assessment-mode records in place by potential
// score, breaking ties on mention count. Stable, best first.
func SortAssessments(coins []types.AnalyzedCoin) {
	sort.SliceStable(coins, func(i, j int) bool {
		pi, pj := coins[i].Verdict.Result.PotentialScore, coins[j].Verdict.Result.PotentialScore
		if pi != pj {
			return pi > pj
		}
		return coins[i].MentionCount > coins[j].MentionCount
	})
}
