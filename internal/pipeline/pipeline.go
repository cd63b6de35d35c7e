// Package pipeline drives one discovery cycle: load posts, aggregate
// candidate symbols, score each through the oracle in checkpointed
// batches, then rank against the market snapshot and write the report.
package pipeline

import (
	"context"
	"sort"
	"time"

	"memecoin-radar/internal/checkpoint"
	"memecoin-radar/internal/extract"
	"memecoin-radar/internal/interfaces"
	"memecoin-radar/internal/logger"
	"memecoin-radar/internal/market"
	"memecoin-radar/internal/rank"
	"memecoin-radar/internal/report"
	"memecoin-radar/internal/runlog"
	"memecoin-radar/internal/store"
	"memecoin-radar/internal/trace"
	"memecoin-radar/internal/types"
)

const maxSampleTweets = 3

// Pipeline wires the sources, the oracle and the sinks for one run.
type Pipeline struct {
	cfg        *store.Config
	feed       interfaces.FeedSource
	market     interfaces.MarketSource
	oracle     interfaces.Oracle
	extractor  *extract.Extractor
	checkpoint *checkpoint.Store
	reporter   *report.Writer
	engine     *rank.Engine
}

func New(cfg *store.Config, feed interfaces.FeedSource, mkt interfaces.MarketSource,
	oracle interfaces.Oracle, ckpt *checkpoint.Store, rep *report.Writer) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		feed:       feed,
		market:     mkt,
		oracle:     oracle,
		extractor:  extract.New(cfg.Extractor.Stoplist),
		checkpoint: ckpt,
		reporter:   rep,
		engine:     rank.NewEngine(cfg),
	}
}

// Run executes one full cycle. An interrupted run leaves a checkpoint
// behind; the next Run resumes from it and skips already-scored
// symbols. Only context cancellation aborts the cycle early.
func (p *Pipeline) Run(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "pipeline-run")
	defer span.End()
	started := time.Now()

	posts, err := p.feed.Posts(ctx)
	if err != nil {
		return err
	}

	snapshot, err := p.market.Snapshot(ctx)
	if err != nil {
		return err
	}
	idx := market.BuildIndex(snapshot)

	aggregates := p.discover(posts)
	logger.Info(ctx, "Discovery finished", "posts", len(posts),
		"symbols", len(aggregates), "market_pairs", idx.Len())

	results, processed := p.checkpoint.Load(ctx)
	pending := pendingSymbols(aggregates, processed)
	if len(processed) > 0 {
		logger.Info(ctx, "Resuming from checkpoint",
			"already_processed", len(processed), "pending", len(pending))
	}

	batches := batchCount(len(pending), p.cfg.Pipeline.BatchSize)
	for b := 0; b < batches; b++ {
		lo := b * p.cfg.Pipeline.BatchSize
		hi := lo + p.cfg.Pipeline.BatchSize
		if hi > len(pending) {
			hi = len(pending)
		}

		for _, symbol := range pending[lo:hi] {
			verdict, err := p.oracle.Analyze(ctx, symbol, *aggregates[symbol])
			if err != nil {
				// cancellation is the only error the oracle propagates;
				// save progress so the next run resumes here
				if saveErr := p.checkpoint.Save(ctx, results, processed); saveErr != nil {
					logger.ErrorWithErr(ctx, "Checkpoint save on abort failed", saveErr)
				}
				return err
			}

			coin := buildAnalyzedCoin(*aggregates[symbol], verdict)
			results = append(results, coin)
			processed[symbol] = true

			if lerr := runlog.Append(runlog.VerdictEntry{
				Symbol:    symbol,
				Mode:      p.cfg.Mode,
				Mentions:  coin.MentionCount,
				Sentiment: verdict.Result.SentimentScore,
				Degraded:  verdict.Degraded,
				Reason:    verdict.Reason,
			}); lerr != nil {
				logger.Warn(ctx, "Run log append failed", "error", lerr)
			}
		}

		if err := p.checkpoint.Save(ctx, results, processed); err != nil {
			return err
		}
		logger.Checkpoint(ctx, b+1, batches, len(results))

		if b < batches-1 {
			if err := p.pause(ctx); err != nil {
				return err
			}
		}
	}

	if p.cfg.Mode == "ASSESS" {
		rank.SortAssessments(results)
	}

	var top []types.RankedCoin
	if p.cfg.Mode == "SENTIMENT" {
		top = p.engine.Rank(results, idx)
	}

	rpt := p.reporter.Build(results, top)
	if err := p.reporter.Write(ctx, rpt); err != nil {
		return err
	}

	if err := p.checkpoint.Clear(ctx); err != nil {
		logger.Warn(ctx, "Checkpoint clear failed", "error", err)
	}

	if lerr := runlog.AppendRun(runlog.RunEntry{
		Outcome:          "ok",
		CoinsDiscovered:  len(aggregates),
		CoinsAnalyzed:    len(results),
		BatchesCompleted: batches,
		DurationSeconds:  time.Since(started).Seconds(),
	}); lerr != nil {
		logger.Warn(ctx, "Run log append failed", "error", lerr)
	}

	logger.Info(ctx, "Pipeline run finished", "analyzed", len(results),
		"ranked", len(top), "duration", time.Since(started).String())
	return nil
}

// discover folds every post into per-symbol aggregates. A post with
// three symbols contributes to three aggregates.
func (p *Pipeline) discover(posts []types.Post) map[string]*types.CoinAggregate {
	aggregates := make(map[string]*types.CoinAggregate)
	for _, post := range posts {
		res := p.extractor.Extract(post.Text)
		for _, symbol := range res.Symbols {
			agg, ok := aggregates[symbol]
			if !ok {
				agg = &types.CoinAggregate{Symbol: symbol}
				aggregates[symbol] = agg
			}

			agg.Posts = append(agg.Posts, post)
			agg.MentionCount++
			agg.Categories = appendUnique(agg.Categories, post.Category)
			agg.SearchTerms = appendUnique(agg.SearchTerms, post.SearchTerm)
			for _, l := range res.Links {
				agg.Links = appendUnique(agg.Links, l)
			}
			for _, l := range res.TelegramLinks {
				agg.TelegramLinks = appendUnique(agg.TelegramLinks, l)
			}

			if ts, err := time.Parse(time.RFC3339, post.Timestamp); err == nil {
				if agg.FirstSeen.IsZero() || ts.Before(agg.FirstSeen) {
					agg.FirstSeen = ts
				}
				if ts.After(agg.LastSeen) {
					agg.LastSeen = ts
				}
			}
		}
	}
	return aggregates
}

// pendingSymbols orders the unprocessed symbols most-mentioned first,
// with the symbol name as tiebreak. The ordering is deterministic so a
// resumed run walks the same sequence as the original.
func pendingSymbols(aggregates map[string]*types.CoinAggregate, processed map[string]bool) []string {
	pending := make([]string, 0, len(aggregates))
	for symbol := range aggregates {
		if !processed[symbol] {
			pending = append(pending, symbol)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		mi, mj := aggregates[pending[i]].MentionCount, aggregates[pending[j]].MentionCount
		if mi != mj {
			return mi > mj
		}
		return pending[i] < pending[j]
	})
	return pending
}

// appendUnique adds v to list unless it is empty or already present,
// keeping encounter order.
func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func buildAnalyzedCoin(agg types.CoinAggregate, verdict types.OracleVerdict) types.AnalyzedCoin {
	coin := types.AnalyzedCoin{
		Symbol:        agg.Symbol,
		MentionCount:  agg.MentionCount,
		TweetCount:    len(agg.Posts),
		Categories:    agg.Categories,
		SearchTerms:   agg.SearchTerms,
		TelegramLinks: agg.TelegramLinks,
		OtherLinks:    agg.Links,
		Verdict:       verdict,
	}
	for _, post := range agg.Posts {
		coin.TotalLikes += post.LikeCount
		coin.TotalRetweets += post.RetweetCount
		coin.TotalReplies += post.ReplyCount
		if len(coin.SampleTweets) < maxSampleTweets {
			coin.SampleTweets = append(coin.SampleTweets, post.Text)
		}
	}
	if !agg.FirstSeen.IsZero() {
		coin.FirstSeen = agg.FirstSeen.Format(time.RFC3339)
	}
	if !agg.LastSeen.IsZero() {
		coin.LatestSeen = agg.LastSeen.Format(time.RFC3339)
	}
	return coin
}

func batchCount(pending, batchSize int) int {
	if pending == 0 {
		return 0
	}
	return (pending + batchSize - 1) / batchSize
}

// pause spaces batches apart so the oracle provider sees a steady call
// rate rather than bursts.
func (p *Pipeline) pause(ctx context.Context) error {
	delay := 2 * time.Duration(p.cfg.Oracle.BaseDelaySeconds) * time.Second
	if delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
