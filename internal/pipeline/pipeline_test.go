package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"memecoin-radar/internal/checkpoint"
	"memecoin-radar/internal/report"
	"memecoin-radar/internal/store"
	"memecoin-radar/internal/types"
)

type fakeFeed struct{ posts []types.Post }

func (f *fakeFeed) Posts(ctx context.Context) ([]types.Post, error) { return f.posts, nil }

type fakeMarket struct{ entries []types.MarketEntry }

func (f *fakeMarket) Snapshot(ctx context.Context) ([]types.MarketEntry, error) {
	return f.entries, nil
}

type fakeOracle struct {
	calls    []string
	scores   map[string]float64
	failAt   int
	cancelFn context.CancelFunc
}

func (f *fakeOracle) Analyze(ctx context.Context, symbol string, agg types.CoinAggregate) (types.OracleVerdict, error) {
	if f.failAt > 0 && len(f.calls) == f.failAt {
		f.cancelFn()
		return types.OracleVerdict{Degraded: true, Reason: "cancelled"}, ctx.Err()
	}
	f.calls = append(f.calls, symbol)

	score, ok := f.scores[symbol]
	if !ok {
		return types.OracleVerdict{
			Result:   types.SentimentResult{Analysis: "Analysis failed"},
			Degraded: true,
			Reason:   "analysis failed",
		}, nil
	}
	return types.OracleVerdict{
		Result: types.SentimentResult{SentimentScore: score, Analysis: "ok"},
	}, nil
}

func testPipelineConfig(dir string) *store.Config {
	cfg := &store.Config{}
	cfg.Mode = "SENTIMENT"
	cfg.Pipeline.BatchSize = 2
	cfg.Pipeline.TopN = 10
	cfg.Oracle.BaseDelaySeconds = 0
	cfg.Scoring.WeightEngagement = 0.3
	cfg.Scoring.WeightSentiment = 40
	cfg.Scoring.WeightPriceChange = 0.5
	cfg.Scoring.WeightLike = 1
	cfg.Scoring.WeightRetweet = 2
	cfg.Scoring.WeightReply = 1.5
	cfg.Extractor.Stoplist = []string{"RT", "USD", "USDT", "BTC", "ETH", "INJ"}
	cfg.Paths.Checkpoint = filepath.Join(dir, "checkpoint.json")
	cfg.Paths.Report = filepath.Join(dir, "report.json")
	return cfg
}

func newTestPipeline(cfg *store.Config, feed *fakeFeed, mkt *fakeMarket, oracle *fakeOracle) *Pipeline {
	return New(cfg, feed, mkt, oracle,
		checkpoint.New(cfg.Paths.Checkpoint), report.NewWriter(cfg.Paths.Report))
}

func readReport(t *testing.T, path string) types.Report {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Report missing: %v", err)
	}
	var rpt types.Report
	if err := json.Unmarshal(b, &rpt); err != nil {
		t.Fatalf("Report not valid JSON: %v", err)
	}
	return rpt
}

func TestRunFullCycle(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RADAR_LOG_DIR", dir)
	cfg := testPipelineConfig(dir)

	feed := &fakeFeed{posts: []types.Post{
		{Text: "$WOOF to the moon https://t.me/woofarmy", URL: "u1",
			LikeCount: 10, RetweetCount: 2, ReplyCount: 1, Category: "meme"},
		{Text: "buying more $WOOF", URL: "u2", LikeCount: 5, RetweetCount: 1},
		{Text: "#WOOF dip", URL: "u3"},
		{Text: "$MEOW is quietly pumping", URL: "u4", LikeCount: 2},
		{Text: "generic $BTC talk", URL: "u5"},
	}}
	mkt := &fakeMarket{entries: []types.MarketEntry{
		{Symbol: "WOOF", Price: 0.002, Change24h: 15},
		{Symbol: "MEOW", Price: 0.5, Change24h: -3},
	}}
	oracle := &fakeOracle{scores: map[string]float64{"WOOF": 0.5, "MEOW": 0.9}}

	p := newTestPipeline(cfg, feed, mkt, oracle)
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// BTC is stoplisted, so only two symbols reach the oracle,
	// most-mentioned first
	if len(oracle.calls) != 2 || oracle.calls[0] != "WOOF" || oracle.calls[1] != "MEOW" {
		t.Fatalf("Unexpected oracle calls: %v", oracle.calls)
	}

	rpt := readReport(t, cfg.Paths.Report)
	if rpt.TotalCoinsAnalyzed != 2 {
		t.Errorf("Expected 2 analyzed coins, got %d", rpt.TotalCoinsAnalyzed)
	}
	if len(rpt.TopInvestmentCoins) != 2 || rpt.TopInvestmentCoins[0].Symbol != "MEOW" {
		t.Errorf("Unexpected ranking: %+v", rpt.TopInvestmentCoins)
	}

	var woof types.AnalyzedCoin
	for _, c := range rpt.Coins {
		if c.Symbol == "WOOF" {
			woof = c
		}
	}
	if woof.TweetCount != 3 || woof.TotalLikes != 15 || woof.TotalRetweets != 3 || woof.TotalReplies != 1 {
		t.Errorf("WOOF aggregate wrong: %+v", woof)
	}
	if len(woof.TelegramLinks) != 1 {
		t.Errorf("Telegram link not captured: %+v", woof.TelegramLinks)
	}

	if _, err := os.Stat(cfg.Paths.Checkpoint); !os.IsNotExist(err) {
		t.Error("Checkpoint not cleared after successful run")
	}
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RADAR_LOG_DIR", dir)
	cfg := testPipelineConfig(dir)

	prior := []types.AnalyzedCoin{
		{Symbol: "AAA", MentionCount: 1,
			Verdict: types.OracleVerdict{Result: types.SentimentResult{SentimentScore: 0.1}}},
		{Symbol: "BBB", MentionCount: 1,
			Verdict: types.OracleVerdict{Result: types.SentimentResult{SentimentScore: 0.2}}},
	}
	ckpt := checkpoint.New(cfg.Paths.Checkpoint)
	if err := ckpt.Save(context.Background(), prior, map[string]bool{"AAA": true, "BBB": true}); err != nil {
		t.Fatal(err)
	}

	feed := &fakeFeed{posts: []types.Post{
		{Text: "$AAA", URL: "u1"},
		{Text: "$BBB", URL: "u2"},
		{Text: "$CCC", URL: "u3"},
	}}
	mkt := &fakeMarket{entries: []types.MarketEntry{
		{Symbol: "AAA", Price: 1}, {Symbol: "BBB", Price: 1}, {Symbol: "CCC", Price: 1},
	}}
	oracle := &fakeOracle{scores: map[string]float64{"CCC": 0.3}}

	p := newTestPipeline(cfg, feed, mkt, oracle)
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(oracle.calls) != 1 || oracle.calls[0] != "CCC" {
		t.Fatalf("Expected only unprocessed symbol to reach oracle, got %v", oracle.calls)
	}

	rpt := readReport(t, cfg.Paths.Report)
	if rpt.TotalCoinsAnalyzed != 3 {
		t.Errorf("Expected prior results carried into report, got %d coins", rpt.TotalCoinsAnalyzed)
	}
}

func TestRunSavesCheckpointOnCancellation(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RADAR_LOG_DIR", dir)
	cfg := testPipelineConfig(dir)
	cfg.Pipeline.BatchSize = 10

	feed := &fakeFeed{posts: []types.Post{
		{Text: "$AAA $AAA", URL: "u1"},
		{Text: "$AAA again", URL: "u2"},
		{Text: "$BBB", URL: "u3"},
	}}
	mkt := &fakeMarket{entries: []types.MarketEntry{{Symbol: "AAA", Price: 1}}}

	ctx, cancel := context.WithCancel(context.Background())
	oracle := &fakeOracle{scores: map[string]float64{"AAA": 0.5}, failAt: 1, cancelFn: cancel}

	p := newTestPipeline(cfg, feed, mkt, oracle)
	if err := p.Run(ctx); err == nil {
		t.Fatal("Expected cancellation to propagate")
	}

	results, processed := checkpoint.New(cfg.Paths.Checkpoint).Load(context.Background())
	if len(results) != 1 || results[0].Symbol != "AAA" {
		t.Fatalf("Expected partial progress checkpointed, got %+v", results)
	}
	if !processed["AAA"] || processed["BBB"] {
		t.Errorf("Processed set wrong: %v", processed)
	}

	if _, err := os.Stat(cfg.Paths.Report); !os.IsNotExist(err) {
		t.Error("No report should be written on an aborted run")
	}
}

func TestRunEmptyFeed(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RADAR_LOG_DIR", dir)
	cfg := testPipelineConfig(dir)

	oracle := &fakeOracle{}
	p := newTestPipeline(cfg, &fakeFeed{}, &fakeMarket{}, oracle)
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(oracle.calls) != 0 {
		t.Errorf("No oracle calls expected, got %v", oracle.calls)
	}
	rpt := readReport(t, cfg.Paths.Report)
	if rpt.TotalCoinsAnalyzed != 0 {
		t.Errorf("Expected empty report, got %d coins", rpt.TotalCoinsAnalyzed)
	}
}

func TestRunKeepsDegradedVerdicts(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RADAR_LOG_DIR", dir)
	cfg := testPipelineConfig(dir)

	feed := &fakeFeed{posts: []types.Post{{Text: "$WOOF", URL: "u1"}}}
	mkt := &fakeMarket{entries: []types.MarketEntry{{Symbol: "WOOF", Price: 0.002, Change24h: 15}}}
	oracle := &fakeOracle{} // no scores configured, every verdict degrades

	p := newTestPipeline(cfg, feed, mkt, oracle)
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	rpt := readReport(t, cfg.Paths.Report)
	if rpt.TotalCoinsAnalyzed != 1 {
		t.Fatalf("Degraded verdict must still be recorded, got %d coins", rpt.TotalCoinsAnalyzed)
	}
	if !rpt.Coins[0].Verdict.Degraded {
		t.Error("Degraded flag lost in report")
	}
	// neutral score still ranks on price movement alone
	if len(rpt.TopInvestmentCoins) != 1 {
		t.Errorf("Degraded coin with market data should still rank: %+v", rpt.TopInvestmentCoins)
	}
}

func TestRunAssessMode(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RADAR_LOG_DIR", dir)
	cfg := testPipelineConfig(dir)
	cfg.Mode = "ASSESS"

	feed := &fakeFeed{posts: []types.Post{
		{Text: "$AAA", URL: "u1"}, {Text: "$BBB big potential", URL: "u2"},
	}}
	mkt := &fakeMarket{entries: []types.MarketEntry{{Symbol: "AAA", Price: 1}, {Symbol: "BBB", Price: 1}}}

	oracle := &assessOracle{potentials: map[string]int{"AAA": 3, "BBB": 9}}
	p := New(cfg, feed, mkt, oracle,
		checkpoint.New(cfg.Paths.Checkpoint), report.NewWriter(cfg.Paths.Report))
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	rpt := readReport(t, cfg.Paths.Report)
	if len(rpt.Coins) != 2 || rpt.Coins[0].Symbol != "BBB" {
		t.Errorf("Expected assessment ordering by potential, got %+v", rpt.Coins)
	}
	if len(rpt.TopInvestmentCoins) != 0 {
		t.Error("Investment ranking only applies in sentiment mode")
	}
}

func TestDiscoverDedupesAttributes(t *testing.T) {
	cfg := testPipelineConfig(t.TempDir())
	p := newTestPipeline(cfg, &fakeFeed{}, &fakeMarket{}, &fakeOracle{})

	posts := []types.Post{
		{Text: "$WOOF https://t.me/woofarmy https://woof.dog", URL: "u1",
			Category: "meme", SearchTerm: "woof"},
		{Text: "$WOOF again https://t.me/woofarmy", URL: "u2",
			Category: "meme", SearchTerm: "memecoin"},
		{Text: "$WOOF no category", URL: "u3"},
	}

	aggregates := p.discover(posts)
	agg, ok := aggregates["WOOF"]
	if !ok {
		t.Fatal("WOOF not discovered")
	}

	if len(agg.Categories) != 1 || agg.Categories[0] != "meme" {
		t.Errorf("Categories not deduplicated: %v", agg.Categories)
	}
	if len(agg.SearchTerms) != 2 || agg.SearchTerms[0] != "woof" || agg.SearchTerms[1] != "memecoin" {
		t.Errorf("Search terms lost order or uniqueness: %v", agg.SearchTerms)
	}
	if len(agg.TelegramLinks) != 1 {
		t.Errorf("Telegram link not deduplicated: %v", agg.TelegramLinks)
	}
	if len(agg.Links) != 1 || agg.Links[0] != "https://woof.dog" {
		t.Errorf("Other links wrong: %v", agg.Links)
	}
	if agg.MentionCount != 3 || len(agg.Posts) != 3 {
		t.Errorf("Aggregate counts wrong: %+v", agg)
	}
}

type assessOracle struct{ potentials map[string]int }

func (f *assessOracle) Analyze(ctx context.Context, symbol string, agg types.CoinAggregate) (types.OracleVerdict, error) {
	return types.OracleVerdict{
		Result: types.SentimentResult{
			PotentialScore: f.potentials[symbol],
			RiskScore:      5,
			CommunityScore: 5,
			Recommendation: "test",
		},
	}, nil
}
