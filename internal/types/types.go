package types

import "time"

// Post is one social-media message captured by the external feed scraper.
// Wire fields follow the scraper's JSON output; missing fields default to
// zero values at load time.
type Post struct {
	Handle       string `json:"handle,omitempty"`
	Text         string `json:"text"`
	Timestamp    string `json:"timestamp"`
	Category     string `json:"category"`
	SearchTerm   string `json:"search_term"`
	ReplyCount   int    `json:"reply_count"`
	RetweetCount int    `json:"retweet_count"`
	LikeCount    int    `json:"like_count"`
	URL          string `json:"url"`
}

// CoinAggregate accumulates evidence for one symbol across posts.
type CoinAggregate struct {
	Symbol        string
	Posts         []Post
	MentionCount  int
	FirstSeen     time.Time
	LastSeen      time.Time
	Categories    []string
	SearchTerms   []string
	Links         []string
	TelegramLinks []string
}

// SentimentResult is the oracle's structured output for one symbol.
// Sentiment fields are filled in SENTIMENT mode, the 0-10 sub-scores and
// flag lists in ASSESS mode.
type SentimentResult struct {
	SentimentScore float64  `json:"sentiment_score"`
	Analysis       string   `json:"investment_analysis"`
	KeyFactors     []string `json:"key_factors"`

	RiskScore          int      `json:"risk_score"`
	PotentialScore     int      `json:"potential_score"`
	CommunityScore     int      `json:"community_score"`
	RedFlags           []string `json:"red_flags"`
	PositiveIndicators []string `json:"positive_indicators"`
	Recommendation     string   `json:"recommendation"`
}

// OracleVerdict tags a SentimentResult with whether the oracle actually
// produced it or the client fell back to a neutral result. Result is
// always structurally valid either way.
type OracleVerdict struct {
	Result   SentimentResult `json:"result"`
	Degraded bool            `json:"degraded"`
	Reason   string          `json:"reason,omitempty"`
}

// MarketEntry is one exchange trading-pair snapshot after normalization.
type MarketEntry struct {
	Symbol    string  `json:"symbol"`
	Quote     string  `json:"quote"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change_24h"`
	Volume    float64 `json:"volume"`
	Timestamp string  `json:"timestamp"`
}

// AnalyzedCoin is the checkpointed per-symbol record: aggregate evidence
// plus the oracle verdict. It is what the ranking engine consumes.
type AnalyzedCoin struct {
	Symbol        string   `json:"symbol"`
	MentionCount  int      `json:"mention_count"`
	TweetCount    int      `json:"tweet_count"`
	TotalLikes    int      `json:"total_likes"`
	TotalRetweets int      `json:"total_retweets"`
	TotalReplies  int      `json:"total_replies"`
	FirstSeen     string   `json:"first_seen,omitempty"`
	LatestSeen    string   `json:"latest_seen,omitempty"`
	Categories    []string `json:"categories"`
	SearchTerms   []string `json:"search_terms"`
	TelegramLinks []string `json:"telegram_links"`
	OtherLinks    []string `json:"other_links"`
	SampleTweets  []string `json:"sample_tweets"`

	Verdict OracleVerdict `json:"verdict"`
}

// RankedCoin is one row of the final investment report.
type RankedCoin struct {
	Symbol          string   `json:"symbol"`
	Price           float64  `json:"price"`
	PriceChange24h  float64  `json:"price_change_24h"`
	TweetCount      int      `json:"tweet_count"`
	TotalLikes      int      `json:"total_likes"`
	TotalRetweets   int      `json:"total_retweets"`
	TotalReplies    int      `json:"total_replies"`
	EngagementScore float64  `json:"engagement_score"`
	SentimentScore  float64  `json:"sentiment_score"`
	Analysis        string   `json:"analysis"`
	KeyFactors      []string `json:"key_factors"`
	InvestmentScore float64  `json:"investment_score"`
}

// Report is the final pipeline output written to disk.
type Report struct {
	AnalysisTimestamp  string         `json:"analysis_timestamp"`
	TotalCoinsAnalyzed int            `json:"total_coins_analyzed"`
	Coins              []AnalyzedCoin `json:"coins"`
	TopInvestmentCoins []RankedCoin   `json:"top_investment_coins"`
}
