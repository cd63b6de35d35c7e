package store

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Mode string `yaml:"mode"` // SENTIMENT or ASSESS

	Paths struct {
		Posts      string `yaml:"posts"`
		Market     string `yaml:"market"`
		Checkpoint string `yaml:"checkpoint"`
		Report     string `yaml:"report"`
	} `yaml:"paths"`

	Oracle struct {
		Provider           string   `yaml:"provider"` // GEMINI or NOOP
		Model              string   `yaml:"model"`
		KeyEnv             []string `yaml:"key_env"`
		MaxRetries         int      `yaml:"max_retries"`
		RetryBudgetSeconds int      `yaml:"retry_budget_seconds"`
		BaseDelaySeconds   int      `yaml:"base_delay_seconds"`
		RotationThreshold  int      `yaml:"rotation_threshold"`
		MaxPostsPerCall    int      `yaml:"max_posts_per_call"`
		TimeoutSeconds     int      `yaml:"timeout_seconds"`
	} `yaml:"oracle"`

	Pipeline struct {
		BatchSize int `yaml:"batch_size"`
		TopN      int `yaml:"top_n"`
	} `yaml:"pipeline"`

	Scoring struct {
		WeightEngagement  float64 `yaml:"weight_engagement"`
		WeightSentiment   float64 `yaml:"weight_sentiment"`
		WeightPriceChange float64 `yaml:"weight_price_change"`
		WeightLike        float64 `yaml:"weight_like"`
		WeightRetweet     float64 `yaml:"weight_retweet"`
		WeightReply       float64 `yaml:"weight_reply"`
	} `yaml:"scoring"`

	Extractor struct {
		Stoplist    []string `yaml:"stoplist"`
		QuoteSymbol string   `yaml:"quote_symbol"`
	} `yaml:"extractor"`
}

func (c *Config) Validate() error {
	if c.Mode != "SENTIMENT" && c.Mode != "ASSESS" {
		return fmt.Errorf("invalid mode '%s': must be 'SENTIMENT' or 'ASSESS'", c.Mode)
	}
	if c.Oracle.Provider != "GEMINI" && c.Oracle.Provider != "NOOP" {
		return fmt.Errorf("invalid oracle.provider '%s': must be 'GEMINI' or 'NOOP'", c.Oracle.Provider)
	}
	if c.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("pipeline.batch_size must be positive, got %d", c.Pipeline.BatchSize)
	}
	if c.Paths.Posts == "" {
		return errors.New("paths.posts cannot be empty")
	}
	if c.Paths.Report == "" {
		return errors.New("paths.report cannot be empty")
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	applyDefaults(&c)
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}

// applyDefaults seeds the struct with the reference policy constants
// before the file is decoded, so any value present in the file,
// including an explicit zero weight, overrides the default. The
// retry/rotation/weight numbers mirror observed production behavior and
// are kept as configuration, not hardcoded invariants.
func applyDefaults(c *Config) {
	if c.Mode == "" {
		c.Mode = "SENTIMENT"
	}
	if c.Oracle.Provider == "" {
		c.Oracle.Provider = "GEMINI"
	}
	if c.Oracle.Model == "" {
		c.Oracle.Model = "gemini-2.0-flash"
	}
	if len(c.Oracle.KeyEnv) == 0 {
		c.Oracle.KeyEnv = []string{"GEMINI_API_KEY", "GEMINI_API_KEY_2", "GEMINI_API_KEY_3"}
	}
	if c.Oracle.MaxRetries == 0 {
		c.Oracle.MaxRetries = 10
	}
	if c.Oracle.RetryBudgetSeconds == 0 {
		c.Oracle.RetryBudgetSeconds = 300
	}
	if c.Oracle.BaseDelaySeconds == 0 {
		c.Oracle.BaseDelaySeconds = 5
	}
	if c.Oracle.RotationThreshold == 0 {
		c.Oracle.RotationThreshold = 3
	}
	if c.Oracle.MaxPostsPerCall == 0 {
		c.Oracle.MaxPostsPerCall = 10
	}
	if c.Oracle.TimeoutSeconds == 0 {
		c.Oracle.TimeoutSeconds = 60
	}
	if c.Pipeline.BatchSize == 0 {
		c.Pipeline.BatchSize = 10
	}
	if c.Pipeline.TopN == 0 {
		c.Pipeline.TopN = 10
	}
	if c.Scoring.WeightEngagement == 0 {
		c.Scoring.WeightEngagement = 0.3
	}
	if c.Scoring.WeightSentiment == 0 {
		c.Scoring.WeightSentiment = 40
	}
	if c.Scoring.WeightPriceChange == 0 {
		c.Scoring.WeightPriceChange = 0.5
	}
	if c.Scoring.WeightLike == 0 {
		c.Scoring.WeightLike = 1
	}
	if c.Scoring.WeightRetweet == 0 {
		c.Scoring.WeightRetweet = 2
	}
	if c.Scoring.WeightReply == 0 {
		c.Scoring.WeightReply = 1.5
	}
	if len(c.Extractor.Stoplist) == 0 {
		c.Extractor.Stoplist = []string{"RT", "USD", "USDT", "BTC", "ETH", "INJ"}
	}
	if c.Extractor.QuoteSymbol == "" {
		c.Extractor.QuoteSymbol = "INJ"
	}
	if c.Paths.Posts == "" {
		c.Paths.Posts = "twitter_data.json"
	}
	if c.Paths.Market == "" {
		c.Paths.Market = "helix_data.json"
	}
	if c.Paths.Checkpoint == "" {
		c.Paths.Checkpoint = "analyzed_coins_cache.json"
	}
	if c.Paths.Report == "" {
		c.Paths.Report = "coin_investment_analysis.json"
	}
}
