package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"memecoin-radar/internal/logger"
	"memecoin-radar/internal/store"
	"memecoin-radar/internal/trace"
	"memecoin-radar/internal/types"
)

// Client calls the Gemini generateContent REST API to score a symbol's
// post batch. It is designed to always hand back a usable verdict: on
// exhausted retries it degrades to a neutral result instead of
// propagating the failure, so one bad symbol never aborts a batch run.
type Client struct {
	cfg      *store.Config
	pool     *keyPool
	limiter  *rate.Limiter
	endpoint string
	httpc    *http.Client
}

// NewClient builds a client from config, reading credentials from the
// configured environment variables. An empty credential pool is the one
// startup-fatal condition: no forward progress is possible without it.
func NewClient(cfg *store.Config) (*Client, error) {
	var keys []string
	for _, env := range cfg.Oracle.KeyEnv {
		if v := os.Getenv(env); v != "" {
			keys = append(keys, v)
		}
	}

	pool, err := newKeyPool(keys, cfg.Oracle.RotationThreshold)
	if err != nil {
		return nil, err
	}

	// default public endpoint; override via GEMINI_API_ENDPOINT for
	// proxies and tests
	endpoint := fmt.Sprintf(
		"https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent",
		cfg.Oracle.Model)
	if ep := os.Getenv("GEMINI_API_ENDPOINT"); ep != "" {
		endpoint = ep
	}

	return &Client{
		cfg:      cfg,
		pool:     pool,
		limiter:  rate.NewLimiter(rate.Every(time.Duration(cfg.Oracle.BaseDelaySeconds)*time.Second), 1),
		endpoint: endpoint,
		httpc:    &http.Client{Timeout: time.Duration(cfg.Oracle.TimeoutSeconds) * time.Second},
	}, nil
}

// KeyCount returns how many credentials the client rotates through.
func (c *Client) KeyCount() int {
	return c.pool.size()
}

// Analyze scores the symbol's post batch. Retries with exponential
// backoff inside a bounded attempt count and total time budget; rotates
// credentials as their breakers trip. Never returns an error for
// transport or parse failures, only a degraded verdict.
func (c *Client) Analyze(ctx context.Context, symbol string, agg types.CoinAggregate) (types.OracleVerdict, error) {
	ctx, span := trace.StartSpan(ctx, "gemini-analyze")
	defer span.End()

	if len(agg.Posts) == 0 {
		return degradedVerdict(c.cfg.Mode, "no posts to analyze"), nil
	}

	prompt := c.buildPrompt(symbol, agg)
	deadline := time.Now().Add(time.Duration(c.cfg.Oracle.RetryBudgetSeconds) * time.Second)
	baseDelay := time.Duration(c.cfg.Oracle.BaseDelaySeconds) * time.Second

	var lastErr error
	for attempt := 0; attempt < c.cfg.Oracle.MaxRetries; attempt++ {
		// fixed minimum spacing between calls, independent of backoff
		if err := c.limiter.Wait(ctx); err != nil {
			return degradedVerdict(c.cfg.Mode, "cancelled"), err
		}

		idx, key := c.pool.pick()
		out, err := c.pool.execute(idx, func() (any, error) {
			raw, callErr := c.call(ctx, key, prompt)
			if callErr != nil {
				return nil, callErr
			}
			return c.parse(raw)
		})
		if err == nil {
			result := out.(types.SentimentResult)
			logger.Debug(ctx, "Oracle call succeeded", "symbol", symbol, "attempt", attempt+1, "key_index", idx)
			return types.OracleVerdict{Result: result}, nil
		}

		lastErr = err
		logger.Warn(ctx, "Oracle call failed", "symbol", symbol, "attempt", attempt+1,
			"key_index", idx, "error", err)

		if ctx.Err() != nil {
			return degradedVerdict(c.cfg.Mode, "cancelled"), ctx.Err()
		}

		sleep := baseDelay << attempt
		if remaining := time.Until(deadline); sleep > remaining {
			break
		}
		select {
		case <-ctx.Done():
			return degradedVerdict(c.cfg.Mode, "cancelled"), ctx.Err()
		case <-time.After(sleep):
		}
	}

	reason := "analysis failed"
	if lastErr != nil {
		reason = fmt.Sprintf("analysis failed: %v", lastErr)
	}
	logger.ErrorWithErr(ctx, "Oracle retries exhausted, returning degraded verdict", lastErr, "symbol", symbol)
	return degradedVerdict(c.cfg.Mode, reason), nil
}

// buildPrompt numbers the first MaxPostsPerCall post texts and wraps
// them in the mode's prompt template, asking for strict JSON.
func (c *Client) buildPrompt(symbol string, agg types.CoinAggregate) string {
	limit := c.cfg.Oracle.MaxPostsPerCall
	if limit > len(agg.Posts) {
		limit = len(agg.Posts)
	}
	var b strings.Builder
	for i := 0; i < limit; i++ {
		fmt.Fprintf(&b, "%d. %s\n", i+1, agg.Posts[i].Text)
	}
	posts := b.String()

	if c.cfg.Mode == "ASSESS" {
		return fmt.Sprintf(`Analyze this memecoin data and provide a structured assessment.
Return ONLY valid JSON without any other text.

Data to analyze:
- Symbol: %s
- Number of mentions: %d
- Posts:
%s- Links found: %s
- Telegram groups: %s

Format your response as this exact JSON structure:
{
  "risk_score": <number 1-10>,
  "potential_score": <number 1-10>,
  "community_score": <number 1-10>,
  "red_flags": ["flag1", "flag2"],
  "positive_indicators": ["indicator1", "indicator2"],
  "recommendation": "brief_recommendation"
}`, symbol, agg.MentionCount, posts,
			strings.Join(agg.Links, ", "), strings.Join(agg.TelegramLinks, ", "))
	}

	return fmt.Sprintf(`Analyze the following posts about the cryptocurrency %s for investment sentiment.

Posts:
%s
Please provide:
1. A sentiment score from -1.0 (extremely negative) to 1.0 (extremely positive)
2. A brief analysis of why this cryptocurrency might be a good or bad investment based on these posts
3. Key factors mentioned in the posts that could affect the price

Format your response as JSON only, with the following structure:
{
  "sentiment_score": [score as a float],
  "investment_analysis": "[brief analysis]",
  "key_factors": ["factor1", "factor2", ...]
}`, symbol, posts)
}

// call performs one generateContent request with the given credential.
func (c *Client) call(ctx context.Context, key, prompt string) (string, error) {
	body := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]any{
			"temperature":     0.2,
			"topP":            0.95,
			"topK":            50,
			"maxOutputTokens": 1024,
		},
	}
	bb, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(bb))
	if err != nil {
		return "", err
	}
	req.Header.Set("x-goog-api-key", key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		rb, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("gemini http %d: %s", resp.StatusCode, truncate(string(rb), 200))
	}

	var r struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini response has no candidates")
	}

	return r.Candidates[0].Content.Parts[0].Text, nil
}

var sentimentScoreRe = regexp.MustCompile(`"sentiment_score"\s*:\s*([-+]?\d*\.?\d+)`)

// parse isolates the JSON object from the model's text and validates
// the fields the active mode requires.
func (c *Client) parse(raw string) (any, error) {
	text := isolateJSON(raw)
	if text == "" {
		return nil, fmt.Errorf("no JSON object in oracle response")
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		// the model sometimes emits almost-JSON; salvage just the score
		if c.cfg.Mode == "SENTIMENT" {
			if m := sentimentScoreRe.FindStringSubmatch(raw); m != nil {
				score, perr := strconv.ParseFloat(m[1], 64)
				if perr == nil {
					return types.SentimentResult{
						SentimentScore: score,
						Analysis:       "Partial analysis only",
					}, nil
				}
			}
		}
		return nil, fmt.Errorf("parse oracle JSON: %w", err)
	}

	if c.cfg.Mode == "ASSESS" {
		return parseAssessment(fields)
	}
	return parseSentiment(fields)
}

func parseSentiment(fields map[string]any) (any, error) {
	score, ok := fields["sentiment_score"].(float64)
	if !ok {
		return nil, fmt.Errorf("oracle response missing sentiment_score")
	}
	analysis, ok := fields["investment_analysis"].(string)
	if !ok {
		return nil, fmt.Errorf("oracle response missing investment_analysis")
	}

	res := types.SentimentResult{
		SentimentScore: score,
		Analysis:       analysis,
		KeyFactors:     stringList(fields["key_factors"]),
	}
	return res, nil
}

func parseAssessment(fields map[string]any) (any, error) {
	required := []string{"risk_score", "potential_score", "community_score",
		"red_flags", "positive_indicators", "recommendation"}
	for _, f := range required {
		if _, ok := fields[f]; !ok {
			return nil, fmt.Errorf("oracle response missing %s", f)
		}
	}

	res := types.SentimentResult{
		RiskScore:          intField(fields["risk_score"]),
		PotentialScore:     intField(fields["potential_score"]),
		CommunityScore:     intField(fields["community_score"]),
		RedFlags:           stringList(fields["red_flags"]),
		PositiveIndicators: stringList(fields["positive_indicators"]),
	}
	res.Recommendation, _ = fields["recommendation"].(string)
	return res, nil
}

// isolateJSON strips markdown fences and cuts the text to the first '{'
// and last '}' since the model may wrap the object in prose.
func isolateJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func stringList(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func intField(v any) int {
	f, ok := v.(float64)
	if !ok {
		return 0
	}
	return int(f)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// degradedVerdict is the poison-pill fallback: structurally valid,
// neutral, and explicitly flagged.
func degradedVerdict(mode, reason string) types.OracleVerdict {
	result := types.SentimentResult{
		SentimentScore: 0,
		Analysis:       "Analysis failed",
	}
	if mode == "ASSESS" {
		result.RedFlags = []string{"Analysis failed"}
		result.PositiveIndicators = []string{}
		result.Recommendation = "Analysis failed"
	}
	return types.OracleVerdict{
		Result:   result,
		Degraded: true,
		Reason:   reason,
	}
}
