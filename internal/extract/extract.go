package extract

import (
	"regexp"
	"strings"
)

var (
	cashtagRe  = regexp.MustCompile(`\$([A-Za-z0-9]{2,10})\b`)
	hashtagRe  = regexp.MustCompile(`#([A-Za-z0-9]{2,10})\b`)
	telegramRe = regexp.MustCompile(`https?://t\.me/\S+`)
	linkRe     = regexp.MustCompile(`https?://\S+`)
)

// Result holds everything pulled out of one post's text.
type Result struct {
	Symbols       []string
	Links         []string
	TelegramLinks []string
}

// Extractor pulls candidate coin symbols and embedded links from post
// text using pattern rules only. Ambiguous tokens are a known source of
// false positives; the market-index join downstream filters them out.
type Extractor struct {
	stoplist map[string]bool
}

// New creates an extractor with the given stoplist of non-coin tokens.
func New(stoplist []string) *Extractor {
	stop := make(map[string]bool, len(stoplist))
	for _, s := range stoplist {
		stop[strings.ToUpper(s)] = true
	}
	return &Extractor{stoplist: stop}
}

// Extract returns the candidate symbols and links found in text. It
// never fails; empty input yields empty result sets. Symbols are
// uppercased, deduplicated, stoplist-filtered, and kept in first-seen
// order.
func (e *Extractor) Extract(text string) Result {
	var res Result
	if text == "" {
		return res
	}

	seen := make(map[string]bool)
	for _, re := range []*regexp.Regexp{cashtagRe, hashtagRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			sym := strings.ToUpper(m[1])
			if len(sym) < 2 || len(sym) > 10 {
				continue
			}
			if e.stoplist[sym] || seen[sym] {
				continue
			}
			seen[sym] = true
			res.Symbols = append(res.Symbols, sym)
		}
	}

	for _, link := range linkRe.FindAllString(text, -1) {
		if telegramRe.MatchString(link) {
			res.TelegramLinks = append(res.TelegramLinks, link)
		} else {
			res.Links = append(res.Links, link)
		}
	}

	return res
}
