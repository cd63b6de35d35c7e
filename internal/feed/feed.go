package feed

import (
	"context"
	"encoding/json"
	"os"

	"memecoin-radar/internal/logger"
	"memecoin-radar/internal/types"
)

// FileSource reads the post batch captured by the external social-feed
// scraper. The scraper hands over a completed, immutable JSON array;
// this loader only validates, defaults, and deduplicates it.
type FileSource struct {
	path string
}

// NewFileSource creates a post source reading from path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Posts loads the batch, preserving encounter order. Posts sharing a
// permalink are duplicates and dropped after the first occurrence;
// posts with no text are dropped outright. Unknown or missing fields
// decode to zero values.
func (s *FileSource) Posts(ctx context.Context) ([]types.Post, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}

	var raw []types.Post
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(raw))
	posts := make([]types.Post, 0, len(raw))
	dropped := 0
	for _, p := range raw {
		if p.Text == "" {
			dropped++
			continue
		}
		if p.URL != "" {
			if seen[p.URL] {
				dropped++
				continue
			}
			seen[p.URL] = true
		}
		posts = append(posts, p)
	}

	logger.Info(ctx, "Post batch loaded", "path", s.path, "posts", len(posts), "dropped", dropped)
	return posts, nil
}
