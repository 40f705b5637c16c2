package search

import (
	"context"
	"strings"

	"github.com/noesis-dev/noesis/internal/domain"
	ddg "github.com/sap-nocops/duckduckgogo/client"
	"go.uber.org/zap"
)

const defaultResultCount = 3

// searcher is the slice of the duckduckgogo client this wrapper uses.
type searcher interface {
	SearchLimited(query string, limit int) ([]ddg.Result, error)
}

// DuckDuckGoClient wraps the duckduckgogo search client. Failures of any
// kind degrade to an empty result set; web search is never load-bearing.
type DuckDuckGoClient struct {
	ddg    searcher
	logger *zap.Logger
}

func NewDuckDuckGoClient(logger *zap.Logger) *DuckDuckGoClient {
	return &DuckDuckGoClient{
		ddg:    ddg.NewDuckDuckGoSearchClient(),
		logger: logger,
	}
}

func (c *DuckDuckGoClient) Search(ctx context.Context, query string, count int) []domain.SearchResult {
	if count <= 0 {
		count = defaultResultCount
	}
	// The underlying client has no context support; honor cancellation
	// before the blocking call.
	if err := ctx.Err(); err != nil {
		c.logger.Warn("web search skipped", zap.Error(err))
		return nil
	}

	hits, err := c.ddg.SearchLimited(query, count)
	if err != nil {
		c.logger.Warn("web search failed", zap.String("query", query), zap.Error(err))
		return nil
	}

	results := make([]domain.SearchResult, 0, len(hits))
	for _, h := range hits {
		title := strings.TrimSpace(h.Title)
		target := strings.TrimSpace(h.FormattedUrl)
		if title == "" && target == "" {
			continue
		}
		results = append(results, domain.SearchResult{
			Title:       title,
			URL:         target,
			Description: strings.TrimSpace(h.Snippet),
		})
	}

	c.logger.Debug("web search completed", zap.String("query", query), zap.Int("results", len(results)))
	return results
}
