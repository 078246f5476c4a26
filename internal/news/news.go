// Package news fetches recent fund news from public RSS feeds. It backs
// the read API's news endpoint and is strictly best-effort: a feed that
// cannot be reached yields an empty list, never a failed request.
package news

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/rvellore/etfscope/internal/infra"
	"github.com/rvellore/etfscope/pkg/models"
)

// googleNewsRSS is the search feed queried per symbol.
const googleNewsRSS = "https://news.google.com/rss/search?q=%s&hl=en-US&gl=US&ceid=US:en"

// Service fetches and caches per-symbol fund news.
type Service struct {
	feedURL string
	cache   *infra.Cache
	limiter *infra.RateLimiter
	parser  *gofeed.Parser
}

// New creates a news service against the default feed.
func New() *Service {
	return NewWithFeed(googleNewsRSS)
}

// NewWithFeed creates a news service against a custom feed URL template
// (one %s placeholder for the query).
func NewWithFeed(feedURL string) *Service {
	return &Service{
		feedURL: feedURL,
		cache:   infra.NewCache(10 * time.Minute),
		limiter: infra.NewRateLimiter(2, time.Second),
		parser:  gofeed.NewParser(),
	}
}

// FundNews returns recent news articles mentioning the given ETF symbol,
// newest first, capped at limit when limit > 0.
func (s *Service) FundNews(ctx context.Context, symbol string, limit int) ([]models.NewsArticle, error) {
	cacheKey := fmt.Sprintf("news:%s:%d", symbol, limit)
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.([]models.NewsArticle), nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := url.QueryEscape(symbol + " ETF")
	feed, err := s.parser.ParseURLWithContext(fmt.Sprintf(s.feedURL, query), ctx)
	if err != nil {
		return nil, fmt.Errorf("parse news feed for %s: %w", symbol, err)
	}

	articles := make([]models.NewsArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		a := models.NewsArticle{
			Title:   item.Title,
			Link:    item.Link,
			Source:  feed.Title,
			Summary: cleanHTML(item.Description),
		}
		if item.PublishedParsed != nil {
			a.PublishedAt = *item.PublishedParsed
		}
		articles = append(articles, a)
	}

	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}

	s.cache.Set(cacheKey, articles)
	return articles, nil
}

// cleanHTML strips markup from a feed description.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}
