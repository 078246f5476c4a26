// Package scraper extracts ETF holdings snapshots from the upstream
// research site. The site exposes its data through a session-keyed module
// endpoint: each extraction first negotiates an ephemeral session against
// the symbol's landing page, then posts an obfuscated request for the
// holdings table and decodes the column-tree response it gets back.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/rvellore/etfscope/internal/infra"
	"github.com/rvellore/etfscope/pkg/models"
)

const (
	// DefaultBaseURL is the production upstream host.
	DefaultBaseURL = "https://www.schwab.wallst.com"

	// DefaultUserAgent is sent on every upstream request.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

	landingPagePath = "/schwab/Prospect/research/etfs/schwabETF/index.asp"
	moduleAPIPath   = "/schwab/Prospect/research/resources/server/Module/SchwabETF.ModuleAPI.asp"

	defaultMaxRows = 100
	defaultRate    = 2 // max requests per second
)

// --- Sentinel errors ---

// ErrSessionToken is returned when the landing page no longer carries the
// ephemeral session id or issue id. The subsequent module request cannot be
// authorized without them, so this means the upstream layout has drifted
// and the symbol fails hard rather than being silently defaulted.
var ErrSessionToken = errors.New("session tokens not found in landing page")

// ErrMalformedPayload is returned when the holdings response cannot be
// parsed as JSON after unwrapping. No holdings are recoverable.
var ErrMalformedPayload = errors.New("malformed holdings payload")

// ErrHTTP wraps a non-success upstream HTTP response.
type ErrHTTP struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// Config holds the scraper's construction parameters. The zero value is
// usable; missing fields fall back to production defaults.
type Config struct {
	BaseURL        string
	MaxRows        int // holdings rows requested per symbol
	RequestsPerSec int
	Timeout        time.Duration
}

// Scraper extracts one ETF snapshot per symbol from the upstream site.
// It is safe for concurrent use; the cookie jar is shared so parallel
// extractions reuse one logical browsing session per host.
type Scraper struct {
	client  *http.Client
	limiter *infra.RateLimiter
	baseURL string
	maxRows int
}

// New creates a scraper with the given configuration.
func New(cfg Config) *Scraper {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = defaultMaxRows
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = defaultRate
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	jar, _ := cookiejar.New(nil)
	return &Scraper{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
		},
		limiter: infra.NewRateLimiter(cfg.RequestsPerSec, time.Second),
		baseURL: cfg.BaseURL,
		maxRows: cfg.MaxRows,
	}
}

// Extract fetches a full snapshot for one symbol: quote summary plus the
// holdings table, stamped with the capture instant.
//
// The quote summary is best-effort and may come back empty; the holdings
// are the primary payload and any failure producing them (transport,
// missing session tokens, malformed payload) fails the whole symbol.
func (s *Scraper) Extract(ctx context.Context, symbol string) (*models.ETFSnapshot, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	sess, err := s.negotiateSession(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("negotiate session for %s: %w", symbol, err)
	}

	summary := parseSummary(sess.body)
	if summary.IsEmpty() {
		log.WithField("symbol", symbol).Debug("quote summary not found in landing page")
	}

	raw, err := s.fetchHoldings(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("fetch holdings for %s: %w", symbol, err)
	}

	holdings, err := parseHoldings(raw)
	if err != nil {
		return nil, fmt.Errorf("parse holdings for %s: %w", symbol, err)
	}

	return &models.ETFSnapshot{
		Symbol:    symbol,
		Timestamp: time.Now().UTC(),
		Summary:   summary,
		Holdings:  holdings,
	}, nil
}
