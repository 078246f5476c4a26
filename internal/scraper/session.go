package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
)

// The landing page embeds two ephemeral tokens in inline script blocks.
// Both are reissued on every page load and the module endpoint rejects
// requests that do not carry them.
var (
	sessionIDRe = regexp.MustCompile(`WSDOM\.Page\.sessionID\s*=\s*WSOD_DATA\.sessionID\s*\|\|\s*'([^']+)'`)
	wsodIssueRe = regexp.MustCompile(`var gSymbolWSODIssue = '(\d+)'`)
)

// session holds everything negotiated from one landing page fetch: the
// tokens, the page body for summary extraction, and the page URL used as
// Referer on the module request. The session cookies live in the client's
// jar.
type session struct {
	symbol    string
	pageURL   string
	sessionID string
	issueID   string
	body      []byte
}

// negotiateSession fetches the symbol's landing page and extracts the
// session id and issue id required by the holdings endpoint.
func (s *Scraper) negotiateSession(ctx context.Context, symbol string) (*session, error) {
	pageURL := fmt.Sprintf("%s%s?type=holdings&symbol=%s", s.baseURL, landingPagePath, symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Referer", pageURL)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch landing page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &ErrHTTP{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read landing page: %w", err)
	}

	sessionID := firstMatch(sessionIDRe, body)
	issueID := firstMatch(wsodIssueRe, body)
	if sessionID == "" || issueID == "" {
		return nil, ErrSessionToken
	}

	return &session{
		symbol:    symbol,
		pageURL:   pageURL,
		sessionID: sessionID,
		issueID:   issueID,
		body:      body,
	}, nil
}

// firstMatch returns the first capture group of re in body, or "".
func firstMatch(re *regexp.Regexp, body []byte) string {
	m := re.FindSubmatch(body)
	if len(m) < 2 {
		return ""
	}
	return string(m[1])
}
