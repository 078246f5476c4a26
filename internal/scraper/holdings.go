package scraper

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// moduleArgs names the parameters of the holdings-table module. Field
// names and string-typed values are part of the wire contract; the
// endpoint matches them literally.
type moduleArgs struct {
	ModuleID        string `json:"ModuleID"`
	Symbol          string `json:"symbol"`
	WSODIssue       string `json:"wsodissue"`
	SortDir         string `json:"sortDir"`
	SortBy          string `json:"sortBy"`
	Page            string `json:"page"`
	NumRows         string `json:"numRows"`
	IsThirdPartyETF string `json:"isThirdPartyETF"`
}

// moduleRequest is the JSON command posted (base64-encoded) to the module
// endpoint.
type moduleRequest struct {
	Module     string     `json:"module"`
	ModuleArgs moduleArgs `json:"moduleArgs"`
}

// fetchHoldings posts the obfuscated holdings request using the negotiated
// session and returns the raw response text. The body is the compact JSON
// command, base64-encoded, wrapped in a form envelope whose sentinel field
// names the endpoint expects verbatim. No interpretation happens here.
func (s *Scraper) fetchHoldings(ctx context.Context, sess *session) (string, error) {
	cmd := moduleRequest{
		Module: "schwabETFHoldingsTable",
		ModuleArgs: moduleArgs{
			ModuleID:        "holdingsTableContainer",
			Symbol:          sess.symbol,
			WSODIssue:       sess.issueID,
			SortDir:         "desc",
			SortBy:          "PctNetAssets",
			Page:            "1",
			NumRows:         strconv.Itoa(s.maxRows),
			IsThirdPartyETF: "true",
		},
	}

	enc, err := json.Marshal(cmd)
	if err != nil {
		return "", fmt.Errorf("encode module request: %w", err)
	}
	payload := base64.StdEncoding.EncodeToString(enc)
	body := fmt.Sprintf(
		"inputs=B64ENC%s&..contenttype..=text/javascript&..requester..=ContentBuffer",
		payload,
	)

	apiURL := fmt.Sprintf("%s%s?%s", s.baseURL, moduleAPIPath, sess.sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", sess.pageURL)
	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post module request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &ErrHTTP{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(snippet),
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read module response: %w", err)
	}
	return string(raw), nil
}
