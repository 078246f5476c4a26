package scraper

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"

	"github.com/rvellore/etfscope/pkg/models"
)

// parseSummary extracts the quote banner from the landing page markup.
//
// Every field is individually optional: the summary is secondary to the
// holdings payload, so selector misses degrade to empty strings instead of
// failing the extraction. Values are captured verbatim, not normalized.
func parseSummary(body []byte) models.QuoteSummary {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		log.WithError(err).Debug("summary: landing page is not parseable markup")
		return models.QuoteSummary{}
	}

	var sum models.QuoteSummary

	// The realtime quote strip renders as one table row of cells, with
	// bid/ask/volume cells carrying value and sublabel sub-elements.
	cells := doc.Find("div.popupVersion.realtime table tr:nth-of-type(2) td")
	if cells.Length() > 0 {
		sum.LastPrice = cellText(cells, 0)
		sum.Change = strings.TrimSpace(strings.ReplaceAll(rawCellText(cells, 2), "\n", " "))
		sum.Bid = cellSubText(cells, 4, ".value")
		sum.BidSize = cellSubText(cells, 4, ".sublabel")
		sum.Ask = cellSubText(cells, 6, ".value")
		sum.AskSize = cellSubText(cells, 6, ".sublabel")
		sum.Volume = cellSubText(cells, 8, ".value")
		sum.VolumeLabel = cellSubText(cells, 8, ".sublabel")
	}

	if footer := doc.Find("#firstGlanceFooter").First(); footer.Length() > 0 {
		sum.AsOf = strings.TrimSpace(strings.Replace(footer.Text(), "As of", "", 1))
	}

	sum.Title = strings.TrimSpace(doc.Find("#content > div > h2").First().Text())

	return sum
}

// rawCellText returns the unprocessed text of the i-th cell, or "".
func rawCellText(cells *goquery.Selection, i int) string {
	if i >= cells.Length() {
		return ""
	}
	return cells.Eq(i).Text()
}

// cellText returns the trimmed text of the i-th cell, or "".
func cellText(cells *goquery.Selection, i int) string {
	return strings.TrimSpace(rawCellText(cells, i))
}

// cellSubText returns the trimmed text of a sub-element within the i-th
// cell, or "" when either the cell or the sub-element is absent.
func cellSubText(cells *goquery.Selection, i int, selector string) string {
	if i >= cells.Length() {
		return ""
	}
	return strings.TrimSpace(cells.Eq(i).Find(selector).First().Text())
}
