package scraper

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/rvellore/etfscope/pkg/models"
)

// The module endpoint answers with a JavaScript variable assignment
// wrapped around a JSON document.
const payloadPrefix = "this.apiReturn ="

// node is one vertex of the column-tree payload: tables, rows, and cells
// are all nodes whose children sit in "c". A cell's first child is its
// displayed value.
type node struct {
	C []json.RawMessage `json:"c"`
}

// errNoCell marks a cell that exists but carries no value children.
// Optional columns map it to the empty string; required columns drop
// the row.
var errNoCell = errors.New("cell has no value children")

// Holdings table column positions.
const (
	colSymbol = iota
	colName
	colWeight
	colShares
	colMarketValue
	numColumns
)

// parseHoldings decodes the raw module response into holding records.
//
// Failure policy is two-tiered: an unparseable document or an unexpected
// tree shape is a hard failure (ErrMalformedPayload, zero rows
// recoverable), while a single undecodable row is dropped with a log line
// and parsing continues. Row order is preserved; the request already
// sorted by descending net-asset weight.
func parseHoldings(raw string) ([]models.HoldingRecord, error) {
	txt := strings.TrimSpace(raw)
	txt = strings.TrimSpace(strings.TrimPrefix(txt, payloadPrefix))
	txt = strings.TrimSuffix(txt, ";")

	var doc struct {
		Module node `json:"module"`
	}
	if err := json.Unmarshal([]byte(txt), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	rows, err := navigateRows(doc.Module)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	out := make([]models.HoldingRecord, 0, len(rows))
	for i, rawRow := range rows {
		rec, err := decodeRow(rawRow)
		if err != nil {
			log.WithFields(log.Fields{
				"row":   i,
				"cause": err.Error(),
			}).Debug("skipping undecodable holdings row")
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// navigateRows walks the fixed tree shape down to the list of row nodes:
// module → first child (table container) → second child (holdings table)
// → children. Each step is named so schema drift shows up as a specific
// failure point instead of an index panic.
func navigateRows(module node) ([]json.RawMessage, error) {
	if len(module.C) == 0 {
		return nil, errors.New("module node has no children")
	}

	var container node
	if err := json.Unmarshal(module.C[0], &container); err != nil {
		return nil, fmt.Errorf("table container is not a node: %w", err)
	}
	if len(container.C) < 2 {
		return nil, fmt.Errorf("table container has %d children, want at least 2", len(container.C))
	}

	var table node
	if err := json.Unmarshal(container.C[1], &table); err != nil {
		return nil, fmt.Errorf("holdings table is not a node: %w", err)
	}
	// A table with an empty row list is a legitimate zero-holdings
	// answer; a table without one at all is schema drift.
	if table.C == nil {
		return nil, errors.New("holdings table has no row list")
	}
	return table.C, nil
}

// decodeRow extracts one holding record from a row node. Symbol and name
// are optional columns; the three numeric columns must be present (their
// values still parse fail-soft to 0).
func decodeRow(rawRow json.RawMessage) (models.HoldingRecord, error) {
	var rec models.HoldingRecord

	var row node
	if err := json.Unmarshal(rawRow, &row); err != nil {
		return rec, fmt.Errorf("row is not a node: %w", err)
	}
	if len(row.C) < numColumns {
		return rec, fmt.Errorf("row has %d cells, want %d", len(row.C), numColumns)
	}

	var err error
	if rec.Symbol, err = optionalCell(row.C[colSymbol]); err != nil {
		return rec, fmt.Errorf("symbol cell: %w", err)
	}
	if rec.Name, err = optionalCell(row.C[colName]); err != nil {
		return rec, fmt.Errorf("name cell: %w", err)
	}

	weight, err := cellValue(row.C[colWeight])
	if err != nil {
		return rec, fmt.Errorf("weight cell: %w", err)
	}
	shares, err := cellValue(row.C[colShares])
	if err != nil {
		return rec, fmt.Errorf("shares cell: %w", err)
	}
	value, err := cellValue(row.C[colMarketValue])
	if err != nil {
		return rec, fmt.Errorf("market value cell: %w", err)
	}

	rec.WeightPct = ParseNumber(weight)
	rec.Shares = ParseNumber(shares)
	rec.MarketValueUSD = ParseNumber(value)
	return rec, nil
}

// optionalCell is cellValue for columns that may legitimately lack a
// value; the absence degrades to "".
func optionalCell(rawCell json.RawMessage) (string, error) {
	v, err := cellValue(rawCell)
	if errors.Is(err, errNoCell) {
		return "", nil
	}
	return v, err
}

// cellValue returns the displayed value of a cell node: the first element
// of its "c" array, which must be a string.
func cellValue(rawCell json.RawMessage) (string, error) {
	var cell node
	if err := json.Unmarshal(rawCell, &cell); err != nil {
		return "", fmt.Errorf("cell is not a node: %w", err)
	}
	if cell.C == nil {
		return "", errNoCell
	}
	if len(cell.C) == 0 {
		return "", errors.New("cell value list is empty")
	}

	var v string
	if err := json.Unmarshal(cell.C[0], &v); err != nil {
		return "", fmt.Errorf("cell value is not a string: %w", err)
	}
	return v, nil
}
