// Package lake manages the on-disk data lake: an append-only store of
// timestamped snapshot artifacts split into a raw and a processed area.
package lake

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/rvellore/etfscope/pkg/models"
)

// Data lake areas.
const (
	AreaRaw       = "raw"
	AreaProcessed = "processed"
)

// DefaultBasePath is where the lake lives when the configuration does not
// say otherwise.
const DefaultBasePath = "data_lake"

// ErrNoSnapshot is returned when no persisted snapshot exists for a symbol.
var ErrNoSnapshot = errors.New("no snapshot for symbol")

// timestampLayout produces the {symbol}_{YYYYMMDD_HHMMSS}.json artifact
// names. The format is shared with external lake consumers; do not change
// it without coordinating.
const timestampLayout = "20060102_150405"

// Lake is the filesystem-backed data lake.
type Lake struct {
	basePath string
}

// New creates a lake rooted at basePath, creating the raw and processed
// areas when absent.
func New(basePath string) (*Lake, error) {
	if basePath == "" {
		basePath = DefaultBasePath
	}
	for _, area := range []string{AreaRaw, AreaProcessed} {
		if err := os.MkdirAll(filepath.Join(basePath, area), 0o755); err != nil {
			return nil, fmt.Errorf("create lake area %s: %w", area, err)
		}
	}
	return &Lake{basePath: basePath}, nil
}

// Save writes one snapshot as a timestamped JSON artifact into the given
// area. The lake is append-only: a name collision (two saves of one
// symbol within the same second) is an error, never an overwrite.
func (l *Lake) Save(symbol string, snap *models.ETFSnapshot, area string) error {
	name := fmt.Sprintf("%s_%s.json", symbol, time.Now().Format(timestampLayout))
	path := filepath.Join(l.basePath, area, name)

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", symbol, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create artifact %s: %w", name, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write artifact %s: %w", name, err)
	}

	log.WithFields(log.Fields{"symbol": symbol, "area": area}).Info("saved snapshot")
	return nil
}

// Symbols lists the symbols with at least one processed artifact, derived
// from the artifact filenames.
func (l *Lake) Symbols() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(l.basePath, AreaProcessed))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read processed area: %w", err)
	}

	seen := make(map[string]bool)
	var symbols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		symbol, _, ok := strings.Cut(strings.TrimSuffix(name, ".json"), "_")
		if !ok || symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true
		symbols = append(symbols, symbol)
	}
	return symbols, nil
}

// Latest returns the most recently modified processed snapshot for a
// symbol, or ErrNoSnapshot when none exists.
func (l *Lake) Latest(symbol string) (*models.ETFSnapshot, error) {
	dir := filepath.Join(l.basePath, AreaProcessed)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read processed area: %w", err)
	}

	prefix := symbol + "_"
	var latest string
	var latestMod time.Time
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = filepath.Join(dir, name)
			latestMod = info.ModTime()
		}
	}
	if latest == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, symbol)
	}

	data, err := os.ReadFile(latest)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", filepath.Base(latest), err)
	}

	var snap models.ETFSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", filepath.Base(latest), err)
	}
	return &snap, nil
}
