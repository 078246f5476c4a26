package scraper

import (
	"strconv"
	"strings"
)

// magnitudes maps a trailing magnitude suffix to its multiplier.
var magnitudes = map[byte]float64{
	'K': 1e3,
	'M': 1e6,
	'B': 1e9,
}

// ParseNumber converts a loosely formatted numeric string into a float.
//
// It tolerates currency markers ("$"), thousands separators, a trailing
// percent sign (the result is divided by 100), and a trailing magnitude
// suffix (K, M, B). Upstream formatting is inconsistent and none of these
// fields are safety-critical, so parsing is fail-soft: anything that still
// does not parse, including the empty string, yields 0.
func ParseNumber(raw string) float64 {
	v := strings.ToUpper(strings.TrimSpace(raw))
	v = strings.ReplaceAll(v, ",", "")
	v = strings.ReplaceAll(v, "$", "")
	if v == "" {
		return 0
	}

	if strings.HasSuffix(v, "%") {
		f, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64)
		if err != nil {
			return 0
		}
		return f / 100
	}

	if mult, ok := magnitudes[v[len(v)-1]]; ok {
		f, err := strconv.ParseFloat(v[:len(v)-1], 64)
		if err != nil {
			return 0
		}
		return f * mult
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}
