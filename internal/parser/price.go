package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/maltedev/sorare-alert-bot/internal/models"
)

const (
	space  = `[\s\x{00A0}\x{202F}]`
	amount = `\d{1,3}(?:[\s\x{00A0}\x{202F},.]\d{3})*(?:[,.]\d{1,2})?|\d+(?:[,.]\d{1,2})?`
)

var (
	currencyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(` + amount + `)` + space + `*€`),
		regexp.MustCompile(`€` + space + `*(` + amount + `)`),
		regexp.MustCompile(`(?i)(` + amount + `)` + space + `*EUR\b`),
	}
	barePattern = regexp.MustCompile(`^` + space + `*(` + amount + `)` + space + `*$`)
	separators  = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", "\t", "", "\n", "")
)

// ParseCurrencyPrice finds the first euro amount in text. An amount must carry a
// currency marker (€ before or after, or EUR after).
func ParseCurrencyPrice(text string) models.Price {
	for _, pattern := range currencyPatterns {
		if m := pattern.FindStringSubmatch(text); len(m) > 1 {
			if v, ok := ParseAmount(m[1]); ok {
				return models.NewPrice(v)
			}
		}
	}
	return models.UnknownPrice()
}

// ParsePrice accepts the same notations as ParseCurrencyPrice plus a bare number.
func ParsePrice(text string) models.Price {
	if p := ParseCurrencyPrice(text); p.Known() {
		return p
	}
	if m := barePattern.FindStringSubmatch(text); len(m) > 1 {
		if v, ok := ParseAmount(m[1]); ok {
			return models.NewPrice(v)
		}
	}
	return models.UnknownPrice()
}

// ParseAmount normalizes a localized number ("1 234,56", "1,234.56", "12,50") and parses it.
// When both comma and dot occur the last one is the decimal mark. A single separator
// followed by exactly three digits is a thousands separator.
func ParseAmount(s string) (float64, bool) {
	s = separators.Replace(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		s = normalizeSingleSeparator(s, ",")
	case lastDot >= 0:
		s = normalizeSingleSeparator(s, ".")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	p := models.NewPrice(v)
	return p.Amount(), p.Known()
}

func normalizeSingleSeparator(s, sep string) string {
	if strings.Count(s, sep) > 1 {
		return strings.ReplaceAll(s, sep, "")
	}
	idx := strings.Index(s, sep)
	if len(s)-idx-1 == 3 {
		return strings.Replace(s, sep, "", 1)
	}
	return strings.Replace(s, sep, ".", 1)
}
