package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Price text in the wild: "48€90", "1 320 €", "1 320,50 €", "$1,999.00".
var (
	numGroup  = regexp.MustCompile(`\d[\d\s.,]*\d`)
	euroSplit = regexp.MustCompile(`(\d+)\D+(\d{2})`)
	spaceRun  = regexp.MustCompile(`\s+`)
)

var currencySymbols = []string{"€", "$", "£", "₹"}

// ParsePrice pulls a currency symbol and a decimal amount out of raw price
// text. Either may be absent; a nil amount with non-empty input means the
// text did not parse.
func ParsePrice(text string) (currency string, amount *float64) {
	if text == "" {
		return "", nil
	}

	t := strings.NewReplacer(" ", " ", " ", " ").Replace(text)
	t = strings.TrimSpace(t)

	for _, sym := range currencySymbols {
		if strings.Contains(t, sym) {
			currency = sym
			break
		}
	}

	if m := numGroup.FindString(t); m != "" {
		num := strings.ReplaceAll(m, " ", "")
		switch {
		case strings.Contains(num, ",") && strings.Contains(num, "."):
			// "1.234,56" -> "1234.56"
			num = strings.ReplaceAll(num, ".", "")
			num = strings.ReplaceAll(num, ",", ".")
		case strings.Count(num, ",") == 1:
			num = strings.ReplaceAll(num, ",", ".")
		case strings.Contains(num, ","):
			num = strings.ReplaceAll(num, ",", "")
		}
		if v, err := strconv.ParseFloat(num, 64); err == nil {
			return currency, &v
		}
	}

	// "48€90" style splits, when no plain number group parsed.
	if m := euroSplit.FindStringSubmatch(t); m != nil {
		if currency == "" {
			currency = "€"
		}
		if v, err := strconv.ParseFloat(m[1]+"."+m[2], 64); err == nil {
			return currency, &v
		}
		return currency, nil
	}

	return currency, nil
}

// CleanText collapses whitespace runs into single spaces.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}
