package scrape

import (
	"regexp"
	"strconv"
	"strings"
)

// pricePattern matches an optional currency code or symbol followed by a
// grouped amount with a two-digit decimal part, using either . or , as
// group/decimal separators.
var pricePattern = regexp.MustCompile(`^(?:[A-Z]{3} )?[$€£]?(\d{1,3}(?:[.,]\d{3})*(?:[.,]\d{2}))`)

const priceCharacters = "0123456789.,$€£"

// ParsePrice parses a scraped price string under the store's locale
// convention. Returns false when no price can be recovered; an unparsable
// price is omitted, never zero.
func ParsePrice(text, locale string) (float64, bool) {
	return parsePrice(strings.TrimSpace(text), locale, 1)
}

// parsePrice tries the locale-aware pattern and, on failure, strips the
// input down to digits and separator/currency characters and retries once.
func parsePrice(text, locale string, retries int) (float64, bool) {
	m := pricePattern.FindStringSubmatch(text)
	if m == nil {
		if retries == 0 {
			return 0, false
		}
		var clean strings.Builder
		for _, r := range text {
			if strings.ContainsRune(priceCharacters, r) {
				clean.WriteRune(r)
			}
		}
		return parsePrice(clean.String(), locale, retries-1)
	}

	number := m[1]
	if decimalComma(locale) {
		number = strings.ReplaceAll(number, ".", "")
		number = strings.ReplaceAll(number, ",", ".")
	} else {
		number = strings.ReplaceAll(number, ",", "")
	}

	value, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// decimalComma reports whether the locale writes decimals with a comma and
// groups with a dot, as most European locales do.
func decimalComma(locale string) bool {
	return !strings.HasPrefix(strings.ToLower(locale), "en")
}
