package finance

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/akolanti/FinDocAPI/internal/domain/documentModel"
)

// symbolCurrencies maps the amount symbols the pattern extractor accepts to ISO-4217.
var symbolCurrencies = map[string]string{
	"$": money.USD,
	"€": money.EUR,
	"£": money.GBP,
	"¥": money.JPY,
	"₪": money.ILS,
}

var (
	usGrouping    = regexp.MustCompile(`^\d{1,3}(,\d{3})+$`)
	euDotGrouping = regexp.MustCompile(`^\d{1,3}(\.\d{3}){2,}$`)
	isoCode       = regexp.MustCompile(`\b[A-Z]{3}\b`)
)

// ParseAmount normalizes a monetary string in US ("1,234.56") or European ("1.234,56")
// form, with an optional symbol or ISO code and parentheses for negatives. The currency
// is empty when none was present.
func ParseAmount(raw string) (decimal.Decimal, string, error) {
	s := strings.TrimSpace(raw)
	currency := ""

	for sym, code := range symbolCurrencies {
		if strings.Contains(s, sym) {
			currency = code
			s = strings.ReplaceAll(s, sym, "")
		}
	}
	if code := CurrencyCode(s); code != "" {
		currency = code
		s = strings.ReplaceAll(s, code, "")
	}

	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '\'' {
			return -1
		}
		return r
	}, s)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[1:]
	}
	if s == "" {
		return decimal.Zero, currency, fmt.Errorf("%w: %q has no digits", documentModel.ErrParseFailure, raw)
	}

	s = normalizeSeparators(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, currency, fmt.Errorf("%w: %q: %v", documentModel.ErrParseFailure, raw, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, currency, nil
}

// normalizeSeparators rewrites the number with '.' as the only decimal separator. With
// both separators present the later one is the decimal mark.
func normalizeSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if usGrouping.MatchString(s) {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case lastDot >= 0 && euDotGrouping.MatchString(s):
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

// CurrencyCode returns the first known ISO-4217 code in s.
func CurrencyCode(s string) string {
	for _, candidate := range isoCode.FindAllString(s, -1) {
		if money.GetCurrency(candidate) != nil {
			return candidate
		}
	}
	return ""
}

// currencyFromSymbol finds a currency symbol anywhere in s.
func currencyFromSymbol(s string) string {
	for sym, code := range symbolCurrencies {
		if strings.Contains(s, sym) {
			return code
		}
	}
	return ""
}

// isNumeric reports whether a cell parses as an amount.
func isNumeric(s string) bool {
	_, _, err := ParseAmount(s)
	return err == nil
}
