// Package patterns finds ISIN codes, dates and monetary amounts in free text.
// Every finder is pure and returns a sorted, deduplicated set.
package patterns

import (
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/akolanti/FinDocAPI/internal/domain/documentModel"
)

var (
	isinPattern   = regexp.MustCompile(`\b[A-Z]{2}[A-Z0-9]{9}[0-9]\b`)
	datePattern   = regexp.MustCompile(`\b(\d{2})([/.])(\d{2})([/.])(\d{4})\b`)
	amountPattern = regexp.MustCompile(`([$€£¥₪]\s?)?(\d{1,3}(?:,\d{3})+|\d+)(\.\d{2})?`)
)

// CurrencySymbols is the closed set of symbols an amount may start with.
const CurrencySymbols = "$€£¥₪"

type Extractor struct {
	// ValidateISINChecksum rejects well-formed codes whose ISO 6166 check digit is wrong.
	ValidateISINChecksum bool
}

var strict = Extractor{ValidateISINChecksum: true}

func ISINs(text string) []string   { return strict.ISINs(text) }
func Dates(text string) []string   { return strict.Dates(text) }
func Amounts(text string) []string { return strict.Amounts(text) }

func (e Extractor) ISINs(text string) []string {
	set := make(map[string]struct{})
	for _, m := range isinPattern.FindAllString(text, -1) {
		if e.ValidateISINChecksum && !ValidISIN(m) {
			continue
		}
		set[m] = struct{}{}
	}
	return toSortedSlice(set)
}

// Dates returns DD/MM/YYYY and DD.MM.YYYY matches verbatim. Strings that are not a
// calendar date in either day-first or month-first reading are dropped.
func (e Extractor) Dates(text string) []string {
	set := make(map[string]struct{})
	for _, m := range datePattern.FindAllStringSubmatch(text, -1) {
		if m[2] != m[4] {
			continue
		}
		dayFirst, monthFirst := readings(m[1], m[3], m[5])
		if !dayFirst && !monthFirst {
			continue
		}
		set[m[0]] = struct{}{}
	}
	return toSortedSlice(set)
}

// AmbiguousDates returns the dates that are valid both day-first and month-first and
// name different days under the two readings. No locale is guessed.
func (e Extractor) AmbiguousDates(text string) []string {
	set := make(map[string]struct{})
	for _, m := range datePattern.FindAllStringSubmatch(text, -1) {
		if m[2] != m[4] || m[1] == m[3] {
			continue
		}
		if dayFirst, monthFirst := readings(m[1], m[3], m[5]); dayFirst && monthFirst {
			set[m[0]] = struct{}{}
		}
	}
	return toSortedSlice(set)
}

func readings(first, second, year string) (dayFirst bool, monthFirst bool) {
	_, err := time.Parse("02/01/2006", first+"/"+second+"/"+year)
	dayFirst = err == nil
	_, err = time.Parse("01/02/2006", first+"/"+second+"/"+year)
	monthFirst = err == nil
	return dayFirst, monthFirst
}

// Amounts requires a currency symbol, thousands grouping or a two-digit fraction so
// that bare integers (years, page numbers, quantities) are not reported.
func (e Extractor) Amounts(text string) []string {
	set := make(map[string]struct{})
	for _, loc := range amountPattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[0], loc[1]
		hasSymbol := loc[2] >= 0
		hasGrouping := strings.Contains(text[loc[4]:loc[5]], ",")
		hasFraction := loc[6] >= 0
		if !hasSymbol && !hasGrouping && !hasFraction {
			continue
		}
		if !standsAlone(text, start, end, hasSymbol) {
			continue
		}
		set[text[start:end]] = struct{}{}
	}
	return toSortedSlice(set)
}

// standsAlone rejects matches that are a fragment of a date, identifier or longer number.
func standsAlone(text string, start, end int, hasSymbol bool) bool {
	if start > 0 && !hasSymbol {
		prev, _ := utf8.DecodeLastRuneInString(text[:start])
		if unicode.IsLetter(prev) || unicode.IsDigit(prev) || prev == '.' || prev == '/' || prev == ',' || prev == '-' {
			return false
		}
	}
	if start > 0 && hasSymbol {
		prev, _ := utf8.DecodeLastRuneInString(text[:start])
		if unicode.IsLetter(prev) || unicode.IsDigit(prev) {
			return false
		}
	}
	if end < len(text) {
		next, size := utf8.DecodeRuneInString(text[end:])
		if unicode.IsLetter(next) || unicode.IsDigit(next) {
			return false
		}
		if next == '.' || next == '/' || next == ',' {
			after, _ := utf8.DecodeRuneInString(text[end+size:])
			if end+size < len(text) && unicode.IsDigit(after) {
				return false
			}
		}
	}
	return true
}

// ValidISIN checks the ISO 6166 check digit: letters expand to two digits (A=10..Z=35)
// and the Luhn algorithm runs over the resulting digit string.
func ValidISIN(code string) bool {
	if len(code) != 12 {
		return false
	}
	var digits []int
	for i, r := range code {
		switch {
		case r >= '0' && r <= '9':
			digits = append(digits, int(r-'0'))
		case r >= 'A' && r <= 'Z' && i < 11:
			v := int(r-'A') + 10
			digits = append(digits, v/10, v%10)
		default:
			return false
		}
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// Entities extracts all three categories from one page with page provenance.
func (e Extractor) Entities(page int, text string) []documentModel.Entity {
	var out []documentModel.Entity
	for _, v := range e.ISINs(text) {
		out = append(out, documentModel.Entity{Kind: documentModel.EntityISIN, Value: v, Page: page})
	}
	for _, v := range e.Dates(text) {
		out = append(out, documentModel.Entity{Kind: documentModel.EntityDate, Value: v, Page: page})
	}
	for _, v := range e.Amounts(text) {
		out = append(out, documentModel.Entity{Kind: documentModel.EntityAmount, Value: v, Page: page})
	}
	return out
}

func toSortedSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
