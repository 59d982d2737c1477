package textparse

import "regexp"

// amountPattern matches "$1,200.50", "15 dollars" and "300 USD".
var amountPattern = regexp.MustCompile(`(?i)\$[\d,]+(?:\.\d+)?|\b\d+\s*dollars?\b|\b\d+\s*USD\b`)

// CurrencyAmounts returns every currency mention in text, in order of
// appearance. The result is empty, never nil, when nothing matches.
func CurrencyAmounts(text string) []string {
	matches := amountPattern.FindAllString(text, -1)
	if matches == nil {
		return []string{}
	}
	return matches
}

// ContainsAmount reports whether any of texts mentions a currency amount.
func ContainsAmount(texts ...string) bool {
	for _, text := range texts {
		if len(CurrencyAmounts(text)) > 0 {
			return true
		}
	}
	return false
}
