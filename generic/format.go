package generic

import "strings"

// DefaultCurrencySymbol is the Peruvian sol.
const DefaultCurrencySymbol = "S/"

// FormatCurrency renders m for display: symbol, a space, thousands
// separated by commas and two decimals ("S/ 1,234.50", "S/ -20.00").
func FormatCurrency(m Money, symbol string) string {
	s := m.String()
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}
	intPart, frac := s, ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart, frac = s[:dot], s[dot:]
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return symbol + " " + sign + b.String() + frac
}
