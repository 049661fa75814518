package billing

import (
	"fmt"
	"strconv"
	"strings"
)

// Provider amounts arrive in integer minor units and pack prices are stored
// as fixed two-decimal strings. Both directions stay in integer arithmetic;
// cents never pass through a float.

// FormatCents renders integer cents as a two-decimal amount: 49900 -> "499.00".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// ParsePriceCents parses a decimal price string into integer cents:
// "499.00" -> 49900. At most two fractional digits are accepted.
func ParsePriceCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty price")
	}

	whole := s
	frac := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("invalid price %q: more than two decimal places", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	if whole == "" {
		whole = "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units < 0 {
		return 0, fmt.Errorf("invalid price %q", s)
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q", s)
	}

	return units*100 + cents, nil
}
